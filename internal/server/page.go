package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"idlerealm/internal/catalog"
	"idlerealm/internal/game"

	"github.com/a-h/templ"
)

type statusView struct {
	Catalog string
	Slot    string
	State   game.State
	Routes  []RouteDoc
}

func (a *API) StatusPage(w http.ResponseWriter, r *http.Request) {
	v := statusView{
		Catalog: a.runner.Engine().Catalog.Version(),
		Slot:    a.cfg.Save.Slot,
		State:   a.runner.State(),
		Routes:  a.routes.List(),
	}
	templ.Handler(statusPage(v)).ServeHTTP(w, r)
}

func statusPage(v statusView) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<!doctype html><html lang="en"><head><meta charset="utf-8"><title>idlerealm</title></head><body>`)
		fmt.Fprintf(&b, `<h1>idlerealm</h1><p>catalog %s, slot %s</p>`,
			templ.EscapeString(v.Catalog), templ.EscapeString(v.Slot))

		b.WriteString(`<h2>Roster</h2><table><tr><th>id</th><th>name</th><th>hp</th><th>stamina</th><th>action</th><th>combat</th></tr>`)
		for _, id := range v.State.Roster {
			p, ok := v.State.Players[id]
			if !ok {
				continue
			}
			action := string(p.SelectedActionID)
			if action == "" {
				action = "idle"
			}
			fmt.Fprintf(&b, `<tr><td>%s</td><td>%s</td><td>%d/%d</td><td>%d/%d</td><td>%s</td><td>%d</td></tr>`,
				templ.EscapeString(p.ID), templ.EscapeString(p.Name), p.HP, p.HPMax, p.Stamina, p.StaminaMax,
				templ.EscapeString(action), p.Level(catalog.CombatSkill))
		}
		b.WriteString(`</table>`)

		fmt.Fprintf(&b, `<p>gold %d</p>`, v.State.Inventory.Count(catalog.Gold))
		if r, ok := v.State.Dungeon.ActiveRun(); ok {
			fmt.Fprintf(&b, `<p>dungeon %s floor %d/%d (%s)</p>`,
				templ.EscapeString(string(r.DungeonID)), r.Floor, r.FloorCount, templ.EscapeString(string(r.Status)))
		}

		b.WriteString(`<h2>API</h2><ul>`)
		for _, rt := range v.Routes {
			fmt.Fprintf(&b, `<li><code>%s %s</code> %s</li>`,
				templ.EscapeString(rt.Method), templ.EscapeString(rt.Pattern), templ.EscapeString(rt.Summary))
		}
		b.WriteString(`</ul></body></html>`)

		_, err := io.WriteString(w, b.String())
		return err
	})
}
