// Package progression keeps a rolling seven day ledger of xp, gold and
// active/idle time, keyed by local calendar day.
package progression

import (
	"math"
	"time"

	"idlerealm/internal/catalog"
)

const (
	WindowDays = 7
	dayLayout  = "2006-01-02"
)

type Bucket struct {
	Day           string                      `json:"day"`
	XP            float64                     `json:"xp"`
	Gold          float64                     `json:"gold"`
	ActiveMs      float64                     `json:"activeMs"`
	IdleMs        float64                     `json:"idleMs"`
	SkillActiveMs map[catalog.SkillID]float64 `json:"skillActiveMs,omitempty"`
}

type State struct {
	Buckets []Bucket `json:"buckets"`
}

type Delta struct {
	XP            float64
	Gold          float64
	ActiveMs      float64
	IdleMs        float64
	SkillActiveMs map[catalog.SkillID]float64
}

// DayKey formats the local calendar day containing ts (unix millis).
func DayKey(ts int64, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return time.UnixMilli(ts).In(loc).Format(dayLayout)
}

// windowKeys returns the seven day keys ending at the day of ts, oldest first.
func windowKeys(ts int64, loc *time.Location) []string {
	if loc == nil {
		loc = time.Local
	}
	t := time.UnixMilli(ts).In(loc)
	y, m, d := t.Date()
	keys := make([]string, WindowDays)
	for i := 0; i < WindowDays; i++ {
		day := time.Date(y, m, d-(WindowDays-1-i), 0, 0, 0, 0, loc)
		keys[i] = day.Format(dayLayout)
	}
	return keys
}

func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

func (b Bucket) clone() Bucket {
	out := b
	out.SkillActiveMs = nil
	if len(b.SkillActiveMs) > 0 {
		out.SkillActiveMs = make(map[catalog.SkillID]float64, len(b.SkillActiveMs))
		for k, v := range b.SkillActiveMs {
			out.SkillActiveMs[k] = v
		}
	}
	return out
}

func (b *Bucket) add(o Bucket) {
	b.XP += sanitize(o.XP)
	b.Gold += sanitize(o.Gold)
	b.ActiveMs += sanitize(o.ActiveMs)
	b.IdleMs += sanitize(o.IdleMs)
	for k, v := range o.SkillActiveMs {
		v = sanitize(v)
		if v == 0 {
			continue
		}
		if b.SkillActiveMs == nil {
			b.SkillActiveMs = map[catalog.SkillID]float64{}
		}
		b.SkillActiveMs[k] += v
	}
}

// Normalize rebuilds the window anchored at the local day of ts. Buckets
// outside the window are dropped, missing days are zero-filled, duplicate
// keys are merged and corrupt numbers are zeroed.
func Normalize(s State, ts int64, loc *time.Location) State {
	keys := windowKeys(ts, loc)
	index := make(map[string]int, len(keys))
	out := State{Buckets: make([]Bucket, len(keys))}
	for i, k := range keys {
		index[k] = i
		out.Buckets[i] = Bucket{Day: k}
	}
	for _, b := range s.Buckets {
		i, ok := index[b.Day]
		if !ok {
			continue
		}
		out.Buckets[i].add(b)
	}
	return out
}

// ApplyDelta normalizes s and adds d into today's bucket.
func ApplyDelta(s State, d Delta, ts int64, loc *time.Location) State {
	out := Normalize(s, ts, loc)
	today := &out.Buckets[len(out.Buckets)-1]
	today.add(Bucket{
		XP:            d.XP,
		Gold:          d.Gold,
		ActiveMs:      d.ActiveMs,
		IdleMs:        d.IdleMs,
		SkillActiveMs: d.SkillActiveMs,
	})
	return out
}

// Clone deep-copies the ledger.
func (s State) Clone() State {
	out := State{Buckets: make([]Bucket, len(s.Buckets))}
	for i, b := range s.Buckets {
		out.Buckets[i] = b.clone()
	}
	return out
}

// Totals sums every bucket in the ledger.
func (s State) Totals() Bucket {
	var t Bucket
	for _, b := range s.Buckets {
		t.add(b)
	}
	return t
}
