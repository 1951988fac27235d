package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"idlerealm/internal/catalog"
	"idlerealm/internal/config"
	"idlerealm/internal/dungeon"
	"idlerealm/internal/game"
	"idlerealm/internal/logger"
	"idlerealm/internal/ops"
	"idlerealm/internal/quest"
	"idlerealm/internal/save"
)

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stdout)
		os.Exit(2)
	}

	var err error
	args := os.Args[2:]
	switch os.Args[1] {
	case "simulate":
		err = cmdSimulate(args, os.Stdout)
	case "inspect":
		err = cmdInspect(args, os.Stdout)
	case "backup":
		err = cmdBackup(args, os.Stdout)
	case "restore":
		err = cmdRestore(args, os.Stdout)
	case "drill":
		err = cmdDrill(args, os.Stdout)
	default:
		printUsage(os.Stdout)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s failed: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

type env struct {
	cfg   *config.Config
	reg   *catalog.Registry
	repo  save.Repository
	store save.Store
	close func() error
}

func openEnv(configPath, slot string) (*env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if slot != "" {
		cfg.Save.Slot = slot
	}
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	reg, err := catalog.Default()
	if err != nil {
		return nil, err
	}
	repo, closeFn, err := save.Open(cfg.Save)
	if err != nil {
		return nil, err
	}
	return &env{
		cfg:   cfg,
		reg:   reg,
		repo:  repo,
		store: save.Store{Repo: repo, Catalog: reg, Balance: cfg.Balance},
		close: closeFn,
	}, nil
}

// cmdSimulate runs offline catch-up against a slot in fixed steps.
func cmdSimulate(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("simulate", flag.ContinueOnError)
	configPath := fs.String("config", "idlerealm.yml", "path to config file")
	slot := fs.String("slot", "", "save slot (defaults to config)")
	span := fs.Duration("for", time.Hour, "simulated time to run")
	step := fs.Duration("step", time.Minute, "length of each tick")
	write := fs.Bool("write", false, "store the result back into the slot")
	seed := fs.Int64("seed", 0, "rare-reward seed; 0 seeds from each tick timestamp")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *step <= 0 || *span <= 0 {
		return errors.New("for and step must be positive")
	}

	e, err := openEnv(*configPath, *slot)
	if err != nil {
		return err
	}
	defer e.close()

	ctx := context.Background()
	st, err := e.store.Load(ctx, e.cfg.Save.Slot)
	if err != nil {
		return err
	}

	eng := game.Engine{Catalog: e.reg, Balance: e.cfg.Balance, Loc: e.cfg.Location(), Log: logger.Log}
	if *seed != 0 {
		// one source for the whole run so a seed repeats exactly
		eng.Rand = rand.New(rand.NewSource(*seed))
	}

	now := time.Now().UnixMilli()
	if st.LastTick != nil {
		now = *st.LastTick
	}
	end := now + span.Milliseconds()
	var total simTotals
	for now < end {
		d := min(step.Milliseconds(), end-now)
		now += d
		var sum game.TickSummary
		st, sum = eng.ApplyTick(st, d, now)
		total.add(sum)
	}
	total.print(out, st)

	if *write {
		if err := e.store.Save(ctx, e.cfg.Save.Slot, st); err != nil {
			return err
		}
		fmt.Fprintf(out, "saved slot %s\n", e.cfg.Save.Slot)
	}
	return nil
}

type simTotals struct {
	ticks     int
	simulated int64
	xp, gold  int
	rounds    int
	quests    []catalog.QuestID
	victories int
	defeats   int
	clears    int
}

func (t *simTotals) add(sum game.TickSummary) {
	t.ticks++
	t.simulated += sum.DeltaMs
	t.xp += sum.XP
	t.gold += sum.Gold
	t.rounds += sum.DungeonRounds
	t.quests = append(t.quests, sum.QuestsCompleted...)
	for _, ps := range sum.Players {
		if ps.Cleared {
			t.clears++
		}
	}
	for _, rp := range sum.DungeonFinished {
		switch rp.Status {
		case dungeon.StatusVictory:
			t.victories++
		case dungeon.StatusDefeat:
			t.defeats++
		}
	}
}

func (t simTotals) print(out io.Writer, st game.State) {
	fmt.Fprintf(out, "ticks %d, simulated %s\n", t.ticks, time.Duration(t.simulated)*time.Millisecond)
	fmt.Fprintf(out, "xp %d, gold %d, dungeon rounds %d (won %d, lost %d), actions cleared %d\n",
		t.xp, t.gold, t.rounds, t.victories, t.defeats, t.clears)
	for _, q := range t.quests {
		fmt.Fprintf(out, "quest completed: %s\n", q)
	}
	fmt.Fprintf(out, "gold on hand %d\n", st.Inventory.Count(catalog.Gold))
}

func cmdInspect(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	configPath := fs.String("config", "idlerealm.yml", "path to config file")
	slot := fs.String("slot", "", "save slot (defaults to config)")
	asJSON := fs.Bool("json", false, "print the decoded state as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	e, err := openEnv(*configPath, *slot)
	if err != nil {
		return err
	}
	defer e.close()

	ctx := context.Background()
	st, err := e.store.Load(ctx, e.cfg.Save.Slot)
	if err != nil {
		return err
	}
	if *asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}

	slots, err := e.repo.List(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SLOT\tVERSION\tSIZE\tUPDATED")
	for _, s := range slots {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", s.Slot, s.Version, s.Size, s.UpdatedAt.Format(time.RFC3339))
	}
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "ID\tNAME\tHP\tSTAMINA\tACTION\tCOMBAT")
	for _, id := range st.Roster {
		p := st.Players[id]
		fmt.Fprintf(tw, "%s\t%s\t%d/%d\t%d/%d\t%s\t%d\n",
			p.ID, p.Name, p.HP, p.HPMax, p.Stamina, p.StaminaMax, p.SelectedActionID, p.Level(catalog.CombatSkill))
	}
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "QUEST\tPROGRESS\tDONE")
	for _, q := range quest.List(e.reg, st.Quests, st.Players) {
		fmt.Fprintf(tw, "%s\t%d/%d\t%t\n", q.ID, q.Current, q.Target, q.Completed)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\ngold %d", st.Inventory.Count(catalog.Gold))
	if st.LastTick != nil {
		fmt.Fprintf(out, ", last tick %s", time.UnixMilli(*st.LastTick).UTC().Format(time.RFC3339))
	}
	if r, ok := st.Dungeon.ActiveRun(); ok {
		fmt.Fprintf(out, ", in %s floor %d/%d", r.DungeonID, r.Floor, r.FloorCount)
	}
	fmt.Fprintln(out)
	return nil
}

func cmdBackup(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("backup", flag.ContinueOnError)
	configPath := fs.String("config", "idlerealm.yml", "path to config file")
	archive := fs.String("out", "", "output archive path (.tar.gz)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *archive == "" {
		ts := time.Now().UTC().Format("20060102T150405Z")
		*archive = filepath.Join("backups", "idlerealm-"+ts+".tar.gz")
	}

	e, err := openEnv(*configPath, "")
	if err != nil {
		return err
	}
	defer e.close()

	n, err := ops.BackupSlots(context.Background(), e.repo, *archive)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s (%d slots)\n", *archive, n)
	return nil
}

func cmdRestore(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("restore", flag.ContinueOnError)
	configPath := fs.String("config", "idlerealm.yml", "path to config file")
	archive := fs.String("archive", "", "input backup archive (.tar.gz)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *archive == "" {
		return fmt.Errorf("archive is required")
	}

	e, err := openEnv(*configPath, "")
	if err != nil {
		return err
	}
	defer e.close()

	n, err := ops.RestoreSlots(context.Background(), *archive, e.repo)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "restored %d slots\n", n)
	return nil
}

// cmdDrill backs up the configured repository, restores into a scratch
// file repository and compares digests.
func cmdDrill(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("drill", flag.ContinueOnError)
	configPath := fs.String("config", "idlerealm.yml", "path to config file")
	workDir := fs.String("work-dir", os.TempDir(), "temporary workspace for drill artifacts")
	if err := fs.Parse(args); err != nil {
		return err
	}

	e, err := openEnv(*configPath, "")
	if err != nil {
		return err
	}
	defer e.close()

	ctx := context.Background()
	ts := time.Now().UTC().Format("20060102T150405Z")
	archive := filepath.Join(*workDir, "idlerealm-drill-"+ts+".tar.gz")
	scratch, err := save.NewFileRepo(filepath.Join(*workDir, "idlerealm-drill-restore-"+ts))
	if err != nil {
		return err
	}

	if _, err := ops.BackupSlots(ctx, e.repo, archive); err != nil {
		return err
	}
	if _, err := ops.RestoreSlots(ctx, archive, scratch); err != nil {
		return err
	}

	srcDigest, err := ops.Digest(ctx, e.repo)
	if err != nil {
		return err
	}
	restoreDigest, err := ops.Digest(ctx, scratch)
	if err != nil {
		return err
	}
	if srcDigest != restoreDigest {
		return fmt.Errorf("digest mismatch after restore: src=%s restored=%s", srcDigest, restoreDigest)
	}

	fmt.Fprintln(out, "backup:", archive)
	fmt.Fprintln(out, "digest:", srcDigest)
	return nil
}

func printUsage(out io.Writer) {
	fmt.Fprintln(out, "usage:")
	fmt.Fprintln(out, "  idlectl simulate --config idlerealm.yml --slot default --for 8h --step 1m [--write] [--seed 1]")
	fmt.Fprintln(out, "  idlectl inspect  --config idlerealm.yml --slot default [--json]")
	fmt.Fprintln(out, "  idlectl backup   --config idlerealm.yml --out backups/saves.tar.gz")
	fmt.Fprintln(out, "  idlectl restore  --config idlerealm.yml --archive backups/saves.tar.gz")
	fmt.Fprintln(out, "  idlectl drill    --config idlerealm.yml --work-dir /tmp")
}
