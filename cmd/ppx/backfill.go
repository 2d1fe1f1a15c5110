package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/nvaughn/polipulse/internal/model"
)

// backfillDelay spaces per-entity history requests during bulk
// backfill, mirroring the scheduler's pacing.
const backfillDelay = 2 * time.Second

func runBackfill() {
	fs := flag.NewFlagSet("backfill", flag.ExitOnError)
	days := fs.Int("days", 60, "History window in days")
	entityName := fs.String("entity", "", "Only this entity (name or id)")
	fs.Parse(os.Args[1:])

	e := openEnv()
	defer e.close()

	ctx := context.Background()
	if err := e.store.WaitForReady(ctx); err != nil {
		fatalf("backfill: %v", err)
	}

	var targets []model.Entity
	if *entityName != "" {
		targets = []model.Entity{mustFindEntity(e, *entityName)}
	} else {
		targets = e.store.Entities()
	}
	if len(targets) == 0 {
		fmt.Println("no entities tracked")
		return
	}

	p := e.provider()
	if !p.IsConfigured() {
		fatalf("backfill: provider %s not configured", p.Name())
	}

	for i, entity := range targets {
		if i > 0 {
			time.Sleep(backfillDelay)
		}

		points, err := p.FetchHistory(ctx, entity, *days)
		if err != nil {
			fmt.Printf("%-24s FAILED: %v\n", entity.Name, err)
			continue
		}
		if len(points) == 0 {
			fmt.Printf("%-24s no qualifying events\n", entity.Name)
			continue
		}

		entity.ApplyHistory(points, time.Now())
		if err := e.store.UpdateEntity(entity); err != nil {
			fmt.Printf("%-24s FAILED: %v\n", entity.Name, err)
			continue
		}
		fmt.Printf("%-24s %d points, score %.1f\n", entity.Name, len(points), entity.Score)
	}

	e.store.Flush()
}
