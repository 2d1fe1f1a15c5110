package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/nvaughn/polipulse/internal/config"
	"github.com/nvaughn/polipulse/internal/model"
	"github.com/nvaughn/polipulse/internal/sched"
)

func runFetch() {
	fs := flag.NewFlagSet("fetch", flag.ExitOnError)
	entityName := fs.String("entity", "", "Only this entity (name or id)")
	brief := fs.Bool("brief", false, "Generate a narrative brief instead of polling")
	image := fs.Bool("image", false, "Fetch a portrait URL instead of polling")
	fs.Parse(os.Args[1:])

	e := openEnv()
	defer e.close()

	ctx := context.Background()

	if *brief || *image {
		entity := mustFindEntity(e, *entityName)
		p := e.provider()

		if *image {
			url, err := p.FetchImage(ctx, entity)
			if err != nil {
				fatalf("fetch image: %v", err)
			}
			if url == "" {
				fmt.Println("no portrait found")
				return
			}
			entity.ImageURL = url
			if err := e.store.UpdateEntity(entity); err != nil {
				fatalf("fetch image: save portrait: %v", err)
			}
			e.store.Flush()
			fmt.Println(url)
			return
		}

		text, err := p.Chat(ctx, briefPrompt(entity))
		if err != nil {
			fatalf("fetch brief: %v", err)
		}
		if text == "" {
			fmt.Println("active backend has no generative capability")
			return
		}
		fmt.Println(text)
		return
	}

	scheduler := sched.New(e.store, e.factory, func() config.ProviderConfig { return e.cfg.Provider })
	res := scheduler.FetchNow(ctx)
	e.store.Flush()

	fmt.Printf("tick: %d processed, %d updated, %d failed\n", res.Processed, res.Updated, res.Failed)
}

func briefPrompt(entity model.Entity) string {
	direction := "held steady"
	switch {
	case entity.Trend > 0:
		direction = "risen"
	case entity.Trend < 0:
		direction = "fallen"
	}
	return fmt.Sprintf(
		"In 3 sentences, summarize why public sentiment about %s (%s, %s) has recently %s. Current tracking score: %.1f.",
		entity.Name, entity.Role, entity.Party, direction, entity.Score)
}

// mustFindEntity resolves -entity by id first, then display name.
func mustFindEntity(e *env, nameOrID string) model.Entity {
	if nameOrID == "" {
		fatalf("-entity is required for this flag")
	}
	if entity, err := e.store.GetEntity(nameOrID); err == nil {
		return entity
	}
	for _, entity := range e.store.Entities() {
		if entity.Name == nameOrID {
			return entity
		}
	}
	fatalf("no entity matching %q", nameOrID)
	return model.Entity{} // unreachable
}
