package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/nvaughn/polipulse/internal/model"
)

func runAdd() {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	name := fs.String("name", "", "Display name (required)")
	role := fs.String("role", "", "Role or office")
	party := fs.String("party", "", "Party affiliation")
	bio := fs.String("bio", "", "Free-text descriptors")
	fs.Parse(os.Args[1:])

	if *name == "" {
		fatalf("add: -name is required")
	}

	e := openEnv()
	defer e.close()

	now := time.Now()
	entity := model.Entity{
		ID:        uuid.NewString(),
		Name:      *name,
		Role:      *role,
		Party:     *party,
		Bio:       *bio,
		Score:     model.BaselineScore,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if !e.store.AddEntity(entity) {
		fatalf("add: entity %s already tracked", entity.ID)
	}
	e.store.Flush()

	fmt.Printf("tracking %s (%s)\n", entity.Name, entity.ID)
}

func runRemove() {
	fs := flag.NewFlagSet("rm", flag.ExitOnError)
	fs.Parse(os.Args[1:])

	if fs.NArg() < 1 {
		fatalf("rm: entity id required")
	}
	id := fs.Arg(0)

	e := openEnv()
	defer e.close()

	if !e.store.RemoveEntity(id) {
		fatalf("rm: no entity with id %s", id)
	}
	e.store.Flush()

	fmt.Printf("removed %s\n", id)
}
