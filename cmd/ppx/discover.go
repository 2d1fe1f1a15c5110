package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/nvaughn/polipulse/internal/discovery"
	"github.com/nvaughn/polipulse/internal/provider"
)

func runDiscover() {
	fs := flag.NewFlagSet("discover", flag.ExitOnError)
	scan := fs.Bool("scan", false, "Ask the active backend for new source candidates")
	list := fs.Bool("list", false, "List unresolved candidates")
	accept := fs.String("accept", "", "Accept a candidate by domain")
	reject := fs.String("reject", "", "Reject a candidate by domain")
	fs.Parse(os.Args[1:])

	e := openEnv()
	defer e.close()

	pipeline := discovery.New(e.store, func() provider.Provider { return e.provider() })

	switch {
	case *scan:
		n, err := pipeline.Scan(context.Background())
		if err != nil {
			fatalf("discover: %v", err)
		}
		fmt.Printf("recorded %d candidates\n", n)

	case *accept != "":
		if err := pipeline.Accept(*accept); err != nil {
			fatalf("discover: accept %s: %v", *accept, err)
		}
		e.store.Flush()
		fmt.Printf("accepted %s\n", *accept)

	case *reject != "":
		if err := pipeline.Reject(*reject); err != nil {
			fatalf("discover: reject %s: %v", *reject, err)
		}
		e.store.Flush()
		fmt.Printf("rejected %s\n", *reject)

	case *list:
		fallthrough
	default:
		candidates := pipeline.Candidates()
		if len(candidates) == 0 {
			fmt.Println("no unresolved candidates")
			return
		}
		for _, d := range candidates {
			fmt.Printf("%-32s seen %dx  first %s  last %s\n",
				d.Domain, d.Count,
				d.FirstSeen.Format("2006-01-02"),
				d.LastSeen.Format("2006-01-02"))
		}
	}
}
