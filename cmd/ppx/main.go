// Command ppx is the unified CLI for polipulse maintenance and
// debugging.
//
// Usage:
//
//	ppx                     Show help
//	ppx add                 Track a new entity
//	ppx rm <id>             Stop tracking an entity
//	ppx fetch               Poll once, or fetch a brief/portrait
//	ppx backfill            Reconstruct history through the active backend
//	ppx stats               Store, schedule and analytics overview
//	ppx discover            Source discovery: scan, list, accept, reject
//	ppx export              Write every collection to one JSON document
//	ppx import              Replace state from an exported document
package main

import (
	"fmt"
	"os"
)

const usage = `ppx - polipulse maintenance CLI

Usage:
  ppx <command> [flags]

Commands:
  add         Track a new entity (-name, -role, -party, -bio)
  rm          Stop tracking an entity by id
  fetch       Poll every entity once, or -entity with -brief / -image
  backfill    Reconstruct history (-days, optional -entity)
  stats       Store, schedule and per-entity analytics overview
  discover    Source discovery (-scan | -list | -accept d | -reject d)
  export      Write every collection to one JSON document (-o file)
  import      Replace all state from an exported document

Environment:
  GEMINI_API_KEY / GOOGLE_API_KEY   Gemini credentials
  OPENAI_API_KEY                    OpenAI credentials
  OLLAMA_HOST                       Ollama endpoint

Run 'ppx <command> -h' for command-specific help.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Print(usage)
		os.Exit(0)
	}

	cmd := os.Args[1]
	// Strip the program name + subcommand so flag sets see only their flags
	os.Args = os.Args[1:]

	switch cmd {
	case "add":
		runAdd()
	case "rm":
		runRemove()
	case "fetch":
		runFetch()
	case "backfill":
		runBackfill()
	case "stats":
		runStats()
	case "discover":
		runDiscover()
	case "export":
		runExport()
	case "import":
		runImport()
	case "-h", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "ppx: unknown command %q\n\n", cmd)
		fmt.Print(usage)
		os.Exit(1)
	}
}
