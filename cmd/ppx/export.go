package main

import (
	"flag"
	"fmt"
	"os"
)

func runExport() {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	out := fs.String("o", "polipulse-export.json", "Output file")
	fs.Parse(os.Args[1:])

	e := openEnv()
	defer e.close()

	blob, err := e.store.ExportAll()
	if err != nil {
		fatalf("export: %v", err)
	}
	if err := os.WriteFile(*out, blob, 0644); err != nil {
		fatalf("export: %v", err)
	}

	fmt.Printf("wrote %s (%d bytes)\n", *out, len(blob))
}

func runImport() {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	fs.Parse(os.Args[1:])

	if fs.NArg() < 1 {
		fatalf("import: file argument required")
	}
	path := fs.Arg(0)

	blob, err := os.ReadFile(path)
	if err != nil {
		fatalf("import: %v", err)
	}

	e := openEnv()
	defer e.close()

	if err := e.store.ImportAll(blob); err != nil {
		fatalf("import: %v", err)
	}
	e.store.Flush()

	counts := e.store.Counts()
	fmt.Printf("imported %d entities, %d events, %d sources\n",
		counts["entities"], counts["feed"], counts["sources"])
}
