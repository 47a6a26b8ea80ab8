// File: cmd/validate/main.go
// Offline content checker for scenario authors. Walks the content
// directory, validates every scenario.yaml, and verifies that referenced
// documents exist. Exits non-zero when any scenario has errors.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"chattrain/internal/content"
)

func main() {
	dir := flag.String("content", "content", "content directory to validate")
	flag.Parse()

	nop := zerolog.Nop()
	loader := content.NewLoader(*dir, 0, nil, &nop)

	ids := loader.ListIDs()
	if len(ids) == 0 {
		fmt.Fprintf(os.Stderr, "no scenarios found under %s\n", *dir)
		os.Exit(1)
	}

	ctx := context.Background()
	failed := 0
	for _, id := range ids {
		report := loader.Validate(ctx, id)
		if report.Valid {
			fmt.Printf("ok    %s (%s)\n", id, report.Title)
		} else {
			failed++
			fmt.Printf("FAIL  %s\n", id)
			for _, e := range report.Errors {
				fmt.Printf("      error: %s\n", e)
			}
		}
		for _, w := range report.Warnings {
			fmt.Printf("      warning: %s\n", w)
		}
	}

	fmt.Printf("%d scenario(s), %d failed\n", len(ids), failed)
	if failed > 0 {
		os.Exit(1)
	}
}
