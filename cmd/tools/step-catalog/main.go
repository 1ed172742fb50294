// cmd/tools/step-catalog/main.go
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"crew-onboarding/internal/steps"
	"crew-onboarding/pkg/catalog"
)

func main() {
	generateCmd := flag.NewFlagSet("generate", flag.ExitOnError)
	checkCmd := flag.NewFlagSet("check", flag.ExitOnError)
	listCmd := flag.NewFlagSet("list", flag.ExitOnError)

	genPath := generateCmd.String("path", "configs/step-catalog.json", "Path to the catalog file")
	version := generateCmd.String("version", "1.0.0", "Catalog version")
	checkPath := checkCmd.String("path", "configs/step-catalog.json", "Path to the catalog file")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	reg := steps.Default()

	switch os.Args[1] {
	case "generate":
		generateCmd.Parse(os.Args[2:])
		c := catalog.Build(reg, *version, time.Now())
		if err := catalog.Save(c, *genPath); err != nil {
			fmt.Printf("Error writing catalog: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote %d steps to %s\n", len(c.Steps), *genPath)

	case "check":
		checkCmd.Parse(os.Args[2:])
		published, err := catalog.Load(*checkPath)
		if err != nil {
			fmt.Printf("Error loading catalog: %v\n", err)
			os.Exit(1)
		}
		drift := catalog.Diff(published, catalog.Build(reg, published.Version, time.Now()))
		if len(drift) > 0 {
			fmt.Printf("Catalog %s is out of date:\n  %s\n", *checkPath, strings.Join(drift, "\n  "))
			fmt.Println("Run 'step-catalog generate' and commit the result.")
			os.Exit(1)
		}
		fmt.Printf("Catalog check passed. Found %d steps.\n", len(published.Steps))

	case "list":
		listCmd.Parse(os.Args[2:])
		for _, s := range reg.Catalog() {
			marker := " "
			if s.Conditional {
				marker = "?"
			}
			fmt.Printf("%2d %s %-17s %-22s required: %s\n", s.Index, marker, s.Key, s.Title, strings.Join(s.RequiredFields, ", "))
		}

	case "help":
		fallthrough
	default:
		help()
	}
}

func help() {
	fmt.Println(`
Usage: step-catalog <command> [flags]

Commands:
  generate  Write the wizard step catalog as JSON
  check     Fail when the committed catalog differs from the step registry
  list      Print the steps in canonical order (? marks conditional steps)
  help      Show this help message

Examples:
  step-catalog generate -path configs/step-catalog.json -version 1.1.0
  step-catalog check -path configs/step-catalog.json
  step-catalog list`)
}
