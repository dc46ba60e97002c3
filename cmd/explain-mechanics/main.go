// Coverage report for the mechanics extractor.
// Runs lenient extraction over a card database and lists the ability
// clauses no rule understands, most frequent first.
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/ppiankov/cardpricer/internal/extract"
	"github.com/ppiankov/cardpricer/internal/model"
	"github.com/ppiankov/cardpricer/internal/pipeline"
)

func main() {
	path := flag.String("data", "AllSets.json", "card database file")
	limit := flag.Int("limit", 25, "clauses listed")
	flag.Parse()

	cfg := model.DefaultConfig()
	cards, err := pipeline.NewLoader(cfg.Data).LoadFile(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("=== Mechanics Coverage ===")
	fmt.Printf("Database: %s (%d cards)\n\n", *path, len(cards))

	strictCfg := cfg.Extraction
	strictCfg.Strict = true
	_, _, stats, err := extract.NewProcessor(strictCfg, extract.DefaultRules()).ProcessAll(cards)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Strict mode: %d accepted, %d rejected\n", stats.Accepted, stats.Rejected())
	for _, reason := range []model.RejectionReason{
		model.RejectUnsupportedType,
		model.RejectUnsupportedMechanic,
		model.RejectUnrecognizedResidue,
	} {
		fmt.Printf("  - %s: %d\n", reason, stats.ByReason[reason])
	}

	lenientCfg := cfg.Extraction
	lenientCfg.Strict = false
	accepted, _, _, err := extract.NewProcessor(lenientCfg, extract.DefaultRules()).ProcessAll(cards)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	counts := make(map[string]int)
	examples := make(map[string]string)
	for _, c := range accepted {
		for _, clause := range strings.Split(c.Residue, ".") {
			clause = strings.TrimSpace(clause)
			if clause == "" {
				continue
			}
			counts[clause]++
			if _, ok := examples[clause]; !ok {
				examples[clause] = c.Card.Name
			}
		}
	}

	clauses := make([]string, 0, len(counts))
	for clause := range counts {
		clauses = append(clauses, clause)
	}
	sort.Slice(clauses, func(i, j int) bool {
		if counts[clauses[i]] != counts[clauses[j]] {
			return counts[clauses[i]] > counts[clauses[j]]
		}
		return clauses[i] < clauses[j]
	})

	fmt.Printf("\nUnrecognized clauses: %d distinct\n", len(clauses))
	fmt.Println(strings.Repeat("-", 60))
	for i, clause := range clauses {
		if i == *limit {
			fmt.Printf("... and %d more\n", len(clauses)-*limit)
			break
		}
		fmt.Printf("%4d  %s\n      e.g. %s\n", counts[clause], clause, examples[clause])
	}
}
