package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/ppiankov/cardpricer/internal/extract"
	"github.com/ppiankov/cardpricer/internal/model"
)

// Renderer writes reports as JSON, Markdown and console summaries
type Renderer struct {
	top int
}

// NewRenderer creates a renderer listing at most top cards per section;
// 0 lists every card
func NewRenderer(top int) *Renderer {
	return &Renderer{top: top}
}

// RenderJSON writes the full report as indented JSON
func (r *Renderer) RenderJSON(report *model.Report, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}

// RenderMarkdown writes a human-readable report
func (r *Renderer) RenderMarkdown(report *model.Report, path string) error {
	return os.WriteFile(path, []byte(r.Markdown(report)), 0644)
}

// Markdown formats a report as Markdown
func (r *Renderer) Markdown(report *model.Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Card pricing report\n\n")
	fmt.Fprintf(&b, "- Run: `%s`\n", report.RunID)
	fmt.Fprintf(&b, "- Source: `%s`\n", report.Source)
	fmt.Fprintf(&b, "- Generated: %s\n", report.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "- Strict: %t, charge mode: `%s`\n", report.Strict, report.ChargeMode)
	if report.Refitted {
		fmt.Fprintf(&b, "- Coefficients: fitted on this data\n")
	} else {
		fmt.Fprintf(&b, "- Coefficients: supplied\n")
	}

	fmt.Fprintf(&b, "\n## Cards\n\n")
	fmt.Fprintf(&b, "| | Count |\n|---|---:|\n")
	fmt.Fprintf(&b, "| Loaded | %d |\n| Accepted | %d |\n", report.Stats.Total, report.Stats.Accepted)
	for _, reason := range reasons(report.Stats) {
		fmt.Fprintf(&b, "| Rejected: %s | %d |\n", reason, report.Stats.ByReason[reason])
	}

	fmt.Fprintf(&b, "\n## Coefficients\n\n")
	fmt.Fprintf(&b, "| Column | Weight |\n|---|---:|\n")
	for _, c := range report.Coefficients {
		fmt.Fprintf(&b, "| %s | %.4f |\n", c.Column, c.Weight)
	}

	under, over := r.split(report.Cards)

	fmt.Fprintf(&b, "\n## Most under-costed\n\n")
	writeCardTable(&b, report.PriceColumn, under)

	fmt.Fprintf(&b, "\n## Most over-costed\n\n")
	writeCardTable(&b, report.PriceColumn, over)

	fmt.Fprintf(&b, "\n## Method\n\n")
	fmt.Fprintf(&b, "- Target: `%s`\n", report.Principles.TargetTransform)
	fmt.Fprintf(&b, "- Inverse: `%s`\n", report.Principles.InverseTransform)
	fmt.Fprintf(&b, "- Solver: %s\n", report.Principles.Solver)
	fmt.Fprintf(&b, "- `diff = %s - cost`, `value = diff / (cost - intrinsic)` (0 when cost equals intrinsic)\n", report.PriceColumn)

	return b.String()
}

func writeCardTable(b *strings.Builder, priceColumn string, cards []model.PricedCard) {
	if len(cards) == 0 {
		fmt.Fprintf(b, "_none_\n")
		return
	}
	fmt.Fprintf(b, "| Name | Class | Cost | %s | Diff | Value |\n", priceColumn)
	fmt.Fprintf(b, "|---|---|---:|---:|---:|---:|\n")
	for _, c := range cards {
		fmt.Fprintf(b, "| %s | %s | %d | %.2f | %+.2f | %+.3f |\n",
			escapeCell(c.Name), c.PlayerClass, c.Cost, c.Price, c.Diff, c.Value)
	}
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// RenderSummary prints the run statistics and the top cards to w
func (r *Renderer) RenderSummary(w io.Writer, report *model.Report) error {
	var b strings.Builder

	fmt.Fprintf(&b, "\nSource:    %s\n", report.Source)
	fmt.Fprintf(&b, "Run:       %s\n", report.RunID)
	fmt.Fprintf(&b, "Cards:     %d loaded, %d accepted, %d rejected\n",
		report.Stats.Total, report.Stats.Accepted, report.Stats.Rejected())
	for _, reason := range reasons(report.Stats) {
		fmt.Fprintf(&b, "           %-22s %d\n", reason, report.Stats.ByReason[reason])
	}

	fmt.Fprintf(&b, "\nCoefficients:\n")
	for _, c := range report.Coefficients {
		fmt.Fprintf(&b, "  %-24s %10.4f\n", c.Column, c.Weight)
	}

	under, _ := r.split(report.Cards)
	fmt.Fprintf(&b, "\n%-32s %-10s %4s %8s %8s %8s\n", "Name", "Class", "Cost", report.PriceColumn, "Diff", "Value")
	for _, c := range under {
		fmt.Fprintf(&b, "%-32s %-10s %4d %8.2f %+8.2f %+8.3f\n",
			truncate(c.Name, 32), c.PlayerClass, c.Cost, c.Price, c.Diff, c.Value)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderExplanation prints how each card was processed
func (r *Renderer) RenderExplanation(w io.Writer, exps []*extract.Explanation) error {
	var b strings.Builder

	for i, exp := range exps {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s (%s, cost %d)\n", exp.Card.Name, exp.Card.Type, exp.Card.Cost)
		fmt.Fprintf(&b, "  kind:       %s\n", exp.Kind)
		if len(exp.Card.Mechanics) > 0 {
			fmt.Fprintf(&b, "  mechanics:  %s\n", strings.Join(exp.Card.Mechanics, ", "))
		}
		if exp.Card.Text != "" {
			fmt.Fprintf(&b, "  text:       %q\n", exp.Card.Text)
			fmt.Fprintf(&b, "  sanitized:  %q\n", exp.Sanitized)
		}
		if exp.Extraction != nil {
			for _, step := range exp.Extraction.Steps {
				fmt.Fprintf(&b, "  rule %-16s %q -> %q %s\n", step.Rule, step.Before, step.After, formatFeatures(step.Features))
			}
			if exp.Extraction.Residue != "" {
				fmt.Fprintf(&b, "  residue:    %q\n", exp.Extraction.Residue)
			}
		}
		if exp.Rejection != nil {
			fmt.Fprintf(&b, "  rejected:   %s (%s)\n", exp.Rejection.Reason, exp.Rejection.Detail)
			continue
		}
		fmt.Fprintf(&b, "  features:   %s\n", formatFeatures(exp.Features))
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func formatFeatures(f model.Features) string {
	parts := make([]string, 0, len(f))
	for _, name := range f.Names() {
		parts = append(parts, fmt.Sprintf("%s=%g", name, f[name]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// split returns the top under-costed cards and the top over-costed cards,
// the latter most over-costed first. Cards arrive sorted by diff.
func (r *Renderer) split(cards []model.PricedCard) ([]model.PricedCard, []model.PricedCard) {
	n := len(cards)
	if r.top > 0 && r.top < n {
		n = r.top
	}

	under := cards[:n]
	over := make([]model.PricedCard, n)
	for i := 0; i < n; i++ {
		over[i] = cards[len(cards)-1-i]
	}
	return under, over
}

func reasons(stats model.RejectionStats) []model.RejectionReason {
	out := make([]model.RejectionReason, 0, len(stats.ByReason))
	for reason := range stats.ByReason {
		out = append(out, reason)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
