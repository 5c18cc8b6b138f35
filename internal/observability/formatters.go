// Package observability provides formatted output utilities for the CLI.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/resume-tailor/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for CLI reports
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, truncate(line, boxWidth-4))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// truncate shortens s to at most n runes
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// writeList writes up to limit items under a heading
func writeList(sb *strings.Builder, heading string, items []string, limit int) {
	if len(items) == 0 {
		return
	}
	sb.WriteString(heading + ":\n")
	count := min(len(items), limit)
	for i := 0; i < count; i++ {
		fmt.Fprintf(sb, "  • %s\n", items[i])
	}
	if len(items) > limit {
		fmt.Fprintf(sb, "  ... and %d more\n", len(items)-limit)
	}
	sb.WriteString("\n")
}

// PrintRequirements outputs a human-readable summary of extracted requirements.
func (p *Printer) PrintRequirements(reqs *types.RequirementSet) {
	if reqs == nil {
		return
	}

	var sb strings.Builder
	writeList(&sb, "Required", reqs.RequiredSkills, maxItemsToShow)
	writeList(&sb, "Preferred", reqs.PreferredSkills, maxItemsToShow)
	writeList(&sb, "Keywords", reqs.Keywords, maxItemsToShow)
	writeList(&sb, "Certifications", reqs.Certifications, 3)
	if reqs.MinYears != nil {
		fmt.Fprintf(&sb, "Min years:  %d\n", *reqs.MinYears)
	}
	if reqs.Education != nil {
		fmt.Fprintf(&sb, "Education:  %s\n", reqs.Education)
	}
	if sb.Len() == 0 {
		sb.WriteString("No requirements recognised")
	}

	p.printBox("EXTRACTED REQUIREMENTS", strings.TrimRight(sb.String(), "\n"))
}

// PrintRankedEntries outputs the ranked experience entries with scores and skills.
func (p *Printer) PrintRankedEntries(ranked []types.RankedEntry) {
	if len(ranked) == 0 {
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Entries selected: %d\n\n", len(ranked))

	for i, r := range ranked {
		title := fmt.Sprintf("entry %d", r.Index)
		var skills []string
		if r.Entry != nil {
			title = r.Entry.Title
			if r.Entry.Organization != "" {
				title += " @ " + r.Entry.Organization
			}
			skills = r.Entry.Skills
		}
		fmt.Fprintf(&sb, "#%d  %s\n", i+1, title)
		fmt.Fprintf(&sb, "    Score: %.3f\n", r.Score)
		if len(skills) > 0 {
			fmt.Fprintf(&sb, "    Skills: %s\n", truncate(strings.Join(skills, ", "), 40))
		}
		if i < len(ranked)-1 {
			sb.WriteString("\n")
		}
	}

	p.printBox("TOP RANKED EXPERIENCE", strings.TrimRight(sb.String(), "\n"))
}

// PrintATS outputs the ATS score breakdown and per-bullet quality.
func (p *Printer) PrintATS(meta *types.ATSMetadata) {
	if meta == nil {
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Overall:    %6.2f\n", meta.Overall)
	fmt.Fprintf(&sb, "Required:   %6.2f\n", meta.RequiredScore)
	fmt.Fprintf(&sb, "Keywords:   %6.2f\n", meta.KeywordScore)
	fmt.Fprintf(&sb, "Preferred:  %6.2f\n\n", meta.PreferredScore)

	writeList(&sb, "Missing required", meta.MissingRequiredSkills, maxItemsToShow)
	writeList(&sb, "Matched keywords", meta.MatchedKeywords, maxItemsToShow)

	if len(meta.Bullets) > 0 {
		sb.WriteString("Bullets:\n")
		count := min(len(meta.Bullets), maxItemsToShow)
		for i := 0; i < count; i++ {
			b := meta.Bullets[i]
			checks := []string{}
			if b.HasActionVerb {
				checks = append(checks, "✓verb")
			}
			if b.HasMetric {
				checks = append(checks, "✓metrics")
			}
			if b.Capitalized {
				checks = append(checks, "✓case")
			}
			fmt.Fprintf(&sb, "  %3.0f  %s\n", b.Score, truncate(b.Text, 45))
			if len(checks) > 0 {
				fmt.Fprintf(&sb, "       [%s]\n", strings.Join(checks, " "))
			}
		}
		if len(meta.Bullets) > maxItemsToShow {
			fmt.Fprintf(&sb, "  ... and %d more bullets\n", len(meta.Bullets)-maxItemsToShow)
		}
	}

	p.printBox("ATS SCORE", strings.TrimRight(sb.String(), "\n"))
}

// PrintTrace outputs a session's debug trace, one entry per line.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintTrace(sess *types.TailoringSession) {
	if sess == nil {
		return
	}

	fmt.Fprintf(p.out, "session %s  %s  attempts=%d  version=%d\n", sess.ID, sess.Status, sess.Attempts, sess.Version)
	if sess.FailureReason != "" {
		fmt.Fprintf(p.out, "failure (%s): %s\n", sess.FailureStage, sess.FailureReason)
	}
	if len(sess.Trace) == 0 {
		fmt.Fprintln(p.out, "no trace entries")
		return
	}
	for _, e := range sess.Trace {
		fmt.Fprintf(p.out, "  %d  %s\n", e.Attempt, e.String())
	}
}
