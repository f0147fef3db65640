// Package report renders presentations, votes and scores for the terminal.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dyluth/roost/internal/scoring"
	"github.com/dyluth/roost/pkg/board"
)

// OutputFormat selects between the table and machine-readable renderings.
type OutputFormat string

const (
	// OutputFormatDefault is a human-readable table
	OutputFormatDefault OutputFormat = "default"

	// OutputFormatJSONL is one JSON object per line
	OutputFormatJSONL OutputFormat = "jsonl"
)

// ParseOutputFormat validates the -o flag.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputFormatDefault, OutputFormatJSONL:
		return OutputFormat(s), nil
	default:
		return "", fmt.Errorf("unknown output format: %s", s)
	}
}

// FormatPresentations writes the dashboard list as a table.
func FormatPresentations(w io.Writer, list []*board.Presentation, instanceName string, now time.Time) {
	if len(list) == 0 {
		fmt.Fprintf(w, "No presentations found for instance '%s'\n", instanceName)
		return
	}

	fmt.Fprintf(w, "Presentations for instance '%s':\n\n", instanceName)
	fmt.Fprintf(w, "%-10s %-6s %-10s %s\n", "ID", "SLIDES", "UPDATED", "TITLE")
	fmt.Fprintf(w, "%-10s %-6s %-10s %s\n", "----------", "------", "----------", "----------------------------------------")
	for _, p := range list {
		fmt.Fprintf(w, "%-10s %-6d %-10s %s\n",
			shortID(p.ID),
			len(p.Slides),
			formatAge(p.UpdatedAtMs, now),
			truncate(p.Title, 40),
		)
	}

	fmt.Fprintf(w, "\n%s found\n", plural(len(list), "presentation"))
}

// FormatSlides writes the slide outline of one presentation.
func FormatSlides(w io.Writer, p *board.Presentation) {
	fmt.Fprintf(w, "%s  (%s)\n\n", p.Title, p.ID)
	for i := range p.Slides {
		s := &p.Slides[i]
		text := s.Question
		if s.Type == board.SlideTypeHeading && s.Title != "" {
			text = s.Title
		}
		fmt.Fprintf(w, "%2d. [%s] %s\n", i+1, s.Type, truncate(text, 60))

		if s.Type == board.SlideTypeHeading {
			continue
		}
		timing := fmt.Sprintf("vote %ds", s.EffectiveDuration())
		if s.FirstPhase() == board.PhaseReading {
			timing = fmt.Sprintf("read %ds, %s", s.EffectiveReadingDuration(), timing)
		}
		fmt.Fprintf(w, "      %s, %d points\n", timing, s.EffectiveMaxPoints())
		for _, o := range s.Options {
			mark := " "
			if o.IsCorrect {
				mark = "*"
			}
			fmt.Fprintf(w, "      %s %s\n", mark, o.Text)
		}
	}
}

// FormatLeaderboard writes ranked scores.
func FormatLeaderboard(w io.Writer, entries []scoring.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No votes yet")
		return
	}

	fmt.Fprintf(w, "%-4s %-24s %7s %7s %8s\n", "RANK", "VOTER", "SCORE", "CORRECT", "ANSWERED")
	fmt.Fprintf(w, "%-4s %-24s %7s %7s %8s\n", "----", "------------------------", "-------", "-------", "--------")
	rank := 0
	for i, e := range entries {
		// Equal scores share a rank
		if i == 0 || e.Score != entries[i-1].Score {
			rank = i + 1
		}
		fmt.Fprintf(w, "%-4d %-24s %7d %7d %8d\n", rank, truncate(e.VoterName, 24), e.Score, e.Correct, e.Answered)
	}
}

// FormatResults writes the tally of one slide with a bar per option.
func FormatResults(w io.Writer, slide *board.Slide, votes []board.Vote) {
	fmt.Fprintf(w, "%s\n\n", slide.Question)

	if slide.Type == board.SlideTypeWordCloud {
		words := scoring.WordCloud(votes)
		if len(words) == 0 {
			fmt.Fprintln(w, "No answers yet")
			return
		}
		for _, wc := range words {
			fmt.Fprintf(w, "%-24s %4d\n", truncate(wc.Word, 24), wc.Count)
		}
		return
	}

	results := scoring.Results(slide, votes)
	total := scoring.Total(results)
	for _, r := range results {
		mark := " "
		if r.IsCorrect {
			mark = "*"
		}
		fmt.Fprintf(w, "%s %-30s %4d  %s\n", mark, truncate(r.Text, 30), r.Votes, bar(r.Votes, total, 30))
	}
	fmt.Fprintf(w, "\n%s\n", plural(total, "vote"))
}

// FormatVotes writes the vote log as a table.
func FormatVotes(w io.Writer, p *board.Presentation, votes []board.Vote, now time.Time) {
	if len(votes) == 0 {
		fmt.Fprintln(w, "No votes found")
		return
	}

	fmt.Fprintf(w, "%-8s %-5s %-20s %-30s %8s\n", "AGE", "SLIDE", "VOTER", "ANSWER", "TIME")
	fmt.Fprintf(w, "%-8s %-5s %-20s %-30s %8s\n", "--------", "-----", "--------------------", "------------------------------", "--------")
	for _, v := range votes {
		slideNo := "-"
		answer := v.Text
		if slide, idx := p.FindSlide(v.SlideID); slide != nil {
			slideNo = fmt.Sprintf("%d", idx+1)
			if o := slide.FindOption(v.OptionID); o != nil {
				answer = o.Text
			}
		}
		if answer == "" {
			answer = v.OptionID
		}

		taken := "-"
		if v.TimeTakenMs != nil {
			taken = fmt.Sprintf("%.1fs", float64(*v.TimeTakenMs)/1000)
		}

		fmt.Fprintf(w, "%-8s %-5s %-20s %-30s %8s\n",
			formatAge(v.TimestampMs, now), slideNo, truncate(v.VoterName, 20), truncate(answer, 30), taken)
	}

	fmt.Fprintf(w, "\n%s found\n", plural(len(votes), "vote"))
}

// FormatJSONL writes each item as one compact JSON line.
func FormatJSONL[T any](w io.Writer, items []T) error {
	enc := json.NewEncoder(w)
	for _, item := range items {
		if err := enc.Encode(item); err != nil {
			return fmt.Errorf("failed to write JSONL output: %w", err)
		}
	}
	return nil
}

// FormatSingleJSON writes v as indented JSON.
func FormatSingleJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
		return fmt.Errorf("failed to write JSON output: %w", err)
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// truncate shortens s to max runes, first line only.
func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	if s == "" {
		return "-"
	}
	r := []rune(s)
	if len(r) > max {
		return string(r[:max-3]) + "..."
	}
	return s
}

func bar(n, total, width int) string {
	if total == 0 {
		return ""
	}
	return strings.Repeat("█", n*width/total)
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

// formatAge renders a millisecond timestamp relative to now ("2m ago").
func formatAge(tsMs int64, now time.Time) string {
	if tsMs == 0 {
		return "-"
	}

	diff := now.Sub(time.UnixMilli(tsMs))
	switch {
	case diff < time.Minute:
		return fmt.Sprintf("%ds ago", int(diff.Seconds()))
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	}
}
