package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/dyluth/roost/internal/printer"
	"github.com/dyluth/roost/internal/report"
	"github.com/dyluth/roost/internal/scoring"
	"github.com/dyluth/roost/internal/timespec"
	"github.com/dyluth/roost/pkg/board"
	"github.com/spf13/cobra"
)

var (
	resultsSlide      int
	leaderboardOutput string
	votesOutput       string
	votesSince        string
	votesUntil        string
	votesSlide        int
	votesVoter        string
)

var resultsCmd = &cobra.Command{
	Use:   "results <id|code>",
	Short: "Show the tally of a slide",
	Long: `Show the tally of one slide: votes per option for multiple choice,
word counts for word clouds.

Without --slide the slide the session is on is shown, or the first slide
when nobody is presenting.`,
	Args: cobra.ExactArgs(1),
	RunE: runResults,
}

var leaderboardCmd = &cobra.Command{
	Use:   "leaderboard <id|code>",
	Short: "Show cumulative scores across all slides",
	Args:  cobra.ExactArgs(1),
	RunE:  runLeaderboard,
}

var votesCmd = &cobra.Command{
	Use:   "votes <id|code>",
	Short: "Inspect the vote log with filtering",
	Long: `Inspect the vote log of a presentation, oldest first.

Time Filters:
  --since  - votes cast after this time (duration like 1h or RFC3339)
  --until  - votes cast before this time

Content Filters:
  --slide  - slide number, starting at 1
  --voter  - voter name glob ("a*", "*son")

Examples:
  roost votes abcd --since=15m
  roost votes abcd --slide=2 -o jsonl | jq -r .voter_name`,
	Args: cobra.ExactArgs(1),
	RunE: runVotes,
}

func init() {
	resultsCmd.Flags().IntVar(&resultsSlide, "slide", 0, "Slide number, starting at 1 (default: current slide)")

	leaderboardCmd.Flags().StringVarP(&leaderboardOutput, "output", "o", "default", "Output format: default or jsonl")

	votesCmd.Flags().StringVarP(&votesOutput, "output", "o", "default", "Output format: default or jsonl")
	votesCmd.Flags().StringVar(&votesSince, "since", "", "Show votes after time (duration or RFC3339)")
	votesCmd.Flags().StringVar(&votesUntil, "until", "", "Show votes before time (duration or RFC3339)")
	votesCmd.Flags().IntVar(&votesSlide, "slide", 0, "Slide number, starting at 1")
	votesCmd.Flags().StringVar(&votesVoter, "voter", "", "Voter name glob")

	rootCmd.AddCommand(resultsCmd, leaderboardCmd, votesCmd)
}

// slideAt maps a 1-based slide flag to a slide; 0 means none was given.
func slideAt(p *board.Presentation, n int) (*board.Slide, error) {
	if n < 1 || n > len(p.Slides) {
		return nil, printer.Error(
			"invalid slide number",
			fmt.Sprintf("%q has %d slides, got --slide=%d.", p.Title, len(p.Slides), n),
			nil,
		)
	}
	return &p.Slides[n-1], nil
}

func runResults(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	client, _, err := connect(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	p, err := resolvePresentation(ctx, client, args[0])
	if err != nil {
		return err
	}
	if len(p.Slides) == 0 {
		return printer.Error("no slides", fmt.Sprintf("%q has no slides.", p.Title), nil)
	}

	var slide *board.Slide
	if resultsSlide != 0 {
		if slide, err = slideAt(p, resultsSlide); err != nil {
			return err
		}
	} else {
		slide = &p.Slides[0]
		if s, err := client.GetSession(ctx, p.ID); err == nil {
			if current, _ := p.FindSlide(s.SlideID); current != nil {
				slide = current
			}
		}
	}

	votes, err := client.GetVotesForSlide(ctx, p.ID, slide.ID)
	if err != nil {
		return fmt.Errorf("failed to read votes: %w", err)
	}

	report.FormatResults(printer.Out, slide, votes)
	return nil
}

func runLeaderboard(cmd *cobra.Command, args []string) error {
	format, err := report.ParseOutputFormat(leaderboardOutput)
	if err != nil {
		return printer.Error("invalid output format", err.Error(), []string{"Valid formats: default, jsonl"})
	}

	ctx := context.Background()
	client, _, err := connect(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	p, err := resolvePresentation(ctx, client, args[0])
	if err != nil {
		return err
	}

	votes, err := client.GetVotesForPresentation(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("failed to read votes: %w", err)
	}

	entries := scoring.Leaderboard(p, votes)
	if format == report.OutputFormatJSONL {
		return report.FormatJSONL(printer.Out, entries)
	}
	report.FormatLeaderboard(printer.Out, entries)
	return nil
}

func runVotes(cmd *cobra.Command, args []string) error {
	format, err := report.ParseOutputFormat(votesOutput)
	if err != nil {
		return printer.Error("invalid output format", err.Error(), []string{"Valid formats: default, jsonl"})
	}

	now := time.Now()
	window, err := timespec.ParseRange(votesSince, votesUntil, now)
	if err != nil {
		return printer.Error("invalid time filter", err.Error(), []string{"Use a duration like 1h30m or RFC3339 like 2026-03-14T15:00:00Z"})
	}

	filter := &report.VoteFilter{Window: window, VoterGlob: votesVoter}
	if err := filter.Validate(); err != nil {
		return printer.Error("invalid voter filter", err.Error(), nil)
	}

	ctx := context.Background()
	client, _, err := connect(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	p, err := resolvePresentation(ctx, client, args[0])
	if err != nil {
		return err
	}

	if votesSlide != 0 {
		slide, err := slideAt(p, votesSlide)
		if err != nil {
			return err
		}
		filter.SlideID = slide.ID
	}

	votes, err := report.ListVotes(ctx, client, p.ID, filter)
	if err != nil {
		return err
	}

	if format == report.OutputFormatJSONL {
		return report.FormatJSONL(printer.Out, votes)
	}
	report.FormatVotes(printer.Out, p, votes, now)
	return nil
}
