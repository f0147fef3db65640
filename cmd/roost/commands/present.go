package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/dyluth/roost/internal/printer"
	"github.com/dyluth/roost/internal/report"
	"github.com/dyluth/roost/internal/resolver"
	"github.com/dyluth/roost/internal/scoring"
	"github.com/dyluth/roost/internal/session"
	"github.com/dyluth/roost/pkg/board"
	"github.com/spf13/cobra"
)

var presentCmd = &cobra.Command{
	Use:   "present <id|code>",
	Short: "Drive a presentation from the terminal",
	Long: `Drive a presentation from the terminal.

The session is stored in Redis, so voters (roost join, or roostd clients)
follow along, and a restarted presenter picks up where it left off.

Keys (followed by Enter):
  n or Enter  start the slide, or advance to the next one
  b           back to the previous slide
  p           pause or resume the countdown
  r           reset the current slide
  t           show the tally for the current slide
  l           show the leaderboard
  e           end the session and quit
  q           quit, leaving the session running`,
	Args: cobra.ExactArgs(1),
	RunE: runPresent,
}

func init() {
	rootCmd.AddCommand(presentCmd)
}

func runPresent(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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
		return printer.Error("nothing to present", fmt.Sprintf("%q has no slides.", p.Title), nil)
	}

	code, err := resolver.CodeFor(ctx, client, p.ID)
	if err != nil {
		return fmt.Errorf("failed to derive join code: %w", err)
	}

	var mu sync.Mutex
	render := func(s session.State) {
		mu.Lock()
		defer mu.Unlock()
		renderState(s)
	}

	ctrl, err := session.NewController(ctx, client, p, session.WithOnChange(render))
	if err != nil {
		return fmt.Errorf("failed to create presenter: %w", err)
	}
	defer ctrl.Close()

	printer.Step("Presenting %q, join code %s\n", p.Title, code)
	if err := ctrl.Restore(ctx); err != nil {
		return printer.Error("failed to restore session", err.Error(), nil)
	}

	votes, err := client.SubscribeVoteEvents(ctx, p.ID)
	if err != nil {
		printer.Warning("live vote feed unavailable: %v\n", err)
	} else {
		defer votes.Close()
		go func() {
			events, errs := votes.Events(), votes.Errors()
			for events != nil || errs != nil {
				select {
				case ev, ok := <-events:
					if !ok {
						events = nil
						continue
					}
					if ev.Kind == board.VoteEventRecorded && ev.Vote != nil {
						mu.Lock()
						printer.Info("  + %s answered\n", ev.Vote.VoterName)
						mu.Unlock()
					}
				case err, ok := <-errs:
					if !ok {
						errs = nil
						continue
					}
					mu.Lock()
					printer.Warning("skipped unreadable vote event: %v\n", err)
					mu.Unlock()
				}
			}
		}()
	}

	return presentLoop(ctx, ctrl, client, p, cmd.InOrStdin())
}

// presentLoop executes one command per input line until quit, end or EOF.
func presentLoop(ctx context.Context, ctrl *session.Controller, store *board.Client, p *board.Presentation, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- strings.TrimSpace(scanner.Text()):
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			printer.Info("\nLeaving the session running.\n")
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}

			done, err := presentCommand(ctx, ctrl, store, p, line)
			if err != nil {
				printer.Warning("%v\n", err)
			}
			if done {
				return nil
			}
		}
	}
}

func presentCommand(ctx context.Context, ctrl *session.Controller, store *board.Client, p *board.Presentation, line string) (bool, error) {
	state := ctrl.State()

	switch line {
	case "", "n":
		if state.Session.Phase == board.PhaseReady {
			return false, ctrl.Start(ctx)
		}
		err := ctrl.Advance(ctx)
		if errors.Is(err, session.ErrNoNextSlide) {
			return false, errors.New("this is the last slide, 'e' ends the session")
		}
		return false, err
	case "b":
		return false, ctrl.Back(ctx)
	case "p":
		if state.Session.Paused {
			return false, ctrl.Resume(ctx)
		}
		return false, ctrl.Pause(ctx)
	case "r":
		return false, ctrl.Reset(ctx)
	case "t":
		votes, err := store.GetVotesForSlide(ctx, p.ID, state.Slide.ID)
		if err != nil {
			return false, err
		}
		report.FormatResults(printer.Out, &state.Slide, votes)
		return false, nil
	case "l":
		votes, err := store.GetVotesForPresentation(ctx, p.ID)
		if err != nil {
			return false, err
		}
		report.FormatLeaderboard(printer.Out, scoring.Leaderboard(p, votes))
		return false, nil
	case "e":
		if err := ctrl.End(ctx); err != nil {
			return false, err
		}
		printer.Success("Session ended\n")
		return true, nil
	case "q":
		printer.Info("Leaving the session running.\n")
		return true, nil
	default:
		return false, fmt.Errorf("unknown key %q (n, b, p, r, t, l, e, q)", line)
	}
}

func renderState(s session.State) {
	text := s.Slide.Question
	if s.Slide.Type == board.SlideTypeHeading && s.Slide.Title != "" {
		text = s.Slide.Title
	}

	timer := ""
	if s.Session.Phase.Timed() {
		timer = fmt.Sprintf(" %ds", (s.RemainingMs+999)/1000)
	}

	printer.Info("[%d/%d] %s%s  %s\n", s.SlideIndex+1, s.SlideCount, printer.Phase(s.Session.Phase, s.Session.Paused), timer, text)
	if s.Session.Phase == board.PhaseVoting && !s.Session.Paused {
		for i, o := range s.Slide.Options {
			printer.Info("      %d. %s\n", i+1, o.Text)
		}
	}
}
