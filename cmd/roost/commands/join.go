package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/dyluth/roost/internal/printer"
	"github.com/dyluth/roost/internal/voter"
	"github.com/dyluth/roost/pkg/board"
	"github.com/spf13/cobra"
)

var joinName string

var joinCmd = &cobra.Command{
	Use:   "join <code>",
	Short: "Take part in a presentation as a voter",
	Long: `Join a presentation with its join code and vote from the terminal.

While voting is open, type the number of an option (multiple choice) or a
word (word cloud) and press Enter. Each slide accepts one answer.`,
	Args: cobra.ExactArgs(1),
	RunE: runJoin,
}

func init() {
	joinCmd.Flags().StringVar(&joinName, "name", "", "Your display name (required)")
	joinCmd.MarkFlagRequired("name")
	rootCmd.AddCommand(joinCmd)
}

func runJoin(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, cfg, err := connect(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	v, err := voter.Join(ctx, client, args[0], joinName)
	switch {
	case errors.Is(err, voter.ErrInvalidCode):
		return printer.Error("invalid code", fmt.Sprintf("No presentation matches '%s'.", args[0]), []string{"Check the code shown by the presenter"})
	case errors.Is(err, voter.ErrInvalidName):
		return printer.Error("invalid name", err.Error(), nil)
	case err != nil:
		return fmt.Errorf("failed to join: %w", err)
	}

	printer.Step("Joined %q as %s\n", v.Presentation().Title, v.Name())

	var mu sync.Mutex
	var last viewKey
	go v.Watch(ctx, cfg.Voter.PollInterval, func(view voter.View) {
		mu.Lock()
		defer mu.Unlock()
		if key := keyOf(view); key != last {
			last = key
			renderView(view)
		}
	})

	return answerLoop(ctx, v, cmd.InOrStdin())
}

// viewKey is what must change for the voter screen to be redrawn.
type viewKey struct {
	screen  voter.Screen
	slideID string
	paused  bool
}

func keyOf(view voter.View) viewKey {
	k := viewKey{screen: view.Screen, paused: view.Paused}
	if view.Slide != nil {
		k.slideID = view.Slide.ID
	}
	return k
}

func renderView(view voter.View) {
	switch view.Screen {
	case voter.ScreenWaiting:
		printer.Info("Waiting for the presenter...\n")
	case voter.ScreenReady:
		printer.Info("Get ready: %s\n", view.Slide.Question)
	case voter.ScreenReading:
		printer.Info("%s  %s (%ds)\n", printer.Phase(view.Phase, view.Paused), view.Slide.Question, view.RemainingSeconds)
	case voter.ScreenVoting:
		printer.Info("%s  %s (%ds)\n", printer.Phase(view.Phase, view.Paused), view.Slide.Question, view.RemainingSeconds)
		switch view.Slide.Type {
		case board.SlideTypeMultipleChoice:
			for i, o := range view.Slide.Options {
				printer.Info("  %d. %s\n", i+1, o.Text)
			}
		case board.SlideTypeWordCloud:
			printer.Info("  Type a word and press Enter\n")
		}
	case voter.ScreenSubmitted:
		printer.Success("Answer received, waiting for the next slide\n")
	case voter.ScreenFinished:
		printer.Info("Time is up\n")
	}
}

// answerLoop submits one answer per input line until EOF or ctx ends.
func answerLoop(ctx context.Context, v *voter.Voter, in io.Reader) error {
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
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if line == "" {
				continue
			}
			if err := submitLine(ctx, v, line); err != nil {
				printer.Warning("%v\n", err)
			}
		}
	}
}

// submitLine turns a typed line into an answer for the current slide.
func submitLine(ctx context.Context, v *voter.Voter, line string) error {
	if err := v.Refresh(ctx); err != nil {
		return err
	}

	view := v.View()
	if view.Slide == nil {
		return voter.ErrVotingClosed
	}

	answer := voter.Answer{Text: line}
	if view.Slide.Type == board.SlideTypeMultipleChoice {
		n, err := strconv.Atoi(line)
		if err != nil || n < 1 || n > len(view.Slide.Options) {
			return fmt.Errorf("pick an option between 1 and %d", len(view.Slide.Options))
		}
		answer = voter.Answer{OptionID: view.Slide.Options[n-1].ID}
	}

	return v.Submit(ctx, answer)
}
