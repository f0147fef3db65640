package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dyluth/roost/internal/config"
	"github.com/dyluth/roost/internal/printer"
	"github.com/dyluth/roost/internal/report"
	"github.com/dyluth/roost/internal/resolver"
	"github.com/dyluth/roost/pkg/board"
	"github.com/spf13/cobra"
)

var (
	listOutput string
	showOutput string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List presentations, newest first",
	Long: `List presentations in the instance, newest first.

With --owner only that owner's presentations are shown.

Examples:
  roost list
  roost list --owner alice -o jsonl | jq .title`,
	Args: cobra.NoArgs,
	RunE: runList,
}

var createCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Create a presentation with one starter slide",
	Args:  cobra.ExactArgs(1),
	RunE:  runCreate,
}

var importCmd = &cobra.Command{
	Use:   "import <deck.yml>",
	Short: "Create a presentation from a YAML deck",
	Long: `Create a presentation from a YAML deck file.

Example deck:
  title: Friday quiz
  slides:
    - type: heading
      title: Welcome
    - question: Capital of France?
      duration: 20
      reading: true
      options:
        - text: Paris
          correct: true
        - text: Lyon
    - type: word_cloud
      question: One word for this week?`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

var showCmd = &cobra.Command{
	Use:   "show <id|code>",
	Short: "Show a presentation's slides and join code",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a presentation with its votes and session",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

func init() {
	listCmd.Flags().StringVarP(&listOutput, "output", "o", "default", "Output format: default or jsonl")
	showCmd.Flags().StringVarP(&showOutput, "output", "o", "default", "Output format: default or json")

	rootCmd.AddCommand(listCmd, createCmd, importCmd, showCmd, deleteCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	format, err := report.ParseOutputFormat(listOutput)
	if err != nil {
		return printer.Error("invalid output format", err.Error(), []string{"Valid formats: default, jsonl"})
	}

	ctx := context.Background()
	client, cfg, err := connect(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	list, err := client.ListPresentations(ctx, owner)
	if err != nil {
		return fmt.Errorf("failed to list presentations: %w", err)
	}

	if format == report.OutputFormatJSONL {
		return report.FormatJSONL(printer.Out, list)
	}
	report.FormatPresentations(printer.Out, list, cfg.Instance, time.Now())
	return nil
}

func runCreate(cmd *cobra.Command, args []string) error {
	title := strings.TrimSpace(args[0])
	if title == "" {
		return printer.Error("title is required", "A presentation needs a non-empty title.", nil)
	}

	ctx := context.Background()
	client, _, err := connect(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	p := board.NewPresentation(title, owner)
	if err := client.CreatePresentation(ctx, p); err != nil {
		return fmt.Errorf("failed to create presentation: %w", err)
	}

	return announce(ctx, client, p, "created")
}

func runImport(cmd *cobra.Command, args []string) error {
	p, err := config.LoadDeck(args[0], owner)
	if err != nil {
		return printer.Error("invalid deck", err.Error(), []string{"See the example deck:\n  roost import --help"})
	}

	ctx := context.Background()
	client, _, err := connect(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.CreatePresentation(ctx, p); err != nil {
		return fmt.Errorf("failed to store presentation: %w", err)
	}

	return announce(ctx, client, p, fmt.Sprintf("imported with %d slides", len(p.Slides)))
}

// announce prints the id and join code of a new presentation.
func announce(ctx context.Context, client *board.Client, p *board.Presentation, what string) error {
	code, err := resolver.CodeFor(ctx, client, p.ID)
	if err != nil {
		return fmt.Errorf("failed to derive join code: %w", err)
	}

	printer.Success("%q %s\n", p.Title, what)
	printer.Info("  ID:        %s\n", p.ID)
	printer.Info("  Join code: %s\n", code)
	printer.Info("\nPresent it:\n  roost present %s\n", code)
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	if showOutput != "default" && showOutput != "json" {
		return printer.Error("invalid output format", fmt.Sprintf("Unknown format: %s", showOutput), []string{"Valid formats: default, json"})
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

	if showOutput == "json" {
		return report.FormatSingleJSON(printer.Out, p)
	}

	report.FormatSlides(printer.Out, p)

	code, err := resolver.CodeFor(ctx, client, p.ID)
	if err != nil {
		return fmt.Errorf("failed to derive join code: %w", err)
	}
	printer.Info("\nJoin code: %s\n", code)

	if s, err := client.GetSession(ctx, p.ID); err == nil {
		if slide, idx := p.FindSlide(s.SlideID); slide != nil {
			printer.Info("Live: slide %d/%d %s\n", idx+1, len(p.Slides), printer.Phase(s.Phase, s.Paused))
		}
	} else if !board.IsNotFound(err) {
		printer.Warning("could not read session: %v\n", err)
	}
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
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

	if err := client.DeletePresentation(ctx, p.ID); err != nil {
		return fmt.Errorf("failed to delete presentation: %w", err)
	}

	printer.Success("Deleted %q (%s)\n", p.Title, p.ID)
	return nil
}
