package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/dyluth/roost/internal/config"
	"github.com/dyluth/roost/internal/printer"
	"github.com/dyluth/roost/internal/resolver"
	"github.com/dyluth/roost/pkg/board"
)

// loadConfig resolves roost.yml, .env and the environment, then applies
// the persistent flags on top.
func loadConfig() (*config.RoostConfig, error) {
	cfg, err := config.Resolve(configPath)
	if err != nil {
		return nil, printer.Error(
			"invalid configuration",
			err.Error(),
			[]string{"Check roost.yml or pass --config <path>"},
		)
	}

	if redisURL != "" {
		cfg.Redis.URL = redisURL
	}
	if instance != "" {
		cfg.Instance = instance
	}
	if err := cfg.Validate(); err != nil {
		return nil, printer.Error("invalid configuration", err.Error(), nil)
	}
	return cfg, nil
}

// connect opens and pings the board client. The caller closes it.
func connect(ctx context.Context) (*board.Client, *config.RoostConfig, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	opts, err := cfg.RedisOptions()
	if err != nil {
		return nil, nil, printer.Error("invalid configuration", err.Error(), nil)
	}

	client, err := board.NewClient(opts, cfg.Instance)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create board client: %w", err)
	}

	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, nil, printer.ErrorWithContext(
			"Redis connection failed",
			fmt.Sprintf("Could not connect to Redis: %v", err),
			map[string]string{"Redis": cfg.Redis.URL, "Instance": cfg.Instance},
			[]string{"Check --redis-url or REDIS_URL", "Start Redis locally:\n  docker run -p 6379:6379 redis:7-alpine"},
		)
	}

	return client, cfg, nil
}

// resolvePresentation accepts a full id, a short id or a join code.
// Arguments shorter than a short id are treated as join codes.
func resolvePresentation(ctx context.Context, client *board.Client, arg string) (*board.Presentation, error) {
	var id string
	var err error
	if len(arg) < resolver.MinShortIDLength {
		id, err = resolver.ResolveJoinCode(ctx, client, arg)
	} else {
		id, err = resolver.ResolvePresentationID(ctx, client, arg)
	}

	if err != nil {
		var ambiguous *resolver.AmbiguousError
		switch {
		case resolver.IsNotFoundError(err):
			return nil, printer.Error(
				"presentation not found",
				fmt.Sprintf("No presentation matches '%s'.", arg),
				[]string{"List presentations:\n  roost list"},
			)
		case errors.As(err, &ambiguous):
			return nil, printer.Error("ambiguous presentation id", resolver.FormatAmbiguousError(ambiguous), nil)
		default:
			return nil, printer.Error("invalid presentation id", err.Error(), nil)
		}
	}

	p, err := client.GetPresentation(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load presentation %s: %w", id, err)
	}
	return p, nil
}
