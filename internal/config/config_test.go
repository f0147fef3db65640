package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dyluth/roost/pkg/board"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeFile(t, "roost.yml", `version: "1.0"
instance: quiz-night
redis:
  url: redis://localhost:6380/2
server:
  addr: ":9090"
  public_url: https://roost.example.com
  allowed_origins: ["https://app.example.com"]
  shutdown_timeout: 5s
auth:
  token_ttl: 2h
log:
  level: debug
  format: json
`)

	config, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "quiz-night", config.Instance)
	assert.Equal(t, ":9090", config.Server.Addr)
	assert.Equal(t, []string{"https://app.example.com"}, config.Server.AllowedOrigins)
	assert.Equal(t, 5*time.Second, config.Server.ShutdownTimeout)
	assert.Equal(t, 2*time.Hour, config.Auth.TokenTTL)
	assert.Equal(t, "roost", config.Auth.Issuer, "default issuer applied")
	assert.Equal(t, time.Second, config.Voter.PollInterval, "default poll interval applied")
	assert.Equal(t, "json", config.Log.Format)

	opts, err := config.RedisOptions()
	require.NoError(t, err)
	assert.Equal(t, "localhost:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)
}

func TestLoad_FileNotFound(t *testing.T) {
	config, err := Load("/nonexistent/roost.yml")
	assert.Error(t, err)
	assert.Nil(t, config)
	assert.Contains(t, err.Error(), "failed to read config")
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeFile(t, "roost.yml", "version: \"1.0\"\nredis:\n  - nope\n    : [")

	config, err := Load(path)
	assert.Error(t, err)
	assert.Nil(t, config)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *RoostConfig)
		errMsg string
	}{
		{"wrong version", func(c *RoostConfig) { c.Version = "2.0" }, "unsupported version"},
		{"bad instance", func(c *RoostConfig) { c.Instance = "a:b" }, "invalid instance name"},
		{"bad redis url", func(c *RoostConfig) { c.Redis.URL = "http://nope" }, "invalid redis.url"},
		{"negative ttl", func(c *RoostConfig) { c.Auth.TokenTTL = -time.Second }, "auth.token_ttl"},
		{"poll too fast", func(c *RoostConfig) { c.Voter.PollInterval = time.Millisecond }, "voter.poll_interval"},
		{"bad level", func(c *RoostConfig) { c.Log.Level = "loud" }, "invalid log.level"},
		{"bad format", func(c *RoostConfig) { c.Log.Format = "xml" }, "invalid log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			err := c.Validate()
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), tt.errMsg)
			}
		})
	}

	assert.NoError(t, Default().Validate())
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://cache:6379/1")
	t.Setenv("ROOST_INSTANCE", "staging")
	t.Setenv("ROOST_JWT_SECRET", "s3cret")
	t.Setenv("ROOST_ALLOWED_ORIGINS", "https://a.example,https://b.example")

	c := Default()
	require.NoError(t, c.ApplyEnv())

	assert.Equal(t, "redis://cache:6379/1", c.Redis.URL)
	assert.Equal(t, "staging", c.Instance)
	assert.Equal(t, "s3cret", c.Auth.Secret)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, c.Server.AllowedOrigins)
	assert.Equal(t, ":8080", c.Server.Addr, "unset variables keep file values")
}

func TestResolve_MissingDefaultFileFallsBack(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ROOST_INSTANCE", "from-env")

	c, err := Resolve("")
	require.NoError(t, err)
	assert.Equal(t, "from-env", c.Instance)
	assert.Equal(t, "redis://localhost:6379/0", c.Redis.URL)
}

func TestResolve_MissingExplicitFileFails(t *testing.T) {
	_, err := Resolve(filepath.Join(t.TempDir(), "custom.yml"))
	assert.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	path := writeFile(t, ".env", "ROOST_TEST_DOTENV=loaded\n")
	t.Setenv("ROOST_TEST_DOTENV", "")
	os.Unsetenv("ROOST_TEST_DOTENV")

	require.NoError(t, LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env")))
	assert.Equal(t, "loaded", os.Getenv("ROOST_TEST_DOTENV"))
}

func TestLoadDeck(t *testing.T) {
	path := writeFile(t, "deck.yml", `title: Capitals
slides:
  - question: Capital of France?
    duration: 20
    reading_duration: 4
    options:
      - text: Paris
        correct: true
      - text: Lyon
  - type: word_cloud
    question: Favourite city?
  - type: heading
    title: Thanks for playing
`)

	p, err := LoadDeck(path, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, "Capitals", p.Title)
	assert.Equal(t, "owner-1", p.OwnerID)
	require.Len(t, p.Slides, 3)

	first := p.Slides[0]
	assert.Equal(t, board.SlideTypeMultipleChoice, first.Type)
	assert.True(t, first.EnableReadingTimer)
	assert.Equal(t, 4, first.ReadingDuration)
	require.Len(t, first.Options, 2)
	assert.True(t, first.Options[0].IsCorrect)
	assert.NotEqual(t, first.Options[0].ID, first.Options[1].ID)

	assert.Equal(t, board.SlideTypeWordCloud, p.Slides[1].Type)
	assert.Equal(t, 2, p.Slides[2].Order)
}

func TestLoadDeck_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errMsg  string
	}{
		{"no title", "slides:\n  - type: heading\n", "title is required"},
		{"no slides", "title: Empty\n", "at least one slide"},
		{"mc without options", "title: T\nslides:\n  - question: Q?\n", "need options"},
		{"out of bounds", "title: T\nslides:\n  - type: heading\n    duration: 1000\n", "duration must be between"},
		{"unknown type", "title: T\nslides:\n  - type: poll\n", "unknown slide type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadDeck(writeFile(t, "deck.yml", tt.content), "owner")
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), tt.errMsg)
			}
		})
	}
}
