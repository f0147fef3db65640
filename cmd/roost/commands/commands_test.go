package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/dyluth/roost/internal/logging"
	"github.com/dyluth/roost/internal/printer"
	"github.com/dyluth/roost/internal/session"
	"github.com/dyluth/roost/internal/voter"
	"github.com/dyluth/roost/pkg/board"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const deckYAML = `title: Friday quiz
slides:
  - type: heading
    title: Welcome
    question: Welcome
  - question: Capital of France?
    duration: 20
    options:
      - text: Paris
        correct: true
      - text: Lyon
  - type: word_cloud
    question: One word for this week?
`

type cli struct {
	t      *testing.T
	mr     *miniredis.Miniredis
	store  *board.Client
	out    *bytes.Buffer
	errOut *bytes.Buffer
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	logging.Quiet()
	t.Chdir(t.TempDir())
	for _, key := range []string{"REDIS_URL", "ROOST_INSTANCE", "ROOST_JWT_SECRET"} {
		t.Setenv(key, "")
	}

	mr := miniredis.RunT(t)
	store, err := board.NewClient(&redis.Options{Addr: mr.Addr()}, "cli-test")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	var out, errOut bytes.Buffer
	prevOut, prevErr, prevColor := printer.Out, printer.Err, color.NoColor
	printer.Out, printer.Err, color.NoColor = &out, &errOut, true
	t.Cleanup(func() { printer.Out, printer.Err, color.NoColor = prevOut, prevErr, prevColor })

	return &cli{t: t, mr: mr, store: store, out: &out, errOut: &errOut}
}

// run executes the root command against the test Redis with fresh flag values.
func (c *cli) run(args ...string) error {
	c.t.Helper()
	configPath, owner = "", ""
	listOutput, showOutput = "default", "default"
	leaderboardOutput, votesOutput = "default", "default"
	votesSince, votesUntil, votesVoter = "", "", ""
	resultsSlide, votesSlide = 0, 0
	c.out.Reset()
	c.errOut.Reset()

	rootCmd.SetArgs(append(args, "--redis-url", "redis://"+c.mr.Addr(), "--instance", "cli-test"))
	return Execute()
}

func (c *cli) importDeck() *board.Presentation {
	c.t.Helper()
	path := filepath.Join(c.t.TempDir(), "deck.yml")
	require.NoError(c.t, os.WriteFile(path, []byte(deckYAML), 0o644))
	require.NoError(c.t, c.run("import", path, "--owner", "alice"))

	list, err := c.store.ListPresentations(context.Background(), "alice")
	require.NoError(c.t, err)
	require.Len(c.t, list, 1)
	return list[0]
}

func TestImportListShowDelete(t *testing.T) {
	c := newCLI(t)
	p := c.importDeck()
	assert.Equal(t, "Friday quiz", p.Title)
	assert.Len(t, p.Slides, 3)

	require.NoError(t, c.run("list"))
	assert.Contains(t, c.out.String(), "Friday quiz")
	assert.Contains(t, c.out.String(), "1 presentation found")

	require.NoError(t, c.run("list", "--owner", "bob"))
	assert.Contains(t, c.out.String(), "No presentations found")

	require.NoError(t, c.run("show", p.ID[:4]))
	assert.Contains(t, c.out.String(), "Capital of France?")
	assert.Contains(t, c.out.String(), "Join code: "+p.ID[:4])

	require.NoError(t, c.run("show", p.ID[:8], "-o", "json"))
	assert.Contains(t, c.out.String(), `"title": "Friday quiz"`)

	require.NoError(t, c.run("delete", p.ID))
	assert.Contains(t, c.out.String(), "Deleted")

	err := c.run("show", p.ID)
	require.EqualError(t, err, "presentation not found")
	assert.Contains(t, c.errOut.String(), "roost list")
}

func TestCreate(t *testing.T) {
	c := newCLI(t)

	require.NoError(t, c.run("create", "Stand-up", "--owner", "alice"))
	assert.Contains(t, c.out.String(), `"Stand-up" created`)
	assert.Contains(t, c.out.String(), "Join code:")

	list, err := c.store.ListPresentations(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Len(t, list[0].Slides, 1)
}

func TestImportRejectsBadDeck(t *testing.T) {
	c := newCLI(t)
	path := filepath.Join(t.TempDir(), "deck.yml")
	require.NoError(t, os.WriteFile(path, []byte("title: \"\"\nslides: []\n"), 0o644))

	err := c.run("import", path)
	require.EqualError(t, err, "invalid deck")
}

func TestInvalidOutputFormat(t *testing.T) {
	c := newCLI(t)
	err := c.run("list", "-o", "xml")
	require.EqualError(t, err, "invalid output format")
}

func TestRedisUnavailable(t *testing.T) {
	c := newCLI(t)
	c.mr.Close()

	err := c.run("list")
	require.EqualError(t, err, "Redis connection failed")
	assert.Contains(t, c.errOut.String(), "Instance: cli-test")
}

func TestPresentLoop(t *testing.T) {
	c := newCLI(t)
	p := c.importDeck()
	ctx := context.Background()

	ctrl, err := session.NewController(ctx, c.store, p)
	require.NoError(t, err)
	t.Cleanup(func() { ctrl.Close() })
	require.NoError(t, ctrl.Restore(ctx))

	require.NoError(t, presentLoop(ctx, ctrl, c.store, p, strings.NewReader("\nn\np\np\nbogus\nt\nl\nb\n")))
	assert.Contains(t, c.out.String(), "unknown key")
	assert.Contains(t, c.out.String(), "Capital of France?")
	assert.Contains(t, c.out.String(), "No votes yet")

	s, err := c.store.GetSession(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Slides[0].ID, s.SlideID)
	assert.Equal(t, board.PhaseReady, s.Phase)

	require.NoError(t, presentLoop(ctx, ctrl, c.store, p, strings.NewReader("e\nn\n")))
	assert.Contains(t, c.out.String(), "Session ended")
	_, err = c.store.GetSession(ctx, p.ID)
	assert.True(t, board.IsNotFound(err), "the session row is removed and later input ignored")
}

func TestSubmitLineAndReports(t *testing.T) {
	c := newCLI(t)
	p := c.importDeck()
	ctx := context.Background()

	ctrl, err := session.NewController(ctx, c.store, p)
	require.NoError(t, err)
	t.Cleanup(func() { ctrl.Close() })
	require.NoError(t, ctrl.Restore(ctx))
	require.NoError(t, ctrl.Advance(ctx))

	v, err := voter.Join(ctx, c.store, p.ID[:4], "ada")
	require.NoError(t, err)

	assert.ErrorContains(t, submitLine(ctx, v, "7"), "between 1 and 2")
	require.NoError(t, submitLine(ctx, v, "1"))
	assert.ErrorIs(t, submitLine(ctx, v, "2"), voter.ErrAlreadySubmitted)

	require.NoError(t, c.run("results", p.ID[:4]))
	assert.Contains(t, c.out.String(), "Capital of France?")
	assert.Contains(t, c.out.String(), "1 vote")

	require.NoError(t, c.run("leaderboard", p.ID[:4], "-o", "jsonl"))
	assert.Contains(t, c.out.String(), `"voter_name":"ada"`)

	require.NoError(t, c.run("votes", p.ID[:4], "--since", "1h", "--voter", "a*"))
	assert.Contains(t, c.out.String(), "Paris")
	assert.Contains(t, c.out.String(), "1 vote found")

	require.NoError(t, c.run("votes", p.ID[:4], "--slide", "3"))
	assert.Contains(t, c.out.String(), "No votes found")

	err = c.run("votes", p.ID[:4], "--slide", "9")
	require.EqualError(t, err, "invalid slide number")

	err = c.run("votes", p.ID[:4], "--since", "1h", "--until", "2h")
	require.EqualError(t, err, "invalid time filter")
}

func TestToken(t *testing.T) {
	c := newCLI(t)

	err := c.run("token", "--user", "alice")
	require.EqualError(t, err, "cannot sign tokens")

	t.Setenv("ROOST_JWT_SECRET", "a-secret-that-is-long-enough")
	require.NoError(t, c.run("token", "--user", "alice"))
	assert.Equal(t, 3, len(strings.Split(strings.TrimSpace(c.out.String()), ".")))
}

func TestResolveRejectsUnknownCode(t *testing.T) {
	c := newCLI(t)
	c.importDeck()

	err := c.run("results", uuid.New().String())
	require.EqualError(t, err, "presentation not found")
}
