package printer

import (
	"bytes"
	"testing"

	"github.com/dyluth/roost/pkg/board"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T) (*bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var out, errOut bytes.Buffer
	prevOut, prevErr, prevColor := Out, Err, color.NoColor
	Out, Err, color.NoColor = &out, &errOut, true
	t.Cleanup(func() { Out, Err, color.NoColor = prevOut, prevErr, prevColor })
	return &out, &errOut
}

func TestError(t *testing.T) {
	t.Run("returns only the title", func(t *testing.T) {
		_, errOut := capture(t)
		err := Error("presentation not found", "No presentation matches 'abc123'.", nil)
		require.EqualError(t, err, "presentation not found")
		assert.Contains(t, errOut.String(), "No presentation matches 'abc123'.")
	})

	t.Run("single suggestion is printed bare", func(t *testing.T) {
		_, errOut := capture(t)
		Error("t", "e", []string{"roost list"})
		assert.Contains(t, errOut.String(), "\nroost list\n")
		assert.NotContains(t, errOut.String(), "Either:")
	})

	t.Run("multiple suggestions are numbered", func(t *testing.T) {
		_, errOut := capture(t)
		Error("t", "e", []string{"first", "second"})
		assert.Contains(t, errOut.String(), "Either:\n  1. first\n  2. second\n")
	})
}

func TestErrorWithContext(t *testing.T) {
	_, errOut := capture(t)
	err := ErrorWithContext("Redis connection failed", "", map[string]string{"Instance": "default"}, []string{"Check REDIS_URL"})
	require.EqualError(t, err, "Redis connection failed")
	assert.Contains(t, errOut.String(), "  Instance: default\n")
	assert.Contains(t, errOut.String(), "Check REDIS_URL")
}

func TestSuccessAndWarningPrefixes(t *testing.T) {
	out, _ := capture(t)
	Success("imported %d slides\n", 3)
	Success("✓ already prefixed\n")
	Warning("slow\n")

	assert.Equal(t, "✓ imported 3 slides\n✓ already prefixed\n⚠️  slow\n", out.String())
}

func TestPhase(t *testing.T) {
	capture(t)
	assert.Equal(t, "VOTING", Phase(board.PhaseVoting, false))
	assert.Equal(t, "READING (PAUSED)", Phase(board.PhaseReading, true))
	assert.Equal(t, "READY", Phase(board.PhaseReady, false))
}
