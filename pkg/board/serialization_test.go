package board

import (
	"fmt"
	"strconv"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// toStringHash simulates what Redis hands back from HGETALL.
func toStringHash(hash map[string]interface{}) map[string]string {
	out := make(map[string]string, len(hash))
	for k, v := range hash {
		switch val := v.(type) {
		case string:
			out[k] = val
		case int:
			out[k] = strconv.Itoa(val)
		case int64:
			out[k] = strconv.FormatInt(val, 10)
		default:
			out[k] = fmt.Sprint(val)
		}
	}
	return out
}

func TestSlideRoundTrip(t *testing.T) {
	original := &Slide{
		ID:                 "s1",
		Type:               SlideTypeMultipleChoice,
		Title:              "Colours",
		Question:           "Which is warm?",
		Duration:           20,
		EnableReadingTimer: true,
		ReadingDuration:    4,
		MaxPoints:          500,
		TextAlign:          TextAlignCenter,
		TextColor:          "#fff",
		BackgroundColor:    "#000",
		FontSize:           48,
		Options:            []Option{{ID: "o1", Text: "Red", IsCorrect: true}, {ID: "o2", Text: "Blue"}},
		Order:              3,
	}

	hash, err := SlideToHash(uuid.New().String(), original)
	require.NoError(t, err)

	result, err := HashToSlide(toStringHash(hash))
	require.NoError(t, err)
	assert.Equal(t, original, result)
}

func TestHashToSlide_MissingOptions(t *testing.T) {
	result, err := HashToSlide(map[string]string{"id": "s1", "type": "heading"})
	require.NoError(t, err)
	assert.NotNil(t, result.Options, "options should be an empty slice, not nil")
	assert.Empty(t, result.Options)
	assert.Equal(t, 0, result.Duration)
}

func TestHashToSlide_BadNumber(t *testing.T) {
	_, err := HashToSlide(map[string]string{"id": "s1", "duration": "soon"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid duration field")
}

func TestSessionRoundTrip(t *testing.T) {
	original := &ActiveSession{
		PresentationID: uuid.New().String(),
		SlideID:        "s2",
		Phase:          PhaseVoting,
		StartTimeMs:    1_700_000_000_000,
		Paused:         true,
		PausedAtMs:     1_700_000_004_000,
		Revision:       7,
	}

	result, err := HashToSession(toStringHash(SessionToHash(original)))
	require.NoError(t, err)
	assert.Equal(t, original, result)
}

func TestHashToSession_LegacyRowWithoutPhase(t *testing.T) {
	result, err := HashToSession(map[string]string{
		"presentation_id": uuid.New().String(),
		"slide_id":        "s1",
		"start_time":      "42",
	})
	require.NoError(t, err)
	assert.Equal(t, PhaseReady, result.Phase)
	assert.Equal(t, int64(0), result.Revision)
	assert.False(t, result.Paused)
}
