package resolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// MinShortIDLength is the minimum prefix accepted where a presentation must be
// named unambiguously (CLI show/delete and similar).
const MinShortIDLength = 6

// Finder is the subset of the board client needed to look up presentations by prefix.
type Finder interface {
	ScanPresentations(ctx context.Context, prefix string) ([]string, error)
	PresentationExists(ctx context.Context, presentationID string) (bool, error)
}

// ResolvePresentationID resolves a short ID prefix to a full UUID.
// Returns the full UUID if exactly one match found.
// Returns error if zero or multiple matches found.
//
// A full UUID is only checked for existence. Anything shorter than
// MinShortIDLength is rejected before touching the store.
func ResolvePresentationID(ctx context.Context, finder Finder, shortID string) (string, error) {
	shortID = strings.ToLower(strings.TrimSpace(shortID))

	if isFullUUID(shortID) {
		return verifyExists(ctx, finder, shortID)
	}

	if len(shortID) < MinShortIDLength {
		return "", fmt.Errorf("short ID must be at least %d characters (got %d)", MinShortIDLength, len(shortID))
	}

	matches, err := finder.ScanPresentations(ctx, shortID)
	if err != nil {
		return "", fmt.Errorf("failed to search for presentation: %w", err)
	}

	switch len(matches) {
	case 0:
		return "", &NotFoundError{ShortID: shortID}
	case 1:
		return matches[0], nil
	default:
		return "", &AmbiguousError{ShortID: shortID, Matches: matches}
	}
}

// NotFoundError indicates no presentation matched the short ID or join code.
type NotFoundError struct {
	ShortID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no presentation found matching '%s'", e.ShortID)
}

// AmbiguousError indicates multiple presentations matched the short ID.
type AmbiguousError struct {
	ShortID string
	Matches []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("ambiguous short ID '%s' matches %d presentations", e.ShortID, len(e.Matches))
}

// FormatAmbiguousError creates a user-friendly error message for ambiguous short IDs.
// Lists matching UUIDs (up to 10, then "...and N more").
func FormatAmbiguousError(err *AmbiguousError) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Error: ambiguous short ID '%s' matches %d presentations:\n", err.ShortID, len(err.Matches))

	shown := min(len(err.Matches), 10)
	for _, id := range err.Matches[:shown] {
		fmt.Fprintf(&b, "  %s\n", id)
	}
	if len(err.Matches) > shown {
		fmt.Fprintf(&b, "  ...and %d more\n", len(err.Matches)-shown)
	}

	b.WriteString("\nUse a longer prefix to uniquely identify the presentation.")
	return b.String()
}

// IsNotFoundError checks if an error is a NotFoundError.
func IsNotFoundError(err error) bool {
	_, ok := err.(*NotFoundError)
	return ok
}

// IsAmbiguousError checks if an error is an AmbiguousError.
func IsAmbiguousError(err error) bool {
	_, ok := err.(*AmbiguousError)
	return ok
}

func isFullUUID(s string) bool {
	if len(s) != 36 || strings.Count(s, "-") != 4 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

func verifyExists(ctx context.Context, finder Finder, id string) (string, error) {
	exists, err := finder.PresentationExists(ctx, id)
	if err != nil {
		return "", fmt.Errorf("failed to verify presentation existence: %w", err)
	}
	if !exists {
		return "", &NotFoundError{ShortID: id}
	}
	return id, nil
}
