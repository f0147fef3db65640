package resolver

import (
	"context"
	"fmt"
	"strings"
)

// MinJoinCodeLength is the length of the join codes handed out to voters.
const MinJoinCodeLength = 4

// ResolveJoinCode finds the presentation a voter's join code refers to.
//
// Codes are case-insensitive prefixes of the presentation id. Unlike
// ResolvePresentationID a collision is not an error: the oldest matching
// presentation wins, so a code handed out earlier keeps working. CodeFor
// produces codes long enough to reach newer presentations too.
func ResolveJoinCode(ctx context.Context, finder Finder, code string) (string, error) {
	code = strings.ToLower(strings.TrimSpace(code))

	if isFullUUID(code) {
		return verifyExists(ctx, finder, code)
	}

	if len(code) < MinJoinCodeLength {
		return "", &NotFoundError{ShortID: code}
	}

	matches, err := finder.ScanPresentations(ctx, code)
	if err != nil {
		return "", fmt.Errorf("failed to look up join code: %w", err)
	}
	if len(matches) == 0 {
		return "", &NotFoundError{ShortID: code}
	}

	return matches[0], nil
}

// CodeFor returns the shortest join code, at least MinJoinCodeLength long,
// that ResolveJoinCode maps back to presentationID.
func CodeFor(ctx context.Context, finder Finder, presentationID string) (string, error) {
	id := strings.ToLower(presentationID)
	if len(id) <= MinJoinCodeLength {
		return id, nil
	}

	candidates, err := finder.ScanPresentations(ctx, id[:MinJoinCodeLength])
	if err != nil {
		return "", fmt.Errorf("failed to look up join code: %w", err)
	}

	for n := MinJoinCodeLength; n < len(id); n++ {
		prefix := id[:n]
		if firstWithPrefix(candidates, prefix) == id {
			return prefix, nil
		}
	}

	return id, nil
}

func firstWithPrefix(ids []string, prefix string) string {
	for _, id := range ids {
		if strings.HasPrefix(strings.ToLower(id), prefix) {
			return id
		}
	}
	return ""
}
