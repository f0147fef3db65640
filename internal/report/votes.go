package report

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/dyluth/roost/internal/timespec"
	"github.com/dyluth/roost/pkg/board"
)

// VoteLister reads the vote log of a presentation.
type VoteLister interface {
	GetVotesForPresentation(ctx context.Context, presentationID string) ([]board.Vote, error)
}

// VoteFilter narrows the vote log. All criteria are ANDed.
type VoteFilter struct {
	Window    timespec.Range
	SlideID   string // exact match, empty = any
	VoterGlob string // filepath.Match pattern on voter name, empty = any
}

func (f *VoteFilter) matches(v *board.Vote) bool {
	if !f.Window.Contains(v.TimestampMs) {
		return false
	}
	if f.SlideID != "" && v.SlideID != f.SlideID {
		return false
	}
	if f.VoterGlob != "" {
		matched, err := filepath.Match(f.VoterGlob, v.VoterName)
		if err != nil || !matched {
			return false
		}
	}
	return true
}

// Validate rejects malformed glob patterns up front.
func (f *VoteFilter) Validate() error {
	if f.VoterGlob == "" {
		return nil
	}
	if _, err := filepath.Match(f.VoterGlob, ""); err != nil {
		return fmt.Errorf("invalid --voter pattern %q: %w", f.VoterGlob, err)
	}
	return nil
}

// ListVotes returns the filtered vote log oldest first.
func ListVotes(ctx context.Context, store VoteLister, presentationID string, filter *VoteFilter) ([]board.Vote, error) {
	all, err := store.GetVotesForPresentation(ctx, presentationID)
	if err != nil {
		return nil, fmt.Errorf("failed to read votes: %w", err)
	}

	votes := make([]board.Vote, 0, len(all))
	for i := range all {
		if filter != nil && !filter.matches(&all[i]) {
			continue
		}
		votes = append(votes, all[i])
	}

	sort.SliceStable(votes, func(i, j int) bool {
		return votes[i].TimestampMs < votes[j].TimestampMs
	})
	return votes, nil
}
