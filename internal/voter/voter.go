// Package voter is the participant side of a session: it follows the
// presenter's broadcast and submits at most one answer per slide.
package voter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/dyluth/roost/internal/resolver"
	"github.com/dyluth/roost/pkg/board"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// MaxNameLength bounds voter display names, in runes.
const MaxNameLength = 64

var (
	// ErrInvalidCode means the join code matched no presentation.
	ErrInvalidCode = errors.New("invalid code, presentation not found")

	// ErrInvalidName is returned for empty or overlong voter names.
	ErrInvalidName = errors.New("voter name must be 1-64 characters")

	// ErrVotingClosed is returned when submitting outside the voting phase.
	ErrVotingClosed = errors.New("voting is not currently open")

	// ErrAlreadySubmitted is returned for a second answer to the same slide.
	ErrAlreadySubmitted = errors.New("already submitted an answer for this slide")

	// ErrUnknownOption is returned when the answer does not fit the current slide.
	ErrUnknownOption = errors.New("answer does not match the current slide")
)

// Store is the subset of the board client a voter needs.
type Store interface {
	resolver.Finder
	GetPresentation(ctx context.Context, presentationID string) (*board.Presentation, error)
	GetSession(ctx context.Context, presentationID string) (*board.ActiveSession, error)
	HasVoted(ctx context.Context, presentationID, slideID, voterName string) (bool, error)
	RecordVote(ctx context.Context, v *board.Vote) error
	SubscribeSessionEvents(ctx context.Context, presentationID string) (*board.SessionSubscription, error)
}

// Answer is what a voter submits: an option for multiple choice, text for word clouds.
type Answer struct {
	OptionID string `json:"option_id,omitempty"`
	Text     string `json:"text,omitempty"`
}

// Option configures a Voter.
type Option func(*Voter)

// WithClock replaces the wall clock used for time_taken and countdowns.
func WithClock(clock clockwork.Clock) Option {
	return func(v *Voter) { v.clock = clock }
}

// Voter follows one presentation as one named participant.
// All methods are safe for concurrent use.
type Voter struct {
	store Store
	clock clockwork.Clock
	name  string
	pres  *board.Presentation

	mu        sync.Mutex
	session   *board.ActiveSession
	slideID   string
	submitted bool
}

// Join resolves code to a presentation and returns a voter for it.
// The name is trimmed. No session state is loaded until Refresh or Watch.
func Join(ctx context.Context, store Store, code, name string, opts ...Option) (*Voter, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > MaxNameLength {
		return nil, ErrInvalidName
	}

	id, err := resolver.ResolveJoinCode(ctx, store, code)
	if err != nil {
		if resolver.IsNotFoundError(err) {
			return nil, ErrInvalidCode
		}
		return nil, err
	}

	pres, err := store.GetPresentation(ctx, id)
	if err != nil {
		if board.IsNotFound(err) {
			return nil, ErrInvalidCode
		}
		return nil, fmt.Errorf("failed to load presentation: %w", err)
	}

	v := &Voter{
		store: store,
		clock: clockwork.NewRealClock(),
		name:  name,
		pres:  pres,
	}
	for _, opt := range opts {
		opt(v)
	}

	return v, nil
}

// Name returns the trimmed voter name.
func (v *Voter) Name() string {
	return v.name
}

// Presentation returns the joined presentation.
func (v *Voter) Presentation() *board.Presentation {
	return v.pres
}

// Refresh polls the stored session and applies it.
func (v *Voter) Refresh(ctx context.Context) error {
	s, err := v.store.GetSession(ctx, v.pres.ID)
	if err != nil {
		if board.IsNotFound(err) {
			return v.Apply(ctx, nil)
		}
		return fmt.Errorf("failed to read session: %w", err)
	}
	return v.Apply(ctx, s)
}

// Apply updates local state from a session broadcast; nil means no session.
//
// Moving to another slide clears the submitted flag and asks the vote log
// whether this voter already answered it, which covers a voter that
// reloaded mid-slide. On the same slide the log is only consulted again
// while nothing has been submitted.
func (v *Voter) Apply(ctx context.Context, s *board.ActiveSession) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if s == nil {
		v.session = nil
		return nil
	}
	if s.PresentationID != v.pres.ID {
		return nil
	}

	copied := *s
	v.session = &copied

	if slide, _ := v.pres.FindSlide(s.SlideID); slide == nil {
		return nil
	}

	if s.SlideID != v.slideID {
		v.slideID = s.SlideID
		v.submitted = false
	} else if v.submitted {
		return nil
	}

	voted, err := v.store.HasVoted(ctx, v.pres.ID, s.SlideID, v.name)
	if err != nil {
		log.Warn().Err(err).
			Str("presentation_id", v.pres.ID).
			Str("voter", v.name).
			Msg("failed to check vote log")
		return fmt.Errorf("failed to check vote log: %w", err)
	}
	if voted {
		v.submitted = true
	}

	return nil
}

// Submit records an answer for the current slide.
//
// It is rejected unless the phase is voting, the answer fits the slide and
// nothing was submitted yet. A duplicate caught by the store also marks the
// slide as submitted.
func (v *Voter) Submit(ctx context.Context, answer Answer) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.session == nil || v.session.Phase != board.PhaseVoting {
		return ErrVotingClosed
	}

	slide, _ := v.pres.FindSlide(v.session.SlideID)
	if slide == nil {
		return ErrVotingClosed
	}
	if v.submitted && v.slideID == slide.ID {
		return ErrAlreadySubmitted
	}

	vote := &board.Vote{
		PresentationID: v.pres.ID,
		SlideID:        slide.ID,
		VoterName:      v.name,
	}

	switch slide.Type {
	case board.SlideTypeMultipleChoice:
		if slide.FindOption(answer.OptionID) == nil {
			return ErrUnknownOption
		}
		vote.OptionID = answer.OptionID
	case board.SlideTypeWordCloud:
		text := strings.TrimSpace(answer.Text)
		if text == "" {
			return ErrUnknownOption
		}
		vote.Text = text
	default:
		return ErrUnknownOption
	}

	now := v.clock.Now().UnixMilli()
	taken := v.session.ElapsedMs(now)
	vote.TimestampMs = now
	vote.TimeTakenMs = &taken

	err := v.store.RecordVote(ctx, vote)
	if errors.Is(err, board.ErrDuplicateVote) {
		v.slideID = slide.ID
		v.submitted = true
		return ErrAlreadySubmitted
	}
	if err != nil {
		return fmt.Errorf("failed to submit vote: %w", err)
	}

	v.slideID = slide.ID
	v.submitted = true

	log.Info().
		Str("presentation_id", v.pres.ID).
		Str("slide_id", slide.ID).
		Str("voter", v.name).
		Int64("time_taken_ms", taken).
		Msg("vote submitted")
	return nil
}
