package board

import (
	"fmt"

	"github.com/google/uuid"
)

// Slide defaults applied when the stored value is zero.
const (
	DefaultDuration        = 15   // seconds
	DefaultReadingDuration = 5    // seconds
	DefaultMaxPoints       = 1000 // points for an instant correct answer
)

// Editor bounds.
const (
	MinDuration        = 5
	MaxDuration        = 300
	MinReadingDuration = 3
	MaxReadingDuration = 60
	MaxMaxPoints       = 10000
	MinFontSize        = 12
	MaxFontSize        = 120
)

// Presentation is an ordered deck of slides owned by one user.
type Presentation struct {
	ID          string  `json:"id"`            // UUID, its prefix doubles as the join code
	OwnerID     string  `json:"owner_id"`      // Authenticated user that owns the deck
	Title       string  `json:"title"`         // Display title
	CreatedAtMs int64   `json:"created_at_ms"` // Unix milliseconds
	UpdatedAtMs int64   `json:"updated_at_ms"` // Unix milliseconds
	Slides      []Slide `json:"slides"`        // Ordered; index is the persisted order
}

// SlideType determines how voters interact with a slide.
type SlideType string

const (
	// SlideTypeMultipleChoice is a poll with fixed options, optionally scored
	SlideTypeMultipleChoice SlideType = "multiple_choice"

	// SlideTypeWordCloud collects free-text words
	SlideTypeWordCloud SlideType = "word_cloud"

	// SlideTypeHeading is a title card with nothing to vote on
	SlideTypeHeading SlideType = "heading"
)

// TextAlign is the horizontal alignment of the question text.
type TextAlign string

const (
	TextAlignLeft   TextAlign = "left"
	TextAlignCenter TextAlign = "center"
	TextAlignRight  TextAlign = "right"
)

// Slide is a single question in a presentation.
type Slide struct {
	ID                 string    `json:"id"`
	Type               SlideType `json:"type"`
	Title              string    `json:"title,omitempty"`
	Question           string    `json:"question"`
	Duration           int       `json:"duration,omitempty"`         // Voting time in seconds
	EnableReadingTimer bool      `json:"enable_reading_timer"`       // Run a reading phase before voting
	ReadingDuration    int       `json:"reading_duration,omitempty"` // Reading time in seconds
	MaxPoints          int       `json:"max_points,omitempty"`
	TextAlign          TextAlign `json:"text_align,omitempty"`
	TextColor          string    `json:"text_color,omitempty"`
	BackgroundColor    string    `json:"background_color,omitempty"`
	FontSize           int       `json:"font_size,omitempty"`
	Options            []Option  `json:"options"`
	Order              int       `json:"order"`
}

// Option is one answer of a multiple-choice slide.
type Option struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct,omitempty"`
}

// Vote is a single voter's answer to a slide. Votes are append-only.
type Vote struct {
	PresentationID string `json:"presentation_id"`
	SlideID        string `json:"slide_id"`
	OptionID       string `json:"option_id,omitempty"` // multiple_choice answers
	Text           string `json:"text,omitempty"`      // word_cloud answers
	VoterName      string `json:"voter_name"`
	TimestampMs    int64  `json:"timestamp"`
	TimeTakenMs    *int64 `json:"time_taken,omitempty"` // nil on votes recorded before timing existed
}

// Phase governs what a voter may do and what the presenter timer counts down.
type Phase string

const (
	PhaseReady    Phase = "ready"
	PhaseReading  Phase = "reading"
	PhaseVoting   Phase = "voting"
	PhaseFinished Phase = "finished"
)

// ActiveSession is the presenter's live broadcast of the current slide and phase.
// One row per presentation, overwritten on every transition.
type ActiveSession struct {
	PresentationID string `json:"presentation_id"`
	SlideID        string `json:"slide_id"`
	Phase          Phase  `json:"phase"`
	StartTimeMs    int64  `json:"start_time"`             // Phase start reference, Unix milliseconds
	Paused         bool   `json:"paused,omitempty"`       // Countdown frozen by the presenter
	PausedAtMs     int64  `json:"paused_at_ms,omitempty"` // When the countdown was frozen
	Revision       int64  `json:"revision"`               // Optimistic concurrency token
}

// NewPresentation returns a presentation with a fresh id and one empty
// multiple-choice slide, the starting point of the editor.
func NewPresentation(title, ownerID string) *Presentation {
	return &Presentation{
		ID:      uuid.New().String(),
		OwnerID: ownerID,
		Title:   title,
		Slides: []Slide{{
			ID:                 uuid.New().String(),
			Type:               SlideTypeMultipleChoice,
			Title:              "Slide 1",
			Question:           "Your first question",
			Duration:           DefaultDuration,
			EnableReadingTimer: true,
			ReadingDuration:    DefaultReadingDuration,
			MaxPoints:          DefaultMaxPoints,
			Options:            []Option{},
		}},
	}
}

// EffectiveDuration returns the voting time in seconds, applying the default.
func (s *Slide) EffectiveDuration() int {
	if s.Duration <= 0 {
		return DefaultDuration
	}
	return s.Duration
}

// EffectiveReadingDuration returns the reading time in seconds, applying the default.
func (s *Slide) EffectiveReadingDuration() int {
	if s.ReadingDuration <= 0 {
		return DefaultReadingDuration
	}
	return s.ReadingDuration
}

// EffectiveMaxPoints returns the points for an instant correct answer.
// Zero means "unset" and falls back to the default.
func (s *Slide) EffectiveMaxPoints() int {
	if s.MaxPoints <= 0 {
		return DefaultMaxPoints
	}
	return s.MaxPoints
}

// FirstPhase is the phase a slide enters when its timer starts.
func (s *Slide) FirstPhase() Phase {
	if s.EnableReadingTimer {
		return PhaseReading
	}
	return PhaseVoting
}

// PhaseDurationMs returns the countdown length of a timed phase in milliseconds.
// Untimed phases return 0.
func (s *Slide) PhaseDurationMs(p Phase) int64 {
	switch p {
	case PhaseReading:
		return int64(s.EffectiveReadingDuration()) * 1000
	case PhaseVoting:
		return int64(s.EffectiveDuration()) * 1000
	default:
		return 0
	}
}

// FindOption returns the option with the given ID, or nil.
func (s *Slide) FindOption(optionID string) *Option {
	for i := range s.Options {
		if s.Options[i].ID == optionID {
			return &s.Options[i]
		}
	}
	return nil
}

// FindSlide returns the slide with the given ID and its index, or (nil, -1).
func (p *Presentation) FindSlide(slideID string) (*Slide, int) {
	for i := range p.Slides {
		if p.Slides[i].ID == slideID {
			return &p.Slides[i], i
		}
	}
	return nil, -1
}

// Validate checks if the Presentation has valid field values.
func (p *Presentation) Validate() error {
	if !isValidUUID(p.ID) {
		return fmt.Errorf("invalid presentation ID: not a valid UUID")
	}

	if p.Title == "" {
		return fmt.Errorf("presentation title cannot be empty")
	}

	seen := make(map[string]bool, len(p.Slides))
	for i := range p.Slides {
		if err := p.Slides[i].Validate(); err != nil {
			return fmt.Errorf("slide %d: %w", i, err)
		}
		if seen[p.Slides[i].ID] {
			return fmt.Errorf("slide %d: duplicate slide ID %q", i, p.Slides[i].ID)
		}
		seen[p.Slides[i].ID] = true
	}

	return nil
}

// Validate checks a slide against the editor bounds.
// Zero timing fields are allowed and mean "use the default".
func (s *Slide) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("slide ID cannot be empty")
	}

	if err := s.Type.Validate(); err != nil {
		return err
	}

	if s.Duration != 0 && (s.Duration < MinDuration || s.Duration > MaxDuration) {
		return fmt.Errorf("duration must be between %d and %d seconds, got %d", MinDuration, MaxDuration, s.Duration)
	}

	if s.ReadingDuration != 0 && (s.ReadingDuration < MinReadingDuration || s.ReadingDuration > MaxReadingDuration) {
		return fmt.Errorf("reading_duration must be between %d and %d seconds, got %d", MinReadingDuration, MaxReadingDuration, s.ReadingDuration)
	}

	if s.MaxPoints < 0 || s.MaxPoints > MaxMaxPoints {
		return fmt.Errorf("max_points must be between 0 and %d, got %d", MaxMaxPoints, s.MaxPoints)
	}

	if s.FontSize != 0 && (s.FontSize < MinFontSize || s.FontSize > MaxFontSize) {
		return fmt.Errorf("font_size must be between %d and %d, got %d", MinFontSize, MaxFontSize, s.FontSize)
	}

	switch s.TextAlign {
	case "", TextAlignLeft, TextAlignCenter, TextAlignRight:
	default:
		return fmt.Errorf("unknown text align: %q", s.TextAlign)
	}

	optionIDs := make(map[string]bool, len(s.Options))
	for i, o := range s.Options {
		if o.ID == "" {
			return fmt.Errorf("option %d: ID cannot be empty", i)
		}
		if optionIDs[o.ID] {
			return fmt.Errorf("option %d: duplicate option ID %q", i, o.ID)
		}
		optionIDs[o.ID] = true
	}

	return nil
}

// Validate checks if the SlideType is a valid enum value.
func (st SlideType) Validate() error {
	switch st {
	case SlideTypeMultipleChoice, SlideTypeWordCloud, SlideTypeHeading:
		return nil
	default:
		return fmt.Errorf("unknown slide type: %q", st)
	}
}

// Validate checks if the Phase is a valid enum value.
func (p Phase) Validate() error {
	switch p {
	case PhaseReady, PhaseReading, PhaseVoting, PhaseFinished:
		return nil
	default:
		return fmt.Errorf("unknown phase: %q", p)
	}
}

// Timed reports whether the phase runs a countdown.
func (p Phase) Timed() bool {
	return p == PhaseReading || p == PhaseVoting
}

// Validate checks if the Vote has valid field values.
func (v *Vote) Validate() error {
	if !isValidUUID(v.PresentationID) {
		return fmt.Errorf("invalid presentation ID: not a valid UUID")
	}

	if v.SlideID == "" {
		return fmt.Errorf("slide ID cannot be empty")
	}

	if v.VoterName == "" {
		return fmt.Errorf("voter name cannot be empty")
	}

	if v.OptionID == "" && v.Text == "" {
		return fmt.Errorf("vote must carry an option ID or text")
	}

	if v.TimeTakenMs != nil && *v.TimeTakenMs < 0 {
		return fmt.Errorf("time taken cannot be negative, got %d", *v.TimeTakenMs)
	}

	return nil
}

// Validate checks if the ActiveSession has valid field values.
func (s *ActiveSession) Validate() error {
	if !isValidUUID(s.PresentationID) {
		return fmt.Errorf("invalid presentation ID: not a valid UUID")
	}

	if s.SlideID == "" {
		return fmt.Errorf("slide ID cannot be empty")
	}

	if err := s.Phase.Validate(); err != nil {
		return fmt.Errorf("invalid phase: %w", err)
	}

	return nil
}

// ElapsedMs returns how far into the current phase the session is at nowMs.
// A paused session stays frozen at the moment it was paused.
func (s *ActiveSession) ElapsedMs(nowMs int64) int64 {
	ref := nowMs
	if s.Paused {
		ref = s.PausedAtMs
	}
	elapsed := ref - s.StartTimeMs
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

// RemainingMs returns the countdown left for the session's phase on the given slide.
// Clamped at zero; untimed phases return 0.
func (s *ActiveSession) RemainingMs(slide *Slide, nowMs int64) int64 {
	if !s.Phase.Timed() {
		return 0
	}
	remaining := slide.PhaseDurationMs(s.Phase) - s.ElapsedMs(nowMs)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// isValidUUID checks if a string is a valid UUID format.
func isValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
