package voter

import (
	"github.com/dyluth/roost/pkg/board"
)

// Screen is what the voter's device should be showing.
type Screen string

const (
	ScreenWaiting   Screen = "waiting" // No session, or it points at an unknown slide
	ScreenReady     Screen = "ready"
	ScreenReading   Screen = "reading"
	ScreenVoting    Screen = "voting"
	ScreenSubmitted Screen = "submitted"
	ScreenFinished  Screen = "finished"
)

// View is a render-ready snapshot of the voter state.
type View struct {
	Screen           Screen       `json:"screen"`
	PresentationID   string       `json:"presentation_id"`
	Title            string       `json:"title"`
	VoterName        string       `json:"voter_name"`
	Slide            *board.Slide `json:"slide,omitempty"` // Correct answers are redacted
	Phase            board.Phase  `json:"phase,omitempty"`
	Paused           bool         `json:"paused,omitempty"`
	RemainingSeconds int          `json:"remaining_seconds"`
	Submitted        bool         `json:"submitted"`
}

// View returns the current snapshot.
func (v *Voter) View() View {
	v.mu.Lock()
	defer v.mu.Unlock()

	view := View{
		Screen:         ScreenWaiting,
		PresentationID: v.pres.ID,
		Title:          v.pres.Title,
		VoterName:      v.name,
	}
	if v.session == nil {
		return view
	}

	slide, _ := v.pres.FindSlide(v.session.SlideID)
	if slide == nil {
		return view
	}

	redacted := Redact(*slide)
	view.Slide = &redacted
	view.Phase = v.session.Phase
	view.Paused = v.session.Paused
	view.Submitted = v.submitted && v.slideID == slide.ID

	remainingMs := v.session.RemainingMs(slide, v.clock.Now().UnixMilli())
	view.RemainingSeconds = int((remainingMs + 999) / 1000)

	// An answered slide shows the confirmation whatever the phase
	switch {
	case view.Submitted:
		view.Screen = ScreenSubmitted
	case v.session.Phase == board.PhaseReady:
		view.Screen = ScreenReady
	case v.session.Phase == board.PhaseReading:
		view.Screen = ScreenReading
	case v.session.Phase == board.PhaseVoting:
		view.Screen = ScreenVoting
	case v.session.Phase == board.PhaseFinished:
		view.Screen = ScreenFinished
	}

	return view
}

// Redact returns a copy of slide without the correct-answer flags.
func Redact(slide board.Slide) board.Slide {
	options := make([]board.Option, len(slide.Options))
	for i, opt := range slide.Options {
		options[i] = board.Option{ID: opt.ID, Text: opt.Text}
	}
	slide.Options = options
	return slide
}

// RedactPresentation returns a copy of p safe to hand to voters.
func RedactPresentation(p *board.Presentation) *board.Presentation {
	out := *p
	out.OwnerID = ""
	out.Slides = make([]board.Slide, len(p.Slides))
	for i, s := range p.Slides {
		out.Slides[i] = Redact(s)
	}
	return &out
}
