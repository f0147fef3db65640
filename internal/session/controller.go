// Package session drives a presentation through its slides and phases on the
// presenter side and publishes every transition to the shared store.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dyluth/roost/pkg/board"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

var (
	// ErrNoNextSlide is returned by Advance on the last slide.
	ErrNoNextSlide = errors.New("already on the last slide")

	// ErrNoPrevSlide is returned by Back on the first slide.
	ErrNoPrevSlide = errors.New("already on the first slide")

	// ErrInvalidTransition is returned when an action does not apply to the current phase.
	ErrInvalidTransition = errors.New("action not allowed in current phase")

	// ErrEmptyPresentation is returned by NewController for a deck without slides.
	ErrEmptyPresentation = errors.New("presentation has no slides")

	// ErrClosed is returned by every transition once Close has been called.
	ErrClosed = errors.New("session controller closed")
)

// Store is the subset of the board client the controller needs.
type Store interface {
	SaveSession(ctx context.Context, s *board.ActiveSession) error
	GetSession(ctx context.Context, presentationID string) (*board.ActiveSession, error)
	DeleteSession(ctx context.Context, presentationID string) error
}

// State is a snapshot of the controller.
type State struct {
	Session     board.ActiveSession `json:"session"`
	SlideIndex  int                 `json:"slide_index"`
	SlideCount  int                 `json:"slide_count"`
	Slide       board.Slide         `json:"slide"`
	RemainingMs int64               `json:"remaining_ms"`
	Running     bool                `json:"running"` // A countdown is in progress
	Live        bool                `json:"live"`    // A session row is stored
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Controller) { c.clock = clock }
}

// WithOnChange registers a callback invoked after every committed transition,
// including the automatic ones fired by timers. It runs without the
// controller lock held.
func WithOnChange(fn func(State)) Option {
	return func(c *Controller) { c.onChange = fn }
}

// Controller owns the current slide, phase and countdown of one presentation.
// All methods are safe for concurrent use.
type Controller struct {
	store    Store
	clock    clockwork.Clock
	onChange func(State)

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	pres      *board.Presentation
	index     int
	session   board.ActiveSession
	live      bool
	closed    bool
	gen       uint64
	stopTimer func()
}

// NewController creates a controller positioned on the first slide in the
// ready phase. Nothing is written until Restore or a transition is called.
// ctx bounds the lifetime of timer-driven transitions; Close also ends them.
func NewController(ctx context.Context, store Store, pres *board.Presentation, opts ...Option) (*Controller, error) {
	if len(pres.Slides) == 0 {
		return nil, ErrEmptyPresentation
	}

	c := &Controller{
		store: store,
		clock: clockwork.NewRealClock(),
		pres:  pres,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	c.session = board.ActiveSession{
		PresentationID: pres.ID,
		SlideID:        pres.Slides[0].ID,
		Phase:          board.PhaseReady,
		StartTimeMs:    c.nowMs(),
	}

	return c, nil
}

// PresentationID returns the id of the presentation being driven.
func (c *Controller) PresentationID() string {
	return c.pres.ID
}

// Restore adopts the stored session, if any, and re-arms the countdown for
// the time that is left. A phase whose countdown already ran out is advanced
// immediately. Without a stored session (or when it points at a slide that
// no longer exists) the ready state of the first slide is published.
func (c *Controller) Restore(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}

	stored, err := c.store.GetSession(ctx, c.pres.ID)
	if err != nil && !board.IsNotFound(err) {
		c.mu.Unlock()
		return fmt.Errorf("failed to load session: %w", err)
	}

	if stored != nil {
		if _, idx := c.pres.FindSlide(stored.SlideID); idx >= 0 {
			c.adoptLocked(stored, idx)
			c.catchUpLocked(ctx)
			state := c.stateLocked()
			c.mu.Unlock()

			log.Info().
				Str("presentation_id", c.pres.ID).
				Str("slide_id", state.Session.SlideID).
				Str("phase", string(state.Session.Phase)).
				Int64("remaining_ms", state.RemainingMs).
				Msg("restored session")
			c.notify(state)
			return nil
		}
		log.Warn().
			Str("presentation_id", c.pres.ID).
			Str("slide_id", stored.SlideID).
			Msg("stored session points at a missing slide, starting over")
	}

	if stored != nil {
		c.session.Revision = stored.Revision
		c.live = true
	}
	err = c.commitLocked(ctx, c.freshSessionLocked(0, board.PhaseReady), 0)
	return c.finish(err)
}

// Start begins the current slide: reading when the slide has a reading
// timer, voting otherwise. Only valid in the ready phase.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.session.Phase != board.PhaseReady {
		c.mu.Unlock()
		return fmt.Errorf("cannot start in %s phase: %w", c.session.Phase, ErrInvalidTransition)
	}

	slide := &c.pres.Slides[c.index]
	err := c.commitLocked(ctx, c.freshSessionLocked(c.index, slide.FirstPhase()), c.index)
	return c.finish(err)
}

// Advance moves to the next slide and starts its first timed phase.
func (c *Controller) Advance(ctx context.Context) error {
	c.mu.Lock()
	if c.index >= len(c.pres.Slides)-1 {
		c.mu.Unlock()
		return ErrNoNextSlide
	}

	idx := c.index + 1
	slide := &c.pres.Slides[idx]
	err := c.commitLocked(ctx, c.freshSessionLocked(idx, slide.FirstPhase()), idx)
	return c.finish(err)
}

// Back moves to the previous slide in the ready phase with the timer stopped.
func (c *Controller) Back(ctx context.Context) error {
	c.mu.Lock()
	if c.index == 0 {
		c.mu.Unlock()
		return ErrNoPrevSlide
	}

	idx := c.index - 1
	err := c.commitLocked(ctx, c.freshSessionLocked(idx, board.PhaseReady), idx)
	return c.finish(err)
}

// Reset returns the current slide to the ready phase.
func (c *Controller) Reset(ctx context.Context) error {
	c.mu.Lock()
	err := c.commitLocked(ctx, c.freshSessionLocked(c.index, board.PhaseReady), c.index)
	return c.finish(err)
}

// Pause freezes the countdown. Pausing a paused session is a no-op.
func (c *Controller) Pause(ctx context.Context) error {
	c.mu.Lock()
	if !c.session.Phase.Timed() {
		c.mu.Unlock()
		return fmt.Errorf("cannot pause in %s phase: %w", c.session.Phase, ErrInvalidTransition)
	}
	if c.session.Paused {
		c.mu.Unlock()
		return nil
	}

	next := c.session
	next.Paused = true
	next.PausedAtMs = c.nowMs()
	err := c.commitLocked(ctx, next, c.index)
	return c.finish(err)
}

// Resume restarts a paused countdown. The phase start is shifted so that
// the time elapsed before the pause is preserved.
func (c *Controller) Resume(ctx context.Context) error {
	c.mu.Lock()
	if !c.session.Phase.Timed() {
		c.mu.Unlock()
		return fmt.Errorf("cannot resume in %s phase: %w", c.session.Phase, ErrInvalidTransition)
	}
	if !c.session.Paused {
		c.mu.Unlock()
		return nil
	}

	now := c.nowMs()
	next := c.session
	next.StartTimeMs = now - c.session.ElapsedMs(now)
	next.Paused = false
	next.PausedAtMs = 0
	err := c.commitLocked(ctx, next, c.index)
	return c.finish(err)
}

// End deletes the stored session and stops the countdown. The controller
// returns to the ready phase of the first slide and may be started again.
func (c *Controller) End(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.stopTimerLocked()

	if err := c.store.DeleteSession(ctx, c.pres.ID); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("failed to end session: %w", err)
	}

	c.index = 0
	c.session = c.freshSessionLocked(0, board.PhaseReady)
	c.session.Revision = 0
	c.live = false
	state := c.stateLocked()
	c.mu.Unlock()

	log.Info().Str("presentation_id", c.pres.ID).Msg("session ended")
	c.notify(state)
	return nil
}

// State returns a snapshot of the controller.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

// Close stops the countdown without touching the store. Every later
// transition fails with ErrClosed. Implements io.Closer.
func (c *Controller) Close() error {
	c.mu.Lock()
	c.closed = true
	c.stopTimerLocked()
	c.mu.Unlock()
	c.cancel()
	return nil
}

// Closed reports whether Close has been called.
func (c *Controller) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// freshSessionLocked builds a session for slide idx entering phase now.
func (c *Controller) freshSessionLocked(idx int, phase board.Phase) board.ActiveSession {
	return board.ActiveSession{
		PresentationID: c.pres.ID,
		SlideID:        c.pres.Slides[idx].ID,
		Phase:          phase,
		StartTimeMs:    c.nowMs(),
		Revision:       c.session.Revision,
	}
}

// commitLocked writes next to the store and makes it current. On a revision
// conflict the stored session is adopted instead and the conflict returned.
func (c *Controller) commitLocked(ctx context.Context, next board.ActiveSession, idx int) error {
	if c.closed {
		return ErrClosed
	}
	next.Revision = c.session.Revision

	if err := c.store.SaveSession(ctx, &next); err != nil {
		if errors.Is(err, board.ErrStaleSession) {
			return c.resyncLocked(ctx)
		}
		return fmt.Errorf("failed to publish session: %w", err)
	}

	prev := c.session.Phase
	c.index = idx
	c.session = next
	c.live = true
	c.armLocked()

	log.Info().
		Str("presentation_id", c.pres.ID).
		Str("slide_id", next.SlideID).
		Str("from", string(prev)).
		Str("phase", string(next.Phase)).
		Bool("paused", next.Paused).
		Int64("revision", next.Revision).
		Msg("session transition")
	return nil
}

// resyncLocked adopts whatever another presenter stored and reports the conflict.
func (c *Controller) resyncLocked(ctx context.Context) error {
	stored, err := c.store.GetSession(ctx, c.pres.ID)
	switch {
	case board.IsNotFound(err):
		c.session.Revision = 0
		c.live = false
		c.stopTimerLocked()
	case err != nil:
		return fmt.Errorf("%w: reload failed: %v", board.ErrStaleSession, err)
	default:
		if _, idx := c.pres.FindSlide(stored.SlideID); idx >= 0 {
			c.adoptLocked(stored, idx)
		} else {
			c.session.Revision = stored.Revision
			c.live = true
		}
	}

	log.Warn().
		Str("presentation_id", c.pres.ID).
		Int64("revision", c.session.Revision).
		Msg("session changed elsewhere, adopted stored state")
	return board.ErrStaleSession
}

// adoptLocked makes a stored session current and re-arms its countdown.
func (c *Controller) adoptLocked(stored *board.ActiveSession, idx int) {
	c.index = idx
	c.session = *stored
	c.live = true
	c.armLocked()
}

// catchUpLocked runs the automatic transitions a restored session missed
// while nobody was presenting.
func (c *Controller) catchUpLocked(ctx context.Context) {
	for c.session.Phase.Timed() && !c.session.Paused && c.remainingLocked() == 0 {
		if err := c.commitLocked(ctx, c.expiredSessionLocked(), c.index); err != nil {
			log.Error().Err(err).Str("presentation_id", c.pres.ID).Msg("failed to catch up restored session")
			return
		}
	}
}

// expiredSessionLocked is the session that follows a countdown reaching zero.
func (c *Controller) expiredSessionLocked() board.ActiveSession {
	if c.session.Phase == board.PhaseReading {
		return c.freshSessionLocked(c.index, board.PhaseVoting)
	}
	return c.freshSessionLocked(c.index, board.PhaseFinished)
}

// armLocked replaces the countdown timer to match the current session.
func (c *Controller) armLocked() {
	c.stopTimerLocked()
	if !c.session.Phase.Timed() || c.session.Paused {
		return
	}

	remaining := time.Duration(c.remainingLocked()) * time.Millisecond
	if remaining <= 0 {
		// catchUpLocked or the caller handles an already elapsed phase
		return
	}

	gen := c.gen
	timer := c.clock.NewTimer(remaining)
	done := make(chan struct{})
	var once sync.Once
	c.stopTimer = func() {
		once.Do(func() {
			close(done)
			stopAndDrainTimer(timer)
		})
	}

	go func() {
		select {
		case <-timer.Chan():
			c.expire(gen)
		case <-done:
		case <-c.ctx.Done():
			stopAndDrainTimer(timer)
		}
	}()

	log.Debug().
		Str("presentation_id", c.pres.ID).
		Str("phase", string(c.session.Phase)).
		Dur("duration", remaining).
		Msg("scheduled countdown")
}

// expire handles a countdown reaching zero. Timers from an older
// generation are ignored.
func (c *Controller) expire(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || c.closed {
		c.mu.Unlock()
		log.Debug().Str("presentation_id", c.pres.ID).Msg("ignoring stale countdown")
		return
	}

	err := c.commitLocked(c.ctx, c.expiredSessionLocked(), c.index)
	if err != nil {
		log.Error().Err(err).Str("presentation_id", c.pres.ID).Msg("automatic transition failed")
	}
	c.finish(err)
}

// stopTimerLocked cancels the countdown and invalidates any timer in flight.
func (c *Controller) stopTimerLocked() {
	c.gen++
	if c.stopTimer != nil {
		c.stopTimer()
		c.stopTimer = nil
	}
}

// finish releases the lock held by a mutating method and notifies listeners.
func (c *Controller) finish(err error) error {
	state := c.stateLocked()
	c.mu.Unlock()

	if err == nil || errors.Is(err, board.ErrStaleSession) {
		c.notify(state)
	}
	return err
}

func (c *Controller) notify(state State) {
	if c.onChange != nil {
		c.onChange(state)
	}
}

func (c *Controller) remainingLocked() int64 {
	return c.session.RemainingMs(&c.pres.Slides[c.index], c.nowMs())
}

func (c *Controller) stateLocked() State {
	slide := c.pres.Slides[c.index]
	return State{
		Session:     c.session,
		SlideIndex:  c.index,
		SlideCount:  len(c.pres.Slides),
		Slide:       slide,
		RemainingMs: c.remainingLocked(),
		Running:     c.live && c.session.Phase.Timed() && !c.session.Paused,
		Live:        c.live,
	}
}

func (c *Controller) nowMs() int64 {
	return c.clock.Now().UnixMilli()
}

// stopAndDrainTimer stops a timer and drains its channel if it already fired.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
