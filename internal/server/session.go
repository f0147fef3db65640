package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/dyluth/roost/internal/scoring"
	"github.com/dyluth/roost/internal/session"
	"github.com/dyluth/roost/pkg/board"
)

// SessionResponse is the presenter view of the live session.
type SessionResponse struct {
	session.State
	Error string `json:"error,omitempty"`
}

// ResultsResponse is the live tally of one slide.
type ResultsResponse struct {
	SlideID   string                 `json:"slide_id"`
	Type      board.SlideType        `json:"type"`
	Total     int                    `json:"total"`
	Options   []scoring.OptionResult `json:"options,omitempty"`
	WordCloud []scoring.WordCount    `json:"word_cloud,omitempty"`
}

// handleGetSession reports the running controller's state, or what the store
// holds when nobody presents through this server.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	p := s.ownedPresentation(w, r)
	if p == nil {
		return
	}

	if c, ok := s.presenters.lookup(p.ID); ok {
		writeJSON(w, http.StatusOK, SessionResponse{State: c.State()})
		return
	}

	state := session.State{SlideCount: len(p.Slides)}
	if len(p.Slides) > 0 {
		state.Slide = p.Slides[0]
	}
	stored, err := s.store.GetSession(r.Context(), p.ID)
	switch {
	case board.IsNotFound(err):
	case err != nil:
		logger(r).Error().Err(err).Str("presentation_id", p.ID).Msg("failed to read session")
	default:
		state.Session = *stored
		state.Live = true
		if slide, idx := p.FindSlide(stored.SlideID); slide != nil {
			state.Slide = *slide
			state.SlideIndex = idx
			state.RemainingMs = stored.RemainingMs(slide, s.clock.Now().UnixMilli())
			state.Running = stored.Phase.Timed() && !stored.Paused
		}
	}

	writeJSON(w, http.StatusOK, SessionResponse{State: state})
}

func (s *Server) handleSessionAction(w http.ResponseWriter, r *http.Request) {
	p := s.ownedPresentation(w, r)
	if p == nil {
		return
	}
	if len(p.Slides) == 0 {
		writeError(w, http.StatusConflict, session.ErrEmptyPresentation.Error())
		return
	}

	ctx := r.Context()
	action := r.PathValue("action")
	if !knownAction(action) {
		writeError(w, http.StatusNotFound, "unknown session action: "+action)
		return
	}

	var c *session.Controller
	var err error
	for attempt := 0; attempt < maxActionAttempts; attempt++ {
		if attempt > 0 {
			if p, err = s.store.GetPresentation(ctx, p.ID); err != nil {
				if board.IsNotFound(err) {
					writeError(w, http.StatusNotFound, errNotOwner.Error())
					return
				}
				internalError(w, r, err, "failed to reload presentation")
				return
			}
			if len(p.Slides) == 0 {
				writeError(w, http.StatusConflict, session.ErrEmptyPresentation.Error())
				return
			}
		}
		c, err = s.presenters.get(ctx, p)
		if err != nil {
			internalError(w, r, err, "failed to attach presenter")
			return
		}
		// A concurrent edit or end may close c between get and the call
		if err = applyAction(ctx, c, action); !errors.Is(err, session.ErrClosed) {
			break
		}
	}

	if action == "end" && err == nil {
		state := c.State()
		s.presenters.evict(p.ID)
		writeJSON(w, http.StatusOK, SessionResponse{State: state})
		return
	}

	resp := SessionResponse{State: c.State()}
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, resp)
	case errors.Is(err, board.ErrStaleSession),
		errors.Is(err, session.ErrNoNextSlide),
		errors.Is(err, session.ErrNoPrevSlide),
		errors.Is(err, session.ErrInvalidTransition),
		errors.Is(err, session.ErrClosed):
		resp.Error = err.Error()
		writeJSON(w, http.StatusConflict, resp)
	default:
		internalError(w, r, err, "session action failed")
	}
}

const maxActionAttempts = 3

func knownAction(action string) bool {
	switch action {
	case "start", "advance", "back", "pause", "resume", "reset", "end":
		return true
	}
	return false
}

func applyAction(ctx context.Context, c *session.Controller, action string) error {
	switch action {
	case "start":
		return c.Start(ctx)
	case "advance":
		return c.Advance(ctx)
	case "back":
		return c.Back(ctx)
	case "pause":
		return c.Pause(ctx)
	case "resume":
		return c.Resume(ctx)
	case "reset":
		return c.Reset(ctx)
	case "end":
		return c.End(ctx)
	}
	return fmt.Errorf("unknown session action: %s", action)
}

// handleResults tallies the slide named by ?slide= or, by default, the
// current slide of the session. Store failures degrade to an empty tally.
func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	p := s.ownedPresentation(w, r)
	if p == nil {
		return
	}
	if len(p.Slides) == 0 {
		writeError(w, http.StatusNotFound, "presentation has no slides")
		return
	}

	slideID := r.URL.Query().Get("slide")
	if slideID == "" {
		slideID = p.Slides[0].ID
		if stored, err := s.store.GetSession(r.Context(), p.ID); err == nil {
			slideID = stored.SlideID
		}
	}

	slide, _ := p.FindSlide(slideID)
	if slide == nil {
		writeError(w, http.StatusNotFound, "slide not found")
		return
	}

	votes, err := s.store.GetVotesForSlide(r.Context(), p.ID, slide.ID)
	if err != nil {
		logger(r).Error().Err(err).Str("presentation_id", p.ID).Msg("failed to read votes")
		votes = nil
	}

	resp := ResultsResponse{SlideID: slide.ID, Type: slide.Type}
	switch slide.Type {
	case board.SlideTypeWordCloud:
		resp.WordCloud = scoring.WordCloud(votes)
		for _, wc := range resp.WordCloud {
			resp.Total += wc.Count
		}
	default:
		resp.Options = scoring.Results(slide, votes)
		resp.Total = scoring.Total(resp.Options)
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	p := s.ownedPresentation(w, r)
	if p == nil {
		return
	}

	votes, err := s.store.GetVotesForPresentation(r.Context(), p.ID)
	if err != nil {
		logger(r).Error().Err(err).Str("presentation_id", p.ID).Msg("failed to read votes")
		votes = nil
	}

	writeJSON(w, http.StatusOK, scoring.Leaderboard(p, votes))
}

func (s *Server) handleResetVotes(w http.ResponseWriter, r *http.Request) {
	p := s.ownedPresentation(w, r)
	if p == nil {
		return
	}

	if err := s.store.ResetVotes(r.Context(), p.ID); err != nil {
		internalError(w, r, err, "failed to reset votes")
		return
	}

	logger(r).Info().Str("presentation_id", p.ID).Msg("votes reset")
	w.WriteHeader(http.StatusNoContent)
}
