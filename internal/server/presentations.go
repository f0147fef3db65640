package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/dyluth/roost/internal/auth"
	"github.com/dyluth/roost/internal/resolver"
	"github.com/dyluth/roost/pkg/board"
	"github.com/google/uuid"
)

// PresentationSummary is one row of the dashboard.
type PresentationSummary struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	SlideCount  int    `json:"slide_count"`
	CreatedAtMs int64  `json:"created_at_ms"`
	UpdatedAtMs int64  `json:"updated_at_ms"`
}

type createRequest struct {
	Title string `json:"title"`
}

type updateRequest struct {
	Title  string        `json:"title"`
	Slides []board.Slide `json:"slides"`
}

// ShareResponse carries what a presenter hands to the audience.
type ShareResponse struct {
	Code    string `json:"code"`
	JoinURL string `json:"join_url"`
}

var errNotOwner = errors.New("presentation not found")

// ownedPresentation loads the {id} presentation and checks it belongs to the
// caller. It writes the error response itself and returns nil on failure.
// Presentations owned by someone else are reported as missing.
func (s *Server) ownedPresentation(w http.ResponseWriter, r *http.Request) *board.Presentation {
	user, _ := auth.UserFromContext(r.Context())

	p, err := s.store.GetPresentation(r.Context(), r.PathValue("id"))
	if err != nil {
		if board.IsNotFound(err) {
			writeError(w, http.StatusNotFound, errNotOwner.Error())
			return nil
		}
		internalError(w, r, err, "failed to load presentation")
		return nil
	}

	if p.OwnerID != user {
		writeError(w, http.StatusNotFound, errNotOwner.Error())
		return nil
	}
	return p
}

func (s *Server) handleListPresentations(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	summaries := make([]PresentationSummary, 0)
	list, err := s.store.ListPresentations(r.Context(), user)
	if err != nil {
		logger(r).Error().Err(err).Msg("failed to list presentations")
		writeJSON(w, http.StatusOK, summaries)
		return
	}

	for _, p := range list {
		summaries = append(summaries, PresentationSummary{
			ID:          p.ID,
			Title:       p.Title,
			SlideCount:  len(p.Slides),
			CreatedAtMs: p.CreatedAtMs,
			UpdatedAtMs: p.UpdatedAtMs,
		})
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) handleCreatePresentation(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	var req createRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	p := board.NewPresentation(title, user)
	if err := s.store.CreatePresentation(r.Context(), p); err != nil {
		internalError(w, r, err, "failed to create presentation")
		return
	}

	logger(r).Info().Str("presentation_id", p.ID).Str("owner", user).Msg("presentation created")
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleGetPresentation(w http.ResponseWriter, r *http.Request) {
	if p := s.ownedPresentation(w, r); p != nil {
		writeJSON(w, http.StatusOK, p)
	}
}

// handleUpdatePresentation saves the editor state: title and the complete
// ordered slide list. Slide order is taken from the array position and new
// slides or options without an id get one.
func (s *Server) handleUpdatePresentation(w http.ResponseWriter, r *http.Request) {
	p := s.ownedPresentation(w, r)
	if p == nil {
		return
	}

	var req updateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	p.Title = strings.TrimSpace(req.Title)
	p.Slides = req.Slides
	if p.Slides == nil {
		p.Slides = []board.Slide{}
	}
	for i := range p.Slides {
		slide := &p.Slides[i]
		slide.Order = i
		if slide.ID == "" {
			slide.ID = uuid.New().String()
		}
		if slide.Options == nil {
			slide.Options = []board.Option{}
		}
		for j := range slide.Options {
			if slide.Options[j].ID == "" {
				slide.Options[j].ID = uuid.New().String()
			}
		}
	}

	if err := p.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.store.SavePresentation(r.Context(), p); err != nil {
		internalError(w, r, err, "failed to save presentation")
		return
	}

	// A running controller still holds the old slides
	s.presenters.evict(p.ID)

	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeletePresentation(w http.ResponseWriter, r *http.Request) {
	p := s.ownedPresentation(w, r)
	if p == nil {
		return
	}

	s.presenters.evict(p.ID)
	if err := s.store.DeletePresentation(r.Context(), p.ID); err != nil {
		internalError(w, r, err, "failed to delete presentation")
		return
	}

	logger(r).Info().Str("presentation_id", p.ID).Msg("presentation deleted")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleShare(w http.ResponseWriter, r *http.Request) {
	p := s.ownedPresentation(w, r)
	if p == nil {
		return
	}

	code, err := resolver.CodeFor(r.Context(), s.store, p.ID)
	if err != nil {
		internalError(w, r, err, "failed to compute join code")
		return
	}

	writeJSON(w, http.StatusOK, ShareResponse{Code: code, JoinURL: s.joinURL(code)})
}

func (s *Server) handlePresenterSocket(w http.ResponseWriter, r *http.Request) {
	p := s.ownedPresentation(w, r)
	if p == nil {
		return
	}

	if err := s.gateway.Serve(w, r, p.ID, true); err != nil {
		logger(r).Warn().Err(err).Str("presentation_id", p.ID).Msg("presenter socket failed")
	}
}
