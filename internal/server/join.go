package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/dyluth/roost/internal/resolver"
	"github.com/dyluth/roost/internal/voter"
	"github.com/dyluth/roost/pkg/board"
)

// JoinSummary is what an anonymous participant may see of a presentation.
type JoinSummary struct {
	Code         string              `json:"code"`
	Presentation *board.Presentation `json:"presentation"`
}

type voteRequest struct {
	VoterName string `json:"voter_name"`
	OptionID  string `json:"option_id,omitempty"`
	Text      string `json:"text,omitempty"`
}

// voterError maps participant errors onto status codes.
func voterError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, voter.ErrInvalidCode):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, voter.ErrInvalidName), errors.Is(err, voter.ErrUnknownOption):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, voter.ErrVotingClosed), errors.Is(err, voter.ErrAlreadySubmitted):
		writeError(w, http.StatusConflict, err.Error())
	default:
		internalError(w, r, err, "join request failed")
	}
}

func (s *Server) handleJoinSummary(w http.ResponseWriter, r *http.Request) {
	code := strings.ToLower(r.PathValue("code"))
	id, err := resolver.ResolveJoinCode(r.Context(), s.store, code)
	if err != nil {
		if resolver.IsNotFoundError(err) {
			voterError(w, r, voter.ErrInvalidCode)
			return
		}
		internalError(w, r, err, "failed to resolve join code")
		return
	}

	p, err := s.store.GetPresentation(r.Context(), id)
	if err != nil {
		if board.IsNotFound(err) {
			voterError(w, r, voter.ErrInvalidCode)
			return
		}
		internalError(w, r, err, "failed to load presentation")
		return
	}

	writeJSON(w, http.StatusOK, JoinSummary{Code: code, Presentation: voter.RedactPresentation(p)})
}

// handleJoinSession returns the voter view for ?voter=name.
func (s *Server) handleJoinSession(w http.ResponseWriter, r *http.Request) {
	v, err := voter.Join(r.Context(), s.store, r.PathValue("code"), r.URL.Query().Get("voter"), voter.WithClock(s.clock))
	if err != nil {
		voterError(w, r, err)
		return
	}
	if err := v.Refresh(r.Context()); err != nil {
		internalError(w, r, err, "failed to read session")
		return
	}

	writeJSON(w, http.StatusOK, v.View())
}

func (s *Server) handleJoinVote(w http.ResponseWriter, r *http.Request) {
	var req voteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	v, err := voter.Join(ctx, s.store, r.PathValue("code"), req.VoterName, voter.WithClock(s.clock))
	if err != nil {
		voterError(w, r, err)
		return
	}
	if err := v.Refresh(ctx); err != nil {
		internalError(w, r, err, "failed to read session")
		return
	}

	if err := v.Submit(ctx, voter.Answer{OptionID: req.OptionID, Text: req.Text}); err != nil {
		voterError(w, r, err)
		return
	}

	logger(r).Info().
		Str("presentation_id", v.Presentation().ID).
		Str("voter", v.Name()).
		Msg("vote recorded")
	writeJSON(w, http.StatusCreated, v.View())
}

// handleVoterSocket streams session changes to a participant. Votes are not
// forwarded to voters.
func (s *Server) handleVoterSocket(w http.ResponseWriter, r *http.Request) {
	id, err := resolver.ResolveJoinCode(r.Context(), s.store, r.PathValue("code"))
	if err != nil {
		if resolver.IsNotFoundError(err) {
			voterError(w, r, voter.ErrInvalidCode)
			return
		}
		internalError(w, r, err, "failed to resolve join code")
		return
	}

	if err := s.gateway.Serve(w, r, id, false); err != nil {
		logger(r).Warn().Err(err).Str("presentation_id", id).Msg("voter socket closed")
	}
}
