package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/timeportal/engine/internal/character"
	"github.com/timeportal/engine/internal/convo"
	"github.com/timeportal/engine/internal/observe"
	"github.com/timeportal/engine/internal/save"
)

// characterSummary is one row of the catalog listing.
type characterSummary struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Role     string      `json:"role"`
	Location string      `json:"location,omitempty"`
	State    convo.State `json:"state"`
}

// characterDetail adds the relationship view a UI needs to render a character
// screen. Secrets and unrevealed info are deliberately absent.
type characterDetail struct {
	characterSummary
	Personality  string    `json:"personality,omitempty"`
	Background   string    `json:"background,omitempty"`
	Relationship int       `json:"relationship"`
	Familiarity  int       `json:"familiarity"`
	Affection    int       `json:"affection"`
	Trust        int       `json:"trust"`
	Emotion      string    `json:"emotion"`
	MetPlayer    bool      `json:"met_player"`
	LearnedInfo  []string  `json:"learned_info,omitempty"`
	FirstMet     time.Time `json:"first_met,omitzero"`
}

type messageRequest struct {
	Message string `json:"message"`
}

type learnRequest struct {
	Info string `json:"info"`
}

type learnResponse struct {
	Stored bool `json:"stored"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type statusResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleListCharacters(w http.ResponseWriter, r *http.Request) {
	identities := s.catalog.List()
	out := make([]characterSummary, 0, len(identities))
	for _, id := range identities {
		out = append(out, s.summary(id))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetCharacter(w http.ResponseWriter, r *http.Request) {
	identity, err := s.catalog.Get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	rec := s.memory.Snapshot(identity.ID)
	writeJSON(w, http.StatusOK, characterDetail{
		characterSummary: s.summary(identity),
		Personality:      identity.Personality,
		Background:       identity.Background,
		Relationship:     rec.Relationship,
		Familiarity:      rec.Familiarity,
		Affection:        rec.Affection,
		Trust:            rec.Trust,
		Emotion:          rec.Emotion,
		MetPlayer:        rec.MetPlayer,
		LearnedInfo:      rec.LearnedInfo,
		FirstMet:         rec.Stats.FirstMet,
	})
}

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	ev, err := s.engine.Open(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if req.Message == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "message must not be empty"})
		return
	}

	ev, err := s.engine.SendMessage(r.Context(), r.PathValue("id"), req.Message)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (s *Server) handleLearn(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.catalog.Get(id); err != nil {
		s.writeError(w, r, err)
		return
	}

	var req learnRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if req.Info == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "info must not be empty"})
		return
	}

	stored := s.engine.LearnInfo(r.Context(), id, req.Info)
	writeJSON(w, http.StatusOK, learnResponse{Stored: stored})
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.catalog.Get(id); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.engine.Close(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "closed"})
}

func (s *Server) handlePlayer(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.player.State())
}

func (s *Server) handleListSaves(w http.ResponseWriter, r *http.Request) {
	if s.game == nil {
		s.writeUnavailable(w)
		return
	}
	slots, err := s.game.ListSaves(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if slots == nil {
		slots = []SlotSummary{}
	}
	writeJSON(w, http.StatusOK, slots)
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if s.game == nil {
		s.writeUnavailable(w)
		return
	}
	if err := s.game.SaveGame(r.Context(), r.PathValue("slot")); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "saved"})
}

func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	if s.game == nil {
		s.writeUnavailable(w)
		return
	}
	if err := s.game.LoadGame(r.Context(), r.PathValue("slot")); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "loaded"})
}

func (s *Server) handleDeleteSave(w http.ResponseWriter, r *http.Request) {
	if s.game == nil {
		s.writeUnavailable(w)
		return
	}
	if err := s.game.DeleteSave(r.Context(), r.PathValue("slot")); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "deleted"})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if s.game == nil {
		s.writeUnavailable(w)
		return
	}
	if err := s.game.ResetGame(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "reset"})
}

// summary builds the listing row for one identity.
func (s *Server) summary(id *character.Identity) characterSummary {
	return characterSummary{
		ID:       id.ID,
		Name:     id.Name,
		Role:     id.Role,
		Location: id.Location,
		State:    s.engine.CharacterState(id.ID),
	}
}

// writeError maps domain errors to HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, character.ErrNotFound), errors.Is(err, save.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, convo.ErrAlreadyOpen), errors.Is(err, convo.ErrNotOpen):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		observe.Logger(r.Context()).Error("request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()))
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) writeUnavailable(w http.ResponseWriter) {
	writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "save system is not configured"})
}

// decodeJSON parses the request body into v, rejecting unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// writeJSON encodes v with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encoding failed"}`, http.StatusInternalServerError)
	}
}
