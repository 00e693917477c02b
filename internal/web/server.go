// Package web exposes the advisor over a small JSON HTTP API.
//
//	POST   /v1/ask      {"text": "..."} or {"preset": "2.1"}
//	POST   /v1/listen   capture and answer one spoken question
//	GET    /v1/history  committed turns, oldest first
//	DELETE /v1/history  clear the conversation
//	GET    /v1/presets  ready-made questions
//	GET    /v1/state    {"state": ..., "playback": ...}
//
// A turn runs to completion even when the client disconnects; the request
// context only carries trace and correlation values into the pipeline.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/MrWong99/krishi/internal/advisor"
	"github.com/MrWong99/krishi/internal/observe"
)

// maxBodyBytes bounds the /v1/ask request body.
const maxBodyBytes = 64 << 10

// Advisor is the part of [advisor.Pipeline] the API drives.
type Advisor interface {
	SubmitText(ctx context.Context, text string, source advisor.Source) (advisor.Turn, error)
	SubmitVoice(ctx context.Context) (advisor.Turn, error)
	History() []advisor.Turn
	Clear()
	State() advisor.State
	PlaybackState() advisor.PlaybackState
}

var _ Advisor = (*advisor.Pipeline)(nil)

// Server serves the advisor API.
type Server struct {
	advisor Advisor
	presets *advisor.PresetStore
}

// New returns a Server. presets may be nil, in which case the built-in
// question set is served.
func New(a Advisor, presets *advisor.PresetStore) *Server {
	if presets == nil {
		presets = advisor.NewPresetStore(nil)
	}
	return &Server{advisor: a, presets: presets}
}

// Register mounts the API routes on mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/ask", s.handleAsk)
	mux.HandleFunc("POST /v1/listen", s.handleListen)
	mux.HandleFunc("GET /v1/history", s.handleHistory)
	mux.HandleFunc("DELETE /v1/history", s.handleClear)
	mux.HandleFunc("GET /v1/presets", s.handlePresets)
	mux.HandleFunc("GET /v1/state", s.handleState)
}

// Handler returns a standalone handler serving only the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.Register(mux)
	return mux
}

// askRequest is the JSON body for POST /v1/ask. Exactly one field is set.
type askRequest struct {
	Text   string `json:"text"`
	Preset string `json:"preset"`
}

type historyResponse struct {
	Turns []advisor.Turn `json:"turns"`
}

type presetsResponse struct {
	Categories advisor.Presets `json:"categories"`
}

type stateResponse struct {
	State    string `json:"state"`
	Playback string `json:"playback"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	text, source := req.Text, advisor.SourceText
	switch {
	case req.Preset != "" && strings.TrimSpace(req.Text) != "":
		writeError(w, http.StatusBadRequest, "set either text or preset, not both")
		return
	case req.Preset != "":
		q, err := s.presets.Get().Lookup(req.Preset)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		text, source = q, advisor.SourcePreset
	}

	turn, err := s.advisor.SubmitText(context.WithoutCancel(r.Context()), text, source)
	s.writeTurn(w, r, turn, err)
}

func (s *Server) handleListen(w http.ResponseWriter, r *http.Request) {
	turn, err := s.advisor.SubmitVoice(context.WithoutCancel(r.Context()))
	s.writeTurn(w, r, turn, err)
}

func (s *Server) writeTurn(w http.ResponseWriter, r *http.Request, turn advisor.Turn, err error) {
	switch {
	case errors.Is(err, advisor.ErrBusy):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, advisor.ErrEmptyInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		observe.Logger(r.Context()).Error("web: submit failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	default:
		writeJSON(w, http.StatusOK, turn)
	}
}

func (s *Server) handleHistory(w http.ResponseWriter, _ *http.Request) {
	turns := s.advisor.History()
	if turns == nil {
		turns = []advisor.Turn{}
	}
	writeJSON(w, http.StatusOK, historyResponse{Turns: turns})
}

func (s *Server) handleClear(w http.ResponseWriter, _ *http.Request) {
	s.advisor.Clear()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePresets(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, presetsResponse{Categories: s.presets.Get()})
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, stateResponse{
		State:    s.advisor.State().String(),
		Playback: s.advisor.PlaybackState().String(),
	})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("web: failed to write response", "err", err)
	}
}
