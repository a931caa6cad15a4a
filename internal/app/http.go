package app

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/MrWong99/speakeval/internal/evaluation/semantic"
	"github.com/MrWong99/speakeval/internal/observe"
)

const maxRequestBytes = 1 << 20

// EvaluateRequest is the body of POST /v1/evaluate.
type EvaluateRequest struct {
	Transcript string         `json:"transcript"`
	Answer     string         `json:"answer"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	NoSpeech   bool           `json:"no_speech,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Register mounts the evaluation API and the probes on mux.
func (a *App) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/evaluate", a.handleEvaluate)
	a.Health().Register(mux)
}

func (a *App) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req EvaluateRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return
	}
	if req.Answer == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "answer is required"})
		return
	}

	if req.NoSpeech {
		ev := a.pipeline.Silence(ctx, req.Answer, req.Metadata)
		a.publish(ctx, ev)
		writeJSON(w, http.StatusOK, ev)
		return
	}

	ev, err := a.Evaluate(ctx, req.Transcript, req.Answer, req.Metadata)
	if err != nil {
		observe.Logger(ctx).ErrorContext(ctx, "evaluation failed", "err", err)
		status := http.StatusInternalServerError
		if errors.Is(err, semantic.ErrEmbeddingFailed) {
			status = http.StatusBadGateway
		}
		writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
