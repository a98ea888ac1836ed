package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"ventwave/internal/agent"
	"ventwave/internal/history"
	"ventwave/internal/llm"
)

type agentInfo struct {
	Name     string   `json:"name"`
	Provider string   `json:"provider"`
	Model    string   `json:"model"`
	Output   string   `json:"output"`
	Tools    []string `json:"tools"`
	Sections []string `json:"sections"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("writing json response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	input, err := s.readInput(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if input.Empty() {
		writeError(w, http.StatusBadRequest, "prompt or at least one image is required")
		return
	}

	sse := NewSSEWriter(w)
	var sentError bool

	_, err = s.agent.Send(r.Context(), input, func(ev agent.Event) {
		switch ev.Type {
		case agent.EventToken:
			sse.Send("token", map[string]any{"content": ev.Data})
		case agent.EventToolCall:
			sse.Send("tool_call", ev.Data)
		case agent.EventToolResult:
			sse.Send("tool_result", ev.Data)
		case agent.EventError:
			sentError = true
			sse.Send("error", map[string]any{"error": ev.Data})
		case agent.EventDone:
			sse.Send("done", ev.Data)
		}
	})

	if err != nil && !sentError {
		sse.Send("error", map[string]string{"error": err.Error()})
	}
}

func (s *Server) readInput(w http.ResponseWriter, r *http.Request) (llm.Input, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		return llm.Input{}, fmt.Errorf("invalid multipart body: %w", err)
	}

	input := llm.Input{Text: r.FormValue("prompt")}
	for _, fh := range r.MultipartForm.File["image"] {
		f, err := fh.Open()
		if err != nil {
			return llm.Input{}, fmt.Errorf("reading %s: %w", fh.Filename, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return llm.Input{}, fmt.Errorf("reading %s: %w", fh.Filename, err)
		}
		img, err := llm.NewImage(fh.Filename, data)
		if err != nil {
			return llm.Input{}, err
		}
		input.Images = append(input.Images, img)
	}
	return input, nil
}

func (s *Server) handleAgent(w http.ResponseWriter, r *http.Request) {
	cfg := s.agent.Config()
	model := cfg.Model()
	writeJSON(w, http.StatusOK, agentInfo{
		Name:     cfg.Name(),
		Provider: model.Provider,
		Model:    model.ModelID,
		Output:   string(cfg.OutputMode()),
		Tools:    cfg.ToolNames(),
		Sections: cfg.Instructions().OutputTemplate.Titles(),
	})
}

func (s *Server) handleInstructions(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, s.agent.Config().SystemPrompt())
}

func (s *Server) handleListAnalyses(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotImplemented, "history is disabled")
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	analyses, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		slog.Error("listing analyses failed", "error", err)
		writeError(w, http.StatusInternalServerError, "listing analyses failed")
		return
	}
	if analyses == nil {
		analyses = []history.Analysis{}
	}
	writeJSON(w, http.StatusOK, analyses)
}

func (s *Server) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotImplemented, "history is disabled")
		return
	}
	a, err := s.history.Get(r.Context(), r.PathValue("id"))
	if errors.Is(err, history.ErrNotFound) {
		writeError(w, http.StatusNotFound, "analysis not found")
		return
	}
	if err != nil {
		slog.Error("loading analysis failed", "error", err)
		writeError(w, http.StatusInternalServerError, "loading analysis failed")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
