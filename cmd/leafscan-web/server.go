package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fpang/leafscan/internal/cli"
	"github.com/fpang/leafscan/internal/filehandler"
	"github.com/fpang/leafscan/internal/workflow"
	"github.com/rs/zerolog/log"
)

// maxUploadBytes caps a single uploaded image.
const maxUploadBytes = 25 << 20

// longPollTimeout bounds GET /api/state?since=N.
const longPollTimeout = 25 * time.Second

// Remedier suggests treatment for a class label. *chat.Adviser implements it.
type Remedier interface {
	SuggestRemedy(ctx context.Context, label string) (string, error)
}

type server struct {
	wf      *workflow.Workflow
	hub     *hub
	adviser Remedier

	// pick opens the native file dialog. Replaced in tests.
	pick func() (string, error)
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/state", s.handleState)
	mux.HandleFunc("POST /api/select", s.handleSelect)
	mux.HandleFunc("POST /api/drag", s.handleDrag)
	mux.HandleFunc("POST /api/drop", s.handleDrop)
	mux.HandleFunc("POST /api/pick", s.handlePick)
	mux.HandleFunc("POST /api/submit", s.handleSubmit)
	mux.HandleFunc("POST /api/reset", s.handleReset)
	mux.HandleFunc("POST /api/remedy", s.handleRemedy)
	return mux
}

func (s *server) respondState(w http.ResponseWriter, status int) {
	respondJSON(w, status, s.wf.Snapshot().View(true))
}

// GET /api/state[?since=N]
// With since, blocks until the state version passes N or the poll times out.
func (s *server) handleState(w http.ResponseWriter, r *http.Request) {
	if raw := r.URL.Query().Get("since"); raw != "" {
		since, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			httpError(w, http.StatusBadRequest, "since must be a version number")
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), longPollTimeout)
		defer cancel()
		s.hub.waitPast(ctx, since)
	}
	s.respondState(w, http.StatusOK)
}

// POST /api/select (multipart "file")
func (s *server) handleSelect(w http.ResponseWriter, r *http.Request) {
	a, err := readUpload(w, r)
	if err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}
	if a == nil {
		httpError(w, http.StatusBadRequest, workflow.NoticeSelectImage)
		return
	}
	s.selectArtifact(w, r, func() error { return s.wf.SelectFile(r.Context(), a) })
}

// POST /api/drag {"over": bool}
func (s *server) handleDrag(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Over bool `json:"over"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Over {
		s.wf.DragEnter()
	} else {
		s.wf.DragLeave()
	}
	s.respondState(w, http.StatusOK)
}

// POST /api/drop (multipart, "file" optional)
func (s *server) handleDrop(w http.ResponseWriter, r *http.Request) {
	a, err := readUpload(w, r)
	if err != nil {
		s.wf.Drop(r.Context(), nil)
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.selectArtifact(w, r, func() error { return s.wf.Drop(r.Context(), a) })
}

// POST /api/pick
// Opens a native OS file dialog on the machine running the server.
func (s *server) handlePick(w http.ResponseWriter, r *http.Request) {
	path, err := s.pick()
	if err != nil {
		if errors.Is(err, cli.ErrPickCanceled) {
			respondJSON(w, http.StatusOK, map[string]interface{}{
				"canceled": true,
				"state":    s.wf.Snapshot().View(true),
			})
			return
		}
		log.Error().Err(err).Msg("File picker failed")
		httpError(w, http.StatusInternalServerError, "file picker failed")
		return
	}

	a, err := filehandler.LoadArtifact(path)
	if err != nil {
		httpError(w, http.StatusBadRequest, "failed to read selected file")
		return
	}
	s.selectArtifact(w, r, func() error { return s.wf.SelectFile(r.Context(), a) })
}

func (s *server) selectArtifact(w http.ResponseWriter, _ *http.Request, selectFn func() error) {
	if err := selectFn(); err != nil {
		var valErr *filehandler.ValidationError
		if errors.As(err, &valErr) {
			httpError(w, http.StatusUnsupportedMediaType, err.Error())
			return
		}
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondState(w, http.StatusOK)
}

// POST /api/submit
// Returns 202 immediately; poll /api/state for the outcome.
func (s *server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if err := s.wf.Submit(r.Context()); err != nil {
		if errors.Is(err, workflow.ErrNoArtifact) {
			respondJSON(w, http.StatusConflict, s.wf.Snapshot().View(true))
			return
		}
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondState(w, http.StatusAccepted)
}

// POST /api/reset
func (s *server) handleReset(w http.ResponseWriter, _ *http.Request) {
	s.wf.Reset()
	s.respondState(w, http.StatusOK)
}

// POST /api/remedy {"label": "..."}; label defaults to the current prediction.
func (s *server) handleRemedy(w http.ResponseWriter, r *http.Request) {
	if s.adviser == nil {
		httpError(w, http.StatusServiceUnavailable, "remedy suggestions need GEMINI_API_KEY")
		return
	}

	var req struct {
		Label string `json:"label"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		httpError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Label == "" {
		if res := s.wf.Snapshot().Result; res != nil {
			req.Label = res.Label
		}
	}
	if req.Label == "" {
		httpError(w, http.StatusBadRequest, "label is required before a prediction exists")
		return
	}

	remedy, err := s.adviser.SuggestRemedy(r.Context(), req.Label)
	if err != nil {
		log.Warn().Err(err).Str("label", req.Label).Msg("Remedy request failed")
		httpError(w, http.StatusBadGateway, cli.RemedyMessage(err))
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"label": req.Label, "remedy": remedy})
}

// readUpload returns the multipart "file" part as an artifact, or nil when
// the request carries no file.
func readUpload(w http.ResponseWriter, r *http.Request) (*filehandler.Artifact, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, errors.New("invalid upload")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, errors.New("failed to read upload")
	}
	return filehandler.NewArtifact(filepath.Base(header.Filename), declaredType(header), data), nil
}

// declaredType trusts the part's Content-Type. Browsers report HEIC and
// some other photos as empty or application/octet-stream, so a known image
// extension overrides those generic types.
func declaredType(h *multipart.FileHeader) string {
	ct := strings.TrimSpace(h.Header.Get("Content-Type"))
	if ct != "" && ct != "application/octet-stream" {
		return ct
	}
	if ext := filepath.Ext(h.Filename); filehandler.IsImage(ext) {
		return filehandler.GetMIMEType(ext)
	}
	return "application/octet-stream"
}
