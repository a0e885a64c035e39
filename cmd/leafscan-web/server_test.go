package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fpang/leafscan/internal/classifier"
	"github.com/fpang/leafscan/internal/cli"
	"github.com/fpang/leafscan/internal/filehandler"
	"github.com/fpang/leafscan/internal/workflow"
)

type stubPredictor struct {
	err error
}

func (p stubPredictor) Predict(context.Context, string, *filehandler.Artifact) (*classifier.Prediction, error) {
	if p.err != nil {
		return nil, p.err
	}
	return &classifier.Prediction{Label: "Tomato___Late_blight", Confidence: 45, Remedy: "**Remove** infected leaves"}, nil
}

type stubAdviser struct{}

func (stubAdviser) SuggestRemedy(_ context.Context, label string) (string, error) {
	return "remedy for " + label, nil
}

func newTestServer(t *testing.T, p stubPredictor) (*server, http.Handler) {
	t.Helper()
	h := newHub()
	s := &server{
		wf:   workflow.New(p, nil, workflow.WithObserver(h.observe)),
		hub:  h,
		pick: func() (string, error) { return "", cli.ErrPickCanceled },
	}
	return s, s.routes()
}

func multipartRequest(t *testing.T, path, filename, contentType string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if filename != "" {
		hdr := make(textproto.MIMEHeader)
		hdr.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
		if contentType != "" {
			hdr.Set("Content-Type", contentType)
		}
		part, err := mw.CreatePart(hdr)
		if err != nil {
			t.Fatal(err)
		}
		part.Write(data)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(t *testing.T, h http.Handler, req *http.Request) (int, workflow.View) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var v workflow.View
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		json.Unmarshal(rec.Body.Bytes(), &v)
	}
	return rec.Code, v
}

func settle(t *testing.T, s *server) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.wf.Wait(ctx); err != nil {
		t.Fatalf("workflow did not settle: %v", err)
	}
}

func TestSelectSubmitReset(t *testing.T) {
	s, h := newTestServer(t, stubPredictor{})

	code, v := serve(t, h, multipartRequest(t, "/api/select", "leaf.png", "image/png", []byte("png bytes")))
	if code != http.StatusOK || v.State != "previewing" {
		t.Fatalf("select: code=%d state=%q", code, v.State)
	}
	if v.File == nil || v.File.Name != "leaf.png" || v.File.MediaType != "image/png" {
		t.Errorf("select: file = %+v", v.File)
	}
	settle(t, s)

	code, v = serve(t, h, httptest.NewRequest(http.MethodGet, "/api/state", nil))
	if code != http.StatusOK || !strings.HasPrefix(v.Preview, "data:image/png;base64,") {
		t.Errorf("state: code=%d preview=%q", code, v.Preview)
	}

	code, v = serve(t, h, httptest.NewRequest(http.MethodPost, "/api/submit", nil))
	if code != http.StatusAccepted {
		t.Fatalf("submit: code=%d", code)
	}
	settle(t, s)

	_, v = serve(t, h, httptest.NewRequest(http.MethodGet, "/api/state", nil))
	if v.State != "succeeded" || v.Result == nil {
		t.Fatalf("after submit: %+v", v)
	}
	if !v.Result.LowConfidence || v.Result.Label.Crop != "Tomato" {
		t.Errorf("result = %+v", v.Result)
	}
	if !strings.Contains(v.Result.RemedyHTML, "<strong>Remove</strong>") {
		t.Errorf("remedy HTML = %q", v.Result.RemedyHTML)
	}

	code, v = serve(t, h, httptest.NewRequest(http.MethodPost, "/api/reset", nil))
	if code != http.StatusOK || v.State != "idle" || v.File != nil || v.Result != nil {
		t.Errorf("reset: code=%d view=%+v", code, v)
	}
}

func TestSelectRejectsNonImage(t *testing.T) {
	_, h := newTestServer(t, stubPredictor{})

	code, _ := serve(t, h, multipartRequest(t, "/api/select", "notes.txt", "text/plain", []byte("hi")))
	if code != http.StatusUnsupportedMediaType {
		t.Errorf("code = %d, want 415", code)
	}

	code, _ = serve(t, h, multipartRequest(t, "/api/select", "", "", nil))
	if code != http.StatusBadRequest {
		t.Errorf("missing file: code = %d, want 400", code)
	}

	_, v := serve(t, h, httptest.NewRequest(http.MethodGet, "/api/state", nil))
	if v.State != "idle" {
		t.Errorf("state changed to %q", v.State)
	}
}

func TestDeclaredTypeFallsBackToExtension(t *testing.T) {
	s, h := newTestServer(t, stubPredictor{})

	code, v := serve(t, h, multipartRequest(t, "/api/select", "leaf.jpg", "application/octet-stream", []byte{1}))
	if code != http.StatusOK || v.File.MediaType != "image/jpeg" {
		t.Errorf("code=%d file=%+v", code, v.File)
	}
	settle(t, s)
}

func TestDeclaredType(t *testing.T) {
	tests := []struct {
		filename, contentType, want string
	}{
		{"leaf.jpg", "image/jpeg", "image/jpeg"},
		{"leaf.heic", "", "image/heic"},
		{"leaf.HEIC", "application/octet-stream", "image/heic"},
		{"notes.pdf", "application/octet-stream", "application/octet-stream"},
		{"notes.txt", "", "application/octet-stream"},
		{"leaf.jpg", "text/plain", "text/plain"},
	}

	for _, tt := range tests {
		t.Run(tt.filename+"/"+tt.contentType, func(t *testing.T) {
			h := &multipart.FileHeader{Filename: tt.filename, Header: textproto.MIMEHeader{}}
			if tt.contentType != "" {
				h.Header.Set("Content-Type", tt.contentType)
			}
			if got := declaredType(h); got != tt.want {
				t.Errorf("declaredType() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDragAndDrop(t *testing.T) {
	s, h := newTestServer(t, stubPredictor{})

	_, v := serve(t, h, httptest.NewRequest(http.MethodPost, "/api/drag", strings.NewReader(`{"over":true}`)))
	if !v.Dragging {
		t.Error("drag enter not reflected")
	}

	code, v := serve(t, h, multipartRequest(t, "/api/drop", "", "", nil))
	if code != http.StatusOK || v.Dragging || v.State != "idle" {
		t.Errorf("empty drop: code=%d view=%+v", code, v)
	}

	serve(t, h, httptest.NewRequest(http.MethodPost, "/api/drag", strings.NewReader(`{"over":true}`)))
	code, v = serve(t, h, multipartRequest(t, "/api/drop", "leaf.png", "image/png", []byte("x")))
	if code != http.StatusOK || v.Dragging || v.State != "previewing" {
		t.Errorf("drop: code=%d view=%+v", code, v)
	}
	settle(t, s)

	code, _ = serve(t, h, httptest.NewRequest(http.MethodPost, "/api/drag", strings.NewReader(`not json`)))
	if code != http.StatusBadRequest {
		t.Errorf("bad drag body: code=%d", code)
	}
}

func TestSubmitWithoutSelection(t *testing.T) {
	_, h := newTestServer(t, stubPredictor{})

	code, v := serve(t, h, httptest.NewRequest(http.MethodPost, "/api/submit", nil))
	if code != http.StatusConflict {
		t.Errorf("code = %d, want 409", code)
	}
	if v.Notice != workflow.NoticeSelectImage {
		t.Errorf("notice = %q", v.Notice)
	}
}

func TestSubmitFailure(t *testing.T) {
	s, h := newTestServer(t, stubPredictor{err: classifier.ErrNetwork})

	serve(t, h, multipartRequest(t, "/api/select", "leaf.png", "image/png", []byte("x")))
	serve(t, h, httptest.NewRequest(http.MethodPost, "/api/submit", nil))
	settle(t, s)

	_, v := serve(t, h, httptest.NewRequest(http.MethodGet, "/api/state", nil))
	if v.State != "failed" || v.Notice != workflow.NoticeSubmitFailed || v.Preview == "" || v.Submitting {
		t.Errorf("after failure: %+v", v)
	}
}

func TestLongPoll(t *testing.T) {
	s, h := newTestServer(t, stubPredictor{})
	since := s.wf.Snapshot().Version

	done := make(chan workflow.View, 1)
	go func() {
		_, v := serve(t, h, httptest.NewRequest(http.MethodGet, "/api/state?since="+"0", nil))
		done <- v
	}()

	select {
	case <-done:
		t.Fatal("long poll returned before any transition")
	case <-time.After(50 * time.Millisecond):
	}

	s.wf.DragEnter()
	select {
	case v := <-done:
		if v.Version <= since || !v.Dragging {
			t.Errorf("long poll returned stale view: %+v", v)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("long poll did not wake on transition")
	}

	code, _ := serve(t, h, httptest.NewRequest(http.MethodGet, "/api/state?since=abc", nil))
	if code != http.StatusBadRequest {
		t.Errorf("bad since: code=%d", code)
	}
}

func TestPick(t *testing.T) {
	s, h := newTestServer(t, stubPredictor{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/pick", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"canceled":true`) {
		t.Errorf("canceled pick: code=%d body=%s", rec.Code, rec.Body.String())
	}

	path := filepath.Join(t.TempDir(), "leaf.jpg")
	if err := os.WriteFile(path, []byte{0xff, 0xd8}, 0o644); err != nil {
		t.Fatal(err)
	}
	s.pick = func() (string, error) { return path, nil }
	code, v := serve(t, h, httptest.NewRequest(http.MethodPost, "/api/pick", nil))
	if code != http.StatusOK || v.File == nil || v.File.Name != "leaf.jpg" {
		t.Errorf("pick: code=%d view=%+v", code, v)
	}
	settle(t, s)

	s.pick = func() (string, error) { return "", errors.New("no display") }
	if code, _ := serve(t, h, httptest.NewRequest(http.MethodPost, "/api/pick", nil)); code != http.StatusInternalServerError {
		t.Errorf("picker failure: code=%d", code)
	}
}

func TestRemedy(t *testing.T) {
	s, h := newTestServer(t, stubPredictor{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/remedy", strings.NewReader(`{"label":"x"}`)))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("without adviser: code=%d", rec.Code)
	}

	s.adviser = stubAdviser{}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/remedy", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("no label, no prediction: code=%d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/remedy", strings.NewReader(`{"label":"Apple___Black_rot"}`)))
	var out map[string]string
	json.Unmarshal(rec.Body.Bytes(), &out)
	if rec.Code != http.StatusOK || out["remedy"] != "remedy for Apple___Black_rot" {
		t.Errorf("remedy: code=%d body=%v", rec.Code, out)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	_, h := newTestServer(t, stubPredictor{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/submit", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("code = %d, want 405", rec.Code)
	}
}

func TestWithCORS(t *testing.T) {
	h := withCORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodOptions, "/api/state", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent || rec.Header().Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
		t.Errorf("localhost preflight: code=%d headers=%v", rec.Code, rec.Header())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/state", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("foreign origin allowed")
	}
}
