// Package classifier is the HTTP client for the remote leaf-disease
// classifier. It knows three endpoints:
//
//   - POST /predict: multipart upload of one image, returns a prediction
//   - POST /login: exchanges email/password for a bearer token
//   - GET /verify-token: echoes the identity behind a bearer token
//
// The client never issues tokens itself and never retries. Every call is
// bounded by the caller's context.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fpang/leafscan/internal/filehandler"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultBaseURL is where the classifier backend listens in development.
	DefaultBaseURL = "http://localhost:8000"

	// maxResponseBytes caps how much of a response body is read.
	maxResponseBytes = 1 << 20

	// requestIDHeader carries the per-call correlation ID.
	requestIDHeader = "X-Request-ID"
)

// Prediction is a successful analysis: the predicted class, its confidence
// in percent, and optional markdown remedy text.
type Prediction struct {
	Label      string  `json:"prediction"`
	Confidence float64 `json:"confidence"`
	Remedy     string  `json:"remedy,omitempty"`
}

// LoginResult is what /login hands back on success.
type LoginResult struct {
	Token string `json:"token"`
	Name  string `json:"name,omitempty"`
}

// Client talks to the classifier backend.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a classifier client for baseURL. The HTTP client has no
// timeout of its own; deadlines come from the context of each call.
func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		httpClient: &http.Client{},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend URL the client was configured with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// --- API response types ---

// predictResponse uses pointers so missing required fields can be told apart
// from zero values.
type predictResponse struct {
	Prediction *string  `json:"prediction"`
	Confidence *float64 `json:"confidence"`
	Remedy     string   `json:"remedy"`
}

// apiErr covers both error shapes the backend uses.
type apiErr struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (e apiErr) text() string {
	if e.Error != "" {
		return e.Error
	}
	return e.Message
}

// --- Prediction ---

// Predict uploads the artifact as multipart field "file" and parses the
// prediction. token may be empty, in which case no Authorization header is
// sent and the server decides.
//
// Errors wrap ErrNetwork, ErrServer (via *StatusError) or ErrMalformedResponse.
func (c *Client) Predict(ctx context.Context, token string, a *filehandler.Artifact) (*Prediction, error) {
	requestID := uuid.NewString()

	body, contentType, err := multipartBody(a)
	if err != nil {
		return nil, fmt.Errorf("build multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(requestIDHeader, requestID)
	setBearer(req, token)

	log.Debug().
		Str("requestId", requestID).
		Str("name", a.Name).
		Int64("sizeBytes", a.Size).
		Bool("hasToken", token != "").
		Msg("Classifier predict request")

	respBody, err := c.do(req, requestID)
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}

	prediction, err := parsePrediction(respBody)
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}

	log.Info().
		Str("requestId", requestID).
		Str("prediction", prediction.Label).
		Float64("confidence", prediction.Confidence).
		Bool("hasRemedy", prediction.Remedy != "").
		Msg("Prediction received")

	return prediction, nil
}

func parsePrediction(body []byte) (*Prediction, error) {
	var resp predictResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v (body: %s)", ErrMalformedResponse, err, truncate(string(body), 200))
	}
	if resp.Prediction == nil || *resp.Prediction == "" {
		return nil, fmt.Errorf("%w: missing prediction", ErrMalformedResponse)
	}
	if resp.Confidence == nil {
		return nil, fmt.Errorf("%w: missing confidence", ErrMalformedResponse)
	}
	if *resp.Confidence < 0 || *resp.Confidence > 100 {
		return nil, fmt.Errorf("%w: confidence %v outside [0, 100]", ErrMalformedResponse, *resp.Confidence)
	}
	return &Prediction{
		Label:      *resp.Prediction,
		Confidence: *resp.Confidence,
		Remedy:     resp.Remedy,
	}, nil
}

// multipartBody encodes the artifact with its declared media type rather
// than the application/octet-stream CreateFormFile would use.
func multipartBody(a *filehandler.Artifact) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(a.Name)))
	h.Set("Content-Type", a.MediaType)

	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(a.Data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// --- Session endpoints ---

// Login exchanges credentials for a bearer token. A rejected login returns a
// *LoginError carrying the server's message, or "Login failed" if it sent none.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	payload, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, fmt.Errorf("encode login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/login", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	requestID := uuid.NewString()
	req.Header.Set(requestIDHeader, requestID)

	body, err := c.do(req, requestID)
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			return nil, &LoginError{StatusCode: statusErr.StatusCode, Message: loginFailureMessage(statusErr.Body)}
		}
		return nil, fmt.Errorf("login: %w", err)
	}

	var result LoginResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("login: %w: %v", ErrMalformedResponse, err)
	}
	if result.Token == "" {
		return nil, fmt.Errorf("login: %w: missing token", ErrMalformedResponse)
	}

	log.Info().Str("requestId", requestID).Bool("hasName", result.Name != "").Msg("Login succeeded")
	return &result, nil
}

func loginFailureMessage(body string) string {
	var e apiErr
	if err := json.Unmarshal([]byte(body), &e); err == nil && e.text() != "" {
		return e.text()
	}
	return "Login failed"
}

// VerifyToken asks the backend who a token belongs to.
func (c *Client) VerifyToken(ctx context.Context, token string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/verify-token", nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	setBearer(req, token)

	requestID := uuid.NewString()
	req.Header.Set(requestIDHeader, requestID)

	body, err := c.do(req, requestID)
	if err != nil {
		return "", fmt.Errorf("verify token: %w", err)
	}

	var resp struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(body, &resp); err != nil || resp.Email == "" {
		return "", fmt.Errorf("verify token: %w", ErrMalformedResponse)
	}
	return resp.Email, nil
}

// --- Internal helpers ---

func setBearer(req *http.Request, token string) {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

// do sends the request and returns the body of a 2xx response. Transport
// failures wrap ErrNetwork; other statuses come back as *StatusError.
func (c *Client) do(req *http.Request, requestID string) ([]byte, error) {
	startTime := time.Now()

	log.Debug().Str("method", req.Method).Str("path", req.URL.Path).Str("requestId", requestID).Msg("Classifier API request")

	httpResp, err := c.httpClient.Do(req)
	duration := time.Since(startTime)
	if err != nil {
		log.Debug().Int("statusCode", 0).Dur("duration", duration).Err(err).Msg("Classifier API response")
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	defer httpResp.Body.Close()

	log.Debug().Int("statusCode", httpResp.StatusCode).Dur("duration", duration).Str("requestId", requestID).Msg("Classifier API response")

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", ErrNetwork, err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: httpResp.StatusCode, Body: truncate(string(body), 200)}
	}
	return body, nil
}

// truncate returns at most n bytes of s, cut on a rune boundary, appending
// "..." if truncated.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
