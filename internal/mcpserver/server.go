// Package mcpserver exposes the submission workflow as MCP tools so an
// agent can select a leaf photo, submit it and read the interpreted result.
package mcpserver

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/fpang/leafscan/internal/filehandler"
	"github.com/fpang/leafscan/internal/workflow"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"
)

// defaultWait bounds the wait tool and submit with wait=true.
const defaultWait = 60 * time.Second

// Remedier suggests treatment for a class label. *chat.Adviser implements it.
type Remedier interface {
	SuggestRemedy(ctx context.Context, label string) (string, error)
}

// Server wraps the MCP SDK server around one workflow.
type Server struct {
	MCPServer *sdkmcp.Server

	wf      *workflow.Workflow
	adviser Remedier
}

// NewServer registers the workflow tools. adviser may be nil, in which case
// suggest_remedy is not offered.
func NewServer(version string, wf *workflow.Workflow, adviser Remedier) *Server {
	s := &Server{
		MCPServer: sdkmcp.NewServer(&sdkmcp.Implementation{Name: "leafscan", Version: version}, nil),
		wf:        wf,
		adviser:   adviser,
	}
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "select_image",
		Description: "Select a leaf photo by file path or base64 data. Replaces any previous selection and clears its result.",
	}, s.handleSelectImage)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "submit",
		Description: "Submit the selected image to the disease classifier. Set wait=true to block until the result is in.",
	}, s.handleSubmit)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "reset",
		Description: "Clear the selection, preview and result.",
	}, s.handleReset)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "get_state",
		Description: "Return the current workflow state, selected file and interpreted result.",
	}, s.handleGetState)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "wait",
		Description: "Block until the pending preview and submission finish, then return the state.",
	}, s.handleWait)

	if s.adviser != nil {
		sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
			Name:        "suggest_remedy",
			Description: "Ask Gemini for a short treatment for a disease label. Defaults to the current prediction.",
		}, s.handleSuggestRemedy)
	}
}

// --- Tool input/output types ---

type selectImageInput struct {
	Path       string `json:"path,omitempty" jsonschema:"local path of the image file"`
	DataBase64 string `json:"data_base64,omitempty" jsonschema:"base64-encoded image bytes, used when path is empty"`
	Name       string `json:"name,omitempty" jsonschema:"file name for data_base64 (default upload)"`
	MediaType  string `json:"media_type,omitempty" jsonschema:"declared media type for data_base64, e.g. image/jpeg"`
}

type submitInput struct {
	Wait bool `json:"wait,omitempty" jsonschema:"block until the classifier answers"`
}

type getStateInput struct {
	IncludePreview bool `json:"include_preview,omitempty" jsonschema:"include the preview data URI"`
}

type waitInput struct {
	TimeoutSeconds int `json:"timeout_seconds,omitempty" jsonschema:"maximum seconds to wait (default 60)"`
}

type suggestRemedyInput struct {
	Label string `json:"label,omitempty" jsonschema:"class label; defaults to the current prediction"`
}

type suggestRemedyOutput struct {
	Label  string `json:"label"`
	Remedy string `json:"remedy"`
}

type emptyInput struct{}

// --- Tool handlers ---

func (s *Server) handleSelectImage(ctx context.Context, _ *sdkmcp.CallToolRequest, input selectImageInput) (*sdkmcp.CallToolResult, workflow.View, error) {
	a, err := artifactFromInput(input)
	if err != nil {
		return nil, workflow.View{}, err
	}
	if err := s.wf.SelectFile(ctx, a); err != nil {
		return nil, workflow.View{}, err
	}
	log.Debug().Str("name", a.Name).Msg("Image selected over MCP")
	return nil, s.wf.Snapshot().View(false), nil
}

func artifactFromInput(input selectImageInput) (*filehandler.Artifact, error) {
	if input.Path != "" {
		return filehandler.LoadArtifact(input.Path)
	}
	if input.DataBase64 == "" {
		return nil, errors.New("path or data_base64 is required")
	}
	if input.MediaType == "" {
		return nil, errors.New("media_type is required with data_base64")
	}
	data, err := base64.StdEncoding.DecodeString(input.DataBase64)
	if err != nil {
		return nil, fmt.Errorf("invalid data_base64: %w", err)
	}
	name := input.Name
	if name == "" {
		name = "upload"
	}
	return filehandler.NewArtifact(name, input.MediaType, data), nil
}

func (s *Server) handleSubmit(ctx context.Context, _ *sdkmcp.CallToolRequest, input submitInput) (*sdkmcp.CallToolResult, workflow.View, error) {
	if err := s.wf.Submit(ctx); err != nil {
		return nil, workflow.View{}, err
	}
	if input.Wait {
		return s.waitAndView(ctx, defaultWait)
	}
	return nil, s.wf.Snapshot().View(false), nil
}

func (s *Server) handleReset(_ context.Context, _ *sdkmcp.CallToolRequest, _ emptyInput) (*sdkmcp.CallToolResult, workflow.View, error) {
	s.wf.Reset()
	return nil, s.wf.Snapshot().View(false), nil
}

func (s *Server) handleGetState(_ context.Context, _ *sdkmcp.CallToolRequest, input getStateInput) (*sdkmcp.CallToolResult, workflow.View, error) {
	return nil, s.wf.Snapshot().View(input.IncludePreview), nil
}

func (s *Server) handleWait(ctx context.Context, _ *sdkmcp.CallToolRequest, input waitInput) (*sdkmcp.CallToolResult, workflow.View, error) {
	timeout := defaultWait
	if input.TimeoutSeconds > 0 {
		timeout = time.Duration(input.TimeoutSeconds) * time.Second
	}
	return s.waitAndView(ctx, timeout)
}

func (s *Server) waitAndView(ctx context.Context, timeout time.Duration) (*sdkmcp.CallToolResult, workflow.View, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := s.wf.Wait(ctx); err != nil {
		return nil, workflow.View{}, fmt.Errorf("workflow still busy: %w", err)
	}
	return nil, s.wf.Snapshot().View(false), nil
}

func (s *Server) handleSuggestRemedy(ctx context.Context, _ *sdkmcp.CallToolRequest, input suggestRemedyInput) (*sdkmcp.CallToolResult, suggestRemedyOutput, error) {
	label := input.Label
	if label == "" {
		snap := s.wf.Snapshot()
		if snap.Result == nil {
			return nil, suggestRemedyOutput{}, errors.New("no prediction yet; pass a label or submit an image first")
		}
		label = snap.Result.Label
	}
	remedy, err := s.adviser.SuggestRemedy(ctx, label)
	if err != nil {
		return nil, suggestRemedyOutput{}, err
	}
	return nil, suggestRemedyOutput{Label: label, Remedy: remedy}, nil
}
