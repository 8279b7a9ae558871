package mcp

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/hpungsan/tern/internal/config"
	"github.com/hpungsan/tern/internal/db"
	"github.com/hpungsan/tern/internal/errors"
	"github.com/hpungsan/tern/internal/ops"
	"github.com/hpungsan/tern/internal/session"
)

// DefaultSession is the session used when a request names none.
const DefaultSession = "mcp"

// maxSessionLen bounds caller-chosen session names.
const maxSessionLen = 128

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	db     *sql.DB
	cfg    *config.Config
	logger *zap.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(db *sql.DB, cfg *config.Config, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{db: db, cfg: cfg, logger: logger}
}

// store returns a session store scoped to the named session.
func (h *Handlers) store(name string) (*session.Store, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultSession
	}
	if len(name) > maxSessionLen {
		return nil, errors.NewInvalidRequest("session name is too long")
	}
	return session.NewStore(db.NewSessionMedium(h.db, name), h.logger.With(zap.String("session", name))), nil
}

// SessionRequest carries the optional session argument shared by most tools.
type SessionRequest struct {
	Session string `json:"session,omitempty"`
}

// CaptureRequest represents the arguments for utm_capture.
type CaptureRequest struct {
	URL     string `json:"url"`
	Session string `json:"session,omitempty"`
}

// AppendRequest represents the arguments for utm_append.
type AppendRequest struct {
	URL          string            `json:"url"`
	Platform     string            `json:"platform,omitempty"`
	Params       map[string]string `json:"params,omitempty"`
	Placement    string            `json:"placement,omitempty"`
	KeepExisting bool              `json:"keep_existing,omitempty"`
	Session      string            `json:"session,omitempty"`
}

// StripRequest represents the arguments for utm_strip.
type StripRequest struct {
	URL  string   `json:"url"`
	Keys []string `json:"keys,omitempty"`
}

// URLRequest represents the arguments for utm_inspect and url_validate.
type URLRequest struct {
	URL string `json:"url"`
}

// HandleCapture handles the utm_capture tool.
func (h *Handlers) HandleCapture(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CaptureRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if strings.TrimSpace(input.URL) == "" {
		return errorResult(errors.NewInvalidRequest("url is required")), nil
	}

	store, err := h.store(input.Session)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Capture(store, h.cfg, ops.CaptureInput{URL: input.URL})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleRead handles the utm_read tool.
func (h *Handlers) HandleRead(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SessionRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	store, err := h.store(input.Session)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Read(store, h.cfg)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleClear handles the utm_clear tool.
func (h *Handlers) HandleClear(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SessionRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	store, err := h.store(input.Session)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Clear(store, h.cfg)
	if err != nil {
		return errorResult(err), nil
	}
	if !result.Cleared {
		return errorResult(errors.NewStorageUnavailable("failed to clear session")), nil
	}

	return successResult(result)
}

// HandleAppend handles the utm_append tool.
func (h *Handlers) HandleAppend(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[AppendRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	store, err := h.store(input.Session)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Append(store, h.cfg, ops.AppendInput{
		URL:          input.URL,
		Platform:     input.Platform,
		Params:       input.Params,
		Placement:    input.Placement,
		KeepExisting: input.KeepExisting,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleStrip handles the utm_strip tool.
func (h *Handlers) HandleStrip(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[StripRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Strip(ops.StripInput{URL: input.URL, Keys: input.Keys})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleInspect handles the utm_inspect tool.
func (h *Handlers) HandleInspect(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[URLRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Inspect(h.cfg, input.URL)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleValidate handles the url_validate tool.
func (h *Handlers) HandleValidate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[URLRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Validate(h.cfg, input.URL)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// errorResult creates an MCP error result with structured JSON.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var ternErr *errors.TernError
	if stderrors.As(err, &ternErr) {
		errorObj := map[string]any{
			"code":    ternErr.Code,
			"message": ternErr.Message,
			"status":  ternErr.Status,
		}
		// Internal errors may carry SQL text or file paths.
		if ternErr.Code == errors.ErrInternal {
			errorObj["message"] = "an internal error occurred"
		} else if ternErr.Details != nil {
			errorObj["details"] = ternErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
