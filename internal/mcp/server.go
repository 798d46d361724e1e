// Package mcp exposes the analysis engine as Model Context Protocol tools
// over stdio, so LLM agents can run root-cause analysis directly.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/autorca/autorca-core/internal/engine"
	"github.com/autorca/autorca-core/internal/models"
	"github.com/autorca/autorca-core/internal/summary"
)

// Server wraps the mcp-go server with the analysis tools.
type Server struct {
	mcpServer  *server.MCPServer
	engine     *engine.Engine
	summarizer summary.Summarizer
	logger     *slog.Logger
}

// NewServer registers the analysis tools on a fresh MCP server. The logger
// must not write to stdout, which is reserved for the protocol.
func NewServer(eng *engine.Engine, summarizer summary.Summarizer, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	mcpServer := server.NewMCPServer(
		"AutoRCA MCP Server",
		version,
		server.WithToolCapabilities(false),
		server.WithLogging(),
	)

	s := &Server{
		mcpServer:  mcpServer,
		engine:     eng,
		summarizer: summarizer,
		logger:     logger,
	}
	s.registerTools()
	return s
}

// Serve handles MCP messages on stdin/stdout until the stream closes.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcpServer)
}

// toolInput mirrors the HTTP run request so both surfaces accept the same
// payload shape.
type toolInput struct {
	Events  []models.Event `json:"events"`
	Spans   []models.Span  `json:"spans,omitempty"`
	Symptom models.Symptom `json:"symptom"`
}

func (s *Server) registerTools() {
	inputSchema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"events": map[string]any{
				"type":        "array",
				"description": "Normalized events: timestamp, service, type (log|metric|trace|config), severity, optional correlation_id, latency_ms, metric_name/metric_value, change descriptor",
				"items":       map[string]any{"type": "object"},
			},
			"spans": map[string]any{
				"type":        "array",
				"description": "Optional trace spans with parent/child identifiers used for observed dependency edges",
				"items":       map[string]any{"type": "object"},
			},
			"symptom": map[string]any{
				"type":        "object",
				"description": "The observed failure: service (required) and optional incident_id to anchor on",
				"properties": map[string]any{
					"service":     map[string]any{"type": "string"},
					"incident_id": map[string]any{"type": "string"},
				},
				"required": []string{"service"},
			},
		},
		"required": []string{"events", "symptom"},
	}

	s.registerTool(
		"run_rca",
		"Run root-cause analysis over an event stream: builds the service dependency graph, detects incidents, traces causal chains from the symptom, and returns ranked root-cause candidates as JSON",
		inputSchema,
		s.handleRun,
	)
	s.registerTool(
		"summarize_rca",
		"Run root-cause analysis and return a human-readable markdown incident summary alongside the structured result",
		inputSchema,
		s.handleSummarize,
	)
}

func (s *Server) registerTool(name, description string, inputSchema map[string]any, handler server.ToolHandlerFunc) {
	schemaJSON, err := json.Marshal(inputSchema)
	if err != nil {
		panic(fmt.Sprintf("failed to marshal schema for tool %s: %v", name, err))
	}
	s.mcpServer.AddTool(mcp.NewToolWithRawSchema(name, description, schemaJSON), handler)
}

func (s *Server) handleRun(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, errResult := s.analyze(ctx, request)
	if errResult != nil {
		return errResult, nil
	}

	payload, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to format result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(payload)), nil
}

func (s *Server) handleSummarize(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, errResult := s.analyze(ctx, request)
	if errResult != nil {
		return errResult, nil
	}

	text, err := s.summarizer.Summarize(ctx, result)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("summarization failed: %v", err)), nil
	}
	return mcp.NewToolResultText(text), nil
}

func (s *Server) analyze(ctx context.Context, request mcp.CallToolRequest) (*models.RunResult, *mcp.CallToolResult) {
	args, err := json.Marshal(request.Params.Arguments)
	if err != nil {
		return nil, mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err))
	}

	var input toolInput
	if err := json.Unmarshal(args, &input); err != nil {
		return nil, mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err))
	}
	if input.Symptom.Service == "" {
		return nil, mcp.NewToolResultError("symptom.service is required")
	}

	result, err := s.engine.Run(ctx, engine.RunInput{
		Events:  input.Events,
		Spans:   input.Spans,
		Symptom: input.Symptom,
	})
	if err != nil {
		s.logger.Warn("analysis run failed", slog.String("error", err.Error()))
		return nil, mcp.NewToolResultError(fmt.Sprintf("analysis failed: %v", err))
	}
	return result, nil
}
