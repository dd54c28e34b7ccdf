package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dubedition/guidecore/internal/fragment"
	"github.com/dubedition/guidecore/internal/guide"
	"github.com/dubedition/guidecore/pkg/version"
)

// serverName identifies this implementation to MCP clients.
const serverName = "GuideCore"

// Server bridges AI clients (Claude Code, Cursor) with a guide engine.
type Server struct {
	mcp    *mcp.Server
	engine *guide.Engine
	logger *slog.Logger
}

// ToolInfo describes a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

// SearchGuideInput is the input schema for the search_guide tool.
type SearchGuideInput struct {
	Query string `json:"query" jsonschema:"the search query; matches section titles and body text"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of results, default 10"`
}

// SectionHit is one search result.
type SectionHit struct {
	ID      string `json:"id" jsonschema:"section element id, usable with read_section"`
	Title   string `json:"title,omitempty" jsonschema:"section heading text"`
	Kind    string `json:"kind" jsonschema:"section or heading"`
	Score   int    `json:"score" jsonschema:"relevance score; higher is better"`
	Snippet string `json:"snippet,omitempty" jsonschema:"text excerpt around the best match"`
}

// SearchGuideOutput is the output schema for the search_guide tool.
type SearchGuideOutput struct {
	State   string       `json:"state" jsonschema:"prompt, results, or no_results"`
	Message string       `json:"message,omitempty" jsonschema:"user-facing text for prompt and no_results states"`
	Total   int          `json:"total" jsonschema:"total matches before the limit"`
	Results []SectionHit `json:"results" jsonschema:"ranked results"`
}

// ReadSectionInput is the input schema for the read_section tool.
type ReadSectionInput struct {
	ID string `json:"id" jsonschema:"the section element id, as returned by search_guide"`
}

// ReadSectionOutput is the output schema for the read_section tool.
type ReadSectionOutput struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty" jsonschema:"section heading text"`
	Text  string `json:"text" jsonschema:"plain text content"`
	HTML  string `json:"html" jsonschema:"the section's outer HTML"`
}

// LoadFragmentsInput is the input schema for the load_fragments tool.
type LoadFragmentsInput struct {
	IDs []string `json:"ids,omitempty" jsonschema:"fragment ids to load; empty loads every pending fragment"`
}

// LoadFragmentsOutput is the output schema for the load_fragments tool.
type LoadFragmentsOutput struct {
	Loaded    int               `json:"loaded"`
	Failed    int               `json:"failed"`
	Skipped   int               `json:"skipped"`
	Errors    map[string]string `json:"errors,omitempty" jsonschema:"per-fragment failure messages"`
	Fragments []fragment.Info   `json:"fragments" jsonschema:"all fragment records after the load"`
}

// GuideStatusInput is the (empty) input schema for the guide_status tool.
type GuideStatusInput struct{}

// GuideStatusOutput is the output schema for the guide_status tool.
type GuideStatusOutput struct {
	Name    string       `json:"name"`
	Version string       `json:"version"`
	Status  guide.Status `json:"status"`
}

// NewServer creates an MCP server over an initialized engine.
func NewServer(engine *guide.Engine) (*Server, error) {
	if engine == nil {
		return nil, stderrors.New("guide engine is required")
	}

	s := &Server{
		engine: engine,
		logger: slog.Default(),
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    serverName,
			Version: version.Version,
		},
		nil,
	)

	s.registerTools()
	return s, nil
}

// MCPServer returns the underlying SDK server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return serverName, version.Version
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	return []ToolInfo{
		{
			Name:        "search_guide",
			Description: "Search the guide by keyword. Title matches rank above body matches; an exact single-word title match ranks highest. Returns section ids usable with read_section.",
		},
		{
			Name:        "read_section",
			Description: "Read one guide section by id. Sections backed by a lazy fragment are loaded on demand, so the content is always complete.",
		},
		{
			Name:        "load_fragments",
			Description: "Load lazy content fragments into the guide page. With no ids, loads everything still pending. Per-fragment failures are reported, not fatal.",
		},
		{
			Name:        "guide_status",
			Description: "Report the guide's current state: page, index size, and fragment counts by load state. Use to check whether content is fully loaded before searching.",
		},
	}
}

// registerTools registers all tools with the MCP server.
func (s *Server) registerTools() {
	s.logger.Debug("registering MCP tools")

	for _, tool := range s.ListTools() {
		switch tool.Name {
		case "search_guide":
			mcp.AddTool(s.mcp, &mcp.Tool{Name: tool.Name, Description: tool.Description},
				s.mcpSearchGuideHandler)
		case "read_section":
			mcp.AddTool(s.mcp, &mcp.Tool{Name: tool.Name, Description: tool.Description},
				s.mcpReadSectionHandler)
		case "load_fragments":
			mcp.AddTool(s.mcp, &mcp.Tool{Name: tool.Name, Description: tool.Description},
				s.mcpLoadFragmentsHandler)
		case "guide_status":
			mcp.AddTool(s.mcp, &mcp.Tool{Name: tool.Name, Description: tool.Description},
				s.mcpGuideStatusHandler)
		}
		s.logger.Debug("registered tool", slog.String("name", tool.Name))
	}

	s.logger.Info("MCP tools registered", slog.Int("count", len(s.ListTools())))
}

// CallTool invokes a tool by name with raw arguments and returns a
// markdown rendering. Used by tests and diagnostics; MCP clients go
// through the typed SDK handlers.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	switch name {
	case "search_guide":
		query, _ := args["query"].(string)
		limit := 0
		if l, ok := args["limit"].(float64); ok {
			limit = int(l)
		}
		out, err := s.searchGuide(query, limit)
		if err != nil {
			return "", err
		}
		return FormatSearch(query, out), nil
	case "read_section":
		id, _ := args["id"].(string)
		out, err := s.readSection(ctx, id)
		if err != nil {
			return "", err
		}
		return FormatSection(out), nil
	case "load_fragments":
		var ids []string
		if raw, ok := args["ids"].([]interface{}); ok {
			for _, v := range raw {
				if str, ok := v.(string); ok {
					ids = append(ids, str)
				}
			}
		}
		out := s.loadFragments(ctx, ids)
		return FormatLoadResult(out), nil
	case "guide_status":
		return FormatStatus(s.guideStatus()), nil
	default:
		return "", NewMethodNotFoundError(name)
	}
}

// searchGuide runs a query and shapes the outcome for tool output.
func (s *Server) searchGuide(query string, limit int) (SearchGuideOutput, error) {
	start := time.Now()
	requestID := generateRequestID()

	limit = clampLimit(limit, 10, 1, 50)

	s.logger.Info("search_guide started",
		slog.String("request_id", requestID),
		slog.String("query", query),
		slog.Int("limit", limit))

	outcome := s.engine.Search(query)

	out := SearchGuideOutput{
		State:   outcome.State.String(),
		Message: outcome.Message(),
		Total:   outcome.Total,
		Results: make([]SectionHit, 0, len(outcome.Results)),
	}
	for _, r := range outcome.Results {
		if len(out.Results) >= limit {
			break
		}
		out.Results = append(out.Results, SectionHit{
			ID:      r.Unit.ID,
			Title:   r.Unit.Title,
			Kind:    r.Unit.Kind.String(),
			Score:   r.Score,
			Snippet: r.Snippet,
		})
	}

	s.logger.Info("search_guide completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", time.Since(start)),
		slog.String("state", out.State),
		slog.Int("result_count", len(out.Results)))
	return out, nil
}

// readSection returns one section's content, loading its fragment first
// when it is still a placeholder.
func (s *Server) readSection(ctx context.Context, id string) (ReadSectionOutput, error) {
	if strings.TrimSpace(id) == "" {
		return ReadSectionOutput{}, NewInvalidParamsError("id parameter is required and must be a non-empty string")
	}

	doc := s.engine.Document()
	ref, ok := doc.ByID(id)
	if !ok {
		return ReadSectionOutput{}, NewSectionNotFoundError(id)
	}

	if rec, tracked := s.engine.Loader().Record(id); tracked &&
		rec.State != fragment.StateLoaded.String() {
		if err := s.engine.Loader().Load(ctx, id); err != nil {
			return ReadSectionOutput{}, MapError(err)
		}
	}

	html, err := doc.NodeHTML(ref)
	if err != nil {
		return ReadSectionOutput{}, MapError(err)
	}

	return ReadSectionOutput{
		ID:    id,
		Title: doc.FirstHeadingText(ref),
		Text:  doc.Text(ref),
		HTML:  html,
	}, nil
}

// loadFragments loads the named fragments, or everything pending.
func (s *Server) loadFragments(ctx context.Context, ids []string) LoadFragmentsOutput {
	var batch fragment.BatchResult
	if len(ids) == 0 {
		batch = s.engine.LoadAll(ctx)
	} else {
		batch.Errors = make(map[string]string)
		for _, id := range ids {
			if err := s.engine.Loader().Load(ctx, id); err != nil {
				batch.Failed++
				batch.Errors[id] = err.Error()
				continue
			}
			batch.Loaded++
		}
		if len(batch.Errors) == 0 {
			batch.Errors = nil
		}
	}

	return LoadFragmentsOutput{
		Loaded:    batch.Loaded,
		Failed:    batch.Failed,
		Skipped:   batch.Skipped,
		Errors:    batch.Errors,
		Fragments: s.engine.Fragments(),
	}
}

// guideStatus snapshots the engine state for the status tool.
func (s *Server) guideStatus() GuideStatusOutput {
	return GuideStatusOutput{
		Name:    serverName,
		Version: version.Version,
		Status:  s.engine.Status(),
	}
}

// mcpSearchGuideHandler is the SDK handler for the search_guide tool.
func (s *Server) mcpSearchGuideHandler(_ context.Context, _ *mcp.CallToolRequest, input SearchGuideInput) (
	*mcp.CallToolResult,
	SearchGuideOutput,
	error,
) {
	out, err := s.searchGuide(input.Query, input.Limit)
	if err != nil {
		return nil, SearchGuideOutput{}, err
	}
	return nil, out, nil
}

// mcpReadSectionHandler is the SDK handler for the read_section tool.
func (s *Server) mcpReadSectionHandler(ctx context.Context, _ *mcp.CallToolRequest, input ReadSectionInput) (
	*mcp.CallToolResult,
	ReadSectionOutput,
	error,
) {
	out, err := s.readSection(ctx, input.ID)
	if err != nil {
		return nil, ReadSectionOutput{}, err
	}
	return nil, out, nil
}

// mcpLoadFragmentsHandler is the SDK handler for the load_fragments tool.
func (s *Server) mcpLoadFragmentsHandler(ctx context.Context, _ *mcp.CallToolRequest, input LoadFragmentsInput) (
	*mcp.CallToolResult,
	LoadFragmentsOutput,
	error,
) {
	return nil, s.loadFragments(ctx, input.IDs), nil
}

// mcpGuideStatusHandler is the SDK handler for the guide_status tool.
func (s *Server) mcpGuideStatusHandler(_ context.Context, _ *mcp.CallToolRequest, _ GuideStatusInput) (
	*mcp.CallToolResult,
	GuideStatusOutput,
	error,
) {
	return nil, s.guideStatus(), nil
}

// Serve runs the server on the given transport until ctx is canceled.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("starting MCP server",
		slog.String("transport", transport))

	switch transport {
	case "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !stderrors.Is(err, context.Canceled) {
			s.logger.Error("MCP server stopped with error",
				slog.String("error", err.Error()))
			return err
		}
		s.logger.Info("MCP server stopped")
		return nil
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

// clampLimit bounds a requested result limit, substituting the default
// for zero.
func clampLimit(v, def, min, max int) int {
	if v == 0 {
		v = def
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// generateRequestID creates a short unique request ID for log correlation.
func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
