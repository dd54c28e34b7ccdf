package mcp

import (
	"context"
	"fmt"
	"strings"

	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dubedition/guidecore/internal/search"
)

// Resource URI scheme. Sections live at guide://section/{id}; the whole
// page at guide://page.
const (
	pageURI          = "guide://page"
	sectionURIPrefix = "guide://section/"
)

// RegisterResources registers the guide page and every indexed section as
// MCP resources. Call after the engine is initialized and before serving.
// Content is resolved per read, so fragments loaded later show up without
// re-registration.
func (s *Server) RegisterResources(_ context.Context) error {
	s.mcp.AddResource(
		&mcp.Resource{
			Name:        "guide_page",
			URI:         pageURI,
			Description: "The full guide page, fragments in their current load state",
			MIMEType:    "text/html",
		},
		s.pageResourceHandler,
	)

	units := s.engine.Searcher().Units()
	count := 0
	for _, u := range units {
		if u.Kind != search.KindSection {
			continue
		}
		s.registerSectionResource(u)
		count++
	}

	s.logger.Info("registered resources", slog.Int("count", count+1))
	return nil
}

// registerSectionResource registers one section as a resource.
func (s *Server) registerSectionResource(u search.Unit) {
	name := u.Title
	if name == "" {
		name = u.ID
	}
	uri := sectionURIPrefix + u.ID
	s.mcp.AddResource(
		&mcp.Resource{
			Name:        name,
			URI:         uri,
			Description: fmt.Sprintf("Guide section #%s", u.ID),
			MIMEType:    "text/html",
		},
		s.makeSectionHandler(u.ID),
	)
}

// makeSectionHandler creates a read handler for a section id. The section
// is looked up at read time, after any reloads.
func (s *Server) makeSectionHandler(id string) mcp.ResourceHandler {
	return func(ctx context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		out, err := s.readSection(ctx, id)
		if err != nil {
			return nil, err
		}
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{
				{
					URI:      sectionURIPrefix + id,
					MIMEType: "text/html",
					Text:     out.HTML,
				},
			},
		}, nil
	}
}

// pageResourceHandler serves the live page.
func (s *Server) pageResourceHandler(_ context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	page, err := s.engine.PageHTML()
	if err != nil {
		return nil, MapError(err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      pageURI,
				MIMEType: "text/html",
				Text:     page,
			},
		},
	}, nil
}

// ReadResource reads a resource by URI outside the SDK transport. Used by
// tests and diagnostics.
func (s *Server) ReadResource(ctx context.Context, uri string) (string, error) {
	switch {
	case uri == pageURI:
		res, err := s.pageResourceHandler(ctx, nil)
		if err != nil {
			return "", err
		}
		return res.Contents[0].Text, nil
	case strings.HasPrefix(uri, sectionURIPrefix):
		id := strings.TrimPrefix(uri, sectionURIPrefix)
		out, err := s.readSection(ctx, id)
		if err != nil {
			return "", err
		}
		return out.HTML, nil
	default:
		return "", NewResourceNotFoundError(uri)
	}
}
