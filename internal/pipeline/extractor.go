package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"github.com/connexus-ai/ragbox-backend/internal/archive"
	"github.com/connexus-ai/ragbox-backend/internal/extract"
)

// URLSourceMarker is the Input.Filename value cmd/worker uses to signal a
// url-source document: RawBytes holds the target URL itself rather than
// downloaded content, and Extract routes it to the registry's URL fetcher
// instead of its by-extension dispatch.
const URLSourceMarker = "__url__"

// DocumentExtractor implements Extractor by dispatching to
// internal/extract's format registry, falling back to internal/archive's
// recursive zip walk when the filename is an archive (§4.B).
type DocumentExtractor struct {
	registry *extract.Registry
	archive  *archive.Recursor
}

func NewDocumentExtractor(registry *extract.Registry, recursor *archive.Recursor) *DocumentExtractor {
	return &DocumentExtractor{registry: registry, archive: recursor}
}

var _ Extractor = (*DocumentExtractor)(nil)

func (e *DocumentExtractor) Extract(ctx context.Context, filename string, data []byte, docID string) (string, []string, error) {
	if filename == URLSourceMarker {
		norm, err := e.registry.ExtractURL(ctx, string(data))
		if err != nil {
			return "", nil, err
		}
		return norm.Text, norm.Headings, nil
	}

	if strings.EqualFold(filepath.Ext(filename), ".zip") {
		return e.extractArchive(ctx, data, docID)
	}

	norm, err := e.registry.Dispatch(ctx, filename, data, docID)
	if errors.Is(err, extract.ErrIsArchive) {
		return e.extractArchive(ctx, data, docID)
	}
	if err != nil {
		return "", nil, err
	}
	return norm.Text, norm.Headings, nil
}

func (e *DocumentExtractor) extractArchive(ctx context.Context, data []byte, docID string) (string, []string, error) {
	res, err := e.archive.Recurse(ctx, data, docID)
	if err != nil {
		return "", nil, err
	}
	return res.Text, nil, nil
}
