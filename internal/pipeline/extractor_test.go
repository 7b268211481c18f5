package pipeline

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"

	"github.com/connexus-ai/ragbox-backend/internal/archive"
	"github.com/connexus-ai/ragbox-backend/internal/extract"
)

func TestDocumentExtractor_PlainText(t *testing.T) {
	registry := extract.NewRegistry(nil, nil, nil, nil)
	recursor := archive.NewRecursor(registry)
	e := NewDocumentExtractor(registry, recursor)

	text, _, err := e.Extract(context.Background(), "notes.txt", []byte("hello world"), "doc-1")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if text != "hello world" {
		t.Errorf("text = %q, want %q", text, "hello world")
	}
}

type fakeURLFetcher struct {
	text string
	err  error
}

func (f *fakeURLFetcher) Fetch(ctx context.Context, rawURL string) (*extract.NormalizedText, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &extract.NormalizedText{Text: f.text, Headings: []string{"Title"}}, nil
}

func TestDocumentExtractor_URLMarkerRoutesToURLFetcher(t *testing.T) {
	registry := extract.NewRegistry(nil, nil, &fakeURLFetcher{text: "page content"}, nil)
	recursor := archive.NewRecursor(registry)
	e := NewDocumentExtractor(registry, recursor)

	text, headings, err := e.Extract(context.Background(), URLSourceMarker, []byte("https://example.com"), "doc-3")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if text != "page content" {
		t.Errorf("text = %q", text)
	}
	if len(headings) != 1 || headings[0] != "Title" {
		t.Errorf("headings = %v", headings)
	}
}

func TestDocumentExtractor_ZipFallsBackToArchive(t *testing.T) {
	registry := extract.NewRegistry(nil, nil, nil, nil)
	recursor := archive.NewRecursor(registry)
	e := NewDocumentExtractor(registry, recursor)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("a.txt")
	if err != nil {
		t.Fatalf("zip Create: %v", err)
	}
	if _, err := f.Write([]byte("zipped content")); err != nil {
		t.Fatalf("zip Write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip Close: %v", err)
	}

	text, _, err := e.Extract(context.Background(), "bundle.zip", buf.Bytes(), "doc-2")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if text == "" {
		t.Error("expected non-empty text from archive extraction")
	}
}
