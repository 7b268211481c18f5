// Package extract implements the format extractors of spec §4.A: a single
// contract, extract(kind, bytes, filename) → NormalizedText, dispatched by
// filename extension to a per-extension handler. Handlers are total over
// their declared inputs and fail with a typed errs.Error{Kind: extraction}
// for malformed inputs.
package extract

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/connexus-ai/ragbox-backend/internal/errs"
)

// NormalizedText is UTF-8 text with optional structural hints (headings,
// code-block boundaries) that downstream chunking/summarization can use.
type NormalizedText struct {
	Text     string
	Headings []string // section titles discovered during extraction, in order
	Hints    map[string]string
}

// ErrIsArchive is returned by Dispatch when the filename is a ZIP archive.
// Archives are handled by the archive package (§4.B), never by extract
// itself — this keeps the contract in this package total over non-archive
// inputs and lets the caller apply the recursion guards at the right layer.
var ErrIsArchive = fmt.Errorf("extract: input is an archive, delegate to archive.Recursor")

// Handler decodes one file format's bytes into NormalizedText.
type Handler func(ctx context.Context, data []byte, filename string) (*NormalizedText, error)

// OracleImageDescriber abstracts OCR for the image format family (§4.A,
// "image: OCR via the image subsystem").
type OracleImageDescriber interface {
	OCR(ctx context.Context, data []byte, mimeType string) (string, error)
}

// OfficeBackend abstracts a structured text+paragraph extractor for
// pdf/docx (§4.A). The default production backend is Document AI
// (internal/oracle), kept behind this interface so the contract here stays
// format-in/text-out.
type OfficeBackend interface {
	ExtractOffice(ctx context.Context, data []byte, mimeType string) (text string, pageCount int, err error)
}

// Registry dispatches by filename extension to the handler for that format.
type Registry struct {
	office  OfficeBackend
	ocr     OracleImageDescriber
	urlFetch URLFetcher
	imageStore ImageStore
}

// ImageStore persists the raw bytes of an ingested image, keyed by doc ID
// (§6 "Image protocol": "the raw image is persisted to an on-disk store
// keyed by doc_id").
type ImageStore interface {
	Store(ctx context.Context, docID string, data []byte, mimeType string) (path string, err error)
}

// NewRegistry creates a Registry. office, ocr, urlFetch, and store may be
// nil; the corresponding formats then fail with a clear extraction error
// rather than panicking.
func NewRegistry(office OfficeBackend, ocr OracleImageDescriber, urlFetch URLFetcher, store ImageStore) *Registry {
	return &Registry{office: office, ocr: ocr, urlFetch: urlFetch, imageStore: store}
}

// Dispatch extracts NormalizedText from data, choosing a handler by the
// lowercased extension of filename. docID is only consulted by the image
// handler (to key the on-disk store).
func (r *Registry) Dispatch(ctx context.Context, filename string, data []byte, docID string) (*NormalizedText, error) {
	ext := strings.ToLower(filepath.Ext(filename))

	switch ext {
	case ".zip":
		return nil, ErrIsArchive
	case ".txt", ".md", ".markdown":
		return extractPlainText(data, filename)
	case ".pdf":
		return r.extractOffice(ctx, data, filename, "application/pdf")
	case ".docx":
		return r.extractDocx(ctx, data, filename)
	case ".xlsx":
		return extractXLSX(data, filename)
	case ".pptx":
		return extractPPTX(data, filename)
	case ".ipynb":
		return extractIpynb(data, filename)
	case ".epub":
		return extractEpub(data, filename)
	case ".srt", ".vtt":
		return extractSubtitle(data, filename, ext)
	case ".png", ".jpg", ".jpeg":
		return r.extractImage(ctx, data, filename, docID)
	default:
		if lang, ok := sourceLanguage(ext); ok {
			return extractSourceCode(data, filename, lang)
		}
		return nil, errs.Extraction(ext, fmt.Sprintf("unsupported file extension %q", ext), nil)
	}
}

// ExtractURL fetches and extracts main textual content from a URL (§4.A).
// Callers must validate the URL with ValidateURL before calling this.
func (r *Registry) ExtractURL(ctx context.Context, rawURL string) (*NormalizedText, error) {
	if r.urlFetch == nil {
		return nil, errs.Extraction("url", "URL fetching is not configured", nil)
	}
	return r.urlFetch.Fetch(ctx, rawURL)
}

func (r *Registry) extractOffice(ctx context.Context, data []byte, filename, mimeType string) (*NormalizedText, error) {
	if r.office == nil {
		return nil, errs.Extraction(filepath.Ext(filename), "office document extraction is not configured", nil)
	}
	text, _, err := r.office.ExtractOffice(ctx, data, mimeType)
	if err != nil {
		return nil, errs.Extraction(filepath.Ext(filename), "office extraction failed", err)
	}
	return &NormalizedText{Text: text}, nil
}

func (r *Registry) extractDocx(ctx context.Context, data []byte, filename string) (*NormalizedText, error) {
	// .docx has a reliable native ZIP+XML path (§4.A rationale: downstream
	// stages treat all documents as text+hints); only fall back to the
	// structured office backend if native parsing fails outright.
	text, err := extractDocxText(data)
	if err == nil {
		return &NormalizedText{Text: text}, nil
	}
	if r.office != nil {
		return r.extractOffice(ctx, data, filename, "application/vnd.openxmlformats-officedocument.wordprocessingml.document")
	}
	return nil, errs.Extraction(".docx", "docx extraction failed", err)
}

func (r *Registry) extractImage(ctx context.Context, data []byte, filename, docID string) (*NormalizedText, error) {
	mimeType := "image/png"
	if strings.HasSuffix(strings.ToLower(filename), ".jpg") || strings.HasSuffix(strings.ToLower(filename), ".jpeg") {
		mimeType = "image/jpeg"
	}
	if r.ocr == nil {
		return nil, errs.Extraction("image", "OCR is not configured", nil)
	}
	text, err := r.ocr.OCR(ctx, data, mimeType)
	if err != nil {
		return nil, errs.Extraction("image", "OCR failed", err)
	}

	hints := map[string]string{}
	if r.imageStore != nil {
		path, err := r.imageStore.Store(ctx, docID, data, mimeType)
		if err == nil {
			hints["image_path"] = path
		}
	}
	return &NormalizedText{Text: text, Hints: hints}, nil
}
