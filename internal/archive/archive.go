// Package archive implements the archive recursor of spec §4.B: recursive
// ZIP extraction with hard guards against zip-bomb style inputs, concatenated
// into a single provenance-preserving text for downstream chunking.
package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/connexus-ai/ragbox-backend/internal/errs"
	"github.com/connexus-ai/ragbox-backend/internal/extract"
)

const (
	maxDepth         = 5
	maxTotalFiles    = 1000
	maxEntrySizeByte = 10 << 20 // 10 MiB
)

// Extractor decodes a single non-archive entry's bytes by filename. It is
// satisfied by *extract.Registry.Dispatch with the archive-delegation case
// already handled by the caller.
type Extractor interface {
	Dispatch(ctx context.Context, filename string, data []byte, docID string) (*extract.NormalizedText, error)
}

// Stats summarizes a single recursive extraction run.
type Stats struct {
	FilesProcessed int
	FilesSkipped   int
	ArchivesFound  int
	MaxDepth       int
	Truncated      bool // true if the total-files guard stopped extraction early
}

// Result is the concatenated, provenance-preserving text plus run stats.
type Result struct {
	Text  string
	Stats Stats
}

type entry struct {
	path  string
	data  []byte
	depth int
}

// Recursor walks a ZIP archive (possibly containing nested ZIPs), decoding
// every leaf entry via Extractor and concatenating the results with
// provenance markers.
type Recursor struct {
	extractor Extractor
}

func NewRecursor(extractor Extractor) *Recursor {
	return &Recursor{extractor: extractor}
}

// Recurse extracts the archive's content. docID is passed through to
// Extractor for entries that need it (e.g. images).
func (r *Recursor) Recurse(ctx context.Context, data []byte, docID string) (*Result, error) {
	stats := &Stats{}
	mu := &sync.Mutex{}

	entries, err := collectEntries(data, 1, stats, mu)
	if err != nil {
		return nil, err
	}

	sections := make([]string, len(entries))
	g, ctx := errgroup.WithContext(ctx)
	for i, e := range entries {
		i, e := i, e
		g.Go(func() error {
			if e.data == nil { // oversized entry: collectEntries kept no bytes
				sections[i] = renderSection(e.path, nil, nil)
				return nil
			}
			text, err := r.extractor.Dispatch(ctx, e.path, e.data, docID)
			section := renderSection(e.path, text, err)
			sections[i] = section
			return nil // per-entry extraction failures are annotated, not fatal
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var buf strings.Builder
	for _, s := range sections {
		buf.WriteString(s)
	}
	buf.WriteString(renderStats(stats))

	return &Result{Text: buf.String(), Stats: *stats}, nil
}

// collectEntries walks the zip (and any nested zips, depth-first) and
// returns the flattened list of non-archive leaf entries to decode,
// enforcing the depth/total-files/entry-size guards as it goes.
func collectEntries(data []byte, depth int, stats *Stats, mu *sync.Mutex) ([]entry, error) {
	if depth > maxDepth {
		return nil, errs.Extraction(".zip", "zip bomb: archive nesting exceeds maximum depth of 5", nil)
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, errs.Extraction(".zip", "not a valid zip archive", err)
	}

	mu.Lock()
	if depth > stats.MaxDepth {
		stats.MaxDepth = depth
	}
	mu.Unlock()

	files := make([]*zip.File, len(zr.File))
	copy(files, zr.File)
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })

	var out []entry
	for _, f := range files {
		if f.FileInfo().IsDir() {
			continue
		}

		mu.Lock()
		if stats.FilesProcessed+stats.FilesSkipped >= maxTotalFiles {
			stats.Truncated = true
			mu.Unlock()
			break
		}
		mu.Unlock()

		if f.UncompressedSize64 > maxEntrySizeByte {
			mu.Lock()
			stats.FilesSkipped++
			mu.Unlock()
			out = append(out, entry{path: f.Name, data: nil, depth: depth})
			continue
		}

		rc, err := f.Open()
		if err != nil {
			mu.Lock()
			stats.FilesSkipped++
			mu.Unlock()
			continue
		}
		buf := &bytes.Buffer{}
		if _, err := buf.ReadFrom(rc); err != nil {
			rc.Close()
			mu.Lock()
			stats.FilesSkipped++
			mu.Unlock()
			continue
		}
		rc.Close()
		content := buf.Bytes()

		if strings.HasSuffix(strings.ToLower(f.Name), ".zip") {
			mu.Lock()
			stats.ArchivesFound++
			mu.Unlock()
			nested, err := collectEntries(content, depth+1, stats, mu)
			if err != nil {
				return nil, err
			}
			for _, n := range nested {
				out = append(out, entry{path: f.Name + "/" + n.path, data: n.data, depth: n.depth})
			}
			continue
		}

		mu.Lock()
		stats.FilesProcessed++
		mu.Unlock()
		out = append(out, entry{path: f.Name, data: content, depth: depth})
	}

	return out, nil
}

func renderSection(path string, text *extract.NormalizedText, err error) string {
	var body string
	switch {
	case err != nil:
		body = fmt.Sprintf("[skipped: %v]", err)
	case text == nil:
		body = "[skipped: entry exceeds 10 MiB uncompressed size limit]"
	default:
		body = text.Text
	}
	return fmt.Sprintf("=== %s ===\n%s\n-------------------------------------------------------------\n", path, body)
}

func renderStats(s *Stats) string {
	return fmt.Sprintf(
		"=== Extraction Summary ===\nFiles processed: %d\nFiles skipped: %d\nNested archives found: %d\nMax depth reached: %d\nTruncated: %t\n",
		s.FilesProcessed, s.FilesSkipped, s.ArchivesFound, s.MaxDepth, s.Truncated,
	)
}

// Clean strips provenance markers, skip-annotations, and the trailing
// statistics block, leaving only concatenated content for concept
// extraction (§4.B, "companion cleaner").
func Clean(archiveText string) string {
	lines := strings.Split(archiveText, "\n")
	var out []string
	inSummary := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "=== Extraction Summary ===":
			inSummary = true
			continue
		case inSummary:
			continue
		case strings.HasPrefix(trimmed, "=== ") && strings.HasSuffix(trimmed, " ==="):
			continue
		case trimmed == strings.Repeat("-", 61):
			continue
		case strings.HasPrefix(trimmed, "[skipped:"):
			continue
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
