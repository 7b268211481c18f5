package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/connexus-ai/ragbox-backend/internal/errs"
)

// slideXML captures text runs, table rows, and speaker notes from a single
// OOXML slide part. Presentation tables (<a:tbl>) are walked separately
// below since their rows/cells don't nest cleanly into this struct.
type slideXML struct {
	Shapes []struct {
		Text []struct {
			Paragraphs []struct {
				Runs []struct {
					T string `xml:"t"`
				} `xml:"r"`
			} `xml:"p"`
		} `xml:"txBody"`
	} `xml:"cSld>spTree>sp"`
}

type notesXML struct {
	Shapes []struct {
		Text []struct {
			Paragraphs []struct {
				Runs []struct {
					T string `xml:"t"`
				} `xml:"r"`
			} `xml:"p"`
		} `xml:"txBody"`
	} `xml:"cSld>spTree>sp"`
}

// extractPPTX iterates slides emitting "--- Slide N ---", shape text,
// table cells (row-major), and "[Speaker Notes]" (§4.A).
func extractPPTX(data []byte, filename string) (*NormalizedText, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, errs.Extraction(".pptx", "not a valid zip archive", err)
	}

	files := map[string]*zip.File{}
	for name, f := range indexByName(zr.File) {
		files[name] = f
	}

	var slidePaths []string
	for name := range files {
		if strings.HasPrefix(name, "ppt/slides/slide") && strings.HasSuffix(name, ".xml") {
			slidePaths = append(slidePaths, name)
		}
	}
	sort.Slice(slidePaths, func(i, j int) bool {
		return slideNumber(slidePaths[i]) < slideNumber(slidePaths[j])
	})

	var buf strings.Builder
	var headings []string
	for i, path := range slidePaths {
		n := i + 1
		buf.WriteString(fmt.Sprintf("--- Slide %d ---\n", n))

		var slide slideXML
		if err := unmarshalZipEntry(files[path], &slide); err == nil {
			for _, sh := range slide.Shapes {
				for _, txBody := range sh.Text {
					for _, p := range txBody.Paragraphs {
						var line strings.Builder
						for _, r := range p.Runs {
							line.WriteString(r.T)
						}
						if line.Len() > 0 {
							buf.WriteString(line.String())
							buf.WriteByte('\n')
						}
					}
				}
			}
		}

		// Tables: walk the raw XML for a:tbl/a:tr/a:tc since they don't sit
		// under spTree>sp in the same shape as text boxes.
		if rows, ok := extractSlideTables(files[path]); ok {
			for _, row := range rows {
				buf.WriteString(strings.Join(row, " | "))
				buf.WriteByte('\n')
			}
		}

		notesPath := fmt.Sprintf("ppt/notesSlides/notesSlide%d.xml", n)
		if notesFile, ok := files[notesPath]; ok {
			var notes notesXML
			if err := unmarshalZipEntry(notesFile, &notes); err == nil {
				var noteText strings.Builder
				for _, sh := range notes.Shapes {
					for _, txBody := range sh.Text {
						for _, p := range txBody.Paragraphs {
							for _, r := range p.Runs {
								noteText.WriteString(r.T)
							}
						}
					}
				}
				if noteText.Len() > 0 {
					buf.WriteString("[Speaker Notes]\n")
					buf.WriteString(noteText.String())
					buf.WriteByte('\n')
				}
			}
		}
	}

	return &NormalizedText{Text: buf.String(), Headings: headings}, nil
}

// rawTable mirrors the a:tbl/a:tr/a:tc shape for table cell extraction.
type rawTable struct {
	Tables []struct {
		Rows []struct {
			Cells []struct {
				TxBody struct {
					Paragraphs []struct {
						Runs []struct {
							T string `xml:"t"`
						} `xml:"r"`
					} `xml:"p"`
				} `xml:"txBody"`
			} `xml:"tc"`
		} `xml:"tr"`
	} `xml:"cSld>spTree>graphicFrame>graphic>graphicData>tbl"`
}

func extractSlideTables(f *zip.File) ([][]string, bool) {
	var tbl rawTable
	if err := unmarshalZipEntry(f, &tbl); err != nil {
		return nil, false
	}
	var rows [][]string
	for _, t := range tbl.Tables {
		for _, r := range t.Rows {
			cells := make([]string, len(r.Cells))
			for i, c := range r.Cells {
				var sb strings.Builder
				for _, p := range c.TxBody.Paragraphs {
					for _, run := range p.Runs {
						sb.WriteString(run.T)
					}
				}
				cells[i] = sb.String()
			}
			rows = append(rows, cells)
		}
	}
	return rows, len(rows) > 0
}

func indexByName(files []*zip.File) map[string]*zip.File {
	m := make(map[string]*zip.File, len(files))
	for _, f := range files {
		m[f.Name] = f
	}
	return m
}

func slideNumber(path string) int {
	base := strings.TrimSuffix(strings.TrimPrefix(path, "ppt/slides/slide"), ".xml")
	n, err := strconv.Atoi(base)
	if err != nil {
		return 0
	}
	return n
}
