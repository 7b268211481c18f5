package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/connexus-ai/ragbox-backend/internal/errs"
)

// sheetXML is the minimal OOXML worksheet shape needed to read cell values
// in row-major order.
type sheetXML struct {
	SheetData struct {
		Rows []struct {
			Cells []struct {
				Ref  string `xml:"r,attr"`
				Type string `xml:"t,attr"`
				V    string `xml:"v"`
				Is   struct {
					T string `xml:"t"`
				} `xml:"is"`
			} `xml:"c"`
		} `xml:"row"`
	} `xml:"sheetData"`
}

type workbookXML struct {
	Sheets struct {
		Sheet []struct {
			Name string `xml:"name,attr"`
		} `xml:"sheet"`
	} `xml:"sheets"`
}

type sstXML struct {
	SI []struct {
		T string `xml:"t"`
	} `xml:"si"`
}

// extractXLSX iterates sheets, emitting "=== Sheet: <name> ===" then each
// row as "cell1 | cell2 | ...", retaining empty cells as empty fields.
// Formulas are evaluated to their last-stored value (the <v> element),
// never re-evaluated (§4.A).
func extractXLSX(data []byte, filename string) (*NormalizedText, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, errs.Extraction(".xlsx", "not a valid zip archive", err)
	}

	files := map[string]*zip.File{}
	for _, f := range zr.File {
		files[f.Name] = f
	}

	wbFile, ok := files["xl/workbook.xml"]
	if !ok {
		return nil, errs.Extraction(".xlsx", "xl/workbook.xml not found", nil)
	}
	var wb workbookXML
	if err := unmarshalZipEntry(wbFile, &wb); err != nil {
		return nil, errs.Extraction(".xlsx", "parse workbook.xml", err)
	}

	var sharedStrings []string
	if sstFile, ok := files["xl/sharedStrings.xml"]; ok {
		var sst sstXML
		if err := unmarshalZipEntry(sstFile, &sst); err == nil {
			for _, si := range sst.SI {
				sharedStrings = append(sharedStrings, si.T)
			}
		}
	}

	// Sheet N maps to xl/worksheets/sheetN.xml in declaration order.
	var sheetFiles []string
	for name := range files {
		if strings.HasPrefix(name, "xl/worksheets/sheet") && strings.HasSuffix(name, ".xml") {
			sheetFiles = append(sheetFiles, name)
		}
	}
	sort.Strings(sheetFiles)

	var buf strings.Builder
	for i, sheetPath := range sheetFiles {
		name := fmt.Sprintf("Sheet%d", i+1)
		if i < len(wb.Sheets.Sheet) {
			name = wb.Sheets.Sheet[i].Name
		}
		buf.WriteString(fmt.Sprintf("=== Sheet: %s ===\n", name))

		var sheet sheetXML
		if err := unmarshalZipEntry(files[sheetPath], &sheet); err != nil {
			continue
		}

		for _, row := range sheet.SheetData.Rows {
			cells := make([]string, len(row.Cells))
			for j, c := range row.Cells {
				if c.Type == "s" {
					idx, err := strconv.Atoi(c.V)
					if err == nil && idx >= 0 && idx < len(sharedStrings) {
						cells[j] = sharedStrings[idx]
						continue
					}
				}
				if c.Type == "inlineStr" {
					cells[j] = c.Is.T
					continue
				}
				cells[j] = c.V // numeric / formula-evaluated last-stored value
			}
			buf.WriteString(strings.Join(cells, " | "))
			buf.WriteByte('\n')
		}
	}

	return &NormalizedText{Text: buf.String()}, nil
}

func unmarshalZipEntry(f *zip.File, v interface{}) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return err
	}
	return xml.Unmarshal(data, v)
}
