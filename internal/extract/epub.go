package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"

	"github.com/connexus-ai/ragbox-backend/internal/errs"
)

type opfPackage struct {
	Metadata struct {
		Title    string `xml:"title"`
		Creator  string `xml:"creator"`
		Language string `xml:"language"`
	} `xml:"metadata"`
	Manifest struct {
		Items []struct {
			ID   string `xml:"id,attr"`
			Href string `xml:"href,attr"`
		} `xml:"item"`
	} `xml:"manifest"`
	Spine struct {
		ItemRefs []struct {
			IDRef string `xml:"idref,attr"`
		} `xml:"itemref"`
	} `xml:"spine"`
}

var htmlTagRe = regexp.MustCompile(`(?s)<[^>]+>`)

// extractEpub extracts metadata (title, author, language) and per-chapter
// text in spine order (§4.A). EPUB is a ZIP container; the OPF package
// document (located via META-INF/container.xml) lists the manifest and
// reading order.
func extractEpub(data []byte, filename string) (*NormalizedText, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, errs.Extraction(".epub", "not a valid zip archive", err)
	}
	files := indexByName(zr.File)

	opfPath, err := findOPFPath(files)
	if err != nil {
		return nil, errs.Extraction(".epub", "locate OPF package", err)
	}
	opfFile, ok := files[opfPath]
	if !ok {
		return nil, errs.Extraction(".epub", fmt.Sprintf("OPF file %q missing from archive", opfPath), nil)
	}

	var pkg opfPackage
	if err := unmarshalZipEntry(opfFile, &pkg); err != nil {
		return nil, errs.Extraction(".epub", "parse OPF package", err)
	}

	idToHref := map[string]string{}
	for _, item := range pkg.Manifest.Items {
		idToHref[item.ID] = item.Href
	}

	base := path.Dir(opfPath)
	var buf strings.Builder
	buf.WriteString(fmt.Sprintf("Title: %s\nAuthor: %s\nLanguage: %s\n\n",
		firstNonEmpty(pkg.Metadata.Title, "unknown"),
		firstNonEmpty(pkg.Metadata.Creator, "unknown"),
		firstNonEmpty(pkg.Metadata.Language, "unknown"),
	))

	chapterN := 0
	for _, ref := range pkg.Spine.ItemRefs {
		href, ok := idToHref[ref.IDRef]
		if !ok {
			continue
		}
		chapterPath := path.Join(base, href)
		chapterFile, ok := files[chapterPath]
		if !ok {
			continue
		}
		chapterN++
		text, err := readChapterText(chapterFile)
		if err != nil {
			continue
		}
		buf.WriteString(fmt.Sprintf("=== Chapter %d ===\n%s\n\n", chapterN, text))
	}

	return &NormalizedText{Text: buf.String()}, nil
}

func findOPFPath(files map[string]*zip.File) (string, error) {
	containerFile, ok := files["META-INF/container.xml"]
	if !ok {
		return "", fmt.Errorf("META-INF/container.xml not found")
	}
	rc, err := containerFile.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return "", err
	}

	var container struct {
		RootFiles struct {
			RootFile []struct {
				FullPath string `xml:"full-path,attr"`
			} `xml:"rootfile"`
		} `xml:"rootfiles"`
	}
	if err := xml.Unmarshal(data, &container); err != nil {
		return "", err
	}
	if len(container.RootFiles.RootFile) == 0 {
		return "", fmt.Errorf("no rootfile declared in container.xml")
	}
	return container.RootFiles.RootFile[0].FullPath, nil
}

func readChapterText(f *zip.File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return "", err
	}
	plain := htmlTagRe.ReplaceAllString(string(data), " ")
	plain = strings.Join(strings.Fields(plain), " ")
	return plain, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
