// Package docio reads uploaded lesson documents and writes the exported
// plan bundle. Everything is a pure byte conversion: no temp files, no
// external processes.
package docio

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strings"

	pdflib "github.com/ledongthuc/pdf"
)

// ExtractText pulls plain text out of an uploaded document. ext is the
// lower-cased file extension including the dot. Formats without a reader
// yield the empty string with no error, so callers can treat "no text" and
// "unsupported" the same way.
func ExtractText(data []byte, ext string) (string, error) {
	switch ext {
	case ".txt":
		return string(data), nil
	case ".docx":
		return extractDocx(data)
	case ".pptx":
		return extractPptx(data)
	case ".pdf":
		return extractPDF(data)
	default:
		return "", nil
	}
}

// extractPDF reads the text layer of a PDF. The underlying reader panics on
// some malformed files, so the recover turns those into errors too.
func extractPDF(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("read pdf: %v", r)
		}
	}()

	r, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("read pdf: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	var b bytes.Buffer
	if _, err := b.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return b.String(), nil
}

// docx and pptx are both OPC zip containers; paragraph text lives in
// <w:t>/<a:t> runs inside the part XML.

func extractDocx(data []byte) (string, error) {
	part, err := readZipPart(data, "word/document.xml")
	if err != nil {
		return "", fmt.Errorf("read docx: %w", err)
	}
	return collectRuns(part, "t", "p"), nil
}

func extractPptx(data []byte) (string, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("read pptx: %w", err)
	}

	var slides []string
	for _, f := range r.File {
		if strings.HasPrefix(f.Name, "ppt/slides/slide") && strings.HasSuffix(f.Name, ".xml") {
			slides = append(slides, f.Name)
		}
	}
	sort.Strings(slides)

	var b strings.Builder
	for _, name := range slides {
		part, err := readZipPart(data, name)
		if err != nil {
			return "", fmt.Errorf("read pptx slide %s: %w", name, err)
		}
		b.WriteString(collectRuns(part, "t", "p"))
	}
	return b.String(), nil
}

func readZipPart(data []byte, name string) ([]byte, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	for _, f := range r.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("part %s not found", name)
}

// collectRuns concatenates the character data of every <textEl> element,
// inserting a newline at the close of each <paraEl>.
func collectRuns(part []byte, textEl, paraEl string) string {
	dec := xml.NewDecoder(bytes.NewReader(part))
	var b strings.Builder
	inText := false
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == textEl {
				inText = true
			}
		case xml.EndElement:
			if t.Name.Local == textEl {
				inText = false
			}
			if t.Name.Local == paraEl {
				b.WriteString("\n")
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}
	return b.String()
}
