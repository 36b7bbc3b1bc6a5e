package docio

import (
	"archive/zip"
	"bytes"
	"fmt"
	"strings"
)

// Bundle is the downloadable plan: the primary recommendation plus any
// derived artifacts the user generated.
type Bundle struct {
	Plan             string
	ParentEmail      string
	StudentMaterials string
	Differentiation  string
}

// Markdown joins the bundle's sections into one document, skipping empty
// sections.
func (b Bundle) Markdown() string {
	text := b.Plan
	if b.ParentEmail != "" {
		text += "\n\n---\n\n# Parent Communication Draft\n\n" + b.ParentEmail
	}
	if b.StudentMaterials != "" {
		text += "\n\n---\n\n# Student-Facing Materials\n\n" + b.StudentMaterials
	}
	if b.Differentiation != "" {
		text += "\n\n---\n\n# Differentiation Strategies\n\n" + b.Differentiation
	}
	return text
}

// ToText renders the bundle as UTF-8 text with a BOM. The BOM keeps
// Windows text editors from misreading the encoding.
func (b Bundle) ToText() []byte {
	return append([]byte{0xEF, 0xBB, 0xBF}, []byte(b.Markdown())...)
}

// ToDocx renders the bundle as a minimal Word document. Markdown headings
// map to Word heading levels; everything else becomes a plain paragraph.
func (b Bundle) ToDocx() ([]byte, error) {
	var doc strings.Builder
	doc.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n")
	doc.WriteString(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)
	writeDocxParagraph(&doc, "Title", "SEL Integration Plan")
	for _, line := range strings.Split(b.Markdown(), "\n") {
		switch {
		case strings.HasPrefix(line, "### "):
			writeDocxParagraph(&doc, "Heading3", strings.TrimPrefix(line, "### "))
		case strings.HasPrefix(line, "## "):
			writeDocxParagraph(&doc, "Heading2", strings.TrimPrefix(line, "## "))
		case strings.HasPrefix(line, "# "):
			writeDocxParagraph(&doc, "Heading1", strings.TrimPrefix(line, "# "))
		default:
			writeDocxParagraph(&doc, "", line)
		}
	}
	doc.WriteString(`</w:body></w:document>`)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	parts := []struct{ name, body string }{
		{"[Content_Types].xml", contentTypesXML},
		{"_rels/.rels", relsXML},
		{"word/document.xml", doc.String()},
	}
	for _, p := range parts {
		w, err := zw.Create(p.name)
		if err != nil {
			return nil, fmt.Errorf("create docx part %s: %w", p.name, err)
		}
		if _, err := w.Write([]byte(p.body)); err != nil {
			return nil, fmt.Errorf("write docx part %s: %w", p.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finalize docx: %w", err)
	}
	return buf.Bytes(), nil
}

func writeDocxParagraph(b *strings.Builder, style, text string) {
	b.WriteString("<w:p>")
	if style != "" {
		fmt.Fprintf(b, `<w:pPr><w:pStyle w:val="%s"/></w:pPr>`, style)
	}
	fmt.Fprintf(b, `<w:r><w:t xml:space="preserve">%s</w:t></w:r>`, escapeXML(text))
	b.WriteString("</w:p>")
}

func escapeXML(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}

const contentTypesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"><Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/><Default Extension="xml" ContentType="application/xml"/><Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/></Types>`

const relsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"><Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/></Relationships>`
