package pdf

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/studygen/internal/interfaces"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// NotesExporter renders generated notes (lightly structured markdown) to A4 PDF
type NotesExporter struct {
	logger arbor.ILogger
}

var _ interfaces.PDFService = (*NotesExporter)(nil)

// NewNotesExporter creates a notes exporter
func NewNotesExporter(logger arbor.ILogger) *NotesExporter {
	return &NotesExporter{logger: logger}
}

// ConvertMarkdownToPDF renders markdown under a title heading and returns the PDF bytes
func (s *NotesExporter) ConvertMarkdownToPDF(markdown, title string) ([]byte, error) {
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetMargins(15, 15, 15)
	doc.SetAutoPageBreak(true, 15)
	doc.SetTitle(title, true)
	doc.SetCreator("studygen", true)
	doc.AddPage()

	r := &notesRenderer{
		pdf:       doc,
		translate: doc.UnicodeTranslatorFromDescriptor(""),
		size:      11,
	}

	if strings.TrimSpace(title) != "" {
		doc.SetFont("Helvetica", "B", 16)
		doc.MultiCell(0, 8, r.translate(title), "", "L", false)
		doc.Ln(4)
	}
	r.resetFont()

	source := []byte(markdown)
	root := goldmark.New().Parser().Parse(text.NewReader(source))
	r.source = source

	if err := ast.Walk(root, r.walk); err != nil {
		return nil, fmt.Errorf("failed to render notes: %w", err)
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF output: %w", err)
	}

	s.logger.Debug().Str("title", title).Int("markdown_len", len(markdown)).Int("pdf_size", buf.Len()).Msg("Notes rendered to PDF")
	return buf.Bytes(), nil
}

type notesRenderer struct {
	pdf       *fpdf.Fpdf
	source    []byte
	translate func(string) string
	size      float64
	bold      bool
	listDepth int
}

func (r *notesRenderer) resetFont() {
	style := ""
	if r.bold {
		style = "B"
	}
	r.pdf.SetFont("Helvetica", style, r.size)
}

func (r *notesRenderer) write(s string) {
	r.pdf.Write(5.5, r.translate(s))
}

func (r *notesRenderer) walk(n ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node := n.(type) {
	case *ast.Heading:
		if entering {
			r.pdf.Ln(3)
			sizes := map[int]float64{1: 14, 2: 13, 3: 12}
			size, ok := sizes[node.Level]
			if !ok {
				size = 11
			}
			r.pdf.SetFont("Helvetica", "B", size)
		} else {
			r.pdf.Ln(7)
			r.resetFont()
		}
	case *ast.Paragraph:
		if !entering && r.listDepth == 0 {
			r.pdf.Ln(7)
		}
	case *ast.TextBlock:
		// tight list items hold their text in a TextBlock
	case *ast.Text:
		if entering {
			r.write(string(node.Segment.Value(r.source)))
			if node.SoftLineBreak() {
				r.write(" ")
			}
			if node.HardLineBreak() {
				r.pdf.Ln(5.5)
			}
		}
	case *ast.Emphasis:
		r.bold = entering && node.Level == 2
		r.resetFont()
	case *ast.List:
		if entering {
			r.listDepth++
		} else {
			r.listDepth--
			if r.listDepth == 0 {
				r.pdf.Ln(7)
			}
		}
	case *ast.ListItem:
		if entering {
			r.pdf.Ln(5.5)
			r.pdf.SetX(15 + float64(r.listDepth)*5)
			r.write("- ")
		}
	case *ast.FencedCodeBlock, *ast.CodeBlock:
		if entering {
			r.pdf.SetFont("Courier", "", 9)
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				segment := lines.At(i)
				r.pdf.MultiCell(0, 4.5, r.translate(strings.TrimRight(string(segment.Value(r.source)), "\n")), "", "L", false)
			}
			r.resetFont()
			r.pdf.Ln(3)
			return ast.WalkSkipChildren, nil
		}
	case *ast.ThematicBreak:
		if entering {
			r.pdf.Ln(2)
			r.pdf.Line(15, r.pdf.GetY(), 195, r.pdf.GetY())
			r.pdf.Ln(2)
		}
	}
	return ast.WalkContinue, nil
}
