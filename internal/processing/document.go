package processing

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// Document is the parse result of one uploaded file. Error is set instead
// of Text when parsing failed.
type Document struct {
	FileName      string         `json:"file_name"`
	FileType      string         `json:"file_type,omitempty"`
	NumPages      int            `json:"num_pages,omitempty"`
	NumParagraphs int            `json:"num_paragraphs,omitempty"`
	NumTables     int            `json:"num_tables,omitempty"`
	Text          string         `json:"text,omitempty"`
	Tables        string         `json:"tables,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	Error         string         `json:"error,omitempty"`
}

// SupportedExtensions are the upload types ParseDocument understands.
var SupportedExtensions = []string{".pdf", ".docx", ".doc", ".txt", ".md"}

// IsSupported reports whether name has a parseable extension.
func IsSupported(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, s := range SupportedExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// ParseDocument extracts the text of a file, choosing the parser by
// extension. It never returns a Go error; failures are in Document.Error.
func ParseDocument(path string) Document {
	name := filepath.Base(path)
	ext := strings.ToLower(filepath.Ext(path))

	var (
		doc Document
		err error
	)
	switch ext {
	case ".pdf":
		doc, err = parsePDF(path)
		doc.FileType = "pdf"
	case ".docx", ".doc":
		doc, err = parseDocx(path)
		doc.FileType = "docx"
	case ".txt":
		doc, err = parseText(path)
		doc.FileType = "txt"
	case ".md":
		doc, err = parseMarkdown(path)
		doc.FileType = "md"
	default:
		return Document{FileName: name, Error: "Unsupported file type: " + ext}
	}
	doc.FileName = name
	if err != nil {
		return Document{FileName: name, FileType: doc.FileType, Error: err.Error()}
	}
	return doc
}

func parsePDF(path string) (doc Document, err error) {
	// The pdf reader panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return doc, err
	}
	defer f.Close()

	var buf strings.Builder
	n := r.NumPage()
	for i := 1; i <= n; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			return doc, fmt.Errorf("page %d: %w", i, err)
		}
		buf.WriteString(content)
		buf.WriteString("\n")
	}
	doc.NumPages = n
	doc.Text = strings.TrimSpace(buf.String())
	doc.Metadata = map[string]any{}
	return doc, nil
}

func parseText(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, err
	}
	content := strings.TrimSpace(string(data))
	paragraphs := 0
	for _, p := range strings.Split(content, "\n\n") {
		if strings.TrimSpace(p) != "" {
			paragraphs++
		}
	}
	return Document{Text: content, NumParagraphs: paragraphs}, nil
}

// parseMarkdown flattens a markdown file to plain text, one line per block.
func parseMarkdown(path string) (Document, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return Document{}, err
	}

	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	root := md.Parser().Parse(text.NewReader(source))

	var (
		doc   Document
		lines []string
	)
	err = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		var line string
		switch n.Kind() {
		case ast.KindParagraph:
			doc.NumParagraphs++
			line = inlineText(n, source)
		case ast.KindTextBlock, ast.KindHeading:
			line = inlineText(n, source)
		case ast.KindFencedCodeBlock, ast.KindCodeBlock:
			line = blockLines(n, source)
		case extast.KindTable:
			doc.NumTables++
			return ast.WalkContinue, nil
		case extast.KindTableHeader, extast.KindTableRow:
			var cells []string
			for c := n.FirstChild(); c != nil; c = c.NextSibling() {
				cells = append(cells, inlineText(c, source))
			}
			line = strings.Join(cells, " | ")
		default:
			return ast.WalkContinue, nil
		}
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
		return ast.WalkSkipChildren, nil
	})
	if err != nil {
		return Document{}, fmt.Errorf("failed to walk markdown AST: %w", err)
	}
	doc.Text = strings.Join(lines, "\n")
	return doc, nil
}

func inlineText(node ast.Node, source []byte) string {
	var buf bytes.Buffer
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		inlineTextRecursive(child, source, &buf)
	}
	return buf.String()
}

func inlineTextRecursive(node ast.Node, source []byte, buf *bytes.Buffer) {
	switch n := node.(type) {
	case *ast.Text:
		buf.Write(n.Segment.Value(source))
		if n.SoftLineBreak() || n.HardLineBreak() {
			buf.WriteByte(' ')
		}
	case *ast.String:
		buf.Write(n.Value)
	case *ast.AutoLink:
		buf.Write(n.Label(source))
	default:
		for child := node.FirstChild(); child != nil; child = child.NextSibling() {
			inlineTextRecursive(child, source, buf)
		}
	}
}

func blockLines(node ast.Node, source []byte) string {
	var buf bytes.Buffer
	lines := node.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(source))
	}
	return buf.String()
}

// parseDocx reads word/document.xml from the package. Body paragraphs make
// up the text; table rows are joined cell by cell with " | ".
func parseDocx(path string) (Document, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return Document{}, fmt.Errorf("not a valid docx package: %w", err)
	}
	defer zr.Close()

	var body, core *zip.File
	for _, f := range zr.File {
		switch f.Name {
		case "word/document.xml":
			body = f
		case "docProps/core.xml":
			core = f
		}
	}
	if body == nil {
		return Document{}, fmt.Errorf("word/document.xml not found")
	}

	rc, err := body.Open()
	if err != nil {
		return Document{}, err
	}
	defer rc.Close()

	doc, err := walkDocx(rc)
	if err != nil {
		return Document{}, err
	}
	if core != nil {
		if props, err := readCoreProperties(core); err == nil {
			doc.Metadata = map[string]any{"core_properties": props}
		}
	}
	return doc, nil
}

func walkDocx(r io.Reader) (Document, error) {
	var (
		doc        Document
		paragraphs []string
		rows       []string
		para       strings.Builder
		cell       []string
		row        []string
		inPara     bool
		inRun      bool
		inText     bool
		tblDepth   int
	)

	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Document{}, fmt.Errorf("reading document.xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "tbl":
				tblDepth++
			case "tr":
				row = nil
			case "tc":
				cell = nil
			case "p":
				inPara = true
				para.Reset()
			case "r":
				inRun = true
			case "t":
				inText = true
			case "tab":
				if inRun {
					para.WriteByte('\t')
				}
			case "br":
				if inRun {
					para.WriteByte('\n')
				}
			}
		case xml.CharData:
			if inPara && inText {
				para.Write(t)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "r":
				inRun = false
			case "t":
				inText = false
			case "p":
				inPara = false
				if tblDepth == 0 {
					doc.NumParagraphs++
					paragraphs = append(paragraphs, para.String())
				} else {
					cell = append(cell, para.String())
				}
			case "tc":
				row = append(row, strings.Join(cell, "\n"))
			case "tr":
				rows = append(rows, strings.Join(row, " | "))
			case "tbl":
				tblDepth--
				if tblDepth == 0 {
					doc.NumTables++
				}
			}
		}
	}

	var nonEmpty []string
	for _, p := range paragraphs {
		if strings.TrimSpace(p) != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	doc.Text = strings.Join(nonEmpty, "\n")
	doc.Tables = strings.Join(rows, "\n")
	return doc, nil
}

type coreProperties struct {
	Title    string `xml:"title" json:"title"`
	Author   string `xml:"creator" json:"author"`
	Created  string `xml:"created" json:"created"`
	Modified string `xml:"modified" json:"modified"`
}

func readCoreProperties(f *zip.File) (coreProperties, error) {
	var props coreProperties
	rc, err := f.Open()
	if err != nil {
		return props, err
	}
	defer rc.Close()
	err = xml.NewDecoder(rc).Decode(&props)
	return props, err
}
