package processing

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const docxBody = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:pPr><w:tabs><w:tab w:val="left" w:pos="720"/></w:tabs></w:pPr><w:r><w:t>Interview with Acme</w:t></w:r></w:p>
    <w:p></w:p>
    <w:p><w:r><w:t xml:space="preserve">Export </w:t></w:r><w:r><w:t>takes hours.</w:t></w:r></w:p>
    <w:tbl>
      <w:tr><w:tc><w:p><w:r><w:t>Feature</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>Priority</w:t></w:r></w:p></w:tc></w:tr>
      <w:tr><w:tc><w:p><w:r><w:t>Bulk export</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>High</w:t></w:r></w:p></w:tc></w:tr>
    </w:tbl>
  </w:body>
</w:document>`

const docxCore = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties" xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:dcterms="http://purl.org/dc/terms/">
  <dc:title>Acme interview</dc:title>
  <dc:creator>Jordan</dc:creator>
</cp:coreProperties>`

func writeDocx(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseDocx(t *testing.T) {
	path := filepath.Join(t.TempDir(), "acme.docx")
	writeDocx(t, path, map[string]string{
		"word/document.xml": docxBody,
		"docProps/core.xml": docxCore,
	})

	doc := ParseDocument(path)
	require.Empty(t, doc.Error)
	assert.Equal(t, "acme.docx", doc.FileName)
	assert.Equal(t, "docx", doc.FileType)
	assert.Equal(t, "Interview with Acme\nExport takes hours.", doc.Text)
	assert.Equal(t, 3, doc.NumParagraphs)
	assert.Equal(t, 1, doc.NumTables)
	assert.Equal(t, "Feature | Priority\nBulk export | High", doc.Tables)

	props, ok := doc.Metadata["core_properties"].(coreProperties)
	require.True(t, ok)
	assert.Equal(t, "Acme interview", props.Title)
	assert.Equal(t, "Jordan", props.Author)
}

func TestParseDocxErrors(t *testing.T) {
	dir := t.TempDir()

	notZip := writeFile(t, dir, "legacy.doc", "binary word 97 document")
	doc := ParseDocument(notZip)
	assert.Equal(t, "docx", doc.FileType)
	assert.Contains(t, doc.Error, "not a valid docx package")

	empty := filepath.Join(dir, "empty.docx")
	writeDocx(t, empty, map[string]string{"other.xml": "<x/>"})
	assert.Contains(t, ParseDocument(empty).Error, "word/document.xml not found")
}

func TestParseText(t *testing.T) {
	path := writeFile(t, t.TempDir(), "notes.txt", "\n\nFirst paragraph.\n\n\n\nSecond\nparagraph.\n")

	doc := ParseDocument(path)
	require.Empty(t, doc.Error)
	assert.Equal(t, "txt", doc.FileType)
	assert.Equal(t, "First paragraph.\n\n\n\nSecond\nparagraph.", doc.Text)
	assert.Equal(t, 2, doc.NumParagraphs)
}

func TestParseMarkdown(t *testing.T) {
	path := writeFile(t, t.TempDir(), "call.md", `# Call with Globex

They **really** want bulk export.

- Search is slow
- Mobile is clunky

| Feature | Votes |
|---------|-------|
| Export  | 12    |

`+"```\nexport --all\n```\n")

	doc := ParseDocument(path)
	require.Empty(t, doc.Error)
	assert.Equal(t, "md", doc.FileType)
	assert.Equal(t, 1, doc.NumParagraphs)
	assert.Equal(t, 1, doc.NumTables)
	assert.Equal(t, "Call with Globex\nThey really want bulk export.\nSearch is slow\nMobile is clunky\nFeature | Votes\nExport | 12\nexport --all", doc.Text)
}

func TestParseDocumentUnsupported(t *testing.T) {
	path := writeFile(t, t.TempDir(), "data.csv", "a,b")
	doc := ParseDocument(path)
	assert.Equal(t, Document{FileName: "data.csv", Error: "Unsupported file type: .csv"}, doc)
}

func TestParseDocumentMissing(t *testing.T) {
	doc := ParseDocument(filepath.Join(t.TempDir(), "gone.txt"))
	assert.Equal(t, "gone.txt", doc.FileName)
	assert.NotEmpty(t, doc.Error)
	assert.Empty(t, doc.Text)
}

func TestIsSupported(t *testing.T) {
	for name, want := range map[string]bool{
		"a.pdf":  true,
		"A.DOCX": true,
		"b.doc":  true,
		"c.txt":  true,
		"d.md":   true,
		"e.csv":  false,
		"noext":  false,
	} {
		assert.Equal(t, want, IsSupported(name), name)
	}
}
