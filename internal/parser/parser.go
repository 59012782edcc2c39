package parser

import (
	"archive/zip"
	"fmt"
	"html"
	"io"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/rs/zerolog/log"
	"github.com/tealeg/xlsx"
	"github.com/xuri/excelize/v2"
)

// Document is the plain text extracted from one source
type Document struct {
	Text string
	// Ext is the lowercase extension, empty for links and pasted text.
	Ext string
	// Language is the SupportedFileTypes tag of Ext.
	Language string
}

// IsMarkdown reports whether the text keeps markdown structure.
func (d Document) IsMarkdown() bool { return d.Language == "markdown" }

// Load extracts the text of the file at filePath based on its extension
func Load(filePath string) (*Document, error) {
	ext := Ext(filePath)
	var (
		text string
		err  error
	)
	switch ext {
	case "pdf":
		text, err = parsePDF(filePath)
	case "docx":
		text, err = parseDOCX(filePath)
	case "pptx":
		text, err = parsePPTX(filePath)
	case "xlsx":
		text, err = parseXLSX(filePath)
	case "xlsm":
		text, err = parseXLSM(filePath)
	case "ods":
		text, err = parseODS(filePath)
	case "ipynb":
		text, err = parseNotebook(filePath, notebookOutputLen)
	case "md", "markdown":
		text, err = parseMarkdown(filePath)
	default:
		if _, ok := SupportedFileTypes[ext]; !ok {
			return nil, fmt.Errorf("unsupported file format: .%s", ext)
		}
		text, err = parseText(filePath)
	}
	if err != nil {
		log.Error().Err(err).Str("file", filePath).Msg("Could not load content")
		return nil, fmt.Errorf("could not load content: %w", err)
	}
	return &Document{Text: text, Ext: ext, Language: SupportedFileTypes[ext]}, nil
}

func parsePDF(filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	// Get file size for reader initialization
	stat, err := f.Stat()
	if err != nil {
		return "", err
	}

	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return "", err
	}

	var text strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		text.WriteString(pageText)
		text.WriteString("\n")
	}
	return text.String(), nil
}

var (
	tagRe        = regexp.MustCompile(`<[^>]+>`)
	blankLinesRe = regexp.MustCompile(`\n{3,}`)
)

// xmlText turns word processing XML into text, breaking lines at the end of
// every paragraph element named by paraEnd.
func xmlText(content, paraEnd string) string {
	content = strings.ReplaceAll(content, paraEnd, "\n")
	content = tagRe.ReplaceAllString(content, "")
	return html.UnescapeString(content)
}

func parseDOCX(filePath string) (string, error) {
	r, err := docx.ReadDocxFile(filePath)
	if err != nil {
		return "", err
	}
	defer r.Close()

	// GetContent returns the raw document.xml
	content := r.Editable().GetContent()
	return xmlText(content, "</w:p>"), nil
}

var slideRe = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

func parsePPTX(filePath string) (string, error) {
	f, err := zip.OpenReader(filePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	type slide struct {
		num  int
		text string
	}
	var slides []slide
	for _, file := range f.File {
		m := slideRe.FindStringSubmatch(file.Name)
		if m == nil {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			continue
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			continue
		}
		num, _ := strconv.Atoi(m[1])
		slides = append(slides, slide{num: num, text: extractTextFromXML(string(data))})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })

	var text strings.Builder
	for _, s := range slides {
		if strings.TrimSpace(s.text) == "" {
			continue
		}
		fmt.Fprintf(&text, "## Slide %d\n%s\n\n", s.num, s.text)
	}
	return text.String(), nil
}

func parseXLSX(filePath string) (string, error) {
	f, err := xlsx.OpenFile(filePath)
	if err != nil {
		return "", err
	}

	var text strings.Builder
	for _, sheet := range f.Sheets {
		text.WriteString(fmt.Sprintf("## Sheet: %s\n", sheet.Name))
		for _, row := range sheet.Rows {
			for _, cell := range row.Cells {
				text.WriteString(cell.String() + "\t")
			}
			text.WriteString("\n")
		}
		text.WriteString("\n")
	}
	return text.String(), nil
}

// macro-enabled workbooks are read with excelize
func parseXLSM(filePath string) (string, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var text strings.Builder
	for _, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			continue
		}
		text.WriteString(fmt.Sprintf("## Sheet: %s\n", sheetName))
		for _, row := range rows {
			text.WriteString(strings.Join(row, "\t"))
			text.WriteString("\n")
		}
		text.WriteString("\n")
	}
	return text.String(), nil
}

// ODS files are zip archives whose content.xml holds every sheet.
func parseODS(filePath string) (string, error) {
	f, err := zip.OpenReader(filePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	for _, file := range f.File {
		if file.Name != "content.xml" {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return "", err
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", err
		}
		content := strings.ReplaceAll(string(data), "</table:table-cell>", "\t")
		return xmlText(content, "</table:table-row>"), nil
	}
	return "", fmt.Errorf("content.xml not found")
}

func parseText(filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func extractTextFromXML(xmlContent string) string {
	var text strings.Builder
	parts := strings.Split(xmlContent, "<a:t>")
	for i, part := range parts {
		if i == 0 {
			continue
		}
		endIdx := strings.Index(part, "</a:t>")
		if endIdx >= 0 {
			text.WriteString(html.UnescapeString(part[:endIdx]) + " ")
		}
	}
	return strings.TrimSpace(text.String())
}

// Clean normalises line endings and collapses runs of blank lines.
func Clean(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = blankLinesRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
