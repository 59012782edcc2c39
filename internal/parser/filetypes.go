package parser

import (
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"docflow/internal/models"
)

// source kinds accepted by the upload form
const (
	KindText     = "text"
	KindPDF      = "pdf"
	KindCode     = "code"
	KindOffice   = "office"
	KindMarkdown = "markdown"
	KindLink     = "link"
	KindPasted   = "pasted"
)

// SupportedFileTypes maps an extension to its language or format tag.
var SupportedFileTypes = map[string]string{
	"cpp": "cpp", "cc": "cpp", "cxx": "cpp", "hpp": "cpp", "h": "cpp",
	"go":   "go",
	"java": "java",
	"kt":   "kotlin", "kts": "kotlin",
	"js": "js", "mjs": "js", "cjs": "js",
	"ts": "ts", "tsx": "ts",
	"php": "php", "phtml": "php", "php3": "php", "php4": "php",
	"proto": "proto",
	"py":    "python", "pyw": "python",
	"ipynb": "notebook",
	"rst":   "rst",
	"rb":    "ruby", "erb": "ruby",
	"rs":    "rust",
	"scala": "scala", "sc": "scala",
	"swift": "swift",
	"md":    "markdown", "markdown": "markdown",
	"tex": "latex", "ltx": "latex", "latex": "latex",
	"html": "html", "htm": "html",
	"sol": "sol",
	"cs":  "csharp",
	"cob": "cobol", "cbl": "cobol", "cpy": "cobol",
	"c":   "c",
	"lua": "lua",
	"pl":  "perl", "pm": "perl", "t": "perl", "pod": "perl",
	"hs": "haskell", "lhs": "haskell",
	"ex": "elixir", "exs": "elixir",
	"ps1": "powershell", "psm1": "powershell", "psd1": "powershell",
	"txt":  "text",
	"pdf":  "pdf",
	"docx": "docx",
	"pptx": "pptx",
	"xlsx": "xlsx",
	"xlsm": "xlsm",
	"ods":  "ods",
}

// ExtensionToMIME maps an extension to the type tag stored with its chunks.
var ExtensionToMIME = map[string]string{
	"c": "text/x-c", "cpp": "text/x-c++", "cc": "text/x-c++", "cxx": "text/x-c++", "h": "text/x-c", "hpp": "text/x-c++",
	"go":   "text/x-go",
	"java": "text/x-java-source", "kt": "text/x-kotlin", "kts": "text/x-kotlin",
	"js": "application/javascript", "mjs": "application/javascript", "cjs": "application/javascript",
	"ts": "application/typescript", "tsx": "application/typescript",
	"php": "application/x-httpd-php", "phtml": "application/x-httpd-php", "php3": "application/x-httpd-php", "php4": "application/x-httpd-php",
	"proto": "text/plain",
	"py":    "text/x-python", "pyw": "text/x-python",
	"ipynb": "application/x-ipynb+json",
	"md":    "text/markdown", "markdown": "text/markdown", "rst": "text/x-rst",
	"rb": "text/x-ruby", "erb": "text/x-ruby",
	"rs":    "text/x-rustsrc",
	"scala": "text/x-scala", "sc": "text/x-scala",
	"swift": "text/x-swift",
	"tex":   "application/x-tex", "ltx": "application/x-tex", "latex": "application/x-latex",
	"html": "text/html", "htm": "text/html",
	"sol": "text/plain",
	"cs":  "text/plain",
	"cob": "text/plain", "cbl": "text/plain", "cpy": "text/plain",
	"lua": "text/x-lua",
	"pl":  "text/x-perl", "pm": "text/x-perl", "t": "text/x-perl", "pod": "text/x-perl",
	"hs": "text/x-haskell", "lhs": "text/x-haskell",
	"ex": "text/x-elixir", "exs": "text/x-elixir",
	"ps1": "text/x-powershell", "psm1": "text/x-powershell", "psd1": "text/x-powershell",
	"txt":  "text/plain",
	"pdf":  "application/pdf",
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	"xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"xlsm": "application/vnd.ms-excel.sheet.macroEnabled.12",
	"ods":  "application/vnd.oasis.opendocument.spreadsheet",
}

// type tags of sources without a file
const (
	MIMEText = "text/plain"
	MIMEHTML = "text/html"
)

var officeExts = map[string]bool{"docx": true, "pptx": true, "xlsx": true, "xlsm": true, "ods": true}

// MIMEFor returns the type tag for ext, text/plain when unknown.
func MIMEFor(ext string) string {
	if t, ok := ExtensionToMIME[strings.ToLower(ext)]; ok {
		return t
	}
	return MIMEText
}

// Ext returns the lowercase extension of filename without the dot.
func Ext(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}

// KindFor picks the upload kind a file would be submitted as.
func KindFor(filename string) string {
	ext := Ext(filename)
	switch {
	case ext == "txt":
		return KindText
	case ext == "pdf":
		return KindPDF
	case officeExts[ext]:
		return KindOffice
	case SupportedFileTypes[ext] == "markdown":
		return KindMarkdown
	default:
		return KindCode
	}
}

func invalid(format string, args ...any) error {
	return models.ValidationError("validate", fmt.Errorf("%w: "+format, append([]any{models.ErrUnsupportedSource}, args...)...))
}

// ValidateFileType checks filename against the expected source kind and
// returns its extension.
func ValidateFileType(filename, kind string) (string, error) {
	if filename == "" {
		return "", invalid("no filename provided")
	}
	ext := Ext(filename)
	if ext == "" {
		return "", invalid("file has no extension")
	}
	if _, ok := SupportedFileTypes[ext]; !ok {
		log.Error().Str("ext", ext).Msg("Unsupported file extension")
		return "", invalid("unsupported file extension: .%s", ext)
	}
	switch kind {
	case KindText:
		if ext != "txt" {
			return "", invalid("please upload a .txt file for Text File type")
		}
	case KindPDF:
		if ext != "pdf" {
			return "", invalid("please upload a .pdf file for PDF File type")
		}
	case KindOffice:
		if !officeExts[ext] {
			return "", invalid("please upload a .docx, .pptx, .xlsx, .xlsm or .ods file for Office File type")
		}
	case KindMarkdown:
		if SupportedFileTypes[ext] != "markdown" {
			return "", invalid("please upload a .md file for Markdown File type")
		}
	case KindCode:
		if ext == "txt" || ext == "pdf" || officeExts[ext] {
			return "", invalid("please upload a programming file for Code File type")
		}
	default:
		return "", invalid("unknown file type %q", kind)
	}
	return ext, nil
}

// ValidateURL trims raw, defaults the scheme to https and checks it is an
// absolute http(s) URL with a host.
func ValidateURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", invalid("URL cannot be empty")
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || !validHost(u.Hostname()) {
		log.Error().Str("url", raw).Msg("Invalid URL format")
		return "", invalid("invalid URL format")
	}
	return u.String(), nil
}

func validHost(host string) bool {
	if host == "" || strings.ContainsAny(host, " \t") {
		return false
	}
	return host == "localhost" || strings.Contains(host, ".")
}

var (
	youtubeRe = regexp.MustCompile(`(?i)www\.youtube\.com/watch`)
	videoIDRe = regexp.MustCompile(`(?:v=|/)([0-9A-Za-z_-]{11})`)
)

// CheckYouTube reports whether u is a YouTube watch link and extracts its
// video id.
func CheckYouTube(u string) (bool, string, error) {
	if !youtubeRe.MatchString(u) {
		return false, "", nil
	}
	m := videoIDRe.FindStringSubmatch(u)
	if m == nil {
		return true, "", invalid("url %q is a YouTube link but no valid video ID was found", u)
	}
	return true, m[1], nil
}
