package constants

import "strings"

// OutputFormat is the file format written by the sink stage.
type OutputFormat string

const (
	FormatText     OutputFormat = "txt"
	FormatMarkdown OutputFormat = "md"
	FormatJSON     OutputFormat = "json"
	FormatXLSX     OutputFormat = "xlsx"
)

// OutputFormats holds every format the sink understands.
var OutputFormats = []OutputFormat{FormatText, FormatMarkdown, FormatJSON, FormatXLSX}

// ParseOutputFormat maps a user supplied format (case-insensitive, optional dot) to a known format.
func ParseOutputFormat(s string) (OutputFormat, bool) {
	n := OutputFormat(NormalizeExt(strings.TrimSpace(s)))
	for _, f := range OutputFormats {
		if f == n {
			return f, true
		}
	}
	return "", false
}

// AllowedExtensions holds the file extensions picked up by directory ingestion.
var AllowedExtensions = map[string]struct{}{
	"pdf": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// PDFMimeType is attached to binary payloads produced from source documents.
const PDFMimeType = "application/pdf"
