package export

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/docpipe/constants"
	"github.com/joseph-ayodele/docpipe/internal/entity"
)

// TimestampLayout renders header timestamps like "1/2/2006, 3:04:05 PM".
const TimestampLayout = "1/2/2006, 3:04:05 PM"

// Document is the content to render plus the options that shape the header
// and metadata sections.
type Document struct {
	Content          any
	Format           constants.OutputFormat
	Timestamp        time.Time
	IncludeTimestamp bool
	IncludeMetadata  bool
	// ModelInfo is the summarizer's modelInfo field, when the record has one.
	ModelInfo map[string]any
}

// Render formats a text document (txt, md or json).
func Render(doc Document) ([]byte, error) {
	switch doc.Format {
	case constants.FormatJSON:
		return renderJSON(doc.Content)
	case constants.FormatMarkdown:
		return []byte(renderMarkdown(doc)), nil
	case constants.FormatText, "":
		return []byte(renderText(doc)), nil
	default:
		return nil, fmt.Errorf("format %q is not a text format", doc.Format)
	}
}

func renderJSON(content any) ([]byte, error) {
	switch v := content.(type) {
	case string:
		if json.Valid([]byte(v)) {
			return []byte(v), nil
		}
		return entity.MarshalIndent(map[string]any{"content": v})
	default:
		return entity.MarshalIndent(v)
	}
}

func renderMarkdown(doc Document) string {
	var b strings.Builder
	if doc.IncludeTimestamp {
		b.WriteString("# Summary - " + doc.Timestamp.Format(TimestampLayout) + "\n\n")
	} else {
		b.WriteString("# Summary\n\n")
	}
	b.WriteString(ContentString(doc.Content))
	if doc.IncludeMetadata && doc.ModelInfo != nil {
		model, took := metadataValues(doc.ModelInfo)
		fmt.Fprintf(&b, "\n\n## Metadata\n\n- Model: %s\n- Processing Time: %s\n", model, took)
	}
	return b.String()
}

func renderText(doc Document) string {
	var b strings.Builder
	if doc.IncludeTimestamp {
		b.WriteString("Summary - " + doc.Timestamp.Format(TimestampLayout) + "\n\n")
	}
	b.WriteString(ContentString(doc.Content))
	if doc.IncludeMetadata && doc.ModelInfo != nil {
		model, took := metadataValues(doc.ModelInfo)
		fmt.Fprintf(&b, "\n\nMetadata:\nModel: %s\nProcessing Time: %s\n", model, took)
	}
	return b.String()
}

func metadataValues(info map[string]any) (model, took string) {
	model, took = "Unknown", "Unknown"
	if s := ContentString(info["model"]); s != "" {
		model = s
	}
	if d, ok := info["total_duration"].(float64); ok && d != 0 {
		took = ContentString(d)
	}
	return model, took
}

// ContentString renders a field value as plain text. Structured values are
// pretty-printed JSON; nil is empty.
func ContentString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		if math.IsNaN(t) {
			return "NaN"
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		b, err := entity.MarshalIndent(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}
