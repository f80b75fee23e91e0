// Package report renders communication logs as downloadable CSV or PDF
// documents. Renderers are pure: they only turn logs into bytes.
package report

import (
	"strings"

	"github.com/atinyakov/commlog/internal/models"
)

// Renderer turns one or many logs into a document.
type Renderer interface {
	// Single renders the detail sheet of one log.
	Single(l models.Log) ([]byte, error)
	// Summary renders logs as a table under title.
	Summary(title string, logs []models.Log) ([]byte, error)
	// ContentType is the MIME type of the rendered document.
	ContentType() string
	// Extension is the file extension without the dot.
	Extension() string
}

// Columns are the headings shared by every report format.
var Columns = []string{
	"Communication Type",
	"Direction",
	"From / To",
	"Subject / Summary",
	"Details / Notes",
	"Date / Time",
	"Confidentiality",
}

const dateLayout = "2006-01-02 15:04"

// New returns the renderer for format. An empty format means PDF and
// "excel" is served as CSV.
func New(format models.ReportFormat) (Renderer, error) {
	switch format {
	case "", models.FormatPDF:
		return PDF{}, nil
	case models.FormatCSV, models.FormatExcel:
		return CSV{}, nil
	default:
		return nil, models.NewValidationError("format", "must be one of: pdf, csv, excel")
	}
}

// Row returns the report cells of l in Columns order.
func Row(l models.Log) []string {
	return []string{
		titleCase(string(l.Type)),
		titleCase(string(l.Direction)),
		party(l),
		l.Subject,
		flatten(l.Content),
		l.OccurredAt.Format(dateLayout),
		titleCase(string(l.Confidentiality)),
	}
}

// party is the sender, else the recipient, else "--".
func party(l models.Log) string {
	switch {
	case strings.TrimSpace(l.Sender) != "":
		return l.Sender
	case strings.TrimSpace(l.Recipient) != "":
		return l.Recipient
	default:
		return "--"
	}
}

func flatten(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
