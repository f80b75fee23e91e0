package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// timestampLayouts are the accepted client formats for a log timestamp.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// Timestamp is a time.Time that accepts RFC 3339 as well as the plain
// "YYYY-MM-DD HH:MM:SS" and datetime-local forms sent by browsers.
type Timestamp struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

// ParseTimestamp parses s with the first matching accepted layout.
// Layouts without a zone are read as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported timestamp format %q", s)
}

// RegisterRequest is the registration payload.
type RegisterRequest struct {
	Username  string `json:"username" validate:"required,min=3,max=50"`
	Email     string `json:"email" validate:"required,min=5,max=100,email"`
	Password  string `json:"password" validate:"required,min=6,max=100"`
	FirstName string `json:"firstName" validate:"max=100"`
	LastName  string `json:"lastName" validate:"max=100"`
}

// LoginRequest is the login payload.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LogInput carries the fields of a log to create. The owner is never part of
// it: it is always the acting user.
type LogInput struct {
	Direction       Direction       `json:"direction" validate:"required,oneof=incoming outgoing"`
	Type            LogType         `json:"type" validate:"required,oneof=memo fax email letter phone other"`
	Subject         string          `json:"subject" validate:"required,min=3,max=255"`
	Content         string          `json:"content"`
	Sender          string          `json:"sender" validate:"max=255"`
	Recipient       string          `json:"recipient" validate:"max=255"`
	Timestamp       *Timestamp      `json:"timestamp"`
	Confidentiality Confidentiality `json:"confidentiality_level" validate:"omitempty,oneof=public confidential secret"`
	// Confidential is the legacy boolean flag; true means Confidential.
	Confidential *bool `json:"confidential"`
}

// Level returns the effective confidentiality of the input.
func (in *LogInput) Level() Confidentiality {
	if in.Confidentiality != "" {
		return in.Confidentiality
	}
	if in.Confidential != nil && *in.Confidential {
		return Confidential
	}
	return Public
}

// LogPatch is a merge-patch update: nil fields keep their stored value.
type LogPatch struct {
	Direction       *Direction       `json:"direction" validate:"omitnil,oneof=incoming outgoing"`
	Type            *LogType         `json:"type" validate:"omitnil,oneof=memo fax email letter phone other"`
	Subject         *string          `json:"subject" validate:"omitnil,min=3,max=255"`
	Content         *string          `json:"content"`
	Sender          *string          `json:"sender" validate:"omitnil,max=255"`
	Recipient       *string          `json:"recipient" validate:"omitnil,max=255"`
	Timestamp       *Timestamp       `json:"timestamp"`
	Confidentiality *Confidentiality `json:"confidentiality_level" validate:"omitnil,oneof=public confidential secret"`
}

// Apply returns a copy of l with every non-nil patch field applied.
func (p *LogPatch) Apply(l Log) Log {
	if p.Direction != nil {
		l.Direction = *p.Direction
	}
	if p.Type != nil {
		l.Type = *p.Type
	}
	if p.Subject != nil {
		l.Subject = *p.Subject
	}
	if p.Content != nil {
		l.Content = *p.Content
	}
	if p.Sender != nil {
		l.Sender = *p.Sender
	}
	if p.Recipient != nil {
		l.Recipient = *p.Recipient
	}
	if p.Timestamp != nil && !p.Timestamp.IsZero() {
		l.OccurredAt = p.Timestamp.Time
	}
	if p.Confidentiality != nil {
		l.Confidentiality = *p.Confidentiality
	}
	return l
}

// LogFilter holds the list predicates. Empty fields do not filter.
type LogFilter struct {
	// OwnerID restricts the result to logs owned by one user.
	OwnerID   string
	Direction Direction
	Type      LogType
	// From and To bound OccurredAt inclusively.
	From *time.Time
	To   *time.Time
	// Search is a case-insensitive substring of subject or content.
	Search string
	// Levels restricts the confidentiality levels returned; set by the
	// access policy, never by the client directly.
	Levels []Confidentiality
	// Limit caps the number of rows; 0 means unlimited.
	Limit int
}

// ReportFormat is the output format of an exported report.
type ReportFormat string

const (
	FormatPDF ReportFormat = "pdf"
	FormatCSV ReportFormat = "csv"
	// FormatExcel is accepted as an alias of FormatCSV.
	FormatExcel ReportFormat = "excel"
)

// ReportRange is the time window of a summary report.
type ReportRange string

const (
	RangeDaily   ReportRange = "daily"
	RangeWeekly  ReportRange = "weekly"
	RangeMonthly ReportRange = "monthly"
	RangeYearly  ReportRange = "yearly"
	RangeAll     ReportRange = "all"
)

// Since returns the lower bound of the range relative to now, or nil for RangeAll.
func (r ReportRange) Since(now time.Time) *time.Time {
	var since time.Time
	switch r {
	case RangeDaily:
		since = now.AddDate(0, 0, -1)
	case RangeWeekly:
		since = now.AddDate(0, 0, -7)
	case RangeYearly:
		since = now.AddDate(-1, 0, 0)
	case RangeAll:
		return nil
	default:
		since = now.AddDate(0, -1, 0)
	}
	return &since
}

// ReportRequest is the export payload. LogID is empty for summary reports.
type ReportRequest struct {
	LogID  string       `json:"logId"`
	Format ReportFormat `json:"format" validate:"omitempty,oneof=pdf csv excel"`
	Range  ReportRange  `json:"range" validate:"omitempty,oneof=daily weekly monthly yearly all"`
}

// Report is a rendered export ready to be sent as an attachment.
type Report struct {
	Filename    string
	ContentType string
	Body        []byte
}
