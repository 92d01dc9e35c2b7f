package errors

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Context captures where a record came from. Window-origin records use
// Source, Lineno and Colno; boundary-origin records use Component, Info,
// File and Stack.
type Context struct {
	From Origin `json:"from"`

	Source string `json:"source,omitempty"`
	Lineno int    `json:"lineno,omitempty"`
	Colno  int    `json:"colno,omitempty"`

	Component *string `json:"component,omitempty"`
	Info      string  `json:"info,omitempty"`
	File      *string `json:"file"`
	Stack     string  `json:"stack,omitempty"`
}

// MarshalJSON renders exactly the keys of the record's origin
func (c Context) MarshalJSON() ([]byte, error) {
	if c.From == OriginBoundary {
		return json.Marshal(struct {
			From      Origin  `json:"from"`
			File      *string `json:"file"`
			Stack     string  `json:"stack"`
			Component *string `json:"component"`
			Info      string  `json:"info"`
		}{c.From, c.File, c.Stack, c.Component, c.Info})
	}
	return json.Marshal(struct {
		From   Origin `json:"from"`
		Source string `json:"source"`
		Lineno int    `json:"lineno"`
		Colno  int    `json:"colno"`
	}{c.From, c.Source, c.Lineno, c.Colno})
}

// ErrorRecord is one captured fault. Records are immutable once appended.
type ErrorRecord struct {
	ID           string    `json:"id"`
	Seq          uint64    `json:"seq"`
	Err          error     `json:"-"`
	ErrorName    string    `json:"error_name"`
	ErrorMessage string    `json:"error_message"`
	Message      string    `json:"message"`
	Context      Context   `json:"context"`
	CapturedAt   time.Time `json:"captured_at"`
}

// Origin returns the capture path that produced the record
func (r ErrorRecord) Origin() Origin {
	return r.Context.From
}

// Location returns a short human-readable provenance string
func (r ErrorRecord) Location() string {
	switch r.Context.From {
	case OriginWindow:
		if r.Context.Source == "" {
			return "unknown source"
		}
		return fmt.Sprintf("%s:%d:%d", r.Context.Source, r.Context.Lineno, r.Context.Colno)
	case OriginBoundary:
		label := ComponentLabel(r.Context.Component)
		if r.Context.File != nil {
			return fmt.Sprintf("%s (%s)", label, *r.Context.File)
		}
		return label
	}
	return string(r.Context.From)
}

// FormatSummary returns a human-readable summary of the record
func (r ErrorRecord) FormatSummary() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("❌ %s\n\n", r.Message))
	sb.WriteString(fmt.Sprintf("📍 Location: %s\n", r.Location()))
	sb.WriteString(fmt.Sprintf("🔀 From: %s\n", r.Context.From))
	if r.ID != "" {
		sb.WriteString(fmt.Sprintf("🏷️ Record ID: %s (#%d)\n", r.ID, r.Seq))
	}
	if !r.CapturedAt.IsZero() {
		sb.WriteString(fmt.Sprintf("⏰ %s\n", r.CapturedAt.UTC().Format("2006-01-02 15:04:05 UTC")))
	}

	return sb.String()
}
