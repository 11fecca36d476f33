// Package export renders conversations and reflections as plain-text
// documents for download.
package export

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"text/template"
	"time"

	"github.com/nadzzz/kindvoice/internal/message"
)

// ContentType is the MIME type of every rendered document.
const ContentType = "text/plain; charset=utf-8"

const entryTemplate = `{{define "entry" -}}
Date: {{date .Conversation.Timestamp}}
Tone: {{.Conversation.Tone.Info.Label}}

What you shared:
{{.Conversation.UserMessage}}

Response:
{{.Conversation.ResponseText}}
{{- with .Reflection}}

Reflection ({{date .Timestamp}})
How you felt: {{or .EmotionalState "-"}}
Insights: {{or .Insights "-"}}
Rating: {{.Rating}}/5 ({{.RatingLabel}})
{{- end}}
{{end}}`

const conversationTemplate = `{{define "conversation" -}}
Kindvoice Conversation
======================

{{template "entry" .}}{{end}}`

const allTemplate = `{{define "all" -}}
Kindvoice Conversation History
==============================
Exported: {{date .Exported}}
Conversations: {{len .Entries}}
{{range $i, $e := .Entries}}
--- {{inc $i}} ---
{{template "entry" $e}}{{end}}{{end}}`

var tmpl = template.Must(template.New("export").
	Funcs(template.FuncMap{
		"date": func(t time.Time) string { return t.Format("Jan 2, 2006 3:04 PM MST") },
		"inc":  func(i int) int { return i + 1 },
	}).
	Parse(entryTemplate + conversationTemplate + allTemplate))

// Entry pairs a conversation with its reflection, if any.
type Entry struct {
	Conversation message.ConversationRecord
	Reflection   *message.ReflectionRecord
}

// Pair matches each conversation with its most recent reflection.
func Pair(convs []message.ConversationRecord, refls []message.ReflectionRecord) []Entry {
	latest := make(map[string]int, len(refls))
	for i, r := range refls {
		latest[r.ConversationID] = i
	}
	entries := make([]Entry, 0, len(convs))
	for _, c := range convs {
		e := Entry{Conversation: c}
		if i, ok := latest[c.ID]; ok {
			r := refls[i]
			e.Reflection = &r
		}
		entries = append(entries, e)
	}
	return entries
}

// Conversation writes a single conversation document.
func Conversation(w io.Writer, e Entry) error {
	if err := tmpl.ExecuteTemplate(w, "conversation", e); err != nil {
		return fmt.Errorf("rendering conversation: %w", err)
	}
	return nil
}

// All writes every entry into one document.
func All(w io.Writer, entries []Entry, exported time.Time) error {
	data := struct {
		Exported time.Time
		Entries  []Entry
	}{exported, entries}
	if err := tmpl.ExecuteTemplate(w, "all", data); err != nil {
		return fmt.Errorf("rendering history: %w", err)
	}
	return nil
}

// ConversationString renders a single conversation to a string.
func ConversationString(e Entry) (string, error) {
	var buf bytes.Buffer
	err := Conversation(&buf, e)
	return buf.String(), err
}

// ConversationFilename returns a download name for e.
func ConversationFilename(e Entry) string {
	id := e.Conversation.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("conversation-%s-%s.txt", e.Conversation.Timestamp.Format("2006-01-02"), strings.ToLower(id))
}

// AllFilename returns a download name for a full export made at t.
func AllFilename(t time.Time) string {
	return fmt.Sprintf("kindvoice-history-%s.txt", t.Format("2006-01-02"))
}
