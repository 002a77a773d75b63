// Package page abstracts the document a checkout step runs in: form fields,
// the status message region, the current location and navigation.
package page

import (
	"html/template"
	"net/url"
	"strings"
	"sync"
)

// Page is the document surface a checkout step reads from and writes to.
type Page interface {
	// Field returns the current value of the input with the given id.
	Field(id string) string
	// AppendStatus appends a message to the status region.
	AppendStatus(text string)
	// Navigate replaces the current document with target, resolved against Location.
	Navigate(target string) error
	// Location is the URL of the current document.
	Location() *url.URL
}

// Fields is a fixed set of form values, such as one submitted form.
type Fields map[string]string

func (f Fields) Field(id string) string {
	return f[id]
}

func (f Fields) clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// StatusRegion is an append-only list of status messages.
type StatusRegion struct {
	mu       sync.Mutex
	messages []string
}

func (r *StatusRegion) Append(text string) {
	r.mu.Lock()
	r.messages = append(r.messages, text)
	r.mu.Unlock()
}

func (r *StatusRegion) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.messages))
	copy(out, r.messages)
	return out
}

// HTML renders every message on its own line, each preceded by a line break.
func (r *StatusRegion) HTML() template.HTML {
	var b strings.Builder
	for _, m := range r.Messages() {
		b.WriteString("<br>")
		b.WriteString(template.HTMLEscapeString(m))
	}
	return template.HTML(b.String())
}

// Text is the plain-text content of the region, messages separated by newlines.
func (r *StatusRegion) Text() string {
	return strings.Join(r.Messages(), "\n")
}
