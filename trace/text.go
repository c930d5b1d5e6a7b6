// Package trace provides so5.TraceBackend implementations: a human-readable
// text writer and a CloudEvents emitter.
package trace

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/so5go/so5"
)

// TextBackend writes one entry per TraceRecord to an io.Writer, formatted as
// text (one line), structured (a header line plus indented key: value
// lines), or json (one line).
type TextBackend struct {
	mu     sync.Mutex
	w      io.Writer
	format string // "text", "structured", or "json"
}

// NewTextBackend writes to w (os.Stdout if nil) using format ("text" by
// default).
func NewTextBackend(w io.Writer, format string) *TextBackend {
	if w == nil {
		w = os.Stdout
	}
	if format == "" {
		format = "text"
	}
	return &TextBackend{w: w, format: format}
}

func (b *TextBackend) Trace(r so5.TraceRecord) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var line string
	switch b.format {
	case "structured":
		line = b.formatStructured(r)
	case "json":
		line = b.formatJSON(r)
	default:
		line = b.formatText(r)
	}
	fmt.Fprintln(b.w, line)
}

func (b *TextBackend) formatText(r so5.TraceRecord) string {
	errStr := ""
	if r.Err != nil {
		errStr = " err=" + r.Err.Error()
	}
	return fmt.Sprintf("%s mbox=%d kind=%s type=%d mutable=%t%s", r.Action, r.MboxID, r.MboxKind, r.TypeTag, r.Mutable, errStr)
}

func (b *TextBackend) formatStructured(r so5.TraceRecord) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s]\n", r.Action)
	fmt.Fprintf(&sb, "  mbox: %d (%s)\n", r.MboxID, r.MboxKind)
	fmt.Fprintf(&sb, "  type_tag: %d\n", r.TypeTag)
	if r.TypeName != "" {
		fmt.Fprintf(&sb, "  type_name: %s\n", r.TypeName)
	}
	fmt.Fprintf(&sb, "  mutable: %t\n", r.Mutable)
	fmt.Fprintf(&sb, "  envelope: %t\n", r.Envelope)
	if r.Err != nil {
		fmt.Fprintf(&sb, "  error: %s\n", r.Err.Error())
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

func (b *TextBackend) formatJSON(r so5.TraceRecord) string {
	errStr := "null"
	if r.Err != nil {
		errStr = fmt.Sprintf("%q", r.Err.Error())
	}
	return fmt.Sprintf(
		`{"action":%q,"mbox_id":%d,"mbox_kind":%q,"type_tag":%d,"mutable":%t,"envelope":%t,"error":%s}`,
		r.Action, r.MboxID, r.MboxKind.String(), r.TypeTag, r.Mutable, r.Envelope, errStr,
	)
}
