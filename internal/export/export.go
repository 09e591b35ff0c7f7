// Package export renders a thread's messages as a downloadable document.
package export

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/NCDesigner/QG-Estrat-gico/internal/db"
	"github.com/NCDesigner/QG-Estrat-gico/internal/persona"
)

// Format is an output encoding
type Format string

const (
	FormatMarkdown Format = "md"
	FormatText     Format = "txt"
	FormatJSON     Format = "json"
)

// Formats lists the supported encodings in menu order
var Formats = []Format{FormatMarkdown, FormatText, FormatJSON}

// ParseFormat accepts md, txt or json, with or without a leading dot
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown export format %q (want md, txt or json)", s)
}

// ContentType is the MIME type served for f
func (f Format) ContentType() string {
	if f == FormatJSON {
		return "application/json"
	}
	return "text/plain; charset=utf-8"
}

const (
	// All selects every message
	All = "all"
	// User selects the user's own messages
	User = "user"
)

// Selection is the set of authors to include: All, User, or persona ids.
// It is never empty; an empty selection means All.
type Selection []string

// ParseSelection reads a comma-separated list such as "user,flavio". Naming an
// author twice selects it once.
func ParseSelection(s string) (Selection, error) {
	sel := Selection{All}
	for _, part := range strings.Split(s, ",") {
		id := strings.ToLower(strings.TrimSpace(part))
		if id == "" {
			continue
		}
		if id != All && id != User && !persona.Valid(id) {
			return nil, fmt.Errorf("unknown author %q", part)
		}
		if id != All && sel.Has(id) {
			continue
		}
		sel = sel.Toggle(id)
	}
	return sel, nil
}

// Has reports whether id is selected
func (s Selection) Has(id string) bool {
	for _, x := range s {
		if x == id {
			return true
		}
	}
	return false
}

// Toggle flips id. Choosing All clears everything else; choosing anything
// else drops All; removing the last choice falls back to All.
func (s Selection) Toggle(id string) Selection {
	if id == All {
		return Selection{All}
	}
	var rest Selection
	for _, x := range s {
		if x != All {
			rest = append(rest, x)
		}
	}
	if rest.Has(id) {
		var next Selection
		for _, x := range rest {
			if x != id {
				next = append(next, x)
			}
		}
		if len(next) == 0 {
			return Selection{All}
		}
		return next
	}
	return append(rest, id)
}

// Includes reports whether m passes the selection
func (s Selection) Includes(m db.Message) bool {
	switch {
	case len(s) == 0 || s.Has(All):
		return true
	case m.Role == db.RoleUser:
		return s.Has(User)
	case m.Role == db.RoleAgent && m.AgentID != "":
		return s.Has(m.AgentID)
	}
	return false
}

// Filter keeps the messages the selection includes, in order
func Filter(messages []db.Message, sel Selection) []db.Message {
	out := make([]db.Message, 0, len(messages))
	for _, m := range messages {
		if sel.Includes(m) {
			out = append(out, m)
		}
	}
	return out
}

// Author is the export label for a message's author
func Author(m db.Message) string {
	if m.Role == db.RoleUser {
		return "VOCÊ"
	}
	return persona.Name(m.AgentID)
}

// Render encodes messages of thread in format f. Dates and times are shown
// in loc (nil means local time).
func Render(f Format, thread db.Thread, messages []db.Message, now time.Time, loc *time.Location) ([]byte, error) {
	if loc == nil {
		loc = time.Local
	}
	switch f {
	case FormatJSON:
		if messages == nil {
			messages = []db.Message{}
		}
		return json.MarshalIndent(messages, "", "  ")
	case FormatMarkdown, FormatText:
		var b strings.Builder
		if f == FormatMarkdown {
			b.WriteString("# ")
		}
		b.WriteString(strings.ToUpper(thread.Title))
		b.WriteString("\n")
		fmt.Fprintf(&b, "Data: %s\n\n", now.In(loc).Format("02/01/2006"))
		for _, m := range messages {
			at := time.UnixMilli(m.CreatedAt).In(loc).Format("15:04")
			if f == FormatMarkdown {
				fmt.Fprintf(&b, "**%s** [%s]\n%s\n\n", Author(m), at, m.Content)
			} else {
				fmt.Fprintf(&b, "%s [%s]:\n%s\n\n", Author(m), at, m.Content)
			}
		}
		return []byte(b.String()), nil
	}
	return nil, fmt.Errorf("unknown export format %q", f)
}

var whitespace = regexp.MustCompile(`\s+`)

// FileName is QG_<title with whitespace runs as underscores>_<UTC date>.<ext>
func FileName(title string, f Format, now time.Time) string {
	return fmt.Sprintf("QG_%s_%s.%s", whitespace.ReplaceAllString(title, "_"), now.UTC().Format("2006-01-02"), f)
}
