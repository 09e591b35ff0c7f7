package export

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/NCDesigner/QG-Estrat-gico/internal/db"
)

var sp = time.FixedZone("BRT", -3*3600)

func sample() (db.Thread, []db.Message) {
	base := time.Date(2026, 3, 10, 17, 5, 0, 0, time.UTC).UnixMilli()
	thread := db.Thread{ID: "t1", Title: "Plano de expansão"}
	msgs := []db.Message{
		{ID: "1", Role: db.RoleUser, Content: "Como crescer?", CreatedAt: base},
		{ID: "2", Role: db.RoleAgent, AgentID: "flavio", Content: "Foque no funil.", CreatedAt: base + 60_000},
		{ID: "3", Role: db.RoleAgent, AgentID: "rafa", Content: "Corte custos.", CreatedAt: base + 120_000},
		{ID: "4", Role: db.RoleAgent, Content: "sem autor", CreatedAt: base + 180_000},
	}
	return thread, msgs
}

func TestSelectionToggle(t *testing.T) {
	tests := []struct {
		name  string
		start Selection
		id    string
		want  Selection
	}{
		{"all resets", Selection{"user", "rafa"}, All, Selection{All}},
		{"first pick drops all", Selection{All}, "rafa", Selection{"rafa"}},
		{"adds", Selection{"rafa"}, User, Selection{"rafa", User}},
		{"removes", Selection{"rafa", User}, "rafa", Selection{User}},
		{"last removal falls back to all", Selection{User}, User, Selection{All}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.start.Toggle(tt.id); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Toggle(%q) = %v, want %v", tt.id, got, tt.want)
			}
		})
	}
}

func TestParseSelection(t *testing.T) {
	sel, err := ParseSelection(" user, Flavio ")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(sel, Selection{User, "flavio"}) {
		t.Errorf("got %v", sel)
	}
	if sel, _ := ParseSelection(""); !reflect.DeepEqual(sel, Selection{All}) {
		t.Errorf("empty selection = %v", sel)
	}
	if sel, _ := ParseSelection("user,flavio,USER"); !reflect.DeepEqual(sel, Selection{User, "flavio"}) {
		t.Errorf("repeated author = %v", sel)
	}
	if sel, _ := ParseSelection("user,user"); !reflect.DeepEqual(sel, Selection{User}) {
		t.Errorf("user twice = %v", sel)
	}
	if _, err := ParseSelection("user,nobody"); err == nil {
		t.Error("expected an error for an unknown author")
	}
}

func TestFilter(t *testing.T) {
	_, msgs := sample()
	ids := func(ms []db.Message) string {
		var out []string
		for _, m := range ms {
			out = append(out, m.ID)
		}
		return strings.Join(out, ",")
	}
	tests := []struct {
		sel  Selection
		want string
	}{
		{Selection{All}, "1,2,3,4"},
		{nil, "1,2,3,4"},
		{Selection{User}, "1"},
		{Selection{"rafa", User}, "1,3"},
		{Selection{"conrado"}, ""},
	}
	for _, tt := range tests {
		if got := ids(Filter(msgs, tt.sel)); got != tt.want {
			t.Errorf("Filter(%v) = %q, want %q", tt.sel, got, tt.want)
		}
	}
}

func TestRenderMarkdown(t *testing.T) {
	thread, msgs := sample()
	now := time.Date(2026, 3, 11, 1, 0, 0, 0, time.UTC)
	out, err := Render(FormatMarkdown, thread, msgs[:2], now, sp)
	if err != nil {
		t.Fatal(err)
	}
	want := "# PLANO DE EXPANSÃO\n" +
		"Data: 10/03/2026\n\n" +
		"**VOCÊ** [14:05]\nComo crescer?\n\n" +
		"**Flávio** [14:06]\nFoque no funil.\n\n"
	if string(out) != want {
		t.Errorf("markdown mismatch:\n%s\nwant:\n%s", out, want)
	}
}

func TestRenderText(t *testing.T) {
	thread, msgs := sample()
	out, err := Render(FormatText, thread, msgs[3:], time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC), time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	want := "PLANO DE EXPANSÃO\nData: 10/03/2026\n\nAGENTE [17:08]:\nsem autor\n\n"
	if string(out) != want {
		t.Errorf("text mismatch:\n%q\nwant:\n%q", out, want)
	}
}

func TestRenderJSON(t *testing.T) {
	thread, msgs := sample()
	out, err := Render(FormatJSON, thread, msgs[:1], time.Now(), nil)
	if err != nil {
		t.Fatal(err)
	}
	var back []db.Message
	if err := json.Unmarshal(out, &back); err != nil {
		t.Fatal(err)
	}
	if len(back) != 1 || back[0].Content != "Como crescer?" {
		t.Errorf("round trip lost data: %+v", back)
	}
	if !strings.Contains(string(out), "\n  {") {
		t.Error("expected two-space indentation")
	}

	empty, _ := Render(FormatJSON, thread, nil, time.Now(), nil)
	if string(empty) != "[]" {
		t.Errorf("empty export = %q", empty)
	}
}

func TestFormat(t *testing.T) {
	for in, want := range map[string]Format{"md": FormatMarkdown, ".TXT": FormatText, " json ": FormatJSON} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("pdf"); err == nil {
		t.Error("expected an error for pdf")
	}
	if FormatJSON.ContentType() != "application/json" {
		t.Error("json content type")
	}
}

func TestFileName(t *testing.T) {
	now := time.Date(2026, 3, 10, 23, 30, 0, 0, sp) // already the 11th in UTC
	if got := FileName("Plano  de\texpansão", FormatMarkdown, now); got != "QG_Plano_de_expansão_2026-03-11.md" {
		t.Errorf("FileName = %q", got)
	}
}
