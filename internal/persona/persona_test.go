package persona

import (
	"reflect"
	"testing"
)

func TestOrder(t *testing.T) {
	tests := []struct {
		name    string
		targets []string
		want    []string
	}{
		{"scenario rafa flavio", []string{Rafa, Flavio}, []string{Flavio, Rafa}},
		{"all reversed", []string{Luciano, Rafa, Conrado, Alfredo, Flavio}, CanonicalOrder},
		{"duplicates", []string{Conrado, Conrado}, []string{Conrado}},
		{"unknown dropped", []string{"ghost", Alfredo}, []string{Alfredo}},
		{"empty", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Order(tt.targets)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Order(%v) = %v, want %v", tt.targets, got, tt.want)
			}
		})
	}
}

func TestGreets(t *testing.T) {
	for _, id := range CanonicalOrder {
		want := id == Alfredo || id == Luciano
		if got := Greets(id); got != want {
			t.Errorf("Greets(%s) = %v, want %v", id, got, want)
		}
	}
}

func TestAll_CanonicalAndComplete(t *testing.T) {
	all := All()
	if len(all) != 5 {
		t.Fatalf("expected 5 personas, got %d", len(all))
	}
	for i, p := range all {
		if p.ID != CanonicalOrder[i] {
			t.Errorf("All()[%d] = %s, want %s", i, p.ID, CanonicalOrder[i])
		}
		if p.Name == "" || p.Template == "" || p.Color == "" {
			t.Errorf("persona %s has empty fields", p.ID)
		}
	}
}

func TestName(t *testing.T) {
	if got := Name(Flavio); got != "Flávio" {
		t.Errorf("Name(flavio) = %q", got)
	}
	if got := Name("ghost"); got != "AGENTE" {
		t.Errorf("Name(ghost) = %q, want AGENTE", got)
	}
}

func TestParseTargets(t *testing.T) {
	tests := []struct {
		in      string
		want    []string
		wantErr bool
	}{
		{"rafa,flavio", []string{Rafa, Flavio}, false},
		{"Flávio, Luciano", []string{Flavio, Luciano}, false},
		{"council", DefaultCouncil, false},
		{"todos", CanonicalOrder, false},
		{"", nil, false},
		{"rafa,bob", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTargets(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseTargets(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestDefaultTargets(t *testing.T) {
	tests := []struct {
		name          string
		contact       string
		projectAgents []string
		inProject     bool
		want          []string
	}{
		{"council", ContactCouncil, nil, false, DefaultCouncil},
		{"diary is a note", ContactDiary, nil, false, nil},
		{"single persona", Luciano, nil, false, []string{Luciano}},
		{"project agents win", Rafa, []string{Alfredo, Luciano}, true, []string{Alfredo, Luciano}},
		{"project without agents", "", nil, true, DefaultCouncil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DefaultTargets(tt.contact, tt.projectAgents, tt.inProject)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("DefaultTargets = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDefaultThreadTitle(t *testing.T) {
	if got := DefaultThreadTitle(ContactDiary); got != "Sessão de Despejo" {
		t.Errorf("diary title = %q", got)
	}
	if got := DefaultThreadTitle(Rafa); got != "Nova Conversa" {
		t.Errorf("persona title = %q", got)
	}
}
