package db

import (
	"reflect"
	"testing"
)

func TestSearchTerms(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"stopword removal", "Qual o status do funil para março", []string{"qual", "status", "funil", "março"}},
		{"short words", "eu vi o kpi cair", []string{"kpi", "cair"}},
		{"punctuation trimming", "(receita), churn? meta_q3!", []string{"receita", "churn", "meta_q3"}},
		{"all stopwords", "que para com uma", nil},
		{"empty", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SearchTerms(tt.query)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SearchTerms(%q) = %q, want %q", tt.query, got, tt.want)
			}
		})
	}
}

func TestSearchMessages_Ranking(t *testing.T) {
	s := newTestStore(t)
	msgs := []Message{
		{ID: "m1", ThreadID: "t", Role: RoleUser, Mode: ModeSingle, Content: "O funil travou", CreatedAt: 1},
		{ID: "m2", ThreadID: "t", Role: RoleAgent, Mode: ModeSingle, Content: "Funil e receita caíram", CreatedAt: 2},
		{ID: "m3", ThreadID: "t", Role: RoleAgent, Mode: ModeSingle, Content: "Nada a ver", CreatedAt: 3},
		{ID: "m4", ThreadID: "t", Role: RoleUser, Mode: ModeNote, Content: "funil de novo", CreatedAt: 4},
	}
	for _, m := range msgs {
		if err := s.SaveMessage(m); err != nil {
			t.Fatal(err)
		}
	}

	hits, err := s.SearchMessages("funil receita", 0)
	if err != nil {
		t.Fatal(err)
	}
	var ids []string
	for _, h := range hits {
		ids = append(ids, h.Message.ID)
	}
	want := []string{"m2", "m4", "m1"}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("order = %v, want %v", ids, want)
	}

	limited, _ := s.SearchMessages("funil", 1)
	if len(limited) != 1 {
		t.Errorf("limit 1 returned %d hits", len(limited))
	}

	none, _ := s.SearchMessages("que", 10)
	if len(none) != 0 {
		t.Errorf("stopword-only query returned %d hits", len(none))
	}
}
