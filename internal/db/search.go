package db

import (
	"sort"
	"strings"
	"unicode"
)

var stopwords = map[string]bool{
	// pt-BR
	"que": true, "para": true, "com": true, "uma": true, "por": true,
	"mais": true, "como": true, "mas": true, "dos": true, "das": true,
	"nos": true, "nas": true, "isso": true, "esse": true, "essa": true,
	"ele": true, "ela": true, "são": true, "tem": true, "foi": true,
	// en
	"the": true, "and": true, "for": true, "with": true, "from": true,
	"this": true, "that": true,
}

// SearchTerms preprocesses a free-text query into lowercase match terms.
// Splits on whitespace, trims punctuation, drops stopwords and words < 3 chars.
func SearchTerms(query string) []string {
	var terms []string
	for _, w := range strings.Fields(query) {
		trimmed := strings.TrimFunc(w, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
		})
		if len([]rune(trimmed)) < 3 {
			continue
		}
		lower := strings.ToLower(trimmed)
		if stopwords[lower] {
			continue
		}
		terms = append(terms, lower)
	}
	return terms
}

// MessageHit is a search result with the number of query terms it matched
type MessageHit struct {
	Message Message `json:"message"`
	Score   int     `json:"score"`
}

// SearchMessages returns messages matching any query term, best matches first
// and newest first among equals. Empty queries return nothing.
func (s *Store) SearchMessages(query string, limit int) ([]MessageHit, error) {
	terms := SearchTerms(query)
	if len(terms) == 0 {
		return []MessageHit{}, nil
	}
	all, err := s.Messages()
	if err != nil {
		return nil, err
	}

	var hits []MessageHit
	for _, m := range all {
		content := strings.ToLower(m.Content)
		score := 0
		for _, t := range terms {
			if strings.Contains(content, t) {
				score++
			}
		}
		if score > 0 {
			hits = append(hits, MessageHit{Message: m, Score: score})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Message.CreatedAt > hits[j].Message.CreatedAt
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}
