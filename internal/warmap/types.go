package warmap

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NodeType classifies a card on the map
type NodeType string

const (
	TypeInsight   NodeType = "insight"
	TypeTensao    NodeType = "tensao"
	TypePergunta  NodeType = "pergunta"
	TypeDecisao   NodeType = "decisao"
	TypeAcao      NodeType = "acao"
	TypeEvidencia NodeType = "evidencia"
	TypeAnexo     NodeType = "anexo"
)

// TypeInfo is how a node type is shown
type TypeInfo struct {
	Type  NodeType `json:"type"`
	Icon  string   `json:"icon"`
	Label string   `json:"label"`
	Color string   `json:"color"` // hex, for terminal rendering
}

// NodeTypes lists every node type in menu order
var NodeTypes = []TypeInfo{
	{TypeInsight, "💡", "Insight", "#a16207"},
	{TypeTensao, "⚠️", "Tensão", "#b91c1c"},
	{TypePergunta, "❓", "Pergunta", "#7e22ce"},
	{TypeDecisao, "⚖️", "Decisão", "#1d4ed8"},
	{TypeAcao, "🚀", "Ação", "#15803d"},
	{TypeEvidencia, "📊", "Evidência", "#0f766e"},
	{TypeAnexo, "📎", "Anexo", "#374151"},
}

// PinnableTypes are offered when sending a chat message to the map
var PinnableTypes = NodeTypes[:6]

// Info returns the display info for t; unknown types render as insight
func Info(t NodeType) TypeInfo {
	for _, ti := range NodeTypes {
		if ti.Type == t {
			return ti
		}
	}
	return NodeTypes[0]
}

// fold lowercases and strips accents so "Tensão" matches "tensao"
func fold(s string) string {
	var b strings.Builder
	for _, r := range norm.NFD.String(strings.ToLower(strings.TrimSpace(s))) {
		if r >= 0x300 && r <= 0x36f {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ParseNodeType accepts a type id or its label, with or without accents
func ParseNodeType(s string) (NodeType, error) {
	f := fold(s)
	for _, ti := range NodeTypes {
		if f == string(ti.Type) || f == fold(ti.Label) {
			return ti.Type, nil
		}
	}
	return "", fmt.Errorf("unknown node type %q (want insight, tensao, pergunta, decisao, acao, evidencia or anexo)", s)
}
