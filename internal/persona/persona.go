package persona

import (
	"fmt"
	"strings"
)

// Profile is a static advisor definition. Only avatars are user-customizable
// and those live in the store, not here.
type Profile struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Focus       string `json:"focus"`
	Color       string `json:"color"`
	Template    string `json:"template"`
}

const (
	Flavio  = "flavio"
	Conrado = "conrado"
	Rafa    = "rafa"
	Alfredo = "alfredo"
	Luciano = "luciano"
)

// CanonicalOrder is the speaking order of a council turn
var CanonicalOrder = []string{Flavio, Alfredo, Conrado, Rafa, Luciano}

var profiles = map[string]Profile{
	Flavio: {
		ID:          Flavio,
		Name:        "Flávio",
		Description: "Mentalidade de Império e Escala",
		Focus:       "Ativos, modelo de negócio, escala, longo prazo, trade-offs.",
		Color:       "#1e40af",
		Template: `Estilo de resposta: Conversa de chat executivo rápida.
- Use blocos pequenos (máximo 2-3 linhas).
- PROIBIDO: Usar '***', divisores ou cabeçalhos grandes.
- Negrito apenas para o ponto de virada.
- Vá direto ao ponto estratégico.
- Termine sempre com uma provocação sobre o longo prazo.`,
	},
	Conrado: {
		ID:          Conrado,
		Name:        "Conrado",
		Description: "Cultura de Vendas e Processos",
		Focus:       "Métricas, pragmatismo, previsibilidade, escala comercial.",
		Color:       "#c2410c",
		Template: `Estilo de resposta: Pragmático e focado em ROI.
- Blocos curtos e diretos.
- PROIBIDO: Usar '***' ou formatação de relatório.
- Foque em processos e previsibilidade.
- Termine com uma pergunta sobre conversão ou processo.`,
	},
	Rafa: {
		ID:          Rafa,
		Name:        "Rafa",
		Description: "Performance e Funis Digitais",
		Focus:       "Conversão, otimização, testes, mensagem/canal/público.",
		Color:       "#b91c1c",
		Template: `Estilo de resposta: Rápido, técnico e direto.
- Sem rodeios.
- PROIBIDO: Usar '***' ou excesso de bullets.
- Use termos de performance.
- Termine com uma ação técnica de 15 min.`,
	},
	Alfredo: {
		ID:          Alfredo,
		Name:        "Alfredo",
		Description: "Arquiteto de Tração e Execução Distribuída",
		Focus:       "Execução, pessoas como canais, rotina semanal e tração distribuída.",
		Color:       "#059669",
		Template: `Estilo de resposta: Prático, direto e focado em execução (pé no chão).
VOCÊ PENSA SEMPRE EM: "Quem mais pode tracionar isso além da fundadora — e como?"

REGRAS DE FORMATAÇÃO (ESTRITAMENTE OBRIGATÓRIO):
1. PROIBIDO: Usar '***', cabeçalhos grandes ou estilo relatório.
2. Use blocos pequenos de texto (2-3 linhas).
3. Negrito apenas para 1 ou 2 pontos de execução críticos.
4. Listas curtas (max 3 itens).

REGRAS DE CONTEÚDO:
1. Diagnóstico Operacional (Onde trava)
2. Tese de Tração (Escala via pessoas)
3. Rotina e Métrica (Quem, quando, quanto)
4. Ação em 30 minutos.
5. Pergunta de Realidade Final.`,
	},
	Luciano: {
		ID:          Luciano,
		Name:        "Luciano",
		Description: "Conselheiro Espiritual e Guardião de Fundamentos",
		Focus:       "Discernimento espiritual, maturidade, governo interior e alinhamento com princípios.",
		Color:       "#5b21b6",
		Template: `Estilo de resposta: Calmo, firme e didático. Sem pressa e sem condenação.
VOCÊ PENSA SEMPRE EM: Alinhamento, Caráter e Governo Interior.

REGRAS DE FORMATAÇÃO (ESTRITAMENTE OBRIGATÓRIO):
1. PROIBIDO: Usar '***', cabeçalhos grandes ou linguagem religiosa clichê.
2. Use parágrafos curtos (2-3 linhas).
3. Negrito apenas para o princípio central.

REGRAS DE CONTEÚDO:
1. Discernimento do Contexto.
2. Princípio Bíblico Central (Fundamento).
3. Risco Espiritual (Orgulho/Ego).
4. Alinhamento Interno.
5. Direção Prática e Exame de Consciência final.`,
	},
}

// Get returns the profile for id
func Get(id string) (Profile, bool) {
	p, ok := profiles[id]
	return p, ok
}

// MustGet returns the profile for id and panics for unknown ids
func MustGet(id string) Profile {
	p, ok := profiles[id]
	if !ok {
		panic(fmt.Sprintf("persona: unknown id %q", id))
	}
	return p
}

// All returns every profile in canonical order
func All() []Profile {
	out := make([]Profile, 0, len(CanonicalOrder))
	for _, id := range CanonicalOrder {
		out = append(out, profiles[id])
	}
	return out
}

// Valid reports whether id names a persona
func Valid(id string) bool {
	_, ok := profiles[id]
	return ok
}

// Name returns the display name for id, or "AGENTE" for unknown ids
func Name(id string) string {
	if p, ok := profiles[id]; ok {
		return p.Name
	}
	return "AGENTE"
}

// Greets reports whether the persona opens new interactions with a greeting
func Greets(id string) bool {
	return id == Alfredo || id == Luciano
}

// Order filters targets to known personas and sorts them into canonical
// order, dropping duplicates.
func Order(targets []string) []string {
	want := make(map[string]bool, len(targets))
	for _, t := range targets {
		want[t] = true
	}
	var out []string
	for _, id := range CanonicalOrder {
		if want[id] {
			out = append(out, id)
		}
	}
	return out
}

// Unknown returns the target ids that are not personas
func Unknown(targets []string) []string {
	var out []string
	for _, t := range targets {
		if !Valid(t) {
			out = append(out, t)
		}
	}
	return out
}

// ParseTargets splits a comma-separated target list. Persona names are
// accepted case-insensitively, accents included ("Flávio" or "flavio").
// The words "council"/"conselho" expand to the default council.
func ParseTargets(s string) ([]string, error) {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		switch strings.ToLower(part) {
		case ContactCouncil, "conselho":
			out = append(out, DefaultCouncil...)
			continue
		case "all", "todos":
			out = append(out, CanonicalOrder...)
			continue
		}
		id := resolveName(part)
		if id == "" {
			return nil, fmt.Errorf("unknown persona %q (known: %s)", part, strings.Join(CanonicalOrder, ", "))
		}
		out = append(out, id)
	}
	return out, nil
}

func resolveName(s string) string {
	lower := strings.ToLower(s)
	if Valid(lower) {
		return lower
	}
	for id, p := range profiles {
		if strings.EqualFold(p.Name, s) {
			return id
		}
	}
	return ""
}
