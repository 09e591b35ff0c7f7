package llm

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/NCDesigner/QG-Estrat-gico/internal/db"
	"github.com/NCDesigner/QG-Estrat-gico/internal/persona"
)

// Level sets how hard the advisors push back
type Level string

const (
	LevelLeve         Level = "leve"
	LevelDireto       Level = "direto"
	LevelConfrontador Level = "confrontador"
)

// Levels lists the confrontation levels from softest to hardest
var Levels = []Level{LevelLeve, LevelDireto, LevelConfrontador}

// ParseLevel accepts a level name; empty means direto.
func ParseLevel(s string) (Level, error) {
	switch Level(strings.ToLower(strings.TrimSpace(s))) {
	case "", LevelDireto:
		return LevelDireto, nil
	case LevelLeve:
		return LevelLeve, nil
	case LevelConfrontador:
		return LevelConfrontador, nil
	}
	return "", fmt.Errorf("unknown level %q (want leve, direto or confrontador)", s)
}

// Next cycles to the following level, wrapping around
func (l Level) Next() Level {
	for i, lv := range Levels {
		if lv == l {
			return Levels[(i+1)%len(Levels)]
		}
	}
	return LevelDireto
}

func (l Level) instruction(userName string) string {
	switch l {
	case LevelLeve:
		return "Tom de conselheiro sábio, menos pressão."
	case LevelConfrontador:
		return fmt.Sprintf("Dureza total. Se a %s estiver se enganando, exponha isso sem dó.", userName)
	default:
		return "Sem rodeios. Vá no ponto crítico imediatamente."
	}
}

// TimeContext is the local time hint appended to every system instruction
type TimeContext struct {
	LocalTime string `json:"localTime"`
	DayOfWeek string `json:"dayOfWeek"`
}

var weekdaysPT = [...]string{
	"domingo", "segunda-feira", "terça-feira", "quarta-feira",
	"quinta-feira", "sexta-feira", "sábado",
}

// NewTimeContext formats t the way a pt-BR locale would
func NewTimeContext(t time.Time) TimeContext {
	return TimeContext{
		LocalTime: t.Format("15:04:05"),
		DayOfWeek: weekdaysPT[t.Weekday()],
	}
}

// Prompt is everything needed to ask one persona for one reply
type Prompt struct {
	PersonaID        string
	UserText         string
	History          []db.Message
	Time             *TimeContext
	Level            Level
	Attachments      []db.Attachment
	IsNewInteraction bool
}

const systemTemplate = `Você é %s. Parte do Conselho Estratégico da %s.
MISSÃO: Dar clareza e direção imediata.

REGRAS DE OURO DE FORMATAÇÃO (ESTRITAMENTE OBRIGATÓRIO):
1. PROIBIDO: Usar '***', '---', divisores de seção ou cabeçalhos grandes (Markdown # ou ##).
2. RESPONDA EM BLOCOS PEQUENOS: Use parágrafos de no máximo 2-3 linhas.
3. ESTILO CHAT: Fale como no WhatsApp. Natural, sem cara de relatório formal.
4. CLAREZA: Se a %s estiver sendo vaga, faça 1 ou 2 perguntas curtas de clarificação antes de aprofundar.

%s

Nível de Confronto: %s. %s
%s
%s`

// greeting is only given to personas that greet, and only on new interactions
func greeting(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = `"` + n + `"`
	}
	var list string
	switch len(quoted) {
	case 0:
		return ""
	case 1:
		list = quoted[0]
	default:
		list = strings.Join(quoted[:len(quoted)-1], ", ") + " ou " + quoted[len(quoted)-1]
	}
	return fmt.Sprintf(`Esta é uma nova conversa ou faz tempo que não se falam. Comece com uma saudação humana curta (1-2 linhas) usando %s alternadamente. Ex: "E aí, %s. Vamos organizar essa tração?" ou "%s, qual o fundamento que estamos esquecendo aqui?".`,
		list, names[0], names[len(names)-1])
}

// BuildSystemInstruction assembles the system prompt for one persona
func BuildSystemInstruction(p Prompt, userName string, greetingNames []string) (string, error) {
	profile, ok := persona.Get(p.PersonaID)
	if !ok {
		return "", fmt.Errorf("unknown persona %q", p.PersonaID)
	}
	level := p.Level
	if level == "" {
		level = LevelDireto
	}

	humanCheck := ""
	if p.IsNewInteraction && persona.Greets(p.PersonaID) {
		humanCheck = greeting(greetingNames)
	}

	timeInfo := ""
	if p.Time != nil {
		timeInfo = fmt.Sprintf("Contexto temporal: %s, %s.", p.Time.LocalTime, p.Time.DayOfWeek)
	}

	return fmt.Sprintf(systemTemplate,
		profile.Name, userName, userName,
		humanCheck,
		strings.ToUpper(string(level)), level.instruction(userName),
		profile.Template,
		timeInfo,
	), nil
}

// Part is text or inline bytes with a MIME type
type Part struct {
	Text     string
	Data     []byte
	MIMEType string
}

// Content is one role-tagged turn sent to the model ("user" or "model")
type Content struct {
	Role  string
	Parts []Part
}

// BuildContents converts chat history plus the new user turn into model
// contents. A trailing user message identical to the new turn is dropped so
// the question is not sent twice. Empty history entries are skipped.
func BuildContents(history []db.Message, userText string, attachments []db.Attachment) ([]Content, []error) {
	if n := len(history); n > 0 {
		last := history[n-1]
		if last.Role == db.RoleUser && last.Content == userText {
			history = history[:n-1]
		}
	}

	contents := make([]Content, 0, len(history)+1)
	for _, m := range history {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		role := "model"
		if m.Role == db.RoleUser {
			role = "user"
		}
		contents = append(contents, Content{Role: role, Parts: []Part{{Text: m.Content}}})
	}

	var parts []Part
	if userText != "" {
		parts = append(parts, Part{Text: userText})
	}
	var errs []error
	for _, att := range attachments {
		if att.Base64 == "" {
			continue
		}
		data, err := DecodeDataURI(att.Base64)
		if err != nil {
			errs = append(errs, fmt.Errorf("attachment %s: %w", att.Filename, err))
			continue
		}
		parts = append(parts, Part{Data: data, MIMEType: db.NormalizeMIME(att.FileType, att.Filename)})
	}
	if len(parts) > 0 {
		contents = append(contents, Content{Role: "user", Parts: parts})
	}
	return contents, errs
}

// DecodeDataURI decodes "data:<mime>;base64,<payload>" or a bare base64 payload
func DecodeDataURI(s string) ([]byte, error) {
	if strings.HasPrefix(s, "data:") {
		i := strings.IndexByte(s, ',')
		if i < 0 {
			return nil, fmt.Errorf("malformed data URI")
		}
		s = s[i+1:]
	}
	return base64.StdEncoding.DecodeString(s)
}

// EncodeDataURI builds a base64 data URI
func EncodeDataURI(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
