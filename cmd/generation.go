package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/NCDesigner/QG-Estrat-gico/internal/council"
	"github.com/NCDesigner/QG-Estrat-gico/internal/db"
	"github.com/NCDesigner/QG-Estrat-gico/internal/llm"
	"github.com/NCDesigner/QG-Estrat-gico/internal/persona"
)

// newClient builds the Gemini-backed client. It fails without an API key.
func newClient(ctx context.Context) (*llm.Client, error) {
	if err := cfg.RequireAPIKey(); err != nil {
		return nil, err
	}
	gen, err := llm.NewGeminiGenerator(ctx, cfg.LLM.APIKey, cfg.LLM.EmbeddingModel)
	if err != nil {
		return nil, err
	}
	return llm.NewClient(gen, cfg.ClientConfig(), logger.Named("llm")), nil
}

// newOrchestrator wires the client into a council orchestrator configured
// from qg.yaml. pace=false skips the typing pauses regardless of config.
func newOrchestrator(ctx context.Context, store *db.Store, pace bool) (*council.Orchestrator, error) {
	client, err := newClient(ctx)
	if err != nil {
		return nil, err
	}
	o := council.New(store, client, logger.Named("council"))
	o.Level = cfg.Level()
	if !pace || !cfg.Council.Pacing {
		o.Pacer = council.NoPacer{}
	}
	logger.Debug("council ready",
		zap.String("model", client.Config().Model),
		zap.String("level", string(o.Level)),
		zap.Bool("pacing", pace && cfg.Council.Pacing))
	return o, nil
}

// councilProgress prints status lines to status and each reply to out as
// soon as it is persisted
func councilProgress(status, out io.Writer) council.ProgressFunc {
	return func(e council.Event) {
		switch e.State {
		case council.StateAnalyzing:
			fmt.Fprintf(status, "[council] %s está analisando... (%d/%d)\n", persona.Name(e.PersonaID), e.Index+1, e.Total)
		case council.StateIdle:
			if e.Message != nil {
				printMessage(out, *e.Message, time.Local)
			}
		}
	}
}

// printMessage writes one transcript entry: a header line, then the content
func printMessage(w io.Writer, m db.Message, loc *time.Location) {
	author := "Você"
	if m.Role == db.RoleAgent {
		author = persona.Name(m.AgentID)
	}
	header := fmt.Sprintf("── %s · %s · %s", author, time.UnixMilli(m.CreatedAt).In(loc).Format("02/01 15:04"), truncID(m.ID))
	switch {
	case m.Mode == db.ModeNote:
		header += " (nota)"
	case m.Content == llm.Fallback:
		header += " (falhou)"
	}
	if m.IsFavorite {
		header += " ★"
	}
	fmt.Fprintln(w, header)
	fmt.Fprint(w, renderMarkdown(w, m.Content))
	for _, a := range m.Attachments {
		fmt.Fprintf(w, "  📎 %s (%s)\n", a.Filename, a.FileType)
	}
	fmt.Fprintln(w)
}
