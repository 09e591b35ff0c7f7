package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/NCDesigner/QG-Estrat-gico/internal/council"
	"github.com/NCDesigner/QG-Estrat-gico/internal/db"
	"github.com/NCDesigner/QG-Estrat-gico/internal/persona"
	"github.com/NCDesigner/QG-Estrat-gico/internal/tui"
)

var (
	chatContact string
	chatNew     bool
	chatStyle   string
)

var chatCmd = &cobra.Command{
	Use:   "chat [thread]",
	Short: "Open the interactive chat",
	Long: `Opens a thread in the terminal chat. Without an argument the most recent
thread with --contact (the council by default) is reopened, or a new one is
started. Logs go to logging.file, or to qg-chat.log in the temp directory.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := interruptible(cmd)
		defer stop()

		s, err := OpenStore()
		if err != nil {
			return err
		}
		defer s.Close()

		t, err := chatThread(s, args)
		if err != nil {
			return err
		}

		logFile := cfg.Logging.File
		if logFile == "" {
			logFile = filepath.Join(os.TempDir(), "qg-chat.log")
		}
		chatLogger, err := newLogger(cfg.Logging, verbose, []string{logFile})
		if err != nil {
			return err
		}
		defer chatLogger.Sync()
		// the alternate screen owns the terminal from here on
		logger = chatLogger

		var orch *council.Orchestrator
		if err := cfg.RequireAPIKey(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "[chat] %v; notes only\n", err)
		} else if orch, err = newOrchestrator(ctx, s, true); err != nil {
			return err
		}

		userName := ""
		if p, err := s.UserProfile(); err == nil {
			userName = p.Name
		}
		chatLogger.Info("chat opened", zap.String("thread", t.ID), zap.Bool("generation", orch != nil))

		return tui.Run(ctx, tui.Options{
			Store:    s,
			ThreadID: t.ID,
			Level:    cfg.Level(),
			UserName: userName,
			Style:    chatStyle,
			Logger:   chatLogger.Named("tui"),
			Location: time.Local,
		}, orch)
	},
}

// chatThread picks the thread to open, creating one when none fits
func chatThread(s *db.Store, args []string) (*db.Thread, error) {
	if len(args) == 1 {
		return ResolveThread(s, args[0])
	}
	if !chatNew {
		latest, err := s.LatestThreadForContact(chatContact)
		if err != nil {
			return nil, err
		}
		if latest != nil {
			return latest, nil
		}
	}
	t := db.NewThread(persona.DefaultThreadTitle(chatContact), chatContact, "", time.Now())
	if err := s.SaveThread(t); err != nil {
		return nil, err
	}
	return &t, nil
}

func init() {
	chatCmd.Flags().StringVar(&chatContact, "contact", persona.ContactCouncil, "Contact to reopen or start a thread with")
	chatCmd.Flags().BoolVar(&chatNew, "new", false, "Always start a new thread")
	chatCmd.Flags().StringVar(&chatStyle, "style", "", "glamour style (dark, light, notty); default follows the terminal")
	rootCmd.AddCommand(chatCmd)
}
