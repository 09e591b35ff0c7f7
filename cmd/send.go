package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/NCDesigner/QG-Estrat-gico/internal/council"
	"github.com/NCDesigner/QG-Estrat-gico/internal/db"
	"github.com/NCDesigner/QG-Estrat-gico/internal/llm"
	"github.com/NCDesigner/QG-Estrat-gico/internal/persona"
)

// maxAttachmentBytes is the largest file sent inline to the model
const maxAttachmentBytes = 20 << 20

var (
	sendTo      string
	sendNote    bool
	sendLevel   string
	sendAttach  []string
	sendJSON    bool
	sendNoPace  bool
	retryJSON   bool
	retryNoPace bool

	batchTo             string
	batchMaxRuns        int
	batchStopOnFallback int
	batchReset          bool
	batchDryRun         bool
	batchPause          time.Duration
	batchJSON           bool
)

// interruptible returns a context canceled on SIGINT or SIGTERM. Replies
// persisted before the signal are kept.
func interruptible(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

var sendCmd = &cobra.Command{
	Use:   "send <thread> <text...>",
	Short: "Send a message to the council and print the replies",
	Long: `Sends one message to a thread. By default the thread's usual advisors answer
(the project's default advisors, the contact persona, or the council); --to
picks them explicitly and --note records the message without asking anyone.
Use "-" as the text to read it from stdin.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := messageText(cmd.InOrStdin(), args[1:])
		if err != nil {
			return err
		}
		level := llm.Level("")
		if sendLevel != "" {
			if level, err = llm.ParseLevel(sendLevel); err != nil {
				return err
			}
		}
		var attachments []db.Attachment
		for _, path := range sendAttach {
			a, err := readAttachment(path)
			if err != nil {
				return err
			}
			attachments = append(attachments, a)
		}

		s, err := OpenStore()
		if err != nil {
			return err
		}
		defer s.Close()

		t, err := ResolveThread(s, args[0])
		if err != nil {
			return err
		}
		targets, err := sendTargets(s, t)
		if err != nil {
			return err
		}

		ctx, cancel := interruptible(cmd)
		defer cancel()

		var turns *council.Orchestrator
		if len(targets) == 0 {
			// a note needs no model
			turns = council.New(s, nil, logger.Named("council"))
		} else if turns, err = newOrchestrator(ctx, s, !sendNoPace); err != nil {
			return err
		}
		if !sendJSON {
			turns.Progress = councilProgress(cmd.ErrOrStderr(), cmd.OutOrStdout())
		}

		result, err := turns.RunTurn(ctx, council.Compose{
			ThreadID:    t.ID,
			Text:        text,
			Targets:     targets,
			Attachments: attachments,
			Level:       level,
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		if result == nil {
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.ErrOrStderr(), "[send] Nothing to send")
			return nil
		}
		if sendJSON {
			return printJSON(cmd.OutOrStdout(), result)
		}
		printTurnSummary(cmd.ErrOrStderr(), "send", result)
		if err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), "[send] Interrupted; replies received so far were saved")
		}
		return nil
	},
}

var retryCmd = &cobra.Command{
	Use:   "retry <thread>",
	Short: "Ask again the advisors whose last reply failed",
	Long:  "Finds the latest answered message in the thread and re-asks every persona whose reply was the error apology. The failed replies stay in the transcript.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := OpenStore()
		if err != nil {
			return err
		}
		defer s.Close()

		t, err := ResolveThread(s, args[0])
		if err != nil {
			return fmt.Errorf("cannot find thread: %w", err)
		}

		ctx, cancel := interruptible(cmd)
		defer cancel()

		o, err := newOrchestrator(ctx, s, !retryNoPace)
		if err != nil {
			return err
		}
		if !retryJSON {
			fmt.Fprintf(cmd.ErrOrStderr(), "[retry] Thread: %s (%s)\n", truncID(t.ID), t.Title)
			o.Progress = councilProgress(cmd.ErrOrStderr(), cmd.OutOrStdout())
		}

		result, err := o.RetryTurn(ctx, t.ID)
		if errors.Is(err, council.ErrNothingToRetry) {
			fmt.Fprintln(cmd.ErrOrStderr(), "[retry] Every reply in the latest turn succeeded; nothing to retry")
			return nil
		}
		if err != nil && (result == nil || !errors.Is(err, context.Canceled)) {
			return err
		}
		if retryJSON {
			return printJSON(cmd.OutOrStdout(), result)
		}
		printTurnSummary(cmd.ErrOrStderr(), "retry", result)
		if result.Fallbacks > 0 {
			return fmt.Errorf("%d replies failed again", result.Fallbacks)
		}
		return nil
	},
}

var batchCmd = &cobra.Command{
	Use:   "batch <thread> <file>",
	Short: "Send every prompt in a file to a thread, one turn each",
	Long: `Reads prompts from a file ("-" for stdin): one per line, or multi-line prompts
separated by "---". Answered prompts are remembered next to the file, so running
the same batch again resumes where the last run stopped.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := OpenStore()
		if err != nil {
			return err
		}
		defer s.Close()

		t, err := ResolveThread(s, args[0])
		if err != nil {
			return err
		}
		targets := []string(nil)
		if batchTo != "" {
			if targets, err = persona.ParseTargets(batchTo); err != nil {
				return err
			}
		} else if targets, err = threadTargets(s, t); err != nil {
			return err
		}
		if len(targets) == 0 {
			return fmt.Errorf("thread %s has no default advisors; pick them with --to", truncID(t.ID))
		}

		ctx, cancel := interruptible(cmd)
		defer cancel()

		var o *council.Orchestrator
		if batchDryRun {
			o = council.New(s, nil, logger.Named("council"))
		} else if o, err = newOrchestrator(ctx, s, false); err != nil {
			return err
		}

		var log io.Writer = cmd.ErrOrStderr()
		if batchJSON {
			log = io.Discard
		}
		result, err := o.RunBatch(ctx, council.BatchConfig{
			ThreadID:       t.ID,
			Source:         args[1],
			Targets:        targets,
			MaxRuns:        batchMaxRuns,
			StopOnFallback: batchStopOnFallback,
			Reset:          batchReset,
			DryRun:         batchDryRun,
			Pause:          batchPause,
			Log:            log,
		})
		if batchJSON && result != nil {
			if encErr := printJSON(cmd.OutOrStdout(), result); encErr != nil {
				return encErr
			}
		}
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(cmd.ErrOrStderr(), "[batch] Interrupted; rerun the same command to resume")
			return nil
		}
		return err
	},
}

// messageText joins the text arguments; a lone "-" reads stdin
func messageText(stdin io.Reader, args []string) (string, error) {
	if len(args) == 1 && args[0] == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	return strings.TrimSpace(strings.Join(args, " ")), nil
}

// sendTargets applies --note and --to over the thread's default advisors
func sendTargets(s *db.Store, t *db.Thread) ([]string, error) {
	switch {
	case sendNote:
		return nil, nil
	case sendTo != "":
		return persona.ParseTargets(sendTo)
	}
	return threadTargets(s, t)
}

// threadTargets returns who answers by default in a thread
func threadTargets(s *db.Store, t *db.Thread) ([]string, error) {
	var agents []string
	if t.ProjectID != "" {
		p, err := s.GetProject(t.ProjectID)
		switch {
		case err == nil:
			agents = p.DefaultAgents
		case !errors.Is(err, db.ErrNotFound):
			return nil, err
		}
	}
	return persona.DefaultTargets(t.ContactID, agents, t.ProjectID != ""), nil
}

// readAttachment loads a file as an inline attachment
func readAttachment(path string) (db.Attachment, error) {
	info, err := os.Stat(path)
	if err != nil {
		return db.Attachment{}, fmt.Errorf("attachment: %w", err)
	}
	if info.IsDir() {
		return db.Attachment{}, fmt.Errorf("attachment %s is a directory", path)
	}
	if info.Size() > maxAttachmentBytes {
		return db.Attachment{}, fmt.Errorf("attachment %s is too large (%d bytes, max %d)", path, info.Size(), maxAttachmentBytes)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return db.Attachment{}, fmt.Errorf("attachment: %w", err)
	}

	mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return db.Attachment{
		ID:       db.NewID(),
		FileURL:  "file://" + filepath.ToSlash(abs),
		FileType: mimeType,
		Filename: filepath.Base(path),
		Base64:   llm.EncodeDataURI(mimeType, data),
	}, nil
}

func printTurnSummary(w io.Writer, phase string, r *council.TurnResult) {
	if len(r.Order) == 0 {
		fmt.Fprintf(w, "[%s] Note saved to %s\n", phase, truncID(r.ThreadID))
		return
	}
	names := make([]string, len(r.Order))
	for i, id := range r.Order {
		names[i] = persona.Name(id)
	}
	fmt.Fprintf(w, "[%s] %d/%d replies from %s in %s",
		phase, len(r.Replies), len(r.Order), strings.Join(names, ", "), council.FormatDurationShort(r.Duration))
	if r.Fallbacks > 0 {
		fmt.Fprintf(w, " (%d failed; run `qg retry %s`)", r.Fallbacks, truncID(r.ThreadID))
	}
	fmt.Fprintln(w)
}

func init() {
	sendCmd.Flags().StringVar(&sendTo, "to", "", "Comma-separated advisors (flavio, alfredo, conrado, rafa, luciano, council, all)")
	sendCmd.Flags().BoolVar(&sendNote, "note", false, "Save as a note; nobody answers")
	sendCmd.Flags().StringVar(&sendLevel, "level", "", "Confrontation level: leve, direto or confrontador (default from config)")
	sendCmd.Flags().StringArrayVar(&sendAttach, "attach", nil, "Attach a file (image, audio or PDF); repeatable")
	sendCmd.Flags().BoolVar(&sendJSON, "json", false, "Print the turn result as JSON")
	sendCmd.Flags().BoolVar(&sendNoPace, "no-pace", false, "Skip the typing pauses between replies")
	sendCmd.MarkFlagsMutuallyExclusive("to", "note")

	retryCmd.Flags().BoolVar(&retryJSON, "json", false, "Print the turn result as JSON")
	retryCmd.Flags().BoolVar(&retryNoPace, "no-pace", false, "Skip the typing pauses between replies")

	batchCmd.Flags().StringVar(&batchTo, "to", "", "Comma-separated advisors (default: the thread's advisors)")
	batchCmd.Flags().IntVar(&batchMaxRuns, "max-runs", 0, "Stop after N prompts (0 = all)")
	batchCmd.Flags().IntVar(&batchStopOnFallback, "stop-on-fallback", 3, "Abort after N consecutive prompts where every reply failed")
	batchCmd.Flags().BoolVar(&batchReset, "reset", false, "Forget which prompts were already answered")
	batchCmd.Flags().BoolVar(&batchDryRun, "dry-run", false, "List the prompts that would be sent")
	batchCmd.Flags().DurationVar(&batchPause, "pause", 0, "Pause between prompts")
	batchCmd.Flags().BoolVar(&batchJSON, "json", false, "Print the batch result as JSON")

	rootCmd.AddCommand(sendCmd, retryCmd, batchCmd)
}
