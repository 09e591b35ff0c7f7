package cmd

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/NCDesigner/QG-Estrat-gico/internal/db"
	"github.com/NCDesigner/QG-Estrat-gico/internal/persona"
)

var (
	threadsContact  string
	threadsProject  string
	threadsArchived bool
	threadsJSON     bool

	threadNewContact string
	threadNewProject string
	threadNewTitle   string

	threadShowJSON bool
	threadShowLast int

	threadArchiveUndo bool
)

var threadsCmd = &cobra.Command{
	Use:   "threads",
	Short: "List conversations, most recently active first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := OpenStore()
		if err != nil {
			return err
		}
		defer s.Close()

		var threads []db.Thread
		if threadsContact != "" {
			threads, err = s.ThreadsForContact(threadsContact)
		} else {
			threads, err = s.Threads()
		}
		if err != nil {
			return err
		}
		projectID := ""
		if threadsProject != "" {
			p, err := resolveProject(s, threadsProject)
			if err != nil {
				return err
			}
			projectID = p.ID
		}

		var out []db.Thread
		for _, t := range threads {
			if projectID != "" && t.ProjectID != projectID {
				continue
			}
			if t.IsArchived != threadsArchived {
				continue
			}
			out = append(out, t)
		}

		if threadsJSON {
			if out == nil {
				out = []db.Thread{}
			}
			return printJSON(cmd.OutOrStdout(), out)
		}

		w := cmd.OutOrStdout()
		if len(out) == 0 {
			fmt.Fprintln(w, "No threads. Start one with `qg thread new` or `qg chat`.")
			return nil
		}
		msgs, err := s.Messages()
		if err != nil {
			return err
		}
		counts := map[string]int{}
		for _, m := range msgs {
			counts[m.ThreadID]++
		}
		for _, t := range out {
			tags := ""
			if len(t.Tags) > 0 {
				tags = "  #" + strings.Join(t.Tags, " #")
			}
			fmt.Fprintf(w, "  %s  %-16s %-15s %4d msgs  %s%s\n",
				truncID(t.ID), ago(t.LastActivityAt), persona.ContactName(t.ContactID), counts[t.ID],
				truncTitle(t.Title, 50), tags)
		}
		return nil
	},
}

var threadCmd = &cobra.Command{
	Use:   "thread",
	Short: "Create, show and manage one conversation",
}

var threadNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Open a new conversation",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !slices.Contains(persona.Contacts, threadNewContact) {
			return fmt.Errorf("unknown contact %q (valid: %s)", threadNewContact, strings.Join(persona.Contacts, ", "))
		}
		s, err := OpenStore()
		if err != nil {
			return err
		}
		defer s.Close()

		projectID := ""
		if threadNewProject != "" {
			p, err := resolveProject(s, threadNewProject)
			if err != nil {
				return err
			}
			projectID = p.ID
		}
		title := strings.TrimSpace(threadNewTitle)
		if title == "" {
			title = persona.DefaultThreadTitle(threadNewContact)
		}

		t := db.NewThread(title, threadNewContact, projectID, time.Now())
		if err := s.SaveThread(t); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "[thread] Created %s (%s with %s)\n", t.ID, t.Title, persona.ContactName(t.ContactID))
		return nil
	},
}

var threadShowCmd = &cobra.Command{
	Use:   "show <thread>",
	Short: "Print a conversation",
	Args:  cobra.ExactArgs(1),
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
		msgs, err := s.MessagesByThread(t.ID)
		if err != nil {
			return err
		}
		if threadShowLast > 0 && len(msgs) > threadShowLast {
			msgs = msgs[len(msgs)-threadShowLast:]
		}

		if threadShowJSON {
			if msgs == nil {
				msgs = []db.Message{}
			}
			return printJSON(cmd.OutOrStdout(), struct {
				Thread   *db.Thread   `json:"thread"`
				Messages []db.Message `json:"messages"`
			}{t, msgs})
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "\n  %s\n", t.Title)
		fmt.Fprintf(w, "  %s · %s · %d messages\n", persona.ContactName(t.ContactID), t.ID, len(msgs))
		if t.ProjectID != "" {
			if p, err := s.GetProject(t.ProjectID); err == nil {
				fmt.Fprintf(w, "  project: %s\n", p.Title)
			}
		}
		fmt.Fprintln(w, "  ────────────────────────────────────────")
		fmt.Fprintln(w)
		for _, m := range msgs {
			printMessage(w, m, time.Local)
		}
		return nil
	},
}

var threadRenameCmd = &cobra.Command{
	Use:   "rename <thread> <title>",
	Short: "Rename a conversation",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		title := strings.TrimSpace(strings.Join(args[1:], " "))
		if title == "" {
			return fmt.Errorf("title cannot be blank")
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
		old := t.Title
		t.Title = title
		if err := s.SaveThread(*t); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "[thread] %s: %q -> %q\n", truncID(t.ID), old, title)
		return nil
	},
}

var threadArchiveCmd = &cobra.Command{
	Use:   "archive <thread>",
	Short: "Hide a conversation from the default listing",
	Args:  cobra.ExactArgs(1),
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
		t.IsArchived = !threadArchiveUndo
		if err := s.SaveThread(*t); err != nil {
			return err
		}
		state := "archived"
		if threadArchiveUndo {
			state = "restored"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "[thread] %s %s\n", truncID(t.ID), state)
		return nil
	},
}

var threadDeleteCmd = &cobra.Command{
	Use:   "delete <thread>",
	Short: "Delete a conversation and all its messages",
	Args:  cobra.ExactArgs(1),
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
		msgs, err := s.MessagesByThread(t.ID)
		if err != nil {
			return err
		}
		if !confirm(cmd, fmt.Sprintf("Delete %q and its %d messages?", t.Title, len(msgs))) {
			fmt.Fprintln(cmd.OutOrStdout(), "[thread] Aborted")
			return nil
		}
		if err := s.DeleteThread(t.ID); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "[thread] Deleted %s (%d messages)\n", truncID(t.ID), len(msgs))
		return nil
	},
}

var threadTagCmd = &cobra.Command{
	Use:   "tag <thread> <label>",
	Short: "Toggle a free-form label on a conversation",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		label := strings.TrimSpace(strings.TrimPrefix(args[1], "#"))
		if label == "" {
			return fmt.Errorf("label cannot be blank")
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
		added := toggleLabel(t, label)
		if err := s.SaveThread(*t); err != nil {
			return err
		}
		verb := "removed from"
		if added {
			verb = "added to"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "[thread] #%s %s %s\n", label, verb, truncID(t.ID))
		return nil
	},
}

// toggleLabel adds label to the thread, or removes it when already present
func toggleLabel(t *db.Thread, label string) bool {
	for i, l := range t.Tags {
		if strings.EqualFold(l, label) {
			t.Tags = slices.Delete(t.Tags, i, i+1)
			return false
		}
	}
	t.Tags = append(t.Tags, label)
	return true
}

func init() {
	threadsCmd.Flags().StringVar(&threadsContact, "contact", "", "Only threads opened with this contact (flavio, conrado, rafa, council, diario)")
	threadsCmd.Flags().StringVar(&threadsProject, "project", "", "Only threads in this project (ID or title)")
	threadsCmd.Flags().BoolVar(&threadsArchived, "archived", false, "List archived threads instead")
	threadsCmd.Flags().BoolVar(&threadsJSON, "json", false, "Output as JSON")

	threadNewCmd.Flags().StringVar(&threadNewContact, "contact", persona.ContactCouncil, "Who the thread is with: flavio, conrado, rafa, council or diario")
	threadNewCmd.Flags().StringVar(&threadNewProject, "project", "", "Project the thread belongs to (ID or title)")
	threadNewCmd.Flags().StringVar(&threadNewTitle, "title", "", "Thread title (default depends on the contact)")

	threadShowCmd.Flags().BoolVar(&threadShowJSON, "json", false, "Output as JSON")
	threadShowCmd.Flags().IntVar(&threadShowLast, "last", 0, "Only the last N messages")

	threadArchiveCmd.Flags().BoolVar(&threadArchiveUndo, "undo", false, "Restore an archived thread")

	threadCmd.AddCommand(threadNewCmd, threadShowCmd, threadRenameCmd, threadArchiveCmd, threadDeleteCmd, threadTagCmd)
	rootCmd.AddCommand(threadsCmd, threadCmd)
}
