package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/NCDesigner/QG-Estrat-gico/internal/db"
)

var (
	tagsJSON     bool
	tagAddColor  string
	msgTagCreate bool
	msgShowJSON  bool
)

var tagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "Manage message tags",
	Args:  cobra.NoArgs,
	RunE:  listTags,
}

var tagsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tags with how many messages carry each",
	Args:  cobra.NoArgs,
	RunE:  listTags,
}

func listTags(cmd *cobra.Command, args []string) error {
	s, err := OpenStore()
	if err != nil {
		return err
	}
	defer s.Close()

	tags, err := s.Tags()
	if err != nil {
		return err
	}
	if tagsJSON {
		if tags == nil {
			tags = []db.Tag{}
		}
		return printJSON(cmd.OutOrStdout(), tags)
	}

	w := cmd.OutOrStdout()
	if len(tags) == 0 {
		fmt.Fprintln(w, "No tags. Create one with `qg tags add <name>`.")
		return nil
	}
	msgs, err := s.Messages()
	if err != nil {
		return err
	}
	counts := map[string]int{}
	for _, m := range msgs {
		for _, id := range m.TagIDs {
			counts[id]++
		}
	}
	for _, t := range tags {
		fmt.Fprintf(w, "  %s  %-24s %s  %d messages\n", truncID(t.ID), "#"+t.Name, t.Color, counts[t.ID])
	}
	return nil
}

var tagAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a tag",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := OpenStore()
		if err != nil {
			return err
		}
		defer s.Close()

		t, err := createTag(s, strings.Join(args, " "), tagAddColor)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "[tag] Created #%s (%s)\n", t.Name, t.ID)
		return nil
	},
}

// createTag saves a new tag unless one with that name already exists
func createTag(s *db.Store, name, color string) (db.Tag, error) {
	t, ok := db.NewTag(strings.TrimPrefix(strings.TrimSpace(name), "#"), time.Now())
	if !ok {
		return db.Tag{}, fmt.Errorf("tag name cannot be blank")
	}
	if existing, err := s.GetTag(t.Name); err == nil {
		return db.Tag{}, fmt.Errorf("tag #%s already exists (%s)", existing.Name, truncID(existing.ID))
	} else if !errors.Is(err, db.ErrNotFound) {
		return db.Tag{}, err
	}
	if color != "" {
		t.Color = color
	}
	if err := s.SaveTag(t); err != nil {
		return db.Tag{}, err
	}
	return t, nil
}

var tagDeleteCmd = &cobra.Command{
	Use:   "delete <tag>",
	Short: "Delete a tag and remove it from every message",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := OpenStore()
		if err != nil {
			return err
		}
		defer s.Close()

		t, err := s.GetTag(strings.TrimPrefix(args[0], "#"))
		if err != nil {
			return err
		}
		tagged, err := s.MessagesByTag(t.ID)
		if err != nil {
			return err
		}
		if !confirm(cmd, fmt.Sprintf("Delete #%s (on %d messages)?", t.Name, len(tagged))) {
			fmt.Fprintln(cmd.OutOrStdout(), "[tag] Aborted")
			return nil
		}
		if err := s.DeleteTag(t.ID); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "[tag] Deleted #%s\n", t.Name)
		return nil
	},
}

var tagShowCmd = &cobra.Command{
	Use:   "show <tag>",
	Short: "List the messages carrying a tag, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := OpenStore()
		if err != nil {
			return err
		}
		defer s.Close()

		t, err := s.GetTag(strings.TrimPrefix(args[0], "#"))
		if err != nil {
			return err
		}
		msgs, err := s.MessagesByTag(t.ID)
		if err != nil {
			return err
		}
		if tagsJSON {
			if msgs == nil {
				msgs = []db.Message{}
			}
			return printJSON(cmd.OutOrStdout(), msgs)
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "\n  #%s  %d messages\n", t.Name, len(msgs))
		fmt.Fprintln(w, "  ────────────────────────────────────────")
		titles := threadTitles(s)
		for _, m := range msgs {
			fmt.Fprintf(w, "  %s  %-14s %s\n", truncID(m.ID), ago(m.CreatedAt), truncTitle(titles[m.ThreadID], 40))
			fmt.Fprintf(w, "    %s\n", truncTitle(oneLine(m.Content), 100))
		}
		fmt.Fprintln(w)
		return nil
	},
}

// threadTitles maps thread IDs to titles; lookup failures yield an empty map
func threadTitles(s *db.Store) map[string]string {
	out := map[string]string{}
	threads, err := s.Threads()
	if err != nil {
		return out
	}
	for _, t := range threads {
		out[t.ID] = t.Title
	}
	return out
}

var messageCmd = &cobra.Command{
	Use:     "message",
	Aliases: []string{"msg"},
	Short:   "Inspect and mark single messages",
}

var messageShowCmd = &cobra.Command{
	Use:   "show <message>",
	Short: "Print one message",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := OpenStore()
		if err != nil {
			return err
		}
		defer s.Close()

		m, err := ResolveMessage(s, args[0])
		if err != nil {
			return err
		}
		if msgShowJSON {
			return printJSON(cmd.OutOrStdout(), m)
		}
		w := cmd.OutOrStdout()
		printMessage(w, *m, time.Local)
		if len(m.TagIDs) > 0 {
			var names []string
			for _, id := range m.TagIDs {
				if t, err := s.GetTag(id); err == nil {
					names = append(names, "#"+t.Name)
				}
			}
			fmt.Fprintf(w, "  tags: %s\n", strings.Join(names, " "))
		}
		return nil
	},
}

var messageTagCmd = &cobra.Command{
	Use:   "tag <message> <tag>",
	Short: "Toggle a tag on a message",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := OpenStore()
		if err != nil {
			return err
		}
		defer s.Close()

		m, err := ResolveMessage(s, args[0])
		if err != nil {
			return err
		}
		name := strings.TrimPrefix(args[1], "#")
		t, err := s.GetTag(name)
		switch {
		case errors.Is(err, db.ErrNotFound) && msgTagCreate:
			created, err := createTag(s, name, "")
			if err != nil {
				return err
			}
			t = &created
			fmt.Fprintf(cmd.OutOrStdout(), "[tag] Created #%s\n", t.Name)
		case err != nil:
			return err
		}

		updated, err := s.ToggleMessageTag(m.ID, t.ID)
		if err != nil {
			return err
		}
		verb := "removed from"
		if updated.HasTag(t.ID) {
			verb = "added to"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "[tag] #%s %s message %s\n", t.Name, verb, truncID(m.ID))
		return nil
	},
}

var messageFavCmd = &cobra.Command{
	Use:   "fav <message>",
	Short: "Toggle the favorite mark on a message",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := OpenStore()
		if err != nil {
			return err
		}
		defer s.Close()

		m, err := ResolveMessage(s, args[0])
		if err != nil {
			return err
		}
		updated, err := s.ToggleFavorite(m.ID)
		if err != nil {
			return err
		}
		state := "unmarked"
		if updated.IsFavorite {
			state = "marked ★"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "[message] %s %s\n", truncID(m.ID), state)
		return nil
	},
}

var messagePlanCmd = &cobra.Command{
	Use:   "plan <message>",
	Short: "Toggle whether a message is an action plan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := OpenStore()
		if err != nil {
			return err
		}
		defer s.Close()

		m, err := ResolveMessage(s, args[0])
		if err != nil {
			return err
		}
		m.IsActionPlan = !m.IsActionPlan
		if _, err := s.UpdateMessage(*m); err != nil {
			return err
		}
		state := "no longer an action plan"
		if m.IsActionPlan {
			state = "marked as action plan"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "[message] %s %s\n", truncID(m.ID), state)
		return nil
	},
}

func init() {
	tagsCmd.PersistentFlags().BoolVar(&tagsJSON, "json", false, "Output as JSON")
	tagAddCmd.Flags().StringVar(&tagAddColor, "color", "", "Tag color (default: a random pastel)")
	tagsCmd.AddCommand(tagsListCmd, tagAddCmd, tagDeleteCmd, tagShowCmd)

	messageShowCmd.Flags().BoolVar(&msgShowJSON, "json", false, "Output as JSON")
	messageTagCmd.Flags().BoolVar(&msgTagCreate, "create", false, "Create the tag when it does not exist")
	messageCmd.AddCommand(messageShowCmd, messageTagCmd, messageFavCmd, messagePlanCmd)

	rootCmd.AddCommand(tagsCmd, messageCmd)
}
