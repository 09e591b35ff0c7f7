package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/NCDesigner/QG-Estrat-gico/internal/db"
	"github.com/NCDesigner/QG-Estrat-gico/internal/persona"
)

var (
	searchLimit int
	searchJSON  bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query...>",
	Short: "Search every message, best matches first",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")
		if len(db.SearchTerms(query)) == 0 {
			return fmt.Errorf("query %q has no searchable words (3+ letters, not a stopword)", query)
		}
		s, err := OpenStore()
		if err != nil {
			return err
		}
		defer s.Close()

		hits, err := s.SearchMessages(query, searchLimit)
		if err != nil {
			return err
		}
		if searchJSON {
			return printJSON(cmd.OutOrStdout(), hits)
		}

		w := cmd.OutOrStdout()
		if len(hits) == 0 {
			fmt.Fprintf(w, "No messages match %q\n", query)
			return nil
		}
		titles := threadTitles(s)
		for _, h := range hits {
			m := h.Message
			author := "Você"
			if m.Role == db.RoleAgent {
				author = persona.Name(m.AgentID)
			}
			fmt.Fprintf(w, "  %s  score=%d  %-8s %-14s %s\n",
				truncID(m.ID), h.Score, author, ago(m.CreatedAt), truncTitle(titles[m.ThreadID], 40))
			fmt.Fprintf(w, "    %s\n", truncTitle(oneLine(m.Content), 100))
		}
		fmt.Fprintf(w, "\n%d result(s)\n", len(hits))
		return nil
	},
}

func init() {
	searchCmd.Flags().IntVar(&searchLimit, "limit", 20, "Maximum number of results")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "Output as JSON")
	rootCmd.AddCommand(searchCmd)
}
