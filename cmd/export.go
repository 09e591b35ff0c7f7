package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/NCDesigner/QG-Estrat-gico/internal/export"
)

var (
	exportFormat string
	exportSelect string
	exportOut    string
)

var exportCmd = &cobra.Command{
	Use:   "export <thread>",
	Short: "Write a conversation to a file (md, txt or json)",
	Long: `Exports a thread. --select limits the authors: "user", persona ids, or "all".
Without --out the file is named QG_<title>_<date>.<ext> in the current
directory; "--out -" writes to stdout.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := export.ParseFormat(exportFormat)
		if err != nil {
			return err
		}
		sel, err := export.ParseSelection(exportSelect)
		if err != nil {
			return err
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
		msgs, err := s.MessagesByThread(t.ID)
		if err != nil {
			return err
		}
		picked := export.Filter(msgs, sel)
		now := time.Now()
		body, err := export.Render(format, *t, picked, now, nil)
		if err != nil {
			return err
		}

		if exportOut == "-" {
			_, err := cmd.OutOrStdout().Write(body)
			return err
		}
		path := exportOut
		if path == "" {
			path = export.FileName(t.Title, format, now)
		}
		if err := os.WriteFile(path, body, 0o644); err != nil {
			return fmt.Errorf("writing export: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "[export] %d of %d messages -> %s\n", len(picked), len(msgs), path)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "md", "Output format: md, txt or json")
	exportCmd.Flags().StringVar(&exportSelect, "select", "all", "Comma-separated authors: all, user, flavio, alfredo, conrado, rafa, luciano")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", `Output file ("-" for stdout)`)
	rootCmd.AddCommand(exportCmd)
}
