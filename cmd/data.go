package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/NCDesigner/QG-Estrat-gico/internal/config"
)

var configInitForce bool

var importCmd = &cobra.Command{
	Use:   "import <dump.json|->",
	Short: "Load a browser localStorage dump or a qg backup",
	Long: `Reads a JSON object mapping storage keys (conselho_threads_v7,
conselho_messages_v7, conselho_warmap_nodes_v7, ...) to their values and
writes every known key, replacing what the database holds under it. Values may be JSON or strings holding JSON, as
copied from the browser's localStorage. Unknown keys are reported and skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dump, err := readDump(cmd.InOrStdin(), args[0])
		if err != nil {
			return err
		}
		s, err := OpenStore()
		if err != nil {
			return err
		}
		defer s.Close()

		if !confirm(cmd, fmt.Sprintf("Import %d keys, replacing the current data under them?", len(dump))) {
			fmt.Fprintln(cmd.OutOrStdout(), "[import] Aborted")
			return nil
		}
		imported, skipped, err := s.ImportRaw(dump)
		slices.Sort(imported)
		slices.Sort(skipped)
		for _, k := range imported {
			fmt.Fprintf(cmd.OutOrStdout(), "[import] %s\n", k)
		}
		if err != nil {
			return fmt.Errorf("import stopped after %d keys: %w", len(imported), err)
		}
		for _, k := range skipped {
			fmt.Fprintf(cmd.ErrOrStderr(), "[import] skipped unknown key %s\n", k)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "[import] Done: %d imported, %d skipped\n", len(imported), len(skipped))
		return nil
	},
}

// readDump decodes a key to value JSON object from path, or stdin for "-"
func readDump(stdin io.Reader, path string) (map[string]json.RawMessage, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read dump: %w", err)
	}
	var dump map[string]json.RawMessage
	if err := json.Unmarshal(data, &dump); err != nil {
		return nil, fmt.Errorf("dump must be a JSON object of storage keys: %w", err)
	}
	if len(dump) == 0 {
		return nil, fmt.Errorf("dump is empty")
	}
	return dump, nil
}

var backupCmd = &cobra.Command{
	Use:   "backup [file|-]",
	Short: "Write every collection to a JSON file that `qg import` reads back",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := OpenStore()
		if err != nil {
			return err
		}
		defer s.Close()

		dump, err := s.Dump()
		if err != nil {
			return err
		}
		path := backupFileName(time.Now())
		if len(args) == 1 {
			path = args[0]
		}
		if path == "-" {
			return printJSON(cmd.OutOrStdout(), dump)
		}

		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create backup: %w", err)
		}
		if err := printJSON(f, dump); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "[backup] %d keys -> %s\n", len(dump), path)
		return nil
	},
}

func backupFileName(now time.Time) string {
	return "qg-backup-" + now.Format("2006-01-02") + ".json"
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or write the configuration file",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := *cfg
		if out.LLM.APIKey != "" {
			out.LLM.APIKey = "(set)"
		}
		data, err := yaml.Marshal(&out)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the effective configuration to the config file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			path = config.DefaultPath()
		}
		if _, err := os.Stat(path); err == nil && !configInitForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := cfg.Save(path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "[config] Wrote %s\n", path)
		fmt.Fprintln(cmd.OutOrStdout(), "[config] Put the API key in GEMINI_API_KEY or a .env file")
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "Overwrite an existing file")
	configCmd.AddCommand(configShowCmd, configInitCmd)

	rootCmd.AddCommand(importCmd, backupCmd, configCmd)
}
