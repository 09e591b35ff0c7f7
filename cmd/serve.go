package cmd

import (
	"errors"
	"fmt"
	"net"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/NCDesigner/QG-Estrat-gico/internal/api"
)

var serveListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the JSON API for the web front end",
	Long: `Serves threads, messages, tags, the war map and the council over HTTP.
Without a Gemini API key the generating endpoints answer 503 and the rest
keeps working.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := interruptible(cmd)
		defer stop()

		addr := cfg.Server.Listen
		if serveListen != "" {
			addr = serveListen
		}

		s, err := OpenStore()
		if err != nil {
			return err
		}
		defer s.Close()

		// a nil *Orchestrator inside the interface would not compare equal to nil
		var turns api.Turner
		if err := cfg.RequireAPIKey(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "[serve] %v; generation disabled\n", err)
		} else {
			orch, err := newOrchestrator(ctx, s, false)
			if err != nil {
				return err
			}
			turns = orch
		}

		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", addr, err)
		}
		srv := api.NewServer(s, turns, logger.Named("api"))
		fmt.Fprintf(cmd.ErrOrStderr(), "[serve] Listening on http://%s\n", ln.Addr())
		logger.Info("serving", zap.String("addr", ln.Addr().String()), zap.Bool("generation", turns != nil))

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return srv.Serve(ln)
		})
		g.Go(func() error {
			<-gctx.Done()
			return srv.Shutdown()
		})
		err = g.Wait()
		if errors.Is(err, net.ErrClosed) {
			err = nil
		}
		fmt.Fprintln(cmd.ErrOrStderr(), "[serve] Stopped")
		return err
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "Address to listen on (default server.listen)")
	rootCmd.AddCommand(serveCmd)
}
