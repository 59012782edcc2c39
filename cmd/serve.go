package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"docflow/internal/config"
	"docflow/internal/server"
)

func serveCMD(cfg *config.Config) *cobra.Command {
	var addr string
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if addr == "" {
				addr = cfg.Server.Address
			}
			srv := server.New(server.Deps{
				QA:          a.qa,
				Generator:   a.generator,
				Pipeline:    a.pipeline,
				Sessions:    a.sessions,
				Index:       a.index,
				Metrics:     a.metrics,
				CookieName:  cfg.Server.CookieName,
				MaxUploadMB: cfg.Server.MaxUploadMB,
			})
			return srv.Run(ctx, addr)
		},
	}
	serve.Flags().StringVar(&addr, "addr", "", "listen address (default server.address)")
	return serve
}
