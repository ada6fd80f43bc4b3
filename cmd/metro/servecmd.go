package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"kharkivmetro.dev/metro/toolserver"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the tool-call HTTP server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "Listen address")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := openStore(cfg, true)
	if err != nil {
		return err
	}

	router, err := newRouter(store)
	if err != nil {
		return err
	}

	server := toolserver.New(router, slog.Default())
	return server.ListenAndServe(serveAddr)
}
