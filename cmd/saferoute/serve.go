package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/joss/saferoute/internal/server"
)

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serve the analysis pipeline over HTTP:

  POST /api/analyze-route
  POST /api/batch-analyze
  GET  /api/session/{id}/history
  GET  /api/health
  GET  /metrics`,
		Run: func(cmd *cobra.Command, args []string) {
			a, err := buildApp(false)
			if err != nil {
				fatalError(err)
			}
			defer a.close()

			if port == 0 {
				port = a.env.ServerPort
			}

			srv := server.New(port, a.pipeline, a.store, a.stats)
			if err := srv.Start(); err != nil {
				fatalError(err)
			}
			fmt.Printf("saferoute listening on :%d\n", port)

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
			<-stop

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Stop(ctx); err != nil {
				fatalError(err)
			}
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Listen port (default SAFEROUTE_PORT or 8000)")
	return cmd
}
