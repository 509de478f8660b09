package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/valyala/fasthttp"

	"github.com/joshuapare/pagezone/internal/logger"
	"github.com/joshuapare/pagezone/internal/server"
	"github.com/joshuapare/pagezone/pkg/allocator"
)

var serveListen string

const shutdownTimeout = 5 * time.Second

func init() {
	cmd := newServeCmd()
	addLayoutFlags(cmd)
	cmd.Flags().StringVar(&serveListen, "listen", "127.0.0.1:8080", "Address to listen on")
	rootCmd.AddCommand(cmd)
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve an allocator over HTTP",
		Long: `The serve command initializes an allocator over the range and answers
allocation requests over HTTP until interrupted.

Endpoints:
  POST /alloc?size=N
  POST /release?addr=A
  GET  /valid?addr=A
  GET  /stats

Example:
  pzctl serve --listen :8080 --end 0x4100000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx)
		},
	}
	return cmd
}

func runServe(ctx context.Context) error {
	a, err := newAllocator(regionStart, regionEnd, pageSize)
	if err != nil {
		return err
	}
	s := server.New(allocator.NewSynchronized(a), logger.L)
	srv := &fasthttp.Server{
		Handler: s.Handler,
		Name:    "pzctl/" + allocator.Version(),
	}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe(serveListen)
	}()
	printInfo("Listening on %s (0x%x-0x%x, page size %d)\n", serveListen, regionStart, regionEnd, pageSize)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	logger.Info("serve: shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.ShutdownWithContext(sctx)
}
