package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"sjsage522/asinharvester/internal/command"
	"sjsage522/asinharvester/logger"
	"sjsage522/asinharvester/services/storage"

	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the storage API and the trigger command endpoint",
		Long: `Serve exposes the configured store under /api (the API the "api" backend talks to)
and accepts trigger commands as JSON on POST /api/command.

Requests must carry the X-API-Key header when REMOTE_API_KEY is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = a.cfg.ServeAddr
			}
			return a.serve(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default SERVE_ADDR)")
	return cmd
}

// newMux mounts the storage API and the command endpoint
func newMux(api *storage.Server, commands *command.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/api/", http.StripPrefix("/api", api.Handler()))
	mux.Handle("POST /api/command", api.RequireKey(commands))
	return mux
}

func (a *app) serve(ctx context.Context, addr string) error {
	log := logger.ForServer()

	services, err := initializeServices(ctx, a.cfg, need{navigator: true, store: true})
	if err != nil {
		return err
	}
	defer services.Cleanup()

	commands := command.NewHandler(command.Options{
		Navigator: services.Navigator,
		Blocker:   services.Blocker,
		Timing:    services.Timing,
	})
	defer commands.Close()

	server := &http.Server{
		Addr:              addr,
		Handler:           newMux(storage.NewServer(services.Store, a.cfg.RemoteAPIKey), commands),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Str("environment", a.cfg.Environment).Msg("Starting server")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		log.Info().Msg("Shutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}
