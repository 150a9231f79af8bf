package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/prefs/internal/api"
	"github.com/kalambet/prefs/internal/backend"
	"github.com/kalambet/prefs/internal/config"
	"github.com/kalambet/prefs/internal/preferences"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the preferences HTTP API (and optionally MCP over stdio)",
	RunE: func(cmd *cobra.Command, args []string) error {
		withMCP, _ := cmd.Flags().GetBool("mcp")

		cfg, r, closeFn, err := openBackend()
		if err != nil {
			return err
		}
		defer func() {
			if err := closeFn(); err != nil {
				fmt.Fprintf(os.Stderr, "warning: closing backend: %v\n", err)
			}
		}()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return runServer(ctx, cfg, r, withMCP)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show backend and server status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.OutOrStdout())
	},
}

func init() {
	serveCmd.Flags().Bool("mcp", false, "also serve MCP tools on stdin/stdout")
}

func runServer(ctx context.Context, cfg config.Config, r backend.Resolver, withMCP bool) error {
	fmt.Fprintf(os.Stderr, "prefs version %s\n", version)
	setupLogging(cfg.Log.Level)

	def, err := cfg.DefaultStore()
	if err != nil {
		return err
	}
	// Resolve the default store up front so a bad shared group stops startup
	// instead of failing every request.
	if _, err := preferences.New(def, r); err != nil {
		return err
	}

	token, err := config.GetAPIToken(cfg, r)
	if err != nil {
		return fmt.Errorf("initializing API token: %w", err)
	}
	slog.Info("API bearer token available")

	stores := api.Stores{Resolver: r, Default: def}
	handler := api.NewAppHandler(api.AppDeps{Stores: stores, Token: token})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	if cfg.Server.MaxConns > 0 {
		ln = netutil.LimitListener(ln, cfg.Server.MaxConns)
	}

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("prefs listening", "addr", addr, "backend", cfg.Backend.Kind, "default_store", def.String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	if withMCP {
		g.Go(func() error {
			stdio := server.NewStdioServer(api.NewMCPServer(stores, version))
			slog.Info("MCP server started (stdio transport)")
			if err := stdio.Listen(gctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, io.EOF) {
				return fmt.Errorf("MCP stdio server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func showStatus(w io.Writer) error {
	cfg, r, closeFn, err := openBackend()
	if err != nil {
		printError(w, "config error: %v", err)
		return nil
	}
	defer closeFn()

	printStatus(w, "Backend", "%s (domain %s)", cfg.Backend.Kind, cfg.Backend.Domain)
	if dir := cfg.BackendOptions().Dir; dir != "" {
		printStatus(w, "Data dir", "%s", dir)
	}

	def, err := cfg.DefaultStore()
	if err != nil {
		printStatus(w, "Default store", "invalid: %v", err)
	} else if store, err := preferences.New(def, r); err != nil {
		printStatus(w, "Default store", "%s (unavailable: %v)", def, err)
	} else if keys, err := store.Keys(); err != nil {
		printStatus(w, "Default store", "%s (%v)", def, err)
	} else {
		printStatus(w, "Default store", "%s, %d keys", def, len(keys))
	}

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port))
	if err != nil {
		printStatus(w, "Server", "stopped")
		return nil
	}
	resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		printStatus(w, "Server", "running on port %d", cfg.Server.Port)
	} else {
		printStatus(w, "Server", "error (HTTP %d)", resp.StatusCode)
	}
	return nil
}
