package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/shongeorg/posts-api/internal/api"
	"github.com/shongeorg/posts-api/internal/config"
	"github.com/shongeorg/posts-api/internal/database"
	"github.com/shongeorg/posts-api/internal/logs"
)

var (
	addr    string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:           "postsvc",
	Short:         "HTTP/JSON CRUD service over the Post table",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server (default)",
	RunE:  runServe,
}

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Connect to Postgres and check it answers",
	RunE:  runPing,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&addr, "addr", "", "Listen address (defaults to :$PORT)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log every SQL statement")
	rootCmd.AddCommand(serveCmd, pingCmd)
}

func main() {
	_ = godotenv.Load()
	if err := rootCmd.Execute(); err != nil {
		logs.Fatal("postsvc failed", err)
	}
}

func loadConfig() (*config.Config, error) {
	cfg := config.LoadConfig()
	if verbose {
		cfg.DBLog = "info"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	container, err := api.NewContainer(ctx, cfg)
	if err != nil {
		return err
	}
	defer container.Close()

	gin.SetMode(gin.ReleaseMode)
	listen := addr
	if listen == "" {
		listen = ":" + cfg.Port
	}
	srv := &http.Server{
		Addr:              listen,
		Handler:           api.NewRouter(container),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logs.LogJSON("INFO", "Server listening", map[string]interface{}{"addr": listen})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logs.LogJSON("INFO", "Shutting down", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runPing(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := database.Connect(cfg.DSN(), cfg.DBLog)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()
	if err := database.Ping(ctx, db); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "ok")
	return nil
}
