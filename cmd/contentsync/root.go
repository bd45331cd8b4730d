package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"contentsync/internal/contentsync"
)

var version = "dev"

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "contentsync",
		Short: "CMS content cache with sitemap and robots generation",
		Long: `contentsync fetches posts and pages from a headless CMS, caches them with
bounded freshness, clears the cache on CMS webhooks and serves sitemap.xml
and robots.txt derived from the cached content.`,
		Version:      version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), configPath)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", getenvDefault("CONTENTSYNC_CONFIG", "/contentsync.yaml"), "path to contentsync.yaml")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP service",
			RunE: func(cmd *cobra.Command, args []string) error {
				return serve(cmd.Context(), configPath)
			},
		},
		newSitemapCmd(&configPath),
		newRobotsCmd(&configPath),
		&cobra.Command{
			Use:   "version",
			Short: "Show version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "contentsync version: %s\n", version)
			},
		},
	)
	return root
}

func loadService(configPath string, oneShot bool) (*contentsync.Service, contentsync.Config, error) {
	cfg, err := contentsync.LoadConfig(configPath)
	if err != nil {
		return nil, contentsync.Config{}, fmt.Errorf("load config: %w", err)
	}
	newService := contentsync.NewService
	if oneShot {
		newService = contentsync.NewOneShot
	}
	svc, err := newService(cfg)
	if err != nil {
		return nil, contentsync.Config{}, fmt.Errorf("init service: %w", err)
	}
	return svc, cfg, nil
}

func serve(parent context.Context, configPath string) error {
	if parent == nil {
		parent = context.Background()
	}
	svc, cfg, err := loadService(configPath, false)
	if err != nil {
		return err
	}
	defer svc.Close()

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           svc.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("contentsync listening on %s, source=%s", addr, cfg.Source.Kind)
		err := srv.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("server error: %v", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
