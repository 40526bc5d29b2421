package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/frontage-io/frontage"
	"github.com/frontage-io/frontage/config"
	"github.com/frontage-io/frontage/geo"
	frontagehttp "github.com/frontage-io/frontage/http"
	"github.com/frontage-io/frontage/redirects"
	"github.com/frontage-io/frontage/s3"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  `Start the frontage HTTP server.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().Int("port", 5719, "HTTP server port")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	var configFiles []string
	if cf, _ := cmd.Flags().GetString("config"); cf != "" {
		configFiles = append(configFiles, cf)
	}

	cfg, err := config.Load(configFiles, cmd.Flags())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store, err := s3.New(ctx, s3.Config{
		Endpoint:        cfg.S3.Endpoint,
		Region:          cfg.S3.Region,
		AccessKeyID:     cfg.S3.AccessKeyID,
		SecretAccessKey: cfg.S3.SecretAccessKey,
	})
	if err != nil {
		return fmt.Errorf("create object store: %w", err)
	}

	locales, err := loadLocales(ctx, store, cfg)
	if err != nil {
		return fmt.Errorf("load locale table: %w", err)
	}

	subroutes, err := loadSubroutes(ctx, store, cfg)
	if err != nil {
		return fmt.Errorf("load subroute table: %w", err)
	}

	policy := frontage.SlashRewrite
	if cfg.Proxy.TrailingSlashRedirection {
		policy = frontage.SlashRedirect
	}

	registry := frontage.NewRegistry(store, frontage.RegistryConfig{
		Global: frontage.LayerConfig{
			Bucket:            cfg.Proxy.Bucket,
			Prefix:            cfg.Proxy.Prefix,
			Policy:            policy,
			TrailingSlashOnly: cfg.Proxy.TrailingSlashOnly,
			RedirectCode:      cfg.Proxy.RedirectCode,
			Patterns:          cfg.Proxy.Routes,
		},
		Locales:         locales,
		Subroutes:       subroutes,
		SwitchablePaths: cfg.Proxy.AutoSwitchPaths,
	}, slog.Default())
	slog.Info("layer registry ready",
		"locales", registry.Locales(), "subroutes", len(subroutes))

	var redirectTable *redirects.Table
	if cfg.Redirects.File != "" {
		data, err := os.ReadFile(cfg.Redirects.File)
		if err != nil {
			return fmt.Errorf("read redirect table: %w", err)
		}
		redirectTable, err = redirects.Parse(data, redirects.Options{
			DefaultStatus: cfg.Redirects.DefaultStatus,
			TrailingSlash: cfg.Redirects.TrailingSlash,
		}, slog.Default())
		if err != nil {
			return fmt.Errorf("parse redirect table: %w", err)
		}
		slog.Info("redirect table loaded",
			"file", cfg.Redirects.File, "entries", redirectTable.Len())
	}

	var geoService *geo.Service
	if cfg.Geography.Route != "" {
		geoService = geo.NewService(store, cfg.Proxy.Bucket, slog.Default())
	}

	handlerConfig := frontagehttp.HandlerConfig{
		CORS: cfg.CORS,
		Geography: frontagehttp.GeographyConfig{
			Route:                  cfg.Geography.Route,
			UseCountryCode:         cfg.Geography.UseCountryCode,
			IncludeAbsoluteClosest: cfg.Geography.IncludeAbsoluteClosest,
			BackwardsCompatible:    cfg.Geography.BackwardsCompatible,
		},
		LocaleSwitchCode: cfg.Proxy.LocaleSwitchCode,
		StripWWW:         cfg.Server.StripWWW,
	}

	handler := frontagehttp.NewHandler(&handlerConfig, registry, redirectTable, geoService, slog.Default())

	addr := fmt.Sprintf(":%d", cfg.Server.Port)

	server := &http.Server{
		Addr:         addr,
		Handler:      handler.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down server...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "err", err)
		}
		cancel()
	}()

	slog.Info("starting server", "addr", addr, "bucket", cfg.Proxy.Bucket)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// loadLocales merges the statically configured locale codes with the
// optional table object stored alongside the site content.
func loadLocales(ctx context.Context, store frontage.ObjectStore, cfg *config.Config) (frontage.LocaleTable, error) {
	table := frontage.LocaleTable{}
	for _, code := range cfg.Proxy.Locales {
		table[code] = struct{}{}
	}

	if cfg.Proxy.LocalesFile == "" {
		return table, nil
	}

	data, err := fetchObject(ctx, store, cfg.Proxy.Bucket, cfg.Proxy.LocalesFile)
	if err != nil {
		if errors.Is(err, frontage.ErrNotFound) {
			slog.Warn("locale table object missing", "key", cfg.Proxy.LocalesFile)
			return table, nil
		}
		return nil, err
	}

	fromStore, err := frontage.ParseLocaleTable(data)
	if err != nil {
		return nil, err
	}
	for code := range fromStore {
		table[code] = struct{}{}
	}
	return table, nil
}

// loadSubroutes merges the statically configured subroute entries with
// the optional table object in the store. Static entries win.
func loadSubroutes(ctx context.Context, store frontage.ObjectStore, cfg *config.Config) (frontage.SubrouteTable, error) {
	table := frontage.SubrouteTable{}

	if cfg.Proxy.SubroutesFile != "" {
		data, err := fetchObject(ctx, store, cfg.Proxy.Bucket, cfg.Proxy.SubroutesFile)
		switch {
		case errors.Is(err, frontage.ErrNotFound):
			slog.Warn("subroute table object missing", "key", cfg.Proxy.SubroutesFile)
		case err != nil:
			return nil, err
		default:
			table, err = frontage.ParseSubrouteTable(data)
			if err != nil {
				return nil, err
			}
		}
	}

	for pattern, bucket := range cfg.Proxy.Subroutes {
		table[pattern] = bucket
	}
	return table, nil
}

func fetchObject(ctx context.Context, store frontage.ObjectStore, bucket, key string) ([]byte, error) {
	obj, err := store.Get(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	defer func() { _ = obj.Body.Close() }()

	data, err := io.ReadAll(obj.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s/%s: %w", bucket, key, err)
	}
	return data, nil
}
