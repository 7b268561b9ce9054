package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/arashi-labs/solveorch/internal/chatmanager"
	appconfig "github.com/arashi-labs/solveorch/internal/config"
	"github.com/arashi-labs/solveorch/internal/containerselector"
	"github.com/arashi-labs/solveorch/internal/executor"
	"github.com/arashi-labs/solveorch/internal/iolog"
	"github.com/arashi-labs/solveorch/internal/profilelock"
	"github.com/arashi-labs/solveorch/internal/profilemanager"
	"github.com/arashi-labs/solveorch/internal/promptregistry"
	"github.com/arashi-labs/solveorch/internal/reports"
	"github.com/arashi-labs/solveorch/internal/statuscache"
	"github.com/arashi-labs/solveorch/internal/store"
	"github.com/arashi-labs/solveorch/internal/upstream"
	"github.com/arashi-labs/solveorch/internal/web"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "solveorch",
		Short: "Multi-container analyze/solve orchestrator",
		RunE:  run,
	}

	f := rootCmd.Flags()
	f.String("config", "", "path to the YAML config file (or set CONFIG_PATH)")
	f.String("addr", ":8080", "HTTP listen address")

	_ = viper.BindPFlag("config_path", f.Lookup("config"))
	_ = viper.BindPFlag("addr", f.Lookup("addr"))

	viper.SetEnvPrefix("ORCH")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	// CONFIG_PATH has no ORCH_ prefix per spec §6; bind it directly.
	_ = viper.BindEnv("config_path", "CONFIG_PATH")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupLogger() {
	level := slog.LevelInfo
	if v := os.Getenv("ORCH_LOG_LEVEL"); v != "" {
		_ = level.UnmarshalText([]byte(v))
	}
	var handler slog.Handler
	if isatty.IsTerminal(os.Stdout.Fd()) {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(handler))
}

func run(cmd *cobra.Command, args []string) error {
	setupLogger()

	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	configPath := viper.GetString("config_path")
	cfg, err := appconfig.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	slog.Info("solveorch starting",
		"containers", len(cfg.Containers), "profiles", len(cfg.Profiles),
		"prompts", len(cfg.Prompts), "sqlite_path", cfg.SQLitePath)

	st, err := store.Open(cfg.SQLitePath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close() //nolint:errcheck

	if err := seedStore(st, cfg); err != nil {
		return fmt.Errorf("seed store: %w", err)
	}

	sink, err := buildIOLogSink(cfg)
	if err != nil {
		return fmt.Errorf("build io log sink: %w", err)
	}

	pool := upstream.NewPool()
	rootURLs := make(map[string]string, len(cfg.Containers))
	for _, c := range cfg.Containers {
		client := upstream.NewClient(upstream.ClientConfig{
			ContainerID:    c.ID,
			BaseURL:        c.BaseURL,
			ConnectTimeout: time.Duration(c.Timeouts.ConnectSeconds) * time.Second,
			ReadTimeout:    time.Duration(c.Timeouts.ReadSeconds) * time.Second,
			AnalyzeRetries: c.AnalyzeRetries,
		}, sink)
		pool.Register(c.ID, client)
		if !c.Enabled {
			pool.Disable(c.ID)
		}
		rootURLs[c.ID] = c.BaseURL
	}

	prompts := promptregistry.New(cfg.Dir, toPromptSpecs(cfg.Prompts))

	exec := executor.New(executor.Config{
		Store:              st,
		Pool:               pool,
		ProfileLock:        profilelock.New(),
		Profiles:           profilemanager.New(st),
		Prompts:            prompts,
		Selector:           containerselector.New(pool, st),
		Chats:              chatmanager.New(st),
		AllowSocksOverride: cfg.AllowSocksOverride,
		ContainerRootURLs:  rootURLs,
	})

	statuses := statuscache.New(st, pool, 10*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := statuses.Run(ctx); err != nil {
			slog.Error("status cache stopped", "error", err)
		}
	}()

	srv := web.New(web.Config{
		Addr:     viper.GetString("addr"),
		Executor: exec,
		Store:    st,
		Pool:     pool,
		Statuses: statuses,
		Reports:  reports.New(st.Conn()),
	})

	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("web server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigCh
	slog.Info("received signal, shutting down", "signal", sig.String())
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("web server shutdown", "error", err)
	}
	return nil
}

// seedStore upserts the config's socks and profile entries into the durable
// store, so the socks/profile catalog always reflects the YAML
// file on process start regardless of what a previous run left behind.
func seedStore(st *store.Store, cfg *appconfig.Config) error {
	now := time.Now().UTC().Format(time.RFC3339)
	for _, sx := range cfg.Socks {
		if err := st.UpsertSocks(&store.Socks{SocksID: sx.SocksID, URL: sx.URL, CreatedAt: now, UpdatedAt: now}); err != nil {
			return fmt.Errorf("seed socks %q: %w", sx.SocksID, err)
		}
	}
	for _, p := range cfg.Profiles {
		var socksID *string
		if p.SocksID != "" {
			v := p.SocksID
			socksID = &v
		}
		if err := st.UpsertProfile(&store.Profile{
			ProfileID:         p.ProfileID,
			ProfileValue:      p.ProfileValue,
			DefaultSocksID:    socksID,
			AllowedContainers: p.AllowedContainers,
			MaxUses:           p.MaxUses,
			PendingReplace:    p.PendingReplace,
			CreatedAt:         now,
			UpdatedAt:         now,
		}); err != nil {
			return fmt.Errorf("seed profile %q: %w", p.ProfileID, err)
		}
	}
	return nil
}

func buildIOLogSink(cfg *appconfig.Config) (iolog.Sink, error) {
	if !cfg.ContainerIOLog.Enabled {
		return iolog.NopSink{}, nil
	}
	return iolog.NewRotatingFileSink(iolog.Config{
		Dir:           cfg.ContainerIOLog.Dir,
		MaxBytes:      cfg.ContainerIOLog.MaxBytes,
		BackupCount:   cfg.ContainerIOLog.BackupCount,
		IncludeBodies: cfg.ContainerIOLog.IncludeBodies,
		MaxFieldChars: cfg.ContainerIOLog.MaxFieldChars,
	})
}

func toPromptSpecs(prompts []appconfig.Prompt) []promptregistry.PromptSpec {
	specs := make([]promptregistry.PromptSpec, 0, len(prompts))
	for _, p := range prompts {
		specs = append(specs, promptregistry.PromptSpec{
			PromptID:           p.PromptID,
			File:               p.File,
			DefaultMaxChatUses: p.DefaultMaxChatUses,
		})
	}
	return specs
}
