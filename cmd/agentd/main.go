// Command agentd runs the chat proxy service.
//
//	agentd init   seeds the data folder with a default providers.json
//	agentd run    starts the HTTP server
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

	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/shaharia-lab/agentd"
	"github.com/shaharia-lab/agentd/observability"
	"github.com/shaharia-lab/agentd/server"
)

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: agentd [init] [run]")
		os.Exit(2)
	}

	cfg, err := agentd.LoadConfigFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogFormat)

	if contains(args, "init") {
		path, err := agentd.WriteDefaultProvidersConfig(cfg.DataDir)
		if err != nil {
			logger.WithErr(err).Error("failed to initialize data folder")
			os.Exit(1)
		}
		logger.Infof("providers config ready at %s", path)
	}

	if contains(args, "run") {
		if err := run(cfg, logger); err != nil {
			logger.WithErr(err).Error("server exited with error")
			os.Exit(1)
		}
	}
}

func run(cfg agentd.Config, logger observability.Logger) error {
	providers, err := agentd.LoadProvidersConfig(cfg.ProvidersFile())
	if err != nil {
		return fmt.Errorf("run 'agentd init' first: %w", err)
	}

	engineName, providerCfg, err := providers.DefaultProvider()
	if err != nil {
		return err
	}

	provider, err := agentd.NewLLMProvider(providerCfg)
	if err != nil {
		return err
	}

	tools := agentd.NewToolManager(logger)
	if cfg.EnableShell {
		tools.Register(agentd.NewShellTool(cfg.ShellAllowList))
	}
	tools.Register(agentd.NewFileSystemTool())
	tools.Register(agentd.NewWebSearchTool())

	sessions, err := newSessionStorage(cfg, logger)
	if err != nil {
		return err
	}

	chat := agentd.NewChat(provider, tools, sessions, logger,
		agentd.WithProviderTimeout(cfg.ProviderTimeout))

	engine := providerCfg.Engine
	if engine == "" {
		engine = agentd.EngineOllama
	}

	srv := server.New(server.Config{
		Engine:    engine,
		StaticDir: cfg.StaticDir,
	}, chat, tools, sessions, provider, logger)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: srv,
	}

	logger.WithFields(map[string]interface{}{
		"port":     cfg.Port,
		"provider": engineName,
		"model":    provider.ModelName(),
		"storage":  cfg.Storage,
	}).Info("starting agentd")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func newSessionStorage(cfg agentd.Config, logger observability.Logger) (agentd.SessionStorage, error) {
	switch cfg.Storage {
	case "sqlite":
		return agentd.OpenSQLiteSessionStorage(cfg.DataDir+"/sessions.db", logger)
	default:
		return agentd.NewFileSessionStorage(cfg.SessionsDir, logger)
	}
}

func newLogger(format string) observability.Logger {
	if format == "json" {
		zapLogger, err := zap.NewProduction()
		if err == nil {
			return observability.NewZapLogger(zapLogger)
		}
	}

	logrusLogger := logrus.New()
	logrusLogger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return observability.NewLogrusLogger(logrusLogger)
}

func contains(args []string, want string) bool {
	for _, arg := range args {
		if arg == want {
			return true
		}
	}
	return false
}
