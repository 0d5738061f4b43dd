package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"git.home.luguber.info/inful/novos/internal/build"
	"git.home.luguber.info/inful/novos/internal/config"
	"git.home.luguber.info/inful/novos/internal/content"
	"git.home.luguber.info/inful/novos/internal/graph"
	"git.home.luguber.info/inful/novos/internal/nverr"
	"git.home.luguber.info/inful/novos/internal/render"
	"git.home.luguber.info/inful/novos/internal/serve"
	"git.home.luguber.info/inful/novos/internal/version"
)

var CLI struct {
	Dir     string `short:"C" help:"Site root directory" default:"."`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Build struct {
		Clean bool `help:"Remove the output directory before building"`
	} `cmd:"" help:"Build the site once and exit"`

	Serve struct {
		Port int `short:"p" help:"Override the configured port"`
	} `cmd:"" help:"Build the site and serve it with live reload"`

	Init struct {
		Force bool `help:"Overwrite existing files"`
	} `cmd:"" help:"Scaffold a new site in the target directory"`

	Version struct{} `cmd:"" help:"Print the novos version"`
}

func main() {
	_ = godotenv.Load()
	ctx := kong.Parse(&CLI)

	logLevel := slog.LevelInfo
	if CLI.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	switch ctx.Command() {
	case "build":
		cfg, err := loadConfig()
		if err != nil {
			fail(logger, err)
		}
		os.Exit(runBuild(logger, cfg))

	case "serve":
		cfg, err := loadConfig()
		if err != nil {
			fail(logger, err)
		}
		if CLI.Serve.Port > 0 {
			cfg.Serve.Port = CLI.Serve.Port
		}
		sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		if err := serve.Run(sigCtx, CLI.Dir, cfg, logger); err != nil {
			fail(logger, err)
		}

	case "init":
		if err := config.Init(CLI.Dir, CLI.Init.Force); err != nil {
			fail(logger, err)
		}
		logger.Info("site scaffolded", "dir", CLI.Dir)

	case "version":
		fmt.Println("novos " + version.String())

	default:
		logger.Error("unknown command", "command", ctx.Command())
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	path := filepath.Join(CLI.Dir, "novos.toml")
	if _, err := os.Stat(path); err != nil {
		return nil, nverr.ConfigNotFound(path)
	}
	return config.Load(path)
}

func runBuild(logger *slog.Logger, cfg *config.Config) int {
	loader := content.NewLoader(CLI.Dir, cfg)
	set, errs := loader.Scan()
	for _, err := range errs {
		logger.Warn("scan", "error", err)
	}

	g := graph.Link(set, cfg)
	pipeline := render.NewPipeline(cfg, set)
	if err := pipeline.Refresh(); err != nil {
		logger.Error("template setup failed", "error", err)
		return 1
	}

	runner := &build.Runner{
		Graph:    g,
		Cache:    build.NewCache(),
		Renderer: pipeline,
		Writer:   build.NewWriter(filepath.Join(CLI.Dir, cfg.OutputDir)),
		Workers:  cfg.Build.Workers,
		Logger:   logger,
	}

	report, err := runner.FullBuild(context.Background(), CLI.Build.Clean || cfg.Build.CleanOutput)
	if err != nil {
		logger.Error("build failed", "error", err)
		return 1
	}
	report.LogSummary(logger)
	return report.ExitCode()
}

func fail(logger *slog.Logger, err error) {
	logger.Error("command failed", "error", err)
	os.Exit(1)
}
