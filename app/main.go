package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"

	"github.com/solacedev/component-docs-mcp/app/server"
)

var revision = "unknown"

// Options defines command line options
type Options struct {
	Token          string        `long:"token" env:"GITHUB_TOKEN" description:"github personal access token"`
	APIURL         string        `long:"api-url" env:"GITHUB_API_URL" default:"https://api.github.com" description:"github api base url"`
	APIVersion     string        `long:"api-version" env:"GITHUB_API_VERSION" default:"2022-11-28" description:"github api version header"`
	Timeout        time.Duration `long:"timeout" env:"TIMEOUT" default:"30s" description:"deadline for a single github request"`
	Org            string        `long:"org" env:"DOCS_ORG" default:"SolaceDev" description:"owner of the docs repository"`
	Repo           string        `long:"repo" env:"DOCS_REPO" default:"maas-react-components" description:"docs repository name"`
	DocsRoot       string        `long:"docs-root" env:"DOCS_ROOT" default:"storybook/src/stories" description:"repository path with one directory per category"`
	DocsRef        string        `long:"ref" env:"DOCS_REF" default:"main" description:"default branch, tag or commit of the docs"`
	UsageRoot      string        `long:"usage-root" env:"USAGE_ROOT" default:"mfe-usage" description:"repository path with usage data per application"`
	UsageRef       string        `long:"usage-ref" env:"USAGE_REF" default:"usage-data" description:"branch holding usage data"`
	ReportRoot     string        `long:"report-root" env:"REPORT_ROOT" default:"reports" description:"local usage report directory"`
	MaxConcurrency int           `long:"max-concurrency" env:"MAX_CONCURRENCY" default:"8" description:"max parallel github requests per call"`
	EnableCache    bool          `long:"enable-cache" env:"ENABLE_CACHE" description:"cache directory listings and local report reads"`
	CacheTTL       time.Duration `long:"cache-ttl" env:"CACHE_TTL" default:"5m" description:"cache TTL (time-to-live)"`
	EnvFile        string        `long:"env-file" env:"ENV_FILE" default:".env" description:"dotenv file to load before parsing options"`
	Debug          bool          `long:"dbg" env:"DEBUG" description:"enable debug logging"`
}

func main() {
	loadEnvFile(os.Args[1:])

	var opts Options
	if _, err := flags.Parse(&opts); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "failed to parse flags: %v\n", err)
		os.Exit(1)
	}

	// setup logging with text handler, stdout is owned by the stdio transport
	level := slog.LevelInfo
	if opts.Debug {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))

	slog.Info("starting component-docs MCP server", "version", revision)
	if opts.Token == "" {
		slog.Warn("github token is not set, remote tools will fail with authorization errors")
	}

	// use embedded function to properly handle defer before os.Exit
	os.Exit(func() int {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer cancel()

		if err := run(ctx, opts); err != nil {
			slog.Error("fatal error", "error", err)
			return 1
		}
		return 0
	}())
}

func run(ctx context.Context, opts Options) error {
	reportRoot, err := expandTilde(opts.ReportRoot)
	if err != nil {
		return err
	}

	// report root is relative to cwd
	if !filepath.IsAbs(reportRoot) {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get current directory: %w", err)
		}
		reportRoot = filepath.Join(cwd, reportRoot)
	}

	config := server.Config{
		Token:          opts.Token,
		APIURL:         opts.APIURL,
		APIVersion:     opts.APIVersion,
		Timeout:        opts.Timeout,
		Org:            opts.Org,
		Repo:           opts.Repo,
		DocsRoot:       opts.DocsRoot,
		DocsRef:        opts.DocsRef,
		UsageRoot:      opts.UsageRoot,
		UsageRef:       opts.UsageRef,
		ReportRoot:     reportRoot,
		MaxConcurrency: opts.MaxConcurrency,
		ServerName:     "component-docs",
		Version:        revision,
		EnableCache:    opts.EnableCache,
		CacheTTL:       opts.CacheTTL,
	}

	srv, err := server.New(config)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

// loadEnvFile loads the dotenv file named by --env-file (or ENV_FILE, or .env).
// Variables already set in the environment win. A missing file is not an error.
func loadEnvFile(args []string) {
	path := os.Getenv("ENV_FILE")
	if path == "" {
		path = ".env"
	}
	for i, arg := range args {
		if v, ok := strings.CutPrefix(arg, "--env-file="); ok {
			path = v
		} else if arg == "--env-file" && i+1 < len(args) {
			path = args[i+1]
		}
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to load %s: %v\n", path, err)
	}
}

// expandTilde expands ~ prefix in path to user home directory
func expandTilde(path string) (string, error) {
	if !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, path[2:]), nil
}
