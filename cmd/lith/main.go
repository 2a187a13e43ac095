// Command lith is the monolithic Norg static site generator.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"github.com/norgolith/lith/internal/config"
	"github.com/norgolith/lith/internal/lerrors"
	"github.com/norgolith/lith/internal/metrics"
	"github.com/norgolith/lith/internal/pipeline"
	"github.com/norgolith/lith/internal/publish"
	"github.com/norgolith/lith/internal/scaffold"
	"github.com/norgolith/lith/internal/server"
	"github.com/norgolith/lith/internal/site"
	"github.com/norgolith/lith/internal/theme"
	"github.com/norgolith/lith/internal/watcher"
)

// Exit codes: 0 success, 1 user error, 2 build failure, 130 interrupted.
const (
	exitOK          = 0
	exitUserError   = 1
	exitBuildError  = 2
	exitInterrupted = 130
)

var CLI struct {
	Init struct {
		Name  string `arg:"" help:"Site name"`
		Force bool   `help:"Overwrite an existing directory"`
	} `cmd:"" help:"Initialize a new Norgolith site"`

	Serve struct {
		Port     int           `short:"p" default:"3030" help:"Port to listen on"`
		Host     bool          `help:"Expose the server on all interfaces"`
		Drafts   bool          `help:"Serve draft content"`
		Debounce time.Duration `default:"250ms" help:"Filesystem event quiescence window"`
	} `cmd:"" help:"Build the site for development and serve it with live reload"`

	Build struct {
		Minify    bool `help:"Minify HTML, CSS and JS output"`
		KeepGoing bool `help:"Continue past per-file build failures"`
		Drafts    bool `help:"Include draft content"`
	} `cmd:"" help:"Build the site for production into public/"`

	New struct {
		Kind string `short:"k" default:"content" enum:"content,post,css,js" help:"Asset kind"`
		Name string `arg:"" help:"File name, optionally with subdirectories"`
	} `cmd:"" help:"Create a new content document or asset"`

	Theme struct {
		Pull struct {
			Repo    string `arg:"" help:"Repository shorthand (e.g. user/repo or github:user/repo)"`
			Version string `arg:"" optional:"" help:"Theme version (defaults to the latest release)"`
			Pin     bool   `help:"Pin to the current major version"`
		} `cmd:"" help:"Install a theme from a repository"`
		Update struct{} `cmd:"" help:"Update the installed theme"`
		Info   struct{} `cmd:"" help:"Show installed theme information"`
	} `cmd:"" help:"Manage the site theme"`
}

func main() {
	os.Exit(run())
}

func run() int {
	ctx := kong.Parse(&CLI,
		kong.Name("lith"),
		kong.Description("The monolithic Norg static site generator"))

	setupLogging()

	switch ctx.Command() {
	case "init <name>":
		if err := scaffold.Init(CLI.Init.Name, CLI.Init.Force); err != nil {
			slog.Error("Init failed", "error", err)
			return exitUserError
		}
		fmt.Printf("Your new Norgolith site was created in %s\n", CLI.Init.Name)
		return exitOK

	case "serve":
		return runServe()

	case "build":
		return runBuild()

	case "new <name>":
		root, err := findRoot()
		if err != nil {
			slog.Error("Not in a Norgolith site directory", "error", err)
			return exitUserError
		}
		path, err := scaffold.New(root, CLI.New.Kind, CLI.New.Name)
		if err != nil {
			slog.Error("Could not create asset", "error", err)
			return exitUserError
		}
		fmt.Printf("Created %s\n", path)
		return exitOK

	case "theme pull <repo>", "theme pull <repo> <version>":
		root, err := findRoot()
		if err != nil {
			slog.Error("Not in a Norgolith site directory", "error", err)
			return exitUserError
		}
		if err := theme.Pull(root, CLI.Theme.Pull.Repo, CLI.Theme.Pull.Version, CLI.Theme.Pull.Pin); err != nil {
			slog.Error("Theme pull failed", "error", err)
			return exitUserError
		}
		return exitOK

	case "theme update":
		root, err := findRoot()
		if err != nil {
			slog.Error("Not in a Norgolith site directory", "error", err)
			return exitUserError
		}
		if err := theme.Update(root); err != nil {
			slog.Error("Theme update failed", "error", err)
			return exitUserError
		}
		return exitOK

	case "theme info":
		root, err := findRoot()
		if err != nil {
			slog.Error("Not in a Norgolith site directory", "error", err)
			return exitUserError
		}
		meta, err := theme.Info(root)
		if err != nil {
			slog.Error("No theme information", "error", err)
			return exitUserError
		}
		fmt.Println(meta)
		return exitOK

	default:
		return exitUserError
	}
}

// setupLogging configures slog from LITH_LOG
// (error|warn|info|debug|trace; trace maps to debug).
func setupLogging() {
	level := slog.LevelInfo
	switch os.Getenv("LITH_LOG") {
	case "error":
		level = slog.LevelError
	case "warn":
		level = slog.LevelWarn
	case "info", "":
	case "debug", "trace":
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// findRoot locates the site root and loads its .env, if any.
func findRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	root, err := config.FindRoot(cwd)
	if err != nil {
		return "", err
	}
	_ = godotenv.Load(filepath.Join(root, ".env"))
	return root, nil
}

func runServe() int {
	root, err := findRoot()
	if err != nil {
		slog.Error("Could not initialize the development server", "error", err)
		return exitUserError
	}
	cfg, err := config.Load(filepath.Join(root, config.ConfigFileName))
	if err != nil {
		slog.Error("Failed to load site configuration", "error", err)
		return exitUserError
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rec := metrics.NewRecorder()
	hub := server.NewHub(rec)
	opts := pipeline.Options{Drafts: CLI.Serve.Drafts, Debounce: CLI.Serve.Debounce}

	start := time.Now()
	p, err := pipeline.New(root, cfg, opts, hub, rec)
	if err != nil {
		slog.Error("Initial build failed", "error", err)
		return exitBuildError
	}

	w, err := watcher.New(p.WatchRoots(), opts.Debounce)
	if err != nil {
		slog.Error("Could not start the file watcher", "error", err)
		return exitBuildError
	}

	host := "127.0.0.1"
	if CLI.Serve.Host {
		host = "0.0.0.0"
	}
	addr := net.JoinHostPort(host, fmt.Sprint(CLI.Serve.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		slog.Error("Could not bind server address", "addr", addr, "error", err)
		return exitUserError
	}

	srv := server.New(func() *site.Snapshot { return p.Model().Snapshot() }, hub, rec)

	buildErr := make(chan error, 1)
	go func() { buildErr <- p.Run(ctx, w) }()

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Start(ln) }()

	fmt.Printf("Server started in %s\n%s Local: http://localhost:%d/\n",
		elapsed(start), bullet(), CLI.Serve.Port)

	interrupted := false
	select {
	case <-ctx.Done():
		interrupted = true
		slog.Info("Shutting down development server...")
	case err := <-buildErr:
		if err != nil {
			slog.Error("Watcher failed", "error", err)
			_ = srv.Shutdown(context.Background())
			return exitBuildError
		}
	case err := <-serveErr:
		if err != nil {
			slog.Error("Server error", "error", err)
			return exitBuildError
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("Server shutdown error", "error", err)
	}
	if interrupted {
		return exitInterrupted
	}
	return exitOK
}

func runBuild() int {
	root, err := findRoot()
	if err != nil {
		slog.Error("Could not build the site", "error", err)
		return exitUserError
	}
	cfg, err := config.Load(filepath.Join(root, config.ConfigFileName))
	if err != nil {
		slog.Error("Failed to load site configuration", "error", err)
		return exitUserError
	}
	buildOpts := publish.Options{
		Minify:    CLI.Build.Minify,
		KeepGoing: CLI.Build.KeepGoing,
		Drafts:    CLI.Build.Drafts,
	}
	if err := publish.Build(root, cfg, buildOpts); err != nil {
		if lerrors.IsKind(err, lerrors.KindConfig) {
			slog.Error("Build failed", "error", err)
			return exitUserError
		}
		slog.Error("Build failed", "error", err)
		return exitBuildError
	}
	return exitOK
}

func elapsed(start time.Time) string {
	d := time.Since(start)
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

// bullet is a colored list marker unless NO_COLOR is set.
func bullet() string {
	if os.Getenv("NO_COLOR") != "" {
		return "*"
	}
	return "\x1b[32m•\x1b[0m"
}
