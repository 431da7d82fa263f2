// Package main is the entry point for cratedeck.
package main

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gin-gonic/gin"
	"github.com/spf13/afero"

	"github.com/CageChen/cratedeck/internal/app"
	"github.com/CageChen/cratedeck/internal/config"
	"github.com/CageChen/cratedeck/internal/exporter"
	"github.com/CageChen/cratedeck/internal/fetch"
	"github.com/CageChen/cratedeck/internal/handler"
	"github.com/CageChen/cratedeck/internal/markdown"
	"github.com/CageChen/cratedeck/internal/picker"
	"github.com/CageChen/cratedeck/internal/tui"
	"github.com/CageChen/cratedeck/internal/watcher"
)

//go:embed web/*
var webFS embed.FS

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.SaveRequested() {
		if err := cfg.Save(); err != nil {
			log.Printf("Warning: failed to save config: %v", err)
		} else {
			log.Printf("Config saved to %s", cfg.GetConfigFilePath())
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Mode == config.ModeWeb {
		runWeb(ctx, cfg)
		return
	}
	runTerminal(ctx, cfg)
}

func appOptions(cfg *config.Config) []app.Option {
	return []app.Option{
		app.WithPickPolicy(cfg.Policy()),
		app.WithFoldedFetchErrors(cfg.Fetch.FoldErrors),
	}
}

func runTerminal(ctx context.Context, cfg *config.Config) {
	// The program owns the terminal, so logs go to a file.
	logFile, err := tea.LogToFile(cfg.LogFile, "cratedeck ")
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	defer logFile.Close()

	logStartup(cfg)

	state := app.NewState()
	a := app.New(state, app.Services{
		Picker:   picker.ForSource(cfg.Source, cfg.GitRef, cfg.Exclude),
		Exporter: exporter.NewFile(afero.NewOsFs(), cfg.Export.Dir, cfg.Export.Name, cfg.ExportFormat()),
		Fetcher:  fetch.New(cfg.Fetch.Resource),
	}, appOptions(cfg)...)
	go func() { _ = a.Run(ctx) }()

	stopWatch := startWatcher(ctx, cfg, a)
	defer stopWatch()

	p := tea.NewProgram(tui.New(ctx, state, a, cfg.Highlight), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		log.Fatalf("Terminal UI failed: %v", err)
	}
}

func runWeb(ctx context.Context, cfg *config.Config) {
	logStartup(cfg)
	log.Printf("Server starting at: http://localhost:%d", cfg.Port)

	renderer := markdown.NewRenderer("monokai")
	state := app.NewState()

	var ws *handler.WSHandler
	upload := picker.NewUpload(func(id string) error { return ws.RequestPick(id) })
	downloads := exporter.NewDownload(cfg.Export.Name, cfg.ExportFormat(), func(url string) error {
		return ws.NotifyDownload(url)
	})
	pick := &picker.Probing{
		Capability: "browser-upload",
		Probe:      func() bool { return ws.ClientCount() > 0 },
		Preferred:  upload,
		Fallback:   picker.ForSource(cfg.Source, cfg.GitRef, cfg.Exclude),
	}

	a := app.New(state, app.Services{
		Picker:   pick,
		Exporter: downloads,
		Fetcher:  fetch.New(cfg.Fetch.Resource),
	}, appOptions(cfg)...)
	go func() { _ = a.Run(ctx) }()

	ws = handler.NewWSHandler(state, a, renderer)
	uploads := handler.NewUploadHandler(upload, downloads)
	ws.OnPickCancel(uploads.CancelPick)
	ws.OnLastClientGone(uploads.CancelWaiting)
	go ws.Run(ctx, tui.TickInterval)

	stopWatch := startWatcher(ctx, cfg, a)
	defer stopWatch()

	webContent, err := fs.Sub(webFS, "web")
	if err != nil {
		log.Fatalf("Failed to load web assets: %v", err)
	}

	gin.SetMode(gin.ReleaseMode)
	h := handler.Handlers{
		Tree:   handler.NewTreeHandler(state),
		File:   handler.NewFileHandler(state, renderer),
		WS:     ws,
		Upload: uploads,
		Web:    webContent,
	}
	if assetDir := localAssetDir(cfg.Fetch.Resource); assetDir != "" {
		h.Assets = http.Dir(assetDir)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: handler.NewRouter(h),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if cfg.Open {
		go openBrowser(fmt.Sprintf("http://localhost:%d", cfg.Port))
	}

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server failed: %v", err)
	}
}

func logStartup(cfg *config.Config) {
	log.Printf("cratedeck - %s mode", cfg.Mode)
	log.Printf("Config file: %s", cfg.GetConfigFilePath())
	if cfg.GitRef != "" {
		log.Printf("Source: %s (git ref: %s)", cfg.Source, cfg.GitRef)
	} else {
		log.Printf("Source: %s", cfg.Source)
	}
}

// startWatcher flags the mounted source as changed on disk. Git refs are read
// from the object database and are not watched.
func startWatcher(ctx context.Context, cfg *config.Config, a *app.App) func() {
	if !cfg.Watch || cfg.GitRef != "" {
		return func() {}
	}
	w, err := watcher.New(cfg.Source, cfg.Exclude)
	if err != nil {
		log.Printf("Warning: failed to create file watcher: %v", err)
		return func() {}
	}
	w.OnChange(func(e watcher.Event) {
		log.Printf("Source %s: %s", e.Type, e.Path)
		_ = a.MarkSourceChanged(ctx)
	})
	if err := w.Start(); err != nil {
		log.Printf("Warning: failed to start file watcher: %v", err)
		_ = w.Stop()
		return func() {}
	}
	log.Printf("File watcher enabled")
	return func() { _ = w.Stop() }
}

// localAssetDir returns the directory holding a file resource, served under /assets/.
func localAssetDir(resource string) string {
	if strings.HasPrefix(resource, "http://") || strings.HasPrefix(resource, "https://") {
		return ""
	}
	if resource == "" {
		resource = fetch.DefaultResource
	}
	dir := filepath.Dir(resource)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return ""
	}
	return dir
}

func openBrowser(url string) {
	var cmd string
	var args []string

	switch runtime.GOOS {
	case "windows":
		cmd = "rundll32"
		args = []string{"url.dll,FileProtocolHandler", url}
	case "darwin":
		cmd = "open"
		args = []string{url}
	default: // linux, etc.
		cmd = "xdg-open"
		args = []string{url}
	}

	_ = exec.Command(cmd, args...).Start()
}
