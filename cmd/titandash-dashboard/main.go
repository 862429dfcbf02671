// Titandash dashboard client.
// Connects to a bot backend over MCP, keeps the dashboard view model live from
// its push events and serves it over HTTP and WebSocket.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jaakkos/titandash/internal/bridge"
	"github.com/jaakkos/titandash/internal/config"
	"github.com/jaakkos/titandash/internal/dashboard"
	"github.com/jaakkos/titandash/internal/dispatch"
	"github.com/jaakkos/titandash/internal/panel"
	"github.com/jaakkos/titandash/internal/repository"
	"github.com/jaakkos/titandash/internal/session"
)

// Version is set by -ldflags at build time.
var Version = "dev"

const pruneInterval = time.Hour

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "alerts":
			runAlertsCommand()
			return
		case "--version", "-v", "version":
			fmt.Println("titandash-dashboard " + Version)
			return
		}
	}

	tmpLogger := log.New(os.Stderr, "[titandash] ", log.LstdFlags|log.Lshortfile)
	cfgPath, cfg := loadConfig(tmpLogger)
	settings := config.New(cfg)

	logger := setupLogger(settings.LogFile())
	logger.Println("Starting titandash dashboard...")
	logger.Printf("Log file: %s", settings.LogFile())
	logger.Printf("Backend: %s (%s)", settings.BackendURL(), settings.Transport())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	// Alert history and persisted selection. The dashboard runs without them
	// when the database cannot be opened.
	var store session.AlertStore
	repo, err := repository.NewAlertRepository(settings.StateFile())
	if err != nil {
		logger.Printf("Warning: alert store unavailable: %v (history disabled)", err)
	} else {
		store = repo
		go runPruner(ctx, repo, settings, logger)
	}

	dialCtx, dialCancel := context.WithTimeout(ctx, 30*time.Second)
	backend, err := bridge.Dial(dialCtx, bridge.Options{
		URL:           settings.BackendURL(),
		Transport:     settings.Transport(),
		Headers:       settings.Headers(),
		Timeout:       settings.RequestTimeout(),
		ClientName:    "titandash-dashboard",
		ClientVersion: Version,
		Logger:        logger,
	})
	dialCancel()
	if err != nil {
		logger.Fatalf("Backend: %v", err)
	}

	sess := session.New(session.Options{
		Backend:          backend,
		Store:            store,
		Logger:           logger,
		Timers:           panel.TimerOptions{DisablePadding: settings.DisablePadding()},
		ToastTimeout:     settings.ToastTimeout(),
		MaxLogRecords:    settings.MaxLogRecords(),
		TailLogs:         settings.TailLogs(),
		TailPollInterval: settings.TailPollInterval(),
	})

	dispatchEvent := func(ev dispatch.Event) {
		if !sess.Dispatch(ev) {
			logger.Printf("Dropped %s event: session closed", ev.Kind)
		}
	}

	var push *bridge.PushListener
	if settings.Transport() == config.TransportWebSocket {
		minDelay, maxDelay := settings.ReconnectDelays()
		push = bridge.NewPushListener(settings.PushURL(), settings.Headers(), dispatchEvent, logger,
			bridge.WithReconnectDelays(minDelay, maxDelay))
		push.Start()
	} else {
		backend.OnEvent(dispatchEvent)
	}

	if err := sess.Init(ctx); err != nil {
		logger.Fatalf("Session init: %v", err)
	}

	if cfgPath != "" {
		err := settings.Watch(ctx, cfgPath, logger, func(s *config.Settings) {
			sess.SetLimits(s.MaxLogRecords(), s.ToastTimeout())
			logger.Printf("Config reloaded from %s", cfgPath)
		})
		if err != nil {
			logger.Printf("Warning: config hot reload disabled: %v", err)
		}
	}

	hub := dashboard.NewHub(sess, logger, 0)
	sess.Observe(hub.Publish)
	sess.ObserveStructure(hub.Invalidate)
	hub.Start()

	dashOpts := []dashboard.HandlerOption{dashboard.WithHub(hub)}
	if repo != nil {
		dashOpts = append(dashOpts, dashboard.WithAlertHistory(repo))
	}
	if push != nil {
		dashOpts = append(dashOpts, dashboard.WithPushStatus(push.Status))
	}
	httpShutdown := startHTTPServer(settings.HTTPPort(), dashboard.NewHandler(sess, logger, dashOpts...), logger)

	<-ctx.Done()

	httpShutdown()
	hub.Close()
	if push != nil {
		push.Stop()
	}
	sess.Close()
	if err := backend.Close(); err != nil {
		logger.Printf("Warning: close backend: %v", err)
	}
	if repo != nil {
		if err := repo.Close(); err != nil {
			logger.Printf("Warning: close alert store: %v", err)
		}
	}

	logger.Println("Dashboard stopped")
}

// startHTTPServer serves the dashboard in the background and returns a
// shutdown function. Port 0 picks a free port.
func startHTTPServer(port int, dash *dashboard.Handler, logger *log.Logger) func() {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		logger.Fatalf("HTTP listen: %v", err)
	}
	actualPort := ln.Addr().(*net.TCPAddr).Port
	baseURL := fmt.Sprintf("http://localhost:%d", actualPort)

	logger.Printf("HTTP server on :%d", actualPort)
	logger.Printf("  State:      %s/api/state", baseURL)
	logger.Printf("  Live feed:  ws://localhost:%d/ws", actualPort)

	mux := http.NewServeMux()
	dash.RegisterRoutes(mux)

	httpServer := &http.Server{Handler: mux}

	go func() {
		if err := httpServer.Serve(ln); err != http.ErrServerClosed {
			logger.Fatalf("HTTP server error: %v", err)
		}
	}()

	return func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Printf("HTTP shutdown error: %v", err)
		}
	}
}

// runPruner trims the alert history on startup and then every pruneInterval.
func runPruner(ctx context.Context, repo repository.AlertRepository, settings *config.Settings, logger *log.Logger) {
	prune := func() {
		maxCount, maxDays := settings.AlertRetention()
		n, err := repo.PruneAlerts(ctx, maxCount, maxDays)
		if err != nil {
			logger.Printf("Alert pruning failed: %v", err)
			return
		}
		if n > 0 {
			logger.Printf("Pruned %d alert(s)", n)
		}
	}

	prune()
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prune()
		}
	}
}

// setupLogger creates a logger that writes to a log file and optionally stderr.
// When stderr is a terminal, logs go to both. When stderr is redirected, logs go
// only to the file so lines are not duplicated.
func setupLogger(logFilePath string) *log.Logger {
	var writers []io.Writer

	stderrIsTerminal := false
	if info, err := os.Stderr.Stat(); err == nil {
		stderrIsTerminal = (info.Mode() & os.ModeCharDevice) != 0
	}

	hasLogFile := false
	lower := strings.ToLower(logFilePath)
	if lower != "none" && lower != "off" && logFilePath != "" {
		if err := os.MkdirAll(filepath.Dir(logFilePath), 0o755); err == nil {
			f, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err == nil {
				writers = append(writers, f)
				hasLogFile = true
			} else {
				fmt.Fprintf(os.Stderr, "[titandash] Warning: cannot open log file %s: %v\n", logFilePath, err)
			}
		} else {
			fmt.Fprintf(os.Stderr, "[titandash] Warning: cannot create log dir %s: %v\n", filepath.Dir(logFilePath), err)
		}
	}

	// Always keep at least one output.
	if stderrIsTerminal || !hasLogFile {
		writers = append(writers, os.Stderr)
	}

	return log.New(io.MultiWriter(writers...), "[titandash] ", log.LstdFlags|log.Lshortfile)
}

// loadConfig loads configuration from TITANDASH_CONFIG or defaults. The
// returned path is empty when no file was loaded.
func loadConfig(logger *log.Logger) (string, *config.Config) {
	configPath := os.Getenv("TITANDASH_CONFIG")
	if configPath == "" {
		return "", config.DefaultConfig()
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Printf("Warning: failed to load config %s: %v, using defaults", configPath, err)
		return "", config.DefaultConfig()
	}
	return configPath, cfg
}

// runAlertsCommand implements "titandash-dashboard alerts [n]".
func runAlertsCommand() {
	limit := 20
	if len(os.Args) > 2 {
		n, err := strconv.Atoi(os.Args[2])
		if err != nil || n <= 0 {
			fmt.Fprintf(os.Stderr, "usage: titandash-dashboard alerts [n]\n")
			os.Exit(2)
		}
		limit = n
	}

	logger := log.New(os.Stderr, "", 0)
	_, cfg := loadConfig(logger)
	settings := config.New(cfg)

	repo, err := repository.NewAlertRepository(settings.StateFile())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer repo.Close()

	alerts, err := repo.RecentAlerts(context.Background(), limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if len(alerts) == 0 {
		fmt.Println("no alerts")
		return
	}
	for _, a := range alerts {
		fmt.Printf("%s  %-7s  %s: %s\n", a.CreatedAt.Local().Format("2006-01-02 15:04:05"), a.Kind, a.Sender, a.Message)
	}
}
