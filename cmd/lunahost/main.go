package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgnsrekt/lunashim/internal/api"
	"github.com/dgnsrekt/lunashim/internal/browser"
	"github.com/dgnsrekt/lunashim/internal/bus"
	"github.com/dgnsrekt/lunashim/internal/config"
	"github.com/dgnsrekt/lunashim/internal/controller"
	"github.com/dgnsrekt/lunashim/internal/host"
	"github.com/dgnsrekt/lunashim/internal/journal"
	"github.com/dgnsrekt/lunashim/internal/luna"
	"github.com/dgnsrekt/lunashim/internal/netutil"
	"github.com/dgnsrekt/lunashim/internal/notify"
	"github.com/dgnsrekt/lunashim/internal/pkgstore"
	"github.com/dgnsrekt/lunashim/internal/resources"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if err := setupLogger(cfg.LogLevel, cfg.LogFile); err != nil {
		_, _ = io.WriteString(os.Stderr, "logger setup failed: "+err.Error()+"\n")
		os.Exit(1)
	}

	slog.Info("lunahost config loaded",
		"bind_addr", cfg.BindAddr,
		"port_auto_fallback", cfg.PortAutoFallback,
		"port_candidates", cfg.PortCandidates,
		"data_dir", cfg.DataDir,
		"journal_dir", cfg.JournalDir,
		"framework_dir", cfg.FrameworkDir,
		"locale", cfg.Locale,
		"timezone", cfg.Timezone,
		"launch_browser", cfg.LaunchBrowser,
		"notify", cfg.NotifyURL != "",
		"log_level", cfg.LogLevel,
		"log_file", cfg.LogFile,
	)

	bindAddr, err := netutil.SelectBindAddr(cfg.BindAddr, cfg.PortCandidates, cfg.PortAutoFallback)
	if err != nil {
		slog.Error("failed to select bind address", "preferred", cfg.BindAddr, "error", err)
		os.Exit(1)
	}

	loc := time.Local
	if cfg.Timezone != "" {
		if loc, err = time.LoadLocation(cfg.Timezone); err != nil {
			slog.Error("invalid timezone", "timezone", cfg.Timezone, "error", err)
			os.Exit(1)
		}
	}
	locale := luna.ParseLocale(cfg.Locale)
	locale.Use24Hour = cfg.Use24Hour()
	device := luna.DefaultDeviceProfile()

	mappings := resources.DefaultMappings()
	if cfg.FrameworkMapPath != "" {
		if mappings, err = resources.LoadMappings(cfg.FrameworkMapPath); err != nil {
			slog.Error("failed to load framework map", "path", cfg.FrameworkMapPath, "error", err)
			os.Exit(1)
		}
	}
	frameworks := resources.NewResolver(cfg.FrameworkDir, mappings)

	packages, err := pkgstore.NewStore(cfg.PackageDir())
	if err != nil {
		slog.Error("failed to open package store", "dir", cfg.PackageDir(), "error", err)
		os.Exit(1)
	}

	opts := host.Options{
		Locale:   locale,
		Timezone: luna.ZoneName(loc),
		Device:   device,
	}
	if cfg.NotifyURL != "" {
		opts.Banners = notify.New(cfg.NotifyURL, &http.Client{Timeout: 10 * time.Second})
	}
	pageHost, err := host.New(opts)
	if err != nil {
		slog.Error("failed to prepare page host", "error", err)
		os.Exit(1)
	}

	router := luna.NewRouter(luna.DefaultServices(luna.Env{
		Clock:   luna.SystemClock{Location: loc},
		Locale:  locale,
		Opener:  pageHost,
		Network: luna.NewHostNetworkProbe(),
		Device:  device,
	})...)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	transport := bus.NewTransport(bus.NewProm("lunashim", registry))

	writer := journal.NewWriter(cfg.JournalDir, cfg.JournalBuffer, cfg.JournalMaxMB, "")
	calls := journal.New(writer, journal.NewBroker())
	calls.LimitPayload(cfg.JournalMaxBytes)
	defer func() { _ = calls.Close() }()

	bridge := bus.NewBridge(transport, router, calls)

	svc := controller.NewService(bridge, router, packages, frameworks, nil)
	svc.SetAppBaseURL("http://" + bindAddr)

	if cfg.LaunchBrowser {
		launcher := browser.NewLauncher(browser.Config{
			CDPAddress: cfg.CDPAddress,
			CDPPort:    cfg.CDPPort,
			ProfileDir: cfg.ProfileDir,
		})
		if err := launcher.Launch(context.Background()); err != nil {
			slog.Error("failed to launch browser", "error", err)
			os.Exit(1)
		}
		defer launcher.Stop()
	}

	if err := pageHost.Attach(context.Background(), cfg.CDPURL(), bridge); err != nil {
		slog.Warn("page host unavailable, running bus only", "cdp_url", cfg.CDPURL(), "error", err)
	} else {
		svc.SetHost(pageHost)
		defer func() { _ = pageHost.Close() }()
	}

	h := api.NewServer(svc, api.Options{
		Events:  calls.Broker(),
		Metrics: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		WSRate:  cfg.WSRate,
		WSBurst: cfg.WSBurst,
	})

	srv := &http.Server{Addr: bindAddr, Handler: h}

	go func() {
		slog.Info("lunahost listening", "addr", bindAddr, "docs", "http://"+bindAddr+"/docs")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("lunahost server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("lunahost shutdown failed", "error", err)
	}
	if n := transport.CancelAll(); n > 0 {
		slog.Info("cancelled pending calls", "count", n)
	}
}

func setupLogger(level, filename string) error {
	if err := os.MkdirAll("logs", 0o755); err != nil {
		return err
	}

	logWriter := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    25,
		MaxBackups: 10,
		MaxAge:     14,
		Compress:   true,
	}

	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	h := slog.NewTextHandler(io.MultiWriter(os.Stdout, logWriter), &slog.HandlerOptions{Level: slogLevel})
	slog.SetDefault(slog.New(h))
	return nil
}
