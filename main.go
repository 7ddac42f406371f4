package main

import (
	"bufio"
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gridloss/internal/audit"
	"gridloss/internal/auth"
	"gridloss/internal/config"
	"gridloss/internal/lossengine/application"
	"gridloss/internal/lossengine/application/eventbus"
	"gridloss/internal/lossengine/infrastructure/memory"
	"gridloss/internal/lossengine/infrastructure/sample"
	"gridloss/internal/lossengine/infrastructure/xlsx"
	lossapi "gridloss/internal/lossengine/interfaces/http"
	"gridloss/internal/lossengine/interfaces/notify"
	"gridloss/internal/lossengine/interfaces/ws"
	"gridloss/internal/observability/metrics"
)

const streamPath = "/api/v1/stream"

func main() {
	logger := log.New(os.Stdout, "", log.LstdFlags)
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config error: %v", err)
	}
	fields, err := cfg.FieldSet()
	if err != nil {
		logger.Fatalf("config error: %v", err)
	}

	metrics.Init()

	repo := memory.NewSnapshotRepository(cfg.SnapshotRetention)
	bus := eventbus.NewInMemoryBus()

	rebuildOpts := []application.RebuildOption{
		application.WithFieldSet(fields),
		application.WithLogger(logger),
	}
	if cfg.SampleFallback {
		rebuildOpts = append(rebuildOpts, application.WithFallback(sample.Source{}))
	}
	rebuildService, err := application.NewRebuildService(repo, bus, rebuildOpts...)
	if err != nil {
		logger.Fatalf("rebuild service error: %v", err)
	}
	queryService, err := application.NewQueryService(repo, cfg.Bands)
	if err != nil {
		logger.Fatalf("query service error: %v", err)
	}

	var source application.RecordSource = sample.Source{}
	if cfg.WorkbookPath != "" {
		source = xlsx.WorkbookSource{Path: cfg.WorkbookPath}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.NotifyWebhookURL != "" {
		channel, err := notify.NewWebhookChannel(cfg.NotifyWebhookURL)
		if err != nil {
			logger.Fatalf("notify channel error: %v", err)
		}
		tpl, err := notify.NewTemplate(cfg.NotifyTemplate)
		if err != nil {
			logger.Fatalf("notify template error: %v", err)
		}
		notifier, err := notify.NewNotifier(channel, tpl,
			notify.WithBands(cfg.Bands),
			notify.WithLogger(logger),
			notify.WithCooldown(cfg.NotifyCooldown),
			notify.WithDedupeWindow(cfg.NotifyDedupeWindow),
		)
		if err != nil {
			logger.Fatalf("notifier error: %v", err)
		}
		notifier.Subscribe(bus)
		go notifier.Run(ctx)
	}

	hub := ws.NewHub(logger)
	hub.Subscribe(bus)
	streamHandler, err := ws.NewHandler(hub, queryService)
	if err != nil {
		logger.Fatalf("stream handler error: %v", err)
	}

	// A failed initial load leaves the service up with 503s until a rebuild succeeds.
	if _, err := rebuildService.RebuildFrom(ctx, source); err != nil {
		logger.Printf("initial rebuild error: %v", err)
	}

	apiHandler, err := lossapi.NewHandler(queryService, rebuildService, logger,
		lossapi.WithReloadSource(source),
		lossapi.WithMaxUpload(cfg.MaxUploadBytes),
		lossapi.WithAuditTrail(audit.NewMemoryLog(cfg.AuditCapacity)),
	)
	if err != nil {
		logger.Fatalf("api handler error: %v", err)
	}

	mux := http.NewServeMux()
	apiHandler.Register(mux)
	mux.Handle(streamPath, streamHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	var handler http.Handler = mux
	if cfg.AuthDisabled {
		logger.Printf("auth disabled")
	} else {
		policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
		handler = auth.NewMiddleware([]byte(cfg.JWTSecret), policy, streamPath).Wrap(handler)
	}

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           loggingMiddleware(handler, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Printf("http listening on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("http server error: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("http shutdown error: %v", err)
	}
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Hijack lets the websocket upgrade reach the underlying connection.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("http: response does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return hijacker.Hijack()
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
