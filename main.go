package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	alertapp "geofleet-cloud/internal/alerts/application"
	alertrepo "geofleet-cloud/internal/alerts/infrastructure/postgres"
	alerthttp "geofleet-cloud/internal/alerts/interfaces/http"
	alertnotify "geofleet-cloud/internal/alerts/notify"
	"geofleet-cloud/internal/auth"
	eventrepo "geofleet-cloud/internal/events/infrastructure/postgres"
	"geofleet-cloud/internal/events/interfaces/webhook"
	"geofleet-cloud/internal/events/payload"
	"geofleet-cloud/internal/observability/metrics"
	reportapp "geofleet-cloud/internal/reports/application"
	reportrepo "geofleet-cloud/internal/reports/infrastructure/postgres"
	reporthttp "geofleet-cloud/internal/reports/interfaces/http"
	visitapp "geofleet-cloud/internal/visits/application"
	visithttp "geofleet-cloud/internal/visits/interfaces/http"
	"geofleet-cloud/internal/vss"
	"geofleet-cloud/internal/wialon"
	"geofleet-cloud/internal/zonegroups"
	zonegrouprepo "geofleet-cloud/internal/zonegroups/postgres"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	_ = godotenv.Load()
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	metrics.Init(db, logger)

	location, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Fatalf("timezone error: %v", err)
	}

	zoneGroupRepo := zonegrouprepo.NewZoneGroupRepository(db)
	groupResolver := zonegroups.NewResolver(logger, zoneGroupRepo, cfg.ZoneGroupRefresh)
	zoneGroupHandler, err := zonegroups.NewHandler(zoneGroupRepo, groupResolver)
	if err != nil {
		logger.Fatalf("zone group handler error: %v", err)
	}

	parser := payload.NewParser(payload.NewNormalizer(location), groupResolver)
	eventRepo := eventrepo.NewEventRepository(db)

	alertRepo, err := alertrepo.NewAlertRepository(db)
	if err != nil {
		logger.Fatalf("alert repository error: %v", err)
	}
	var alertChannel alertnotify.Channel
	if cfg.AlertWebhookURL != "" {
		alertChannel = alertnotify.NewWebhookChannel(cfg.AlertWebhookURL)
	}
	alertService, err := alertapp.NewService(logger, alertRepo, alertChannel)
	if err != nil {
		logger.Fatalf("alert service error: %v", err)
	}
	alertHandler, err := alerthttp.NewHandler(alertService)
	if err != nil {
		logger.Fatalf("alert handler error: %v", err)
	}

	ingestHandler, err := webhook.NewIngestHandler(eventRepo, parser, alertService, logger)
	if err != nil {
		logger.Fatalf("ingest handler error: %v", err)
	}

	reportCfg, err := reportapp.LoadConfig()
	if err != nil {
		logger.Fatalf("reports config error: %v", err)
	}
	reportStore := reportrepo.NewReportRepository(db, logger)

	wialonClient, err := wialon.NewClient(cfg.WialonBaseURL)
	if err != nil {
		logger.Fatalf("wialon client error: %v", err)
	}
	sessions, err := wialon.NewSessionManager(logger, wialonClient, cfg.WialonUser, cfg.WialonPassword, reportCfg.SessionFile, reportCfg.SessionTTL)
	if err != nil {
		logger.Fatalf("wialon session manager error: %v", err)
	}
	engine, err := reportapp.NewEngine(logger, wialonClient, sessions, reportCfg)
	if err != nil {
		logger.Fatalf("report engine error: %v", err)
	}
	scheduler, err := reportapp.NewScheduler(logger, engine, reportStore, reportCfg)
	if err != nil {
		logger.Fatalf("report scheduler error: %v", err)
	}

	visitService, err := visitapp.NewVisitService(logger, groupResolver, eventRepo, reportStore)
	if err != nil {
		logger.Fatalf("visit service error: %v", err)
	}
	visitHandler, err := visithttp.NewHandler(visitService)
	if err != nil {
		logger.Fatalf("visit handler error: %v", err)
	}
	reportHandler, err := reporthttp.NewHandler(reportStore)
	if err != nil {
		logger.Fatalf("report handler error: %v", err)
	}

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, []string{webhook.PathPrefix})
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)
	ingestAuth := auth.NewIngestAuthMiddleware([]byte(cfg.IngestSecret), cfg.IngestMaxSkew)

	mux := http.NewServeMux()
	mux.Handle(webhook.PathPrefix, ingestAuth.Wrap(ingestHandler))
	mux.Handle("/api/v1/zone-times", visitHandler)
	mux.Handle("/api/v1/exports/visits.xlsx", visitHandler)
	mux.Handle("/api/v1/exports/visits.pdf", visitHandler)
	mux.Handle("/api/v1/reports", reportHandler)
	mux.Handle("/api/v1/alerts", alertHandler)
	mux.Handle("/api/v1/zone-groups", zoneGroupHandler)
	if cfg.VSSBaseURL != "" {
		vssClient, err := vss.NewClient(cfg.VSSBaseURL)
		if err != nil {
			logger.Fatalf("vss client error: %v", err)
		}
		vssAuth, err := vss.NewAuthService(logger, vssClient, cfg.VSSUser, cfg.VSSPassword,
			vss.WithCredentialFile(cfg.VSSCredentialFile))
		if err != nil {
			logger.Fatalf("vss auth error: %v", err)
		}
		vssHandler, err := vss.NewCredentialsHandler(vssAuth)
		if err != nil {
			logger.Fatalf("vss handler error: %v", err)
		}
		mux.Handle("/api/v1/vss/credentials", vssHandler)
	}
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go scheduler.Start(ctx)

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}
	go func() {
		logger.Printf("http listening on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server error: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("shutdown error: %v", err)
	}
}

type config struct {
	DatabaseURL       string
	HTTPAddr          string
	Timezone          string
	ZoneGroupRefresh  time.Duration
	WialonBaseURL     string
	WialonUser        string
	WialonPassword    string
	AlertWebhookURL   string
	VSSBaseURL        string
	VSSUser           string
	VSSPassword       string
	VSSCredentialFile string
	JWTSecret         string
	IngestSecret      string
	IngestMaxSkew     time.Duration
}

func loadConfig() config {
	cfg := config{
		DatabaseURL:       getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:          getenvDefault("HTTP_ADDR", ":8080"),
		Timezone:          getenvDefault("LOCAL_TIMEZONE", "America/Guayaquil"),
		ZoneGroupRefresh:  getenvDuration("ZONE_GROUP_REFRESH", 10*time.Minute),
		WialonBaseURL:     getenvDefault("WIALON_BASE_URL", ""),
		WialonUser:        getenvDefault("WIALON_USER", ""),
		WialonPassword:    getenvDefault("WIALON_PASSWORD", ""),
		AlertWebhookURL:   getenvDefault("ALERT_WEBHOOK_URL", ""),
		VSSBaseURL:        getenvDefault("VSS_BASE_URL", ""),
		VSSUser:           getenvDefault("VSS_USER", ""),
		VSSPassword:       getenvDefault("VSS_PASSWORD", ""),
		VSSCredentialFile: getenvDefault("VSS_CREDENTIAL_FILE", "vss-credentials.json"),
		JWTSecret:         getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		IngestSecret:      getenvDefault("INGEST_HMAC_SECRET", ""),
		IngestMaxSkew:     getenvDuration("INGEST_MAX_SKEW", 5*time.Minute),
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL or PG_DSN is required")
	}
	if cfg.WialonBaseURL == "" {
		log.Fatal("WIALON_BASE_URL is required")
	}
	if cfg.WialonUser == "" || cfg.WialonPassword == "" {
		log.Fatal("WIALON_USER and WIALON_PASSWORD are required")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
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
