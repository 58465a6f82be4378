package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crm-platform/internal/accounts"
	"crm-platform/internal/audit"
	"crm-platform/internal/auth"
	"crm-platform/internal/calllog"
	"crm-platform/internal/clients"
	"crm-platform/internal/config"
	"crm-platform/internal/httpapi"
	"crm-platform/internal/impersonation"
	"crm-platform/internal/telephony"
	"crm-platform/pkg/logger"
	"crm-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	// The remote backend is best-effort at startup: the service comes up in
	// local-only mode when postgres is unreachable.
	var db *sql.DB
	if cfg.RemoteConfigured() {
		db, err = utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
		if err != nil {
			log.Warn("postgres unavailable, starting in local-only mode", "err", err)
			db = nil
		} else {
			defer db.Close()
		}
	}

	var rdb *redis.Client
	if cfg.RedisConfigured() {
		rdb, err = utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
		if err != nil {
			log.Warn("redis unavailable, change notifications and call caps disabled", "err", err)
			rdb = nil
		} else {
			defer rdb.Close()
		}
	}

	local, err := calllog.NewFileStore(cfg.CallLog.LocalPath)
	if err != nil {
		log.Error("local call log init failed", "path", cfg.CallLog.LocalPath, "err", err)
		os.Exit(1)
	}

	var remote calllog.Store
	if db != nil {
		remote = calllog.NewPostgresStore(db, rdb)
	}
	callLog := calllog.NewLog(remote, local, log)

	var directory accounts.Directory
	var clientRepo clients.Repository
	if db != nil {
		directory = accounts.NewPostgresDirectory(db)
		clientRepo = clients.NewPostgresRepo(db)
	} else {
		directory = accounts.NewMemoryDirectory()
		clientRepo = clients.NewMemoryRepo()
	}

	auditSvc := audit.NewService(audit.NewMemoryRepo())

	device := telephony.NewSimulatedDevice()
	device.UnlockAudio()
	if err := device.Initialize(rootCtx); err != nil {
		log.Error("telephony device init failed", "err", err)
		os.Exit(1)
	}
	defer device.Destroy()

	dialer := telephony.NewDialer(device, callLog, rdb, log, telephony.DialerOptions{
		MaxConcurrent: cfg.Dialer.MaxConcurrentCalls,
	})

	h := httpapi.Handlers{
		Auth:       authManager,
		Calls:      callLog,
		Importer:   clients.NewImporter(clientRepo),
		ClientRepo: clientRepo,
		Sessions:   impersonation.NewRegistry(directory, auditSvc),
		Dialer:     dialer,
		Audit:      auditSvc,
	}
	webhook := telephony.StatusWebhookHandler{Calls: callLog}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, h, webhook, auth.RequireAccessToken(authManager))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env, "remote_call_log", remote != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
}
