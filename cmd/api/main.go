package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"vpnmarket/internal/auth"
	"vpnmarket/internal/cache"
	"vpnmarket/internal/config"
	"vpnmarket/internal/database"
	"vpnmarket/internal/httpapi"
	"vpnmarket/internal/logging"
	"vpnmarket/internal/marzban"
	"vpnmarket/internal/metrics"
	"vpnmarket/internal/notify"
	"vpnmarket/internal/payment"
	"vpnmarket/internal/pricing"
	"vpnmarket/internal/store"
	"vpnmarket/internal/subscription"
	"vpnmarket/internal/worker"
)

func main() {
	cfg := config.LoadConfig()

	logLevel := "info"
	if !cfg.IsProduction() {
		logLevel = "debug"
	}
	log := logging.New(logLevel)

	db, err := database.ConnectPostgres(cfg)
	if err != nil {
		log.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}

	redisClient, err := database.ConnectRedis(cfg)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	kv := cache.NewRedis(redisClient)

	st := store.New(db)

	tokens := auth.NewTokenManager(cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	mailer := notify.NewSMTP(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPSender)
	authSvc := auth.NewService(st, kv, tokens, mailer)

	pricingSvc := pricing.NewService(st, kv)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	m := metrics.NewMetrics(registry)

	panel := &subscription.InstrumentedPanel{
		Next:    marzban.NewClient(cfg.MarzbanURL, cfg.MarzbanUsername, cfg.MarzbanPassword),
		Metrics: m,
	}
	click := payment.NewClickGateway(cfg.ClickServiceID, cfg.ClickMerchantID, cfg.ClickSecretKey, cfg.ClickAllowedIPs)
	payme := payment.NewPaymeGateway(cfg.PaymeMerchantID, cfg.PaymeSecretKey)

	ops, err := notify.NewOps(cfg.TelegramBotToken, cfg.TelegramOpsChat)
	if err != nil {
		log.Error("failed to initialise telegram notifier", "error", err)
		os.Exit(1)
	}

	subsSvc := &subscription.Service{
		Store:     st,
		Plans:     pricingSvc,
		Panel:     panel,
		Click:     click,
		Payme:     payme,
		Ops:       ops,
		PublicURL: cfg.PublicURL,
		DataLimit: cfg.VpnDataLimit,
	}

	ready := func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			return err
		}
		return redisClient.Ping(ctx).Err()
	}

	e := httpapi.NewServer(&httpapi.Deps{
		Auth:       &httpapi.AuthHandler{Auth: authSvc},
		User:       &httpapi.UserHandler{Store: st, Subs: subsSvc},
		Public:     &httpapi.PublicHandler{Pricing: pricingSvc},
		Webhooks:   &httpapi.WebhookHandler{Store: st, Subs: subsSvc, Click: click, Payme: payme, Metrics: m},
		AuthMW:     &httpapi.AuthMiddleware{Tokens: tokens},
		Metrics:    m,
		Registry:   registry,
		Logger:     log,
		Ready:      ready,
		Production: cfg.IsProduction(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	checker := worker.NewChecker(st, kv, panel, mailer, ops, log)
	go checker.Start(ctx)

	go func() {
		log.Info("server listening", "addr", cfg.ListenAddr)
		if err := e.Start(cfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}
