package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"voiceagent-platform/internal/agent"
	"voiceagent-platform/internal/auth"
	"voiceagent-platform/internal/config"
	"voiceagent-platform/internal/followup"
	"voiceagent-platform/internal/httpapi"
	"voiceagent-platform/internal/notify"
	"voiceagent-platform/internal/reporting"
	"voiceagent-platform/internal/store"
	"voiceagent-platform/internal/telephony"
	"voiceagent-platform/pkg/logger"
	"voiceagent-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/panjf2000/ants/v2"
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

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	// Redis is optional. A failed connection is logged and the store runs
	// memory-only; the voice path never depends on the durable backend.
	var backend store.Backend
	if cfg.RedisAddr() != "" {
		rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
		if err != nil {
			log.Warn("redis unreachable at startup, store runs memory-only until probed", "err", err)
		}
		if rdb != nil {
			defer rdb.Close()
			backend = store.NewRedisBackend(rdb)
		}
	} else {
		log.Info("redis not configured, store runs memory-only")
	}

	st := store.New(backend, store.Options{
		OpTimeout: cfg.Redis.OpTimeout,
		Logger:    log,
	})

	smsSender := telephony.NewTwilioSMSSender(cfg.Twilio)
	if !cfg.TwilioEnabled() {
		log.Warn("twilio not configured, sms sends will be recorded as failed")
	}

	var replies agent.ReplyGenerator
	if cfg.OpenAIEnabled() {
		replies = agent.NewOpenAIGenerator(cfg.OpenAI)
	} else {
		log.Warn("openai not configured, replies use deterministic fallbacks")
	}

	dispatcher, err := notify.NewDispatcher(cfg.Agent.DispatchPoolSize, smsSender, st, cfg.Agent.BusinessName, log)
	if err != nil {
		log.Error("dispatcher init failed", "err", err)
		os.Exit(1)
	}
	defer dispatcher.Stop()

	followUpPool, err := ants.NewPool(cfg.Agent.DispatchPoolSize)
	if err != nil {
		log.Error("follow-up pool init failed", "err", err)
		os.Exit(1)
	}
	defer followUpPool.Release()

	processor := agent.NewProcessor(st, replies, dispatcher, cfg.Agent.BusinessName)
	followUps := followup.NewService(st, smsSender, followUpPool, cfg.Agent.BusinessName, log)
	reports := reporting.NewService(st)

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	webhooks := telephony.WebhookHandlers{
		Processor:     processor,
		Store:         st,
		PublicBaseURL: cfg.App.PublicBaseURL,
		BusinessName:  cfg.Agent.BusinessName,
	}
	api := httpapi.Handlers{
		Auth:        authManager,
		OperatorKey: cfg.Auth.OperatorKey,
		Store:       st,
		Reporting:   reports,
		FollowUps:   followUps,
		SMS:         smsSender,
	}

	registerRoutes(r, webhooks, api, auth.RequireAccessToken(authManager))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
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
}
