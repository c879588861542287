package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/cppla/campusbbs/config"
	"github.com/cppla/campusbbs/routes"
	"github.com/cppla/campusbbs/services"
	"github.com/cppla/campusbbs/store"
	"github.com/cppla/campusbbs/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}
	defer func() { _ = utils.Logger.Sync() }()
	logger := utils.Logger

	rc := utils.NewRedis(cfg)

	loader, err := store.New(cfg, logger.Named("store"))
	if err != nil {
		utils.Sugar.Fatalf("open %s store: %v", cfg.StoreBackend, err)
	}

	tasks := utils.NewDispatcher(0, logger.Named("tasks"))
	tasksCtx, stopTasks := context.WithCancel(context.Background())
	go tasks.Run(tasksCtx)

	verifier := utils.NewVerifier(
		utils.NewCodeStore(rc),
		utils.NewMailer(cfg, logger.Named("mail")),
		time.Duration(cfg.CodeTTLSeconds)*time.Second,
		time.Duration(cfg.CodeCooldownSeconds)*time.Second,
		logger.Named("codes"),
	)

	forum := services.New(loader, utils.NewHasher(cfg.PasswordScheme, cfg.PBKDF2Iterations), verifier, tasks, logger.Named("forum"), services.Options{
		AdminStudentIDs: cfg.AdminStudentIDs,
		EmailSuffix:     cfg.EmailSuffix,
		HotThreshold:    cfg.HotPostThreshold,
		DefaultPageSize: cfg.DefaultPageSize,
	})
	forum.Load()
	go forum.FlushLoop(tasksCtx, time.Duration(cfg.ViewFlushSeconds)*time.Second)

	r := routes.SetupRouter(cfg, routes.Deps{
		Forum:     forum,
		Cache:     utils.NewResponseCache(rc, 0, logger.Named("cache")),
		Issuer:    utils.NewTokenIssuer(cfg.JWTSecret, time.Duration(cfg.TokenTTLHours)*time.Hour),
		Blacklist: utils.NewTokenBlacklist(rc),
		Guard: utils.NewRegisterGuard(rc,
			time.Duration(cfg.RegisterCooldownSec)*time.Second,
			cfg.RegisterMaxPerIPPerDay),
		Captcha: utils.NewCaptcha(utils.NewCaptchaStore(rc, time.Duration(cfg.CaptchaTTLSeconds)*time.Second)),
		Logger:  logger.Named("http"),
	})

	srv := utils.NewServer(":"+cfg.AppPort, r, logger)
	srv.OnShutdown(func(context.Context) {
		tasks.Wait()
		stopTasks()
		if !forum.Save() {
			logger.Error("final save failed")
		}
		if err := loader.Close(); err != nil {
			logger.Warn("close store", zap.Error(err))
		}
		if rc != nil {
			_ = rc.Close()
		}
	})

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := srv.ListenAndServe(); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
