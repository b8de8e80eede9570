package main // Entry point package

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ministry-portal/internal/config"
	"github.com/iliyamo/ministry-portal/internal/database"
	"github.com/iliyamo/ministry-portal/internal/handler"
	"github.com/iliyamo/ministry-portal/internal/logging"
	"github.com/iliyamo/ministry-portal/internal/middleware"
	"github.com/iliyamo/ministry-portal/internal/queue"
	"github.com/iliyamo/ministry-portal/internal/repository"
	"github.com/iliyamo/ministry-portal/internal/router"
	"github.com/iliyamo/ministry-portal/internal/service"
	"github.com/iliyamo/ministry-portal/internal/utils"
)

func main() {
	config.LoadDotEnv("")
	cfg := config.Load()
	logger := logging.New(os.Stdout, cfg.LogLevel).With("app", cfg.AppName, "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		log.Fatalf("db migrate: %v", err)
	}

	accounts := repository.NewAccountRepo(db)
	codes := repository.NewResetCodeRepo(db)
	hasher := utils.NewBcryptHasher(cfg.BcryptCost)

	local := service.NewLocalAuth(accounts, hasher, logger.With("flow", "local"))
	recovery := service.NewRecovery(accounts, codes, hasher, cfg.OTPTTL, logger.With("flow", "recovery"))
	linker := service.NewExternalLinker(accounts, logger.With("flow", "external"))
	questions := service.NewSecurityQuestions(accounts, hasher)

	// Code delivery: publish on the request path, mail from the consumer.
	publisher := queue.NewPublisher(cfg.AMQPURL, cfg.OTPQueue, logger.With("component", "publisher"))
	mailer := queue.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.MailFrom)
	consumer := queue.NewConsumer(cfg.AMQPURL, cfg.OTPQueue, cfg.AppName, mailer, logger.With("component", "otp-consumer"))
	go func() {
		if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error(ctx, "otp consumer stopped", "err", err)
		}
	}()
	go recovery.RunJanitor(ctx, cfg.OTPJanitorInterval)

	rdb := config.NewRedisClient(ctx)
	if rdb == nil {
		logger.Warn(ctx, "redis unavailable, code requests are not rate limited")
	} else {
		defer rdb.Close()
	}

	h := router.Handlers{
		Auth:        handler.NewAuthHandler(local, logger, cfg.RequestTimeout),
		OTP:         handler.NewOTPHandler(recovery, publisher, logger, cfg.RequestTimeout),
		Security:    handler.NewSecurityHandler(questions, logger, cfg.RequestTimeout),
		OTPLimit:    middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, logger.With("component", "ratelimit")),
		VerifyLimit: middleware.NewTokenBucket(config.LoadVerifyRateLimitConfig(), rdb, logger.With("component", "ratelimit")),
	}
	if cfg.GoogleEnabled() {
		conf := handler.NewGoogleConfig(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL)
		state := utils.NewStateSigner(cfg.StateSecret, cfg.StateTTL)
		h.Google = handler.NewGoogleHandler(conf, state, linker, logger, cfg.RequestTimeout)
	} else {
		logger.Warn(ctx, "google sign-in disabled, GOOGLE_CLIENT_ID or GOOGLE_CLIENT_SECRET not set")
	}

	e := echo.New()
	e.HideBanner = true
	e.IPExtractor = middleware.NewIPExtractor(cfg.TrustedProxies)
	e.Use(middleware.RequestLogger(logger))
	router.RegisterRoutes(e, db)
	router.RegisterAuth(e, h)

	addr := ":" + cfg.Port
	go func() {
		logger.Info(ctx, "listening", "addr", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "shutdown", "err", err)
	}
	logger.Info(shutdownCtx, "stopped")
}
