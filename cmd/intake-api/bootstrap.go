package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BearBump/RequestBox/config"
	"github.com/BearBump/RequestBox/internal/api/intake_api"
	"github.com/BearBump/RequestBox/internal/broker/kafka"
	"github.com/BearBump/RequestBox/internal/cache"
	"github.com/BearBump/RequestBox/internal/cache/rediscache"
	"github.com/BearBump/RequestBox/internal/notify"
	"github.com/BearBump/RequestBox/internal/notify/resendhttp"
	"github.com/BearBump/RequestBox/internal/notify/smtpmail"
	"github.com/BearBump/RequestBox/internal/services/intake"
	"github.com/BearBump/RequestBox/internal/storage/filetracking"
	"github.com/joho/godotenv"
)

// Отправитель по умолчанию, пока оператор не задал свой (MAIL_FROM).
const defaultFrom = "RequestBox <onboarding@resend.dev>"

type intakeAPIApp struct {
	ctx    context.Context
	cancel context.CancelFunc
	opts   intakeAPIOpts
	api    *intake_api.IntakeAPI
}

func mustBootstrapIntakeAPI() *intakeAPIApp {
	// .env удобен локально; в проде переменные приходят из окружения.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(os.Getenv("configPath"))
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}

	httpAddr := cfg.RequestBox.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	cacheTTL := time.Duration(cfg.RequestBox.TrackingCacheTTLSeconds) * time.Second
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}
	from := cfg.Mail.From
	if from == "" {
		from = defaultFrom
	}

	// Каналы строятся всегда; не настроенный канал сам скажет Configured()=false.
	// Без адресата уведомления не шлём вовсе — исход NONE.
	var dispatcher intake.Notifier
	if cfg.Mail.NotifyTo != "" {
		dispatcher = notify.NewDispatcher(
			resendhttp.New(cfg.Mail.ResendBaseURL, cfg.Mail.ResendAPIKey),
			smtpmail.New(cfg.Mail.SMTPHost, cfg.Mail.SMTPPort, cfg.Mail.SMTPSecure,
				cfg.Mail.SMTPUser, cfg.Mail.SMTPPassword),
		)
	}

	st := filetracking.New(cfg.RequestBox.StoreDir, "")

	var bytesCache cache.BytesCache
	var limiter intake_api.RateLimiter
	if cfg.Redis.Host != "" {
		redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
		bytesCache = rediscache.New(redisAddr)
		limiter = rediscache.NewRateLimiter(redisAddr)
	}

	var producer intake.Publisher
	if cfg.Kafka.Host != "" {
		producer = kafka.NewProducer([]string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)})
	}

	svc := intake.New(st, dispatcher, intake.Options{
		Cache:          bytesCache,
		CacheTTL:       cacheTTL,
		Producer:       producer,
		SubmittedTopic: cfg.Kafka.RequestSubmittedTopicName,
		NotifyTo:       cfg.Mail.NotifyTo,
		From:           from,
	})

	api := intake_api.New(svc, limiter, cfg.RequestBox.SubmitRateLimitPerMinute)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	return &intakeAPIApp{
		ctx:    ctx,
		cancel: cancel,
		opts: intakeAPIOpts{
			httpAddr:    httpAddr,
			swaggerPath: os.Getenv("swaggerPath"),
		},
		api: api,
	}
}

func (a *intakeAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
}

func (a *intakeAPIApp) Run() error {
	return runIntakeAPI(a.ctx, a.opts, a.api)
}
