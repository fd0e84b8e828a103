package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/reconcilebook/billingd/pkg/config"
	"github.com/reconcilebook/billingd/pkg/email"
	"github.com/reconcilebook/billingd/pkg/httpserver"
	"github.com/reconcilebook/billingd/pkg/logger"
	"github.com/reconcilebook/billingd/pkg/pg"
	"github.com/reconcilebook/billingd/pkg/redis"
	"github.com/reconcilebook/billingd/svc/billing"
)

type appConfig struct {
	Env  string `env:"APP_ENV" envDefault:"development"`
	Addr string `env:"HTTP_ADDR" envDefault:":8080"`

	PlansFile     string        `env:"PLANS_FILE"`
	TrialDays     int           `env:"TRIAL_DAYS" envDefault:"14"`
	OpsAlertEmail string        `env:"OPS_ALERT_EMAIL"`
	DedupTTL      time.Duration `env:"WEBHOOK_DEDUP_TTL" envDefault:"24h"`
}

func main() {
	ctx := context.Background()

	var appCfg appConfig
	config.MustLoad(&appCfg)

	log := logger.New(
		logger.WithEnvironment(appCfg.Env, "billingd"),
		logger.WithContextExtractors(requestID),
	)
	logger.SetAsDefault(log)

	if err := run(ctx, appCfg, log); err != nil {
		log.ErrorContext(ctx, "service stopped with error", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, appCfg appConfig, log *slog.Logger) error {
	// Postgres: subscription profiles and pending payments.
	var pgCfg pg.Config
	config.MustLoad(&pgCfg)

	pool, err := pg.Connect(ctx, pgCfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pg.Migrate(ctx, pool, pgCfg, log); err != nil {
		return err
	}

	// Redis: webhook event dedup.
	var redisCfg redis.Config
	config.MustLoad(&redisCfg)

	redisClient, err := redis.Connect(ctx, redisCfg)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	// Stripe: signature verification and customer lookups.
	var stripeCfg billing.StripeConfig
	config.MustLoad(&stripeCfg)

	provider, err := billing.NewStripeProvider(stripeCfg)
	if err != nil {
		return err
	}

	// Identity directory: account lookup and provisioning.
	var identityCfg billing.IdentityConfig
	config.MustLoad(&identityCfg)

	directory, err := billing.NewAdminDirectory(identityCfg)
	if err != nil {
		return err
	}

	opts := []billing.ServiceOption{
		billing.WithLogger(log),
		billing.WithTrialDays(appCfg.TrialDays),
		billing.WithDeduper(billing.NewRedisDeduper(redisClient, appCfg.DedupTTL)),
	}

	if appCfg.PlansFile != "" {
		catalog, err := billing.LoadCatalog(appCfg.PlansFile)
		if err != nil {
			return err
		}
		opts = append(opts, billing.WithCatalog(catalog))
	}

	if appCfg.OpsAlertEmail != "" {
		var emailCfg email.Config
		config.MustLoad(&emailCfg)

		sender, err := email.NewPostmarkClient(emailCfg)
		if err != nil {
			log.WarnContext(ctx, "postmark unavailable, using log-only sender", logger.Error(err))
			sender = email.NewLogSender(log)
		}
		opts = append(opts, billing.WithNotifier(billing.NewEmailNotifier(sender, appCfg.OpsAlertEmail)))
	}

	svc := billing.NewService(provider, directory,
		billing.NewPGProfileStore(pool),
		billing.NewPGPendingPaymentStore(pool),
		opts...,
	)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", httpserver.HealthCheckHandler(log,
		pg.Healthcheck(pool),
		redis.Healthcheck(redisClient),
	))
	r.Mount("/webhooks", billing.Router(svc, log))

	srv := httpserver.New(
		httpserver.WithAddr(appCfg.Addr),
		httpserver.WithReadTimeout(10*time.Second),
		httpserver.WithWriteTimeout(30*time.Second),
		httpserver.WithIdleTimeout(60*time.Second),
		httpserver.WithLogger(log),
	)
	return srv.Run(ctx, r)
}

// requestID surfaces the chi middleware request id in log records.
func requestID(ctx context.Context) (slog.Attr, bool) {
	if id := middleware.GetReqID(ctx); id != "" {
		return slog.String("request_id", id), true
	}
	return slog.Attr{}, false
}
