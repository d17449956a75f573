package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tokenWatch/internal/api"
	"tokenWatch/internal/config"
	"tokenWatch/internal/notify"
	"tokenWatch/internal/pricefeed"
	"tokenWatch/internal/scheduler"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the price monitor and HTTP API",
		RunE:  runMonitor,
	}

	addStoreFlags(cmd)
	cmd.Flags().String("moralis-api-key", "", "Moralis API key")
	cmd.Flags().String("moralis-base-url", pricefeed.DefaultBaseURL, "Moralis API base URL")
	cmd.Flags().String("moralis-chain", pricefeed.DefaultChain, "Moralis chain the tracked tokens live on")
	cmd.Flags().Duration("fetch-timeout", 30*time.Second, "timeout of one price fetch")
	cmd.Flags().Duration("fetch-interval", 5*time.Minute, "time between price cycles")
	cmd.Flags().Duration("token-refresh-interval", 0, "reload tracked tokens this often, 0 disables")
	cmd.Flags().Duration("lookback", time.Hour, "age of the baseline price for swing alerts")
	cmd.Flags().Duration("lookback-tolerance", time.Minute, "accepted distance from the lookback mark")
	cmd.Flags().Float64("percentage-threshold", 3, "minimum rise in percent that triggers a swing alert")
	cmd.Flags().String("percentage-alert-email", "", "recipient of swing alerts")
	cmd.Flags().Bool("skip-overlapping", false, "skip a tick while the previous cycle is still running")
	cmd.Flags().Int("init-retries", 5, "token cache load retries at startup")
	cmd.Flags().Duration("init-backoff", time.Second, "initial token cache retry backoff")
	cmd.Flags().Int("lookup-concurrency", 8, "parallel alert registry lookups per cycle")
	cmd.Flags().String("notifier", "smtp", "notification channel (smtp, pushbullet, file, log)")
	cmd.Flags().String("smtp-host", "", "SMTP relay host")
	cmd.Flags().Int("smtp-port", 587, "SMTP relay port")
	cmd.Flags().String("smtp-username", "", "SMTP username")
	cmd.Flags().String("smtp-password", "", "SMTP password")
	cmd.Flags().String("mail-from", "no reply <noreply@tokenwatch.local>", "sender address")
	cmd.Flags().String("pushbullet-token", "", "Pushbullet access token")
	cmd.Flags().String("pushbullet-url", "", "Pushbullet pushes endpoint")
	cmd.Flags().String("outbox-path", "./data/outbox.jsonl", "JSONL outbox for the file notifier")
	cmd.Flags().Duration("notify-timeout", 15*time.Second, "timeout of one notification send")
	cmd.Flags().String("http-addr", ":8080", "HTTP listen address, empty disables the API")

	return cmd
}

func runMonitor(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg.Store, cfg.PGDSN, cfg.SQLitePath, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	fetcher, err := pricefeed.NewMoralisClient(pricefeed.Config{
		BaseURL: cfg.MoralisBaseURL,
		APIKey:  cfg.MoralisAPIKey,
		Chain:   cfg.MoralisChain,
		Timeout: cfg.FetchTimeout,
	}, logger.Named("moralis"))
	if err != nil {
		return err
	}

	sender, err := newSender(cfg, logger)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	sched, err := scheduler.New(scheduler.Config{
		FetchInterval:        cfg.FetchInterval,
		TokenRefreshInterval: cfg.TokenRefreshInterval,
		FetchTimeout:         cfg.FetchTimeout,
		Lookback:             cfg.Lookback,
		Tolerance:            cfg.LookbackTolerance,
		Threshold:            cfg.PercentageThreshold,
		SwingRecipient:       cfg.PercentageAlertEmail,
		SkipOverlapping:      cfg.SkipOverlapping,
		InitRetries:          cfg.InitRetries,
		InitBackoff:          cfg.InitBackoff,
		LookupConcurrency:    cfg.LookupConcurrency,
	}, scheduler.Deps{
		Directory: store,
		Fetcher:   fetcher,
		Prices:    store,
		Alerts:    store,
		Sender:    sender,
		Metrics:   scheduler.NewMetrics(registry),
		Logger:    logger.Named("scheduler"),
	})
	if err != nil {
		return err
	}

	logger.Info("tokenwatch start",
		zap.String("store", cfg.Store),
		zap.String("notifier", cfg.Notifier),
		zap.Duration("fetch_interval", cfg.FetchInterval),
		zap.Float64("percentage_threshold", cfg.PercentageThreshold),
		zap.String("moralis_chain", cfg.MoralisChain),
		zap.String("http_addr", cfg.HTTPAddr),
	)

	sched.Initialize(ctx)
	if err := sched.Start(ctx); err != nil {
		return err
	}
	defer sched.Stop()

	if cfg.HTTPAddr == "" {
		<-ctx.Done()
		return nil
	}

	server, err := api.NewServer(api.Options{
		Store:         store,
		Gatherer:      registry,
		TrackedTokens: sched.Cache().Len,
		Logger:        logger.Named("api"),
	})
	if err != nil {
		return err
	}
	return server.ListenAndServe(ctx, cfg.HTTPAddr)
}

func newSender(cfg config.Config, logger *zap.Logger) (notify.Sender, error) {
	switch cfg.Notifier {
	case "smtp":
		return notify.NewSMTPSender(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFrom,
			Timeout:  cfg.NotifyTimeout,
		})
	case "pushbullet":
		return notify.NewPushbulletSender(cfg.PushbulletToken, cfg.PushbulletURL, cfg.NotifyTimeout)
	case "file":
		return notify.NewOutboxSender(cfg.OutboxPath), nil
	case "log":
		return notify.NewLogSender(logger.Named("notify")), nil
	default:
		return nil, fmt.Errorf("unknown notifier %q", cfg.Notifier)
	}
}
