// cmd/worker-manager/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"dossier-workers/internal/api"
	"dossier-workers/internal/cerfa"
	"dossier-workers/internal/common/aws"
	"dossier-workers/internal/common/camunda"
	"dossier-workers/internal/common/config"
	"dossier-workers/internal/common/database"
	httpclient "dossier-workers/internal/common/http"
	"dossier-workers/internal/common/logger"
	"dossier-workers/internal/common/observability"
	"dossier-workers/internal/dossier"
	"dossier-workers/internal/geo"
	"dossier-workers/internal/layout"
	"dossier-workers/internal/storage"
	"dossier-workers/internal/vision"
	"dossier-workers/pkg/registry"

	dp "dossier-workers/internal/workers/dossier/describe-photos"
	fc "dossier-workers/internal/workers/dossier/fill-cerfa-form"
	gd "dossier-workers/internal/workers/dossier/generate-dossier-pdf"
	se "dossier-workers/internal/workers/dossier/send-dossier-email"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log logger.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName), map[string]interface{}{
				"error":       err.Error(),
				"attempt":     i + 1,
				"maxRetries":  maxRetries,
				"nextRetryIn": delay.String(),
			})
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func fatal(log logger.Logger, msg string, err error) {
	log.Error(msg, map[string]interface{}{"error": err.Error()})
	os.Exit(1)
}

func workerTimeout(cfg *config.Config, taskType string, fallback time.Duration) time.Duration {
	if ms := config.GetWorkerConfig(cfg, taskType).Timeout; ms > 0 {
		return config.GetDuration(ms)
	}
	return fallback
}

// checkRegistry warns when a served task type is missing from the activity registry.
func checkRegistry(log logger.Logger, taskTypes ...string) {
	reg, err := registry.LoadRegistry("configs/activity-registry.json")
	if err != nil {
		log.Warn("Activity registry unavailable", map[string]interface{}{"error": err.Error()})
		return
	}
	if err := reg.Validate(); err != nil {
		log.Warn("Activity registry invalid", map[string]interface{}{"error": err.Error()})
	}
	if missing := reg.Unregistered(taskTypes...); len(missing) > 0 {
		log.Warn("Workers missing from activity registry", map[string]interface{}{"taskTypes": missing})
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	log.Info("Starting worker manager...", map[string]interface{}{
		"app":         cfg.App.Name,
		"version":     cfg.App.Version,
		"environment": cfg.App.Environment,
	})

	obs := observability.New(cfg.App.Name, log)
	ctx := context.Background()

	// --- Zeebe ---
	zeebe, err := camunda.NewClient(ctx, &camunda.ClientConfig{
		GatewayAddress:         cfg.Camunda.BrokerAddress,
		UsePlaintextConnection: true,
		ConnectionTimeout:      config.GetDuration(cfg.Camunda.RequestTimeout),
	})
	if err != nil {
		fatal(log, "zeebe client failed after retries", err)
	}
	log.Info("Zeebe client connected successfully", nil)

	// --- PostgreSQL ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, log, "PostgreSQL connection")
	if err != nil {
		fatal(log, "postgres failed after retries", err)
	}
	defer pg.Close()
	if err := pg.Migrate(ctx); err != nil {
		fatal(log, "postgres migration failed", err)
	}
	log.Info("PostgreSQL connected successfully", nil)

	// --- Redis ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, log, "Redis connection")
	if err != nil {
		fatal(log, "redis failed after retries", err)
	}
	defer rdb.Close()
	log.Info("Redis connected successfully", nil)

	// --- Domain services ---
	userAgent := cfg.APIs.Geocoder.UserAgent
	maps := geo.NewMapService(
		geo.NewGeocoder(httpclient.NewClient(config.GetDuration(cfg.APIs.Geocoder.Timeout), userAgent), cfg.APIs.Geocoder.URL),
		geo.NewWMSClient(httpclient.NewClient(config.GetDuration(cfg.APIs.WMS.Timeout), userAgent), cfg.APIs.WMS.URL, cfg.APIs.WMS.Width, cfg.APIs.WMS.Height),
		rdb.Client,
		geo.Config{
			Timeout:  config.GetDuration(cfg.APIs.WMS.Timeout),
			CacheTTL: time.Duration(cfg.APIs.WMS.CacheTTL) * time.Second,
		},
		log,
	)

	visionClient := vision.NewClient(vision.Config{
		BaseURL:       cfg.APIs.Vision.BaseURL,
		APIKey:        cfg.APIs.Vision.APIKey,
		Models:        cfg.APIs.Vision.Models,
		DefaultModel:  cfg.APIs.Vision.DefaultModel,
		MaxRetries:    cfg.APIs.Vision.MaxRetries,
		AssetRoot:     cfg.Layout.AssetRoot,
		ImageGenURL:   cfg.APIs.ImageGen.BaseURL,
		ImageGenKey:   cfg.APIs.ImageGen.APIKey,
		ImageGenModel: cfg.APIs.ImageGen.Model,
	}, httpclient.NewClient(config.GetDuration(cfg.APIs.ImageGen.Timeout), cfg.App.Name), log)

	engine := layout.NewEngine(layout.Config{
		AssetRoot:      cfg.Layout.AssetRoot,
		MaxImagePixels: cfg.Layout.MaxImagePixels,
		Compress:       cfg.Layout.Compress,
	}, log)

	var filler dossier.FormFiller
	if cfg.Cerfa.TemplatePath != "" {
		f, err := cerfa.NewFiller(cerfa.Config{
			TemplatePath: cfg.Cerfa.TemplatePath,
			CatalogPath:  cfg.Cerfa.CatalogPath,
		}, log)
		if err != nil {
			log.Warn("Cerfa filler disabled", map[string]interface{}{"error": err.Error()})
		} else {
			filler = f
		}
	}

	store := storage.NewPDFStore(rdb.Client, time.Duration(cfg.Storage.PDFTTL)*time.Second)
	generations := storage.NewGenerationLog(pg.DB)

	service := dossier.NewService(dossier.Deps{
		Renderer: engine,
		Maps:     maps,
		Filler:   filler,
		Store:    store,
		Log:      generations,
	}, dossier.Defaults{
		Theme:       cfg.Layout.DefaultTheme,
		Orientation: cfg.Layout.DefaultOrientation,
		Variant:     cfg.Layout.DefaultVariant,
	}, log)

	var (
		email se.EmailSender
		sms   se.SMSSender
	)
	if cfg.Notifications.Email.Enabled {
		ses, err := aws.NewSESClient(ctx, cfg.Notifications.AWS.Region, cfg.Notifications.Email.FromEmail)
		if err != nil {
			fatal(log, "failed to create SES client", err)
		}
		email = ses
	}
	if cfg.Notifications.SMS.Enabled {
		sns, err := aws.NewSNSClient(ctx, cfg.Notifications.AWS.Region, cfg.Notifications.SMS.SenderID)
		if err != nil {
			fatal(log, "failed to create SNS client", err)
		}
		sms = sns
	}

	// --- Workers ---
	var workers []worker.JobWorker
	start := func(taskType string, handler worker.JobHandler) {
		if jw := camunda.StartWorker(zeebe.GetClient(), taskType, config.GetWorkerConfig(cfg, taskType), handler, log); jw != nil {
			workers = append(workers, jw)
		}
	}

	gdCfg := gd.LoadConfig()
	gdCfg.Timeout = workerTimeout(cfg, gd.TaskType, gdCfg.Timeout)
	start(gd.TaskType, gd.NewHandler(gdCfg, service, obs, log).Handle)

	dpCfg := dp.LoadConfig()
	dpCfg.Timeout = workerTimeout(cfg, dp.TaskType, dpCfg.Timeout)
	describer := dp.NewHandler(dpCfg, visionClient, obs, log)
	start(dp.TaskType, describer.Handle)

	fcCfg := fc.LoadConfig()
	fcCfg.Timeout = workerTimeout(cfg, fc.TaskType, fcCfg.Timeout)
	start(fc.TaskType, fc.NewHandler(fcCfg, service, obs, log).Handle)

	if email != nil {
		seCfg := se.LoadConfig()
		seCfg.Timeout = workerTimeout(cfg, se.TaskType, seCfg.Timeout)
		seCfg.SMSEnabled = sms != nil
		if err := seCfg.Validate(); err != nil {
			fatal(log, "invalid send-dossier-email config", err)
		}
		start(se.TaskType, se.NewHandler(seCfg, service, email, sms, obs, log).Handle)
	} else {
		log.Info("worker disabled", map[string]interface{}{"taskType": se.TaskType, "reason": "email notifications off"})
	}
	log.Info("Workers registered", map[string]interface{}{"count": len(workers)})
	checkRegistry(log, gd.TaskType, dp.TaskType, fc.TaskType, se.TaskType)

	// --- HTTP API, health & metrics ---
	server := api.NewServer(api.Deps{
		Dossiers:    service,
		Photos:      describer,
		Transformer: visionClient,
		Maps:        maps,
		History:     generations,
		Checks: []api.Check{
			{Name: "postgres", Check: pg.Ping},
			{Name: "redis", Check: rdb.Ping},
			{Name: "zeebe", Check: zeebe.HealthCheck},
		},
	}, api.Config{}, log)

	httpServer := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("HTTP server listening", map[string]interface{}{"address": cfg.Server.Address})
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("Shutdown signal received, stopping workers...", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	for _, jw := range workers {
		jw.Close()
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("Error stopping HTTP server", map[string]interface{}{"error": err.Error()})
	}
	if err := zeebe.Close(); err != nil {
		log.Error("Error closing Zeebe client", map[string]interface{}{"error": err.Error()})
	}
	if err := obs.Shutdown(shutdownCtx); err != nil {
		log.Error("Error stopping metrics provider", map[string]interface{}{"error": err.Error()})
	}

	log.Info("Worker manager stopped gracefully", nil)
}
