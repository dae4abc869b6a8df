package main

import (
	"context"
	"log"
	"os"
	"runtime/debug"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/agrovault/trialbase/internal/server"
	"github.com/agrovault/trialbase/modules"
	"github.com/agrovault/trialbase/pkg/application"
	"github.com/agrovault/trialbase/pkg/configuration"
	"github.com/agrovault/trialbase/pkg/eventbus"
	"github.com/agrovault/trialbase/pkg/logging"
	"github.com/agrovault/trialbase/pkg/metrics"
	"github.com/agrovault/trialbase/pkg/outbox"
	eventbusdispatcher "github.com/agrovault/trialbase/pkg/outbox/dispatchers/eventbus"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			configuration.Use().Unload()
			log.Println(r)
			debug.PrintStack()
			os.Exit(1)
		}
	}()

	conf := configuration.Use()
	logger := conf.Logger()

	var tracingCleanup func()
	if conf.OpenTelemetry.Enabled {
		tracingCleanup = logging.SetupTracing(
			context.Background(),
			conf.OpenTelemetry.ServiceName,
			conf.OpenTelemetry.TempoURL,
		)
		defer tracingCleanup()
		logger.Info("OpenTelemetry tracing enabled, exporting to Tempo at " + conf.OpenTelemetry.TempoURL)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()
	pool, err := pgxpool.New(ctx, conf.Database.Opts)
	if err != nil {
		panic(err)
	}
	app := application.New(&application.ApplicationOptions{
		Pool:     pool,
		EventBus: eventbus.NewEventPublisher(logger),
		Logger:   logger,
	})
	if err := modules.Load(app, modules.BuiltInModules...); err != nil {
		log.Fatalf("failed to load modules: %v", err)
	}

	startOutboxBackground(conf, pool, logger, app.EventPublisher())

	if conf.Prometheus.Enabled {
		app.RegisterControllers(metrics.NewPrometheusController(conf.Prometheus.Path))
	}
	options := &server.DefaultOptions{
		Logger:        logger,
		Configuration: conf,
		Application:   app,
		Pool:          pool,
	}
	serverInstance, err := server.Default(options)
	if err != nil {
		log.Fatalf("failed to create server: %v", err)
	}
	log.Printf("Listening on: %s\n", conf.Origin)
	if err := serverInstance.Start(conf.SocketAddress); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}

// startOutboxBackground launches the relay and cleaner for every
// configured outbox table. Failures to start are logged, never fatal:
// the HTTP API stays usable, messages just wait in the table.
func startOutboxBackground(
	conf *configuration.Configuration,
	pool *pgxpool.Pool,
	logger *logrus.Logger,
	bus eventbus.EventBus,
) {
	outboxLog := logger.WithField("component", "outbox")

	tables, err := outbox.ParseIdentifierList(conf.Outbox.RelayTables)
	if err != nil {
		outboxLog.WithError(err).Warn("outbox: invalid OUTBOX_RELAY_TABLES; relay and cleaner disabled")
		return
	}
	if len(tables) == 0 {
		outboxLog.Info("outbox: OUTBOX_RELAY_TABLES is empty; nothing to relay")
		return
	}

	if conf.Outbox.RelayEnabled {
		eb, ok := bus.(eventbus.EventBusWithError)
		if !ok {
			outboxLog.Warn("outbox: eventbus does not support PublishE; relay not started")
		} else {
			dispatcher := eventbusdispatcher.New(eb)
			for _, table := range tables {
				relay, err := outbox.NewRelay(pool, table, dispatcher, outbox.RelayOptions{
					PollInterval:    conf.Outbox.RelayPollInterval,
					BatchSize:       conf.Outbox.RelayBatchSize,
					LockTTL:         conf.Outbox.RelayLockTTL,
					MaxAttempts:     conf.Outbox.RelayMaxAttempts,
					SingleActive:    conf.Outbox.RelaySingleActive,
					LastErrorMaxLen: conf.Outbox.LastErrorMaxBytes,
					DispatchTimeout: conf.Outbox.RelayDispatchTimeout,
					Logger:          outboxLog.WithField("table", outbox.TableLabel(table)),
				})
				if err != nil {
					outboxLog.WithError(err).Warn("outbox: failed to create relay")
					continue
				}
				go func(r *outbox.Relay) {
					if err := r.Run(context.Background()); err != nil {
						outboxLog.WithError(err).Error("outbox: relay stopped")
					}
				}(relay)
			}
		}
	}

	if conf.Outbox.CleanerEnabled {
		for _, table := range tables {
			cleaner, err := outbox.NewCleaner(pool, table, outbox.CleanerOptions{
				Enabled:               true,
				Interval:              conf.Outbox.CleanerInterval,
				Retention:             conf.Outbox.CleanerRetention,
				DeadRetention:         conf.Outbox.CleanerDeadRetention,
				DeadAttemptsThreshold: conf.Outbox.RelayMaxAttempts,
				Logger:                outboxLog.WithField("table", outbox.TableLabel(table)),
			})
			if err != nil {
				outboxLog.WithError(err).Warn("outbox: failed to create cleaner")
				continue
			}
			go func(c *outbox.Cleaner) {
				if err := c.Run(context.Background()); err != nil {
					outboxLog.WithError(err).Error("outbox: cleaner stopped")
				}
			}(cleaner)
		}
	}
}
