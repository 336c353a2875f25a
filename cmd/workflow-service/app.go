package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"

	_ "github.com/lib/pq"

	"bookflow/internal/broker"
	"bookflow/internal/config"
	"bookflow/internal/constants"
	"bookflow/internal/decisionlog"
	"bookflow/internal/directory"
	"bookflow/internal/dispatch"
	"bookflow/internal/logger"
	"bookflow/internal/workflow"
	"bookflow/pkg/bootstrap"
	"bookflow/pkg/health"
	"bookflow/pkg/logging"
	"bookflow/pkg/metrics"
	"bookflow/pkg/middleware"
	"bookflow/pkg/models"
	"bookflow/pkg/tracing"
)

const serviceName = "workflow-service"

type App struct {
	*bootstrap.Base
	dbConnector    *bootstrap.DatabaseConnector
	db             *sql.DB
	redis          *redis.Client
	mongoClient    *mongo.Client
	guard          *dispatch.Guard
	recorder       workflow.DecisionRecorder
	service        *workflow.Service
	configConsumer broker.Consumer
	healthRegistry *health.CheckerRegistry
	tracerProvider *tracing.TracerProvider
	server         *http.Server
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName(serviceName)
	}
	return &App{
		Base:           bootstrap.NewBase(cfg, log),
		dbConnector:    bootstrap.NewDatabaseConnector(cfg, log),
		healthRegistry: health.NewCheckerRegistry(),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	tp, err := tracing.Init(a.Config.Tracing, serviceName)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	metrics.RegisterWorkflowMetrics()
	metrics.RegisterBrokerMetrics()
	metrics.RegisterDatabaseMetrics()
	if a.Config.CircuitBreaker.Enabled {
		metrics.RegisterCircuitBreakerMetrics()
	}

	if err := a.initStores(ctx); err != nil {
		return fmt.Errorf("failed to initialize stores: %w", err)
	}

	if err := a.initService(ctx); err != nil {
		return fmt.Errorf("failed to initialize service: %w", err)
	}

	if err := a.InitBroker(serviceName); err != nil {
		return fmt.Errorf("failed to initialize broker: %w", err)
	}

	a.initHTTPServer()
	return nil
}

func (a *App) initStores(ctx context.Context) error {
	db, err := a.dbConnector.InitPostgreSQL(ctx)
	if err != nil {
		return err
	}
	if db == nil {
		return fmt.Errorf("postgres is required by %s", serviceName)
	}
	a.db = db
	a.healthRegistry.Register(health.NewPostgreSQLChecker(db))

	if a.Config.Dispatch.Enabled || a.Config.Directory.Enabled {
		rdb, err := a.dbConnector.InitRedis(ctx)
		switch {
		case err != nil && a.Config.Dispatch.Enabled:
			return err
		case err != nil:
			a.Logger.WarnwCtx(ctx, "Redis unavailable, organizer cache disabled", "error", err)
		default:
			a.redis = rdb
			a.healthRegistry.Register(health.NewRedisChecker(rdb))
		}
	}

	if a.Config.Database.MongoDB.URI != "" {
		initCtx, cancel := context.WithTimeout(ctx, constants.DefaultInitTimeout)
		defer cancel()
		client, err := a.dbConnector.InitMongoDB(initCtx)
		if err != nil {
			a.Logger.WarnwCtx(ctx, "MongoDB unavailable, decision log and directory disabled", "error", err)
			return nil
		}
		a.mongoClient = client
		a.healthRegistry.RegisterOptional(health.NewMongoDBChecker(client))
	}

	return nil
}

// applySavedDispatchSettings replays the last management update over the file config.
// Config events published while the service was down are otherwise lost.
func (a *App) applySavedDispatchSettings(ctx context.Context, guard *dispatch.Guard) {
	saved, err := dispatch.NewSettingsStore(a.db).Load(ctx)
	if err != nil {
		a.Logger.WarnwCtx(ctx, "Failed to load saved dispatch settings, using configured ones", "error", err)
		return
	}
	if saved == nil {
		return
	}
	if err := guard.UpdateSettings(*saved); err != nil {
		a.Logger.WarnwCtx(ctx, "Ignoring saved dispatch settings", "error", err)
		return
	}
	a.Logger.InfowCtx(ctx, "Applied saved dispatch settings", "key_fields", saved.KeyFields, "ttl_seconds", saved.TTLSeconds)
}

func (a *App) initService(ctx context.Context) error {
	var opts []workflow.ServiceOption

	if a.Config.Dispatch.Enabled {
		repo := dispatch.NewCircuitBreakerRepository(dispatch.NewRepository(a.redis), a.Config.CircuitBreaker)
		guard, err := dispatch.NewGuard(repo, a.Config.Dispatch, a.Logger)
		if err != nil {
			return fmt.Errorf("failed to create dispatch guard: %w", err)
		}
		a.applySavedDispatchSettings(ctx, guard)
		a.guard = guard
		opts = append(opts, workflow.WithDispatchGuard(a.guard))
		metrics.RegisterDispatchMetrics()
		a.healthRegistry.RegisterOptional(health.NewFuncChecker("dispatch_breaker", func(context.Context) error {
			if repo.State() == "open" {
				return errors.New("circuit breaker is open")
			}
			return nil
		}))
	}

	if a.mongoClient != nil {
		mongoDB := a.dbConnector.MongoDatabase(a.mongoClient)
		a.recorder = decisionlog.NewStore(mongoDB, serviceName)

		if a.Config.Directory.Enabled {
			dir := directory.NewFromStores(mongoDB, a.redis, a.Config.Directory, a.Config.CircuitBreaker, a.Logger)
			timeout := time.Duration(a.Config.Directory.LookupTimeoutMillis) * time.Millisecond
			opts = append(opts, workflow.WithDirectory(dir, timeout))
			metrics.RegisterDirectoryMetrics()
		}
	}

	svc, err := workflow.NewService(workflow.NewRepository(a.db), a.Config.Workflow, a.Logger, opts...)
	if err != nil {
		return fmt.Errorf("failed to create workflow service: %w", err)
	}

	if err := svc.ReloadWorkflows(ctx, true); err != nil {
		a.Logger.WarnwCtx(logging.WithServiceName(ctx, serviceName), "Failed to load initial workflows", "error", err)
	}

	a.service = svc
	return nil
}

func (a *App) initHTTPServer() {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(middleware.Recover(a.Logger))

	router.GET("/health", a.healthRegistry.Handler())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      router,
		ReadTimeout:  a.Config.Server.ReadTimeoutSeconds * time.Second,
		WriteTimeout: a.Config.Server.WriteTimeoutSeconds * time.Second,
	}
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfowCtx(ctx, "HTTP server starting", "port", a.Config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})

	a.startConfigConsumer(gCtx, g)

	g.Go(func() error {
		return a.service.StartReloader(gCtx)
	})

	input, output, _ := broker.Topics(a.Config.Broker)
	handler := workflow.NewMessageHandler(a.service, a.Producer, a.recorder, output, a.Logger)
	g.Go(func() error {
		a.Logger.InfowCtx(gCtx, "Consuming booking events", "input", input, "output", output)
		return a.Consumer.Consume(gCtx, input, handler.Handle)
	})

	return g.Wait()
}

// startConfigConsumer listens for workflow and dispatch config events. Every replica must see
// every event, so the Kafka consumer joins a group of its own.
func (a *App) startConfigConsumer(ctx context.Context, g *errgroup.Group) {
	topic := broker.ConfigTopic(a.Config.Broker)
	if topic == "" {
		a.Logger.InfowCtx(ctx, "No config update topic configured, relying on periodic reload")
		return
	}

	brokerCfg := a.Config.Broker
	brokerCfg.Kafka.GroupID = fmt.Sprintf("%s-config-%s", brokerCfg.Kafka.GroupID, uuid.NewString()[:8])

	consumer, err := broker.NewConsumer(brokerCfg, a.Logger)
	if err != nil {
		a.Logger.WarnwCtx(ctx, "Failed to create config event consumer, event-driven reload disabled", "error", err)
		return
	}
	consumer.SetServiceName(serviceName)
	a.configConsumer = consumer

	handlers := []*workflow.ConfigHandler{workflow.NewConfigHandler(a.service, a.Logger)}
	if a.guard != nil {
		handlers = append(handlers, dispatch.NewHandler(a.guard, a.Logger))
	}

	g.Go(func() error {
		a.Logger.InfowCtx(ctx, "Starting config update event consumer", "topic", topic)
		return consumer.Consume(ctx, topic, func(cCtx context.Context, msg models.MessageEnvelope) error {
			for _, h := range handlers {
				if err := h.HandleConfigUpdateEvent(cCtx, msg); err != nil {
					return err
				}
			}
			return nil
		})
	})
}

func (a *App) Shutdown(ctx context.Context) error {
	a.Logger.InfowCtx(logging.WithServiceName(ctx, serviceName), "Shutting down workflow service")

	return a.Base.Shutdown(ctx, func(ctx context.Context) []error {
		var errs []error

		if a.configConsumer != nil {
			if err := a.configConsumer.Close(); err != nil {
				errs = append(errs, fmt.Errorf("config consumer close error: %w", err))
			}
		}

		if a.service != nil {
			a.service.Close()
		}

		if a.tracerProvider != nil {
			if err := a.tracerProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
			}
		}

		errs = append(errs, a.dbConnector.ShutdownDatabases(ctx, a.redis, a.db, a.mongoClient)...)
		return errs
	})
}
