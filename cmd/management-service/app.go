package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.mongodb.org/mongo-driver/mongo"

	_ "github.com/lib/pq" // PostgreSQL driver

	"bookflow/internal/broker"
	"bookflow/internal/config"
	"bookflow/internal/constants"
	"bookflow/internal/decisionlog"
	"bookflow/internal/dispatch"
	"bookflow/internal/logger"
	"bookflow/internal/management"
	"bookflow/pkg/bootstrap"
	"bookflow/pkg/health"
	"bookflow/pkg/metrics"
	"bookflow/pkg/middleware"
	"bookflow/pkg/ratelimit"
	"bookflow/pkg/tracing"
)

const serviceName = "management-service"

type App struct {
	*bootstrap.Base
	dbConnector    *bootstrap.DatabaseConnector
	db             *sql.DB
	mongoClient    *mongo.Client
	limiter        *ratelimit.Limiter
	server         *http.Server
	router         *gin.Engine
	tracerProvider *tracing.TracerProvider
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName(serviceName)
	}
	return &App{
		Base:        bootstrap.NewBase(cfg, log),
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	tp, err := tracing.Init(a.Config.Tracing, serviceName)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	if err := a.initDatabase(ctx); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	a.initMongoDB(ctx)

	svc, err := a.initService(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize service: %w", err)
	}

	a.initRouter(svc)
	a.initServer()

	return nil
}

func (a *App) initDatabase(ctx context.Context) error {
	db, err := a.dbConnector.InitPostgreSQL(ctx)
	if err != nil {
		return err
	}
	if db == nil {
		return fmt.Errorf("postgres is required by %s", serviceName)
	}
	a.db = db
	return nil
}

// initMongoDB connects the decision log reader. The API runs without it.
func (a *App) initMongoDB(ctx context.Context) {
	if a.Config.Database.MongoDB.URI == "" {
		return
	}

	initCtx, cancel := context.WithTimeout(ctx, constants.DefaultInitTimeout)
	defer cancel()

	client, err := a.dbConnector.InitMongoDB(initCtx)
	if err != nil {
		a.Logger.WarnwCtx(initCtx, "MongoDB connection failed, decision history disabled", "error", err)
		return
	}
	a.mongoClient = client
}

func (a *App) initService(ctx context.Context) (management.Service, error) {
	opts := []management.ServiceOption{
		management.WithVersioning(management.NewVersioningRepository(a.db)),
		management.WithDispatchConfig(a.Config.Dispatch),
		management.WithSettingsStore(dispatch.NewSettingsStore(a.db)),
	}

	if a.mongoClient != nil {
		store := decisionlog.NewStore(a.dbConnector.MongoDatabase(a.mongoClient), serviceName)
		opts = append(opts, management.WithDecisions(store))
	}

	if topic := broker.ConfigTopic(a.Config.Broker); topic != "" {
		if err := a.InitProducer(); err != nil {
			a.Logger.WarnwCtx(ctx, "Failed to create config event producer, config events will be disabled", "error", err)
		} else {
			opts = append(opts, management.WithConfigEvents(management.NewConfigEventProducer(a.Producer, topic)))
			a.Logger.InfowCtx(ctx, "Config event producer initialized", "topic", topic)
		}
	}

	return management.NewService(management.NewRepository(a.db), a.Logger, opts...)
}

func (a *App) initRouter(svc management.Service) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	if a.Config.Tracing.Enabled {
		router.Use(tracing.GinMiddleware(serviceName))
	}

	router.Use(middleware.Recover(a.Logger))
	router.Use(middleware.RequestID())
	router.Use(middleware.AccessLog(a.Logger))

	metrics.RegisterManagementMetrics()

	if rl := a.Config.Management.RateLimit; rl.Enabled {
		a.limiter = ratelimit.NewLimiter(ratelimit.RateLimitConfig{
			RPS:             rl.RPS,
			Burst:           rl.Burst,
			CleanupInterval: time.Duration(rl.CleanupInterval) * time.Second,
			MaxAge:          time.Duration(rl.MaxAge) * time.Second,
		})
		router.Use(a.limiter.Middleware())
		a.Logger.Infow("Rate limiting enabled", "rps", rl.RPS, "burst", rl.Burst)
	}

	healthRegistry := health.NewCheckerRegistry()
	healthRegistry.Register(health.NewPostgreSQLChecker(a.db))
	if a.mongoClient != nil {
		healthRegistry.RegisterOptional(health.NewMongoDBChecker(a.mongoClient))
	}

	router.GET("/health", healthRegistry.Handler())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := router.Group("/api/v1")
	if auth := a.Config.Management.Auth; auth.Enabled {
		v1.Use(middleware.JWTAuth(middleware.AuthConfig{Secret: auth.JWTSecret, Issuer: auth.Issuer}))
		a.Logger.Info("JWT authentication enabled")
	}
	management.NewHandler(svc, a.Logger).RegisterRoutes(v1)

	a.router = router
}

func (a *App) initServer() {
	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      a.router,
		ReadTimeout:  a.Config.Server.ReadTimeoutSeconds * time.Second,
		WriteTimeout: a.Config.Server.WriteTimeoutSeconds * time.Second,
	}
}

func (a *App) Run(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		a.Logger.InfowCtx(ctx, "Server listening", "port", a.Config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		return a.Shutdown(ctx)
	case err := <-errChan:
		if shutdownErr := a.Shutdown(ctx); shutdownErr != nil {
			a.Logger.ErrorwCtx(ctx, "Shutdown after server failure", "error", shutdownErr)
		}
		return err
	}
}

func (a *App) Shutdown(ctx context.Context) error {
	return a.Base.Shutdown(ctx, func(ctx context.Context) []error {
		var errs []error

		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()

		if a.server != nil {
			if err := a.server.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
			}
		}

		if a.limiter != nil {
			a.limiter.Stop()
		}

		if a.tracerProvider != nil {
			if err := a.tracerProvider.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
			}
		}

		errs = append(errs, a.dbConnector.ShutdownDatabases(shutdownCtx, nil, a.db, a.mongoClient)...)
		return errs
	})
}
