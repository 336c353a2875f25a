package health

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"golang.org/x/sync/errgroup"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

type Checker interface {
	Check(ctx context.Context) error
	Name() string
}

type Health struct {
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks"`
}

type CheckResult struct {
	Status    Status    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type registration struct {
	checker  Checker
	optional bool
}

// CheckerRegistry runs every registered check concurrently. A failing required check makes
// the service unhealthy; a failing optional one only degrades it.
type CheckerRegistry struct {
	checks  []registration
	timeout time.Duration
}

func NewCheckerRegistry() *CheckerRegistry {
	return &CheckerRegistry{timeout: 5 * time.Second}
}

func (r *CheckerRegistry) Register(checker Checker) {
	r.checks = append(r.checks, registration{checker: checker})
}

func (r *CheckerRegistry) RegisterOptional(checker Checker) {
	r.checks = append(r.checks, registration{checker: checker, optional: true})
}

func (r *CheckerRegistry) Check(ctx context.Context) Health {
	results := make([]CheckResult, len(r.checks))

	var g errgroup.Group
	for i, reg := range r.checks {
		g.Go(func() error {
			checkCtx, cancel := context.WithTimeout(ctx, r.timeout)
			defer cancel()
			results[i] = r.run(checkCtx, reg)
			return nil
		})
	}
	_ = g.Wait()

	h := Health{
		Status:    StatusHealthy,
		Timestamp: time.Now(),
		Checks:    make(map[string]CheckResult, len(r.checks)),
	}
	for i, reg := range r.checks {
		h.Checks[reg.checker.Name()] = results[i]
		h.Status = worse(h.Status, results[i].Status)
	}
	return h
}

func (r *CheckerRegistry) run(ctx context.Context, reg registration) CheckResult {
	result := CheckResult{Status: StatusHealthy, Timestamp: time.Now()}
	if err := reg.checker.Check(ctx); err != nil {
		result.Message = err.Error()
		result.Status = StatusUnhealthy
		if reg.optional {
			result.Status = StatusDegraded
		}
	}
	return result
}

func worse(a, b Status) Status {
	rank := map[Status]int{StatusHealthy: 0, StatusDegraded: 1, StatusUnhealthy: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}

// Handler serves the registry as JSON: 200 while healthy or degraded, 503 otherwise.
func (r *CheckerRegistry) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := r.Check(c.Request.Context())
		status := http.StatusOK
		if h.Status == StatusUnhealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, h)
	}
}

// FuncChecker adapts a plain function, e.g. a broker connectivity probe.
type FuncChecker struct {
	name string
	fn   func(ctx context.Context) error
}

func NewFuncChecker(name string, fn func(ctx context.Context) error) *FuncChecker {
	return &FuncChecker{name: name, fn: fn}
}

func (c *FuncChecker) Name() string {
	return c.name
}

func (c *FuncChecker) Check(ctx context.Context) error {
	return c.fn(ctx)
}

func pingChecker(name string, ping func(ctx context.Context) error) Checker {
	return NewFuncChecker(name, func(ctx context.Context) error {
		if err := ping(ctx); err != nil {
			return fmt.Errorf("%s ping failed: %w", name, err)
		}
		return nil
	})
}

func NewPostgreSQLChecker(db *sql.DB) Checker {
	return pingChecker("postgresql", db.PingContext)
}

func NewRedisChecker(client *redis.Client) Checker {
	return pingChecker("redis", func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
}

func NewMongoDBChecker(client *mongo.Client) Checker {
	return pingChecker("mongodb", func(ctx context.Context) error {
		return client.Ping(ctx, readpref.Primary())
	})
}
