// Package health reports liveness and readiness of the service's backing
// dependencies (Postgres, Redis) for load balancers and orchestration probes.
package health

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Probe pings one dependency. A nil error means healthy.
type Probe func(ctx context.Context) error

// DependencyStatus is the result of a single probe.
type DependencyStatus struct {
	Name      string `json:"name"`
	Healthy   bool   `json:"healthy"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

// Checker runs registered probes with a bounded timeout.
type Checker struct {
	mu      sync.Mutex
	probes  map[string]Probe
	timeout time.Duration
	logger  *zap.Logger
}

// NewChecker creates a Checker. A zero timeout defaults to 3 seconds.
func NewChecker(timeout time.Duration, logger *zap.Logger) *Checker {
	if timeout == 0 {
		timeout = 3 * time.Second
	}
	return &Checker{
		probes:  make(map[string]Probe),
		timeout: timeout,
		logger:  logger,
	}
}

// RegisterProbe adds a named dependency probe.
func (c *Checker) RegisterProbe(name string, probe Probe) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.probes[name] = probe
}

// Check runs all probes concurrently and reports per-dependency status.
// The second return value is true only when every dependency is healthy.
func (c *Checker) Check(ctx context.Context) ([]DependencyStatus, bool) {
	c.mu.Lock()
	probes := make(map[string]Probe, len(c.probes))
	for name, p := range c.probes {
		probes[name] = p
	}
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		statuses []DependencyStatus
		allOK    = true
	)
	for name, probe := range probes {
		wg.Add(1)
		go func(name string, probe Probe) {
			defer wg.Done()
			start := time.Now()
			err := probe(ctx)
			status := DependencyStatus{
				Name:      name,
				Healthy:   err == nil,
				LatencyMS: time.Since(start).Milliseconds(),
			}
			if err != nil {
				status.Error = err.Error()
				c.logger.Warn("health probe failed", zap.String("dependency", name), zap.Error(err))
			}
			mu.Lock()
			statuses = append(statuses, status)
			if err != nil {
				allOK = false
			}
			mu.Unlock()
		}(name, probe)
	}
	wg.Wait()

	return statuses, allOK
}

// Register mounts the liveness and readiness endpoints on the router.
// Liveness always answers 200; readiness runs the probes.
func (c *Checker) Register(r gin.IRoutes) {
	r.GET("/healthz", func(g *gin.Context) {
		g.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/readyz", func(g *gin.Context) {
		statuses, ok := c.Check(g.Request.Context())
		code := http.StatusOK
		if !ok {
			code = http.StatusServiceUnavailable
		}
		g.JSON(code, gin.H{"ready": ok, "dependencies": statuses})
	})
}
