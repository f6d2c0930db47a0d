package healthcheck

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// DatabaseChecker checks database health through the standard pool
type DatabaseChecker struct {
	db *sql.DB
}

// NewDatabaseChecker creates a new database checker
func NewDatabaseChecker(db *sql.DB) *DatabaseChecker {
	return &DatabaseChecker{db: db}
}

// Check performs database health check
func (d *DatabaseChecker) Check(ctx context.Context) Check {
	start := time.Now()
	check := Check{
		Name:        "database",
		LastChecked: start,
	}

	err := d.db.PingContext(ctx)
	check.Duration = time.Since(start)

	if err != nil {
		check.Status = StatusUnhealthy
		check.Message = err.Error()
		return check
	}

	stats := d.db.Stats()
	check.Status = StatusHealthy
	check.Metadata = map[string]interface{}{
		"open_conns": stats.OpenConnections,
		"in_use":     stats.InUse,
		"idle":       stats.Idle,
		"max_open":   stats.MaxOpenConnections,
	}

	if stats.MaxOpenConnections > 0 {
		utilization := float64(stats.InUse) / float64(stats.MaxOpenConnections) * 100
		if utilization > 90 {
			check.Status = StatusDegraded
			check.Message = "High connection pool utilization"
		}
	}

	return check
}

// PingChecker probes anything with a ping function, such as the Redis
// client wrapper.
type PingChecker struct {
	name string
	ping func(ctx context.Context) error
}

// NewPingChecker creates a new ping checker
func NewPingChecker(name string, ping func(ctx context.Context) error) *PingChecker {
	return &PingChecker{name: name, ping: ping}
}

// Check performs the ping
func (p *PingChecker) Check(ctx context.Context) Check {
	start := time.Now()
	check := Check{
		Name:        p.name,
		LastChecked: start,
	}

	err := p.ping(ctx)
	check.Duration = time.Since(start)

	if err != nil {
		check.Status = StatusUnhealthy
		check.Message = err.Error()
		return check
	}

	check.Status = StatusHealthy
	return check
}

// BinaryChecker verifies an external tool is installed. The pipeline
// shells out to yt-dlp and whisper, so a missing binary means
// extraction cannot run at all.
type BinaryChecker struct {
	name   string
	binary string
}

// NewBinaryChecker creates a new binary checker
func NewBinaryChecker(name, binary string) *BinaryChecker {
	return &BinaryChecker{name: name, binary: binary}
}

// Check resolves the binary on PATH
func (b *BinaryChecker) Check(ctx context.Context) Check {
	start := time.Now()
	check := Check{
		Name:        b.name,
		LastChecked: start,
	}

	path, err := exec.LookPath(b.binary)
	check.Duration = time.Since(start)

	if err != nil {
		check.Status = StatusUnhealthy
		check.Message = b.binary + " not found on PATH"
		return check
	}

	check.Status = StatusHealthy
	check.Metadata = map[string]interface{}{"path": path}
	return check
}

// WorkdirChecker verifies the media working directory accepts writes.
type WorkdirChecker struct {
	path string
}

// NewWorkdirChecker creates a new working directory checker
func NewWorkdirChecker(path string) *WorkdirChecker {
	return &WorkdirChecker{path: path}
}

// Check writes and removes a probe file
func (w *WorkdirChecker) Check(ctx context.Context) Check {
	start := time.Now()
	check := Check{
		Name:        "workdir",
		LastChecked: start,
		Metadata:    map[string]interface{}{"path": w.path},
	}

	if err := os.MkdirAll(w.path, 0o755); err != nil {
		check.Status = StatusUnhealthy
		check.Message = err.Error()
		check.Duration = time.Since(start)
		return check
	}

	probe := filepath.Join(w.path, ".healthcheck")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		check.Status = StatusUnhealthy
		check.Message = err.Error()
		check.Duration = time.Since(start)
		return check
	}
	os.Remove(probe)

	check.Status = StatusHealthy
	check.Duration = time.Since(start)
	return check
}

// ProviderChecker probes an AI provider through a circuit breaker so a
// dead provider fails fast instead of stalling every readiness poll.
type ProviderChecker struct {
	name    string
	probe   func(ctx context.Context) error
	breaker *CircuitBreaker
}

// NewProviderChecker creates a new provider checker
func NewProviderChecker(name string, probe func(ctx context.Context) error) *ProviderChecker {
	return &ProviderChecker{
		name:    name,
		probe:   probe,
		breaker: NewCircuitBreaker(name, DefaultCircuitBreakerConfig()),
	}
}

// Check runs the provider probe
func (p *ProviderChecker) Check(ctx context.Context) Check {
	start := time.Now()
	check := Check{
		Name:        p.name,
		LastChecked: start,
	}

	_, err := p.breaker.Execute(func() (interface{}, error) {
		return nil, p.probe(ctx)
	})
	check.Duration = time.Since(start)
	check.Metadata = map[string]interface{}{
		"circuit_state": p.breaker.GetState().String(),
	}

	if err != nil {
		check.Status = StatusUnhealthy
		check.Message = err.Error()
		return check
	}

	check.Status = StatusHealthy
	return check
}

// ExternalServiceChecker checks external service health over HTTP
type ExternalServiceChecker struct {
	name    string
	url     string
	timeout time.Duration
	client  *http.Client
}

// NewExternalServiceChecker creates a new external service checker
func NewExternalServiceChecker(name, url string, timeout time.Duration) *ExternalServiceChecker {
	return &ExternalServiceChecker{
		name:    name,
		url:     url,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
	}
}

// Check performs external service health check
func (e *ExternalServiceChecker) Check(ctx context.Context) Check {
	start := time.Now()
	check := Check{
		Name:        e.name,
		LastChecked: start,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.url, nil)
	if err != nil {
		check.Status = StatusUnhealthy
		check.Message = err.Error()
		check.Duration = time.Since(start)
		return check
	}

	resp, err := e.client.Do(req)
	check.Duration = time.Since(start)

	if err != nil {
		check.Status = StatusUnhealthy
		check.Message = err.Error()
		return check
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		check.Status = StatusHealthy
	case resp.StatusCode >= 500:
		check.Status = StatusUnhealthy
		check.Message = "Service returned error status"
	default:
		check.Status = StatusDegraded
		check.Message = "Service returned non-success status"
	}

	check.Metadata = map[string]interface{}{
		"status_code": resp.StatusCode,
		"url":         e.url,
	}

	return check
}

// CustomChecker allows for custom health check logic
type CustomChecker struct {
	name  string
	check func(ctx context.Context) (Status, string, interface{})
}

// NewCustomChecker creates a new custom checker
func NewCustomChecker(name string, check func(ctx context.Context) (Status, string, interface{})) *CustomChecker {
	return &CustomChecker{name: name, check: check}
}

// Check performs custom health check
func (c *CustomChecker) Check(ctx context.Context) Check {
	start := time.Now()

	status, message, metadata := c.check(ctx)

	return Check{
		Name:        c.name,
		Status:      status,
		Message:     message,
		Metadata:    metadata,
		LastChecked: start,
		Duration:    time.Since(start),
	}
}
