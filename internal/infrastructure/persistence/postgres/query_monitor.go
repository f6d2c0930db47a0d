// Package postgres provides query performance monitoring
package postgres

import (
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// QueryMonitor tracks and analyzes query performance
type QueryMonitor struct {
	logger        *zap.Logger
	slowThreshold time.Duration
	mu            sync.RWMutex
	stats         QueryStats
	slowQueries   []SlowQuery
	maxSlowLogs   int
}

// QueryStats holds aggregated query statistics
type QueryStats struct {
	TotalQueries     int64         `json:"total_queries"`
	SlowQueries      int64         `json:"slow_queries"`
	FailedQueries    int64         `json:"failed_queries"`
	AverageQueryTime time.Duration `json:"average_query_time"`
	TotalQueryTime   time.Duration `json:"total_query_time"`
	LastReset        time.Time     `json:"last_reset"`
}

// SlowQuery represents a slow query with context
type SlowQuery struct {
	SQL       string        `json:"sql"`
	Duration  time.Duration `json:"duration"`
	Timestamp time.Time     `json:"timestamp"`
	Error     string        `json:"error,omitempty"`
}

type queryContext struct {
	startTime time.Time
	sql       string
}

// NewQueryMonitor creates a new query monitor
func NewQueryMonitor(logger *zap.Logger, slowThreshold time.Duration) *QueryMonitor {
	if slowThreshold <= 0 {
		slowThreshold = 100 * time.Millisecond
	}
	return &QueryMonitor{
		logger:        logger,
		slowThreshold: slowThreshold,
		stats:         QueryStats{LastReset: time.Now()},
		slowQueries:   make([]SlowQuery, 0),
		maxSlowLogs:   1000,
	}
}

// BeforeQuery is called before query execution
func (qm *QueryMonitor) BeforeQuery(db *gorm.DB) {
	if db.Statement == nil {
		return
	}

	db.InstanceSet("query_monitor_context", &queryContext{
		startTime: time.Now(),
		sql:       db.Statement.SQL.String(),
	})
}

// AfterQuery is called after query execution
func (qm *QueryMonitor) AfterQuery(db *gorm.DB) {
	if db.Statement == nil {
		return
	}

	ctxInterface, exists := db.InstanceGet("query_monitor_context")
	if !exists {
		return
	}

	ctx, ok := ctxInterface.(*queryContext)
	if !ok {
		return
	}

	qm.recordQuery(ctx.sql, time.Since(ctx.startTime), db.Error)
}

func (qm *QueryMonitor) recordQuery(sql string, duration time.Duration, err error) {
	qm.mu.Lock()
	defer qm.mu.Unlock()

	qm.stats.TotalQueries++
	qm.stats.TotalQueryTime += duration
	qm.stats.AverageQueryTime = qm.stats.TotalQueryTime / time.Duration(qm.stats.TotalQueries)

	if err != nil {
		qm.stats.FailedQueries++
	}

	if duration > qm.slowThreshold {
		qm.stats.SlowQueries++

		slowQuery := SlowQuery{
			SQL:       qm.sanitizeSQL(sql),
			Duration:  duration,
			Timestamp: time.Now(),
		}
		if err != nil {
			slowQuery.Error = err.Error()
		}

		qm.recordSlowQuery(slowQuery)

		qm.logger.Warn("Slow query detected",
			zap.Duration("duration", duration),
			zap.String("sql", slowQuery.SQL),
			zap.Error(err),
		)
	}
}

func (qm *QueryMonitor) recordSlowQuery(query SlowQuery) {
	if len(qm.slowQueries) >= qm.maxSlowLogs {
		qm.slowQueries = qm.slowQueries[1:]
	}
	qm.slowQueries = append(qm.slowQueries, query)
}

// sanitizeSQL removes sensitive data from SQL for logging
func (qm *QueryMonitor) sanitizeSQL(sql string) string {
	sanitized := strings.ReplaceAll(sql, "'", "?")
	if len(sanitized) > 500 {
		sanitized = sanitized[:500] + "..."
	}
	return sanitized
}

// GetStats returns current query statistics
func (qm *QueryMonitor) GetStats() QueryStats {
	qm.mu.RLock()
	defer qm.mu.RUnlock()

	return qm.stats
}

// GetSlowQueries returns the most recent slow queries
func (qm *QueryMonitor) GetSlowQueries(limit int) []SlowQuery {
	qm.mu.RLock()
	defer qm.mu.RUnlock()

	if limit == 0 || limit > len(qm.slowQueries) {
		limit = len(qm.slowQueries)
	}

	start := len(qm.slowQueries) - limit
	result := make([]SlowQuery, limit)
	copy(result, qm.slowQueries[start:])

	return result
}

// ResetStats resets all statistics
func (qm *QueryMonitor) ResetStats() {
	qm.mu.Lock()
	defer qm.mu.Unlock()

	qm.stats = QueryStats{LastReset: time.Now()}
	qm.slowQueries = make([]SlowQuery, 0)
}
