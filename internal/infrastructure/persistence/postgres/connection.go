// Package postgres provides PostgreSQL database connection and management
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/dbresolver"

	"github.com/yambati03/touille/internal/infrastructure/config"
)

// ConnectionManager manages the PostgreSQL connection with pooling,
// optional read replicas and query monitoring.
type ConnectionManager struct {
	config       *config.Config
	logger       *zap.Logger
	db           *gorm.DB
	sqlDB        *sql.DB
	queryMonitor *QueryMonitor
}

// NewConnectionManager opens the primary connection, registers the
// configured replicas and installs query monitoring.
func NewConnectionManager(cfg *config.Config, log *zap.Logger) (*ConnectionManager, error) {
	cm := &ConnectionManager{
		config:       cfg,
		logger:       log,
		queryMonitor: NewQueryMonitor(log, cfg.Database.SlowQueryThreshold),
	}

	if err := cm.open(); err != nil {
		return nil, err
	}

	if err := cm.registerReplicas(); err != nil {
		log.Warn("Failed to register read replicas", zap.Error(err))
	}

	log.Info("Database connection manager initialized",
		zap.Int("max_open_conns", cfg.Database.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.Database.MaxIdleConns),
		zap.Duration("conn_max_lifetime", cfg.Database.ConnMaxLifetime),
		zap.Duration("slow_query_threshold", cfg.Database.SlowQueryThreshold),
	)

	return cm, nil
}

func (cm *ConnectionManager) open() error {
	db, err := gorm.Open(postgres.Open(cm.config.GetDSN()), &gorm.Config{
		Logger:                 cm.createGORMLogger(),
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cm.config.Database.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cm.config.Database.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cm.config.Database.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cm.config.Database.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	cm.db = db
	cm.sqlDB = sqlDB

	if err := cm.installQueryMonitoring(); err != nil {
		cm.logger.Warn("Failed to install query monitoring", zap.Error(err))
	}

	return nil
}

// registerReplicas routes reads through the configured replica DSNs.
func (cm *ConnectionManager) registerReplicas() error {
	dsns := cm.config.Database.ReplicaDSNs
	if len(dsns) == 0 {
		return nil
	}

	replicas := make([]gorm.Dialector, len(dsns))
	for i, dsn := range dsns {
		replicas[i] = postgres.Open(dsn)
	}

	err := cm.db.Use(dbresolver.Register(dbresolver.Config{
		Replicas: replicas,
		Policy:   dbresolver.RandomPolicy{},
	}))
	if err != nil {
		return fmt.Errorf("failed to register read replicas: %w", err)
	}

	cm.logger.Info("Read replicas configured", zap.Int("replica_count", len(dsns)))
	return nil
}

func (cm *ConnectionManager) createGORMLogger() logger.Interface {
	logLevel := logger.Warn
	switch cm.config.Database.LogLevel {
	case "debug":
		logLevel = logger.Info
	case "error":
		logLevel = logger.Error
	case "silent":
		logLevel = logger.Silent
	}

	return logger.New(
		&gormLogWriter{logger: cm.logger},
		logger.Config{
			SlowThreshold:             cm.config.Database.SlowQueryThreshold,
			LogLevel:                  logLevel,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}

func (cm *ConnectionManager) installQueryMonitoring() error {
	if err := cm.db.Callback().Query().Before("gorm:query").
		Register("monitor:before", cm.queryMonitor.BeforeQuery); err != nil {
		return err
	}

	return cm.db.Callback().Query().After("gorm:query").
		Register("monitor:after", cm.queryMonitor.AfterQuery)
}

// GetDB returns the main database connection
func (cm *ConnectionManager) GetDB() *gorm.DB {
	return cm.db
}

// GetQueryMonitor returns the query monitor
func (cm *ConnectionManager) GetQueryMonitor() *QueryMonitor {
	return cm.queryMonitor
}

// HealthCheck performs a health check on the database connection
func (cm *ConnectionManager) HealthCheck(ctx context.Context) error {
	if err := cm.sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// Close closes the database connection
func (cm *ConnectionManager) Close() error {
	if cm.sqlDB == nil {
		return nil
	}
	return cm.sqlDB.Close()
}

// gormLogWriter routes GORM log output through zap
type gormLogWriter struct {
	logger *zap.Logger
}

func (w *gormLogWriter) Printf(format string, args ...interface{}) {
	w.logger.Sugar().Debugf(format, args...)
}
