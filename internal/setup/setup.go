package setup

import (
	"context"
	"log"

	"github.com/Yellow-Beans/Booty/internal/database"
	"github.com/Yellow-Beans/Booty/internal/setup/config"
	"go.uber.org/zap"
)

// App bundles all core dependencies and services needed by the application.
// Each field represents a major subsystem that needs initialization and cleanup.
type App struct {
	Config    *config.Config  // Application configuration
	ConfigDir string          // Directory the config files were loaded from
	Logger    *zap.Logger     // Main application logger
	DBLogger  *zap.Logger     // Database-specific logger
	DB        database.Client // Database connection pool
}

// InitializeApp bootstraps all application dependencies in the correct order,
// ensuring each component has its required dependencies available.
func InitializeApp(ctx context.Context, logDir string) (*App, error) {
	// Load app configuration
	cfg, configDir, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	// Logging system is initialized next to capture setup issues
	logger, dbLogger, err := GetLoggers(logDir, cfg.Common.Debug.LogLevel, cfg.Common.Debug.MaxLogsToKeep)
	if err != nil {
		return nil, err
	}

	// Open the activity store; the schema is created on first use
	db, err := database.NewConnection(ctx, &cfg.Common.Storage, dbLogger.Named("database"))
	if err != nil {
		return nil, err
	}

	// Bundle all initialized components
	return &App{
		Config:    cfg,
		ConfigDir: configDir,
		Logger:    logger,
		DBLogger:  dbLogger,
		DB:        db,
	}, nil
}

// Cleanup ensures graceful shutdown of all components in reverse initialization order.
// Logs but does not fail on cleanup errors to ensure all components get cleanup attempts.
func (s *App) Cleanup(context.Context) {
	// Sync buffered logs before shutdown
	if err := s.Logger.Sync(); err != nil {
		log.Printf("Failed to sync logger: %v", err)
	}

	if err := s.DBLogger.Sync(); err != nil {
		log.Printf("Failed to sync DB logger: %v", err)
	}

	// Close database connections
	if err := s.DB.Close(); err != nil {
		log.Printf("Failed to close database connection: %v", err)
	}
}
