package database

import (
	"time"

	"github.com/Yellow-Beans/Booty/internal/database/models"
	"go.uber.org/zap"
	"zombiezen.com/go/sqlite/sqlitex"
)

// Repository provides access to all database models.
type Repository struct {
	activity *models.ActivityModel
}

// NewRepository creates a new repository instance with all models.
func NewRepository(pool *sqlitex.Pool, busyTimeout time.Duration, logger *zap.Logger) *Repository {
	return &Repository{
		activity: models.NewActivity(pool, busyTimeout, logger),
	}
}

// Activity returns the activity model repository.
func (r *Repository) Activity() *models.ActivityModel {
	return r.activity
}
