package handler

import (
	"time"

	"github.com/coursepulse/internal/logger"
	"github.com/coursepulse/internal/service"
	"gorm.io/gorm"
)

// API bundles shared dependencies for HTTP handlers.
type API struct {
	db            *gorm.DB
	progress      *service.ProgressService
	log           *logger.Logger
	now           func() time.Time
	internalToken string
}

// Options configures the progress engine behind the handlers.
type Options struct {
	Location      *time.Location
	CaloriesPerKg float64
	StreakCache   service.StreakCache
	Logger        *logger.Logger
	// InternalToken guards the purchase-flow endpoints; empty disables them.
	InternalToken string
	// Now overrides the clock, mainly for tests.
	Now func() time.Time
}

// NewAPI constructs a handler set with shared services.
func NewAPI(db *gorm.DB, opts Options) *API {
	log := logger.OrNop(opts.Logger)
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &API{
		db: db,
		progress: service.NewProgressService(db, service.ProgressOptions{
			Location:      opts.Location,
			CaloriesPerKg: opts.CaloriesPerKg,
			StreakCache:   opts.StreakCache,
			Logger:        log,
		}),
		log:           log.With("component", "http"),
		now:           now,
		internalToken: opts.InternalToken,
	}
}

// Logger exposes the request logger used by middleware.
func (a *API) Logger() *logger.Logger {
	return a.log
}
