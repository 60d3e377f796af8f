package handlers

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/AhmedAmineMachat/Projet-IOT/internal/config"
	"github.com/AhmedAmineMachat/Projet-IOT/internal/gateway"
	"github.com/AhmedAmineMachat/Projet-IOT/internal/hub"
	"github.com/AhmedAmineMachat/Projet-IOT/internal/router"
	"github.com/AhmedAmineMachat/Projet-IOT/internal/store"
	"github.com/AhmedAmineMachat/Projet-IOT/internal/util"
)

// RateLimiterWithTime tracks a per-client limiter and its last use so stale
// entries can be evicted.
type RateLimiterWithTime struct {
	Limiter    *rate.Limiter
	LastAccess time.Time
}

// App aggregates everything the HTTP layer needs.
type App struct {
	Config    *config.Config
	Store     *store.Store
	Router    *router.Router
	Gateway   *gateway.Gateway
	Hub       *hub.Hub
	StartTime time.Time

	LimiterMap   map[string]*RateLimiterWithTime
	LimiterMutex sync.RWMutex
}

func NewApp(cfg *config.Config, st *store.Store, rt *router.Router, gw *gateway.Gateway, h *hub.Hub) *App {
	return &App{
		Config:     cfg,
		Store:      st,
		Router:     rt,
		Gateway:    gw,
		Hub:        h,
		StartTime:  time.Now(),
		LimiterMap: make(map[string]*RateLimiterWithTime),
	}
}

// StartCleanupRoutines launches the background eviction of stale rate
// limiters.
func (app *App) StartCleanupRoutines() {
	go func() {
		ticker := time.NewTicker(30 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			app.cleanupStaleRateLimiters()
		}
	}()
	util.LogInfo("Started cleanup routine for rate limiters")
}

func (app *App) cleanupStaleRateLimiters() {
	app.LimiterMutex.Lock()
	defer app.LimiterMutex.Unlock()

	cutoffTime := time.Now().Add(-app.Config.RateLimiterTTL)
	removedCount := 0
	for key, limWithTime := range app.LimiterMap {
		if limWithTime.LastAccess.Before(cutoffTime) {
			delete(app.LimiterMap, key)
			removedCount++
		}
	}
	if removedCount > 0 {
		util.LogInfo("Cleaned up %d stale rate limiters", removedCount)
	}
}
