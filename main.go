package main

import (
	"context"
	"html/template"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	ginGzip "github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/AhmedAmineMachat/Projet-IOT/internal/config"
	"github.com/AhmedAmineMachat/Projet-IOT/internal/constants"
	"github.com/AhmedAmineMachat/Projet-IOT/internal/gateway"
	"github.com/AhmedAmineMachat/Projet-IOT/internal/handlers"
	"github.com/AhmedAmineMachat/Projet-IOT/internal/hub"
	"github.com/AhmedAmineMachat/Projet-IOT/internal/models"
	approuter "github.com/AhmedAmineMachat/Projet-IOT/internal/router"
	"github.com/AhmedAmineMachat/Projet-IOT/internal/sim"
	"github.com/AhmedAmineMachat/Projet-IOT/internal/store"
	"github.com/AhmedAmineMachat/Projet-IOT/internal/util"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	util.LogInfo("Starting IoT dashboard in %s mode", map[bool]string{true: "production", false: "development"}[cfg.IsProduction])

	st, err := store.Open(cfg.DataFile)
	if err != nil {
		util.LogFatal("Failed to open store %s: %v", cfg.DataFile, err)
	}
	defer st.Close()
	st.SeedAdmin(cfg.AdminEmail, cfg.AdminUsername, cfg.AdminPassword)

	eventHub := hub.New()
	st.SetLogObserver(func(entry models.LogEntry) {
		eventHub.Broadcast(hub.Event{Type: hub.EventLog, Message: entry.Message, Time: entry.Time})
	})

	gw := gateway.New(cfg, st)
	rt := approuter.New(cfg, st, gw)

	simulator := sim.New(cfg.SimulationInterval, cfg.TempMin, cfg.TempMax, cfg.TopicTemperature, gw, rt.SimulationActive, rt.HandleReading)
	rt.AttachSimulator(simulator)

	gw.SetReadingHandler(rt.HandleReading)
	gw.SetStatusHandler(func(connected bool) {
		eventHub.Broadcast(hub.Event{Type: hub.EventMQTT, On: connected})
	})
	rt.SetReadingObserver(func(value float64, status string) {
		eventHub.Broadcast(hub.Event{Type: hub.EventTemperature, Value: value, Status: status})
	})

	rt.Restore()

	app := handlers.NewApp(cfg, st, rt, gw, eventHub)

	if cfg.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	router.Use(handlers.RequestIDMiddleware())
	router.Use(handlers.SecurityHeadersMiddleware())
	router.Use(app.CSRFMiddleware())
	router.Use(app.ValidateCSRFMiddleware())
	router.Use(ginGzip.Gzip(ginGzip.DefaultCompression,
		ginGzip.WithExcludedExtensions([]string{".svg", ".ico", ".png", ".jpg", ".jpeg", ".gif"}),
		ginGzip.WithExcludedPaths([]string{constants.RouteWS})))
	router.Use(func(c *gin.Context) {
		app.ApplyCacheHeaders(c, cfg.IsProduction)
	})

	if err := router.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		util.LogWarn("Failed to set trusted proxies: %v", err)
	}

	master := template.New("")
	if _, err := master.ParseGlob("templates/*.html"); err != nil {
		util.LogFatal("Failed to parse templates: %v", err)
	}
	if _, err := master.ParseGlob("templates/partials/*.html"); err != nil {
		util.LogFatal("Failed to parse partial templates: %v", err)
	}
	router.SetHTMLTemplate(master)
	if util.DirExists("./static") {
		router.Static("/static", "./static")
	} else {
		util.LogWarn("Static directory not found, assets will not be served")
	}

	router.GET(constants.RouteHome, app.HomeHandler)
	router.POST(constants.RouteLogin, app.RateLimitMiddleware(), app.LoginHandler)
	router.POST(constants.RouteRegister, app.RateLimitMiddleware(), app.RegisterHandler)
	router.POST(constants.RouteLogout, app.LogoutHandler)
	router.POST(constants.RouteSelectDevice, app.SelectDeviceHandler)
	router.POST(constants.RouteAdmin, app.AdminHandler)
	router.POST(constants.RouteBack, app.BackHandler)
	router.POST(constants.RouteDeleteUser, app.RateLimitMiddleware(), app.DeleteUserHandler)
	router.POST(constants.RouteLed, app.RateLimitMiddleware(), app.LedHandler)
	router.POST(constants.RouteSimToggle, app.SimToggleHandler)
	router.GET(constants.RouteWS, app.WSHandler)
	router.GET(constants.RouteHealthz, app.HealthzHandler)

	app.StartCleanupRoutines()

	startServer(router, cfg, func() {
		simulator.Stop()
		gw.Disconnect()
	})
}

func startServer(router *gin.Engine, cfg *config.Config, onShutdown func()) {
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	idleConnsClosed := make(chan struct{})
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, syscall.SIGINT, syscall.SIGTERM)
		<-sigint
		util.LogInfo("Shutdown signal received, shutting down server gracefully...")
		onShutdown()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			util.LogWarn("HTTP server Shutdown: %v", err)
		}
		close(idleConnsClosed)
	}()

	util.LogInfo("Server starting on http://localhost:%s", cfg.HTTPPort)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		util.LogFatal("Server failed to start: %v", err)
	}
	<-idleConnsClosed
	util.LogInfo("Server shutdown complete")
}
