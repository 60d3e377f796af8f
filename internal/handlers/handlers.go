package handlers

import (
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/AhmedAmineMachat/Projet-IOT/internal/constants"
	"github.com/AhmedAmineMachat/Projet-IOT/internal/hub"
	"github.com/AhmedAmineMachat/Projet-IOT/internal/models"
	"github.com/AhmedAmineMachat/Projet-IOT/internal/util"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || strings.Contains(origin, r.Host)
	},
}

// viewData assembles the template input for the active view from the current
// application state.
func (app *App) viewData(c *gin.Context, extra gin.H) gin.H {
	state := app.Router.State()
	csrfToken, _ := c.Cookie("csrf_token")

	data := gin.H{
		"State":         state,
		"Devices":       models.DefaultDevices,
		"CSRFToken":     csrfToken,
		"MQTTConnected": app.Gateway.IsConnected(),
	}
	switch state.CurrentView {
	case constants.ViewAuth:
		data["ActiveTab"] = "login"
	case constants.ViewDashboard:
		data["Logs"] = app.Store.GetLogs()
		data["DeviceTitle"] = titleCase(state.CurrentDevice)
	case constants.ViewAdmin:
		users := app.Store.GetUsers()
		data["Users"] = users
		data["UserCount"] = len(users)
	}
	for k, v := range extra {
		data[k] = v
	}
	return data
}

// HomeHandler renders whichever view the state machine has active, so the
// browser can never show a view the router disagrees with.
func (app *App) HomeHandler(c *gin.Context) {
	c.HTML(http.StatusOK, app.Router.CurrentTemplate(), app.viewData(c, nil))
}

func (app *App) LoginHandler(c *gin.Context) {
	identifier := strings.TrimSpace(c.PostForm("identifier"))
	password := c.PostForm("password")

	res := app.Router.Login(identifier, password)
	if !res.OK {
		util.LogInfo("Login failed for %q", identifier)
		c.HTML(http.StatusOK, "auth.html", app.viewData(c, gin.H{
			"LoginError": res.Message,
			"ActiveTab":  "login",
		}))
		return
	}
	c.Redirect(http.StatusSeeOther, constants.RouteHome)
}

func (app *App) RegisterHandler(c *gin.Context) {
	email := strings.TrimSpace(c.PostForm("email"))
	username := strings.TrimSpace(c.PostForm("username"))
	password := c.PostForm("password")

	res := app.Router.Register(email, username, password)
	if !res.OK {
		c.HTML(http.StatusOK, "auth.html", app.viewData(c, gin.H{
			"RegisterError": res.Message,
			"ActiveTab":     "register",
		}))
		return
	}
	util.LogInfo("Registered user %s", username)
	c.HTML(http.StatusOK, "auth.html", app.viewData(c, gin.H{
		"RegisterSuccess": res.Message,
		"ActiveTab":       "login",
	}))
}

func (app *App) LogoutHandler(c *gin.Context) {
	app.Router.Logout()
	c.Redirect(http.StatusSeeOther, constants.RouteHome)
}

func (app *App) SelectDeviceHandler(c *gin.Context) {
	app.Router.SelectDevice(c.PostForm("device"))
	c.Redirect(http.StatusSeeOther, constants.RouteHome)
}

func (app *App) AdminHandler(c *gin.Context) {
	app.Router.OpenAdmin()
	c.Redirect(http.StatusSeeOther, constants.RouteHome)
}

func (app *App) BackHandler(c *gin.Context) {
	app.Router.Back()
	c.Redirect(http.StatusSeeOther, constants.RouteHome)
}

func (app *App) DeleteUserHandler(c *gin.Context) {
	app.Router.DeleteUser(c.PostForm("email"))
	c.Redirect(http.StatusSeeOther, constants.RouteHome)
}

// LedHandler switches the LED and mirrors the new state to subscribers.
func (app *App) LedHandler(c *gin.Context) {
	on := c.PostForm("state") == "on"
	app.Router.SetLed(on)
	app.Hub.Broadcast(hub.Event{Type: hub.EventLed, On: on})
	c.JSON(http.StatusOK, gin.H{"on": on})
}

func (app *App) SimToggleHandler(c *gin.Context) {
	active := c.PostForm("active") == "true"
	app.Router.ToggleSimulation(active)
	c.JSON(http.StatusOK, gin.H{"active": active})
}

// WSHandler upgrades the connection and hands it to the hub.
func (app *App) WSHandler(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		util.LogWarn("Websocket upgrade failed: %v", err)
		return
	}
	app.Hub.Add(conn)
}

func (app *App) HealthzHandler(c *gin.Context) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	uptime := time.Since(app.StartTime)
	state := app.Router.State()

	app.LimiterMutex.RLock()
	limiterCount := len(app.LimiterMap)
	app.LimiterMutex.RUnlock()

	c.JSON(http.StatusOK, gin.H{
		"status":           "ok",
		"env":              map[bool]string{true: "production", false: "development"}[app.Config.IsProduction],
		"view":             state.CurrentView,
		"mqtt_connected":   app.Gateway.IsConnected(),
		"ws_subscribers":   app.Hub.Count(),
		"active_limiters":  limiterCount,
		"registered_users": len(app.Store.GetUsers()),
		"memory_alloc_mb":  m.Alloc / 1024 / 1024,
		"memory_sys_mb":    m.Sys / 1024 / 1024,
		"memory_gc_count":  m.NumGC,
		"uptime":           util.FormatUptime(uptime),
		"timestamp":        time.Now().UTC().Format(time.RFC3339),
	})
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
