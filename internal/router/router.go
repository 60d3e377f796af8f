// Package router is the application state machine. It owns the single
// AppState instance, mediates every view transition, and is the only place
// allowed to start or stop the simulation timer, so the timer can never
// outlive the dashboard view.
package router

import (
	"sync"

	"github.com/samber/lo"

	"github.com/AhmedAmineMachat/Projet-IOT/internal/config"
	"github.com/AhmedAmineMachat/Projet-IOT/internal/constants"
	"github.com/AhmedAmineMachat/Projet-IOT/internal/models"
	"github.com/AhmedAmineMachat/Projet-IOT/internal/store"
	"github.com/AhmedAmineMachat/Projet-IOT/internal/util"
)

// MessageGateway is the router's view of the MQTT layer.
type MessageGateway interface {
	Connect()
	Publish(topic, payload string)
}

// SimulationTimer is the router's view of the simulator lifecycle.
type SimulationTimer interface {
	Start()
	Stop()
}

// View pairs a template with its entry/exit actions. Views are registered
// once at startup and never change afterwards.
type View struct {
	Template string
	Enter    func(r *Router)
	Exit     func(r *Router)
}

type Router struct {
	cfg   *config.Config
	store *store.Store
	gw    MessageGateway
	sim   SimulationTimer

	mu    sync.Mutex
	views map[string]View
	state models.AppState

	onReading func(value float64, status string)
}

func New(cfg *config.Config, st *store.Store, gw MessageGateway) *Router {
	r := &Router{
		cfg:   cfg,
		store: st,
		gw:    gw,
		views: make(map[string]View),
		state: models.AppState{
			CurrentView:      constants.ViewAuth,
			SimulationActive: true,
		},
	}
	r.registerDefaultViews()
	return r
}

// AttachSimulator wires the simulator in after construction; the simulator
// itself needs the router's callbacks, so the two are built in two phases.
func (r *Router) AttachSimulator(sim SimulationTimer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sim = sim
}

// SetReadingObserver registers the callback notified with each accepted
// temperature reading and its display status.
func (r *Router) SetReadingObserver(fn func(value float64, status string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onReading = fn
}

func (r *Router) registerDefaultViews() {
	r.views[constants.ViewAuth] = View{Template: "auth.html"}
	r.views[constants.ViewSelection] = View{Template: "selection.html"}
	r.views[constants.ViewDashboard] = View{
		Template: "dashboard.html",
		Enter: func(r *Router) {
			if r.sim != nil {
				r.sim.Start()
			}
		},
		Exit: func(r *Router) {
			if r.sim != nil {
				r.sim.Stop()
			}
		},
	}
	r.views[constants.ViewAdmin] = View{Template: "admin.html"}
}

// TransitionTo activates the named view. Unknown names are an error logged
// and ignored; the previous view stays active.
func (r *Router) TransitionTo(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitionLocked(name)
}

func (r *Router) transitionLocked(name string) {
	next, ok := r.views[name]
	if !ok {
		util.LogError("Unknown view %q, staying on %q", name, r.state.CurrentView)
		return
	}
	if current, ok := r.views[r.state.CurrentView]; ok && current.Exit != nil && r.state.CurrentView != name {
		current.Exit(r)
	}
	r.state.CurrentView = name
	if next.Enter != nil {
		next.Enter(r)
	}
}

// State returns a snapshot of the application state.
func (r *Router) State() models.AppState {
	r.mu.Lock()
	defer r.mu.Unlock()
	snapshot := r.state
	if r.state.CurrentUser != nil {
		user := *r.state.CurrentUser
		snapshot.CurrentUser = &user
	}
	return snapshot
}

// CurrentTemplate returns the template of the active view.
func (r *Router) CurrentTemplate() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.views[r.state.CurrentView].Template
}

// Restore re-enters the selection view from a persisted session, or lands on
// the auth view when nobody was logged in. Called once at startup.
func (r *Router) Restore() {
	session := r.store.GetSession()
	r.mu.Lock()
	defer r.mu.Unlock()
	if session == nil {
		r.transitionLocked(constants.ViewAuth)
		return
	}
	user := session.User
	r.state.CurrentUser = &user
	r.state.IsAdmin = session.IsAdmin
	util.LogInfo("Restored session for %s", user.Username)
	r.gw.Connect()
	r.transitionLocked(constants.ViewSelection)
}

// Login authenticates and, on success, enters the selection view. Admin
// status comes from the stored role, not from re-checking credentials.
func (r *Router) Login(identifier, password string) models.Result {
	user := r.store.Authenticate(identifier, password)
	if user == nil {
		if r.store.UserExists(identifier) != nil {
			return models.Result{OK: false, Message: constants.MsgWrongPassword}
		}
		return models.Result{OK: false, Message: constants.MsgUnknownUser}
	}

	isAdmin := user.Role == constants.RoleAdmin

	// One critical section for the user and the view: an interleaved logout
	// must never observe the selection view without a user.
	r.mu.Lock()
	r.state.CurrentUser = user
	r.state.IsAdmin = isAdmin
	r.transitionLocked(constants.ViewSelection)
	r.mu.Unlock()

	r.store.SaveSession(*user, isAdmin)
	r.store.AddLog(user.Username + " connecté")
	r.gw.Connect()
	return models.Result{OK: true}
}

// Register creates an account. It never opens a session; the caller stays on
// the auth view.
func (r *Router) Register(email, username, password string) models.Result {
	if len(password) < constants.MinPasswordLength {
		return models.Result{OK: false, Message: constants.MsgPasswordTooShort}
	}
	return r.store.AddUser(email, username, password, constants.RoleUser)
}

// SelectDevice enters the dashboard for a catalog device.
func (r *Router) SelectDevice(id string) {
	known := lo.SomeBy(models.DefaultDevices, func(d models.Device) bool {
		return d.ID == id
	})
	if !known {
		util.LogWarn("Unknown device %q selected, ignoring", id)
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.CurrentUser == nil {
		return
	}
	r.state.CurrentDevice = id
	r.transitionLocked(constants.ViewDashboard)
}

// OpenAdmin enters the admin view; only admins get through.
func (r *Router) OpenAdmin() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.state.IsAdmin {
		util.LogWarn("Admin view requested without admin role, ignoring")
		return
	}
	r.transitionLocked(constants.ViewAdmin)
}

// Back returns from the dashboard or admin view to the selection view.
func (r *Router) Back() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.CurrentView != constants.ViewDashboard && r.state.CurrentView != constants.ViewAdmin {
		return
	}
	r.transitionLocked(constants.ViewSelection)
}

// Logout clears the session and returns to the auth view. Leaving the
// dashboard runs its exit hook, so the simulation timer stops on this path
// like any other.
func (r *Router) Logout() {
	r.mu.Lock()
	username := ""
	if r.state.CurrentUser != nil {
		username = r.state.CurrentUser.Username
	}
	r.state.CurrentUser = nil
	r.state.IsAdmin = false
	r.state.CurrentDevice = ""
	r.state.LedOn = false
	r.state.HasReading = false
	r.transitionLocked(constants.ViewAuth)
	r.mu.Unlock()

	r.store.ClearSession()
	if username != "" {
		r.store.AddLog(username + " déconnecté")
	}
}

// ToggleSimulation flips the per-tick gate. The timer itself keeps running;
// only its output is suppressed.
func (r *Router) ToggleSimulation(active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.SimulationActive = active
}

// SimulationActive is the gate the simulator consults on each tick.
func (r *Router) SimulationActive() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.SimulationActive
}

// SetLed publishes the LED command and records it.
func (r *Router) SetLed(on bool) {
	r.mu.Lock()
	if r.state.CurrentUser == nil {
		r.mu.Unlock()
		return
	}
	r.state.LedOn = on
	r.mu.Unlock()

	if on {
		r.gw.Publish(r.cfg.TopicLed, constants.LedOn)
		r.store.AddLog("LED allumée")
	} else {
		r.gw.Publish(r.cfg.TopicLed, constants.LedOff)
		r.store.AddLog("LED éteinte")
	}
}

// DeleteUser removes an account; admin only.
func (r *Router) DeleteUser(email string) {
	r.mu.Lock()
	isAdmin := r.state.IsAdmin
	r.mu.Unlock()
	if !isAdmin {
		util.LogWarn("User deletion requested without admin role, ignoring")
		return
	}
	r.store.DeleteUser(email)
	r.store.AddLog(email + " supprimé")
}

// HandleReading accepts a temperature value from the simulator or the
// broker. Readings arriving after logout are dropped so late callbacks
// cannot resurrect stale state.
func (r *Router) HandleReading(value float64) {
	r.mu.Lock()
	if r.state.CurrentUser == nil {
		r.mu.Unlock()
		return
	}
	status := StatusFor(value)
	r.state.LastReading = value
	r.state.ReadingStatus = status
	r.state.HasReading = true
	observer := r.onReading
	r.mu.Unlock()

	if observer != nil {
		observer(value, status)
	}
}

// StatusFor maps a temperature to its display status.
func StatusFor(value float64) string {
	switch {
	case value < 18:
		return "❄️ Froid"
	case value > 28:
		return "🔥 Chaud"
	default:
		return "🔵 Normal"
	}
}
