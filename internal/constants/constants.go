package constants

type ContextKey string

const (
	RequestIDKey ContextKey = "request_id"
)

// View names, registered once at startup.
const (
	ViewAuth      = "auth"
	ViewSelection = "selection"
	ViewDashboard = "dashboard"
	ViewAdmin     = "admin"
)

const (
	RouteHome         = "/"
	RouteLogin        = "/login"
	RouteRegister     = "/register"
	RouteLogout       = "/logout"
	RouteSelectDevice = "/select-device"
	RouteBack         = "/back"
	RouteAdmin        = "/admin"
	RouteDeleteUser   = "/admin/delete-user"
	RouteLed          = "/led"
	RouteSimToggle    = "/simulation-toggle"
	RouteWS           = "/ws"
	RouteHealthz      = "/healthz"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

const (
	SessionCookieName = "session_id"
	MinPasswordLength = 6
	MaxLogEntries     = 50
)

// LED wire payloads.
const (
	LedOn  = "ON"
	LedOff = "OFF"
)

// User-facing messages. The UI is French, as deployed.
const (
	MsgUserCreated      = "Utilisateur créé"
	MsgDuplicateUser    = "Email ou pseudo déjà utilisé"
	MsgPasswordTooShort = "Min 6 caractères"
	MsgWrongPassword    = "Mot de passe incorrecte"
	MsgUnknownUser      = "Identifiant inexistant"
)
