package models

// User is a registered account. Passwords are stored as-is: this panel has no
// real backend and reproduces the behavior of the browser-only original, so
// do not mistake the auth layer for a security boundary.
type User struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// Session is the persisted record of the logged-in user, restored at startup.
type Session struct {
	User    User `json:"user"`
	IsAdmin bool `json:"isAdmin"`
}

type LogEntry struct {
	Message string `json:"msg"`
	Time    string `json:"time"`
}

// AppState is the single process-wide application state. It is owned and
// mutated exclusively by the view router.
type AppState struct {
	CurrentView      string
	CurrentUser      *User
	CurrentDevice    string
	IsAdmin          bool
	SimulationActive bool
	LedOn            bool
	LastReading      float64
	ReadingStatus    string
	HasReading       bool
}

// Result reports the outcome of a local validation, rendered inline.
type Result struct {
	OK      bool
	Message string
}

type Device struct {
	ID          string
	Name        string
	Icon        string
	Description string
	Status      string
}

// DefaultDevices is the static device catalog shown on the selection view.
var DefaultDevices = []Device{
	{ID: "salon", Name: "Capteur Salon", Icon: "🌡️", Description: "Température & Humidité", Status: "En ligne"},
	{ID: "cuisine", Name: "Capteur Cuisine", Icon: "🍳", Description: "Qualité de l'air", Status: "En ligne"},
	{ID: "garage", Name: "Garage", Icon: "🚗", Description: "Détecteur de mouvement", Status: "En ligne"},
	{ID: "chambre", Name: "Capteur Chambre", Icon: "🛏️", Description: "Température & Luminosité", Status: "En ligne"},
}
