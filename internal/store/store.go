// Package store is the persistence shim behind the dashboard: a small
// key/value file holding three JSON records (users, logs, session), the same
// layout the original browser build kept in local storage. Missing keys read
// as empty collections; there is no schema versioning.
package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/samber/lo"
	bolt "go.etcd.io/bbolt"

	"github.com/AhmedAmineMachat/Projet-IOT/internal/constants"
	"github.com/AhmedAmineMachat/Projet-IOT/internal/models"
	"github.com/AhmedAmineMachat/Projet-IOT/internal/util"
)

var (
	bucketName = []byte("dashboard")
	keyUsers   = []byte("users")
	keyLogs    = []byte("logs")
	keySession = []byte("session")
)

type Store struct {
	db    *bolt.DB
	onLog func(models.LogEntry)
}

// Open opens (or creates) the store file and its bucket.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SetLogObserver registers a callback invoked for every appended log entry.
// Used to stream activity to connected browsers.
func (s *Store) SetLogObserver(fn func(models.LogEntry)) {
	s.onLog = fn
}

// SeedAdmin creates the administrator account when it does not exist yet.
func (s *Store) SeedAdmin(email, username, password string) {
	seeded := false
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		users := readUsers(b)
		exists := lo.SomeBy(users, func(u models.User) bool {
			return u.Username == username
		})
		if exists {
			return nil
		}
		users = append(users, models.User{
			Email:    email,
			Username: username,
			Password: password,
			Role:     constants.RoleAdmin,
		})
		seeded = true
		return writeUsers(b, users)
	})
	if err != nil {
		util.LogWarn("Failed to seed admin account: %v", err)
		return
	}
	if seeded {
		util.LogInfo("Admin account seeded automatically")
	}
}

func (s *Store) GetUsers() []models.User {
	var users []models.User
	s.getJSON(keyUsers, &users)
	if users == nil {
		users = []models.User{}
	}
	return users
}

// AddUser registers a new account. Email and username must both be unused;
// the uniqueness check and the write share one transaction so concurrent
// registrations cannot clobber each other.
func (s *Store) AddUser(email, username, password, role string) models.Result {
	res := models.Result{OK: true, Message: constants.MsgUserCreated}
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		users := readUsers(b)
		taken := lo.SomeBy(users, func(u models.User) bool {
			return u.Email == email || u.Username == username
		})
		if taken {
			res = models.Result{OK: false, Message: constants.MsgDuplicateUser}
			return nil
		}
		users = append(users, models.User{Email: email, Username: username, Password: password, Role: role})
		return writeUsers(b, users)
	})
	if err != nil {
		util.LogWarn("Failed to persist user %s: %v", username, err)
		return models.Result{OK: false, Message: err.Error()}
	}
	return res
}

// Authenticate returns the user whose email or username matches the
// identifier and whose password matches exactly, or nil.
func (s *Store) Authenticate(identifier, password string) *models.User {
	u, ok := lo.Find(s.GetUsers(), func(u models.User) bool {
		return (u.Email == identifier || u.Username == identifier) && u.Password == password
	})
	if !ok {
		return nil
	}
	return &u
}

// UserExists returns the user whose email or username matches the
// identifier, regardless of password, or nil.
func (s *Store) UserExists(identifier string) *models.User {
	u, ok := lo.Find(s.GetUsers(), func(u models.User) bool {
		return u.Email == identifier || u.Username == identifier
	})
	if !ok {
		return nil
	}
	return &u
}

func (s *Store) DeleteUser(email string) {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		users := lo.Filter(readUsers(b), func(u models.User, _ int) bool {
			return u.Email != email
		})
		return writeUsers(b, users)
	})
	if err != nil {
		util.LogWarn("Failed to delete user %s: %v", email, err)
	}
}

// AddLog prepends a timestamped entry and truncates the history to the most
// recent entries.
func (s *Store) AddLog(message string) {
	entry := models.LogEntry{
		Message: message,
		Time:    time.Now().Format("15:04:05"),
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		var logs []models.LogEntry
		if raw := b.Get(keyLogs); raw != nil {
			if err := json.Unmarshal(raw, &logs); err != nil {
				util.LogWarn("Corrupt log record, resetting: %v", err)
				logs = nil
			}
		}
		logs = append([]models.LogEntry{entry}, logs...)
		if len(logs) > constants.MaxLogEntries {
			logs = logs[:constants.MaxLogEntries]
		}
		raw, err := json.Marshal(logs)
		if err != nil {
			return err
		}
		return b.Put(keyLogs, raw)
	})
	if err != nil {
		util.LogWarn("Failed to persist log entry: %v", err)
		return
	}
	if s.onLog != nil {
		s.onLog(entry)
	}
}

// GetLogs returns the log history, newest first.
func (s *Store) GetLogs() []models.LogEntry {
	var logs []models.LogEntry
	s.getJSON(keyLogs, &logs)
	if logs == nil {
		logs = []models.LogEntry{}
	}
	return logs
}

func (s *Store) SaveSession(user models.User, isAdmin bool) {
	if err := s.putJSON(keySession, models.Session{User: user, IsAdmin: isAdmin}); err != nil {
		util.LogWarn("Failed to persist session: %v", err)
	}
}

// GetSession returns the persisted session, or nil when nobody is logged in.
func (s *Store) GetSession() *models.Session {
	var session models.Session
	found := false
	s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketName).Get(keySession)
		if raw == nil {
			return nil
		}
		if err := json.Unmarshal(raw, &session); err != nil {
			util.LogWarn("Corrupt session record ignored: %v", err)
			return nil
		}
		found = true
		return nil
	})
	if !found || session.User.Username == "" {
		return nil
	}
	return &session
}

func (s *Store) ClearSession() {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Delete(keySession)
	})
	if err != nil {
		util.LogWarn("Failed to clear session: %v", err)
	}
}

func readUsers(b *bolt.Bucket) []models.User {
	var users []models.User
	if raw := b.Get(keyUsers); raw != nil {
		if err := json.Unmarshal(raw, &users); err != nil {
			util.LogWarn("Corrupt user record, resetting: %v", err)
			users = nil
		}
	}
	return users
}

func writeUsers(b *bolt.Bucket, users []models.User) error {
	raw, err := json.Marshal(users)
	if err != nil {
		return err
	}
	return b.Put(keyUsers, raw)
}

func (s *Store) getJSON(key []byte, dest any) {
	s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketName).Get(key)
		if raw == nil {
			return nil
		}
		if err := json.Unmarshal(raw, dest); err != nil {
			util.LogWarn("Corrupt record %q ignored: %v", key, err)
		}
		return nil
	})
}

func (s *Store) putJSON(key []byte, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put(key, raw)
	})
}
