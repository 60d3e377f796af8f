package store

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/AhmedAmineMachat/Projet-IOT/internal/constants"
	"github.com/AhmedAmineMachat/Projet-IOT/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAddUserUniqueness(t *testing.T) {
	s := newTestStore(t)

	res := s.AddUser("a@x.com", "alice", "secret1", constants.RoleUser)
	if !res.OK {
		t.Fatalf("Expected first registration to succeed, got %q", res.Message)
	}
	if res.Message != constants.MsgUserCreated {
		t.Errorf("Expected %q, got %q", constants.MsgUserCreated, res.Message)
	}

	cases := []struct {
		name     string
		email    string
		username string
	}{
		{"duplicate email", "a@x.com", "bob"},
		{"duplicate username", "b@x.com", "alice"},
		{"duplicate both", "a@x.com", "alice"},
	}
	for _, c := range cases {
		res := s.AddUser(c.email, c.username, "secret1", constants.RoleUser)
		if res.OK {
			t.Errorf("%s: expected rejection", c.name)
		}
		if res.Message != constants.MsgDuplicateUser {
			t.Errorf("%s: expected %q, got %q", c.name, constants.MsgDuplicateUser, res.Message)
		}
	}

	if got := len(s.GetUsers()); got != 1 {
		t.Errorf("Expected 1 stored user, got %d", got)
	}
}

func TestConcurrentRegistrations(t *testing.T) {
	s := newTestStore(t)

	const workers = 50
	done := make(chan struct{})
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer func() { done <- struct{}{} }()
			s.AddUser(fmt.Sprintf("u%d@x.com", i), fmt.Sprintf("user%d", i), "secret1", constants.RoleUser)
		}(i)
	}
	for i := 0; i < workers; i++ {
		<-done
	}

	if got := len(s.GetUsers()); got != workers {
		t.Errorf("Expected %d stored users, got %d", workers, got)
	}
}

func TestConcurrentDuplicateRegistrations(t *testing.T) {
	s := newTestStore(t)

	const workers = 20
	accepted := make(chan bool, workers)
	for i := 0; i < workers; i++ {
		go func() {
			accepted <- s.AddUser("a@x.com", "alice", "secret1", constants.RoleUser).OK
		}()
	}
	ok := 0
	for i := 0; i < workers; i++ {
		if <-accepted {
			ok++
		}
	}

	if ok != 1 {
		t.Errorf("Expected exactly 1 accepted registration, got %d", ok)
	}
	if got := len(s.GetUsers()); got != 1 {
		t.Errorf("Expected 1 stored user, got %d", got)
	}
}

func TestAuthenticate(t *testing.T) {
	s := newTestStore(t)
	s.AddUser("a@x.com", "alice", "secret1", constants.RoleUser)

	if u := s.Authenticate("alice", "secret1"); u == nil || u.Email != "a@x.com" {
		t.Error("Expected authentication by username to succeed")
	}
	if u := s.Authenticate("a@x.com", "secret1"); u == nil || u.Username != "alice" {
		t.Error("Expected authentication by email to succeed")
	}
	if u := s.Authenticate("alice", "wrong"); u != nil {
		t.Error("Expected wrong password to fail")
	}
	if u := s.Authenticate("bob", "secret1"); u != nil {
		t.Error("Expected unknown identifier to fail")
	}
	if u := s.Authenticate("alice", "secret"); u != nil {
		t.Error("Expected partial password match to fail")
	}
}

func TestUserExists(t *testing.T) {
	s := newTestStore(t)
	s.AddUser("a@x.com", "alice", "secret1", constants.RoleUser)

	if s.UserExists("alice") == nil {
		t.Error("Expected lookup by username to find the user")
	}
	if s.UserExists("a@x.com") == nil {
		t.Error("Expected lookup by email to find the user")
	}
	if s.UserExists("bob") != nil {
		t.Error("Expected unknown identifier to return nil")
	}
}

func TestDeleteUser(t *testing.T) {
	s := newTestStore(t)
	s.AddUser("a@x.com", "alice", "secret1", constants.RoleUser)
	s.AddUser("b@x.com", "bob", "secret2", constants.RoleUser)

	s.DeleteUser("a@x.com")

	users := s.GetUsers()
	if len(users) != 1 || users[0].Username != "bob" {
		t.Errorf("Expected only bob to remain, got %+v", users)
	}
}

func TestLogCapAndOrder(t *testing.T) {
	s := newTestStore(t)

	for i := 0; i < 55; i++ {
		s.AddLog(fmt.Sprintf("message %d", i))
	}

	logs := s.GetLogs()
	if len(logs) != constants.MaxLogEntries {
		t.Fatalf("Expected %d retained entries, got %d", constants.MaxLogEntries, len(logs))
	}
	if logs[0].Message != "message 54" {
		t.Errorf("Expected newest entry first, got %q", logs[0].Message)
	}
	if logs[len(logs)-1].Message != "message 5" {
		t.Errorf("Expected oldest retained entry to be message 5, got %q", logs[len(logs)-1].Message)
	}
}

func TestLogObserver(t *testing.T) {
	s := newTestStore(t)

	var seen []models.LogEntry
	s.SetLogObserver(func(e models.LogEntry) { seen = append(seen, e) })

	s.AddLog("hello")
	if len(seen) != 1 || seen[0].Message != "hello" {
		t.Errorf("Expected observer to see the entry, got %+v", seen)
	}
	if seen[0].Time == "" {
		t.Error("Expected entry to carry a timestamp")
	}
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestStore(t)

	if s.GetSession() != nil {
		t.Error("Expected no session initially")
	}

	user := models.User{Email: "a@x.com", Username: "alice", Password: "secret1", Role: constants.RoleUser}
	s.SaveSession(user, false)

	session := s.GetSession()
	if session == nil || session.User.Username != "alice" || session.IsAdmin {
		t.Errorf("Unexpected session: %+v", session)
	}

	s.ClearSession()
	if s.GetSession() != nil {
		t.Error("Expected session to be cleared")
	}
}

func TestSeedAdminIdempotent(t *testing.T) {
	s := newTestStore(t)

	s.SeedAdmin("admin@system.iot", "admin", "admin123")
	s.SeedAdmin("admin@system.iot", "admin", "admin123")

	users := s.GetUsers()
	if len(users) != 1 {
		t.Fatalf("Expected exactly one admin account, got %d", len(users))
	}
	if users[0].Role != constants.RoleAdmin {
		t.Errorf("Expected seeded admin to carry the admin role, got %q", users[0].Role)
	}
}

func TestMissingKeysReadAsEmpty(t *testing.T) {
	s := newTestStore(t)

	if users := s.GetUsers(); users == nil || len(users) != 0 {
		t.Errorf("Expected empty user list, got %v", users)
	}
	if logs := s.GetLogs(); logs == nil || len(logs) != 0 {
		t.Errorf("Expected empty log list, got %v", logs)
	}
}
