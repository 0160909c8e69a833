// Package auth implements the single-default-user ACL model: AUTH and ACL
// commands against one named user. Passwords are hashed with bcrypt so the
// in-memory user table never holds plaintext.
package auth

import (
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// User holds one ACL entry. This spec carries only the default user
// (Non-goals: "ACL rules beyond a single default user with optional
// password").
type User struct {
	Name         string
	PasswordHash []byte // nil means "no password required"
}

// Users is the shared, process-wide user table.
type Users struct {
	mu     sync.Mutex
	byName map[string]*User
}

func NewUsers() *Users {
	u := &Users{byName: make(map[string]*User)}
	u.byName["default"] = &User{Name: "default"}
	return u
}

// RequiresPassword reports whether the default user currently has a
// password set (determines a fresh connection's initial AuthState).
func (u *Users) RequiresPassword() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.byName["default"].PasswordHash != nil
}

// SetPassword hashes and stores password for username (ACL SETUSER).
func (u *Users) SetPassword(username, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	usr, ok := u.byName[username]
	if !ok {
		usr = &User{Name: username}
		u.byName[username] = usr
	}
	usr.PasswordHash = hash
	return nil
}

// Check reports whether password matches username's stored hash. A user
// with no password set never matches (AUTH against a passwordless user is
// a config error upstream, not handled here).
func (u *Users) Check(username, password string) bool {
	u.mu.Lock()
	usr, ok := u.byName[username]
	u.mu.Unlock()
	if !ok || usr.PasswordHash == nil {
		return false
	}
	return bcrypt.CompareHashAndPassword(usr.PasswordHash, []byte(password)) == nil
}

// Describe reports whether username is known and whether it has a password
// set. ACL GETUSER builds its reply from this, adding the fixed "+@all"
// command scope every known user has (no permission subsetting).
func (u *Users) Describe(username string) (hasPassword bool, ok bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	usr, ok := u.byName[username]
	if !ok {
		return false, false
	}
	return usr.PasswordHash != nil, true
}

// State is the per-connection authentication flag.
type State struct {
	Authenticated bool
	Username      string
}

// Initial builds the AuthState a fresh connection starts with: already
// authenticated as "default" unless that user has a password set.
func Initial(users *Users) State {
	if users.RequiresPassword() {
		return State{}
	}
	return State{Authenticated: true, Username: "default"}
}
