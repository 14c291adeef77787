package auth

import (
	"strings"
	"time"
)

// StatusActive is the only account status that may authenticate.
const StatusActive = "active"

// Common non-active statuses. Any other string is accepted and treated as locked.
const (
	StatusInactive = "inactive"
	StatusLocked   = "locked"
)

// Action is one of the closed set of operations a permission grants.
type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionList   Action = "list"
)

// Actions lists the vocabulary in its canonical order.
var Actions = []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionList}

// ParseAction validates raw against the action vocabulary.
func ParseAction(raw string) (Action, error) {
	a := Action(strings.TrimSpace(strings.ToLower(raw)))
	for _, known := range Actions {
		if a == known {
			return a, nil
		}
	}
	return "", Validation("action must be one of create, read, update, delete, list")
}

// User is the identity record consulted during authentication.
type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"`
	Status       string     `json:"status"`
	LastActive   *time.Time `json:"last_active,omitempty"`
	RoleID       *int64     `json:"role_id,omitempty"`
	IsSuperuser  bool       `json:"is_superuser"`
	EmployeeID   *string    `json:"employee_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Active reports whether the account may log in.
func (u *User) Active() bool {
	return u != nil && u.Status == StatusActive
}

// Profile is the public view of a user returned by the current-identity operation.
type Profile struct {
	Username   string     `json:"username"`
	Status     string     `json:"status"`
	LastActive *time.Time `json:"last_active"`
}

// Profile returns the public projection of u.
func (u *User) Profile() Profile {
	return Profile{Username: u.Username, Status: u.Status, LastActive: u.LastActive}
}

// Role groups permissions.
type Role struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Permissions []Permission `json:"permissions"`
}

// Permission is a (resource, action) capability.
type Permission struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Resource    string `json:"resource"`
	Action      Action `json:"action"`
	Description string `json:"description,omitempty"`
}

// Grant is the (resource, action) pair the evaluator matches against.
type Grant struct {
	Resource string
	Action   Action
}

// Grant returns the pair p grants.
func (p Permission) Grant() Grant {
	return Grant{Resource: p.Resource, Action: p.Action}
}
