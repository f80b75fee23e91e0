// Package models defines the core data structures for users, communication
// logs and the access audit trail.
package models

import (
	"time"
)

// Role is the authorization role of a user.
type Role string

const (
	// RoleAdmin may see secret logs and delete any log.
	RoleAdmin Role = "admin"
	// RoleUser is the default role assigned at registration.
	RoleUser Role = "user"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// Direction tells whether a communication was received or sent.
type Direction string

const (
	// Incoming communication was received by the organisation.
	Incoming Direction = "incoming"
	// Outgoing communication was sent by the organisation.
	Outgoing Direction = "outgoing"
)

// LogType is the medium of a communication.
type LogType string

const (
	TypeMemo   LogType = "memo"
	TypeFax    LogType = "fax"
	TypeEmail  LogType = "email"
	TypeLetter LogType = "letter"
	TypePhone  LogType = "phone"
	TypeOther  LogType = "other"
)

// Confidentiality is the three-tier classification gating log visibility.
type Confidentiality string

const (
	// Public logs are visible to every authenticated user.
	Public Confidentiality = "public"
	// Confidential logs are visible to every authenticated user.
	Confidential Confidentiality = "confidential"
	// Secret logs are visible to admins only.
	Secret Confidentiality = "secret"
)

// AuditAction is the kind of access recorded in the audit trail.
type AuditAction string

const (
	ActionView   AuditAction = "view"
	ActionCreate AuditAction = "create"
	ActionEdit   AuditAction = "edit"
	ActionDelete AuditAction = "delete"
)

// User represents an application user with credentials.
type User struct {
	// ID is the unique identifier for the user.
	ID string
	// Username is the unique login name chosen by the user.
	Username string
	// Email is the optional unique contact address.
	Email string
	// PasswordHash is the bcrypt hash of the user's password.
	PasswordHash []byte
	// Role decides which log operations the user may perform.
	Role Role
	// FirstName and LastName are optional display names.
	FirstName string
	LastName  string
	// Token is the current opaque session token, empty when logged out.
	Token string
	// CreatedAt is the registration time.
	CreatedAt time.Time
}

// PublicUser is the projection of a User that is safe to return to clients.
type PublicUser struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	FirstName string    `json:"firstName,omitempty"`
	LastName  string    `json:"lastName,omitempty"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// Public returns the client-facing projection of u. The password hash and
// token are never part of it.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

// Identity is the authenticated actor resolved from a bearer credential.
type Identity struct {
	UserID   string
	Username string
	Role     Role
}

// IsAdmin reports whether the actor holds the admin role.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// Log is a single recorded communication.
type Log struct {
	// ID is the unique identifier for the log.
	ID string `json:"id"`
	// UserID references the owning user.
	UserID string `json:"user_id"`
	// UserName is the owner's username, filled in on listings.
	UserName string `json:"user_name,omitempty"`
	// Direction is incoming or outgoing.
	Direction Direction `json:"direction"`
	// Type is the communication medium.
	Type LogType `json:"type"`
	// Subject is a 3 to 255 character summary.
	Subject string `json:"subject"`
	// Content holds the optional body or notes.
	Content string `json:"content"`
	// Sender and Recipient are optional parties of the communication.
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	// OccurredAt is when the communication happened.
	OccurredAt time.Time `json:"timestamp"`
	// Confidentiality gates who may see the log.
	Confidentiality Confidentiality `json:"confidentiality_level"`
	// CreatedAt is the server time the log was recorded.
	CreatedAt time.Time `json:"created_at"`
}

// AccessAuditEntry records one access to a log.
type AccessAuditEntry struct {
	ID        string      `json:"id"`
	UserID    string      `json:"user_id"`
	LogID     string      `json:"log_id"`
	Action    AuditAction `json:"action"`
	CreatedAt time.Time   `json:"created_at"`
}

// DirectionCount is a dashboard bucket of logs per direction.
type DirectionCount struct {
	Direction Direction `json:"direction"`
	Count     int64     `json:"count"`
}

// TypeCount is a dashboard bucket of logs per type.
type TypeCount struct {
	Type  LogType `json:"type"`
	Count int64   `json:"count"`
}

// DashboardStats aggregates the logs visible to an actor.
type DashboardStats struct {
	TotalLogs   int64            `json:"total_logs"`
	ByDirection []DirectionCount `json:"by_direction"`
	ByType      []TypeCount      `json:"by_type"`
	RecentLogs  []Log            `json:"recent_logs"`
}
