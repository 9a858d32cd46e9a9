package model

// Role is the access level of a dashboard account. The set is closed:
// merge and registration both reject anything outside it.
type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleAdmin   Role = "admin"
)

// ValidRole reports whether r is one of the accepted account roles.
func ValidRole(r string) bool {
	switch Role(r) {
	case RolePatient, RoleDoctor, RoleAdmin:
		return true
	}
	return false
}

// User is the unit of replication between the local and cloud nodes.
// Timestamps are ISO-8601 text, never time.Time: a record with a missing or
// malformed stamp must survive decoding so the merge can quarantine it, and
// updated_at is carried verbatim between nodes so both sides converge on the
// same byte sequence.
type User struct {
	Id           int    `json:"id" gorm:"primaryKey;autoIncrement"`
	Username     string `json:"username" gorm:"uniqueIndex;not null"`
	PasswordHash string `json:"password_hash" gorm:"not null"`
	FirstName    string `json:"first_name" gorm:"not null"`
	LastName     string `json:"last_name" gorm:"not null"`
	Role         string `json:"role" gorm:"not null"`
	CreatedAt    string `json:"created_at"`
	LastLogin    string `json:"last_login"`
	UpdatedAt    string `json:"updated_at"`
}

// Session is a bearer token issued at login. Sessions are node-local and
// never replicated; only the users table takes part in sync.
type Session struct {
	Id        int    `json:"id" gorm:"primaryKey;autoIncrement"`
	UserId    int    `json:"user_id" gorm:"index;not null"`
	Token     string `json:"token" gorm:"uniqueIndex;not null"`
	ExpiresAt string `json:"expires_at" gorm:"not null"`
	CreatedAt string `json:"created_at"`
}
