// models.go -- Shared domain types for the store package.
// Rows come from Postgres; Redis keeps only ephemeral state (rate limits,
// revoked token IDs, change notifications).
package store

import (
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
)

// ErrNotFound is returned when a lookup by ID or email matches no row.
// Callers use errors.Is so they never need to import pgx.
var ErrNotFound = errors.New("not found")

// ErrDuplicateEmail is returned by CreateAdmin/UpdateAdmin when the email
// is already taken by another administrator.
var ErrDuplicateEmail = errors.New("email already in use")

// ErrRateLimitExceeded is returned by Allow when the caller is locked out.
// Callers use errors.Is to distinguish rate limit rejections from Redis failures.
var ErrRateLimitExceeded = errors.New("rate limit exceeded")

// Collection names a record set shown in the console. Used for counts and
// change notifications; the table name is resolved internally, never from input.
type Collection string

const (
	CollectionAdmins    Collection = "admins"
	CollectionUsers     Collection = "users"
	CollectionSurveys   Collection = "surveys"
	CollectionDocuments Collection = "documents"
)

// Collections lists every collection in dashboard order.
var Collections = []Collection{CollectionUsers, CollectionSurveys, CollectionDocuments, CollectionAdmins}

var collectionTables = map[Collection]string{
	CollectionAdmins:    "admins",
	CollectionUsers:     "users",
	CollectionSurveys:   "survey_responses",
	CollectionDocuments: "user_documents",
}

// ParseCollection maps a URL segment to a Collection.
func ParseCollection(s string) (Collection, bool) {
	c := Collection(s)
	_, ok := collectionTables[c]
	return c, ok
}

// Admin represents a row in the admins table.
// PasswordHash is a bcrypt or argon2id PHC string and must never leave the server.
type Admin struct {
	ID           uuid.UUID
	Name         string
	Email        string
	Role         string
	PasswordHash string
	CreatedAt    time.Time
}

// AdminUpdate holds the editable admin fields.
// A nil PasswordHash keeps the current password.
type AdminUpdate struct {
	Name         string
	Email        string
	Role         string
	PasswordHash *string
}

// User represents a row in the users table (an end user of the mobile app).
// Email is empty when the user registered without one.
type User struct {
	ID               uuid.UUID
	Name             string
	Email            string
	Phone            string
	UserType         int
	RegistrationDate time.Time
	SurveyCount      int
	DocumentCount    int
}

// SurveyResponse represents a row in the survey_responses table.
// UserName is nil when the submitting user was not resolved at write time.
type SurveyResponse struct {
	ID             uuid.UUID
	UserID         string
	UserName       *string
	Type           string
	SubmissionDate time.Time
	Data           map[string]any
}

// SurveyFilter narrows ListSurveyResponses. Zero values match everything.
type SurveyFilter struct {
	Type  string
	Query string
}

// Document represents a row in the user_documents table.
type Document struct {
	ID         uuid.UUID
	UserID     string
	UserName   *string
	FileName   string
	FileType   string
	UploadDate time.Time
	URL        string
}

// RateLimit defines the policy for a rate-limited action.
// All three fields required, zero values disable the respective behaviour.
type RateLimit struct {
	MaxAttempts int           // attempts allowed within Window before lockout
	Window      time.Duration // rolling window for attempt counting
	LockoutTTL  time.Duration // how long to block after MaxAttempts is hit
}
