// Package store handles all database and cache interactions.
//
// postgres.go -- pgxpool connection setup and queries.
// Creates a connection pool at startup, shared across all handlers.
// All queries use parameterized statements (no string concatenation).
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgUniqueViolation is the SQLSTATE for unique constraint violations.
const pgUniqueViolation = "23505"

// PostgresStore is the durable record store behind the console.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a connection pool and pings it before returning.
// Call once at startup; the returned store is safe for concurrent use.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("creating postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return &PostgresStore{pool}, nil
}

// Close shuts down the connection pool and releases all resources.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// CheckHealth pings Postgres. Used by /healthz.
func (s *PostgresStore) CheckHealth(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// likePattern turns free text into an ILIKE substring pattern with the
// wildcard characters escaped. Empty input yields "" so queries can skip the filter.
func likePattern(q string) string {
	q = strings.TrimSpace(q)
	if q == "" {
		return ""
	}
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(q) + "%"
}

// isUniqueViolation reports whether err is a Postgres unique constraint failure.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// --- Counts ---

// Count returns the number of rows in the collection's table.
func (s *PostgresStore) Count(ctx context.Context, c Collection) (int64, error) {
	table, ok := collectionTables[c]
	if !ok {
		return 0, fmt.Errorf("unknown collection %q", c)
	}
	var n int64
	// table comes from the fixed collectionTables map, never from input.
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting %s: %w", c, err)
	}
	return n, nil
}

// --- Admins ---

const adminColumns = "id, name, email, role, password_hash, created_at"

func scanAdmin(row pgx.Row) (*Admin, error) {
	var a Admin
	err := row.Scan(&a.ID, &a.Name, &a.Email, &a.Role, &a.PasswordHash, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetAdminByEmail looks up an administrator by email, case-insensitively.
// Returns ErrNotFound when no row matches.
func (s *PostgresStore) GetAdminByEmail(ctx context.Context, email string) (*Admin, error) {
	a, err := scanAdmin(s.pool.QueryRow(ctx,
		"SELECT "+adminColumns+" FROM admins WHERE email = $1",
		strings.ToLower(email)))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("getting admin by email: %w", err)
	}
	return a, err
}

// GetAdminByID returns ErrNotFound when no row matches.
func (s *PostgresStore) GetAdminByID(ctx context.Context, id uuid.UUID) (*Admin, error) {
	a, err := scanAdmin(s.pool.QueryRow(ctx,
		"SELECT "+adminColumns+" FROM admins WHERE id = $1", id))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("getting admin by id: %w", err)
	}
	return a, err
}

// ListAdmins returns every administrator, newest first.
func (s *PostgresStore) ListAdmins(ctx context.Context) ([]Admin, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT "+adminColumns+" FROM admins ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("listing admins: %w", err)
	}
	admins, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Admin, error) {
		a, err := scanAdmin(row)
		if err != nil {
			return Admin{}, err
		}
		return *a, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning admins: %w", err)
	}
	return admins, nil
}

// CreateAdmin inserts a new administrator. The caller generates the UUID v7
// and the password hash. Email is stored lowercased.
// Returns ErrDuplicateEmail if the email is already registered.
func (s *PostgresStore) CreateAdmin(ctx context.Context, a *Admin) error {
	a.Email = strings.ToLower(a.Email)
	err := s.pool.QueryRow(ctx,
		`INSERT INTO admins (id, name, email, role, password_hash)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at`,
		a.ID, a.Name, a.Email, a.Role, a.PasswordHash,
	).Scan(&a.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("creating admin: %w", err)
	}
	return nil
}

// UpdateAdmin overwrites name, email and role, and the password hash when set.
// Returns ErrNotFound if no admin has the id, ErrDuplicateEmail on email collision.
func (s *PostgresStore) UpdateAdmin(ctx context.Context, id uuid.UUID, u AdminUpdate) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE admins
		 SET name = $2, email = $3, role = $4, password_hash = COALESCE($5, password_hash)
		 WHERE id = $1`,
		id, u.Name, strings.ToLower(u.Email), u.Role, u.PasswordHash)
	if isUniqueViolation(err) {
		return ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("updating admin: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAdmin returns ErrNotFound if no admin has the id.
func (s *PostgresStore) DeleteAdmin(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM admins WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("deleting admin: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Users ---

const userColumns = "id, name, email, phone, user_type, registration_date, survey_count, document_count"

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &u.UserType,
		&u.RegistrationDate, &u.SurveyCount, &u.DocumentCount)
	return u, err
}

// ListUsers returns users newest first. A non-empty q keeps rows whose
// name or email contains it, case-insensitively.
func (s *PostgresStore) ListUsers(ctx context.Context, q string) ([]User, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE $1 = '' OR name ILIKE $1 OR email ILIKE $1
		 ORDER BY registration_date DESC`,
		likePattern(q))
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	users, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (User, error) {
		return scanUser(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scanning users: %w", err)
	}
	return users, nil
}

// GetUser returns ErrNotFound when no row matches.
func (s *PostgresStore) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return &u, nil
}

// CreateUser inserts a user with zeroed counters. The caller generates the UUID v7.
// RegistrationDate is filled from the database clock.
func (s *PostgresStore) CreateUser(ctx context.Context, u *User) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO users (id, name, email, phone, user_type)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING registration_date`,
		u.ID, u.Name, u.Email, u.Phone, u.UserType,
	).Scan(&u.RegistrationDate)
	if err != nil {
		return fmt.Errorf("creating user: %w", err)
	}
	return nil
}

// --- Survey responses ---

// ListSurveyResponses returns responses newest first, filtered by type
// (case-insensitive exact match) and by a substring of the user's name or id.
func (s *PostgresStore) ListSurveyResponses(ctx context.Context, f SurveyFilter) ([]SurveyResponse, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, user_name, type, submission_date, data
		 FROM survey_responses
		 WHERE ($1 = '' OR lower(type) = lower($1))
		   AND ($2 = '' OR user_name ILIKE $2 OR user_id ILIKE $2)
		 ORDER BY submission_date DESC`,
		strings.TrimSpace(f.Type), likePattern(f.Query))
	if err != nil {
		return nil, fmt.Errorf("listing survey responses: %w", err)
	}
	responses, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (SurveyResponse, error) {
		var r SurveyResponse
		err := row.Scan(&r.ID, &r.UserID, &r.UserName, &r.Type, &r.SubmissionDate, &r.Data)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning survey responses: %w", err)
	}
	return responses, nil
}

// --- Documents ---

// ListDocuments returns uploaded documents newest first. A non-empty q keeps
// rows whose file name, user name or user id contains it.
func (s *PostgresStore) ListDocuments(ctx context.Context, q string) ([]Document, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, user_name, file_name, file_type, upload_date, url
		 FROM user_documents
		 WHERE $1 = '' OR file_name ILIKE $1 OR user_name ILIKE $1 OR user_id ILIKE $1
		 ORDER BY upload_date DESC`,
		likePattern(q))
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	docs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Document, error) {
		var d Document
		err := row.Scan(&d.ID, &d.UserID, &d.UserName, &d.FileName, &d.FileType, &d.UploadDate, &d.URL)
		return d, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning documents: %w", err)
	}
	return docs, nil
}
