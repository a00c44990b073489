// stores.go
//
// Shared mock implementations of the store, limiter, denylist and change feed
// interfaces. Imported by test files across packages to avoid duplicate mock definitions.
package testutil

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/MGallo-Code/adminity/internal/store"
	"github.com/gofrs/uuid/v5"
)

// MockStore implements auth.AdminFinder and console.Records for tests.

// Always stateful...records live in maps and slices, like a real store.
// Use *Err fields to inject errors for specific operations.
// Use NewMockStore to seed admins; append to Users/Surveys/Documents directly.
type MockStore struct {
	// Error injection...zero value means no error
	GetAdminErr    error
	ListAdminsErr  error
	CreateAdminErr error
	UpdateAdminErr error
	DeleteAdminErr error
	ListUsersErr   error
	GetUserErr     error
	CreateUserErr  error
	ListSurveysErr error
	ListDocsErr    error
	HealthErr      error
	// CountErr fails Count for the named collections only.
	CountErr map[store.Collection]error

	Admins    map[uuid.UUID]*store.Admin
	Users     []store.User
	Surveys   []store.SurveyResponse
	Documents []store.Document

	mu sync.Mutex
}

// NewMockStore returns a MockStore seeded with the given admins.
func NewMockStore(admins ...*store.Admin) *MockStore {
	ms := &MockStore{Admins: make(map[uuid.UUID]*store.Admin)}
	for _, a := range admins {
		ms.Admins[a.ID] = a
	}
	return ms
}

func (m *MockStore) CheckHealth(_ context.Context) error {
	return m.HealthErr
}

func (m *MockStore) GetAdminByEmail(_ context.Context, email string) (*store.Admin, error) {
	if m.GetAdminErr != nil {
		return nil, m.GetAdminErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.Admins {
		if a.Email == strings.ToLower(email) {
			cp := *a
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *MockStore) GetAdminByID(_ context.Context, id uuid.UUID) (*store.Admin, error) {
	if m.GetAdminErr != nil {
		return nil, m.GetAdminErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.Admins[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

// ListAdmins returns admins newest first, like the Postgres query.
func (m *MockStore) ListAdmins(_ context.Context) ([]store.Admin, error) {
	if m.ListAdminsErr != nil {
		return nil, m.ListAdminsErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]store.Admin, 0, len(m.Admins))
	for _, a := range m.Admins {
		out = append(out, *a)
	}
	slices.SortFunc(out, func(a, b store.Admin) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}

func (m *MockStore) CreateAdmin(_ context.Context, a *store.Admin) error {
	if m.CreateAdminErr != nil {
		return m.CreateAdminErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a.Email = strings.ToLower(a.Email)
	for _, existing := range m.Admins {
		if existing.Email == a.Email {
			return store.ErrDuplicateEmail
		}
	}
	if m.Admins == nil {
		m.Admins = make(map[uuid.UUID]*store.Admin)
	}
	a.CreatedAt = time.Now()
	cp := *a
	m.Admins[a.ID] = &cp
	return nil
}

func (m *MockStore) UpdateAdmin(_ context.Context, id uuid.UUID, u store.AdminUpdate) error {
	if m.UpdateAdminErr != nil {
		return m.UpdateAdminErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.Admins[id]
	if !ok {
		return store.ErrNotFound
	}
	email := strings.ToLower(u.Email)
	for otherID, other := range m.Admins {
		if otherID != id && other.Email == email {
			return store.ErrDuplicateEmail
		}
	}
	a.Name, a.Email, a.Role = u.Name, email, u.Role
	if u.PasswordHash != nil {
		a.PasswordHash = *u.PasswordHash
	}
	return nil
}

func (m *MockStore) DeleteAdmin(_ context.Context, id uuid.UUID) error {
	if m.DeleteAdminErr != nil {
		return m.DeleteAdminErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Admins[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.Admins, id)
	return nil
}

// ListUsers filters name and email by case-insensitive substring.
func (m *MockStore) ListUsers(_ context.Context, q string) ([]store.User, error) {
	if m.ListUsersErr != nil {
		return nil, m.ListUsersErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.User
	for _, u := range m.Users {
		if contains(u.Name, q) || contains(u.Email, q) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *MockStore) GetUser(_ context.Context, id uuid.UUID) (*store.User, error) {
	if m.GetUserErr != nil {
		return nil, m.GetUserErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.Users {
		if u.ID == id {
			return &u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *MockStore) CreateUser(_ context.Context, u *store.User) error {
	if m.CreateUserErr != nil {
		return m.CreateUserErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u.RegistrationDate = time.Now()
	m.Users = append(m.Users, *u)
	return nil
}

func (m *MockStore) ListSurveyResponses(_ context.Context, f store.SurveyFilter) ([]store.SurveyResponse, error) {
	if m.ListSurveysErr != nil {
		return nil, m.ListSurveysErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.SurveyResponse
	for _, s := range m.Surveys {
		if f.Type != "" && !strings.EqualFold(s.Type, f.Type) {
			continue
		}
		if contains(s.UserID, f.Query) || (s.UserName != nil && contains(*s.UserName, f.Query)) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *MockStore) ListDocuments(_ context.Context, q string) ([]store.Document, error) {
	if m.ListDocsErr != nil {
		return nil, m.ListDocsErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.Document
	for _, d := range m.Documents {
		if contains(d.FileName, q) || contains(d.UserID, q) || (d.UserName != nil && contains(*d.UserName, q)) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *MockStore) Count(_ context.Context, c store.Collection) (int64, error) {
	if err := m.CountErr[c]; err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	switch c {
	case store.CollectionAdmins:
		return int64(len(m.Admins)), nil
	case store.CollectionUsers:
		return int64(len(m.Users)), nil
	case store.CollectionSurveys:
		return int64(len(m.Surveys)), nil
	default:
		return int64(len(m.Documents)), nil
	}
}

func contains(s, q string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(q))
}

// MockLimiter implements auth.RateLimiter. Records every key it sees.
type MockLimiter struct {
	AllowErr error
	ResetErr error

	Allowed []string
	Resets  []string

	mu sync.Mutex
}

func (m *MockLimiter) Allow(_ context.Context, key string, _ store.RateLimit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Allowed = append(m.Allowed, key)
	return m.AllowErr
}

func (m *MockLimiter) Reset(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Resets = append(m.Resets, key)
	return m.ResetErr
}

// MockDenylist implements session.Denylist in memory.
type MockDenylist struct {
	RevokeErr    error
	IsRevokedErr error

	Revoked map[string]time.Time

	mu sync.Mutex
}

func (m *MockDenylist) Revoke(_ context.Context, tokenID string, until time.Time) error {
	if m.RevokeErr != nil {
		return m.RevokeErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Revoked == nil {
		m.Revoked = make(map[string]time.Time)
	}
	m.Revoked[tokenID] = until
	return nil
}

func (m *MockDenylist) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	if m.IsRevokedErr != nil {
		return false, m.IsRevokedErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.Revoked[tokenID]
	return ok, nil
}

// MockChanges implements console.ChangeFeed in memory.
// Notify signals every open subscription to a collection.
type MockChanges struct {
	PublishErr   error
	SubscribeErr error

	Published []store.Collection

	subs map[store.Collection][]chan struct{}
	mu   sync.Mutex
}

func (m *MockChanges) Publish(_ context.Context, c store.Collection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Published = append(m.Published, c)
	return m.PublishErr
}

func (m *MockChanges) Subscribe(_ context.Context, c store.Collection) (<-chan struct{}, func(), error) {
	if m.SubscribeErr != nil {
		return nil, nil, m.SubscribeErr
	}
	ch := make(chan struct{}, 1)
	m.mu.Lock()
	if m.subs == nil {
		m.subs = make(map[store.Collection][]chan struct{})
	}
	m.subs[c] = append(m.subs[c], ch)
	m.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			m.subs[c] = slices.DeleteFunc(m.subs[c], func(s chan struct{}) bool { return s == ch })
			close(ch)
		})
	}
	return ch, cancel, nil
}

// Notify delivers one coalesced signal to each subscriber of c.
func (m *MockChanges) Notify(c store.Collection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.subs[c] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Subscribers returns the number of open subscriptions to c.
func (m *MockChanges) Subscribers(c store.Collection) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs[c])
}

// PublishedSnapshot returns a copy of Published under the lock.
func (m *MockChanges) PublishedSnapshot() []store.Collection {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.Published)
}
