// users_test.go

// unit tests for the end-user registry endpoints.

package console

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/MGallo-Code/adminity/internal/auth"
	"github.com/MGallo-Code/adminity/internal/store"
	"github.com/gofrs/uuid/v5"
)

func newUser(name, email string) store.User {
	return store.User{
		ID:               uuid.Must(uuid.NewV7()),
		Name:             name,
		Email:            email,
		Phone:            "555-0100",
		UserType:         1,
		RegistrationDate: time.Now(),
		SurveyCount:      2,
		DocumentCount:    1,
	}
}

func TestListUsers(t *testing.T) {
	h, ms, _ := newTestConsole(t)
	ms.Users = []store.User{newUser("Grace Hopper", "grace@example.com"), newUser("Alan Turing", "")}

	t.Run("all users", func(t *testing.T) {
		w := serve(t, h, http.MethodGet, "/dashboard/users", nil, "")
		assertStatus(t, w, http.StatusOK)
		if got := decodeBody[[]userView](t, w); len(got) != 2 {
			t.Errorf("expected 2 users, got %d", len(got))
		}
	})

	t.Run("query filters by name", func(t *testing.T) {
		w := serve(t, h, http.MethodGet, "/dashboard/users?q=turing", nil, "")
		assertStatus(t, w, http.StatusOK)
		got := decodeBody[[]userView](t, w)
		if len(got) != 1 || got[0].Name != "Alan Turing" {
			t.Errorf("expected only Alan Turing, got %+v", got)
		}
	})

	t.Run("store error is 500", func(t *testing.T) {
		h, ms, _ := newTestConsole(t)
		ms.ListUsersErr = errors.New("db down")
		w := serve(t, h, http.MethodGet, "/dashboard/users", nil, "")
		assertStatus(t, w, http.StatusInternalServerError)
	})
}

func TestGetUser(t *testing.T) {
	h, ms, _ := newTestConsole(t)
	u := newUser("Grace Hopper", "grace@example.com")
	ms.Users = []store.User{u}

	t.Run("found", func(t *testing.T) {
		w := serve(t, h, http.MethodGet, "/dashboard/users/"+u.ID.String(), nil, "")
		assertStatus(t, w, http.StatusOK)
		got := decodeBody[userView](t, w)
		if got.ID != u.ID.String() || got.SurveyCount != 2 || got.DocumentCount != 1 {
			t.Errorf("unexpected user: %+v", got)
		}
	})

	t.Run("unknown id is 404", func(t *testing.T) {
		w := serve(t, h, http.MethodGet, "/dashboard/users/"+uuid.Must(uuid.NewV7()).String(), nil, "")
		assertStatus(t, w, http.StatusNotFound)
	})

	t.Run("malformed id is 404", func(t *testing.T) {
		w := serve(t, h, http.MethodGet, "/dashboard/users/42", nil, "")
		assertStatus(t, w, http.StatusNotFound)
	})
}

func TestCreateUser(t *testing.T) {
	valid := func() map[string]any {
		return map[string]any{"name": " Grace Hopper ", "email": "Grace@Example.com", "phone": "555-0100", "userType": 2}
	}

	t.Run("creates with zero counters", func(t *testing.T) {
		h, ms, changes := newTestConsole(t)

		w := serve(t, h, http.MethodPost, "/dashboard/users", valid(), "")
		assertStatus(t, w, http.StatusCreated)

		got := decodeBody[userView](t, w)
		if got.Name != "Grace Hopper" || got.Email != "grace@example.com" || got.UserType != 2 {
			t.Errorf("unexpected user: %+v", got)
		}
		if got.SurveyCount != 0 || got.DocumentCount != 0 {
			t.Errorf("counters: expected 0/0, got %d/%d", got.SurveyCount, got.DocumentCount)
		}
		if got.RegistrationDate.IsZero() {
			t.Error("registrationDate not set")
		}
		if len(ms.Users) != 1 {
			t.Fatalf("expected 1 stored user, got %d", len(ms.Users))
		}
		assertPublished(t, changes, store.CollectionUsers)
	})

	t.Run("email is optional", func(t *testing.T) {
		h, _, _ := newTestConsole(t)
		body := valid()
		delete(body, "email")
		w := serve(t, h, http.MethodPost, "/dashboard/users", body, "")
		assertStatus(t, w, http.StatusCreated)
	})

	t.Run("user type zero is valid", func(t *testing.T) {
		h, _, _ := newTestConsole(t)
		body := valid()
		body["userType"] = 0
		w := serve(t, h, http.MethodPost, "/dashboard/users", body, "")
		assertStatus(t, w, http.StatusCreated)
	})

	t.Run("store error is 500", func(t *testing.T) {
		h, ms, changes := newTestConsole(t)
		ms.CreateUserErr = errors.New("db down")
		w := serve(t, h, http.MethodPost, "/dashboard/users", valid(), "")
		assertStatus(t, w, http.StatusInternalServerError)
		assertPublished(t, changes)
	})

	validation := []struct {
		name   string
		mutate func(map[string]any)
		field  string
		msg    string
	}{
		{"short name", func(b map[string]any) { b["name"] = "G" }, "name", MsgNameTooShort},
		{"bad email", func(b map[string]any) { b["email"] = "grace" }, "email", auth.MsgInvalidEmail},
		{"missing phone", func(b map[string]any) { b["phone"] = "  " }, "phone", MsgPhoneRequired},
		{"missing user type", func(b map[string]any) { delete(b, "userType") }, "userType", MsgUserTypeRequired},
		{"fractional user type", func(b map[string]any) { b["userType"] = 1.5 }, "userType", MsgUserTypeWhole},
		{"user type out of range", func(b map[string]any) { b["userType"] = 3 }, "userType", MsgUserTypeRange},
		{"negative user type", func(b map[string]any) { b["userType"] = -1 }, "userType", MsgUserTypeRange},
	}
	for _, tc := range validation {
		t.Run(tc.name, func(t *testing.T) {
			h, ms, _ := newTestConsole(t)
			body := valid()
			tc.mutate(body)

			w := serve(t, h, http.MethodPost, "/dashboard/users", body, "")
			assertFieldError(t, w, tc.field, tc.msg)
			if len(ms.Users) != 0 {
				t.Error("user stored despite validation failure")
			}
		})
	}
}
