// users.go -- End-user registry.
package console

import (
	"errors"
	"math"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/MGallo-Code/adminity/internal/auth"
	"github.com/MGallo-Code/adminity/internal/store"
	"github.com/MGallo-Code/adminity/internal/web"
	"github.com/gofrs/uuid/v5"
)

// Validation messages for the user registration form.
const (
	MsgPhoneRequired    = "Phone number is required."
	MsgUserTypeRequired = "User type is required."
	MsgUserTypeWhole    = "User type must be a whole number."
	MsgUserTypeRange    = "User type must be 0, 1, or 2."
)

// userInput is the JSON body of POST /dashboard/users.
// UserType is a float so 1.5 reports a field error instead of a decode failure.
type userInput struct {
	Name     string   `json:"name"`
	Email    string   `json:"email"`
	Phone    string   `json:"phone"`
	UserType *float64 `json:"userType"`
}

func (in userInput) validate() web.FieldErrors {
	errs := web.FieldErrors{}
	if utf8.RuneCountInString(in.Name) < 2 {
		errs.Add("name", MsgNameTooShort)
	}
	if in.Email != "" && !auth.ValidEmail(in.Email) {
		errs.Add("email", auth.MsgInvalidEmail)
	}
	if in.Phone == "" {
		errs.Add("phone", MsgPhoneRequired)
	}
	switch {
	case in.UserType == nil:
		errs.Add("userType", MsgUserTypeRequired)
	case *in.UserType != math.Trunc(*in.UserType):
		errs.Add("userType", MsgUserTypeWhole)
	case *in.UserType < 0 || *in.UserType > 2:
		errs.Add("userType", MsgUserTypeRange)
	}
	return errs
}

// ListUsers handles GET /dashboard/users?q= (newest registration first).
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	views, err := h.userViews(r)
	if err != nil {
		web.InternalServerError(w, r, err)
		return
	}
	web.JSON(w, r, http.StatusOK, views)
}

func (h *Handler) userViews(r *http.Request) ([]userView, error) {
	users, err := h.Records.ListUsers(r.Context(), strings.TrimSpace(r.URL.Query().Get("q")))
	if err != nil {
		return nil, err
	}
	return mapViews(users, newUserView), nil
}

// GetUser handles GET /dashboard/users/{id}.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		web.NotFound(w, r)
		return
	}
	u, err := h.Records.GetUser(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		web.NotFound(w, r)
		return
	}
	if err != nil {
		web.InternalServerError(w, r, err)
		return
	}
	web.JSON(w, r, http.StatusOK, newUserView(*u))
}

// CreateUser handles POST /dashboard/users. Counters start at zero.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var in userInput
	if err := web.DecodeJSON(w, r, &in); err != nil {
		web.LogDebug(r, "user form: undecodable body", "error", err)
		web.BadRequest(w, r, MsgInvalidFields, nil)
		return
	}
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Phone = strings.TrimSpace(in.Phone)
	if errs := in.validate(); len(errs) > 0 {
		web.BadRequest(w, r, MsgInvalidFields, errs)
		return
	}

	id, err := uuid.NewV7()
	if err != nil {
		web.InternalServerError(w, r, err)
		return
	}
	u := &store.User{
		ID:       id,
		Name:     in.Name,
		Email:    in.Email,
		Phone:    in.Phone,
		UserType: int(*in.UserType),
	}
	if err := h.Records.CreateUser(r.Context(), u); err != nil {
		web.InternalServerError(w, r, err)
		return
	}

	web.LogInfo(r, "user registered", "user_id", u.ID, "by", actorID(r))
	h.publish(r, store.CollectionUsers)
	web.JSON(w, r, http.StatusCreated, newUserView(*u))
}
