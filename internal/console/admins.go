// admins.go -- Administrator management.
package console

import (
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/MGallo-Code/adminity/internal/auth"
	"github.com/MGallo-Code/adminity/internal/session"
	"github.com/MGallo-Code/adminity/internal/store"
	"github.com/MGallo-Code/adminity/internal/web"
	"github.com/gofrs/uuid/v5"
)

// Validation and conflict messages for the admin form.
const (
	MsgInvalidFields       = "Invalid fields."
	MsgNameTooShort        = "Name must be at least 2 characters."
	MsgInvalidRole         = "Invalid role selected."
	MsgPasswordRequired    = "Password is required for new admins."
	MsgPasswordTooShort    = "Password must be at least 8 characters."
	MsgNewPasswordTooShort = "New password must be at least 8 characters."
	MsgPasswordTooLong     = "Password must be at most 72 bytes."
	MsgPasswordsDontMatch  = "Passwords don't match."
	MsgConfirmWithoutNew   = "Please enter the new password as well if you intend to change it. Leave both blank to keep the current password."
	MsgAdminEmailTaken     = "An admin with this email already exists."
	MsgCannotDeleteSelf    = "You cannot delete your own account."
)

// adminInput is the JSON body of POST and PUT /dashboard/admins.
type adminInput struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Role            string `json:"role"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// normalize trims the identity fields. Passwords are taken verbatim.
func (in *adminInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Role = strings.TrimSpace(in.Role)
}

// validate checks the form. editing relaxes the password rules: both blank
// keeps the current password.
func (in adminInput) validate(editing bool) web.FieldErrors {
	errs := web.FieldErrors{}
	if utf8.RuneCountInString(in.Name) < 2 {
		errs.Add("name", MsgNameTooShort)
	}
	if !auth.ValidEmail(in.Email) {
		errs.Add("email", auth.MsgInvalidEmail)
	}
	if _, ok := session.ParseRole(in.Role); !ok {
		errs.Add("role", MsgInvalidRole)
	}

	switch {
	case !editing && in.Password == "":
		errs.Add("password", MsgPasswordRequired)
	case editing && in.Password == "" && in.ConfirmPassword != "":
		errs.Add("password", MsgConfirmWithoutNew)
	case in.Password != "":
		if len(in.Password) < auth.MinPasswordLength {
			if editing {
				errs.Add("password", MsgNewPasswordTooShort)
			} else {
				errs.Add("password", MsgPasswordTooShort)
			}
		} else if len(in.Password) > auth.MaxPasswordBytes {
			errs.Add("password", MsgPasswordTooLong)
		}
		if in.Password != in.ConfirmPassword {
			errs.Add("confirmPassword", MsgPasswordsDontMatch)
		}
	}
	return errs
}

// decodeAdmin reads and validates the body. On failure it has already written the 400.
func decodeAdmin(w http.ResponseWriter, r *http.Request, editing bool) (adminInput, bool) {
	var in adminInput
	if err := web.DecodeJSON(w, r, &in); err != nil {
		web.LogDebug(r, "admin form: undecodable body", "error", err)
		web.BadRequest(w, r, MsgInvalidFields, nil)
		return in, false
	}
	in.normalize()
	if errs := in.validate(editing); len(errs) > 0 {
		web.BadRequest(w, r, MsgInvalidFields, errs)
		return in, false
	}
	return in, true
}

// ListAdmins handles GET /dashboard/admins (newest first).
func (h *Handler) ListAdmins(w http.ResponseWriter, r *http.Request) {
	views, err := h.adminViews(r)
	if err != nil {
		web.InternalServerError(w, r, err)
		return
	}
	web.JSON(w, r, http.StatusOK, views)
}

func (h *Handler) adminViews(r *http.Request) ([]adminView, error) {
	admins, err := h.Records.ListAdmins(r.Context())
	if err != nil {
		return nil, err
	}
	return mapViews(admins, newAdminView), nil
}

// CreateAdmin handles POST /dashboard/admins.
func (h *Handler) CreateAdmin(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeAdmin(w, r, false)
	if !ok {
		return
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		web.InternalServerError(w, r, err)
		return
	}
	id, err := uuid.NewV7()
	if err != nil {
		web.InternalServerError(w, r, err)
		return
	}

	admin := &store.Admin{ID: id, Name: in.Name, Email: in.Email, Role: in.Role, PasswordHash: hash}
	if err := h.Records.CreateAdmin(r.Context(), admin); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			web.Conflict(w, r, MsgAdminEmailTaken, web.FieldErrors{"email": {MsgAdminEmailTaken}})
			return
		}
		web.InternalServerError(w, r, err)
		return
	}

	web.LogInfo(r, "admin created", "admin_id", admin.ID, "role", admin.Role, "by", actorID(r))
	h.publish(r, store.CollectionAdmins)
	web.JSON(w, r, http.StatusCreated, newAdminView(*admin))
}

// UpdateAdmin handles PUT /dashboard/admins/{id}.
func (h *Handler) UpdateAdmin(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		web.NotFound(w, r)
		return
	}
	in, ok := decodeAdmin(w, r, true)
	if !ok {
		return
	}

	update := store.AdminUpdate{Name: in.Name, Email: in.Email, Role: in.Role}
	if in.Password != "" {
		hash, err := auth.HashPassword(in.Password)
		if err != nil {
			web.InternalServerError(w, r, err)
			return
		}
		update.PasswordHash = &hash
	}

	if err := h.Records.UpdateAdmin(r.Context(), id, update); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			web.NotFound(w, r)
		case errors.Is(err, store.ErrDuplicateEmail):
			web.Conflict(w, r, MsgAdminEmailTaken, web.FieldErrors{"email": {MsgAdminEmailTaken}})
		default:
			web.InternalServerError(w, r, err)
		}
		return
	}

	admin, err := h.Records.GetAdminByID(r.Context(), id)
	if err != nil {
		web.InternalServerError(w, r, err)
		return
	}

	web.LogInfo(r, "admin updated", "admin_id", id, "password_changed", update.PasswordHash != nil, "by", actorID(r))
	h.publish(r, store.CollectionAdmins)
	web.JSON(w, r, http.StatusOK, newAdminView(*admin))
}

// DeleteAdmin handles DELETE /dashboard/admins/{id}.
func (h *Handler) DeleteAdmin(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		web.NotFound(w, r)
		return
	}
	if id.String() == actorID(r) {
		web.Conflict(w, r, MsgCannotDeleteSelf, nil)
		return
	}

	if err := h.Records.DeleteAdmin(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			web.NotFound(w, r)
			return
		}
		web.InternalServerError(w, r, err)
		return
	}

	web.LogInfo(r, "admin deleted", "admin_id", id, "by", actorID(r))
	h.publish(r, store.CollectionAdmins)
	w.WriteHeader(http.StatusNoContent)
}

// actorID is the subject of the session the gate admitted, or "".
func actorID(r *http.Request) string {
	if claims, ok := auth.ClaimsFromContext(r.Context()); ok {
		return claims.SubjectID
	}
	return ""
}
