// views.go -- JSON shapes returned by the console.
//
// Records are never encoded directly: views pick the fields the browser may
// see (no password hashes) and fix the camelCase names the console UI reads.
package console

import (
	"time"

	"github.com/MGallo-Code/adminity/internal/store"
)

type adminView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

func newAdminView(a store.Admin) adminView {
	return adminView{
		ID:        a.ID.String(),
		Name:      a.Name,
		Email:     a.Email,
		Role:      a.Role,
		CreatedAt: a.CreatedAt,
	}
}

type userView struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Email            string    `json:"email"`
	Phone            string    `json:"phone"`
	UserType         int       `json:"userType"`
	RegistrationDate time.Time `json:"registrationDate"`
	SurveyCount      int       `json:"surveyCount"`
	DocumentCount    int       `json:"documentCount"`
}

func newUserView(u store.User) userView {
	return userView{
		ID:               u.ID.String(),
		Name:             u.Name,
		Email:            u.Email,
		Phone:            u.Phone,
		UserType:         u.UserType,
		RegistrationDate: u.RegistrationDate,
		SurveyCount:      u.SurveyCount,
		DocumentCount:    u.DocumentCount,
	}
}

type surveyView struct {
	ID             string         `json:"id"`
	UserID         string         `json:"userId"`
	UserName       *string        `json:"userName"`
	Type           string         `json:"type"`
	SubmissionDate time.Time      `json:"submissionDate"`
	Data           map[string]any `json:"data"`
}

func newSurveyView(s store.SurveyResponse) surveyView {
	data := s.Data
	if data == nil {
		data = map[string]any{}
	}
	return surveyView{
		ID:             s.ID.String(),
		UserID:         s.UserID,
		UserName:       s.UserName,
		Type:           s.Type,
		SubmissionDate: s.SubmissionDate,
		Data:           data,
	}
}

type documentView struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	UserName   *string   `json:"userName"`
	FileName   string    `json:"fileName"`
	FileType   string    `json:"fileType"`
	UploadDate time.Time `json:"uploadDate"`
	URL        string    `json:"url"`
}

func newDocumentView(d store.Document) documentView {
	return documentView{
		ID:         d.ID.String(),
		UserID:     d.UserID,
		UserName:   d.UserName,
		FileName:   d.FileName,
		FileType:   d.FileType,
		UploadDate: d.UploadDate,
		URL:        d.URL,
	}
}

// mapViews converts records to views. The result is never nil so empty
// collections encode as [] rather than null.
func mapViews[R, V any](records []R, view func(R) V) []V {
	out := make([]V, 0, len(records))
	for _, rec := range records {
		out = append(out, view(rec))
	}
	return out
}
