package dto

import (
	"time"

	"github.com/velora-im/velora-chat-api/internal/models"
)

// RegisterRequest is the payload submitted by a new user.
type RegisterRequest struct {
	Nickname string `json:"nickname" validate:"required,min=2,max=64,alphanumunicode"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

// LoginRequest carries the credentials for an authentication attempt.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse is returned after a successful login. The nickname doubles as
// the client's returning-session shortcut; it is a convenience cache, not an
// authorization token.
type LoginResponse struct {
	Nickname string `json:"nickname"`
	IsAdmin  bool   `json:"is_admin"`
	Token    string `json:"token"`
}

// RegistrationResponse represents a registration record visible to admins.
type RegistrationResponse struct {
	ID        uint               `json:"id"`
	Nickname  string             `json:"nickname"`
	Email     string             `json:"email"`
	Status    string             `json:"status"`
	Documents []DocumentResponse `json:"documents"`
	CreatedAt time.Time          `json:"created_at"`
}

// DocumentResponse describes an uploaded compliance document.
type DocumentResponse struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
}

// NewRegistrationResponse converts a user model into its admin-facing DTO.
func NewRegistrationResponse(user models.User) RegistrationResponse {
	documents := make([]DocumentResponse, 0, len(user.Documents))
	for _, doc := range user.Documents {
		documents = append(documents, DocumentResponse{
			ID:          doc.ID,
			Name:        doc.Name,
			URL:         doc.URL,
			ContentType: doc.ContentType,
		})
	}

	return RegistrationResponse{
		ID:        user.ID,
		Nickname:  user.Nickname,
		Email:     user.Email,
		Status:    user.Status,
		Documents: documents,
		CreatedAt: user.CreatedAt,
	}
}

// NewRegistrationResponseSlice converts a slice of user models into DTOs.
func NewRegistrationResponseSlice(users []models.User) []RegistrationResponse {
	out := make([]RegistrationResponse, 0, len(users))
	for _, user := range users {
		out = append(out, NewRegistrationResponse(user))
	}
	return out
}
