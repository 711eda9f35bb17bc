package models

import "time"

// Document is one uploaded PDF owned by a single user. Annotations
// belong to their document and are never addressable outside it;
// deleting the document deletes them too.
type Document struct {
	ID               string    `json:"id"`
	OwnerID          string    `json:"-"`
	OriginalName     string    `json:"originalName"`
	FileName         string    `json:"fileName"`
	FilePath         string    `json:"-"`
	FileSize         int64     `json:"fileSize"`
	Pages            int       `json:"pages"`
	AnnotationsCount int       `json:"annotationsCount"`
	UploadedAt       time.Time `json:"uploadDate"`
	LastModified     time.Time `json:"lastModified"`
}

// User is a registered account. PasswordHash is a bcrypt hash and never
// leaves the storage layer.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// RegisterRequest is the request body for creating an account.
type RegisterRequest struct {
	Name     string `json:"name" binding:"required,max=100"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

// LoginRequest is the request body for logging in.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse wraps a login/register result.
type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// ReplaceAnnotationsRequest is the request body for the whole-collection
// replace endpoint.
type ReplaceAnnotationsRequest struct {
	Annotations []Annotation `json:"annotations"`
}

// DocumentResponse wraps a single document in the API response.
type DocumentResponse struct {
	Data Document `json:"data"`
}

// DocumentsResponse wraps multiple documents in the API response.
type DocumentsResponse struct {
	Data []Document `json:"data"`
}

// AnnotationsResponse wraps an annotation sequence in the API response.
type AnnotationsResponse struct {
	Data []Annotation `json:"data"`
}

// ErrorResponse represents an error response from the API.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
