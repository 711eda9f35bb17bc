// Package storage provides persistence for users, documents and their
// embedded annotation collections.
package storage

import (
	"context"

	"github.com/pdf-annotator/backend/internal/models"
)

// Repository defines the persistence operations. Annotations live inside
// their parent document: there is no per-annotation endpoint, only a
// whole-collection replace, and deleting a document removes its
// annotations with it. Every document operation is scoped by the owning
// user; a miss on ownership reports models.ErrNotFound.
type Repository interface {
	// CreateUser stores a new account. The email must be unused.
	CreateUser(ctx context.Context, name, email, passwordHash string) (*models.User, error)

	// GetUserByEmail retrieves an account by email.
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// GetUserByID retrieves an account by id.
	GetUserByID(ctx context.Context, id string) (*models.User, error)

	// CreateDocument stores a new document record with an empty
	// annotation collection and returns it with id and timestamps set.
	CreateDocument(ctx context.Context, doc models.Document) (*models.Document, error)

	// ListDocuments retrieves the owner's documents, newest upload first.
	ListDocuments(ctx context.Context, ownerID string) ([]models.Document, error)

	// GetDocument retrieves one document owned by ownerID.
	GetDocument(ctx context.Context, id, ownerID string) (*models.Document, error)

	// DeleteDocument removes a document and, with it, its annotations.
	DeleteDocument(ctx context.Context, id, ownerID string) error

	// GetAnnotations retrieves the document's annotation sequence in
	// storage order (insertion order is preserved).
	GetAnnotations(ctx context.Context, id, ownerID string) ([]models.Annotation, error)

	// ReplaceAnnotations overwrites the document's entire annotation
	// sequence and bumps its last-modified timestamp in the same write.
	// The supplied sequence is validated against the document's page
	// count first; on validation failure the stored state is untouched.
	ReplaceAnnotations(ctx context.Context, id, ownerID string, annotations []models.Annotation) (*models.Document, error)

	// Close closes the underlying connection.
	Close()
}
