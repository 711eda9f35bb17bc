package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pdf-annotator/backend/internal/models"
)

// MemoryRepository implements Repository in process memory. It is the
// pluggable fallback backend for running without a database and the
// backend the tests run against. Semantics match PostgresRepository:
// owner-scoped reads, cascade on delete, atomic whole-collection replace.
type MemoryRepository struct {
	mu        sync.RWMutex
	users     map[string]*models.User
	documents map[string]*memoryDocument
	logger    *zap.Logger
}

type memoryDocument struct {
	doc         models.Document
	annotations []models.Annotation
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository(logger *zap.Logger) Repository {
	return &MemoryRepository{
		users:     make(map[string]*models.User),
		documents: make(map[string]*memoryDocument),
		logger:    logger,
	}
}

// CreateUser stores a new account.
func (r *MemoryRepository) CreateUser(_ context.Context, name, email, passwordHash string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Email == email {
			return nil, fmt.Errorf("%w: email already registered", models.ErrValidation)
		}
	}

	user := &models.User{
		ID:           uuid.New().String(),
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	r.users[user.ID] = user

	out := *user
	return &out, nil
}

// GetUserByEmail retrieves an account by email.
func (r *MemoryRepository) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if u.Email == email {
			out := *u
			return &out, nil
		}
	}
	return nil, models.ErrNotFound
}

// GetUserByID retrieves an account by id.
func (r *MemoryRepository) GetUserByID(_ context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	out := *u
	return &out, nil
}

// CreateDocument stores a new document record.
func (r *MemoryRepository) CreateDocument(_ context.Context, doc models.Document) (*models.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	doc.ID = uuid.New().String()
	doc.UploadedAt = now
	doc.LastModified = now
	doc.AnnotationsCount = 0

	r.documents[doc.ID] = &memoryDocument{doc: doc, annotations: []models.Annotation{}}

	out := doc
	return &out, nil
}

// ListDocuments retrieves the owner's documents, newest upload first.
func (r *MemoryRepository) ListDocuments(_ context.Context, ownerID string) ([]models.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	docs := []models.Document{}
	for _, d := range r.documents {
		if d.doc.OwnerID == ownerID {
			doc := d.doc
			doc.AnnotationsCount = len(d.annotations)
			docs = append(docs, doc)
		}
	}
	sort.Slice(docs, func(i, j int) bool {
		return docs[i].UploadedAt.After(docs[j].UploadedAt)
	})
	return docs, nil
}

// GetDocument retrieves one document owned by ownerID.
func (r *MemoryRepository) GetDocument(_ context.Context, id, ownerID string) (*models.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, err := r.locked(id, ownerID)
	if err != nil {
		return nil, err
	}
	doc := d.doc
	doc.AnnotationsCount = len(d.annotations)
	return &doc, nil
}

// DeleteDocument removes a document together with its annotations.
func (r *MemoryRepository) DeleteDocument(_ context.Context, id, ownerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.locked(id, ownerID); err != nil {
		return err
	}
	delete(r.documents, id)
	return nil
}

// GetAnnotations retrieves the document's annotations in insertion order.
func (r *MemoryRepository) GetAnnotations(_ context.Context, id, ownerID string) ([]models.Annotation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, err := r.locked(id, ownerID)
	if err != nil {
		return nil, err
	}
	out := make([]models.Annotation, len(d.annotations))
	copy(out, d.annotations)
	return out, nil
}

// ReplaceAnnotations overwrites the stored sequence and bumps the
// last-modified timestamp under one lock acquisition.
func (r *MemoryRepository) ReplaceAnnotations(_ context.Context, id, ownerID string, annotations []models.Annotation) (*models.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, err := r.locked(id, ownerID)
	if err != nil {
		return nil, err
	}

	if err := models.ValidateAll(annotations, d.doc.Pages); err != nil {
		return nil, err
	}

	stored := make([]models.Annotation, len(annotations))
	copy(stored, annotations)
	d.annotations = stored
	d.doc.LastModified = time.Now().UTC()

	doc := d.doc
	doc.AnnotationsCount = len(stored)
	return &doc, nil
}

// Close is a no-op for the in-memory backend.
func (r *MemoryRepository) Close() {}

// locked looks up a document by id and owner. Callers hold r.mu.
func (r *MemoryRepository) locked(id, ownerID string) (*memoryDocument, error) {
	d, ok := r.documents[id]
	if !ok || d.doc.OwnerID != ownerID {
		return nil, models.ErrNotFound
	}
	return d, nil
}
