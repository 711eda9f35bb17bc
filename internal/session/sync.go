package session

import (
	"context"

	"go.uber.org/zap"

	"github.com/pdf-annotator/backend/internal/auth"
	"github.com/pdf-annotator/backend/internal/cache"
	"github.com/pdf-annotator/backend/internal/models"
	"github.com/pdf-annotator/backend/internal/storage"
)

// Synchronizer reconciles an in-memory annotation collection with the
// authoritative server copy. Saving replaces the entire stored sequence
// rather than diffing it; the last save wins under concurrent sessions,
// which keeps the protocol free of per-annotation versioning at the cost
// of lost updates between tabs. That trade is deliberate.
type Synchronizer struct {
	repo   storage.Repository
	cache  cache.Cache
	logger *zap.Logger
}

// NewSynchronizer creates a synchronizer over the given storage and
// cache.
func NewSynchronizer(repo storage.Repository, c cache.Cache, logger *zap.Logger) *Synchronizer {
	return &Synchronizer{
		repo:   repo,
		cache:  c,
		logger: logger,
	}
}

// Load fetches the authoritative annotation sequence for the document,
// scoped by the caller's ownership. The ownership check always goes to
// storage; only the annotation fetch itself may be served from cache.
// Returns models.ErrNotFound if the caller owns no such document.
func (s *Synchronizer) Load(ctx context.Context, documentID string, ident auth.Identity) ([]models.Annotation, error) {
	if _, err := s.repo.GetDocument(ctx, documentID, ident.UserID); err != nil {
		return nil, err
	}

	if cached, ok, _ := s.cache.Get(ctx, documentID); ok {
		return cached, nil
	}

	annotations, err := s.repo.GetAnnotations(ctx, documentID, ident.UserID)
	if err != nil {
		return nil, err
	}

	_ = s.cache.Set(ctx, documentID, annotations)
	return annotations, nil
}

// Save replaces the entire stored sequence with the supplied one and
// bumps the document's last-modified timestamp. The sequence is
// validated here before it reaches storage; a client-held collection is
// never trusted blindly. On success the cache is refreshed with the
// saved sequence; on failure the cache and stored state are untouched.
func (s *Synchronizer) Save(ctx context.Context, documentID string, ident auth.Identity, annotations []models.Annotation) (*models.Document, error) {
	target, err := s.repo.GetDocument(ctx, documentID, ident.UserID)
	if err != nil {
		return nil, err
	}
	if err := models.ValidateAll(annotations, target.Pages); err != nil {
		return nil, err
	}

	doc, err := s.repo.ReplaceAnnotations(ctx, documentID, ident.UserID, annotations)
	if err != nil {
		return nil, err
	}

	_ = s.cache.Set(ctx, documentID, annotations)

	s.logger.Debug("Saved annotation collection",
		zap.String("document", documentID),
		zap.Int("count", len(annotations)),
	)
	return doc, nil
}

// Forget drops the document's cached sequence. Called when the document
// itself goes away.
func (s *Synchronizer) Forget(ctx context.Context, documentID string) {
	_ = s.cache.Invalidate(ctx, documentID)
}
