package session

import (
	"context"
	"fmt"
	"iter"
	"sync"

	"go.uber.org/zap"

	"github.com/pdf-annotator/backend/internal/auth"
	"github.com/pdf-annotator/backend/internal/models"
)

// Session binds one open document to an in-memory annotation collection
// for the duration of a viewing/editing session. It is the UI-facing
// API: place, list, edit, delete, persist. Each session belongs to one
// user; sessions never share mutable state with each other, only the
// persisted record.
type Session struct {
	mu      sync.Mutex
	doc     models.Document
	ident   auth.Identity
	coll    *Collection
	placer  *Placer
	sync    *Synchronizer
	loadGen uint64
	logger  *zap.Logger
}

// New creates a session for the given document and caller identity. The
// collection starts empty; call Load to pull the stored sequence.
func New(doc models.Document, ident auth.Identity, placer *Placer, syncer *Synchronizer, logger *zap.Logger) *Session {
	return &Session{
		doc:    doc,
		ident:  ident,
		coll:   NewCollection(),
		placer: placer,
		sync:   syncer,
		logger: logger,
	}
}

// Load fetches the stored annotation sequence into the collection. Each
// call bumps a request generation; if a newer Load starts before this
// one resolves, the stale result is discarded instead of overwriting the
// newer state. NotFound and Unauthorized abort the session and are not
// retried here.
func (s *Session) Load(ctx context.Context) error {
	s.mu.Lock()
	s.loadGen++
	gen := s.loadGen
	s.mu.Unlock()

	annotations, err := s.sync.Load(ctx, s.doc.ID, s.ident)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.loadGen {
		s.logger.Debug("Discarding stale load result",
			zap.String("document", s.doc.ID),
			zap.Uint64("generation", gen),
		)
		return nil
	}
	s.coll.Reset(annotations)
	return nil
}

// PlaceAnnotation maps a pointer interaction to a new annotation and
// appends it to the collection. The annotation is validated eagerly so
// bad input never enters the in-memory sequence.
func (s *Session) PlaceAnnotation(tool models.AnnotationType, page int, box PageBox, ptr Pointer, pendingText string) (models.Annotation, error) {
	if page < 1 || page > s.doc.Pages {
		return models.Annotation{}, fmt.Errorf("%w: page %d out of range 1..%d", models.ErrValidation, page, s.doc.Pages)
	}

	a, err := s.placer.Place(tool, page, box, ptr, pendingText, s.ident.Name)
	if err != nil {
		return models.Annotation{}, err
	}
	if err := a.Validate(s.doc.Pages); err != nil {
		return models.Annotation{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.coll.Add(a)
	return a, nil
}

// ListAnnotations returns a lazy, restartable view of the given page's
// annotations in insertion order. The view is a stable snapshot: edits
// made after the call do not show up in it.
func (s *Session) ListAnnotations(page int) iter.Seq[models.Annotation] {
	s.mu.Lock()
	snapshot := s.coll.Snapshot()
	s.mu.Unlock()

	return func(yield func(models.Annotation) bool) {
		for _, a := range snapshot {
			if a.Page != page {
				continue
			}
			if !yield(a) {
				return
			}
		}
	}
}

// CountOnPage returns the number of annotations on the given page.
func (s *Session) CountOnPage(page int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.coll.CountOnPage(page)
}

// EditContent replaces the content of the annotation with the given id.
// Unknown ids are a silent no-op.
func (s *Session) EditContent(id, text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.coll.UpdateContent(id, text)
}

// Delete removes the annotation with the given id and clears any
// selection pointing at it.
func (s *Session) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.coll.Remove(id)
}

// ClearAll empties the collection.
func (s *Session) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.coll.ClearAll()
}

// Select marks an annotation as selected.
func (s *Session) Select(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.coll.Select(id)
}

// Selected returns the currently selected annotation, if any.
func (s *Session) Selected() (models.Annotation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.coll.Selected()
}

// Persist pushes the full in-memory sequence through the synchronizer,
// replacing the server copy. On transport failure the collection is
// retained unchanged so the user can retry without losing work.
func (s *Session) Persist(ctx context.Context) (*models.Document, error) {
	s.mu.Lock()
	snapshot := s.coll.Snapshot()
	s.mu.Unlock()

	doc, err := s.sync.Save(ctx, s.doc.ID, s.ident, snapshot)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.doc = *doc
	s.mu.Unlock()
	return doc, nil
}

// Document returns the session's document record as of the last
// load/persist.
func (s *Session) Document() models.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc
}
