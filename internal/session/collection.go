// Package session holds the in-memory annotation state for one open
// document and the synchronization contract with durable storage.
package session

import (
	"iter"

	"github.com/pdf-annotator/backend/internal/models"
)

// Collection is the ordered annotation sequence for one open document
// session. Insertion order is the only ordering; nothing re-sorts by
// page or position. A collection also tracks which annotation is
// currently selected in the UI.
type Collection struct {
	items    []models.Annotation
	selected string
}

// NewCollection creates an empty collection.
func NewCollection() *Collection {
	return &Collection{}
}

// Reset replaces the whole sequence (used after a load) and clears the
// selection.
func (c *Collection) Reset(annotations []models.Annotation) {
	c.items = make([]models.Annotation, len(annotations))
	copy(c.items, annotations)
	c.selected = ""
}

// Add appends an annotation to the end of the sequence. The caller must
// supply a freshly generated unique id; ids are never reused.
func (c *Collection) Add(a models.Annotation) {
	c.items = append(c.items, a)
}

// UpdateContent replaces the content of the annotation with the given
// id. An unknown id is a silent no-op; the return value reports whether
// anything changed.
func (c *Collection) UpdateContent(id, content string) bool {
	for i := range c.items {
		if c.items[i].ID == id {
			c.items[i].Content = content
			return true
		}
	}
	return false
}

// Remove deletes the annotation with the given id, clearing the
// selection if it pointed at it. An unknown id is a safe no-op.
func (c *Collection) Remove(id string) bool {
	for i := range c.items {
		if c.items[i].ID == id {
			c.items = append(c.items[:i], c.items[i+1:]...)
			if c.selected == id {
				c.selected = ""
			}
			return true
		}
	}
	return false
}

// ClearAll empties the sequence and clears the selection.
func (c *Collection) ClearAll() {
	c.items = nil
	c.selected = ""
}

// ByPage returns a lazy, restartable view of the annotations on the
// given page, preserving relative insertion order.
func (c *Collection) ByPage(page int) iter.Seq[models.Annotation] {
	return func(yield func(models.Annotation) bool) {
		for _, a := range c.items {
			if a.Page != page {
				continue
			}
			if !yield(a) {
				return
			}
		}
	}
}

// CountOnPage returns how many annotations sit on the given page.
func (c *Collection) CountOnPage(page int) int {
	n := 0
	for range c.ByPage(page) {
		n++
	}
	return n
}

// Select marks the annotation with the given id as selected. Selecting
// an unknown id clears the selection.
func (c *Collection) Select(id string) bool {
	for _, a := range c.items {
		if a.ID == id {
			c.selected = id
			return true
		}
	}
	c.selected = ""
	return false
}

// Selected returns the currently selected annotation, if any.
func (c *Collection) Selected() (models.Annotation, bool) {
	if c.selected == "" {
		return models.Annotation{}, false
	}
	for _, a := range c.items {
		if a.ID == c.selected {
			return a, true
		}
	}
	return models.Annotation{}, false
}

// Snapshot returns a copy of the full sequence in insertion order.
func (c *Collection) Snapshot() []models.Annotation {
	out := make([]models.Annotation, len(c.items))
	copy(out, c.items)
	return out
}

// Len returns the number of annotations in the collection.
func (c *Collection) Len() int {
	return len(c.items)
}
