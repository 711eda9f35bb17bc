// Package models contains the data models for the application.
package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// AnnotationType identifies the kind of annotation placed on a page.
type AnnotationType string

const (
	TypeHighlight AnnotationType = "highlight"
	TypeComment   AnnotationType = "comment"
)

// Valid reports whether t is one of the known annotation types.
func (t AnnotationType) Valid() bool {
	return t == TypeHighlight || t == TypeComment
}

// HighlightExtent is a highlight's bounding box, expressed as percentages
// of the rendered page dimensions.
type HighlightExtent struct {
	Width  float64
	Height float64
}

// CommentExtent is a comment bubble's fixed pixel width. The rendered
// height depends on the comment text and is not known server-side.
type CommentExtent struct {
	WidthPx float64
}

// Annotation represents one highlight or comment anchored to a page
// position. X and Y are percentage offsets within the rendered page,
// origin top-left, so annotations stay put across zoom levels and
// devices. Exactly one of Highlight/Comment is set, matching Type.
type Annotation struct {
	ID        string
	Type      AnnotationType
	Page      int
	X         float64
	Y         float64
	Highlight *HighlightExtent
	Comment   *CommentExtent
	Color     string
	Opacity   float64
	Content   string
	CreatedAt time.Time
	CreatedBy string
}

// Same reports whether other is the same annotation. Identity is by ID
// only; every other field may differ between saves.
func (a Annotation) Same(other Annotation) bool {
	return a.ID == other.ID
}

// Validate checks the annotation against the data model invariants for a
// document with the given page count.
func (a Annotation) Validate(pageCount int) error {
	if a.ID == "" {
		return fmt.Errorf("%w: annotation id is required", ErrValidation)
	}
	if !a.Type.Valid() {
		return fmt.Errorf("%w: unknown annotation type %q", ErrValidation, a.Type)
	}
	if a.Page < 1 || a.Page > pageCount {
		return fmt.Errorf("%w: page %d out of range 1..%d", ErrValidation, a.Page, pageCount)
	}
	if a.X < 0 || a.X >= 100 || a.Y < 0 || a.Y >= 100 {
		return fmt.Errorf("%w: position (%.2f, %.2f) outside page", ErrValidation, a.X, a.Y)
	}
	if a.Opacity <= 0 || a.Opacity > 1 {
		return fmt.Errorf("%w: opacity %.2f outside (0, 1]", ErrValidation, a.Opacity)
	}
	if a.Color == "" {
		return fmt.Errorf("%w: color is required", ErrValidation)
	}
	if a.CreatedBy == "" {
		return fmt.Errorf("%w: createdBy is required", ErrValidation)
	}
	switch a.Type {
	case TypeHighlight:
		if a.Highlight == nil || a.Comment != nil {
			return fmt.Errorf("%w: highlight requires a percentage extent", ErrValidation)
		}
		if a.Highlight.Width <= 0 || a.Highlight.Height <= 0 {
			return fmt.Errorf("%w: highlight extent must be positive", ErrValidation)
		}
	case TypeComment:
		if a.Comment == nil || a.Highlight != nil {
			return fmt.Errorf("%w: comment requires a pixel-width extent", ErrValidation)
		}
		if a.Comment.WidthPx <= 0 {
			return fmt.Errorf("%w: comment width must be positive", ErrValidation)
		}
	}
	return nil
}

// ValidateAll validates a whole annotation sequence and checks that ids
// are unique within it.
func ValidateAll(annotations []Annotation, pageCount int) error {
	seen := make(map[string]struct{}, len(annotations))
	for i, a := range annotations {
		if err := a.Validate(pageCount); err != nil {
			return fmt.Errorf("annotation %d: %w", i, err)
		}
		if _, dup := seen[a.ID]; dup {
			return fmt.Errorf("%w: duplicate annotation id %q", ErrValidation, a.ID)
		}
		seen[a.ID] = struct{}{}
	}
	return nil
}

// annotationJSON is the wire form. Highlights carry numeric width/height
// percentages; comments carry a numeric pixel width and the literal
// string "auto" for height.
type annotationJSON struct {
	ID        string          `json:"id"`
	Type      AnnotationType  `json:"type"`
	Page      int             `json:"page"`
	X         float64         `json:"x"`
	Y         float64         `json:"y"`
	Width     float64         `json:"width"`
	Height    json.RawMessage `json:"height"`
	Color     string          `json:"color"`
	Opacity   float64         `json:"opacity"`
	Content   string          `json:"content"`
	CreatedAt time.Time       `json:"createdAt"`
	CreatedBy string          `json:"createdBy"`
}

var autoHeight = json.RawMessage(`"auto"`)

// MarshalJSON implements json.Marshaler.
func (a Annotation) MarshalJSON() ([]byte, error) {
	aux := annotationJSON{
		ID:        a.ID,
		Type:      a.Type,
		Page:      a.Page,
		X:         a.X,
		Y:         a.Y,
		Color:     a.Color,
		Opacity:   a.Opacity,
		Content:   a.Content,
		CreatedAt: a.CreatedAt,
		CreatedBy: a.CreatedBy,
	}
	switch {
	case a.Highlight != nil:
		aux.Width = a.Highlight.Width
		height, err := json.Marshal(a.Highlight.Height)
		if err != nil {
			return nil, err
		}
		aux.Height = height
	case a.Comment != nil:
		aux.Width = a.Comment.WidthPx
		aux.Height = autoHeight
	}
	return json.Marshal(aux)
}

// UnmarshalJSON implements json.Unmarshaler. A missing opacity defaults
// to 1 per the data model.
func (a *Annotation) UnmarshalJSON(data []byte) error {
	aux := annotationJSON{Opacity: 1}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	*a = Annotation{
		ID:        aux.ID,
		Type:      aux.Type,
		Page:      aux.Page,
		X:         aux.X,
		Y:         aux.Y,
		Color:     aux.Color,
		Opacity:   aux.Opacity,
		Content:   aux.Content,
		CreatedAt: aux.CreatedAt,
		CreatedBy: aux.CreatedBy,
	}

	switch aux.Type {
	case TypeComment:
		a.Comment = &CommentExtent{WidthPx: aux.Width}
	default:
		// Highlights and unknown types keep the numeric box; Validate
		// rejects unknown types later.
		var height float64
		if len(aux.Height) > 0 && string(aux.Height) != `"auto"` {
			if err := json.Unmarshal(aux.Height, &height); err != nil {
				return fmt.Errorf("annotation height: %w", err)
			}
		}
		a.Highlight = &HighlightExtent{Width: aux.Width, Height: height}
	}
	return nil
}
