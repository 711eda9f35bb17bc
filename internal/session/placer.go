package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pdf-annotator/backend/internal/config"
	"github.com/pdf-annotator/backend/internal/models"
)

// PageBox is the rendered page element's bounding box, in the pointer
// event's coordinate space.
type PageBox struct {
	Left   float64
	Top    float64
	Width  float64
	Height float64
}

// Pointer is a pointer event location in the same coordinate space as
// the PageBox.
type Pointer struct {
	X float64
	Y float64
}

// Placer maps pointer interactions onto annotations. Positions are
// normalized to percentage-of-rendered-page so they survive zoom changes
// and device differences; the clamp margins come from configuration.
type Placer struct {
	cfg   config.Placement
	now   func() time.Time
	newID func() string
}

// NewPlacer creates a placer with the given heuristics.
func NewPlacer(cfg config.Placement) *Placer {
	return &Placer{
		cfg:   cfg,
		now:   time.Now,
		newID: func() string { return "ann_" + uuid.NewString() },
	}
}

// Place builds an annotation for a pointer event on the given page.
// Highlights get a fixed percentage box centered on the pointer;
// comments require non-empty pending text and anchor at the pointer with
// a wider clamp margin, since the bubble's rendered height is unknown.
func (p *Placer) Place(tool models.AnnotationType, page int, box PageBox, ptr Pointer, pendingText, createdBy string) (models.Annotation, error) {
	if box.Width <= 0 || box.Height <= 0 {
		return models.Annotation{}, fmt.Errorf("%w: degenerate page box", models.ErrValidation)
	}

	x := (ptr.X - box.Left) / box.Width * 100
	y := (ptr.Y - box.Top) / box.Height * 100

	switch tool {
	case models.TypeHighlight:
		return models.Annotation{
			ID:   p.newID(),
			Type: models.TypeHighlight,
			Page: page,
			X:    clamp(x-p.cfg.HighlightWidth/2, 0, p.cfg.HighlightClampMax),
			Y:    clamp(y-p.cfg.HighlightHeight/2, 0, p.cfg.HighlightClampMax),
			Highlight: &models.HighlightExtent{
				Width:  p.cfg.HighlightWidth,
				Height: p.cfg.HighlightHeight,
			},
			Color:     p.cfg.HighlightColor,
			Opacity:   p.cfg.HighlightOpacity,
			Content:   "Highlight",
			CreatedAt: p.now().UTC(),
			CreatedBy: createdBy,
		}, nil

	case models.TypeComment:
		text := strings.TrimSpace(pendingText)
		if text == "" {
			return models.Annotation{}, fmt.Errorf("%w: comment text is required before placement", models.ErrValidation)
		}
		return models.Annotation{
			ID:        p.newID(),
			Type:      models.TypeComment,
			Page:      page,
			X:         clamp(x, 0, p.cfg.CommentClampMax),
			Y:         clamp(y, 0, p.cfg.CommentClampMax),
			Comment:   &models.CommentExtent{WidthPx: p.cfg.CommentWidthPx},
			Color:     p.cfg.CommentColor,
			Opacity:   1,
			Content:   text,
			CreatedAt: p.now().UTC(),
			CreatedBy: createdBy,
		}, nil

	default:
		return models.Annotation{}, fmt.Errorf("%w: unknown tool %q", models.ErrValidation, tool)
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
