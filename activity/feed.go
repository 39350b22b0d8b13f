// Package activity merges status history and observations into a single
// newest-first feed. Callers decide which students are visible; the
// aggregator does no authorization.
package activity

import (
	"context"
	"slices"
	"time"

	"seguimiento/apperr"
	"seguimiento/models"

	"github.com/google/uuid"
)

type Kind string

const (
	KindCambioEstado Kind = "cambio_estado"
	KindObservacion  Kind = "observacion"
	// KindAll selects both streams.
	KindAll Kind = ""
)

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// TimeLayout renders timestamps with microseconds and a numeric offset,
// e.g. 2026-03-01T10:30:00.000000+00:00.
const TimeLayout = "2006-01-02T15:04:05.000000-07:00"

func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindAll, KindCambioEstado, KindObservacion:
		return Kind(s), nil
	}
	return "", apperr.InvalidInput("tipo debe ser %q o %q", KindCambioEstado, KindObservacion)
}

type Item struct {
	Tipo         Kind       `json:"tipo"`
	ID           uuid.UUID  `json:"id"`
	AlumnoID     uuid.UUID  `json:"id_alumno"`
	AlumnoNombre string     `json:"alumno_nombre"`
	AutorID      *uuid.UUID `json:"id_autor"`
	AutorNombre  *string    `json:"autor_nombre"`
	Fecha        string     `json:"fecha"`
	EstadoID     *int       `json:"id_estado,omitempty"`
	EstadoNombre *string    `json:"estado_nombre,omitempty"`
	Comentario   *string    `json:"comentario,omitempty"`
	Texto        *string    `json:"texto,omitempty"`

	at time.Time
}

// At returns the event time the feed is ordered by.
func (i Item) At() time.Time { return i.at }

type Source interface {
	HistorialForAlumnos(ctx context.Context, ids []uuid.UUID, limit int) ([]models.HistorialEstado, error)
	ObservacionesForAlumnos(ctx context.Context, ids []uuid.UUID, limit int) ([]models.Observacion, error)
	AlumnoNames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error)
}

type Aggregator struct {
	src Source
}

func NewAggregator(src Source) *Aggregator {
	return &Aggregator{src: src}
}

// Feed returns up to limit events for the given students, newest first.
// Entries sharing a timestamp keep status changes ahead of observations.
func (g *Aggregator) Feed(ctx context.Context, alumnoIDs []uuid.UUID, kind Kind, limit int) ([]Item, error) {
	if limit < 1 || limit > MaxLimit {
		return nil, apperr.InvalidInput("limite debe estar entre 1 y %d", MaxLimit)
	}
	if _, err := ParseKind(string(kind)); err != nil {
		return nil, err
	}
	if len(alumnoIDs) == 0 {
		return []Item{}, nil
	}

	names, err := g.src.AlumnoNames(ctx, alumnoIDs)
	if err != nil {
		return nil, err
	}

	var items []Item

	if kind == KindAll || kind == KindCambioEstado {
		hist, err := g.src.HistorialForAlumnos(ctx, alumnoIDs, limit)
		if err != nil {
			return nil, err
		}
		for _, h := range hist {
			items = append(items, fromHistorial(h, names))
		}
	}

	if kind == KindAll || kind == KindObservacion {
		obs, err := g.src.ObservacionesForAlumnos(ctx, alumnoIDs, limit)
		if err != nil {
			return nil, err
		}
		for _, o := range obs {
			items = append(items, fromObservacion(o, names))
		}
	}

	slices.SortStableFunc(items, func(a, b Item) int {
		return b.at.Compare(a.at)
	})
	if len(items) > limit {
		items = items[:limit]
	}
	if items == nil {
		items = []Item{}
	}
	return items, nil
}

func fromHistorial(h models.HistorialEstado, names map[uuid.UUID]string) Item {
	estadoID := h.EstadoID
	item := Item{
		Tipo:         KindCambioEstado,
		ID:           h.ID,
		AlumnoID:     h.AlumnoID,
		AlumnoNombre: names[h.AlumnoID],
		AutorID:      h.CambiadoPor,
		Fecha:        FormatTime(h.FechaCambio),
		EstadoID:     &estadoID,
		Comentario:   h.Comentario,
		at:           h.FechaCambio,
	}
	if h.Estado != nil {
		nombre := h.Estado.Nombre
		item.EstadoNombre = &nombre
	}
	if h.Autor != nil {
		nombre := h.Autor.DisplayName()
		item.AutorNombre = &nombre
	}
	return item
}

func fromObservacion(o models.Observacion, names map[uuid.UUID]string) Item {
	autor := o.AutorID
	texto := o.Texto
	item := Item{
		Tipo:         KindObservacion,
		ID:           o.ID,
		AlumnoID:     o.AlumnoID,
		AlumnoNombre: names[o.AlumnoID],
		AutorID:      &autor,
		Fecha:        FormatTime(o.CreatedAt),
		Texto:        &texto,
		at:           o.CreatedAt,
	}
	if o.Autor != nil {
		nombre := o.Autor.DisplayName()
		item.AutorNombre = &nombre
	}
	return item
}

func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}
