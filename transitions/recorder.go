// Package transitions applies status changes to students and keeps the
// append-only status history.
package transitions

import (
	"context"
	"slices"
	"time"

	"seguimiento/apperr"
	"seguimiento/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Ledger is the storage the recorder writes through. Atomic must run fn in a
// single transaction and roll back when fn fails.
type Ledger interface {
	Atomic(ctx context.Context, fn func(ctx context.Context) error) error
	AlumnoByID(ctx context.Context, id uuid.UUID) (*models.Alumno, error)
	AlumnoForUpdate(ctx context.Context, id uuid.UUID) (*models.Alumno, error)
	EstadoByID(ctx context.Context, id int) (*models.Estado, error)
	EstadosInBolsa(ctx context.Context, bolsaID uuid.UUID, activeOnly bool) ([]models.Estado, error)
	SetAlumnoEstado(ctx context.Context, alumnoID uuid.UUID, estadoID int) error
	AppendHistorial(ctx context.Context, h *models.HistorialEstado) error
}

type Recorder struct {
	ledger Ledger
	now    func() time.Time
	log    zerolog.Logger
}

type Option func(*Recorder)

// WithClock overrides the timestamp source for history rows.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

func NewRecorder(ledger Ledger, log zerolog.Logger, opts ...Option) *Recorder {
	r := &Recorder{
		ledger: ledger,
		now:    time.Now,
		log:    log.With().Str("component", "transitions").Logger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type Change struct {
	AlumnoID   uuid.UUID
	EstadoID   int
	Actor      uuid.UUID
	Comentario *string
}

type Result struct {
	AlumnoID       uuid.UUID
	EstadoAnterior int
	EstadoNuevo    int
	Historial      models.HistorialEstado
}

// ChangeStatus moves the student to c.EstadoID and appends one history row.
// Both writes commit together. On any error nothing is written.
func (r *Recorder) ChangeStatus(ctx context.Context, c Change) (*Result, error) {
	var res *Result

	err := r.ledger.Atomic(ctx, func(ctx context.Context) error {
		alumno, err := r.ledger.AlumnoForUpdate(ctx, c.AlumnoID)
		if err != nil {
			return err
		}

		estado, err := r.ledger.EstadoByID(ctx, c.EstadoID)
		if err != nil {
			if apperr.Is(err, apperr.KindNotFound) {
				return apperr.Wrap(err, apperr.KindNotFound, "estado %d no encontrado", c.EstadoID)
			}
			return err
		}
		if !estado.Activo {
			return apperr.InvalidInput("el estado %d no está activo", c.EstadoID)
		}

		previous := alumno.EstadoID

		if err := r.ledger.SetAlumnoEstado(ctx, alumno.ID, estado.ID); err != nil {
			return asInternal(err, "no se pudo actualizar el estado del alumno")
		}

		actor := c.Actor
		h := models.HistorialEstado{
			AlumnoID:    alumno.ID,
			EstadoID:    estado.ID,
			Comentario:  c.Comentario,
			FechaCambio: r.now().UTC(),
			CambiadoPor: &actor,
		}
		if err := r.ledger.AppendHistorial(ctx, &h); err != nil {
			return asInternal(err, "no se pudo registrar el historial")
		}
		h.Estado = estado

		res = &Result{
			AlumnoID:       alumno.ID,
			EstadoAnterior: previous,
			EstadoNuevo:    estado.ID,
			Historial:      h,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.log.Info().
		Str("alumno", res.AlumnoID.String()).
		Int("estado_anterior", res.EstadoAnterior).
		Int("estado_nuevo", res.EstadoNuevo).
		Str("cambiado_por", c.Actor.String()).
		Msg("estado cambiado")

	return res, nil
}

// Available is one entry of AvailableStatuses.
type Available struct {
	models.Estado
	Actual bool `json:"actual"`
}

// AvailableStatuses suggests the statuses a student may move to: every
// active status in the bucket of its current status, ordered by orden, with
// the current one flagged. A current status outside any bucket is returned
// alone. The list is advisory; ChangeStatus does not enforce it.
func (r *Recorder) AvailableStatuses(ctx context.Context, alumnoID uuid.UUID) ([]Available, error) {
	alumno, err := r.ledger.AlumnoByID(ctx, alumnoID)
	if err != nil {
		return nil, err
	}

	current, err := r.ledger.EstadoByID(ctx, alumno.EstadoID)
	if err != nil {
		return nil, err
	}

	if current.BolsaID == nil {
		return []Available{{Estado: *current, Actual: true}}, nil
	}

	members, err := r.ledger.EstadosInBolsa(ctx, *current.BolsaID, true)
	if err != nil {
		return nil, err
	}

	out := make([]Available, 0, len(members)+1)
	found := false
	for _, e := range members {
		isCurrent := e.ID == current.ID
		found = found || isCurrent
		out = append(out, Available{Estado: e, Actual: isCurrent})
	}
	if !found {
		out = append(out, Available{Estado: *current, Actual: true})
		slices.SortStableFunc(out, func(a, b Available) int {
			if a.Orden != b.Orden {
				return a.Orden - b.Orden
			}
			return a.ID - b.ID
		})
	}
	return out, nil
}

func asInternal(err error, msg string) error {
	if apperr.KindOf(err) != apperr.KindInternal {
		return err
	}
	return apperr.Internal(err, "%s", msg)
}
