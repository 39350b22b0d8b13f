// Package catalog manages statuses (estados) and the buckets (bolsas) that
// group them.
package catalog

import (
	"context"
	"strings"

	"seguimiento/apperr"
	"seguimiento/models"
	"seguimiento/patch"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Repository interface {
	Atomic(ctx context.Context, fn func(ctx context.Context) error) error

	ListEstados(ctx context.Context) ([]models.Estado, error)
	EstadoByID(ctx context.Context, id int) (*models.Estado, error)
	EstadoByName(ctx context.Context, name string) (*models.Estado, error)
	CountActiveEstados(ctx context.Context) (int64, error)
	MaxOrden(ctx context.Context) (int, error)
	CreateEstado(ctx context.Context, e *models.Estado) error
	SaveEstado(ctx context.Context, e *models.Estado) error
	EstadosInBolsa(ctx context.Context, bolsaID uuid.UUID, activeOnly bool) ([]models.Estado, error)
	DetachEstados(ctx context.Context, bolsaID uuid.UUID) error

	ListBolsas(ctx context.Context, activo *bool) ([]models.Bolsa, error)
	BolsaByID(ctx context.Context, id uuid.UUID) (*models.Bolsa, error)
	BolsaNameTaken(ctx context.Context, name string, exclude *uuid.UUID) (bool, error)
	CreateBolsa(ctx context.Context, b *models.Bolsa) error
	SaveBolsa(ctx context.Context, b *models.Bolsa) error
	DeleteBolsa(ctx context.Context, id uuid.UUID) error
	HistorialCountForBolsa(ctx context.Context, bolsaID uuid.UUID) (int64, error)
	RefreshEstadosOrden(ctx context.Context, bolsaID uuid.UUID) error
}

type Service struct {
	repo       Repository
	maxActivos int
	log        zerolog.Logger
}

func NewService(repo Repository, maxActivos int, log zerolog.Logger) *Service {
	return &Service{
		repo:       repo,
		maxActivos: maxActivos,
		log:        log.With().Str("component", "catalog").Logger(),
	}
}

func (s *Service) ListEstados(ctx context.Context) ([]models.Estado, error) {
	return s.repo.ListEstados(ctx)
}

type NewEstado struct {
	Nombre  string
	Orden   int
	BolsaID *uuid.UUID
}

// CreateEstado adds an active status. It fails with InvalidInput once the
// active cap is reached and with Conflict on a duplicate name.
func (s *Service) CreateEstado(ctx context.Context, in NewEstado) (*models.Estado, error) {
	nombre := strings.TrimSpace(in.Nombre)
	if nombre == "" {
		return nil, apperr.InvalidInput("el nombre del estado es obligatorio")
	}

	e := &models.Estado{Nombre: nombre, Orden: in.Orden, Activo: true, BolsaID: in.BolsaID}

	err := s.repo.Atomic(ctx, func(ctx context.Context) error {
		if err := s.checkCapacity(ctx, 1); err != nil {
			return err
		}
		if err := s.checkEstadoName(ctx, nombre, 0); err != nil {
			return err
		}
		if in.BolsaID != nil {
			if _, err := s.repo.BolsaByID(ctx, *in.BolsaID); err != nil {
				return err
			}
		}
		if err := s.repo.CreateEstado(ctx, e); err != nil {
			return err
		}
		if in.BolsaID != nil {
			return s.repo.RefreshEstadosOrden(ctx, *in.BolsaID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Int("id_estado", e.ID).Str("nombre", e.Nombre).Msg("estado creado")
	return e, nil
}

type EstadoUpdate struct {
	ID     int                 `json:"id_estado" validate:"required,min=1"`
	Nombre patch.Field[string] `json:"nombre"`
	Orden  patch.Field[int]    `json:"orden"`
	Activo patch.Field[bool]   `json:"activo"`
}

func (u EstadoUpdate) check() error {
	switch {
	case u.Nombre.Null:
		return notNull("nombre")
	case u.Orden.Null:
		return notNull("orden")
	case u.Activo.Null:
		return notNull("activo")
	}
	return nil
}

func notNull(field string) error {
	return apperr.InvalidInput("%s no puede ser null", field)
}

// UpdateEstados applies a batch of partial updates atomically. The active
// cap is checked against the final state.
func (s *Service) UpdateEstados(ctx context.Context, updates []EstadoUpdate) ([]models.Estado, error) {
	out := make([]models.Estado, 0, len(updates))

	err := s.repo.Atomic(ctx, func(ctx context.Context) error {
		bolsas := map[uuid.UUID]struct{}{}

		for _, u := range updates {
			if err := u.check(); err != nil {
				return err
			}
			e, err := s.repo.EstadoByID(ctx, u.ID)
			if err != nil {
				if apperr.Is(err, apperr.KindNotFound) {
					return apperr.NotFound("estado con id_estado=%d no encontrado", u.ID)
				}
				return err
			}

			if u.Nombre.Set {
				nombre := strings.TrimSpace(u.Nombre.Value)
				if nombre == "" {
					return apperr.InvalidInput("el nombre del estado %d no puede estar vacío", u.ID)
				}
				if err := s.checkEstadoName(ctx, nombre, e.ID); err != nil {
					return err
				}
				e.Nombre = nombre
			}
			u.Orden.Apply(&e.Orden)
			u.Activo.Apply(&e.Activo)

			if err := s.repo.SaveEstado(ctx, e); err != nil {
				return err
			}
			if e.BolsaID != nil {
				bolsas[*e.BolsaID] = struct{}{}
			}
			out = append(out, *e)
		}

		if err := s.checkCapacity(ctx, 0); err != nil {
			return err
		}
		for id := range bolsas {
			if err := s.repo.RefreshEstadosOrden(ctx, id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// checkCapacity fails when the active count plus adding would exceed the cap.
func (s *Service) checkCapacity(ctx context.Context, adding int) error {
	n, err := s.repo.CountActiveEstados(ctx)
	if err != nil {
		return err
	}
	if int(n)+adding > s.maxActivos {
		return apperr.InvalidInput("no se pueden tener más de %d estados activos", s.maxActivos)
	}
	return nil
}

func (s *Service) checkEstadoName(ctx context.Context, nombre string, self int) error {
	existing, err := s.repo.EstadoByName(ctx, nombre)
	switch {
	case apperr.Is(err, apperr.KindNotFound):
		return nil
	case err != nil:
		return err
	case existing.ID != self:
		return apperr.Conflict("ya existe un estado con el nombre '%s'", nombre)
	}
	return nil
}
