package catalog

import (
	"context"
	"strings"

	"seguimiento/apperr"
	"seguimiento/models"
	"seguimiento/patch"

	"github.com/google/uuid"
)

type BolsaDetail struct {
	models.Bolsa
	TotalEstados   int             `json:"total_estados"`
	EstadosActivos int             `json:"estados_activos"`
	Estados        []models.Estado `json:"estados"`
}

func detail(b models.Bolsa) BolsaDetail {
	d := BolsaDetail{Bolsa: b, Estados: b.Estados, TotalEstados: len(b.Estados)}
	if d.Estados == nil {
		d.Estados = []models.Estado{}
	}
	for _, e := range b.Estados {
		if e.Activo {
			d.EstadosActivos++
		}
	}
	return d
}

func (s *Service) ListBolsas(ctx context.Context, activo *bool) ([]BolsaDetail, error) {
	bolsas, err := s.repo.ListBolsas(ctx, activo)
	if err != nil {
		return nil, err
	}
	out := make([]BolsaDetail, 0, len(bolsas))
	for _, b := range bolsas {
		out = append(out, detail(b))
	}
	return out, nil
}

func (s *Service) GetBolsa(ctx context.Context, id uuid.UUID) (*BolsaDetail, error) {
	b, err := s.repo.BolsaByID(ctx, id)
	if err != nil {
		return nil, err
	}
	d := detail(*b)
	return &d, nil
}

type NewBolsa struct {
	Nombre      string
	Descripcion *string
	Activo      *bool
	// Estados are status names; existing ones (case-insensitive) are moved
	// into the bucket, the rest are created.
	Estados []string
}

func (s *Service) CreateBolsa(ctx context.Context, in NewBolsa) (*BolsaDetail, error) {
	nombre := strings.TrimSpace(in.Nombre)
	if nombre == "" {
		return nil, apperr.InvalidInput("el nombre de la bolsa es obligatorio")
	}

	b := &models.Bolsa{Nombre: nombre, Descripcion: in.Descripcion, Activo: true}
	if in.Activo != nil {
		b.Activo = *in.Activo
	}

	err := s.repo.Atomic(ctx, func(ctx context.Context) error {
		if err := s.checkBolsaName(ctx, nombre, nil); err != nil {
			return err
		}
		if err := s.repo.CreateBolsa(ctx, b); err != nil {
			return err
		}
		return s.attachEstados(ctx, b.ID, in.Estados)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("id_bolsa", b.ID.String()).Str("nombre", b.Nombre).Msg("bolsa creada")
	return s.GetBolsa(ctx, b.ID)
}

type BolsaPatch struct {
	Nombre      patch.Field[string]   `json:"nombre"`
	Descripcion patch.Field[*string]  `json:"descripcion"`
	Activo      patch.Field[bool]     `json:"activo"`
	Estados     patch.Field[[]string] `json:"estados"`
}

// UpdateBolsa applies p. When Estados is present the bucket's membership is
// replaced by the named statuses.
func (s *Service) UpdateBolsa(ctx context.Context, id uuid.UUID, p BolsaPatch) (*BolsaDetail, error) {
	switch {
	case p.Nombre.Null:
		return nil, notNull("nombre")
	case p.Activo.Null:
		return nil, notNull("activo")
	}

	err := s.repo.Atomic(ctx, func(ctx context.Context) error {
		b, err := s.repo.BolsaByID(ctx, id)
		if err != nil {
			return err
		}

		if p.Nombre.Set {
			nombre := strings.TrimSpace(p.Nombre.Value)
			if nombre == "" {
				return apperr.InvalidInput("el nombre de la bolsa no puede estar vacío")
			}
			if err := s.checkBolsaName(ctx, nombre, &b.ID); err != nil {
				return err
			}
			b.Nombre = nombre
		}
		p.Descripcion.Apply(&b.Descripcion)
		p.Activo.Apply(&b.Activo)

		if err := s.repo.SaveBolsa(ctx, b); err != nil {
			return err
		}

		if p.Estados.Set {
			if err := s.repo.DetachEstados(ctx, b.ID); err != nil {
				return err
			}
			return s.attachEstados(ctx, b.ID, p.Estados.Value)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetBolsa(ctx, id)
}

type DeleteResult struct {
	TipoOperacion    string    `json:"tipo_operacion"`
	IDBolsa          uuid.UUID `json:"id_bolsa"`
	Nombre           string    `json:"nombre"`
	EstadosAsociados int       `json:"estados_asociados"`
}

const (
	SoftDelete = "soft_delete"
	HardDelete = "hard_delete"
)

// DeleteBolsa deactivates the bucket, leaving its statuses untouched. With
// force it removes the bucket and its statuses, unless any history entry
// references one of them.
func (s *Service) DeleteBolsa(ctx context.Context, id uuid.UUID, force bool) (*DeleteResult, error) {
	var res *DeleteResult

	err := s.repo.Atomic(ctx, func(ctx context.Context) error {
		b, err := s.repo.BolsaByID(ctx, id)
		if err != nil {
			return err
		}
		res = &DeleteResult{IDBolsa: b.ID, Nombre: b.Nombre, EstadosAsociados: len(b.Estados)}

		if !force {
			res.TipoOperacion = SoftDelete
			b.Activo = false
			return s.repo.SaveBolsa(ctx, b)
		}

		n, err := s.repo.HistorialCountForBolsa(ctx, b.ID)
		if err != nil {
			return err
		}
		if n > 0 {
			return apperr.Conflict(
				"no se puede eliminar la bolsa porque tiene %d registros en el historial; use force=false para desactivarla", n)
		}
		res.TipoOperacion = HardDelete
		return s.repo.DeleteBolsa(ctx, b.ID)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("id_bolsa", res.IDBolsa.String()).
		Str("tipo_operacion", res.TipoOperacion).
		Msg("bolsa eliminada")
	return res, nil
}

func (s *Service) checkBolsaName(ctx context.Context, nombre string, exclude *uuid.UUID) error {
	taken, err := s.repo.BolsaNameTaken(ctx, nombre, exclude)
	if err != nil {
		return err
	}
	if taken {
		return apperr.InvalidInput("ya existe una bolsa con el nombre '%s'", nombre)
	}
	return nil
}

// attachEstados moves existing statuses into the bucket by name and creates
// the missing ones after the current highest orden.
func (s *Service) attachEstados(ctx context.Context, bolsaID uuid.UUID, names []string) error {
	if len(names) > 0 {
		maxOrden, err := s.repo.MaxOrden(ctx)
		if err != nil {
			return err
		}

		for i, raw := range names {
			nombre := strings.TrimSpace(raw)
			if nombre == "" {
				return apperr.InvalidInput("los nombres de estado no pueden estar vacíos")
			}

			existing, err := s.repo.EstadoByName(ctx, nombre)
			switch {
			case err == nil:
				existing.BolsaID = &bolsaID
				if err := s.repo.SaveEstado(ctx, existing); err != nil {
					return err
				}
			case apperr.Is(err, apperr.KindNotFound):
				if err := s.checkCapacity(ctx, 1); err != nil {
					return err
				}
				e := &models.Estado{Nombre: nombre, Orden: maxOrden + i + 1, Activo: true, BolsaID: &bolsaID}
				if err := s.repo.CreateEstado(ctx, e); err != nil {
					return err
				}
			default:
				return err
			}
		}
	}
	return s.repo.RefreshEstadosOrden(ctx, bolsaID)
}
