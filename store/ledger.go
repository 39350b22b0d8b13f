package store

import (
	"context"

	"seguimiento/models"

	"github.com/google/uuid"
	"gorm.io/gorm/clause"
)

// AppendHistorial inserts one history row. There is no update or delete
// counterpart.
func (s *Store) AppendHistorial(ctx context.Context, h *models.HistorialEstado) error {
	return translate(s.conn(ctx).Omit(clause.Associations).Create(h).Error, "historial")
}

func (s *Store) CreateObservacion(ctx context.Context, o *models.Observacion) error {
	return translate(s.conn(ctx).Omit(clause.Associations).Create(o).Error, "observación")
}

// HistorialForAlumnos returns history rows for ids, newest first. limit <= 0
// means no limit.
func (s *Store) HistorialForAlumnos(ctx context.Context, ids []uuid.UUID, limit int) ([]models.HistorialEstado, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q := s.conn(ctx).
		Preload("Estado").
		Preload("Autor").
		Where("id_alumno IN ?", ids).
		Order("fecha_cambio DESC, id_historial")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var out []models.HistorialEstado
	if err := q.Find(&out).Error; err != nil {
		return nil, translate(err, "historial")
	}
	return out, nil
}

// ObservacionesForAlumnos returns observations for ids, newest first.
func (s *Store) ObservacionesForAlumnos(ctx context.Context, ids []uuid.UUID, limit int) ([]models.Observacion, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q := s.conn(ctx).
		Preload("Autor").
		Where("id_alumno IN ?", ids).
		Order("created_at DESC, id_observacion")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var out []models.Observacion
	if err := q.Find(&out).Error; err != nil {
		return nil, translate(err, "observaciones")
	}
	return out, nil
}

// AlumnoNames maps student ids to the display name of their person.
func (s *Store) AlumnoNames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	names := make(map[uuid.UUID]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}

	var rows []struct {
		IDAlumno uuid.UUID
		Nombre   string
		Apellido string
	}
	err := s.conn(ctx).Table("alumnos").
		Select("alumnos.id_alumno, personas.nombre, personas.apellido").
		Joins("JOIN personas ON personas.id_persona = alumnos.id_persona").
		Where("alumnos.id_alumno IN ?", ids).
		Scan(&rows).Error
	if err != nil {
		return nil, translate(err, "alumnos")
	}

	for _, r := range rows {
		p := models.Persona{Nombre: r.Nombre, Apellido: r.Apellido}
		names[r.IDAlumno] = p.DisplayName()
	}
	return names, nil
}
