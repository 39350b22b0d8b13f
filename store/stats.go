package store

import (
	"context"

	"seguimiento/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type EstadoCount struct {
	IDEstado int    `json:"id_estado"`
	Nombre   string `json:"nombre"`
	Total    int64  `json:"total"`
}

type Counts struct {
	TotalMaestros      int64 `json:"total_maestros"`
	TotalAlumnos       int64 `json:"total_alumnos"`
	TotalObservaciones int64 `json:"total_observaciones"`
	TotalCambiosEstado int64 `json:"total_cambios_estado"`
}

// scopeToMaestro restricts a query on a table holding id_alumno to the
// students assigned to maestroID.
func scopeToMaestro(q *gorm.DB, column string, maestroID *uuid.UUID) *gorm.DB {
	if maestroID == nil {
		return q
	}
	return q.Where(column+" IN (SELECT id_alumno FROM tarjetas WHERE id_maestro_asignado = ?)", *maestroID)
}

// DashboardCounts aggregates totals, system-wide or for one teacher's students.
func (s *Store) DashboardCounts(ctx context.Context, maestroID *uuid.UUID) (Counts, error) {
	var c Counts

	if maestroID == nil {
		if err := s.conn(ctx).Model(&models.Maestro{}).Count(&c.TotalMaestros).Error; err != nil {
			return c, translate(err, "maestros")
		}
	}

	q := scopeToMaestro(s.conn(ctx).Model(&models.Alumno{}), "id_alumno", maestroID)
	if err := q.Count(&c.TotalAlumnos).Error; err != nil {
		return c, translate(err, "alumnos")
	}

	q = scopeToMaestro(s.conn(ctx).Model(&models.Observacion{}), "id_alumno", maestroID)
	if err := q.Count(&c.TotalObservaciones).Error; err != nil {
		return c, translate(err, "observaciones")
	}

	q = scopeToMaestro(s.conn(ctx).Model(&models.HistorialEstado{}), "id_alumno", maestroID)
	if err := q.Count(&c.TotalCambiosEstado).Error; err != nil {
		return c, translate(err, "historial")
	}

	return c, nil
}

// DistribucionPorEstado counts students per status, including statuses with
// no students, ordered by orden.
func (s *Store) DistribucionPorEstado(ctx context.Context, maestroID *uuid.UUID) ([]EstadoCount, error) {
	join := "LEFT JOIN alumnos ON alumnos.id_estado_actual = estados.id_estado"
	var args []any
	if maestroID != nil {
		join += " AND alumnos.id_alumno IN (SELECT id_alumno FROM tarjetas WHERE id_maestro_asignado = ?)"
		args = append(args, *maestroID)
	}

	var out []EstadoCount
	err := s.conn(ctx).Table("estados").
		Select("estados.id_estado AS id_estado, estados.nombre AS nombre, COUNT(alumnos.id_alumno) AS total").
		Joins(join, args...).
		Group("estados.id_estado, estados.nombre, estados.orden").
		Order("estados.orden, estados.id_estado").
		Scan(&out).Error
	if err != nil {
		return nil, translate(err, "estados")
	}
	return out, nil
}

// LatestAlumno returns the most recently created student for maestroID, or
// nil when the teacher has none.
func (s *Store) LatestAlumno(ctx context.Context, maestroID uuid.UUID) (*models.Alumno, error) {
	var out []models.Alumno
	err := s.conn(ctx).
		Preload("Persona").
		Preload("Estado").
		Preload("Tarjeta").
		Joins("JOIN tarjetas ON tarjetas.id_alumno = alumnos.id_alumno").
		Where("tarjetas.id_maestro_asignado = ?", maestroID).
		Order("alumnos.created_at DESC").
		Limit(1).
		Find(&out).Error
	if err != nil {
		return nil, translate(err, "alumno")
	}
	if len(out) == 0 {
		return nil, nil
	}
	return &out[0], nil
}

// AuthorCounts counts the observations written and the status changes made
// by personaID, whichever student they concern.
func (s *Store) AuthorCounts(ctx context.Context, personaID uuid.UUID) (observaciones, cambios int64, err error) {
	err = s.conn(ctx).Model(&models.Observacion{}).Where("id_autor = ?", personaID).Count(&observaciones).Error
	if err != nil {
		return 0, 0, translate(err, "observaciones")
	}
	err = s.conn(ctx).Model(&models.HistorialEstado{}).Where("cambiado_por = ?", personaID).Count(&cambios).Error
	if err != nil {
		return 0, 0, translate(err, "historial")
	}
	return observaciones, cambios, nil
}
