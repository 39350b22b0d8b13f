package store

import (
	"context"

	"seguimiento/apperr"
	"seguimiento/models"
	"seguimiento/patch"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AlumnoFilter restricts ListAlumnos. A nil MaestroID lists every student.
type AlumnoFilter struct {
	MaestroID *uuid.UUID
}

func (s *Store) alumnos(ctx context.Context) *gorm.DB {
	return s.conn(ctx).Model(&models.Alumno{}).
		Preload("Persona").
		Preload("Estado").
		Preload("Tarjeta.Maestro.Persona")
}

func (s *Store) ListAlumnos(ctx context.Context, f AlumnoFilter) ([]models.Alumno, error) {
	q := s.alumnos(ctx).
		Joins("JOIN personas ON personas.id_persona = alumnos.id_persona").
		Order("personas.apellido, personas.nombre")
	if f.MaestroID != nil {
		q = q.Joins("JOIN tarjetas ON tarjetas.id_alumno = alumnos.id_alumno").
			Where("tarjetas.id_maestro_asignado = ?", *f.MaestroID)
	}

	var out []models.Alumno
	if err := q.Find(&out).Error; err != nil {
		return nil, translate(err, "alumnos")
	}
	return out, nil
}

func (s *Store) AlumnoByID(ctx context.Context, id uuid.UUID) (*models.Alumno, error) {
	var a models.Alumno
	if err := s.alumnos(ctx).First(&a, "alumnos.id_alumno = ?", id).Error; err != nil {
		return nil, translate(err, "alumno")
	}
	return &a, nil
}

// AlumnoForUpdate loads the student row and locks it until the surrounding
// transaction ends. Concurrent status changes on one student serialize here.
func (s *Store) AlumnoForUpdate(ctx context.Context, id uuid.UUID) (*models.Alumno, error) {
	var a models.Alumno
	err := s.conn(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&a, "id_alumno = ?", id).Error
	if err != nil {
		return nil, translate(err, "alumno")
	}
	return &a, nil
}

// AlumnoIDs returns the students visible through maestroID, or every student
// when maestroID is nil.
func (s *Store) AlumnoIDs(ctx context.Context, maestroID *uuid.UUID) ([]uuid.UUID, error) {
	q := s.conn(ctx).Model(&models.Alumno{})
	if maestroID != nil {
		q = q.Joins("JOIN tarjetas ON tarjetas.id_alumno = alumnos.id_alumno").
			Where("tarjetas.id_maestro_asignado = ?", *maestroID)
	}

	var ids []uuid.UUID
	if err := q.Pluck("alumnos.id_alumno", &ids).Error; err != nil {
		return nil, translate(err, "alumnos")
	}
	return ids, nil
}

// CreateAlumno writes the person, the student and its assignment card
// together. maestroID may be nil for an unassigned student.
func (s *Store) CreateAlumno(ctx context.Context, p *models.Persona, a *models.Alumno, maestroID *uuid.UUID) error {
	return s.Atomic(ctx, func(ctx context.Context) error {
		if err := s.CreatePersona(ctx, p); err != nil {
			return err
		}

		a.PersonaID = p.ID
		if err := s.conn(ctx).Omit(clause.Associations).Create(a).Error; err != nil {
			return translate(err, "alumno")
		}

		t := &models.Tarjeta{AlumnoID: a.ID, MaestroID: maestroID}
		if err := s.conn(ctx).Omit(clause.Associations).Create(t).Error; err != nil {
			return translate(err, "tarjeta")
		}
		a.Tarjeta = t
		return nil
	})
}

// UpdateAlumno applies person-level and student-level column changes in one
// transaction.
func (s *Store) UpdateAlumno(ctx context.Context, id uuid.UUID, persona, alumno patch.Changes) error {
	return s.Atomic(ctx, func(ctx context.Context) error {
		a, err := s.AlumnoForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := s.UpdatePersona(ctx, a.PersonaID, persona); err != nil {
			return err
		}
		if alumno.Empty() {
			return nil
		}
		err = s.conn(ctx).Model(&models.Alumno{}).
			Where("id_alumno = ?", id).
			Updates(map[string]any(alumno)).Error
		return translate(err, "alumno")
	})
}

// DeleteAlumno removes the student's person row. Foreign keys cascade to
// the student, its card, its history and its observations.
func (s *Store) DeleteAlumno(ctx context.Context, id uuid.UUID) error {
	return s.Atomic(ctx, func(ctx context.Context) error {
		a, err := s.AlumnoForUpdate(ctx, id)
		if err != nil {
			return err
		}
		err = s.conn(ctx).Delete(&models.Persona{}, "id_persona = ?", a.PersonaID).Error
		return translate(err, "alumno")
	})
}

// AssignMaestro points the student's card at maestroID, creating the card if
// it is missing.
func (s *Store) AssignMaestro(ctx context.Context, alumnoID uuid.UUID, maestroID uuid.UUID) error {
	return s.Atomic(ctx, func(ctx context.Context) error {
		if _, err := s.AlumnoForUpdate(ctx, alumnoID); err != nil {
			return err
		}
		res := s.conn(ctx).Model(&models.Tarjeta{}).
			Where("id_alumno = ?", alumnoID).
			Update("id_maestro_asignado", maestroID)
		if res.Error != nil {
			return translate(res.Error, "tarjeta")
		}
		if res.RowsAffected > 0 {
			return nil
		}
		t := &models.Tarjeta{AlumnoID: alumnoID, MaestroID: &maestroID}
		return translate(s.conn(ctx).Omit(clause.Associations).Create(t).Error, "tarjeta")
	})
}

func (s *Store) SetAlumnoEstado(ctx context.Context, alumnoID uuid.UUID, estadoID int) error {
	res := s.conn(ctx).Model(&models.Alumno{}).
		Where("id_alumno = ?", alumnoID).
		Update("id_estado_actual", estadoID)
	if res.Error != nil {
		return translate(res.Error, "alumno")
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("alumno no encontrado")
	}
	return nil
}
