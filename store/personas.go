package store

import (
	"context"
	"strings"

	"seguimiento/apperr"
	"seguimiento/models"
	"seguimiento/patch"

	"github.com/google/uuid"
)

func (s *Store) PersonaByAuthID(ctx context.Context, authUserID string) (*models.Persona, error) {
	var p models.Persona
	if err := s.conn(ctx).Where("auth_user_id = ?", authUserID).First(&p).Error; err != nil {
		return nil, translate(err, "persona")
	}
	return &p, nil
}

func (s *Store) PersonaByEmail(ctx context.Context, email string) (*models.Persona, error) {
	var p models.Persona
	err := s.conn(ctx).Where("LOWER(email) = ?", strings.ToLower(email)).First(&p).Error
	if err != nil {
		return nil, translate(err, "persona")
	}
	return &p, nil
}

func (s *Store) PersonaByID(ctx context.Context, id uuid.UUID) (*models.Persona, error) {
	var p models.Persona
	if err := s.conn(ctx).Preload("Profile").First(&p, "id_persona = ?", id).Error; err != nil {
		return nil, translate(err, "persona")
	}
	return &p, nil
}

func (s *Store) ProfileByID(ctx context.Context, id int16) (*models.Profile, error) {
	var p models.Profile
	if err := s.conn(ctx).First(&p, "id_perfil = ?", id).Error; err != nil {
		return nil, translate(err, "perfil")
	}
	return &p, nil
}

func (s *Store) RoleIDs(ctx context.Context, personaID uuid.UUID) ([]int16, error) {
	var ids []int16
	err := s.conn(ctx).Model(&models.PersonRole{}).
		Where("person_id = ?", personaID).
		Order("id_rol").
		Pluck("id_rol", &ids).Error
	if err != nil {
		return nil, translate(err, "roles")
	}
	return ids, nil
}

func (s *Store) RoleByID(ctx context.Context, id int16) (*models.Role, error) {
	var r models.Role
	if err := s.conn(ctx).First(&r, "id_rol = ?", id).Error; err != nil {
		return nil, translate(err, "rol")
	}
	return &r, nil
}

// PersonaFilter restricts ListPersonas. A nil IDs slice means no restriction.
type PersonaFilter struct {
	IDs []uuid.UUID
}

func (s *Store) ListPersonas(ctx context.Context, f PersonaFilter) ([]models.Persona, error) {
	q := s.conn(ctx).Preload("Profile").Order("apellido, nombre")
	if f.IDs != nil {
		if len(f.IDs) == 0 {
			return []models.Persona{}, nil
		}
		q = q.Where("id_persona IN ?", f.IDs)
	}

	var out []models.Persona
	if err := q.Find(&out).Error; err != nil {
		return nil, translate(err, "personas")
	}
	return out, nil
}

// PersonaIDsWithRole lists the people holding role.
func (s *Store) PersonaIDsWithRole(ctx context.Context, role int16) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := s.conn(ctx).Model(&models.PersonRole{}).
		Where("id_rol = ?", role).
		Pluck("person_id", &ids).Error
	if err != nil {
		return nil, translate(err, "roles")
	}
	return ids, nil
}

// StudentPersonaIDs lists the person ids behind the students assigned to
// maestroID.
func (s *Store) StudentPersonaIDs(ctx context.Context, maestroID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := s.conn(ctx).Model(&models.Alumno{}).
		Joins("JOIN tarjetas ON tarjetas.id_alumno = alumnos.id_alumno").
		Where("tarjetas.id_maestro_asignado = ?", maestroID).
		Pluck("alumnos.id_persona", &ids).Error
	if err != nil {
		return nil, translate(err, "alumnos")
	}
	return ids, nil
}

func (s *Store) CreatePersona(ctx context.Context, p *models.Persona) error {
	return translate(s.conn(ctx).Omit("Profile").Create(p).Error, "persona")
}

func (s *Store) UpdatePersona(ctx context.Context, id uuid.UUID, changes patch.Changes) error {
	if changes.Empty() {
		return nil
	}
	res := s.conn(ctx).Model(&models.Persona{}).Where("id_persona = ?", id).Updates(map[string]any(changes))
	if res.Error != nil {
		return translate(res.Error, "persona")
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("persona no encontrada")
	}
	return nil
}

func (s *Store) SetProfile(ctx context.Context, personaID uuid.UUID, profileID int16) error {
	return s.UpdatePersona(ctx, personaID, patch.Changes{"id_perfil": profileID})
}

func (s *Store) SetPassword(ctx context.Context, personaID uuid.UUID, hash string) error {
	return s.UpdatePersona(ctx, personaID, patch.Changes{"password": hash})
}

// AddRole grants role to the person. Holding it already is a Conflict.
func (s *Store) AddRole(ctx context.Context, personaID uuid.UUID, role int16) error {
	err := s.conn(ctx).Create(&models.PersonRole{PersonID: personaID, RoleID: role}).Error
	return translate(err, "rol asignado")
}
