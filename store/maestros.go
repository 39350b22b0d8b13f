package store

import (
	"context"

	"seguimiento/models"

	"github.com/google/uuid"
)

func (s *Store) MaestroByPersona(ctx context.Context, personaID uuid.UUID) (*models.Maestro, error) {
	var m models.Maestro
	if err := s.conn(ctx).Where("id_persona = ?", personaID).First(&m).Error; err != nil {
		return nil, translate(err, "maestro")
	}
	return &m, nil
}

func (s *Store) MaestroByID(ctx context.Context, id uuid.UUID) (*models.Maestro, error) {
	var m models.Maestro
	if err := s.conn(ctx).Preload("Persona").First(&m, "id_maestro = ?", id).Error; err != nil {
		return nil, translate(err, "maestro")
	}
	return &m, nil
}

func (s *Store) ListMaestros(ctx context.Context) ([]models.Maestro, error) {
	var out []models.Maestro
	err := s.conn(ctx).Preload("Persona").
		Joins("JOIN personas ON personas.id_persona = maestros.id_persona").
		Order("personas.apellido, personas.nombre").
		Find(&out).Error
	if err != nil {
		return nil, translate(err, "maestros")
	}
	return out, nil
}

// CreateMaestro stores the person, its teacher record and the teacher role
// in one transaction.
func (s *Store) CreateMaestro(ctx context.Context, p *models.Persona, m *models.Maestro) error {
	return s.Atomic(ctx, func(ctx context.Context) error {
		if err := s.CreatePersona(ctx, p); err != nil {
			return err
		}
		m.PersonaID = p.ID
		if err := s.conn(ctx).Omit("Persona").Create(m).Error; err != nil {
			return translate(err, "maestro")
		}
		return s.AddRole(ctx, p.ID, models.RoleMaestro)
	})
}
