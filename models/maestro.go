package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Maestro struct {
	ID        uuid.UUID `gorm:"column:id_maestro;type:uuid;primaryKey" json:"id_maestro"`
	PersonaID uuid.UUID `gorm:"column:id_persona;type:uuid;uniqueIndex;not null" json:"id_persona"`
	Persona   *Persona  `gorm:"foreignKey:PersonaID;references:ID;constraint:OnDelete:CASCADE" json:"-"`
	Telefono  *string   `gorm:"size:50" json:"telefono"`
	Direccion *string   `gorm:"size:255" json:"direccion"`
	CreatedAt time.Time `json:"created_at"`
}

func (m *Maestro) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
