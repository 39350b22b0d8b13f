package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Alumno.EstadoID is the only stored copy of a student's current status.
type Alumno struct {
	ID            uuid.UUID         `gorm:"column:id_alumno;type:uuid;primaryKey"`
	PersonaID     uuid.UUID         `gorm:"column:id_persona;type:uuid;uniqueIndex;not null"`
	Persona       *Persona          `gorm:"foreignKey:PersonaID;references:ID;constraint:OnDelete:CASCADE"`
	Dias          datatypes.JSON    `gorm:"type:jsonb"`
	FranjaHoraria *string           `gorm:"size:100"`
	MotivoOracion *string           `gorm:"size:300"`
	EstadoID      int               `gorm:"column:id_estado_actual;not null;index"`
	Estado        *Estado           `gorm:"foreignKey:EstadoID;references:ID;constraint:OnDelete:RESTRICT"`
	Tarjeta       *Tarjeta          `gorm:"foreignKey:AlumnoID;references:ID;constraint:OnDelete:CASCADE"`
	Historial     []HistorialEstado `gorm:"foreignKey:AlumnoID;references:ID;constraint:OnDelete:CASCADE"`
	Observaciones []Observacion     `gorm:"foreignKey:AlumnoID;references:ID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (a *Alumno) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// MaestroID returns the assigned teacher, if any.
func (a *Alumno) MaestroID() *uuid.UUID {
	if a.Tarjeta == nil {
		return nil
	}
	return a.Tarjeta.MaestroID
}

// AssignedTo reports whether the student's card points at maestroID.
func (a *Alumno) AssignedTo(maestroID uuid.UUID) bool {
	m := a.MaestroID()
	return m != nil && *m == maestroID
}

// Tarjeta binds a student to the teacher currently responsible for it.
type Tarjeta struct {
	ID        uuid.UUID  `gorm:"column:id_tarjeta;type:uuid;primaryKey"`
	AlumnoID  uuid.UUID  `gorm:"column:id_alumno;type:uuid;uniqueIndex;not null"`
	MaestroID *uuid.UUID `gorm:"column:id_maestro_asignado;type:uuid;index"`
	Maestro   *Maestro   `gorm:"foreignKey:MaestroID;references:ID;constraint:OnDelete:SET NULL"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (t *Tarjeta) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
