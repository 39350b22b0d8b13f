package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// HistorialEstado rows are written once by the transition recorder and never
// updated.
type HistorialEstado struct {
	ID          uuid.UUID  `gorm:"column:id_historial;type:uuid;primaryKey"`
	AlumnoID    uuid.UUID  `gorm:"column:id_alumno;type:uuid;not null;index"`
	EstadoID    int        `gorm:"column:id_estado;not null;index"`
	Estado      *Estado    `gorm:"foreignKey:EstadoID;references:ID;constraint:OnDelete:RESTRICT"`
	Comentario  *string    `gorm:"size:500"`
	FechaCambio time.Time  `gorm:"not null;index"`
	CambiadoPor *uuid.UUID `gorm:"column:cambiado_por;type:uuid"`
	Autor       *Persona   `gorm:"foreignKey:CambiadoPor;references:ID;constraint:OnDelete:SET NULL"`
}

func (HistorialEstado) TableName() string { return "historial_estados" }

func (h *HistorialEstado) BeforeCreate(tx *gorm.DB) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	return nil
}

type Observacion struct {
	ID        uuid.UUID `gorm:"column:id_observacion;type:uuid;primaryKey"`
	AlumnoID  uuid.UUID `gorm:"column:id_alumno;type:uuid;not null;index"`
	AutorID   uuid.UUID `gorm:"column:id_autor;type:uuid;not null;index"`
	Autor     *Persona  `gorm:"foreignKey:AutorID;references:ID;constraint:OnDelete:RESTRICT"`
	Texto     string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"index"`
}

func (Observacion) TableName() string { return "observaciones" }

func (o *Observacion) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
