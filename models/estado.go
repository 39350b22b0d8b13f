package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

type Estado struct {
	ID        int        `gorm:"column:id_estado;primaryKey" json:"id_estado"`
	Nombre    string     `gorm:"size:100;uniqueIndex;not null" json:"nombre"`
	Orden     int        `gorm:"not null" json:"orden"`
	Activo    bool       `gorm:"not null" json:"activo"`
	BolsaID   *uuid.UUID `gorm:"column:id_bolsa;type:uuid;index" json:"id_bolsa"`
	CreatedAt time.Time  `json:"created_at"`
}

// Bolsa groups statuses belonging to one lifecycle context. EstadosOrden
// mirrors the member ids sorted by Orden.
type Bolsa struct {
	ID           uuid.UUID     `gorm:"column:id_bolsa;type:uuid;primaryKey" json:"id_bolsa"`
	Nombre       string        `gorm:"size:100;uniqueIndex;not null" json:"nombre"`
	Descripcion  *string       `gorm:"type:text" json:"descripcion"`
	EstadosOrden pq.Int64Array `gorm:"type:bigint[]" json:"estados_orden"`
	Activo       bool          `gorm:"not null" json:"activo"`
	Estados      []Estado      `gorm:"foreignKey:BolsaID;references:ID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

func (b *Bolsa) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}
