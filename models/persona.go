package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role ids are fixed by the seed.
const (
	RolePastor  int16 = 1
	RoleMaestro int16 = 2
)

// Access levels carried by Profile.NivelAcceso.
const (
	NivelAdministrador int16 = 1
	NivelModerador     int16 = 2
	NivelUsuario       int16 = 3
)

type Profile struct {
	ID          int16  `gorm:"column:id_perfil;primaryKey;autoIncrement:false" json:"id_perfil"`
	Descripcion string `gorm:"size:100;not null" json:"descripcion"`
	NivelAcceso int16  `gorm:"not null" json:"nivel_acceso"`
}

type Role struct {
	ID     int16  `gorm:"column:id_rol;primaryKey;autoIncrement:false" json:"id_rol"`
	Nombre string `gorm:"size:50;uniqueIndex;not null" json:"nombre"`
}

type PersonRole struct {
	PersonID   uuid.UUID `gorm:"column:person_id;type:uuid;primaryKey" json:"person_id"`
	Persona    *Persona  `gorm:"foreignKey:PersonID;references:ID;constraint:OnDelete:CASCADE" json:"-"`
	RoleID     int16     `gorm:"column:id_rol;primaryKey" json:"id_rol"`
	Role       *Role     `gorm:"foreignKey:RoleID;references:ID" json:"-"`
	AssignedAt time.Time `gorm:"autoCreateTime" json:"assigned_at"`
}

type Persona struct {
	ID           uuid.UUID `gorm:"column:id_persona;type:uuid;primaryKey" json:"id_persona"`
	AuthUserID   string    `gorm:"column:auth_user_id;size:255;uniqueIndex;not null" json:"auth_user_id"`
	Nombre       string    `gorm:"size:100;not null" json:"nombre"`
	Apellido     string    `gorm:"size:100;not null" json:"apellido"`
	Email        *string   `gorm:"size:255;uniqueIndex" json:"email"`
	PasswordHash string    `gorm:"column:password;size:255" json:"-"`
	FotoURL      *string   `gorm:"column:foto_url" json:"foto_url"`
	ProfileID    int16     `gorm:"column:id_perfil;not null" json:"id_perfil"`
	Profile      *Profile  `gorm:"foreignKey:ProfileID;references:ID" json:"perfil,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (p *Persona) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.AuthUserID == "" {
		p.AuthUserID = p.ID.String()
	}
	return nil
}

func (p *Persona) DisplayName() string {
	if p.Apellido == "" {
		return p.Nombre
	}
	return p.Nombre + " " + p.Apellido
}
