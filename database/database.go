package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"seguimiento/config"
	"seguimiento/models"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Open connects to PostgreSQL and applies pool settings. GORM output goes
// through zl.
func Open(cfg config.DatabaseConfig, zl zerolog.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.URL), &gorm.Config{
		Logger: NewGormLogger(zl, cfg.LogLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return db, nil
}

type gormWriter struct {
	log zerolog.Logger
}

func (w gormWriter) Printf(format string, args ...interface{}) {
	w.log.Info().Msgf(format, args...)
}

func NewGormLogger(zl zerolog.Logger, level string) logger.Interface {
	lvl := logger.Warn
	switch level {
	case "silent":
		lvl = logger.Silent
	case "error":
		lvl = logger.Error
	case "info", "debug":
		lvl = logger.Info
	}
	return logger.New(gormWriter{log: zl.With().Str("component", "gorm").Logger()}, logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  lvl,
		IgnoreRecordNotFoundError: true,
	})
}

// Migrate creates or updates every table used by the service.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Profile{},
		&models.Role{},
		&models.Persona{},
		&models.PersonRole{},
		&models.Maestro{},
		&models.Bolsa{},
		&models.Estado{},
		&models.Alumno{},
		&models.Tarjeta{},
		&models.HistorialEstado{},
		&models.Observacion{},
	)
}

// Seed inserts the fixed roles and profiles and a default administrator.
// It is safe to run on every start.
func Seed(ctx context.Context, db *gorm.DB, cfg config.SeedConfig, log zerolog.Logger) error {
	tx := db.WithContext(ctx)

	roles := []models.Role{
		{ID: models.RolePastor, Nombre: "pastor"},
		{ID: models.RoleMaestro, Nombre: "maestro"},
	}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&roles).Error; err != nil {
		return fmt.Errorf("seed roles: %w", err)
	}

	profiles := []models.Profile{
		{ID: 1, Descripcion: "Administrador", NivelAcceso: models.NivelAdministrador},
		{ID: 2, Descripcion: "Moderador", NivelAcceso: models.NivelModerador},
		{ID: 3, Descripcion: "Usuario", NivelAcceso: models.NivelUsuario},
	}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&profiles).Error; err != nil {
		return fmt.Errorf("seed profiles: %w", err)
	}

	return seedDefaultAdmin(tx, cfg, log)
}

func seedDefaultAdmin(tx *gorm.DB, cfg config.SeedConfig, log zerolog.Logger) error {
	var existing models.Persona
	err := tx.Where("email = ?", cfg.AdminEmail).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	email := cfg.AdminEmail
	admin := models.Persona{
		Nombre:       "Administrador",
		Email:        &email,
		PasswordHash: string(hashedPassword),
		ProfileID:    1,
	}

	err = tx.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&admin).Error; err != nil {
			return err
		}
		return tx.Create(&models.PersonRole{PersonID: admin.ID, RoleID: models.RolePastor}).Error
	})
	if err != nil {
		return err
	}

	log.Info().Str("email", email).Msg("default admin persona created")
	return nil
}
