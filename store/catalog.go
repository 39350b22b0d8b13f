package store

import (
	"context"
	"strings"

	"seguimiento/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (s *Store) ListEstados(ctx context.Context) ([]models.Estado, error) {
	var out []models.Estado
	if err := s.conn(ctx).Order("orden, id_estado").Find(&out).Error; err != nil {
		return nil, translate(err, "estados")
	}
	return out, nil
}

func (s *Store) EstadoByID(ctx context.Context, id int) (*models.Estado, error) {
	var e models.Estado
	if err := s.conn(ctx).First(&e, "id_estado = ?", id).Error; err != nil {
		return nil, translate(err, "estado")
	}
	return &e, nil
}

// EstadoByName matches case-insensitively.
func (s *Store) EstadoByName(ctx context.Context, name string) (*models.Estado, error) {
	var e models.Estado
	err := s.conn(ctx).Where("LOWER(nombre) = ?", strings.ToLower(name)).First(&e).Error
	if err != nil {
		return nil, translate(err, "estado")
	}
	return &e, nil
}

func (s *Store) CountActiveEstados(ctx context.Context) (int64, error) {
	var n int64
	if err := s.conn(ctx).Model(&models.Estado{}).Where("activo = ?", true).Count(&n).Error; err != nil {
		return 0, translate(err, "estados")
	}
	return n, nil
}

func (s *Store) MaxOrden(ctx context.Context) (int, error) {
	var n int
	err := s.conn(ctx).Model(&models.Estado{}).Select("COALESCE(MAX(orden), 0)").Scan(&n).Error
	if err != nil {
		return 0, translate(err, "estados")
	}
	return n, nil
}

func (s *Store) CreateEstado(ctx context.Context, e *models.Estado) error {
	return translate(s.conn(ctx).Create(e).Error, "estado")
}

func (s *Store) SaveEstado(ctx context.Context, e *models.Estado) error {
	err := s.conn(ctx).Model(e).
		Select("nombre", "orden", "activo", "id_bolsa").
		Updates(e).Error
	return translate(err, "estado")
}

// EstadosInBolsa lists the members of a bucket ordered by orden.
func (s *Store) EstadosInBolsa(ctx context.Context, bolsaID uuid.UUID, activeOnly bool) ([]models.Estado, error) {
	q := s.conn(ctx).Where("id_bolsa = ?", bolsaID)
	if activeOnly {
		q = q.Where("activo = ?", true)
	}

	var out []models.Estado
	if err := q.Order("orden, id_estado").Find(&out).Error; err != nil {
		return nil, translate(err, "estados")
	}
	return out, nil
}

func (s *Store) DetachEstados(ctx context.Context, bolsaID uuid.UUID) error {
	err := s.conn(ctx).Model(&models.Estado{}).
		Where("id_bolsa = ?", bolsaID).
		Update("id_bolsa", nil).Error
	return translate(err, "estados")
}

// ListBolsas returns buckets with their statuses loaded. activo filters when
// non-nil.
func (s *Store) ListBolsas(ctx context.Context, activo *bool) ([]models.Bolsa, error) {
	q := s.conn(ctx).
		Preload("Estados", func(db *gorm.DB) *gorm.DB { return db.Order("orden, id_estado") }).
		Order("created_at DESC")
	if activo != nil {
		q = q.Where("activo = ?", *activo)
	}

	var out []models.Bolsa
	if err := q.Find(&out).Error; err != nil {
		return nil, translate(err, "bolsas")
	}
	return out, nil
}

func (s *Store) BolsaByID(ctx context.Context, id uuid.UUID) (*models.Bolsa, error) {
	var b models.Bolsa
	err := s.conn(ctx).
		Preload("Estados", func(db *gorm.DB) *gorm.DB { return db.Order("orden, id_estado") }).
		First(&b, "id_bolsa = ?", id).Error
	if err != nil {
		return nil, translate(err, "bolsa")
	}
	return &b, nil
}

// BolsaNameTaken reports whether another bucket already uses name, ignoring
// case. exclude skips the bucket being renamed.
func (s *Store) BolsaNameTaken(ctx context.Context, name string, exclude *uuid.UUID) (bool, error) {
	q := s.conn(ctx).Model(&models.Bolsa{}).Where("LOWER(nombre) = ?", strings.ToLower(name))
	if exclude != nil {
		q = q.Where("id_bolsa <> ?", *exclude)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return false, translate(err, "bolsa")
	}
	return n > 0, nil
}

func (s *Store) CreateBolsa(ctx context.Context, b *models.Bolsa) error {
	return translate(s.conn(ctx).Omit(clause.Associations).Create(b).Error, "bolsa")
}

func (s *Store) SaveBolsa(ctx context.Context, b *models.Bolsa) error {
	err := s.conn(ctx).Model(b).
		Select("nombre", "descripcion", "activo").
		Updates(b).Error
	return translate(err, "bolsa")
}

func (s *Store) DeleteBolsa(ctx context.Context, id uuid.UUID) error {
	res := s.conn(ctx).Delete(&models.Bolsa{}, "id_bolsa = ?", id)
	if res.Error != nil {
		return translate(res.Error, "bolsa")
	}
	if res.RowsAffected == 0 {
		return translate(gorm.ErrRecordNotFound, "bolsa")
	}
	return nil
}

// HistorialCountForBolsa counts history rows that reference any status in the
// bucket.
func (s *Store) HistorialCountForBolsa(ctx context.Context, bolsaID uuid.UUID) (int64, error) {
	var n int64
	err := s.conn(ctx).Model(&models.HistorialEstado{}).
		Joins("JOIN estados ON estados.id_estado = historial_estados.id_estado").
		Where("estados.id_bolsa = ?", bolsaID).
		Count(&n).Error
	if err != nil {
		return 0, translate(err, "historial")
	}
	return n, nil
}

// RefreshEstadosOrden rewrites the bucket's estados_orden from its members.
func (s *Store) RefreshEstadosOrden(ctx context.Context, bolsaID uuid.UUID) error {
	var ids pq.Int64Array
	err := s.conn(ctx).Model(&models.Estado{}).
		Where("id_bolsa = ?", bolsaID).
		Order("orden, id_estado").
		Pluck("id_estado", &ids).Error
	if err != nil {
		return translate(err, "estados")
	}
	if ids == nil {
		ids = pq.Int64Array{}
	}
	err = s.conn(ctx).Model(&models.Bolsa{}).
		Where("id_bolsa = ?", bolsaID).
		Update("estados_orden", ids).Error
	return translate(err, "bolsa")
}
