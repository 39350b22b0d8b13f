package activity

import (
	"context"
	"errors"
	"testing"
	"time"

	"seguimiento/apperr"
	"seguimiento/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	historial     []models.HistorialEstado
	observaciones []models.Observacion
	names         map[uuid.UUID]string
	calls         int
	err           error
}

func (f *fakeSource) HistorialForAlumnos(_ context.Context, ids []uuid.UUID, limit int) ([]models.HistorialEstado, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := f.historial
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeSource) ObservacionesForAlumnos(_ context.Context, ids []uuid.UUID, limit int) ([]models.Observacion, error) {
	f.calls++
	out := f.observaciones
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeSource) AlumnoNames(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	return f.names, nil
}

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func fixture() (*fakeSource, uuid.UUID) {
	alumno := uuid.New()
	autor := &models.Persona{Nombre: "Marta", Apellido: "Ruiz"}
	estado := &models.Estado{ID: 2, Nombre: "Seguimiento"}
	comentario := "avanza"

	// both slices newest first, as the store returns them
	src := &fakeSource{
		names: map[uuid.UUID]string{alumno: "Juan Pérez"},
		historial: []models.HistorialEstado{
			{ID: uuid.New(), AlumnoID: alumno, EstadoID: 2, Estado: estado, FechaCambio: base.Add(3 * time.Hour), Autor: autor, Comentario: &comentario},
			{ID: uuid.New(), AlumnoID: alumno, EstadoID: 1, FechaCambio: base.Add(1 * time.Hour)},
		},
		observaciones: []models.Observacion{
			{ID: uuid.New(), AlumnoID: alumno, Texto: "llamar el lunes", CreatedAt: base.Add(2 * time.Hour), Autor: autor},
			{ID: uuid.New(), AlumnoID: alumno, Texto: "primera visita", CreatedAt: base},
		},
	}
	return src, alumno
}

func TestFeedMergesNewestFirst(t *testing.T) {
	src, alumno := fixture()

	items, err := NewAggregator(src).Feed(context.Background(), []uuid.UUID{alumno}, KindAll, 10)
	require.NoError(t, err)
	require.Len(t, items, 4)

	kinds := []Kind{items[0].Tipo, items[1].Tipo, items[2].Tipo, items[3].Tipo}
	assert.Equal(t, []Kind{KindCambioEstado, KindObservacion, KindCambioEstado, KindObservacion}, kinds)

	for i := 1; i < len(items); i++ {
		assert.False(t, items[i].At().After(items[i-1].At()))
	}

	first := items[0]
	assert.Equal(t, "Juan Pérez", first.AlumnoNombre)
	assert.Equal(t, "Marta Ruiz", *first.AutorNombre)
	assert.Equal(t, "Seguimiento", *first.EstadoNombre)
	assert.Equal(t, "avanza", *first.Comentario)
	assert.Equal(t, "2026-03-01T15:00:00.000000+00:00", first.Fecha)
	assert.Equal(t, "llamar el lunes", *items[1].Texto)
}

func TestFeedTypeFilter(t *testing.T) {
	src, alumno := fixture()
	g := NewAggregator(src)

	items, err := g.Feed(context.Background(), []uuid.UUID{alumno}, KindObservacion, 10)
	require.NoError(t, err)
	require.Len(t, items, 2)
	for _, it := range items {
		assert.Equal(t, KindObservacion, it.Tipo)
	}

	items, err = g.Feed(context.Background(), []uuid.UUID{alumno}, KindCambioEstado, 10)
	require.NoError(t, err)
	require.Len(t, items, 2)
	for _, it := range items {
		assert.Equal(t, KindCambioEstado, it.Tipo)
	}
}

func TestFeedTruncates(t *testing.T) {
	src, alumno := fixture()

	items, err := NewAggregator(src).Feed(context.Background(), []uuid.UUID{alumno}, KindAll, 3)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, base.Add(1*time.Hour), items[2].At())
}

func TestFeedLimitBounds(t *testing.T) {
	src, alumno := fixture()
	g := NewAggregator(src)

	for _, limit := range []int{0, -1, MaxLimit + 1} {
		_, err := g.Feed(context.Background(), []uuid.UUID{alumno}, KindAll, limit)
		assert.True(t, apperr.Is(err, apperr.KindInvalidInput), "limit %d", limit)
	}
	assert.Zero(t, src.calls)
}

func TestFeedNoVisibleStudents(t *testing.T) {
	src, _ := fixture()

	items, err := NewAggregator(src).Feed(context.Background(), nil, KindAll, 10)
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
	assert.Zero(t, src.calls)
}

func TestFeedPropagatesErrors(t *testing.T) {
	src, alumno := fixture()
	src.err = errors.New("timeout")

	_, err := NewAggregator(src).Feed(context.Background(), []uuid.UUID{alumno}, KindAll, 10)
	assert.Error(t, err)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("")
	require.NoError(t, err)
	assert.Equal(t, KindAll, k)

	k, err = ParseKind("observacion")
	require.NoError(t, err)
	assert.Equal(t, KindObservacion, k)

	_, err = ParseKind("otro")
	assert.True(t, apperr.Is(err, apperr.KindInvalidInput))
}
