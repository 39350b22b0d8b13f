package transitions

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"seguimiento/apperr"
	"seguimiento/logger"
	"seguimiento/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memLedger keeps state in maps. Atomic snapshots the mutable parts and
// restores them when fn fails.
type memLedger struct {
	alumnos   map[uuid.UUID]models.Alumno
	estados   map[int]models.Estado
	historial []models.HistorialEstado

	appendErr error
}

func newMemLedger() *memLedger {
	return &memLedger{
		alumnos: map[uuid.UUID]models.Alumno{},
		estados: map[int]models.Estado{},
	}
}

func (m *memLedger) Atomic(ctx context.Context, fn func(ctx context.Context) error) error {
	alumnos := make(map[uuid.UUID]models.Alumno, len(m.alumnos))
	for k, v := range m.alumnos {
		alumnos[k] = v
	}
	historial := append([]models.HistorialEstado(nil), m.historial...)

	if err := fn(ctx); err != nil {
		m.alumnos = alumnos
		m.historial = historial
		return err
	}
	return nil
}

func (m *memLedger) AlumnoByID(_ context.Context, id uuid.UUID) (*models.Alumno, error) {
	a, ok := m.alumnos[id]
	if !ok {
		return nil, apperr.NotFound("alumno no encontrado")
	}
	return &a, nil
}

func (m *memLedger) AlumnoForUpdate(ctx context.Context, id uuid.UUID) (*models.Alumno, error) {
	return m.AlumnoByID(ctx, id)
}

func (m *memLedger) EstadoByID(_ context.Context, id int) (*models.Estado, error) {
	e, ok := m.estados[id]
	if !ok {
		return nil, apperr.NotFound("estado no encontrado")
	}
	return &e, nil
}

func (m *memLedger) EstadosInBolsa(_ context.Context, bolsaID uuid.UUID, activeOnly bool) ([]models.Estado, error) {
	var out []models.Estado
	for _, e := range m.estados {
		if e.BolsaID == nil || *e.BolsaID != bolsaID || (activeOnly && !e.Activo) {
			continue
		}
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b models.Estado) int {
		if a.Orden != b.Orden {
			return a.Orden - b.Orden
		}
		return a.ID - b.ID
	})
	return out, nil
}

func (m *memLedger) SetAlumnoEstado(_ context.Context, id uuid.UUID, estadoID int) error {
	a := m.alumnos[id]
	a.EstadoID = estadoID
	m.alumnos[id] = a
	return nil
}

func (m *memLedger) AppendHistorial(_ context.Context, h *models.HistorialEstado) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	h.ID = uuid.New()
	m.historial = append(m.historial, *h)
	return nil
}

func (m *memLedger) historyFor(id uuid.UUID) []models.HistorialEstado {
	var out []models.HistorialEstado
	for _, h := range m.historial {
		if h.AlumnoID == id {
			out = append(out, h)
		}
	}
	return out
}

var fixedNow = time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)

func setup(t *testing.T) (*memLedger, *Recorder, uuid.UUID) {
	t.Helper()
	l := newMemLedger()
	bolsa := uuid.New()
	l.estados[1] = models.Estado{ID: 1, Nombre: "Nuevo", Orden: 1, Activo: true, BolsaID: &bolsa}
	l.estados[2] = models.Estado{ID: 2, Nombre: "Seguimiento", Orden: 2, Activo: true, BolsaID: &bolsa}
	l.estados[3] = models.Estado{ID: 3, Nombre: "Archivado", Orden: 3, Activo: false, BolsaID: &bolsa}
	l.estados[5] = models.Estado{ID: 5, Nombre: "Bautizado", Orden: 5, Activo: true}

	alumno := uuid.New()
	l.alumnos[alumno] = models.Alumno{ID: alumno, EstadoID: 1}

	r := NewRecorder(l, logger.Nop(), WithClock(func() time.Time { return fixedNow }))
	return l, r, alumno
}

func TestChangeStatusAppendsExactlyOne(t *testing.T) {
	l, r, alumno := setup(t)
	actor := uuid.New()
	comentario := "ok"

	res, err := r.ChangeStatus(context.Background(), Change{AlumnoID: alumno, EstadoID: 5, Actor: actor, Comentario: &comentario})
	require.NoError(t, err)

	assert.Equal(t, 1, res.EstadoAnterior)
	assert.Equal(t, 5, res.EstadoNuevo)
	assert.Equal(t, 5, l.alumnos[alumno].EstadoID)

	hist := l.historyFor(alumno)
	require.Len(t, hist, 1)
	assert.Equal(t, 5, hist[0].EstadoID)
	assert.Equal(t, "ok", *hist[0].Comentario)
	assert.Equal(t, actor, *hist[0].CambiadoPor)
	assert.Equal(t, fixedNow, hist[0].FechaCambio)
}

func TestChangeStatusNeverRemovesHistory(t *testing.T) {
	l, r, alumno := setup(t)
	ctx := context.Background()

	for i, target := range []int{2, 1, 2, 5, 5} {
		_, err := r.ChangeStatus(ctx, Change{AlumnoID: alumno, EstadoID: target, Actor: uuid.New()})
		require.NoError(t, err)
		assert.Len(t, l.historyFor(alumno), i+1)
	}

	hist := l.historyFor(alumno)
	got := make([]int, len(hist))
	for i, h := range hist {
		got[i] = h.EstadoID
	}
	assert.Equal(t, []int{2, 1, 2, 5, 5}, got)
}

func TestChangeStatusRejectsInvalidTargets(t *testing.T) {
	tests := []struct {
		name   string
		estado int
		kind   apperr.Kind
	}{
		{"inactive estado", 3, apperr.KindInvalidInput},
		{"missing estado", 42, apperr.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, r, alumno := setup(t)

			_, err := r.ChangeStatus(context.Background(), Change{AlumnoID: alumno, EstadoID: tt.estado, Actor: uuid.New()})
			require.Error(t, err)
			assert.Equal(t, tt.kind, apperr.KindOf(err))
			assert.Equal(t, 1, l.alumnos[alumno].EstadoID)
			assert.Empty(t, l.historyFor(alumno))
		})
	}
}

func TestChangeStatusUnknownAlumno(t *testing.T) {
	_, r, _ := setup(t)
	_, err := r.ChangeStatus(context.Background(), Change{AlumnoID: uuid.New(), EstadoID: 2})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestChangeStatusRollsBackOnWriteFailure(t *testing.T) {
	l, r, alumno := setup(t)
	l.appendErr = errors.New("disk full")

	_, err := r.ChangeStatus(context.Background(), Change{AlumnoID: alumno, EstadoID: 2, Actor: uuid.New()})
	require.Error(t, err)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
	assert.Equal(t, 1, l.alumnos[alumno].EstadoID, "current status must be restored")
	assert.Empty(t, l.historyFor(alumno))
}

func TestAvailableStatusesWithinBolsa(t *testing.T) {
	_, r, alumno := setup(t)

	got, err := r.AvailableStatuses(context.Background(), alumno)
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].ID)
	assert.True(t, got[0].Actual)
	assert.Equal(t, 2, got[1].ID)
	assert.False(t, got[1].Actual)
}

func TestAvailableStatusesIncludesInactiveCurrent(t *testing.T) {
	l, r, alumno := setup(t)
	a := l.alumnos[alumno]
	a.EstadoID = 3
	l.alumnos[alumno] = a

	got, err := r.AvailableStatuses(context.Background(), alumno)
	require.NoError(t, err)

	ids := []int{}
	for _, e := range got {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []int{1, 2, 3}, ids)
	assert.True(t, got[2].Actual)
}

func TestAvailableStatusesWithoutBolsa(t *testing.T) {
	l, r, alumno := setup(t)
	a := l.alumnos[alumno]
	a.EstadoID = 5
	l.alumnos[alumno] = a

	got, err := r.AvailableStatuses(context.Background(), alumno)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 5, got[0].ID)
	assert.True(t, got[0].Actual)
}

func TestAvailableStatusesIsIdempotent(t *testing.T) {
	_, r, alumno := setup(t)
	ctx := context.Background()

	first, err := r.AvailableStatuses(ctx, alumno)
	require.NoError(t, err)
	second, err := r.AvailableStatuses(ctx, alumno)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}
