package handlers

import (
	"net/http"

	"seguimiento/access"
	"seguimiento/activity"
	"seguimiento/render"
	"seguimiento/store"

	"github.com/google/uuid"
)

// Recent activity on the dashboard is capped lower than the main feed.
const (
	recentDefaultLimit = 10
	recentMaxLimit     = 50
)

type DashboardHandler struct {
	store *store.Store
	feed  *activity.Aggregator
}

func NewDashboardHandler(st *store.Store, feed *activity.Aggregator) *DashboardHandler {
	return &DashboardHandler{store: st, feed: feed}
}

// visibleIDs returns the students whose events the caller may read.
func (h *DashboardHandler) visibleIDs(r *http.Request) ([]uuid.UUID, error) {
	actor, err := actorFrom(r)
	if err != nil {
		return nil, err
	}
	if err := access.Evaluate(actor, access.OpViewActivity, access.Resource{}).Err(); err != nil {
		return nil, err
	}
	vis, err := access.VisibleStudents(actor)
	if err != nil {
		return nil, err
	}
	if vis.All {
		return h.store.AlumnoIDs(r.Context(), nil)
	}
	return h.store.AlumnoIDs(r.Context(), vis.MaestroID)
}

func (h *DashboardHandler) serveFeed(w http.ResponseWriter, r *http.Request, def, upper int) {
	limit, err := limitParam(r, def, upper)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	kind, err := activity.ParseKind(r.URL.Query().Get("tipo"))
	if err != nil {
		render.Error(w, r, err)
		return
	}

	ids, err := h.visibleIDs(r)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	items, err := h.feed.Feed(r.Context(), ids, kind, limit)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, map[string]any{"total": len(items), "actividad": items})
}

// Actividad is the merged feed over every student the caller can see.
func (h *DashboardHandler) Actividad(w http.ResponseWriter, r *http.Request) {
	h.serveFeed(w, r, activity.DefaultLimit, activity.MaxLimit)
}

func (h *DashboardHandler) ActividadReciente(w http.ResponseWriter, r *http.Request) {
	h.serveFeed(w, r, recentDefaultLimit, recentMaxLimit)
}

type statsResponse struct {
	store.Counts
	DistribucionPorEstado []store.EstadoCount `json:"distribucion_por_estado"`
}

func (h *DashboardHandler) Stats(w http.ResponseWriter, r *http.Request) {
	counts, err := h.store.DashboardCounts(r.Context(), nil)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	dist, err := h.store.DistribucionPorEstado(r.Context(), nil)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, statsResponse{Counts: counts, DistribucionPorEstado: dist})
}

type alumnoResumen struct {
	IDAlumno  uuid.UUID `json:"id_alumno"`
	Nombre    string    `json:"nombre"`
	IDEstado  int       `json:"id_estado_actual"`
	CreatedAt string    `json:"created_at"`
}

// maestroStatsResponse counts the teacher's students, and the observations
// and status changes the teacher authored.
type maestroStatsResponse struct {
	IDMaestro                    uuid.UUID           `json:"id_maestro"`
	Nombre                       string              `json:"nombre"`
	TotalAlumnos                 int64               `json:"total_alumnos"`
	TotalObservacionesEscritas   int64               `json:"total_observaciones_escritas"`
	TotalCambiosEstadoRealizados int64               `json:"total_cambios_estado_realizados"`
	Distribucion                 []store.EstadoCount `json:"distribucion_por_estado"`
	AlumnoMasReciente            *alumnoResumen      `json:"alumno_mas_reciente"`
}

func (h *DashboardHandler) MaestroStats(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	id, err := uuidParam(r, "id")
	if err != nil {
		render.Error(w, r, err)
		return
	}

	ctx := r.Context()
	m, err := h.store.MaestroByID(ctx, id)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	if err := access.Evaluate(actor, access.OpViewMaestroStats, access.Resource{MaestroID: &m.ID}).Err(); err != nil {
		render.Error(w, r, err)
		return
	}

	counts, err := h.store.DashboardCounts(ctx, &m.ID)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	observaciones, cambios, err := h.store.AuthorCounts(ctx, m.PersonaID)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	dist, err := h.store.DistribucionPorEstado(ctx, &m.ID)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	latest, err := h.store.LatestAlumno(ctx, m.ID)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	out := maestroStatsResponse{
		IDMaestro:                    m.ID,
		TotalAlumnos:                 counts.TotalAlumnos,
		TotalObservacionesEscritas:   observaciones,
		TotalCambiosEstadoRealizados: cambios,
		Distribucion:                 dist,
	}
	if m.Persona != nil {
		out.Nombre = m.Persona.DisplayName()
	}
	if latest != nil {
		out.AlumnoMasReciente = &alumnoResumen{
			IDAlumno:  latest.ID,
			IDEstado:  latest.EstadoID,
			CreatedAt: formatTime(latest.CreatedAt),
		}
		if latest.Persona != nil {
			out.AlumnoMasReciente.Nombre = latest.Persona.DisplayName()
		}
	}
	render.JSON(w, http.StatusOK, out)
}
