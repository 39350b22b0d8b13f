package handlers

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"seguimiento/access"
	"seguimiento/activity"
	"seguimiento/apperr"
	"seguimiento/metrics"
	"seguimiento/models"
	"seguimiento/patch"
	"seguimiento/render"
	"seguimiento/store"
	"seguimiento/transitions"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
)

type AlumnoHandler struct {
	store    *store.Store
	recorder *transitions.Recorder
	feed     *activity.Aggregator
	metrics  *metrics.Metrics
	log      zerolog.Logger
}

func NewAlumnoHandler(st *store.Store, rec *transitions.Recorder, feed *activity.Aggregator, m *metrics.Metrics, log zerolog.Logger) *AlumnoHandler {
	return &AlumnoHandler{store: st, recorder: rec, feed: feed, metrics: m, log: log}
}

// authorize loads the student named in the path and checks op against it.
// Profile and role rules are checked first, so a caller who could never
// perform op gets 403 even for an unknown id.
func (h *AlumnoHandler) authorize(r *http.Request, op access.Op) (*access.Actor, *models.Alumno, error) {
	actor, err := actorFrom(r)
	if err != nil {
		return nil, nil, err
	}
	if err := access.Evaluate(actor, op, access.Resource{}).Err(); err != nil {
		return nil, nil, err
	}
	id, err := uuidParam(r, "id")
	if err != nil {
		return nil, nil, err
	}
	a, err := h.store.AlumnoByID(r.Context(), id)
	if err != nil {
		return nil, nil, err
	}
	if err := access.Evaluate(actor, op, access.Resource{Alumno: a}).Err(); err != nil {
		return nil, nil, err
	}
	return actor, a, nil
}

// visibleFilter turns the caller's visibility into a store filter. Callers
// who see everything may narrow it with ?maestroId=.
func (h *AlumnoHandler) visibleFilter(r *http.Request, actor *access.Actor) (store.AlumnoFilter, error) {
	vis, err := access.VisibleStudents(actor)
	if err != nil {
		return store.AlumnoFilter{}, err
	}
	if !vis.All {
		return store.AlumnoFilter{MaestroID: vis.MaestroID}, nil
	}

	raw := r.URL.Query().Get("maestroId")
	if raw == "" {
		return store.AlumnoFilter{}, nil
	}
	maestroID, err := uuid.Parse(raw)
	if err != nil {
		return store.AlumnoFilter{}, apperr.InvalidInput("maestroId inválido: %q", raw)
	}
	if _, err := h.store.MaestroByID(r.Context(), maestroID); err != nil {
		return store.AlumnoFilter{}, err
	}
	return store.AlumnoFilter{MaestroID: &maestroID}, nil
}

type alumnoListResponse struct {
	Alumnos []alumnoResponse `json:"alumnos"`
	Total   int              `json:"total"`
	Usuario usuarioInfo      `json:"usuario"`
}

func (h *AlumnoHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	filter, err := h.visibleFilter(r, actor)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	list, err := h.store.ListAlumnos(r.Context(), filter)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	render.JSON(w, http.StatusOK, alumnoListResponse{
		Alumnos: toAlumnos(list),
		Total:   len(list),
		Usuario: usuarioOf(actor),
	})
}

type createAlumnoRequest struct {
	Nombre         string         `json:"nombre" validate:"required,max=100"`
	Apellido       string         `json:"apellido" validate:"required,max=100"`
	Email          *string        `json:"email" validate:"omitempty,email,max=255"`
	FotoURL        *string        `json:"foto_url" validate:"omitempty,url"`
	Dias           map[string]any `json:"dias"`
	FranjaHoraria  *string        `json:"franja_horaria" validate:"omitempty,max=100"`
	MotivoOracion  *string        `json:"motivo_oracion" validate:"omitempty,max=300"`
	IDEstadoActual int            `json:"id_estado_actual" validate:"required,min=1"`
	IDMaestro      *uuid.UUID     `json:"id_maestro"`
}

func (h *AlumnoHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	if err := access.Evaluate(actor, access.OpCreateAlumno, access.Resource{}).Err(); err != nil {
		render.Error(w, r, err)
		return
	}

	var req createAlumnoRequest
	if err := render.Decode(r, &req); err != nil {
		render.Error(w, r, err)
		return
	}
	if strings.TrimSpace(req.Nombre) == "" || strings.TrimSpace(req.Apellido) == "" {
		render.Error(w, r, apperr.InvalidInput("nombre y apellido no pueden estar vacíos"))
		return
	}

	ctx := r.Context()

	// Teachers always create students on their own card.
	maestroID := req.IDMaestro
	if !actor.IsAdmin() && !actor.IsPastor() {
		maestroID = actor.MaestroID
	} else if maestroID != nil {
		if _, err := h.store.MaestroByID(ctx, *maestroID); err != nil {
			render.Error(w, r, err)
			return
		}
	}

	estado, err := h.store.EstadoByID(ctx, req.IDEstadoActual)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	if !estado.Activo {
		render.Error(w, r, apperr.InvalidInput("el estado %q no está activo", estado.Nombre))
		return
	}

	dias, err := encodeDias(req.Dias)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	p := newPersona(req.Nombre, req.Apellido, req.Email, models.NivelUsuario)
	p.FotoURL = req.FotoURL
	a := &models.Alumno{
		Dias:          dias,
		FranjaHoraria: req.FranjaHoraria,
		MotivoOracion: req.MotivoOracion,
		EstadoID:      estado.ID,
	}
	if err := h.store.CreateAlumno(ctx, p, a, maestroID); err != nil {
		render.Error(w, r, err)
		return
	}

	created, err := h.store.AlumnoByID(ctx, a.ID)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	h.log.Info().
		Str("id_alumno", a.ID.String()).
		Str("actor", actor.Persona.ID.String()).
		Msg("alumno creado")
	render.JSON(w, http.StatusCreated, toAlumno(created))
}

func encodeDias(dias map[string]any) (datatypes.JSON, error) {
	if dias == nil {
		return nil, nil
	}
	b, err := json.Marshal(dias)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindInvalidInput, "dias no es válido")
	}
	return datatypes.JSON(b), nil
}

func (h *AlumnoHandler) Get(w http.ResponseWriter, r *http.Request) {
	_, a, err := h.authorize(r, access.OpViewAlumno)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, toAlumno(a))
}

type updateAlumnoRequest struct {
	Nombre        patch.Field[string]         `json:"nombre"`
	Apellido      patch.Field[string]         `json:"apellido"`
	Email         patch.Field[*string]        `json:"email"`
	FotoURL       patch.Field[*string]        `json:"foto_url"`
	Dias          patch.Field[map[string]any] `json:"dias"`
	FranjaHoraria patch.Field[*string]        `json:"franja_horaria"`
	MotivoOracion patch.Field[*string]        `json:"motivo_oracion"`
}

func (req *updateAlumnoRequest) changes() (persona, alumno patch.Changes, err error) {
	persona, alumno = patch.Changes{}, patch.Changes{}

	for _, f := range []struct {
		name  string
		field patch.Field[string]
	}{{"nombre", req.Nombre}, {"apellido", req.Apellido}} {
		if !f.field.Set {
			continue
		}
		v := strings.TrimSpace(f.field.Value)
		if v == "" || utf8.RuneCountInString(v) > 100 {
			return nil, nil, apperr.InvalidInput("%s debe tener entre 1 y 100 caracteres", f.name)
		}
		persona[f.name] = v
	}

	if req.Email.Set {
		email := normalizeEmail(req.Email.Value)
		if email != nil {
			if err := render.Var("email", *email, "email,max=255"); err != nil {
				return nil, nil, err
			}
		}
		persona["email"] = email
	}
	patch.Put(persona, "foto_url", req.FotoURL)

	if req.Dias.Set {
		dias, err := encodeDias(req.Dias.Value)
		if err != nil {
			return nil, nil, err
		}
		alumno["dias"] = dias
	}
	if req.FranjaHoraria.Set && req.FranjaHoraria.Value != nil {
		if err := render.Var("franja_horaria", *req.FranjaHoraria.Value, "max=100"); err != nil {
			return nil, nil, err
		}
	}
	if req.MotivoOracion.Set && req.MotivoOracion.Value != nil {
		if err := render.Var("motivo_oracion", *req.MotivoOracion.Value, "max=300"); err != nil {
			return nil, nil, err
		}
	}
	patch.Put(alumno, "franja_horaria", req.FranjaHoraria)
	patch.Put(alumno, "motivo_oracion", req.MotivoOracion)
	return persona, alumno, nil
}

// Update changes profile fields only. Status and teacher have their own
// endpoints.
func (h *AlumnoHandler) Update(w http.ResponseWriter, r *http.Request) {
	_, a, err := h.authorize(r, access.OpUpdateAlumno)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	var req updateAlumnoRequest
	if err := render.Decode(r, &req); err != nil {
		render.Error(w, r, err)
		return
	}
	personaChanges, alumnoChanges, err := req.changes()
	if err != nil {
		render.Error(w, r, err)
		return
	}

	if err := h.store.UpdateAlumno(r.Context(), a.ID, personaChanges, alumnoChanges); err != nil {
		render.Error(w, r, err)
		return
	}

	updated, err := h.store.AlumnoByID(r.Context(), a.ID)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, toAlumno(updated))
}

func (h *AlumnoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, a, err := h.authorize(r, access.OpDeleteAlumno)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	if err := h.store.DeleteAlumno(r.Context(), a.ID); err != nil {
		render.Error(w, r, err)
		return
	}

	h.log.Info().
		Str("id_alumno", a.ID.String()).
		Str("actor", actor.Persona.ID.String()).
		Msg("alumno eliminado")
	w.WriteHeader(http.StatusNoContent)
}

type assignMaestroRequest struct {
	IDMaestro uuid.UUID `json:"id_maestro" validate:"required"`
}

func (h *AlumnoHandler) AssignMaestro(w http.ResponseWriter, r *http.Request) {
	_, a, err := h.authorize(r, access.OpAssignMaestro)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	var req assignMaestroRequest
	if err := render.Decode(r, &req); err != nil {
		render.Error(w, r, err)
		return
	}
	if req.IDMaestro == uuid.Nil {
		render.Error(w, r, apperr.InvalidInput("id_maestro es obligatorio"))
		return
	}

	ctx := r.Context()
	if _, err := h.store.MaestroByID(ctx, req.IDMaestro); err != nil {
		render.Error(w, r, err)
		return
	}
	if err := h.store.AssignMaestro(ctx, a.ID, req.IDMaestro); err != nil {
		render.Error(w, r, err)
		return
	}

	updated, err := h.store.AlumnoByID(ctx, a.ID)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, toAlumno(updated))
}

type changeEstadoRequest struct {
	IDEstado   int     `json:"id_estado" validate:"required,min=1"`
	Comentario *string `json:"comentario" validate:"omitempty,max=500"`
}

type changeEstadoResponse struct {
	IDAlumno       uuid.UUID         `json:"id_alumno"`
	EstadoAnterior int               `json:"estado_anterior"`
	EstadoNuevo    int               `json:"estado_nuevo"`
	Historial      historialResponse `json:"historial"`
}

func (h *AlumnoHandler) ChangeEstado(w http.ResponseWriter, r *http.Request) {
	actor, a, err := h.authorize(r, access.OpChangeEstado)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	var req changeEstadoRequest
	if err := render.Decode(r, &req); err != nil {
		render.Error(w, r, err)
		return
	}

	res, err := h.recorder.ChangeStatus(r.Context(), transitions.Change{
		AlumnoID:   a.ID,
		EstadoID:   req.IDEstado,
		Actor:      actor.Persona.ID,
		Comentario: req.Comentario,
	})
	if err != nil {
		render.Error(w, r, err)
		return
	}
	h.metrics.TransitionRecorded(res.EstadoNuevo)
	res.Historial.Autor = &actor.Persona

	render.JSON(w, http.StatusOK, changeEstadoResponse{
		IDAlumno:       res.AlumnoID,
		EstadoAnterior: res.EstadoAnterior,
		EstadoNuevo:    res.EstadoNuevo,
		Historial:      toHistorial(res.Historial),
	})
}

func (h *AlumnoHandler) EstadosDisponibles(w http.ResponseWriter, r *http.Request) {
	_, a, err := h.authorize(r, access.OpViewAlumno)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	estados, err := h.recorder.AvailableStatuses(r.Context(), a.ID)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	render.JSON(w, http.StatusOK, map[string]any{
		"id_alumno":        a.ID,
		"id_estado_actual": a.EstadoID,
		"estados":          estados,
	})
}

type observacionRequest struct {
	Texto string `json:"texto" validate:"required,max=2000"`
}

func (h *AlumnoHandler) CreateObservacion(w http.ResponseWriter, r *http.Request) {
	actor, a, err := h.authorize(r, access.OpAddObservacion)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	var req observacionRequest
	if err := render.Decode(r, &req); err != nil {
		render.Error(w, r, err)
		return
	}
	texto := strings.TrimSpace(req.Texto)
	if texto == "" {
		render.Error(w, r, apperr.InvalidInput("texto no puede estar vacío"))
		return
	}

	o := &models.Observacion{
		AlumnoID:  a.ID,
		AutorID:   actor.Persona.ID,
		Texto:     texto,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.store.CreateObservacion(r.Context(), o); err != nil {
		render.Error(w, r, err)
		return
	}
	o.Autor = &actor.Persona

	render.JSON(w, http.StatusCreated, toObservacion(*o))
}

func (h *AlumnoHandler) ListObservaciones(w http.ResponseWriter, r *http.Request) {
	_, a, err := h.authorize(r, access.OpViewAlumno)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	list, err := h.store.ObservacionesForAlumnos(r.Context(), []uuid.UUID{a.ID}, 0)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	out := make([]observacionResponse, 0, len(list))
	for _, o := range list {
		out = append(out, toObservacion(o))
	}
	render.JSON(w, http.StatusOK, map[string]any{"total": len(out), "observaciones": out})
}

func (h *AlumnoHandler) Historial(w http.ResponseWriter, r *http.Request) {
	_, a, err := h.authorize(r, access.OpViewAlumno)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	list, err := h.store.HistorialForAlumnos(r.Context(), []uuid.UUID{a.ID}, 0)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	out := make([]historialResponse, 0, len(list))
	for _, e := range list {
		out = append(out, toHistorial(e))
	}
	render.JSON(w, http.StatusOK, map[string]any{"total": len(out), "historial": out})
}

// Actividad is the merged feed for a single student.
func (h *AlumnoHandler) Actividad(w http.ResponseWriter, r *http.Request) {
	_, a, err := h.authorize(r, access.OpViewAlumno)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	limit, err := limitParam(r, activity.DefaultLimit, activity.MaxLimit)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	kind, err := activity.ParseKind(r.URL.Query().Get("tipo"))
	if err != nil {
		render.Error(w, r, err)
		return
	}

	items, err := h.feed.Feed(r.Context(), []uuid.UUID{a.ID}, kind, limit)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, map[string]any{"total": len(items), "actividad": items})
}

// ExportCSV writes the caller's visible students as CSV.
func (h *AlumnoHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	filter, err := h.visibleFilter(r, actor)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	list, err := h.store.ListAlumnos(r.Context(), filter)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	filename := fmt.Sprintf("alumnos_%s.csv", time.Now().UTC().Format("20060102"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))

	writer := csv.NewWriter(w)
	defer writer.Flush()

	writer.Write([]string{"ID", "Nombre", "Apellido", "Email", "Estado", "Maestro", "Franja horaria", "Motivo de oración", "Alta"})

	for i := range list {
		a := toAlumno(&list[i])
		estado := ""
		if a.Estado != nil {
			estado = a.Estado.Nombre
		}
		writer.Write([]string{
			a.IDAlumno.String(),
			a.Nombre,
			a.Apellido,
			deref(a.Email),
			estado,
			deref(a.MaestroNombre),
			deref(a.FranjaHoraria),
			deref(a.MotivoOracion),
			list[i].CreatedAt.UTC().Format("2006-01-02"),
		})
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
