package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"seguimiento/access"
	"seguimiento/activity"
	"seguimiento/apperr"
	"seguimiento/middleware"
	"seguimiento/models"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, apperr.InvalidInput("identificador inválido: %q", chi.URLParam(r, name))
	}
	return id, nil
}

// limitParam reads ?limite=, defaulting to def and bounded to [1, upper].
func limitParam(r *http.Request, def, upper int) (int, error) {
	raw := r.URL.Query().Get("limite")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > upper {
		return 0, apperr.InvalidInput("limite debe estar entre 1 y %d", upper)
	}
	return n, nil
}

func boolParam(r *http.Request, name string) (*bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, apperr.InvalidInput("%s debe ser true o false", name)
	}
	return &b, nil
}

func actorFrom(r *http.Request) (*access.Actor, error) {
	a := middleware.ActorFromContext(r.Context())
	if a == nil {
		return nil, apperr.Unauthenticated("no autenticado")
	}
	return a, nil
}

func formatTime(t time.Time) string { return activity.FormatTime(t) }

type usuarioInfo struct {
	IDPersona   uuid.UUID  `json:"id_persona"`
	EsPastor    bool       `json:"es_pastor"`
	EsMaestro   bool       `json:"es_maestro"`
	EsAdmin     bool       `json:"es_admin"`
	NivelAcceso int16      `json:"nivel_acceso"`
	IDMaestro   *uuid.UUID `json:"id_maestro"`
}

func usuarioOf(a *access.Actor) usuarioInfo {
	return usuarioInfo{
		IDPersona:   a.Persona.ID,
		EsPastor:    a.IsPastor(),
		EsMaestro:   a.IsMaestro(),
		EsAdmin:     a.IsAdmin(),
		NivelAcceso: a.Level(),
		IDMaestro:   a.MaestroID,
	}
}

type tarjetaResponse struct {
	IDTarjeta         uuid.UUID  `json:"id_tarjeta"`
	IDMaestroAsignado *uuid.UUID `json:"id_maestro_asignado"`
	// IDEstadoActual is read from the student.
	IDEstadoActual int `json:"id_estado_actual"`
}

type alumnoResponse struct {
	IDAlumno          uuid.UUID        `json:"id_alumno"`
	IDPersona         uuid.UUID        `json:"id_persona"`
	Nombre            string           `json:"nombre"`
	Apellido          string           `json:"apellido"`
	Email             *string          `json:"email"`
	FotoURL           *string          `json:"foto_url"`
	Dias              json.RawMessage  `json:"dias"`
	FranjaHoraria     *string          `json:"franja_horaria"`
	MotivoOracion     *string          `json:"motivo_oracion"`
	IDEstadoActual    int              `json:"id_estado_actual"`
	Estado            *models.Estado   `json:"estado,omitempty"`
	IDMaestroAsignado *uuid.UUID       `json:"id_maestro_asignado"`
	MaestroNombre     *string          `json:"maestro_nombre"`
	Tarjeta           *tarjetaResponse `json:"tarjeta"`
	CreatedAt         string           `json:"created_at"`
	UpdatedAt         string           `json:"updated_at"`
}

func toAlumno(a *models.Alumno) alumnoResponse {
	out := alumnoResponse{
		IDAlumno:          a.ID,
		IDPersona:         a.PersonaID,
		FranjaHoraria:     a.FranjaHoraria,
		MotivoOracion:     a.MotivoOracion,
		IDEstadoActual:    a.EstadoID,
		Estado:            a.Estado,
		IDMaestroAsignado: a.MaestroID(),
		CreatedAt:         formatTime(a.CreatedAt),
		UpdatedAt:         formatTime(a.UpdatedAt),
	}
	if len(a.Dias) > 0 {
		out.Dias = json.RawMessage(a.Dias)
	} else {
		out.Dias = json.RawMessage("null")
	}
	if a.Persona != nil {
		out.Nombre = a.Persona.Nombre
		out.Apellido = a.Persona.Apellido
		out.Email = a.Persona.Email
		out.FotoURL = a.Persona.FotoURL
	}
	if t := a.Tarjeta; t != nil {
		out.Tarjeta = &tarjetaResponse{IDTarjeta: t.ID, IDMaestroAsignado: t.MaestroID, IDEstadoActual: a.EstadoID}
		if t.Maestro != nil && t.Maestro.Persona != nil {
			name := t.Maestro.Persona.DisplayName()
			out.MaestroNombre = &name
		}
	}
	return out
}

func toAlumnos(list []models.Alumno) []alumnoResponse {
	out := make([]alumnoResponse, 0, len(list))
	for i := range list {
		out = append(out, toAlumno(&list[i]))
	}
	return out
}

type historialResponse struct {
	IDHistorial  uuid.UUID  `json:"id_historial"`
	IDAlumno     uuid.UUID  `json:"id_alumno"`
	IDEstado     int        `json:"id_estado"`
	EstadoNombre *string    `json:"estado_nombre"`
	Comentario   *string    `json:"comentario"`
	FechaCambio  string     `json:"fecha_cambio"`
	CambiadoPor  *uuid.UUID `json:"cambiado_por"`
	AutorNombre  *string    `json:"autor_nombre"`
}

func toHistorial(h models.HistorialEstado) historialResponse {
	out := historialResponse{
		IDHistorial: h.ID,
		IDAlumno:    h.AlumnoID,
		IDEstado:    h.EstadoID,
		Comentario:  h.Comentario,
		FechaCambio: formatTime(h.FechaCambio),
		CambiadoPor: h.CambiadoPor,
	}
	if h.Estado != nil {
		out.EstadoNombre = &h.Estado.Nombre
	}
	if h.Autor != nil {
		name := h.Autor.DisplayName()
		out.AutorNombre = &name
	}
	return out
}

type observacionResponse struct {
	IDObservacion uuid.UUID `json:"id_observacion"`
	IDAlumno      uuid.UUID `json:"id_alumno"`
	IDAutor       uuid.UUID `json:"id_autor"`
	AutorNombre   *string   `json:"autor_nombre"`
	Texto         string    `json:"texto"`
	Fecha         string    `json:"fecha"`
}

func toObservacion(o models.Observacion) observacionResponse {
	out := observacionResponse{
		IDObservacion: o.ID,
		IDAlumno:      o.AlumnoID,
		IDAutor:       o.AutorID,
		Texto:         o.Texto,
		Fecha:         formatTime(o.CreatedAt),
	}
	if o.Autor != nil {
		name := o.Autor.DisplayName()
		out.AutorNombre = &name
	}
	return out
}

type personaResponse struct {
	IDPersona  uuid.UUID       `json:"id_persona"`
	AuthUserID string          `json:"auth_user_id"`
	Nombre     string          `json:"nombre"`
	Apellido   string          `json:"apellido"`
	Email      *string         `json:"email"`
	FotoURL    *string         `json:"foto_url"`
	IDPerfil   int16           `json:"id_perfil"`
	Perfil     *models.Profile `json:"perfil,omitempty"`
	Roles      []int16         `json:"roles,omitempty"`
	CreatedAt  string          `json:"created_at"`
}

func toPersona(p *models.Persona) personaResponse {
	return personaResponse{
		IDPersona:  p.ID,
		AuthUserID: p.AuthUserID,
		Nombre:     p.Nombre,
		Apellido:   p.Apellido,
		Email:      p.Email,
		FotoURL:    p.FotoURL,
		IDPerfil:   p.ProfileID,
		Perfil:     p.Profile,
		CreatedAt:  formatTime(p.CreatedAt),
	}
}

type maestroResponse struct {
	IDMaestro uuid.UUID `json:"id_maestro"`
	IDPersona uuid.UUID `json:"id_persona"`
	Nombre    string    `json:"nombre"`
	Apellido  string    `json:"apellido"`
	Email     *string   `json:"email"`
	Telefono  *string   `json:"telefono"`
	Direccion *string   `json:"direccion"`
	CreatedAt string    `json:"created_at"`
}

func toMaestro(m *models.Maestro) maestroResponse {
	out := maestroResponse{
		IDMaestro: m.ID,
		IDPersona: m.PersonaID,
		Telefono:  m.Telefono,
		Direccion: m.Direccion,
		CreatedAt: formatTime(m.CreatedAt),
	}
	if m.Persona != nil {
		out.Nombre = m.Persona.Nombre
		out.Apellido = m.Persona.Apellido
		out.Email = m.Persona.Email
	}
	return out
}
