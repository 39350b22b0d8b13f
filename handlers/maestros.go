package handlers

import (
	"net/http"

	"seguimiento/models"
	"seguimiento/render"
	"seguimiento/store"

	"github.com/rs/zerolog"
)

type MaestroHandler struct {
	store *store.Store
	log   zerolog.Logger
}

func NewMaestroHandler(st *store.Store, log zerolog.Logger) *MaestroHandler {
	return &MaestroHandler{store: st, log: log}
}

func (h *MaestroHandler) List(w http.ResponseWriter, r *http.Request) {
	maestros, err := h.store.ListMaestros(r.Context())
	if err != nil {
		render.Error(w, r, err)
		return
	}

	out := make([]maestroResponse, 0, len(maestros))
	for i := range maestros {
		out = append(out, toMaestro(&maestros[i]))
	}
	render.JSON(w, http.StatusOK, map[string]any{"total": len(out), "maestros": out})
}

func (h *MaestroHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		render.Error(w, r, err)
		return
	}
	m, err := h.store.MaestroByID(r.Context(), id)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, toMaestro(m))
}

type createMaestroRequest struct {
	Nombre    string  `json:"nombre" validate:"required,max=100"`
	Apellido  string  `json:"apellido" validate:"required,max=100"`
	Email     string  `json:"email" validate:"required,email,max=255"`
	Password  string  `json:"password" validate:"required,min=5,max=72"`
	Telefono  *string `json:"telefono" validate:"omitempty,max=50"`
	Direccion *string `json:"direccion" validate:"omitempty,max=255"`
	IDPerfil  int16   `json:"id_perfil" validate:"omitempty,oneof=1 2 3"`
}

// Create registers a teacher with login credentials. The profile defaults to
// moderator so the teacher can record changes for its students.
func (h *MaestroHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createMaestroRequest
	if err := render.Decode(r, &req); err != nil {
		render.Error(w, r, err)
		return
	}

	profile := req.IDPerfil
	if profile == 0 {
		profile = models.NivelModerador
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	p := newPersona(req.Nombre, req.Apellido, &req.Email, profile)
	p.PasswordHash = hash
	m := &models.Maestro{Telefono: req.Telefono, Direccion: req.Direccion}

	if err := h.store.CreateMaestro(r.Context(), p, m); err != nil {
		render.Error(w, r, err)
		return
	}

	created, err := h.store.MaestroByID(r.Context(), m.ID)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	h.log.Info().Str("id_maestro", m.ID.String()).Msg("maestro creado")
	render.JSON(w, http.StatusCreated, toMaestro(created))
}
