package handlers

import (
	"net/http"
	"strings"

	"seguimiento/apperr"
	"seguimiento/models"
	"seguimiento/patch"
	"seguimiento/render"
	"seguimiento/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type PersonaHandler struct {
	store *store.Store
	log   zerolog.Logger
}

func NewPersonaHandler(st *store.Store, log zerolog.Logger) *PersonaHandler {
	return &PersonaHandler{store: st, log: log}
}

// List returns every person to administrators. Moderators see themselves,
// the pastors, and the people behind their own students.
func (h *PersonaHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	ctx := r.Context()
	var filter store.PersonaFilter
	if !actor.IsAdmin() {
		if actor.MaestroID == nil {
			render.Error(w, r, apperr.NotFound("no se encontró el registro de maestro para este usuario"))
			return
		}
		ids := []uuid.UUID{actor.Persona.ID}
		pastors, err := h.store.PersonaIDsWithRole(ctx, models.RolePastor)
		if err != nil {
			render.Error(w, r, err)
			return
		}
		students, err := h.store.StudentPersonaIDs(ctx, *actor.MaestroID)
		if err != nil {
			render.Error(w, r, err)
			return
		}
		ids = append(ids, pastors...)
		ids = append(ids, students...)
		filter.IDs = ids
	}

	personas, err := h.store.ListPersonas(ctx, filter)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	out := make([]personaResponse, 0, len(personas))
	for i := range personas {
		out = append(out, toPersona(&personas[i]))
	}
	render.JSON(w, http.StatusOK, map[string]any{"total": len(out), "personas": out})
}

func (h *PersonaHandler) load(r *http.Request) (*models.Persona, error) {
	id, err := uuidParam(r, "id")
	if err != nil {
		return nil, err
	}
	return h.store.PersonaByID(r.Context(), id)
}

func (h *PersonaHandler) respond(w http.ResponseWriter, r *http.Request, status int, p *models.Persona) {
	roles, err := h.store.RoleIDs(r.Context(), p.ID)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	out := toPersona(p)
	out.Roles = roles
	render.JSON(w, status, out)
}

func (h *PersonaHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.load(r)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, p)
}

type updatePersonaRequest struct {
	Nombre   patch.Field[string]  `json:"nombre"`
	Apellido patch.Field[string]  `json:"apellido"`
	Email    patch.Field[*string] `json:"email"`
	FotoURL  patch.Field[*string] `json:"foto_url"`
	Password patch.Field[string]  `json:"password"`
}

// Update changes a person's details. A duplicate email is a conflict.
func (h *PersonaHandler) Update(w http.ResponseWriter, r *http.Request) {
	p, err := h.load(r)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	var req updatePersonaRequest
	if err := render.Decode(r, &req); err != nil {
		render.Error(w, r, err)
		return
	}

	changes := patch.Changes{}
	if req.Nombre.Set {
		if err := render.Var("nombre", strings.TrimSpace(req.Nombre.Value), "required,max=100"); err != nil {
			render.Error(w, r, err)
			return
		}
		changes["nombre"] = strings.TrimSpace(req.Nombre.Value)
	}
	if req.Apellido.Set {
		if err := render.Var("apellido", strings.TrimSpace(req.Apellido.Value), "required,max=100"); err != nil {
			render.Error(w, r, err)
			return
		}
		changes["apellido"] = strings.TrimSpace(req.Apellido.Value)
	}
	if req.Email.Set {
		email := normalizeEmail(req.Email.Value)
		if email != nil {
			if err := render.Var("email", *email, "email,max=255"); err != nil {
				render.Error(w, r, err)
				return
			}
		}
		changes["email"] = email
	}
	patch.Put(changes, "foto_url", req.FotoURL)
	if req.Password.Set {
		if err := render.Var("password", req.Password.Value, "min=5,max=72"); err != nil {
			render.Error(w, r, err)
			return
		}
		hash, err := hashPassword(req.Password.Value)
		if err != nil {
			render.Error(w, r, err)
			return
		}
		changes["password"] = hash
	}

	if err := h.store.UpdatePersona(r.Context(), p.ID, changes); err != nil {
		if apperr.Is(err, apperr.KindConflict) {
			err = apperr.Wrap(err, apperr.KindConflict, "el email ya está registrado")
		}
		render.Error(w, r, err)
		return
	}

	updated, err := h.store.PersonaByID(r.Context(), p.ID)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	h.respond(w, r, http.StatusOK, updated)
}

type setPerfilRequest struct {
	IDPerfil int16 `json:"id_perfil" validate:"required,min=1"`
}

func (h *PersonaHandler) SetPerfil(w http.ResponseWriter, r *http.Request) {
	p, err := h.load(r)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	var req setPerfilRequest
	if err := render.Decode(r, &req); err != nil {
		render.Error(w, r, err)
		return
	}

	ctx := r.Context()
	profile, err := h.store.ProfileByID(ctx, req.IDPerfil)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	if p.ProfileID == profile.ID {
		render.Error(w, r, apperr.Conflict("la persona ya tiene el perfil %q", profile.Descripcion))
		return
	}
	if err := h.store.SetProfile(ctx, p.ID, profile.ID); err != nil {
		render.Error(w, r, err)
		return
	}

	actor, _ := actorFrom(r)
	h.log.Info().
		Str("id_persona", p.ID.String()).
		Int16("perfil_anterior", p.ProfileID).
		Int16("perfil_nuevo", profile.ID).
		Str("actor", actor.Persona.ID.String()).
		Msg("perfil cambiado")

	p.ProfileID = profile.ID
	p.Profile = profile
	h.respond(w, r, http.StatusOK, p)
}

type addRoleRequest struct {
	IDRol int16 `json:"id_rol" validate:"required,min=1"`
}

// AddRole grants a role. Granting a role the person already holds is a
// conflict.
func (h *PersonaHandler) AddRole(w http.ResponseWriter, r *http.Request) {
	p, err := h.load(r)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	var req addRoleRequest
	if err := render.Decode(r, &req); err != nil {
		render.Error(w, r, err)
		return
	}

	ctx := r.Context()
	role, err := h.store.RoleByID(ctx, req.IDRol)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	if err := h.store.AddRole(ctx, p.ID, role.ID); err != nil {
		if apperr.Is(err, apperr.KindConflict) {
			err = apperr.Wrap(err, apperr.KindConflict, "la persona ya tiene el rol %q", role.Nombre)
		}
		render.Error(w, r, err)
		return
	}
	h.respond(w, r, http.StatusCreated, p)
}
