package handlers

import (
	"net/http"

	"seguimiento/apperr"
	"seguimiento/catalog"
	"seguimiento/render"

	"github.com/google/uuid"
)

type CatalogHandler struct {
	catalog *catalog.Service
}

func NewCatalogHandler(svc *catalog.Service) *CatalogHandler {
	return &CatalogHandler{catalog: svc}
}

func (h *CatalogHandler) ListEstados(w http.ResponseWriter, r *http.Request) {
	estados, err := h.catalog.ListEstados(r.Context())
	if err != nil {
		render.Error(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, map[string]any{"total": len(estados), "estados": estados})
}

type createEstadoRequest struct {
	Nombre  string     `json:"nombre" validate:"required,max=100"`
	Orden   int        `json:"orden" validate:"min=0"`
	IDBolsa *uuid.UUID `json:"id_bolsa"`
}

func (h *CatalogHandler) CreateEstado(w http.ResponseWriter, r *http.Request) {
	var req createEstadoRequest
	if err := render.Decode(r, &req); err != nil {
		render.Error(w, r, err)
		return
	}

	e, err := h.catalog.CreateEstado(r.Context(), catalog.NewEstado{
		Nombre:  req.Nombre,
		Orden:   req.Orden,
		BolsaID: req.IDBolsa,
	})
	if err != nil {
		render.Error(w, r, err)
		return
	}
	render.JSON(w, http.StatusCreated, e)
}

// ConfigEstados applies a batch of partial status updates.
func (h *CatalogHandler) ConfigEstados(w http.ResponseWriter, r *http.Request) {
	var req []catalog.EstadoUpdate
	if err := render.Decode(r, &req); err != nil {
		render.Error(w, r, err)
		return
	}
	if len(req) == 0 {
		render.Error(w, r, apperr.InvalidInput("la lista de estados está vacía"))
		return
	}
	for i := range req {
		if err := render.Validate(&req[i]); err != nil {
			render.Error(w, r, err)
			return
		}
	}

	estados, err := h.catalog.UpdateEstados(r.Context(), req)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, map[string]any{"total": len(estados), "estados": estados})
}

func (h *CatalogHandler) ListBolsas(w http.ResponseWriter, r *http.Request) {
	activo, err := boolParam(r, "activo")
	if err != nil {
		render.Error(w, r, err)
		return
	}

	bolsas, err := h.catalog.ListBolsas(r.Context(), activo)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, map[string]any{"total": len(bolsas), "bolsas": bolsas})
}

func (h *CatalogHandler) GetBolsa(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		render.Error(w, r, err)
		return
	}

	b, err := h.catalog.GetBolsa(r.Context(), id)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, b)
}

type createBolsaRequest struct {
	Nombre      string   `json:"nombre" validate:"required,max=100"`
	Descripcion *string  `json:"descripcion"`
	Activo      *bool    `json:"activo"`
	Estados     []string `json:"estados" validate:"dive,required,max=100"`
}

func (h *CatalogHandler) CreateBolsa(w http.ResponseWriter, r *http.Request) {
	var req createBolsaRequest
	if err := render.Decode(r, &req); err != nil {
		render.Error(w, r, err)
		return
	}

	b, err := h.catalog.CreateBolsa(r.Context(), catalog.NewBolsa{
		Nombre:      req.Nombre,
		Descripcion: req.Descripcion,
		Activo:      req.Activo,
		Estados:     req.Estados,
	})
	if err != nil {
		render.Error(w, r, err)
		return
	}
	render.JSON(w, http.StatusCreated, b)
}

func (h *CatalogHandler) UpdateBolsa(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		render.Error(w, r, err)
		return
	}

	var req catalog.BolsaPatch
	if err := render.Decode(r, &req); err != nil {
		render.Error(w, r, err)
		return
	}

	b, err := h.catalog.UpdateBolsa(r.Context(), id, req)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, b)
}

// DeleteBolsa deactivates the bucket, or removes it with ?force=true.
func (h *CatalogHandler) DeleteBolsa(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		render.Error(w, r, err)
		return
	}
	force, err := boolParam(r, "force")
	if err != nil {
		render.Error(w, r, err)
		return
	}

	res, err := h.catalog.DeleteBolsa(r.Context(), id, force != nil && *force)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, res)
}
