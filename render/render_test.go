package render

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"seguimiento/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cambioEstado struct {
	IDEstado   int     `json:"id_estado" validate:"required,min=1"`
	Comentario *string `json:"comentario" validate:"omitempty,max=500"`
}

func TestDecodeValid(t *testing.T) {
	r := httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{"id_estado":5,"comentario":"ok"}`))
	var body cambioEstado
	require.NoError(t, Decode(r, &body))
	assert.Equal(t, 5, body.IDEstado)
	assert.Equal(t, "ok", *body.Comentario)
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		contain string
	}{
		{"empty body", ``, "vacío"},
		{"malformed", `{"id_estado":`, "JSON inválido"},
		{"unknown field", `{"id_estado":1,"extra":true}`, "JSON inválido"},
		{"missing required", `{}`, "id_estado es obligatorio"},
		{"too long", `{"id_estado":1,"comentario":"` + strings.Repeat("x", 501) + `"}`, "comentario no puede superar 500"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(tt.body))
			var body cambioEstado
			err := Decode(r, &body)
			require.Error(t, err)
			assert.True(t, apperr.Is(err, apperr.KindInvalidInput))
			assert.Contains(t, apperr.Message(err), tt.contain)
		})
	}
}

func TestErrorBody(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/alumnos/x", nil)

	Error(rec, req, apperr.Forbidden("el alumno no está asignado a este maestro"))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body ErrorBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "Forbidden", body.Error)
	assert.Equal(t, "el alumno no está asignado a este maestro", body.Detail)
}

func TestDecodeSliceSkipsStructValidation(t *testing.T) {
	r := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`[{"id_estado":0}]`))
	var body []cambioEstado
	require.NoError(t, Decode(r, &body))
	require.Len(t, body, 1)

	err := Validate(&body[0])
	assert.True(t, apperr.Is(err, apperr.KindInvalidInput))
}

func TestVar(t *testing.T) {
	assert.NoError(t, Var("email", "ana@example.com", "email"))

	err := Var("email", "nope", "email")
	require.Error(t, err)
	assert.Equal(t, "email debe ser un email válido", apperr.Message(err))

	err = Var("nombre", "", "required")
	assert.Equal(t, "nombre es obligatorio", apperr.Message(err))
}
