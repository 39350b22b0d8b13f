package patch

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type alumnoPatch struct {
	Nombre        Field[string]  `json:"nombre"`
	Email         Field[*string] `json:"email"`
	FranjaHoraria Field[*string] `json:"franja_horaria"`
}

func TestFieldPresence(t *testing.T) {
	var p alumnoPatch
	require.NoError(t, json.Unmarshal([]byte(`{"nombre":"Ana","email":null}`), &p))

	assert.True(t, p.Nombre.Set)
	assert.Equal(t, "Ana", p.Nombre.Value)
	assert.True(t, p.Email.Set, "explicit null must count as present")
	assert.Nil(t, p.Email.Value)
	assert.False(t, p.FranjaHoraria.Set)
}

func TestChangesOnlyIncludePresentFields(t *testing.T) {
	var p alumnoPatch
	require.NoError(t, json.Unmarshal([]byte(`{"email":null}`), &p))

	c := Changes{}
	Put(c, "nombre", p.Nombre)
	Put(c, "email", p.Email)
	Put(c, "franja_horaria", p.FranjaHoraria)

	assert.Len(t, c, 1)
	v, ok := c["email"]
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestApply(t *testing.T) {
	name := "old"
	assert.False(t, Field[string]{}.Apply(&name))
	assert.Equal(t, "old", name)

	assert.True(t, Of("new").Apply(&name))
	assert.Equal(t, "new", name)
}

func TestEmptyPatch(t *testing.T) {
	var p alumnoPatch
	require.NoError(t, json.Unmarshal([]byte(`{}`), &p))
	c := Changes{}
	Put(c, "nombre", p.Nombre)
	assert.True(t, c.Empty())
}

func TestFieldNull(t *testing.T) {
	var p struct {
		Activo Field[bool] `json:"activo"`
		Orden  Field[int]  `json:"orden"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"activo":null,"orden":3}`), &p))

	assert.True(t, p.Activo.Set)
	assert.True(t, p.Activo.Null)
	assert.False(t, p.Activo.Value)
	assert.True(t, p.Orden.Set)
	assert.False(t, p.Orden.Null)
	assert.Equal(t, 3, p.Orden.Value)
}
