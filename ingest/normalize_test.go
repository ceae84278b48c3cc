package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"Código de Barras": "codigodebarras",
		"  PVP  ":          "pvp",
		"Categoría":        "categoria",
		"Precio (€)":       "precio",
		"Stock_Actual":     "stockactual",
		"EAN-13":           "ean13",
		"":                 "",
		"   ":              "",
		"ÑOÑO":             "nono",
	}
	for in, want := range cases {
		assert.Equal(t, want, Normalize(in), "input %q", in)
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	for _, h := range []string{"Código de Barras", "Nombre del Artículo", "P.V.P.", "Existencias", "qty 2"} {
		once := Normalize(h)
		assert.Equal(t, once, Normalize(once))
	}
}

func TestNormalizeIgnoresCaseAndAccents(t *testing.T) {
	assert.Equal(t, Normalize("categoría"), Normalize("CATEGORIA"))
	assert.Equal(t, Normalize("Descripción"), Normalize("descripcion"))
}
