package aeat

import (
	"strings"
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRecordDoc = `<sum:RegistroAlta xmlns:sum="urn:test"><sum:IDVersion>1.0</sum:IDVersion></sum:RegistroAlta>`

func TestBuildInvoiceEnvelope(t *testing.T) {
	env, err := BuildInvoiceEnvelope(Obligor{Name: "Acme SL", VATNumber: "89890001K"}, sampleRecordDoc)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(env, xmlDeclaration))

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromString(env))
	root := doc.Root()
	require.NotNil(t, root)
	assert.Equal(t, "Envelope", root.Tag)

	assert.Contains(t, env, "<lr:RegFactuSistemaFacturacion>")
	assert.Contains(t, env, "<sum:NombreRazon>Acme SL</sum:NombreRazon>")
	assert.Contains(t, env, "<sum:NIF>89890001K</sum:NIF>")
	assert.Contains(t, env, "<lr:RegistroFactura>")
	assert.Contains(t, env, "<sum:IDVersion>1.0</sum:IDVersion>")
}

func TestBuildInvoiceEnvelopeEscapesObligor(t *testing.T) {
	env, err := BuildInvoiceEnvelope(Obligor{Name: "A&B <SL>", VATNumber: "89890001K"}, sampleRecordDoc)
	require.NoError(t, err)
	assert.Contains(t, env, "A&amp;B &lt;SL&gt;")
}

func TestBuildEventEnvelope(t *testing.T) {
	eventDoc := `<sum:RegistroEvento xmlns:sum="urn:test"><sum:TipoEvento>01</sum:TipoEvento></sum:RegistroEvento>`
	env, err := BuildEventEnvelope(Obligor{Name: "Acme SL", VATNumber: "89890001K"}, eventDoc)
	require.NoError(t, err)
	assert.Contains(t, env, "<lr:RegEventosSistemaFacturacion>")
	assert.Contains(t, env, "<lr:RegistroEventos>")
	assert.Contains(t, env, "<sum:TipoEvento>01</sum:TipoEvento>")
}

func TestBuildEnvelopeMultipleRecords(t *testing.T) {
	env, err := BuildInvoiceEnvelope(Obligor{Name: "Acme SL", VATNumber: "89890001K"},
		sampleRecordDoc, sampleRecordDoc)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(env, "<lr:RegistroFactura>"))
}

func TestBuildEnvelopeRejectsBadInput(t *testing.T) {
	_, err := BuildInvoiceEnvelope(Obligor{Name: "Acme SL", VATNumber: "89890001K"})
	require.Error(t, err)

	_, err = BuildInvoiceEnvelope(Obligor{Name: "Acme SL", VATNumber: "89890001K"}, "<broken")
	require.Error(t, err)
}
