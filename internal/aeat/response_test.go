package aeat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rauletepaz/account-verifactu/internal/record"
	"github.com/rauletepaz/account-verifactu/pkg/fiscalerrors"
)

func TestInterpretAccepted(t *testing.T) {
	body := `<Envelope><Body><RespuestaRegFactuSistemaFacturacion>
		<EstadoEnvio>Correcto</EstadoEnvio>
	</RespuestaRegFactuSistemaFacturacion></Body></Envelope>`

	v, err := Interpret(body)
	require.NoError(t, err)
	assert.Equal(t, record.StateAccepted, v.State)
	assert.Equal(t, "Correcto", v.StatusToken)
	assert.Empty(t, v.ErrorCodes)
}

func TestInterpretPartialMarker(t *testing.T) {
	body := `<Respuesta><EstadoEnvio>ParcialmenteCorrecto</EstadoEnvio></Respuesta>`

	v, err := Interpret(body)
	require.NoError(t, err)
	assert.Equal(t, record.StatePartiallyAccepted, v.State)
}

func TestInterpretAcceptedWithErrorsIsPartial(t *testing.T) {
	body := `<Respuesta>
		<EstadoEnvio>Correcto</EstadoEnvio>
		<RespuestaLinea>
			<EstadoRegistro>AceptadoConErrores</EstadoRegistro>
			<CodigoErrorRegistro>1117</CodigoErrorRegistro>
		</RespuestaLinea>
	</Respuesta>`

	v, err := Interpret(body)
	require.NoError(t, err)
	assert.Equal(t, record.StatePartiallyAccepted, v.State)
	assert.Equal(t, []string{"1117"}, v.ErrorCodes)
}

func TestInterpretRejected(t *testing.T) {
	body := `<Respuesta><EstadoEnvio>Incorrecto</EstadoEnvio>
		<RespuestaLinea><Errores><Error><Codigo>3002</Codigo></Error></Errores></RespuestaLinea>
	</Respuesta>`

	v, err := Interpret(body)
	require.NoError(t, err)
	assert.Equal(t, record.StateRejected, v.State)
	assert.Equal(t, []string{"3002"}, v.ErrorCodes)
}

func TestInterpretStatusTokenFallbacks(t *testing.T) {
	tests := []struct {
		name string
		body string
		want record.State
	}{
		{"Estado", `<R><Estado>Aceptado</Estado></R>`, record.StateAccepted},
		{"Resultado", `<R><Resultado>OK</Resultado></R>`, record.StateAccepted},
		{"CodigoResultado", `<R><CodigoResultado>00</CodigoResultado></R>`, record.StateAccepted},
		{"CodigoRespuesta", `<R><CodigoRespuesta>0</CodigoRespuesta></R>`, record.StateAccepted},
		{"resultCode", `<R><resultCode>Correcto</resultCode></R>`, record.StateAccepted},
		{"unknown token", `<R><Estado>Pendiente</Estado></R>`, record.StateRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Interpret(tt.body)
			require.NoError(t, err)
			assert.Equal(t, tt.want, v.State)
		})
	}
}

func TestInterpretEnvelopeStatusWins(t *testing.T) {
	// EstadoEnvio outranks a per-line Estado.
	body := `<R><EstadoEnvio>Incorrecto</EstadoEnvio><Linea><Estado>Aceptado</Estado></Linea></R>`
	v, err := Interpret(body)
	require.NoError(t, err)
	assert.Equal(t, record.StateRejected, v.State)
}

func TestInterpretFailSafe(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unparseable", `this is not xml at all <<<`},
		{"empty", ``},
		{"no status", `<Envelope><Body/></Envelope>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Interpret(tt.body)
			require.Error(t, err)
			assert.Equal(t, fiscalerrors.CodeProtocol, fiscalerrors.CodeOf(err))
			assert.Equal(t, record.StateRejected, v.State)
		})
	}
}
