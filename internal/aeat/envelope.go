package aeat

import (
	"github.com/beevik/etree"

	"github.com/rauletepaz/account-verifactu/pkg/fiscalerrors"
)

const (
	nsSOAPEnvelope = "http://schemas.xmlsoap.org/soap/envelope/"
	nsSuministroLR = "https://www2.agenciatributaria.gob.es/static_files/common/internet/dep/aplicaciones/es/aeat/tike/cont/ws/SuministroLR.xsd"
	nsSuministro   = "https://www2.agenciatributaria.gob.es/static_files/common/internet/dep/aplicaciones/es/aeat/tike/cont/ws/SuministroInformacion.xsd"
)

// Obligor identifies the party on whose behalf records are submitted.
type Obligor struct {
	Name      string
	VATNumber string
}

// BuildInvoiceEnvelope wraps rendered issuance/voidance documents in the
// submission envelope. The documents go in as parsed XML, never as raw text,
// so a malformed rendering fails here instead of at the agency.
func BuildInvoiceEnvelope(ob Obligor, documents ...string) (string, error) {
	return buildEnvelope(ob, "lr:RegFactuSistemaFacturacion", "lr:RegistroFactura", documents)
}

// BuildEventEnvelope wraps rendered event documents.
func BuildEventEnvelope(ob Obligor, documents ...string) (string, error) {
	return buildEnvelope(ob, "lr:RegEventosSistemaFacturacion", "lr:RegistroEventos", documents)
}

func buildEnvelope(ob Obligor, rootTag, wrapperTag string, documents []string) (string, error) {
	if len(documents) == 0 {
		return "", fiscalerrors.New(fiscalerrors.CodeInvalidInput, "envelope needs at least one record document")
	}

	env := etree.NewElement("soapenv:Envelope")
	env.CreateAttr("xmlns:soapenv", nsSOAPEnvelope)
	env.CreateAttr("xmlns:lr", nsSuministroLR)
	env.CreateAttr("xmlns:sum", nsSuministro)
	env.CreateElement("soapenv:Header")
	body := env.CreateElement("soapenv:Body")

	reg := body.CreateElement(rootTag)
	cab := reg.CreateElement("lr:Cabecera")
	obligor := cab.CreateElement("sum:ObligadoEmision")
	obligor.CreateElement("sum:NombreRazon").SetText(ob.Name)
	obligor.CreateElement("sum:NIF").SetText(ob.VATNumber)

	for _, document := range documents {
		parsed := etree.NewDocument()
		if err := parsed.ReadFromString(document); err != nil {
			return "", fiscalerrors.Wrap(fiscalerrors.CodeInvalidInput, "parse record document for envelope", err)
		}
		root := parsed.Root()
		if root == nil {
			return "", fiscalerrors.New(fiscalerrors.CodeInvalidInput, "record document has no root element")
		}
		wrapper := reg.CreateElement(wrapperTag)
		wrapper.AddChild(root.Copy())
	}

	out := etree.NewDocument()
	out.SetRoot(env)
	serialized, err := out.WriteToString()
	if err != nil {
		return "", fiscalerrors.Wrap(fiscalerrors.CodeInternal, "serialize envelope", err)
	}
	return xmlDeclaration + serialized, nil
}

const xmlDeclaration = `<?xml version="1.0" encoding="UTF-8"?>`
