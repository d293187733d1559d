package record

import (
	"encoding/xml"
	"strings"

	"github.com/beevik/etree"

	"github.com/rauletepaz/account-verifactu/pkg/fiscalerrors"
)

// Renderer serializes a record into its wire XML document. One typed struct
// per category keeps the element order fixed statically; the document must be
// byte-order-stable because the fingerprint is computed over the same field
// order.
type Renderer struct {
	system SystemInfo
}

func NewRenderer(system SystemInfo) *Renderer {
	return &Renderer{system: system}
}

const nsRegistro = "https://www2.agenciatributaria.gob.es/static_files/common/internet/dep/aplicaciones/es/aeat/tike/cont/ws/SuministroInformacion.xsd"

const hashTypeSHA256 = "01"

type invoiceID struct {
	IDEmisorFactura        string `xml:"sum:IDEmisorFactura"`
	NumSerieFactura        string `xml:"sum:NumSerieFactura"`
	FechaExpedicionFactura string `xml:"sum:FechaExpedicionFactura"`
}

type voidedInvoiceID struct {
	IDEmisorFacturaAnulada        string `xml:"sum:IDEmisorFacturaAnulada"`
	NumSerieFacturaAnulada        string `xml:"sum:NumSerieFacturaAnulada"`
	FechaExpedicionFacturaAnulada string `xml:"sum:FechaExpedicionFacturaAnulada"`
}

type previousRecord struct {
	Huella string `xml:"sum:Huella"`
}

type chainLink struct {
	PrimerRegistro   string          `xml:"sum:PrimerRegistro,omitempty"`
	RegistroAnterior *previousRecord `xml:"sum:RegistroAnterior,omitempty"`
}

type systemElement struct {
	NombreRazon          string `xml:"sum:NombreRazon,omitempty"`
	IdSistemaInformatico string `xml:"sum:IdSistemaInformatico"`
	Version              string `xml:"sum:Version"`
	NumeroInstalacion    string `xml:"sum:NumeroInstalacion"`
}

type issuanceDoc struct {
	XMLName           xml.Name      `xml:"sum:RegistroAlta"`
	XMLNS             string        `xml:"xmlns:sum,attr"`
	IDVersion         string        `xml:"sum:IDVersion"`
	IDFactura         invoiceID     `xml:"sum:IDFactura"`
	NombreRazonEmisor string        `xml:"sum:NombreRazonEmisor,omitempty"`
	Subsanacion       string        `xml:"sum:Subsanacion,omitempty"`
	RechazoPrevio     string        `xml:"sum:RechazoPrevio,omitempty"`
	SinRegistroPrevio string        `xml:"sum:SinRegistroPrevio,omitempty"`
	TipoFactura       string        `xml:"sum:TipoFactura"`
	TipoRectificativa string        `xml:"sum:TipoRectificativa,omitempty"`
	CuotaTotal        string        `xml:"sum:CuotaTotal"`
	ImporteTotal      string        `xml:"sum:ImporteTotal"`
	Encadenamiento    chainLink     `xml:"sum:Encadenamiento"`
	Sistema           systemElement `xml:"sum:SistemaInformatico"`
	FechaHoraHuso     string        `xml:"sum:FechaHoraHusoGenRegistro"`
	TipoHuella        string        `xml:"sum:TipoHuella"`
	Huella            string        `xml:"sum:Huella"`
}

type voidanceDoc struct {
	XMLName           xml.Name        `xml:"sum:RegistroAnulacion"`
	XMLNS             string          `xml:"xmlns:sum,attr"`
	IDVersion         string          `xml:"sum:IDVersion"`
	IDFacturaAnulada  voidedInvoiceID `xml:"sum:IDFacturaAnulada"`
	Subsanacion       string          `xml:"sum:Subsanacion,omitempty"`
	RechazoPrevio     string          `xml:"sum:RechazoPrevio,omitempty"`
	SinRegistroPrevio string          `xml:"sum:SinRegistroPrevio,omitempty"`
	Encadenamiento    chainLink       `xml:"sum:Encadenamiento"`
	Sistema           systemElement   `xml:"sum:SistemaInformatico"`
	FechaHoraHuso     string          `xml:"sum:FechaHoraHusoGenRegistro"`
	TipoHuella        string          `xml:"sum:TipoHuella"`
	Huella            string          `xml:"sum:Huella"`
}

type eventDoc struct {
	XMLName        xml.Name      `xml:"sum:RegistroEvento"`
	XMLNS          string        `xml:"xmlns:sum,attr"`
	IDVersion      string        `xml:"sum:IDVersion"`
	Sistema        systemElement `xml:"sum:SistemaInformatico"`
	NIF            string        `xml:"sum:NIF"`
	TipoEvento     string        `xml:"sum:TipoEvento"`
	Encadenamiento chainLink     `xml:"sum:Encadenamiento"`
	FechaHoraHuso  string        `xml:"sum:FechaHoraHusoGenEvento"`
	TipoHuella     string        `xml:"sum:TipoHuella"`
	HuellaEvento   string        `xml:"sum:HuellaEvento"`
}

// Render produces the unsigned wire document for a sealed record.
func (re *Renderer) Render(r *FiscalRecord) (string, error) {
	if !r.Sealed() {
		return "", fiscalerrors.Newf(fiscalerrors.CodeInvalidInput, "record %s: cannot render before fingerprint", r.ID)
	}
	var doc any
	switch r.Category {
	case CategoryIssuance:
		doc = re.issuance(r)
	case CategoryVoidance:
		doc = re.voidance(r)
	case CategoryEvent:
		doc = re.event(r)
	default:
		return "", fiscalerrors.Newf(fiscalerrors.CodeInvalidInput, "record %s: unknown category %q", r.ID, r.Category)
	}
	out, err := xml.Marshal(doc)
	if err != nil {
		return "", fiscalerrors.Wrap(fiscalerrors.CodeInternal, "render record document", err)
	}
	return string(out), nil
}

func (re *Renderer) issuance(r *FiscalRecord) issuanceDoc {
	invoiceType := r.FieldValue("TipoFactura")
	d := issuanceDoc{
		XMLNS:     nsRegistro,
		IDVersion: "1.0",
		IDFactura: invoiceID{
			IDEmisorFactura:        r.FieldValue("IDEmisorFactura"),
			NumSerieFactura:        r.FieldValue("NumSerieFactura"),
			FechaExpedicionFactura: r.FieldValue("FechaExpedicionFactura"),
		},
		NombreRazonEmisor: r.IssuerName,
		Subsanacion:       string(r.Flags.IsCorrection),
		RechazoPrevio:     string(r.Flags.PriorRejection),
		SinRegistroPrevio: string(r.Flags.NoPriorRecord),
		TipoFactura:       invoiceType,
		CuotaTotal:        r.FieldValue("CuotaTotal"),
		ImporteTotal:      r.FieldValue("ImporteTotal"),
		Encadenamiento:    re.chain(r.PreviousFingerprint),
		Sistema:           re.systemElement(r.IssuerName),
		FechaHoraHuso:     r.GenerationTimestamp(),
		TipoHuella:        hashTypeSHA256,
		Huella:            r.Fingerprint,
	}
	if strings.HasPrefix(invoiceType, "R") {
		d.TipoRectificativa = "I"
	}
	return d
}

func (re *Renderer) voidance(r *FiscalRecord) voidanceDoc {
	return voidanceDoc{
		XMLNS:     nsRegistro,
		IDVersion: "1.0",
		IDFacturaAnulada: voidedInvoiceID{
			IDEmisorFacturaAnulada:        r.FieldValue("IDEmisorFacturaAnulada"),
			NumSerieFacturaAnulada:        r.FieldValue("NumSerieFacturaAnulada"),
			FechaExpedicionFacturaAnulada: r.FieldValue("FechaExpedicionFacturaAnulada"),
		},
		Subsanacion:       string(r.Flags.IsCorrection),
		RechazoPrevio:     string(r.Flags.PriorRejection),
		SinRegistroPrevio: string(r.Flags.NoPriorRecord),
		Encadenamiento:    re.chain(r.PreviousFingerprint),
		Sistema:           re.systemElement(r.IssuerName),
		FechaHoraHuso:     r.GenerationTimestamp(),
		TipoHuella:        hashTypeSHA256,
		Huella:            r.Fingerprint,
	}
}

func (re *Renderer) event(r *FiscalRecord) eventDoc {
	return eventDoc{
		XMLNS:          nsRegistro,
		IDVersion:      "1.0",
		Sistema:        re.systemElement(r.IssuerName),
		NIF:            r.FieldValue("NIF"),
		TipoEvento:     string(r.Subtype),
		Encadenamiento: re.chain(r.PreviousFingerprint),
		FechaHoraHuso:  r.GenerationTimestamp(),
		TipoHuella:     hashTypeSHA256,
		HuellaEvento:   r.Fingerprint,
	}
}

func (re *Renderer) chain(previous string) chainLink {
	if previous == "" {
		return chainLink{PrimerRegistro: "S"}
	}
	return chainLink{RegistroAnterior: &previousRecord{Huella: previous}}
}

func (re *Renderer) systemElement(issuerName string) systemElement {
	return systemElement{
		NombreRazon:          issuerName,
		IdSistemaInformatico: re.system.SystemID,
		Version:              re.system.Version,
		NumeroInstalacion:    re.system.InstallationNumber,
	}
}

// EmbedSignature re-renders the document with the signature element appended
// as the last child of the root, the form the asynchronous mode transmits.
func EmbedSignature(document, signature string) (string, error) {
	if strings.TrimSpace(signature) == "" {
		return "", fiscalerrors.New(fiscalerrors.CodeInvalidInput, "empty signature element")
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromString(document); err != nil {
		return "", fiscalerrors.Wrap(fiscalerrors.CodeInternal, "parse record document", err)
	}
	sig := etree.NewDocument()
	if err := sig.ReadFromString(signature); err != nil {
		return "", fiscalerrors.Wrap(fiscalerrors.CodeInvalidInput, "parse signature element", err)
	}
	root := doc.Root()
	if root == nil || sig.Root() == nil {
		return "", fiscalerrors.New(fiscalerrors.CodeInternal, "document or signature has no root element")
	}
	root.AddChild(sig.Root().Copy())
	out, err := doc.WriteToString()
	if err != nil {
		return "", fiscalerrors.Wrap(fiscalerrors.CodeInternal, "serialize signed document", err)
	}
	return out, nil
}
