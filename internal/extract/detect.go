package extract

import (
	"fmt"
	"strings"

	"github.com/opensource-finance/fuelrecon/internal/document"
	"github.com/opensource-finance/fuelrecon/internal/domain"
)

// KnownRoots are the document element names of the supported e-invoice
// layouts, tried in order.
var KnownRoots = []string{
	"p:FatturaElettronica",
	"ns2:FatturaElettronica",
	"ns3:FatturaElettronica",
	"a:FatturaElettronica",
	"FatturaElettronica",
}

const (
	linePath     = "FatturaElettronicaBody.DatiBeniServizi.DettaglioLinee"
	supplierPath = "FatturaElettronicaHeader.CedentePrestatore.DatiAnagrafici"
	documentPath = "FatturaElettronicaBody.DatiGenerali.DatiGeneraliDocumento"
)

var plateTags = map[string]bool{
	"TARGA":         true,
	"TARGA VEICOLO": true,
	"TARGA_VEICOLO": true,
	"TARGAVEICOLO":  true,
	"PLATE":         true,
}

// FatturaDetection describes a recognised e-invoice layout.
type FatturaDetection struct {
	Root          string  `json:"root"`
	LineXPath     string  `json:"lineXpath"`
	LineCount     int     `json:"lineCount"`
	HasPlateField bool    `json:"hasPlateField"`
	PlateXPath    string  `json:"plateXpath,omitempty"`
	HasDateField  bool    `json:"hasDateField"`
	DateXPath     string  `json:"dateXpath,omitempty"`
	HasQuantity   bool    `json:"hasQuantity"`
	SupplierVAT   *string `json:"supplierVat,omitempty"`
	SupplierName  *string `json:"supplierName,omitempty"`
	InvoiceNumber *string `json:"invoiceNumber,omitempty"`
	InvoiceDate   *string `json:"invoiceDate,omitempty"`
}

// Detect recognises a known e-invoice layout. It returns nil when the
// document does not parse or matches none of KnownRoots.
func Detect(data []byte) *FatturaDetection {
	root, err := document.Parse(data)
	if err != nil {
		return nil
	}
	return DetectTree(root)
}

// DetectTree is Detect on a parsed document.
func DetectTree(root *document.Node) *FatturaDetection {
	for _, name := range KnownRoots {
		lines := root.Lookup(name + "." + linePath)
		if len(lines) == 0 {
			continue
		}
		d := &FatturaDetection{
			Root:      name,
			LineXPath: name + "." + linePath,
			LineCount: len(lines),
		}
		inspectLine(d, lines[0])

		value := func(path string) *string {
			v, ok := root.ValueAt(name + "." + path)
			if !ok || v == "" {
				return nil
			}
			return &v
		}
		d.SupplierVAT = value(supplierPath + ".IdFiscaleIVA.IdCodice")
		d.SupplierName = value(supplierPath + ".Anagrafica.Denominazione")
		if d.SupplierName == nil {
			first, last := value(supplierPath+".Anagrafica.Nome"), value(supplierPath+".Anagrafica.Cognome")
			if first != nil && last != nil {
				full := *first + " " + *last
				d.SupplierName = &full
			}
		}
		d.InvoiceNumber = value(documentPath + ".Numero")
		d.InvoiceDate = value(documentPath + ".Data")
		return d
	}
	return nil
}

func inspectLine(d *FatturaDetection, line *document.Node) {
	_, d.HasQuantity = line.Find("Quantita")

	if _, ok := line.Find("DataInizioPeriodo"); ok {
		d.HasDateField = true
		d.DateXPath = "DataInizioPeriodo"
	}

	for i, g := range line.ChildrenNamed("AltriDatiGestionali") {
		tag, _ := g.ValueAt("TipoDato")
		tag = strings.ToUpper(strings.TrimSpace(tag))

		if !d.HasPlateField && plateTags[tag] {
			if _, ok := g.Find("RiferimentoTesto"); ok {
				d.HasPlateField = true
				d.PlateXPath = fmt.Sprintf("AltriDatiGestionali[%d].RiferimentoTesto", i)
			}
		}
		if !d.HasDateField && strings.Contains(tag, "DATA") {
			if _, ok := g.Find("RiferimentoData"); ok {
				d.HasDateField = true
				d.DateXPath = fmt.Sprintf("AltriDatiGestionali[%d].RiferimentoData", i)
			}
		}
	}
}

// GenerateTemplateConfig builds a working template for a detected layout.
// Dedicated fields are read directly; otherwise plate, date and quantity are
// searched in the line description.
func GenerateTemplateConfig(d *FatturaDetection) domain.TemplateConfig {
	fields := map[domain.FieldName]domain.FieldExtractionRule{
		domain.FieldDescription: {Method: domain.MethodXPath, XPath: "Descrizione", Transform: domain.TransformTrim},
		domain.FieldAmount:      {Method: domain.MethodXPath, XPath: "PrezzoTotale"},
		domain.FieldUnitPrice:   {Method: domain.MethodXPath, XPath: "PrezzoUnitario"},
		domain.FieldFuelType: {
			Method:    domain.MethodXPathRegex,
			XPath:     "Descrizione",
			Patterns:  FuelTypePatterns,
			Transform: domain.TransformUppercase,
		},
	}

	if d.HasPlateField {
		fields[domain.FieldPlate] = domain.FieldExtractionRule{
			Method:    domain.MethodXPath,
			XPath:     d.PlateXPath,
			Transform: domain.TransformUppercase,
		}
	} else {
		fields[domain.FieldPlate] = domain.FieldExtractionRule{
			Method:    domain.MethodXPathRegex,
			XPath:     "Descrizione",
			Patterns:  PlatePatterns,
			Transform: domain.TransformUppercase,
		}
	}

	if d.HasDateField {
		fields[domain.FieldDate] = domain.FieldExtractionRule{Method: domain.MethodXPath, XPath: d.DateXPath}
	} else {
		fields[domain.FieldDate] = domain.FieldExtractionRule{
			Method:   domain.MethodXPathRegex,
			XPath:    "Descrizione",
			Patterns: DatePatterns,
		}
	}

	if d.HasQuantity {
		fields[domain.FieldQuantity] = domain.FieldExtractionRule{Method: domain.MethodXPath, XPath: "Quantita"}
	} else {
		fields[domain.FieldQuantity] = domain.FieldExtractionRule{
			Method:   domain.MethodXPathRegex,
			XPath:    "Descrizione",
			Patterns: QuantityPatterns,
		}
	}

	return domain.TemplateConfig{
		LineXPath:          d.LineXPath,
		Fields:             fields,
		InvoiceNumberXPath: d.Root + "." + documentPath + ".Numero",
		InvoiceDateXPath:   d.Root + "." + documentPath + ".Data",
		SupplierVATXPath:   d.Root + "." + supplierPath + ".IdFiscaleIVA.IdCodice",
	}
}
