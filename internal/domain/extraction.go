package domain

// ExtractedLine is one purchase event read from a document, before matching.
// Date is kept as the raw string; parsing happens where it is consumed.
type ExtractedLine struct {
	LineNumber  int      `json:"lineNumber"`
	Plate       *string  `json:"plate"`
	Date        *string  `json:"date"`
	FuelType    *string  `json:"fuelType"`
	Quantity    *float64 `json:"quantity"`
	Amount      *float64 `json:"amount"`
	CardNumber  *string  `json:"cardNumber"`
	Odometer    *int64   `json:"odometer"`
	Description *string  `json:"description"`
	UnitPrice   *float64 `json:"unitPrice"`
	Errors      []string `json:"errors,omitempty"`
}

// InvoiceMetadata holds document-level values found by the template paths.
type InvoiceMetadata struct {
	Number      *string `json:"number,omitempty"`
	Date        *string `json:"date,omitempty"`
	SupplierVAT *string `json:"supplierVat,omitempty"`
}

// ExtractionResult is the outcome of extracting one document.
type ExtractionResult struct {
	Success       bool             `json:"success"`
	Lines         []ExtractedLine  `json:"lines"`
	TotalLines    int              `json:"totalLines"`
	FilteredLines int              `json:"filteredLines"`
	Errors        []string         `json:"errors,omitempty"`
	Invoice       *InvoiceMetadata `json:"invoice,omitempty"`
}

// Failed builds an unsuccessful result carrying one error.
func Failed(err string) ExtractionResult {
	return ExtractionResult{
		Success: false,
		Lines:   []ExtractedLine{},
		Errors:  []string{err},
	}
}
