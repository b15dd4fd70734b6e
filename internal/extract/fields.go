package extract

import "encoding/json"

// LineItem is one item/service row on an invoice.
type LineItem struct {
	ItemName    string  `json:"item_name"`
	ItemCode    string  `json:"item_code,omitempty"`
	Description string  `json:"description,omitempty"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Amount      float64 `json:"amount"`
}

// GSTInformation is the tax block of an invoice.
type GSTInformation struct {
	GSTDescription string  `json:"gst_description"`
	Amount         float64 `json:"amount"`
}

// InvoiceFields is the normalized shape of the built-in invoice schema. The
// pipeline treats extraction results as opaque schema-conforming JSON; this
// struct exists for the run store and the XLSX summary, which only need the
// well-known members.
type InvoiceFields struct {
	IssuingCompanyName      string          `json:"issuing_company_name,omitempty"`
	IssuingCompanyAddress   string          `json:"issuing_company_address,omitempty"`
	IssuingCompanyPhone     string          `json:"issuing_company_phone,omitempty"`
	IssuingCompanyWebsite   string          `json:"issuing_company_website,omitempty"`
	IssuingCompanyEmail     string          `json:"issuing_company_email,omitempty"`
	ReceivingCompanyName    string          `json:"receiving_company_name,omitempty"`
	ReceivingCompanyAddress string          `json:"receiving_company_address,omitempty"`
	ReceivingCompanyPhone   string          `json:"receiving_company_phone,omitempty"`
	ReceivingCompanyWebsite string          `json:"receiving_company_website,omitempty"`
	ReceivingCompanyEmail   string          `json:"receiving_company_email,omitempty"`
	InvoiceNumber           string          `json:"invoice_number"`
	IssueDate               string          `json:"issue_date,omitempty"` // YYYY-MM-DD
	DueDate                 string          `json:"due_date,omitempty"`   // YYYY-MM-DD
	ReferenceNumber         string          `json:"reference_number,omitempty"`
	DeliveryOrderNumber     string          `json:"delivery_order_number,omitempty"`
	Currency                string          `json:"currency,omitempty"`
	LineItems               []LineItem      `json:"line_items,omitempty"`
	GSTInformation          *GSTInformation `json:"gst_information,omitempty"`
	TotalAmountDue          float64         `json:"total_amount_due"`
	OtherNotes              string          `json:"other_notes,omitempty"`
}

// ParseInvoiceFields decodes the well-known members of an extraction result.
// Unknown members (custom schemas) are ignored; a decode failure yields the
// zero value since the raw JSON remains the document of record.
func ParseInvoiceFields(raw json.RawMessage) InvoiceFields {
	var f InvoiceFields
	_ = json.Unmarshal(raw, &f)
	return f
}
