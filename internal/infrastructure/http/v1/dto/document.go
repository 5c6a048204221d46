package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"docstitch/internal/core/types"
	"docstitch/internal/domain/trade"
)

// CreateDocumentRequest is the payload for creating a document with lines.
// The kind comes from the URL, the code from the numerator.
type CreateDocumentRequest struct {
	StatusID     int             `json:"statusId"`
	WarehouseID  string          `json:"warehouseId" binding:"required"`
	CurrencyCode string          `json:"currencyCode" binding:"required"`
	CompanyID    int64           `json:"companyId"`
	Discount1    decimal.Decimal `json:"discount1"`
	Discount2    decimal.Decimal `json:"discount2"`
	SubjectCode  string          `json:"subjectCode" binding:"required"`
	Series       string          `json:"series"`
	IssuedAt     *time.Time      `json:"issuedAt"`
	ExternalRef  string          `json:"externalRef"`

	Lines []CreateLineRequest `json:"lines"`
}

// CreateLineRequest is one line of a document creation payload.
type CreateLineRequest struct {
	ProductRef   *string         `json:"productRef"`
	Description  string          `json:"description"`
	Quantity     types.Quantity  `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unitPrice"`
	Discount1    decimal.Decimal `json:"discount1"`
	Discount2    decimal.Decimal `json:"discount2"`
	TaxCode      string          `json:"taxCode"`
	TaxException string          `json:"taxException"`
}

// ToDocument maps the request onto a fresh domain document.
func (r *CreateDocumentRequest) ToDocument(kind trade.Kind) *trade.Document {
	doc := trade.NewDocument(kind)
	doc.StatusID = r.StatusID
	doc.WarehouseID = r.WarehouseID
	doc.CurrencyCode = r.CurrencyCode
	doc.CompanyID = r.CompanyID
	doc.Discount1 = r.Discount1
	doc.Discount2 = r.Discount2
	doc.SubjectCode = r.SubjectCode
	doc.Series = r.Series
	doc.ExternalRef = r.ExternalRef
	if r.IssuedAt != nil {
		doc.IssuedAt = *r.IssuedAt
	}
	return doc
}

// ToLines maps the request lines onto domain lines owned by doc.
func (r *CreateDocumentRequest) ToLines(doc *trade.Document) []trade.DocumentLine {
	lines := make([]trade.DocumentLine, len(r.Lines))
	for i, src := range r.Lines {
		line := doc.NewLine()
		line.Position = i + 1
		line.ProductRef = src.ProductRef
		line.Description = src.Description
		line.Quantity = src.Quantity
		line.UnitPrice = src.UnitPrice
		line.Discount1 = src.Discount1
		line.Discount2 = src.Discount2
		line.TaxCode = src.TaxCode
		line.TaxException = src.TaxException
		lines[i] = line
	}
	return lines
}

// DocumentResponse is a document with its lines.
type DocumentResponse struct {
	Document *trade.Document      `json:"document"`
	Lines    []trade.DocumentLine `json:"lines"`
}
