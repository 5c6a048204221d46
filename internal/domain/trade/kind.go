// Package trade provides the commercial document model: quotes, orders,
// delivery notes and invoices on the customer and supplier sides.
package trade

import (
	"docstitch/internal/core/apperror"
)

// Side discriminates the two subject flavors a document can reference.
type Side string

const (
	SideCustomer Side = "customer"
	SideSupplier Side = "supplier"
)

// Stage is the position of a document kind within the workflow chain.
type Stage int

const (
	StageQuote Stage = iota + 1
	StageOrder
	StageDelivery
	StageInvoice
)

// Kind is a closed enumeration over the eight commercial document variants.
// Each kind carries its concrete behavior (side, tables, label, code prefix)
// as data, so no runtime reflection is needed to dispatch on a type tag.
type Kind string

const (
	CustomerQuote    Kind = "CustomerQuote"
	CustomerOrder    Kind = "CustomerOrder"
	CustomerDelivery Kind = "CustomerDelivery"
	CustomerInvoice  Kind = "CustomerInvoice"
	SupplierQuote    Kind = "SupplierQuote"
	SupplierOrder    Kind = "SupplierOrder"
	SupplierDelivery Kind = "SupplierDelivery"
	SupplierInvoice  Kind = "SupplierInvoice"
)

// kindInfo is the behavior table for one document kind.
type kindInfo struct {
	side       Side
	stage      Stage
	table      string
	linesTable string
	labelKey   string
	codePrefix string
}

var kinds = map[Kind]kindInfo{
	CustomerQuote:    {SideCustomer, StageQuote, "customer_quotes", "customer_quote_lines", "customer-quote-min", "PC"},
	CustomerOrder:    {SideCustomer, StageOrder, "customer_orders", "customer_order_lines", "customer-order-min", "OC"},
	CustomerDelivery: {SideCustomer, StageDelivery, "customer_deliveries", "customer_delivery_lines", "customer-delivery-min", "AC"},
	CustomerInvoice:  {SideCustomer, StageInvoice, "customer_invoices", "customer_invoice_lines", "customer-invoice-min", "FC"},
	SupplierQuote:    {SideSupplier, StageQuote, "supplier_quotes", "supplier_quote_lines", "supplier-quote-min", "PP"},
	SupplierOrder:    {SideSupplier, StageOrder, "supplier_orders", "supplier_order_lines", "supplier-order-min", "OP"},
	SupplierDelivery: {SideSupplier, StageDelivery, "supplier_deliveries", "supplier_delivery_lines", "supplier-delivery-min", "AP"},
	SupplierInvoice:  {SideSupplier, StageInvoice, "supplier_invoices", "supplier_invoice_lines", "supplier-invoice-min", "FP"},
}

// AllKinds returns every document kind in a stable order.
func AllKinds() []Kind {
	return []Kind{
		CustomerQuote, CustomerOrder, CustomerDelivery, CustomerInvoice,
		SupplierQuote, SupplierOrder, SupplierDelivery, SupplierInvoice,
	}
}

// ParseKind resolves a workflow model name into a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if _, ok := kinds[k]; !ok {
		return "", apperror.NewValidation("unknown document kind").WithDetail("kind", s)
	}
	return k, nil
}

// IsValid reports whether k is one of the eight variants.
func (k Kind) IsValid() bool {
	_, ok := kinds[k]
	return ok
}

// Side returns the subject flavor of this kind.
func (k Kind) Side() Side { return kinds[k].side }

// Stage returns the workflow stage of this kind.
func (k Kind) Stage() Stage { return kinds[k].stage }

// IsInvoice reports whether this kind is an invoice.
// Invoices are terminal: they may never be stitched.
func (k Kind) IsInvoice() bool { return kinds[k].stage == StageInvoice }

// Table returns the document table name for this kind.
func (k Kind) Table() string { return kinds[k].table }

// LinesTable returns the line table name for this kind.
func (k Kind) LinesTable() string { return kinds[k].linesTable }

// LabelKey returns the i18n key of the short document-type label used in
// annotation info lines.
func (k Kind) LabelKey() string { return kinds[k].labelKey }

// CodePrefix returns the numerator prefix for document codes of this kind.
func (k Kind) CodePrefix() string { return kinds[k].codePrefix }

func (k Kind) String() string { return string(k) }
