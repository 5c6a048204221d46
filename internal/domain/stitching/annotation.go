package stitching

import (
	"docstitch/internal/domain/trade"
	"docstitch/pkg/i18n"
)

// infoLineRule is the fixed visual separator closing an info line.
const infoLineRule = "\n--------------------"

const infoLineDateFormat = "02-01-2006"

// BlankLine synthesizes the empty separator inserted between two stitched
// source documents. It carries no business quantity and hides quantity and
// price in rendered output.
func BlankLine(doc *trade.Document) trade.DocumentLine {
	line := doc.NewLine()
	line.ShowQuantity = false
	line.ShowPrice = false
	return line
}

// InfoLine synthesizes the descriptive annotation naming the source document
// a block of carried lines came from: localized type label, code, the
// counterparty reference when present, and the issue date.
func InfoLine(doc *trade.Document, tr *i18n.Translator) trade.DocumentLine {
	description := tr.Trans(doc.Kind.LabelKey()) + " " + doc.Code
	if doc.ExternalRef != "" {
		description += " (" + doc.ExternalRef + ")"
	}
	description += ", " + doc.IssuedAt.Format(infoLineDateFormat) + infoLineRule

	line := doc.NewLine()
	line.Description = description
	line.ShowQuantity = false
	line.ShowPrice = false
	return line
}
