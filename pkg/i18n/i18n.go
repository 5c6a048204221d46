// Package i18n provides the localized labels and notices shown to operators.
// Translations are a fixed in-process catalog; language negotiation uses
// golang.org/x/text matching against the supported set.
package i18n

import (
	"strings"

	"golang.org/x/text/language"
)

var supported = []language.Tag{
	language.Spanish, // default
	language.English,
}

var matcher = language.NewMatcher(supported)

var catalog = map[language.Tag]map[string]string{
	language.Spanish: {
		"customer-quote-min":       "Presupuesto",
		"customer-order-min":       "Pedido",
		"customer-delivery-min":    "Albarán",
		"customer-invoice-min":     "Factura",
		"supplier-quote-min":       "Presupuesto de compra",
		"supplier-order-min":       "Pedido de compra",
		"supplier-delivery-min":    "Albarán de compra",
		"supplier-invoice-min":     "Factura de compra",
		"incompatible-document":    "Documento incompatible: %code%",
		"record-save-error":        "Error al guardar los datos",
		"record-updated-correctly": "Datos actualizados correctamente",
		"nothing-to-do":            "Nada que hacer",
	},
	language.English: {
		"customer-quote-min":       "Quote",
		"customer-order-min":       "Order",
		"customer-delivery-min":    "Delivery note",
		"customer-invoice-min":     "Invoice",
		"supplier-quote-min":       "Purchase quote",
		"supplier-order-min":       "Purchase order",
		"supplier-delivery-min":    "Purchase delivery note",
		"supplier-invoice-min":     "Purchase invoice",
		"incompatible-document":    "Incompatible document: %code%",
		"record-save-error":        "Record save error",
		"record-updated-correctly": "Record updated correctly",
		"nothing-to-do":            "Nothing to do",
	},
}

// Translator resolves message keys for one negotiated language.
type Translator struct {
	tag language.Tag
}

// ForLanguage negotiates the best supported language for an Accept-Language
// header value. Empty or unknown input falls back to Spanish.
func ForLanguage(acceptLanguage string) *Translator {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return &Translator{tag: supported[0]}
	}
	_, idx, _ := matcher.Match(tags...)
	return &Translator{tag: supported[idx]}
}

// Default returns the Spanish translator.
func Default() *Translator {
	return &Translator{tag: supported[0]}
}

// Lang returns the negotiated language tag.
func (t *Translator) Lang() language.Tag { return t.tag }

// Trans resolves a message key, substituting %name% placeholders from the
// given key-value pairs. Unknown keys return the key itself, matching the
// behavior operators are used to when a translation is missing.
func (t *Translator) Trans(key string, pairs ...string) string {
	msgs, ok := catalog[t.tag]
	if !ok {
		msgs = catalog[supported[0]]
	}
	msg, ok := msgs[key]
	if !ok {
		msg = key
	}
	if len(pairs) >= 2 {
		msg = strings.NewReplacer(pairs...).Replace(msg)
	}
	return msg
}
