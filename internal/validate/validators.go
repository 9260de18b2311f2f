// Package validate normalizes and validates human corrections to extraction
// result fields before they are applied. Each correctable field path has a
// registered rule; unknown paths are rejected. All failures across a
// correction set are collected and reported together.
package validate

import (
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/scanvoice/review-engine/internal/model"
)

const (
	maxInvoiceNumberLen = 50
	maxCompanyNameLen   = 200
	maxAddressLen       = 500
)

// dateLayouts are the accepted input formats. Values are passed through
// verbatim, not renormalized; downstream consumers reparse.
var dateLayouts = []string{"2006-01-02", "02.01.2006", "02/01/2006"}

// Func validates one raw correction value and returns its normalized form.
type Func func(raw any) (any, error)

// registry maps correctable field paths to their rules. Line-item paths
// ("pozycje.<idx>.<field>") are handled separately by lineItem.
var registry = map[string]Func{
	"numer_faktury":    InvoiceNumber,
	"data_wystawienia": Date,
	"data_sprzedazy":   Date,
	"sprzedawca.nazwa": CompanyName,
	"nabywca.nazwa":    CompanyName,
	"sprzedawca.nip":   func(raw any) (any, error) { return NIP(raw) },
	"nabywca.nip":      func(raw any) (any, error) { return NIP(raw) },
	"sprzedawca.adres": Address,
	"nabywca.adres":    Address,
	"suma_netto":       func(raw any) (any, error) { return Amount(raw) },
	"suma_brutto":      func(raw any) (any, error) { return Amount(raw) },
	"vat_amount":       func(raw any) (any, error) { return Amount(raw) },
}

// AllowedPaths returns the non-line-item paths accepted for correction,
// for the detail endpoint's validation field list.
func AllowedPaths() []string {
	paths := make([]string, 0, len(registry))
	for p := range registry {
		paths = append(paths, p)
	}
	return paths
}

// CorrectionSet validates every correction in the set independently and
// returns the normalized values. On any failure the full FieldErrors batch
// is returned and no values are usable. The cross-field rule that invoice
// creation requires at least one correction fails fast first.
func CorrectionSet(set *model.CorrectionSet) (map[string]any, error) {
	if set.CreateInvoice && len(set.Corrections) == 0 {
		return nil, ErrEmptyCorrections
	}

	normalized := make(map[string]any, len(set.Corrections))
	errs := FieldErrors{}
	for _, path := range set.Paths() {
		value, err := Field(path, set.Corrections[path])
		if err != nil {
			errs[path] = eris.Cause(err).Error()
			continue
		}
		normalized[path] = value
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return normalized, nil
}

// Field validates a single path/value pair against the registry.
func Field(path string, raw any) (any, error) {
	if fn, ok := registry[path]; ok {
		return fn(raw)
	}
	if strings.HasPrefix(path, "pozycje.") {
		return lineItem(path, raw)
	}
	return nil, eris.Errorf("field %q is not allowed for correction", path)
}

// InvoiceNumber trims and bounds the invoice number.
func InvoiceNumber(raw any) (any, error) {
	return trimmedString(raw, maxInvoiceNumberLen, "invoice number")
}

// CompanyName trims and bounds a party name.
func CompanyName(raw any) (any, error) {
	return trimmedString(raw, maxCompanyNameLen, "company name")
}

// Address trims and bounds a party address.
func Address(raw any) (any, error) {
	return trimmedString(raw, maxAddressLen, "address")
}

// Date accepts YYYY-MM-DD, DD.MM.YYYY and DD/MM/YYYY, passing the first
// format that parses through unchanged.
func Date(raw any) (any, error) {
	s, ok := raw.(string)
	if !ok {
		return nil, eris.Errorf("date must be a string, got %T", raw)
	}
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return s, nil
		}
	}
	return nil, eris.Errorf("date %q must match YYYY-MM-DD, DD.MM.YYYY or DD/MM/YYYY", s)
}

// lineItemFields are the correctable sub-fields of an invoice line item.
var lineItemFields = map[string]Func{
	"nazwa": func(raw any) (any, error) {
		return trimmedString(raw, maxCompanyNameLen, "item name")
	},
	"jednostka": func(raw any) (any, error) {
		return trimmedString(raw, maxInvoiceNumberLen, "item unit")
	},
	"ilosc": func(raw any) (any, error) {
		v, err := parseNumber(raw, false)
		if err != nil {
			return nil, err
		}
		if v <= 0 {
			return nil, eris.New("quantity must be greater than zero")
		}
		return v, nil
	},
	"stawka_vat": func(raw any) (any, error) {
		v, err := parseNumber(raw, false)
		if err != nil {
			return nil, err
		}
		if v < 0 || v > 100 {
			return nil, eris.New("vat rate must be between 0 and 100")
		}
		return v, nil
	},
	"cena_netto":  func(raw any) (any, error) { return Amount(raw) },
	"cena_brutto": func(raw any) (any, error) { return Amount(raw) },
}

// lineItem validates a "pozycje.<idx>.<field>" path: the index must be a
// non-negative integer and the sub-field must be correctable.
func lineItem(path string, raw any) (any, error) {
	parts := strings.Split(path, ".")
	if len(parts) != 3 {
		return nil, eris.Errorf("field %q is not allowed for correction", path)
	}
	if idx, err := strconv.Atoi(parts[1]); err != nil || idx < 0 {
		return nil, eris.Errorf("line item index %q must be a non-negative integer", parts[1])
	}
	fn, ok := lineItemFields[parts[2]]
	if !ok {
		return nil, eris.Errorf("line item field %q is not allowed for correction", parts[2])
	}
	return fn(raw)
}

func trimmedString(raw any, maxLen int, what string) (any, error) {
	s, ok := raw.(string)
	if !ok {
		return nil, eris.Errorf("%s must be a string, got %T", what, raw)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, eris.Errorf("%s cannot be empty", what)
	}
	if len(s) > maxLen {
		return nil, eris.Errorf("%s exceeds %d characters", what, maxLen)
	}
	return s, nil
}
