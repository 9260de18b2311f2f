package validate

import (
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// MaxAmount is the largest monetary value accepted for any amount field.
const MaxAmount = 999_999_999.99

// currencyTokens are stripped from string amounts before parsing. OCR output
// frequently carries the currency glued to the number ("1 000,50 zł").
var currencyTokens = []string{"zł", "zl", "PLN", "pln", "EUR", "USD", "€", "$", "£"}

// Amount validates and normalizes a monetary value. Strings are cleaned of
// spaces and currency symbols and the decimal comma is converted; numbers
// pass through. Negative values, values above MaxAmount and values with more
// than two fractional digits are rejected.
func Amount(raw any) (float64, error) {
	v, err := parseNumber(raw, true)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, eris.New("amount cannot be negative")
	}
	if v > MaxAmount {
		return 0, eris.Errorf("amount exceeds maximum %.2f", MaxAmount)
	}
	if frac := math.Abs(v*100 - math.Round(v*100)); frac > 1e-6 {
		return 0, eris.New("amount has more than 2 decimal places")
	}
	return v, nil
}

// parseNumber converts a raw correction value to float64. With currency=true
// it additionally strips whitespace and currency tokens, for monetary fields.
func parseNumber(raw any, currency bool) (float64, error) {
	switch t := raw.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case string:
		s := strings.TrimSpace(t)
		if currency {
			for _, tok := range currencyTokens {
				s = strings.ReplaceAll(s, tok, "")
			}
		}
		s = strings.ReplaceAll(s, " ", "")
		s = strings.ReplaceAll(s, " ", "")
		s = strings.ReplaceAll(s, ",", ".")
		if s == "" {
			return 0, eris.New("value is empty")
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, eris.Errorf("value %q is not numeric", t)
		}
		return v, nil
	default:
		return 0, eris.Errorf("value of type %T is not numeric", raw)
	}
}
