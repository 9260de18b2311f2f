package validate

import (
	"strings"

	"github.com/rotisserie/eris"
)

// nipWeights are the checksum weights for the first nine digits of a NIP.
var nipWeights = [9]int{6, 5, 7, 2, 3, 4, 5, 6, 7}

// NIP validates a 10-digit national tax identifier. Spaces and hyphens are
// stripped first; the weighted checksum of the first nine digits mod 11 must
// equal the tenth digit, and a remainder of 10 is always invalid.
func NIP(raw any) (string, error) {
	s, ok := raw.(string)
	if !ok {
		return "", eris.Errorf("tax id must be a string, got %T", raw)
	}
	s = strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(s))

	if len(s) != 10 {
		return "", eris.New("tax id must be exactly 10 digits")
	}
	var digits [10]int
	for i := 0; i < 10; i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return "", eris.New("tax id must be exactly 10 digits")
		}
		digits[i] = int(c - '0')
	}

	sum := 0
	for i, w := range nipWeights {
		sum += digits[i] * w
	}
	check := sum % 11
	if check == 10 || check != digits[9] {
		return "", eris.New("tax id checksum is invalid")
	}
	return s, nil
}
