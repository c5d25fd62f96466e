package phone

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/biter777/countries"
)

// nationalLen is the number of digits after the calling code.
const nationalLen = 10

var nonDialRe = regexp.MustCompile(`[^\d+]`)

// Normalizer validates and normalizes phone numbers against the calling
// code of one configured country. Accepted input forms, for calling code
// +7: "+7XXXXXXXXXX", "7XXXXXXXXXX" and the trunk form "8XXXXXXXXXX";
// everything normalizes to "+7XXXXXXXXXX".
type Normalizer struct {
	callCode string // digits only, e.g. "7"
}

// New builds a Normalizer for the named country ("Russia", "RU", ...).
func New(country string) (*Normalizer, error) {
	c := countries.ByName(country)
	if c == countries.Unknown {
		return nil, fmt.Errorf("unknown country: %s", country)
	}
	codes := c.CallCodes()
	if len(codes) == 0 {
		return nil, fmt.Errorf("no calling code for country: %s", country)
	}
	return &Normalizer{callCode: fmt.Sprintf("%d", int(codes[0]))}, nil
}

// Valid reports whether raw is an acceptable phone number.
func (n *Normalizer) Valid(raw string) bool {
	clean := nonDialRe.ReplaceAllString(raw, "")
	patterns := []string{
		fmt.Sprintf(`^\+%s\d{%d}$`, n.callCode, nationalLen),
		fmt.Sprintf(`^%s\d{%d}$`, n.callCode, nationalLen),
		fmt.Sprintf(`^8\d{%d}$`, nationalLen),
	}
	for _, p := range patterns {
		if regexp.MustCompile(p).MatchString(clean) {
			return true
		}
	}
	return false
}

// Normalize rewrites raw into the canonical "+<code><national>" form.
// Input is assumed to have passed Valid; unknown shapes get the calling
// code prepended as-is.
func (n *Normalizer) Normalize(raw string) string {
	clean := nonDialRe.ReplaceAllString(raw, "")
	switch {
	case strings.HasPrefix(clean, "+"+n.callCode):
		return clean
	case strings.HasPrefix(clean, "8") && len(clean) == nationalLen+1:
		return "+" + n.callCode + clean[1:]
	case strings.HasPrefix(clean, n.callCode):
		return "+" + clean
	default:
		return "+" + n.callCode + clean
	}
}
