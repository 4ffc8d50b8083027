// Package locale holds the phone-number region data the sanitizer parses
// against. Adding a supported market means adding its region here.
package locale

type Country struct {
	Code          string   // ISO 3166-1 alpha-2 country code (e.g., "IL", "US")
	PhonePrefixes []string // Valid phone number prefixes (e.g., ["+972", "972"])
}

// regionOrder fixes the parse order for ambiguous national numbers: a number
// without a country prefix is tried against each region in this order.
var regionOrder = []string{"US", "IL"}

var Countries = map[string]Country{
	"IL": {
		Code:          "IL",
		PhonePrefixes: []string{"+972", "972"},
	},
	"US": {
		Code:          "US",
		PhonePrefixes: []string{"+1", "1"},
	},
}

// Regions returns the supported region codes in deterministic parse order.
func Regions() []string {
	out := make([]string, len(regionOrder))
	copy(out, regionOrder)
	return out
}
