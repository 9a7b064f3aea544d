package enrichment

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	leadingNumber = regexp.MustCompile(`^\s*(\d+)`)
	// a house number token such as "12", "12A" or "12-14" followed by the street
	numberPrefix = regexp.MustCompile(`^\s*\d+[\w/-]*\s+`)
)

// ParseHouseNumber returns the integer an address starts with, or 0.
func ParseHouseNumber(address string) int {
	m := leadingNumber.FindStringSubmatch(address)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}

// ParseStreetName returns the street part of the first address segment,
// without its house number. "123 King St W, Toronto" gives "King St W".
// Addresses whose first segment has no house number are not treated as
// street addresses and give "".
func ParseStreetName(address string) string {
	first := address
	if i := strings.IndexByte(address, ','); i >= 0 {
		first = address[:i]
	}
	loc := numberPrefix.FindStringIndex(first)
	if loc == nil {
		return ""
	}
	return strings.TrimSpace(first[loc[1]:])
}
