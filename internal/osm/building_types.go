package osm

import (
	"sort"
	"strings"
)

// BuildingCategories groups OSM building=* values into the categories the
// territory tools filter on.
var BuildingCategories = map[string][]string{
	"residential": {"house", "detached", "semidetached_house", "terrace", "residential", "apartments", "bungalow", "cabin", "farm", "dormitory"},
	"commercial":  {"commercial", "retail", "office", "supermarket", "kiosk", "hotel"},
	"industrial":  {"industrial", "warehouse", "factory", "manufacture", "storage_tank"},
	"civic":       {"civic", "public", "school", "hospital", "government", "church", "university", "kindergarten"},
	"outbuilding": {"garage", "garages", "shed", "carport", "roof", "hut"},
}

// ExpandBuildingTypes replaces category names with their building values and
// returns a sorted, deduplicated list. Unknown names pass through as raw
// building values.
func ExpandBuildingTypes(types []string) []string {
	seen := make(map[string]struct{})
	for _, t := range types {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if values, ok := BuildingCategories[t]; ok {
			for _, v := range values {
				seen[v] = struct{}{}
			}
			continue
		}
		seen[t] = struct{}{}
	}

	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// CategoryOf returns the category of a building value, or "other".
func CategoryOf(value string) string {
	value = strings.ToLower(value)
	for category, values := range BuildingCategories {
		for _, v := range values {
			if v == value {
				return category
			}
		}
	}
	return "other"
}
