package osm

import (
	"fmt"
	"regexp"
	"strings"

	"knockwise/internal/model"
)

const DefaultTimeoutSec = 25

// BuildingQuery selects buildings inside a bounding box. Types holds raw
// building=* values or category names known to BuildingCategories.
type BuildingQuery struct {
	BBox       model.BoundingBox
	Types      []string
	TimeoutSec int
}

// StreetQuery selects named highways inside a bounding box. NameFilter is a
// case-insensitive substring.
type StreetQuery struct {
	BBox         model.BoundingBox
	NameFilter   string
	WithGeometry bool
	TimeoutSec   int
}

// bboxFilter renders the (south,west,north,east) Overpass filter.
func bboxFilter(bb model.BoundingBox) string {
	return fmt.Sprintf("%.7f,%.7f,%.7f,%.7f", bb.South, bb.West, bb.North, bb.East)
}

func header(timeoutSec int) string {
	if timeoutSec <= 0 {
		timeoutSec = DefaultTimeoutSec
	}
	return fmt.Sprintf("[out:json][timeout:%d];", timeoutSec)
}

// BuildBuildingQuery returns the Overpass QL for q. Both ways and relations
// are requested with "out center" so every element carries a single point.
func BuildBuildingQuery(q BuildingQuery) string {
	tag := `["building"]`
	if values := ExpandBuildingTypes(q.Types); len(values) > 0 {
		escaped := make([]string, 0, len(values))
		for _, v := range values {
			escaped = append(escaped, regexp.QuoteMeta(v))
		}
		tag = fmt.Sprintf(`["building"~"^(%s)$"]`, escapeQL(strings.Join(escaped, "|")))
	}
	bbox := bboxFilter(q.BBox)

	var b strings.Builder
	b.WriteString(header(q.TimeoutSec))
	b.WriteString("\n(\n")
	fmt.Fprintf(&b, "  way%s(%s);\n", tag, bbox)
	fmt.Fprintf(&b, "  relation%s(%s);\n", tag, bbox)
	b.WriteString(");\nout center;")
	return b.String()
}

// BuildStreetQuery returns the Overpass QL for q.
func BuildStreetQuery(q StreetQuery) string {
	name := `["name"]`
	if f := strings.TrimSpace(q.NameFilter); f != "" {
		name = fmt.Sprintf(`["name"~"%s",i]`, escapeQL(regexp.QuoteMeta(f)))
	}
	out := "out center;"
	if q.WithGeometry {
		out = "out geom;"
	}

	var b strings.Builder
	b.WriteString(header(q.TimeoutSec))
	b.WriteString("\n(\n")
	fmt.Fprintf(&b, "  way[\"highway\"]%s(%s);\n", name, bboxFilter(q.BBox))
	b.WriteString(");\n")
	b.WriteString(out)
	return b.String()
}

// escapeQL escapes a value for use inside a double-quoted Overpass string.
func escapeQL(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}
