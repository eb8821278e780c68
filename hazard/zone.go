package hazard

import (
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	h3 "github.com/uber/h3-go/v4"

	"github.com/embernav/embernav/geo"
)

// Factor is one named contribution to a zone's composite score.
type Factor struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
}

// Zone is a merged group of adjacent risk cells. Created by one
// scorer run, immutable afterwards, superseded by the next snapshot.
// Cells merge only when they classify at the same level, so one
// hazard front can surface as two abutting zones of adjacent levels
// rather than a single zone inflated to the higher one.
type Zone struct {
	ID        string
	Cells     []h3.Cell
	RiskScore float64
	Level     RiskLevel
	Factors   []Factor
	UpdatedAt time.Time
	// Geometry is the multipolygon of member cell boundaries.
	Geometry orb.MultiPolygon
}

// Feature renders the zone as a GeoJSON feature with the interface
// contract's properties.
func (z *Zone) Feature() *geojson.Feature {
	f := geojson.NewFeature(z.Geometry)
	f.ID = z.ID
	f.Properties = geojson.Properties{
		"riskScore": z.RiskScore,
		"riskLevel": string(z.Level),
		"factors":   z.Factors,
		"updatedAt": z.UpdatedAt.UTC().Format(time.RFC3339),
	}
	return f
}

func buildZoneGeometry(cells []h3.Cell) orb.MultiPolygon {
	mp := make(orb.MultiPolygon, 0, len(cells))
	for _, c := range cells {
		mp = append(mp, geo.CellPolygon(c))
	}
	return mp
}
