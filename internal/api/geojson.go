package api

import (
	"github.com/mr1hm/go-health-surveillance/internal/models"
)

type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}
type Feature struct {
	Type       string         `json:"type"`
	Geometry   Geometry       `json:"geometry"`
	Properties map[string]any `json:"properties"`
}
type Geometry struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

func toGeoJSON(reports []models.Report) FeatureCollection {
	features := make([]Feature, 0, len(reports))

	for _, r := range reports {
		if r.Location.GPS == nil {
			continue
		}
		props := map[string]any{
			"id":          r.ID,
			"kind":        r.Kind,
			"district":    r.Location.District,
			"village":     r.Location.Village,
			"state":       r.Location.State,
			"reporter":    r.Reporter.Type,
			"sync_status": r.SyncStatus,
			"created_at":  r.CreatedAt,
		}
		switch {
		case r.Health != nil:
			props["symptoms"] = r.Health.Symptoms
			props["severity"] = r.Health.Severity
		case r.Water != nil:
			props["source_type"] = r.Water.SourceType
			props["contamination"] = r.Water.BacterialContamination
		case r.Environmental != nil:
			props["sanitation_issues"] = r.Environmental.SanitationIssues
		}

		features = append(features, Feature{
			Type: "Feature",
			Geometry: Geometry{
				Type:        "Point",
				Coordinates: []float64{r.Location.GPS.Longitude, r.Location.GPS.Latitude},
			},
			Properties: props,
		})
	}

	return FeatureCollection{
		Type:     "FeatureCollection",
		Features: features,
	}
}
