package workout

import (
	"math"

	"github.com/davidbz/liftplan/internal/domain"
)

// Stats summarises set completion for a session.
type Stats struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
	Percent   int `json:"percent"`
}

// ComputeStats counts completed sets across all exercises of doc.
func ComputeStats(doc domain.SessionDocument) Stats {
	var stats Stats
	for _, ex := range doc.Exercises {
		for _, set := range ex.Sets {
			stats.Total++
			if set.Completed {
				stats.Completed++
			}
		}
	}

	if stats.Total > 0 {
		stats.Percent = int(math.Round(100 * float64(stats.Completed) / float64(stats.Total)))
	}

	return stats
}
