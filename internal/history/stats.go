package history

import (
	"context"
	"math"
	"time"
)

// Stats summarizes the stored history.
type Stats struct {
	Conversations int `json:"conversations"`
	Reflections   int `json:"reflections"`
	// AverageRating is the mean reflection rating to one decimal, 0 when
	// there are no reflections.
	AverageRating float64 `json:"averageRating"`
	// PerDay is conversations per day since the first conversation, counting
	// partial days as whole ones and at least one day, to one decimal.
	PerDay float64 `json:"perDay"`
}

// Stats computes history statistics as of now.
func (s *Store) Stats(ctx context.Context, now time.Time) (Stats, error) {
	convs, err := s.Conversations(ctx)
	if err != nil {
		return Stats{}, err
	}
	refls, err := s.Reflections(ctx)
	if err != nil {
		return Stats{}, err
	}

	st := Stats{Conversations: len(convs), Reflections: len(refls)}
	if len(refls) > 0 {
		sum := 0
		for _, r := range refls {
			sum += r.Rating
		}
		st.AverageRating = round1(float64(sum) / float64(len(refls)))
	}
	if len(convs) > 0 {
		first := convs[0].Timestamp
		for _, c := range convs[1:] {
			if c.Timestamp.Before(first) {
				first = c.Timestamp
			}
		}
		days := math.Max(1, math.Ceil(now.Sub(first).Hours()/24))
		st.PerDay = round1(float64(len(convs)) / days)
	}
	return st, nil
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
