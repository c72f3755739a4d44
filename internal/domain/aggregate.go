package domain

// Aggregate is a movie's running review total. The mean is derived from
// Sum and Count on read so repeated submissions never compound rounding error.
type Aggregate struct {
	Sum   float64
	Count int64
}

// Mean returns the arithmetic mean of the contributing scores, or 0 when
// nothing has been counted yet.
func (a Aggregate) Mean() float64 {
	if a.Count == 0 {
		return 0
	}
	return a.Sum / float64(a.Count)
}

// Add returns the aggregate after one more review with the given score.
func (a Aggregate) Add(score float64) Aggregate {
	if a.Count == 0 {
		return Aggregate{Sum: score, Count: 1}
	}
	return Aggregate{Sum: a.Sum + score, Count: a.Count + 1}
}

// NextMean applies the weighted running-average formula
// (n*s + score) / (n+1) to a mean s over n reviews.
func NextMean(n int64, s, score float64) float64 {
	if n == 0 {
		return score
	}
	return (float64(n)*s + score) / float64(n+1)
}
