package types

import "time"

// DateRange bounds a listing query. Zero values mean unbounded on that
// side; End is exclusive.
type DateRange struct {
	Start time.Time
	End   time.Time
}

func (r DateRange) HasStart() bool {
	return !r.Start.IsZero()
}

func (r DateRange) HasEnd() bool {
	return !r.End.IsZero()
}
