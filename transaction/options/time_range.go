package options

import "time"

// Creates a new TimeRange instance
func NewTimeRange() *TimeRange {
	return &TimeRange{}
}

var _ Range = (*TimeRange)(nil)

// TimeRange bounds a time column inclusively on either side.
// A nil bound leaves that side open.
type TimeRange struct {
	Low  *time.Time
	High *time.Time
}

func (r *TimeRange) From() (interface{}, bool) {
	if r.Low == nil {
		return nil, false
	}
	return r.Low, true
}

func (r *TimeRange) To() (interface{}, bool) {
	if r.High == nil {
		return nil, false
	}
	return r.High, true
}
