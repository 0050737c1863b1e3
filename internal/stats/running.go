package stats

import (
	"encoding/json"
	"math"
)

// RunningStat accumulates mean and variance incrementally using Welford's
// algorithm. Replaying the same values in the same order yields the same state.
type RunningStat struct {
	Mean  float64 `json:"mean"`
	M2    float64 `json:"m2"`
	Count uint    `json:"count"`
}

// Update folds x into the running mean and sum of squared deviations.
func (s *RunningStat) Update(x float64) {
	s.Count++
	delta := x - s.Mean
	s.Mean += delta / float64(s.Count)
	s.M2 += delta * (x - s.Mean)
}

// Variance returns the sample variance, or 0 with fewer than two values.
func (s RunningStat) Variance() float64 {
	if s.Count < 2 {
		return 0
	}
	return s.M2 / float64(s.Count-1)
}

// StdDev returns the sample standard deviation.
func (s RunningStat) StdDev() float64 {
	return math.Sqrt(s.Variance())
}

// MeanPtr returns the mean, or nil when nothing was observed.
func (s RunningStat) MeanPtr() *float64 {
	if s.Count == 0 {
		return nil
	}
	m := s.Mean
	return &m
}

// RangeStat is a RunningStat that also tracks the observed min and max.
// Bounds start at +Inf/-Inf and only ever narrow toward the data.
type RangeStat struct {
	RunningStat
	Min float64
	Max float64
}

// NewRangeStat returns an empty RangeStat.
func NewRangeStat() RangeStat {
	return RangeStat{Min: math.Inf(1), Max: math.Inf(-1)}
}

// Observe widens the bounds and updates the running moments.
func (s *RangeStat) Observe(x float64) {
	if x < s.Min {
		s.Min = x
	}
	if x > s.Max {
		s.Max = x
	}
	s.Update(x)
}

type rangeStatJSON struct {
	Mean  float64  `json:"mean"`
	M2    float64  `json:"m2"`
	Count uint     `json:"count"`
	Min   *float64 `json:"min"`
	Max   *float64 `json:"max"`
}

// MarshalJSON encodes infinite bounds as null.
func (s RangeStat) MarshalJSON() ([]byte, error) {
	out := rangeStatJSON{Mean: s.Mean, M2: s.M2, Count: s.Count}
	if !math.IsInf(s.Min, 0) {
		v := s.Min
		out.Min = &v
	}
	if !math.IsInf(s.Max, 0) {
		v := s.Max
		out.Max = &v
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores null bounds to their infinite starting values.
func (s *RangeStat) UnmarshalJSON(data []byte) error {
	var in rangeStatJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*s = NewRangeStat()
	s.Mean, s.M2, s.Count = in.Mean, in.M2, in.Count
	if in.Min != nil {
		s.Min = *in.Min
	}
	if in.Max != nil {
		s.Max = *in.Max
	}
	return nil
}
