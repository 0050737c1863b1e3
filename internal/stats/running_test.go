package stats

import (
	"encoding/json"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"
)

func TestRunningStatMatchesTwoPass(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	for _, n := range []int{2, 3, 10, 1000, 50000} {
		values := make([]float64, n)
		var s RunningStat
		for i := range values {
			values[i] = 1e6 + rnd.NormFloat64()*25
			s.Update(values[i])
		}
		mean, variance := stat.MeanVariance(values, nil)
		require.InEpsilon(t, mean, s.Mean, 1e-9, "n=%d", n)
		require.InEpsilon(t, variance, s.Variance(), 1e-9, "n=%d", n)
		require.Equal(t, uint(n), s.Count)
		require.GreaterOrEqual(t, s.M2, 0.0)
	}
}

func TestRunningStatEmptyAndSingle(t *testing.T) {
	var s RunningStat
	require.Zero(t, s.Mean)
	require.Zero(t, s.Variance())
	require.Nil(t, s.MeanPtr())

	s.Update(42)
	require.Equal(t, 42.0, s.Mean)
	require.Zero(t, s.Variance())
	require.Zero(t, s.StdDev())
	require.NotNil(t, s.MeanPtr())
}

func TestRangeStatBoundsContainEveryValue(t *testing.T) {
	rnd := rand.New(rand.NewSource(11))
	r := NewRangeStat()
	require.True(t, math.IsInf(r.Min, 1))
	require.True(t, math.IsInf(r.Max, -1))

	seen := make([]float64, 0, 500)
	for i := 0; i < 500; i++ {
		v := rnd.Float64()*180 - 90
		r.Observe(v)
		seen = append(seen, v)
		for _, x := range seen {
			require.LessOrEqual(t, r.Min, x)
			require.GreaterOrEqual(t, r.Max, x)
		}
	}
}

func TestRangeStatJSONRoundTripKeepsInfiniteBounds(t *testing.T) {
	empty := NewRangeStat()
	data, err := json.Marshal(empty)
	require.NoError(t, err)
	require.JSONEq(t, `{"mean":0,"m2":0,"count":0,"min":null,"max":null}`, string(data))

	var back RangeStat
	require.NoError(t, json.Unmarshal(data, &back))
	require.True(t, math.IsInf(back.Min, 1))
	require.True(t, math.IsInf(back.Max, -1))

	back.Observe(3)
	back.Observe(-1)
	data, err = json.Marshal(back)
	require.NoError(t, err)
	var again RangeStat
	require.NoError(t, json.Unmarshal(data, &again))
	require.Equal(t, back, again)
}

func TestRoundAndClamp(t *testing.T) {
	require.Equal(t, 66.67, Round(200.0/3.0, 2))
	require.Equal(t, 12.3, Round(12.34, 1))
	require.Equal(t, 100.0, Clamp(150, 0, 100))
	require.Equal(t, 0.0, Clamp(-3, 0, 100))
	require.False(t, Finite(math.NaN()))
	require.False(t, Finite(math.Inf(-1)))
	require.True(t, Finite(1))
}

func TestSparkline(t *testing.T) {
	require.Equal(t, "", Sparkline(nil))
	require.Equal(t, "+++", Sparkline([]float64{2, 2, 2}))
	line := Sparkline([]float64{0, 5, 10})
	require.Len(t, line, 3)
	require.Equal(t, byte(' '), line[0])
	require.Equal(t, byte('@'), line[2])
}
