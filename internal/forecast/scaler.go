package forecast

import (
	"fmt"
)

// Scaler is a min-max transform fit on a training partition. Its bounds are
// frozen at fit time and reused for every later transform.
type Scaler struct {
	featureMin [NumFeatures]float64
	featureMax [NumFeatures]float64
	targetMin  float64
	targetMax  float64
}

// FitScaler computes per-column bounds from train.
func FitScaler(train []FeatureRow) (*Scaler, error) {
	if len(train) == 0 {
		return nil, fmt.Errorf("%w: cannot fit scaler on empty training set", ErrInsufficientHistory)
	}

	s := &Scaler{}
	first := train[0].Vector()
	copy(s.featureMin[:], first)
	copy(s.featureMax[:], first)
	s.targetMin, s.targetMax = train[0].Target, train[0].Target

	for _, row := range train[1:] {
		for j, v := range row.Vector() {
			if v < s.featureMin[j] {
				s.featureMin[j] = v
			}
			if v > s.featureMax[j] {
				s.featureMax[j] = v
			}
		}
		if row.Target < s.targetMin {
			s.targetMin = row.Target
		}
		if row.Target > s.targetMax {
			s.targetMax = row.Target
		}
	}
	return s, nil
}

// TransformFeatures scales feature vectors with the training bounds. Values
// outside the training range map outside [0, 1].
func (s *Scaler) TransformFeatures(rows []FeatureRow) [][]float64 {
	out := make([][]float64, len(rows))
	for i, row := range rows {
		vec := row.Vector()
		for j := range vec {
			vec[j] = scale(vec[j], s.featureMin[j], s.featureMax[j])
		}
		out[i] = vec
	}
	return out
}

// TransformTarget scales the target column of rows.
func (s *Scaler) TransformTarget(rows []FeatureRow) []float64 {
	out := make([]float64, len(rows))
	for i, row := range rows {
		out[i] = scale(row.Target, s.targetMin, s.targetMax)
	}
	return out
}

// InvertTarget maps scaled target values back to price scale.
func (s *Scaler) InvertTarget(scaled []float64) []float64 {
	out := make([]float64, len(scaled))
	for i, v := range scaled {
		out[i] = invert(v, s.targetMin, s.targetMax)
	}
	return out
}

// TargetBounds returns the training target range.
func (s *Scaler) TargetBounds() (float64, float64) {
	return s.targetMin, s.targetMax
}

// constant columns map to 0
func scale(v, lo, hi float64) float64 {
	span := hi - lo
	if span == 0 {
		return 0
	}
	return (v - lo) / span
}

func invert(v, lo, hi float64) float64 {
	span := hi - lo
	if span == 0 {
		return lo
	}
	return v*span + lo
}
