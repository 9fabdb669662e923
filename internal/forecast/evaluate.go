package forecast

import (
	"fmt"
	"math"
)

// Metrics are the error measures of a forecast against actual values.
type Metrics struct {
	MSE  float64
	RMSE float64
}

// Evaluate computes mean squared error and its square root.
func Evaluate(actual, predicted []float64) (Metrics, error) {
	if len(actual) != len(predicted) {
		return Metrics{}, fmt.Errorf("%w: %d actual values vs %d predictions", ErrShapeMismatch, len(actual), len(predicted))
	}
	if len(actual) == 0 {
		return Metrics{}, fmt.Errorf("%w: nothing to evaluate", ErrShapeMismatch)
	}

	sum := 0.0
	for i := range actual {
		d := actual[i] - predicted[i]
		sum += d * d
	}
	mse := sum / float64(len(actual))
	return Metrics{MSE: mse, RMSE: math.Sqrt(mse)}, nil
}
