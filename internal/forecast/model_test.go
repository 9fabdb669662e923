package forecast

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"
)

func linearData(n int) ([][]float64, []float64) {
	rng := rand.New(rand.NewPCG(7, 7))
	X := make([][]float64, n)
	y := make([]float64, n)
	for i := range X {
		a, b := rng.Float64(), rng.Float64()
		X[i] = []float64{a, b}
		y[i] = 0.5*a + 0.3*b
	}
	return X, y
}

func TestModelLearnsLinearTarget(t *testing.T) {
	X, y := linearData(200)
	cfg := testModelConfig()
	cfg.MaxIter = 300
	cfg.Patience = 0

	model := NewModel(cfg)
	report, err := model.Fit(context.Background(), X, y)
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	if report.Epochs != 300 || report.StoppedEarly {
		t.Fatalf("patience 0 should run every epoch: %+v", report)
	}

	pred, err := model.Predict(X)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	m, err := Evaluate(y, pred)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if m.MSE > 0.005 {
		t.Fatalf("model failed to fit a linear target, mse=%v", m.MSE)
	}
}

func TestModelDeterministicForSeed(t *testing.T) {
	X, y := linearData(50)
	cfg := testModelConfig()
	cfg.MaxIter = 20

	run := func() []float64 {
		model := NewModel(cfg)
		if _, err := model.Fit(context.Background(), X, y); err != nil {
			t.Fatalf("fit: %v", err)
		}
		pred, err := model.Predict(X[:5])
		if err != nil {
			t.Fatalf("predict: %v", err)
		}
		return pred
	}

	first, second := run(), run()
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("same seed produced different predictions: %v vs %v", first, second)
		}
	}
}

func TestModelEarlyStoppingAndIterationCap(t *testing.T) {
	X, _ := linearData(100)
	y := make([]float64, len(X))

	cfg := testModelConfig()
	cfg.MaxIter = 2000
	cfg.Patience = 2
	cfg.Tolerance = 0.05
	report, err := NewModel(cfg).Fit(context.Background(), X, y)
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	if !report.StoppedEarly || report.Epochs >= cfg.MaxIter {
		t.Fatalf("expected early stop well before the cap: %+v", report)
	}
	if report.ValidationRows != 10 || report.TrainRows != 90 {
		t.Fatalf("expected a 90/10 chronological split, got %+v", report)
	}

	cfg.MaxIter = 3
	cfg.Patience = 0
	report, err = NewModel(cfg).Fit(context.Background(), X, y)
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	if report.Epochs != 3 {
		t.Fatalf("max_iter should bound training, ran %d epochs", report.Epochs)
	}
}

func TestModelSmallTrainingSetSkipsValidation(t *testing.T) {
	X, y := linearData(5)
	report, err := NewModel(testModelConfig()).Fit(context.Background(), X, y)
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	if report.ValidationRows != 0 || report.TrainRows != 5 {
		t.Fatalf("small sets should train on every row: %+v", report)
	}
}

func TestModelCancellation(t *testing.T) {
	X, y := linearData(50)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	model := NewModel(testModelConfig())
	if _, err := model.Fit(ctx, X, y); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if _, err := model.Predict(X); !errors.Is(err, ErrModelNotTrained) {
		t.Fatalf("cancelled model should not predict, got %v", err)
	}
}

func TestModelInputValidation(t *testing.T) {
	model := NewModel(testModelConfig())
	if _, err := model.Predict([][]float64{{1, 2}}); !errors.Is(err, ErrModelNotTrained) {
		t.Fatalf("expected ErrModelNotTrained, got %v", err)
	}
	if _, err := model.Fit(context.Background(), [][]float64{{1}}, []float64{1, 2}); !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("expected ErrShapeMismatch, got %v", err)
	}
	if _, err := model.Fit(context.Background(), nil, nil); !errors.Is(err, ErrInsufficientHistory) {
		t.Fatalf("expected ErrInsufficientHistory, got %v", err)
	}

	X, y := linearData(12)
	if _, err := model.Fit(context.Background(), X, y); err != nil {
		t.Fatalf("fit: %v", err)
	}
	if _, err := model.Predict([][]float64{{1, 2, 3}}); !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("expected ErrShapeMismatch for wrong width, got %v", err)
	}

	bad := testModelConfig()
	bad.HiddenLayers = nil
	if _, err := NewModel(bad).Fit(context.Background(), X, y); err == nil {
		t.Fatal("config without hidden layers should be rejected")
	}
}
