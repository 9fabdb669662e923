package forecast

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
)

const (
	adamBeta1   = 0.9
	adamBeta2   = 0.999
	adamEpsilon = 1e-8

	// below this many training rows the training loss drives early stopping
	minRowsForValidation = 10
)

// ModelConfig parameterises the feed-forward regressor.
type ModelConfig struct {
	HiddenLayers       []int   `mapstructure:"hidden_layers"`
	LearningRate       float64 `mapstructure:"learning_rate"`
	Alpha              float64 `mapstructure:"alpha"`
	BatchSize          int     `mapstructure:"batch_size"`
	MaxIter            int     `mapstructure:"max_iter"`
	Patience           int     `mapstructure:"patience"`
	Tolerance          float64 `mapstructure:"tolerance"`
	ValidationFraction float64 `mapstructure:"validation_fraction"`
	Seed               uint64  `mapstructure:"seed"`
}

// DefaultModelConfig mirrors the production forecaster settings.
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		HiddenLayers:       []int{128, 64, 32},
		LearningRate:       0.001,
		Alpha:              0.0001,
		BatchSize:          200,
		MaxIter:            2000,
		Patience:           10,
		Tolerance:          1e-4,
		ValidationFraction: 0.1,
		Seed:               42,
	}
}

// Validate checks the configuration is usable.
func (c ModelConfig) Validate() error {
	if len(c.HiddenLayers) == 0 {
		return errors.New("model needs at least one hidden layer")
	}
	for _, width := range c.HiddenLayers {
		if width <= 0 {
			return fmt.Errorf("hidden layer width must be positive, got %d", width)
		}
	}
	if c.LearningRate <= 0 {
		return errors.New("learning rate must be positive")
	}
	if c.MaxIter <= 0 {
		return errors.New("max_iter must be positive")
	}
	if c.ValidationFraction < 0 || c.ValidationFraction >= 1 {
		return errors.New("validation_fraction must be in [0, 1)")
	}
	return nil
}

// TrainingReport summarises one Fit call.
type TrainingReport struct {
	Epochs         int
	StoppedEarly   bool
	BestLoss       float64
	TrainRows      int
	ValidationRows int
}

// Model is a multi-layer perceptron regressor with ReLU hidden units and a
// linear output, trained with Adam on squared error.
type Model struct {
	cfg     ModelConfig
	rng     *rand.Rand
	layers  []*dense
	step    int
	trained bool
}

// NewModel returns an untrained model. Weights are drawn when Fit sees the input width.
func NewModel(cfg ModelConfig) *Model {
	return &Model{
		cfg: cfg,
		rng: rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
	}
}

// Fit trains on X, y. The chronologically last ValidationFraction of rows is
// held out to decide when to stop; the weights with the best monitored loss
// are kept. Fit returns ctx.Err() if the context ends between epochs.
func (m *Model) Fit(ctx context.Context, X [][]float64, y []float64) (TrainingReport, error) {
	if len(X) != len(y) {
		return TrainingReport{}, fmt.Errorf("%w: %d feature rows vs %d targets", ErrShapeMismatch, len(X), len(y))
	}
	if len(X) == 0 {
		return TrainingReport{}, fmt.Errorf("%w: no training rows", ErrInsufficientHistory)
	}
	if err := m.cfg.Validate(); err != nil {
		return TrainingReport{}, err
	}

	width := len(X[0])
	for _, row := range X {
		if len(row) != width {
			return TrainingReport{}, fmt.Errorf("%w: ragged feature matrix", ErrShapeMismatch)
		}
	}
	m.initLayers(width)

	trainX, trainY, valX, valY := holdoutTail(X, y, m.cfg.ValidationFraction)
	report := TrainingReport{TrainRows: len(trainX), ValidationRows: len(valX)}

	batchSize := m.cfg.BatchSize
	if batchSize <= 0 || batchSize > len(trainX) {
		batchSize = len(trainX)
	}

	order := make([]int, len(trainX))
	for i := range order {
		order[i] = i
	}

	best := math.Inf(1)
	snapshot := m.snapshot()
	sinceBest := 0

	for epoch := 0; epoch < m.cfg.MaxIter; epoch++ {
		select {
		case <-ctx.Done():
			return report, ctx.Err()
		default:
		}

		m.rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		for start := 0; start < len(order); start += batchSize {
			end := min(start+batchSize, len(order))
			m.trainBatch(trainX, trainY, order[start:end])
		}
		report.Epochs = epoch + 1

		var loss float64
		if len(valX) > 0 {
			loss = m.loss(valX, valY)
		} else {
			loss = m.loss(trainX, trainY)
		}
		if math.IsNaN(loss) || math.IsInf(loss, 0) {
			return report, fmt.Errorf("training diverged at epoch %d", epoch+1)
		}

		if loss < best-m.cfg.Tolerance {
			best = loss
			snapshot = m.snapshot()
			sinceBest = 0
			continue
		}
		if loss < best {
			best = loss
			snapshot = m.snapshot()
		}
		sinceBest++
		if m.cfg.Patience > 0 && sinceBest >= m.cfg.Patience {
			report.StoppedEarly = true
			break
		}
	}

	m.restore(snapshot)
	m.trained = true
	report.BestLoss = best
	return report, nil
}

// Predict returns one scaled prediction per row of X, in row order.
func (m *Model) Predict(X [][]float64) ([]float64, error) {
	if !m.trained {
		return nil, ErrModelNotTrained
	}
	in := m.layers[0].in
	out := make([]float64, len(X))
	for i, row := range X {
		if len(row) != in {
			return nil, fmt.Errorf("%w: expected %d features, got %d", ErrShapeMismatch, in, len(row))
		}
		acts := m.forward(row)
		out[i] = acts[len(acts)-1][0]
	}
	return out, nil
}

func (m *Model) initLayers(inputs int) {
	widths := append([]int{inputs}, m.cfg.HiddenLayers...)
	widths = append(widths, 1)

	m.layers = make([]*dense, 0, len(widths)-1)
	for i := 0; i < len(widths)-1; i++ {
		m.layers = append(m.layers, newDense(widths[i], widths[i+1], m.rng))
	}
	m.step = 0
	m.trained = false
}

// forward returns the activations of every layer, input included.
func (m *Model) forward(x []float64) [][]float64 {
	acts := make([][]float64, len(m.layers)+1)
	acts[0] = x
	last := len(m.layers) - 1
	for l, layer := range m.layers {
		acts[l+1] = layer.forward(acts[l], l != last)
	}
	return acts
}

func (m *Model) trainBatch(X [][]float64, y []float64, idx []int) {
	for _, layer := range m.layers {
		layer.zeroGrad()
	}

	for _, i := range idx {
		acts := m.forward(X[i])
		delta := []float64{acts[len(acts)-1][0] - y[i]}
		for l := len(m.layers) - 1; l >= 0; l-- {
			delta = m.layers[l].backward(acts[l], delta, l > 0)
		}
	}

	m.step++
	n := float64(len(idx))
	for _, layer := range m.layers {
		layer.adam(m.step, m.cfg.LearningRate, m.cfg.Alpha, n)
	}
}

func (m *Model) loss(X [][]float64, y []float64) float64 {
	sum := 0.0
	for i, row := range X {
		acts := m.forward(row)
		d := acts[len(acts)-1][0] - y[i]
		sum += d * d
	}
	return sum / float64(len(X))
}

type layerState struct {
	w []float64
	b []float64
}

func (m *Model) snapshot() []layerState {
	states := make([]layerState, len(m.layers))
	for i, layer := range m.layers {
		states[i] = layerState{
			w: append([]float64(nil), layer.w...),
			b: append([]float64(nil), layer.b...),
		}
	}
	return states
}

func (m *Model) restore(states []layerState) {
	for i, layer := range m.layers {
		copy(layer.w, states[i].w)
		copy(layer.b, states[i].b)
	}
}

// holdoutTail splits off the last fraction of rows for validation.
func holdoutTail(X [][]float64, y []float64, fraction float64) ([][]float64, []float64, [][]float64, []float64) {
	if fraction <= 0 || len(X) < minRowsForValidation {
		return X, y, nil, nil
	}
	nVal := max(1, int(float64(len(X))*fraction))
	cut := len(X) - nVal
	return X[:cut], y[:cut], X[cut:], y[cut:]
}

// dense is a fully connected layer. Weights are stored row-major as w[o*in+i].
type dense struct {
	in, out int
	w, b    []float64
	gw, gb  []float64
	mw, vw  []float64
	mb, vb  []float64
}

func newDense(in, out int, rng *rand.Rand) *dense {
	d := &dense{
		in:  in,
		out: out,
		w:   make([]float64, in*out),
		b:   make([]float64, out),
		gw:  make([]float64, in*out),
		gb:  make([]float64, out),
		mw:  make([]float64, in*out),
		vw:  make([]float64, in*out),
		mb:  make([]float64, out),
		vb:  make([]float64, out),
	}

	// Glorot uniform
	bound := math.Sqrt(6.0 / float64(in+out))
	for i := range d.w {
		d.w[i] = (rng.Float64()*2 - 1) * bound
	}
	for i := range d.b {
		d.b[i] = (rng.Float64()*2 - 1) * bound
	}
	return d
}

func (d *dense) forward(x []float64, relu bool) []float64 {
	out := make([]float64, d.out)
	for o := 0; o < d.out; o++ {
		sum := d.b[o]
		row := d.w[o*d.in : (o+1)*d.in]
		for i, v := range x {
			sum += row[i] * v
		}
		if relu && sum < 0 {
			sum = 0
		}
		out[o] = sum
	}
	return out
}

// backward accumulates gradients for one sample and returns the delta for
// the previous layer. input holds that layer's post-activation output.
func (d *dense) backward(input, delta []float64, propagate bool) []float64 {
	for o, g := range delta {
		d.gb[o] += g
		row := d.gw[o*d.in : (o+1)*d.in]
		for i, v := range input {
			row[i] += g * v
		}
	}
	if !propagate {
		return nil
	}

	prev := make([]float64, d.in)
	for i := range prev {
		if input[i] <= 0 {
			continue
		}
		sum := 0.0
		for o, g := range delta {
			sum += d.w[o*d.in+i] * g
		}
		prev[i] = sum
	}
	return prev
}

func (d *dense) zeroGrad() {
	clear(d.gw)
	clear(d.gb)
}

func (d *dense) adam(step int, lr, alpha, n float64) {
	t := float64(step)
	rate := lr * math.Sqrt(1-math.Pow(adamBeta2, t)) / (1 - math.Pow(adamBeta1, t))

	for i, g := range d.gw {
		g = (g + alpha*d.w[i]) / n
		d.mw[i] = adamBeta1*d.mw[i] + (1-adamBeta1)*g
		d.vw[i] = adamBeta2*d.vw[i] + (1-adamBeta2)*g*g
		d.w[i] -= rate * d.mw[i] / (math.Sqrt(d.vw[i]) + adamEpsilon)
	}
	for i, g := range d.gb {
		g /= n
		d.mb[i] = adamBeta1*d.mb[i] + (1-adamBeta1)*g
		d.vb[i] = adamBeta2*d.vb[i] + (1-adamBeta2)*g*g
		d.b[i] -= rate * d.mb[i] / (math.Sqrt(d.vb[i]) + adamEpsilon)
	}
}
