package forecast

import "errors"

var (
	// ErrInsufficientHistory indicates too few rows to derive features or honour a holdout size.
	ErrInsufficientHistory = errors.New("forecast: insufficient history")
	// ErrEmptyForecastWindow indicates a calendar holdout matched no feature rows.
	ErrEmptyForecastWindow = errors.New("forecast: empty forecast window")
	// ErrInvalidHoldout indicates a non-positive rolling size or a reversed calendar range.
	ErrInvalidHoldout = errors.New("forecast: invalid holdout")
	// ErrShapeMismatch indicates inputs of incompatible lengths or widths.
	ErrShapeMismatch = errors.New("forecast: shape mismatch")
	// ErrModelNotTrained is returned by Predict before a successful Fit.
	ErrModelNotTrained = errors.New("forecast: model not trained")
)
