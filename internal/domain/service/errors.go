package service

import "errors"

var (
	// ErrInvalidHorizon rejects non-positive forecast horizons outright;
	// they are never clamped.
	ErrInvalidHorizon = errors.New("prediction: horizon must be positive")

	// ErrInsufficientData means the price history is too short to train a
	// model for the ticker.
	ErrInsufficientData = errors.New("prediction: insufficient history to train")

	// ErrModelUnavailable means no trained model exists for the ticker, in
	// memory or in the blob store.
	ErrModelUnavailable = errors.New("prediction: no trained model available")
)
