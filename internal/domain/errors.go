package domain

import "errors"

var (
	// ErrEmptyDataset means the anchor dataset has no points. Fatal at startup.
	ErrEmptyDataset = errors.New("anchor dataset is empty")
	// ErrInvalidAnchor means an anchor point is malformed or outside [0,1]^5.
	ErrInvalidAnchor = errors.New("invalid anchor point")
	// ErrEmptySignal means extraction produced no usable delta.
	ErrEmptySignal = errors.New("no extractable emotional signal")
	// ErrClimateUnavailable means the slow baseline source returned nothing usable.
	ErrClimateUnavailable = errors.New("climate baseline unavailable")
	// ErrHistoryDisabled means no history store is configured.
	ErrHistoryDisabled = errors.New("history is disabled")
)
