package runner

import "time"

const (
	// MaxReasonableConcurrency is the worker count above which a warning is logged
	MaxReasonableConcurrency = 32

	// DefaultProgressInterval is the default interval between progress updates
	DefaultProgressInterval = 30 * time.Second
)
