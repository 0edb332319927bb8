package alerting

import "errors"

var (
	// ErrInvalidRequest is returned for malformed create requests and filters
	ErrInvalidRequest = errors.New("invalid alert request")

	// ErrInvalidSuppression is returned when a suppression window is not positive
	ErrInvalidSuppression = errors.New("suppression minutes must be positive")

	// ErrStoreClosed is returned for writes after Close
	ErrStoreClosed = errors.New("alert store is closed")

	// ErrUnknownOperator is returned when a rule uses an unsupported comparison
	ErrUnknownOperator = errors.New("unknown comparison operator")

	// ErrUnknownMetric is returned when a rule watches a metric the evaluator cannot extract
	ErrUnknownMetric = errors.New("unknown metric key")

	// ErrInvalidRule is returned for rules that fail validation
	ErrInvalidRule = errors.New("invalid alert rule")
)
