package reports

import "errors"

var (
	// ErrSessionUnavailable is returned when no session could be acquired;
	// the current sync cycle is skipped.
	ErrSessionUnavailable = errors.New("reports: session unavailable")
	// ErrReportFailed is returned when the remote signals a failed job.
	ErrReportFailed = errors.New("reports: report failed")
	// ErrReportTimeout is returned when polling exceeds the attempt bound.
	ErrReportTimeout = errors.New("reports: report did not finish in time")
	// ErrUnknownKind is returned for a report kind with no configuration.
	ErrUnknownKind = errors.New("reports: unknown report kind")
)
