package trace

import (
	"errors"

	"stepviz/internal/model"
)

// Sentinel errors for trace synthesis.
var (
	// ErrBackendFailure indicates the execution backend or interpreter could
	// not be reached or failed before any tracing happened.
	ErrBackendFailure = errors.New("execution backend failed")

	// ErrTracerFailure indicates the instrumented or traced run itself failed.
	ErrTracerFailure = errors.New("traced run failed")

	// ErrMalformedTrace indicates sentinels were missing or the payload could
	// not be decoded.
	ErrMalformedTrace = errors.New("malformed trace payload")

	// ErrUnsupportedLanguage indicates no strategy exists for the language.
	ErrUnsupportedLanguage = errors.New("unsupported language")
)

// AnalysisError carries the user-facing message of a failed analysis. Kind
// is one of the sentinel errors above.
type AnalysisError struct {
	Kind    error
	Message string
}

func (e *AnalysisError) Error() string { return e.Message }

func (e *AnalysisError) Unwrap() error { return e.Kind }

func newAnalysisError(kind error, msg string) *AnalysisError {
	return &AnalysisError{Kind: kind, Message: msg}
}

// ErrorKind maps an analysis error to the kind reported in responses.
func ErrorKind(err error) model.ErrorKind {
	switch {
	case errors.Is(err, ErrBackendFailure):
		return model.ErrorKindBackend
	case errors.Is(err, ErrTracerFailure):
		return model.ErrorKindTracer
	case errors.Is(err, ErrMalformedTrace):
		return model.ErrorKindMalformed
	default:
		return model.ErrorKindInternal
	}
}
