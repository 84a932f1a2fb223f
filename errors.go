package tabular

// errors.go defines the engine's error kinds and the Wrapper helper used
// throughout the package to attach a component sentinel to an underlying
// cause.

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies an error the way callers need to react to it (§7 of the
// design doc): configuration mistakes are the caller's fault, IoError and
// FormatError come from the outside world, SchemaError is sometimes
// recoverable (unknown enum variant) and sometimes not (missing column),
// NumericWarning is non-fatal and only ever counted, Cancelled means a
// KillChip tripped.
type Kind int

const (
	KindUnknown Kind = iota
	KindConfiguration
	KindIO
	KindFormat
	KindSchema
	KindNumericWarning
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "ConfigurationError"
	case KindIO:
		return "IoError"
	case KindFormat:
		return "FormatError"
	case KindSchema:
		return "SchemaError"
	case KindNumericWarning:
		return "NumericWarning"
	case KindCancelled:
		return "Cancelled"
	default:
		return "Error"
	}
}

// EngineError is the structured error every public entry point returns.
type EngineError struct {
	Kind    Kind
	cause   error
	Message string
}

func (e *EngineError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}

	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *EngineError) Unwrap() error { return e.cause }

// component sentinels, one per module, mirroring the teacher's ErrData /
// ErrFields / ErrGData / ErrDiags convention (data.go, fields.go, gdata.go,
// diags.go).
var (
	ErrTable     = errors.New("table")
	ErrStats     = errors.New("column stats")
	ErrFeature   = errors.New("feature group")
	ErrBinning   = errors.New("binning")
	ErrTree      = errors.New("tree learner")
	ErrLinear    = errors.New("linear learner")
	ErrTask      = errors.New("task dispatcher")
	ErrGrid      = errors.New("training grid")
	ErrMetrics   = errors.New("metrics")
	ErrShap      = errors.New("shap")
	ErrModelFile = errors.New("model file")
)

var sentinelKind = map[error]Kind{
	ErrTable:     KindConfiguration,
	ErrStats:     KindConfiguration,
	ErrFeature:   KindSchema,
	ErrBinning:   KindConfiguration,
	ErrTree:      KindConfiguration,
	ErrLinear:    KindConfiguration,
	ErrTask:      KindConfiguration,
	ErrGrid:      KindConfiguration,
	ErrMetrics:   KindConfiguration,
	ErrShap:      KindConfiguration,
	ErrModelFile: KindFormat,
}

// Wrapper wraps msg with sentinel, attaching the sentinel's default Kind.
// It mirrors the teacher's Wrapper(ErrXxx, "Func: detail") call sites.
func Wrapper(sentinel error, msg string) error {
	kind := sentinelKind[sentinel]
	if kind == KindUnknown {
		kind = KindConfiguration
	}

	return &EngineError{Kind: kind, cause: errors.Wrap(sentinel, msg), Message: msg}
}

// WrapperKind is Wrapper but with an explicit Kind override, for the cases
// (IoError, FormatError, SchemaError, Cancelled) that don't follow the
// sentinel's default.
func WrapperKind(kind Kind, sentinel error, msg string) error {
	return &EngineError{Kind: kind, cause: errors.Wrap(sentinel, msg), Message: msg}
}

// Is reports whether err (or any error it wraps) is sentinel.
func Is(err, sentinel error) bool {
	return errors.Is(err, sentinel)
}
