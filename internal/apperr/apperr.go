// Package apperr defines the error taxonomy shared across khazna's
// subsystems and the HTTP-status mapping the REST edge uses to translate
// them. It follows the teacher's resilience package's sentinel-error style
// ([resilience.ErrCircuitOpen]) rather than a generic error-code enum.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind categorizes an error for status-code mapping and logging.
type Kind string

const (
	// KindValidation is a caller-visible input error. Never retried.
	KindValidation Kind = "validation_error"

	// KindBackendUnavailable is a transient storage/network outage. The
	// caller has already retried once before this is surfaced.
	KindBackendUnavailable Kind = "backend_unavailable"

	// KindLLMTimeout is a stalled or cancelled LLM call. The orchestrator
	// substitutes a deterministic fallback reply rather than propagating this.
	KindLLMTimeout Kind = "llm_timeout"

	// KindLLMMalformed is an LLM response that failed schema validation
	// (unparsable tool-call arguments, truncated JSON).
	KindLLMMalformed Kind = "llm_malformed"

	// KindNotFound is a lookup miss. Resolved as an empty result or 404.
	KindNotFound Kind = "not_found"

	// KindConflictDuplicate marks a re-upload of already-ingested content.
	// Not treated as an error by callers — carried as a Kind for logging
	// symmetry with the rest of the taxonomy.
	KindConflictDuplicate Kind = "conflict_duplicate"

	// KindExtractionEmpty marks a fact-extraction pass that produced no
	// entities. Not an error; logged for observability.
	KindExtractionEmpty Kind = "extraction_empty"

	// KindFatal marks an unrecoverable invariant violation. The containing
	// operation must abort and, where a compensating delete is possible,
	// must not leave partial state.
	KindFatal Kind = "fatal"
)

// Error is a structured error that wraps an underlying cause with the
// operation that failed and a [Kind] for status-code mapping.
type Error struct {
	// Op is the operation that failed, e.g. "graphstore.AddEntity".
	Op string

	// Kind categorizes the error.
	Kind Kind

	// Err is the underlying error, if any.
	Err error

	// Context carries debugging details (entity IDs, field names).
	Context map[string]any
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("khazna: %s: %s", e.Op, e.Kind)
	}
	if len(e.Context) > 0 {
		return fmt.Sprintf("khazna: %s (%s): %v %+v", e.Op, e.Kind, e.Err, e.Context)
	}
	return fmt.Sprintf("khazna: %s (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Kind when the target is an *Error with Kind set, falling
// back to delegating to the wrapped error otherwise.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	if t, ok := target.(*Error); ok && t.Kind != "" {
		return e.Kind == t.Kind
	}
	return errors.Is(e.Err, target)
}

// WithContext returns a copy of e with ctx merged into Context.
func (e *Error) WithContext(ctx map[string]any) *Error {
	cp := *e
	cp.Context = make(map[string]any, len(e.Context)+len(ctx))
	for k, v := range e.Context {
		cp.Context[k] = v
	}
	for k, v := range ctx {
		cp.Context[k] = v
	}
	return &cp
}

// New constructs an [Error] of the given kind.
func New(op string, kind Kind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

func Validation(op string, err error) *Error         { return New(op, KindValidation, err) }
func BackendUnavailable(op string, err error) *Error  { return New(op, KindBackendUnavailable, err) }
func LLMTimeout(op string, err error) *Error          { return New(op, KindLLMTimeout, err) }
func LLMMalformed(op string, err error) *Error        { return New(op, KindLLMMalformed, err) }
func NotFound(op string, err error) *Error            { return New(op, KindNotFound, err) }
func ConflictDuplicate(op string, err error) *Error   { return New(op, KindConflictDuplicate, err) }
func ExtractionEmpty(op string, err error) *Error     { return New(op, KindExtractionEmpty, err) }
func Fatal(op string, err error) *Error               { return New(op, KindFatal, err) }

// HTTPStatus maps err to the REST-edge status code spec §7 assigns to each
// Kind. Non-apperr errors map to 500.
func HTTPStatus(err error) int {
	var ae *Error
	if !errors.As(err, &ae) {
		return http.StatusInternalServerError
	}
	switch ae.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindBackendUnavailable:
		return http.StatusServiceUnavailable
	case KindNotFound:
		return http.StatusNotFound
	case KindConflictDuplicate:
		return http.StatusOK
	case KindExtractionEmpty:
		return http.StatusOK
	case KindLLMTimeout, KindLLMMalformed:
		// The orchestrator is expected to have already substituted a
		// fallback reply; reaching the REST edge with one of these is
		// itself unexpected.
		return http.StatusInternalServerError
	case KindFatal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// IsRetryable reports whether op should be retried once before surfacing
// err to the caller, per spec §7's BackendUnavailable rule.
func IsRetryable(err error) bool {
	var ae *Error
	if !errors.As(err, &ae) {
		return false
	}
	return ae.Kind == KindBackendUnavailable
}
