package analysis

import (
	"errors"

	"github.com/rotisserie/eris"

	"github.com/pleiade/zoneshare/internal/crs"
	"github.com/pleiade/zoneshare/internal/overlay"
	"github.com/pleiade/zoneshare/internal/parcel"
	"github.com/pleiade/zoneshare/internal/report"
	"github.com/pleiade/zoneshare/internal/source"
)

// Kind classifies a failed query or layer.
type Kind string

// Error kinds reported to callers.
const (
	KindParcelNotFound             Kind = "parcel_not_found"
	KindInvalidIdentifier          Kind = "invalid_identifier"
	KindDuplicateParcel            Kind = "duplicate_parcel"
	KindNoZoningIntersection       Kind = "no_zoning_intersection"
	KindMissingClassificationField Kind = "missing_classification_field"
	KindSourceUnavailable          Kind = "source_unavailable"
	KindInvalidGeometry            Kind = "invalid_geometry"
	KindProjectionFailed           Kind = "projection_failed"
)

// QueryError is the error report of a query. Layer is empty for failures
// that are not tied to one reference layer. Partial holds the result as far
// as it could be computed, if any.
type QueryError struct {
	Kind    Kind    `json:"kind"`
	Layer   string  `json:"layer,omitempty"`
	Message string  `json:"message"`
	Partial *Result `json:"-"`

	Err error `json:"-"`
}

func (e *QueryError) Error() string {
	if e.Layer != "" {
		return string(e.Kind) + ": " + e.Layer + ": " + e.Message
	}
	return string(e.Kind) + ": " + e.Message
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// AsQueryError extracts the QueryError from err's chain.
func AsQueryError(err error) (*QueryError, bool) {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe, true
	}
	return nil, false
}

// KindOf returns the kind of err, or "" when err carries no QueryError.
func KindOf(err error) Kind {
	if qe, ok := AsQueryError(err); ok {
		return qe.Kind
	}
	return ""
}

func newQueryError(kind Kind, layer string, err error) *QueryError {
	return &QueryError{Kind: kind, Layer: layer, Message: message(err), Err: err}
}

// classify maps an error from a pipeline stage to its kind. fallback is used
// when the error matches no known sentinel.
func classify(err error, fallback Kind) Kind {
	switch {
	case eris.Is(err, parcel.ErrNotFound):
		return KindParcelNotFound
	case eris.Is(err, parcel.ErrEmptyIdentifier):
		return KindInvalidIdentifier
	case eris.Is(err, parcel.ErrDuplicate):
		return KindDuplicateParcel
	case eris.Is(err, source.ErrSchemaMismatch):
		return KindMissingClassificationField
	case eris.Is(err, source.ErrSourceUnavailable):
		return KindSourceUnavailable
	case eris.Is(err, crs.ErrUnknownCRS), eris.Is(err, crs.ErrTransform):
		return KindProjectionFailed
	case eris.Is(err, overlay.ErrInvalidGeometry), eris.Is(err, report.ErrZeroArea):
		return KindInvalidGeometry
	default:
		return fallback
	}
}

// message returns the user-facing text for err: the text of the sentinel it
// wraps when known, otherwise the full error string.
func message(err error) string {
	for _, sentinel := range []error{
		parcel.ErrNotFound,
		parcel.ErrEmptyIdentifier,
		parcel.ErrDuplicate,
	} {
		if eris.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}
