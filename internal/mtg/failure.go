package mtg

import (
	"encoding/json"
	"errors"
	"maps"

	"github.com/MrWong99/mtgctx/internal/upstream"
)

// Failure is an error returned as data. It marshals to a JSON object whose
// "error" field carries Message; Fields adds operation specific context such
// as the queried card name.
type Failure struct {
	Message string
	Kind    upstream.Kind
	Status  int
	Details string
	URL     string
	Fields  map[string]any
	Err     error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return f.Message + ": " + f.Err.Error()
	}
	return f.Message
}

func (f *Failure) Unwrap() error { return f.Err }

// With sets a context field and returns f.
func (f *Failure) With(key string, v any) *Failure {
	if f.Fields == nil {
		f.Fields = make(map[string]any)
	}
	f.Fields[key] = v
	return f
}

// MarshalJSON renders the failure as a flat object.
func (f *Failure) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(f.Fields)+5)
	maps.Copy(m, f.Fields)
	m["error"] = f.Message
	if f.Kind != "" {
		m["kind"] = f.Kind
	}
	if f.Status != 0 {
		m["status"] = f.Status
	}
	if f.Details != "" {
		m["details"] = f.Details
	}
	if f.URL != "" {
		m["api_url"] = f.URL
	}
	return json.Marshal(m)
}

// Fail builds a Failure with message msg from err, copying kind, status,
// details and URL from an [*upstream.Error] in err's chain.
func Fail(msg string, err error) *Failure {
	f := &Failure{Message: msg, Err: err}
	var ue *upstream.Error
	if errors.As(err, &ue) {
		f.Kind = ue.Kind
		f.Status = ue.Status
		f.Details = ue.Details
		f.URL = ue.URL
		if f.Details == "" && ue.Kind == upstream.KindTransport {
			f.Details = ue.Error()
		}
		return f
	}
	if err != nil {
		f.Details = err.Error()
	}
	return f
}

// Invalid builds a validation Failure.
func Invalid(msg string) *Failure {
	return &Failure{Message: msg, Kind: upstream.KindValidation}
}

// AsFailure converts any error into a Failure. A Failure already in err's
// chain is returned as is.
func AsFailure(err error) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	var ue *upstream.Error
	if errors.As(err, &ue) {
		return Fail(ue.Message, err)
	}
	return Fail("internal error", err)
}

// Outcome is the result of a sub-call embedded in a larger response. It
// marshals to either the value or the failure, never to null.
type Outcome[T any] struct {
	Value   *T
	Failure *Failure
}

// Capture wraps a (value, error) pair.
func Capture[T any](v *T, err error) Outcome[T] {
	if err != nil {
		return Outcome[T]{Failure: AsFailure(err)}
	}
	if v == nil {
		return Outcome[T]{Failure: &Failure{Message: "no data"}}
	}
	return Outcome[T]{Value: v}
}

// OK reports whether the outcome holds a value.
func (o Outcome[T]) OK() bool { return o.Failure == nil && o.Value != nil }

func (o Outcome[T]) MarshalJSON() ([]byte, error) {
	if o.Failure != nil {
		return json.Marshal(o.Failure)
	}
	if o.Value == nil {
		return json.Marshal(&Failure{Message: "no data"})
	}
	return json.Marshal(o.Value)
}
