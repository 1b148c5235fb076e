package payload

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/jellydator/validation"
)

const maxBodyBytes = 1 << 20

var ErrInvalidForm error = errors.New("invalid form")

type DecodeValidator struct{}

func (dv DecodeValidator) DecodeAndValidateJSONPayload(r *http.Request, object any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	defer r.Body.Close()
	decoder.DisallowUnknownFields()
	err := decoder.Decode(object)
	if err != nil {
		return fmt.Errorf("decoding json payload: %w", err)
	}
	return dv.validatePayload(object)
}

// ParseAndValidateForm fills object from the url-encoded request body and
// validates it.
func (dv DecodeValidator) ParseAndValidateForm(r *http.Request, object FormPayload) error {
	r.Body = http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidForm, err)
	}

	object.FromForm(r.PostForm)
	return dv.validatePayload(object)
}

func (dv DecodeValidator) validatePayload(object any) error {
	t, ok := object.(validation.Validatable)
	if !ok {
		// nothing to validate
		return nil
	}

	if err := t.Validate(); err != nil {
		return fmt.Errorf("validating payload: %w", err)
	}

	return nil
}
