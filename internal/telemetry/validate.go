package telemetry

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(err)
	}
	return v
}

// Validate checks the input's required fields and coordinate ranges.
func (in SampleInput) Validate() error {
	if err := validate.Struct(in); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSample, err)
	}
	return nil
}

// Validate checks the query's ranges, including Bounds. It does not resolve Near.
func (q HeatmapQuery) Validate() error {
	if _, err := ParseMetric(string(q.Metric)); err != nil {
		return err
	}
	if err := validate.Struct(q); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	return nil
}
