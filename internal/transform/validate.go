package transform

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/hupe1980/xrd2template/internal/xrd"
)

// ErrInvalidDefinition wraps every requirement a definition violates.
var ErrInvalidDefinition = errors.New("invalid definition")

// Validation is the outcome of CanTransform.
type Validation struct {
	Valid   bool     `json:"valid"`
	Reasons []string `json:"reasons,omitempty"`
}

// CanTransform checks def without transforming it and reports every
// violated requirement.
func (t *Transformer) CanTransform(def *xrd.ResourceDefinition) Validation {
	errs := validate(def)

	reasons := make([]string, 0, len(errs))
	for _, err := range errs {
		reasons = append(reasons, err.Error())
	}

	return Validation{Valid: len(errs) == 0, Reasons: reasons}
}

// TransformValid transforms def only when CanTransform accepts it. An
// invalid definition yields no templates and one definition-level error
// per violated requirement.
func (t *Transformer) TransformValid(def *xrd.ResourceDefinition) *Result {
	errs := validate(def)
	if len(errs) == 0 {
		return t.Transform(def)
	}

	name := def.Metadata.Name
	if name == "" {
		name = "<unnamed>"
	}

	res := &Result{}

	for _, err := range errs {
		t.opts.Logger.Warn("skipping invalid definition", slog.String("xrd", name), slog.Any("error", err))
		res.Errors = append(res.Errors, &VersionError{
			Definition: name,
			Err:        fmt.Errorf("%w: %w", ErrInvalidDefinition, err),
		})
	}

	return res
}

func validate(def *xrd.ResourceDefinition) []error {
	var errs []error

	if def.Metadata.Name == "" {
		errs = append(errs, errors.New("XRD must have a metadata.name"))
	}

	if def.Spec.Group == "" {
		errs = append(errs, errors.New("XRD must have a spec.group"))
	}

	if len(def.ServedVersions()) == 0 {
		errs = append(errs, errors.New("XRD must have at least one served version"))
	}

	if _, err := xrd.Detect(def); err != nil {
		errs = append(errs, err)
	}

	return errs
}
