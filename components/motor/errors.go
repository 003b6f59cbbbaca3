package motor

import "github.com/pkg/errors"

// NewReverseUnsupportedError returns an error for a reverse command on a motor wired for a
// single direction.
func NewReverseUnsupportedError(motorName string) error {
	return errors.Errorf("motor with name %s is wired for a single direction and cannot reverse", motorName)
}

// NewPinConfigError returns an error for a motor whose pins cannot be resolved.
func NewPinConfigError(motorName, pin string, err error) error {
	return errors.Wrapf(err, "motor with name %s cannot use pin %q", motorName, pin)
}
