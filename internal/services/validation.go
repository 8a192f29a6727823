package services

import (
	"fmt"

	"go.uber.org/multierr"

	"propertyhub/internal/common"
)

const maxAmount = 10_000_000

// invalid combines every failed check into one EInvalid error, or nil.
func invalid(op string, checks ...error) error {
	err := multierr.Combine(checks...)
	if err == nil {
		return nil
	}
	return &common.Error{Code: common.EInvalid, Op: op, Msg: "validation failed", Err: err}
}

// reference turns a failed lookup of a referenced record into a validation
// error. Records of other organizations look missing.
func reference(op, field string, err error) error {
	if common.IsNotFound(err) {
		return invalid(op, fmt.Errorf("%s does not reference a record of this organization", field))
	}
	return err
}
