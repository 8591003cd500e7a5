// Package check holds small predicates that return descriptive errors, and a reflective
// validator that runs every Validate method reachable from a configuration value.
package check

import (
	"fmt"

	"github.com/pkg/errors"
)

func check(condition bool, msgAndArgs []interface{}, format string, args ...interface{}) error {
	if condition {
		return nil
	}
	detail := fmt.Sprintf(format, args...)
	if msg := message(msgAndArgs...); msg != "" {
		return errors.Errorf("%s: %s", msg, detail)
	}
	return errors.New(detail)
}

// True checks whether the condition is true.
func True(condition bool, msgAndArgs ...interface{}) error {
	return check(condition, msgAndArgs, "expected true, got false")
}

// NotEmpty checks whether the string is non-empty.
func NotEmpty(actual string, msgAndArgs ...interface{}) error {
	return check(actual != "", msgAndArgs, "expected a non-empty string")
}

// GreaterThan checks whether actual is strictly greater than expected.
func GreaterThan(actual, expected int, msgAndArgs ...interface{}) error {
	return check(actual > expected, msgAndArgs, "%d is not greater than %d", actual, expected)
}

// GreaterThanOrEqualTo checks whether actual is at least expected.
func GreaterThanOrEqualTo(actual, expected int, msgAndArgs ...interface{}) error {
	return check(actual >= expected, msgAndArgs,
		"%d is not greater than or equal to %d", actual, expected)
}

// In checks whether actual is one of the options.
func In(actual string, options []string, msgAndArgs ...interface{}) error {
	for _, o := range options {
		if o == actual {
			return nil
		}
	}
	return check(false, msgAndArgs, "%q is not one of %v", actual, options)
}
