package check

import (
	"testing"

	"gotest.tools/assert"
)

type ptrReceiver struct {
	A bool
}

func (t *ptrReceiver) Validate() []error {
	return []error{True(t.A, "field A must be true")}
}

type valueReceiver struct {
	A bool
}

func (t valueReceiver) Validate() []error {
	return []error{True(t.A, "field A must be true")}
}

type nested struct {
	Inner    valueReceiver
	Children []valueReceiver
}

func TestMethodSets(t *testing.T) {
	const want = "error found at root: field A must be true: expected true, got false"
	p := ptrReceiver{}
	v := valueReceiver{}
	assert.ErrorContains(t, Validate(p), want)
	assert.ErrorContains(t, Validate(&p), want)
	assert.ErrorContains(t, Validate(v), want)
	assert.ErrorContains(t, Validate(&v), want)
	assert.NilError(t, Validate(valueReceiver{A: true}))
}

func TestValidateNested(t *testing.T) {
	err := Validate(nested{
		Inner:    valueReceiver{A: true},
		Children: []valueReceiver{{A: true}, {A: false}},
	})
	assert.ErrorContains(t, err, "1 errors found")
	assert.ErrorContains(t, err, "error found at root.Children[1]")
}

func TestChecks(t *testing.T) {
	assert.NilError(t, GreaterThan(2, 1))
	assert.ErrorContains(t, GreaterThan(1, 1, "nproc"), "nproc: 1 is not greater than 1")
	assert.NilError(t, GreaterThanOrEqualTo(1, 1))
	assert.ErrorContains(t, GreaterThanOrEqualTo(0, 1, "port %s", "pod"), "port pod: 0 is not")
	assert.NilError(t, NotEmpty("x"))
	assert.ErrorContains(t, NotEmpty(""), "expected a non-empty string")
	assert.NilError(t, In("literal", []string{"cumulative", "literal"}))
	assert.ErrorContains(t, In("x", []string{"a"}), `"x" is not one of [a]`)
}
