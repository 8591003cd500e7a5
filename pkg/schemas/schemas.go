// Package schemas holds the JSON schemas that snapshots and wire messages must satisfy before
// they are turned into a topology.
package schemas

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/santhosh-tekuri/jsonschema/v2"
)

// Violation is the first schema violation found in a document.
type Violation struct {
	// Path names the offending field from the document root, e.g. ["trainers", "0", "endpoint"].
	// It is empty when the document itself has the wrong shape.
	Path    []string
	Message string
}

func (v Violation) Error() string {
	if len(v.Path) == 0 {
		return v.Message
	}
	return fmt.Sprintf("%s: %s", v.Field(), v.Message)
}

// Field returns the path joined with ".".
func (v Violation) Field() string {
	return strings.Join(v.Path, ".")
}

var (
	compileOnce sync.Once
	validators  map[string]*jsonschema.Schema
)

// Create a jsonschema.Compiler with all the schemas preloaded.
func newCompiler() *jsonschema.Compiler {
	compiler := jsonschema.NewCompiler()

	for url, byts := range schemaBytesMap() {
		if err := compiler.AddResource(url, bytes.NewReader(byts)); err != nil {
			panic("invalid schema: " + url)
		}
	}
	return compiler
}

// GetValidator returns the compiled schema for url. It panics on an unknown url.
func GetValidator(url string) *jsonschema.Schema {
	compileOnce.Do(func() {
		compiler := newCompiler()
		validators = make(map[string]*jsonschema.Schema, len(schemaBytesMap()))
		for url := range schemaBytesMap() {
			validator, err := compiler.Compile(url)
			if err != nil {
				panic("uncompilable schema: " + url + ": " + err.Error())
			}
			validators[url] = validator
		}
	})

	validator, ok := validators[url]
	if !ok {
		panic("unknown schema: " + url)
	}
	return validator
}

// Validate checks the JSON document byts against the schema at url. A document that breaks the
// schema yields a Violation; a document that is not JSON at all yields a plain error.
func Validate(url string, byts []byte) error {
	err := GetValidator(url).Validate(bytes.NewReader(byts))
	if err == nil {
		return nil
	}
	vErr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return errors.Wrap(err, "document is not valid json")
	}

	leaves := getLeafErrors(vErr)
	violations := make([]Violation, 0, len(leaves))
	for _, leaf := range leaves {
		violations = append(violations, newViolation(leaf))
	}
	sort.SliceStable(violations, func(i, j int) bool {
		return violations[i].Field() < violations[j].Field()
	})
	return violations[0]
}

// getLeafErrors flattens a nested-tree-style jsonschema error; only its leaves say what is wrong.
func getLeafErrors(valError *jsonschema.ValidationError) []*jsonschema.ValidationError {
	var leaves []*jsonschema.ValidationError
	for _, subError := range valError.Causes {
		leaves = append(leaves, getLeafErrors(subError)...)
	}
	if len(leaves) > 0 {
		return leaves
	}
	return []*jsonschema.ValidationError{valError}
}

var quotedName = regexp.MustCompile(`"((?:[^"\\]|\\.)*)"`)

// newViolation names the field a leaf error is about. Errors of the required and
// additionalProperties keywords are reported on the enclosing object, so the first property they
// quote is appended.
func newViolation(leaf *jsonschema.ValidationError) Violation {
	v := Violation{Path: splitPointer(leaf.InstancePtr), Message: leaf.Message}
	if strings.HasPrefix(leaf.Message, "missing properties") ||
		strings.HasPrefix(leaf.Message, "additionalProperties") {
		if m := quotedName.FindStringSubmatch(leaf.Message); m != nil {
			var name string
			if err := json.Unmarshal([]byte(m[0]), &name); err == nil {
				v.Path = append(v.Path, name)
			}
		}
	}
	return v
}

// splitPointer splits a json pointer like "#/trainers/0" into its unescaped tokens.
func splitPointer(ptr string) []string {
	ptr = strings.TrimPrefix(strings.TrimPrefix(ptr, "#"), "/")
	if ptr == "" {
		return nil
	}
	tokens := strings.Split(ptr, "/")
	for i, t := range tokens {
		tokens[i] = strings.ReplaceAll(strings.ReplaceAll(t, "~1", "/"), "~0", "~")
	}
	return tokens
}
