// SPDX-FileCopyrightText: 2024 Smile SA
// SPDX-License-Identifier: Apache-2.0

package rating

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// VariableKind distinguishes the alternatives of type VariableValue.
type VariableKind int

// Possible values for VariableKind.
const (
	NumberVariable VariableKind = iota + 1
	StringVariable
)

// VariableValue is the value bound to one template variable: either a number
// or a string.
type VariableValue struct {
	kind   VariableKind
	number decimal.Decimal
	str    string
}

// NumberValue builds a numeric VariableValue.
func NumberValue(d decimal.Decimal) VariableValue {
	return VariableValue{kind: NumberVariable, number: d}
}

// StringValue builds a string VariableValue.
func StringValue(s string) VariableValue {
	return VariableValue{kind: StringVariable, str: s}
}

// Kind returns which alternative this value holds.
func (v VariableValue) Kind() VariableKind {
	return v.kind
}

// String returns the value without any quoting.
func (v VariableValue) String() string {
	if v.kind == NumberVariable {
		return v.number.String()
	}
	return v.str
}

// Render formats the value for interpolation into a query. Numbers are
// rendered verbatim, strings as double-quoted literals with escapes. Values
// containing placeholder delimiters are rejected.
func (v VariableValue) Render() (string, error) {
	switch v.kind {
	case NumberVariable:
		return v.number.String(), nil
	case StringVariable:
		if strings.ContainsAny(v.str, "{}") {
			return "", fmt.Errorf("string value %q contains a placeholder delimiter", v.str)
		}
		return strconv.Quote(v.str), nil
	default:
		return "", errors.New("variable has no value")
	}
}

// MarshalJSON implements the json.Marshaler interface.
func (v VariableValue) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case NumberVariable:
		return []byte(v.number.String()), nil
	case StringVariable:
		return json.Marshal(v.str)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON implements the json.Unmarshaler interface. Only JSON numbers
// and strings are accepted.
func (v *VariableValue) UnmarshalJSON(buf []byte) error {
	dec := json.NewDecoder(bytes.NewReader(buf))
	dec.UseNumber()
	var raw any
	err := dec.Decode(&raw)
	if err != nil {
		return err
	}
	switch raw := raw.(type) {
	case json.Number:
		d, err := decimal.NewFromString(raw.String())
		if err != nil {
			return fmt.Errorf("cannot parse number %s: %w", raw.String(), err)
		}
		*v = NumberValue(d)
	case string:
		*v = StringValue(raw)
	default:
		return fmt.Errorf("variable values must be numbers or strings, got %s", string(buf))
	}
	return nil
}

// Variables maps template variable names to their bound values.
type Variables map[string]VariableValue

// Names returns the variable names in sorted order.
func (vs Variables) Names() []string {
	names := make([]string, 0, len(vs))
	for name := range vs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ToJSON serializes the variables for storage.
func (vs Variables) ToJSON() (string, error) {
	if len(vs) == 0 {
		return "{}", nil
	}
	buf, err := json.Marshal(map[string]VariableValue(vs))
	return string(buf), err
}

// ParseVariablesJSON is the inverse of Variables.ToJSON.
func ParseVariablesJSON(input string) (Variables, error) {
	result := make(Variables)
	if input == "" {
		return result, nil
	}
	err := json.Unmarshal([]byte(input), &result)
	return result, err
}
