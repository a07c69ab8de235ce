// SPDX-FileCopyrightText: 2024 Smile SA
// SPDX-License-Identifier: Apache-2.0

package ratingv1

import (
	"bytes"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Smile-SA/rating-operator-api/internal/rating"
)

// maximum accepted size of a request body
const maxPayloadBytes = 1 << 20

// payload is the body of a POST request. Clients send either a JSON object or
// a urlencoded form, so both are normalized into this representation. Values
// are formValue, json.Number, string, []any or map[string]any.
type payload map[string]any

// formValue is a value taken from a urlencoded form. Unlike JSON strings,
// these may hold numbers.
type formValue string

func parsePayload(r *http.Request) (payload, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" || (mediaType == "" && r.ContentLength > 0) {
		return parseJSONPayload(r.Body)
	}

	err := r.ParseForm()
	if err != nil {
		return nil, rating.ErrValidation.With("malformed form data: %s", err.Error())
	}
	result := make(payload, len(r.PostForm))
	for key, values := range r.PostForm {
		if len(values) > 0 {
			result[key] = formValue(values[len(values)-1])
		}
	}
	return result, nil
}

func parseJSONPayload(body io.Reader) (payload, error) {
	buf, err := io.ReadAll(io.LimitReader(body, maxPayloadBytes))
	if err != nil {
		return nil, rating.ErrValidation.With("cannot read request body: %s", err.Error())
	}
	if len(bytes.TrimSpace(buf)) == 0 {
		return payload{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(buf))
	dec.UseNumber()
	var result payload
	err = dec.Decode(&result)
	if err != nil {
		return nil, rating.ErrValidation.With("malformed JSON body: %s", err.Error())
	}
	if result == nil {
		result = payload{}
	}
	return result, nil
}

// Has returns whether the key was given at all.
func (p payload) Has(key string) bool {
	_, ok := p[key]
	return ok
}

// String returns the value of the key as a string, or "" if the key is
// missing.
func (p payload) String(key string) string {
	switch value := p[key].(type) {
	case string:
		return value
	case formValue:
		return string(value)
	case json.Number:
		return value.String()
	default:
		return ""
	}
}

// StringPtr is like String, but returns nil for missing keys.
func (p payload) StringPtr(key string) *string {
	if !p.Has(key) {
		return nil
	}
	value := p.String(key)
	return &value
}

// Strings returns the value of the key as a list of strings. Form fields are
// split at commas.
func (p payload) Strings(key string) ([]string, error) {
	switch value := p[key].(type) {
	case nil:
		return nil, nil
	case string, formValue:
		var result []string
		for _, field := range strings.Split(p.String(key), ",") {
			field = strings.TrimSpace(field)
			if field != "" {
				result = append(result, field)
			}
		}
		return result, nil
	case []any:
		result := make([]string, 0, len(value))
		for _, item := range value {
			str, ok := item.(string)
			if !ok {
				return nil, rating.ErrValidation.With("%s must be a list of strings", key)
			}
			result = append(result, str)
		}
		return result, nil
	default:
		return nil, rating.ErrValidation.With("%s must be a list of strings", key)
	}
}

// Variables collects the template variable bindings of an instance request:
// either the members of a "variables" object, or all top-level keys except
// the given reserved ones. Form values that look like numbers are bound as
// numbers.
func (p payload) Variables(reserved ...string) (rating.Variables, error) {
	source := map[string]any(p)
	if nested, ok := p["variables"].(map[string]any); ok {
		source = nested
	}

	result := make(rating.Variables)
	for key, value := range source {
		if slices.Contains(reserved, key) || key == "variables" {
			continue
		}
		switch value := value.(type) {
		case json.Number:
			d, err := decimal.NewFromString(value.String())
			if err != nil {
				return nil, rating.ErrValidation.With("cannot parse value of %s: %s", key, err.Error())
			}
			result[key] = rating.NumberValue(d)
		case string:
			result[key] = rating.StringValue(value)
		case formValue:
			d, err := decimal.NewFromString(string(value))
			if err == nil && !isFormattedLikeString(string(value)) {
				result[key] = rating.NumberValue(d)
			} else {
				result[key] = rating.StringValue(string(value))
			}
		default:
			return nil, rating.ErrValidation.With("value of %s must be a number or a string", key)
		}
	}
	return result, nil
}

// isFormattedLikeString catches inputs that decimal.NewFromString accepts but
// which users would not consider numbers, like "1e3" or " 1".
func isFormattedLikeString(value string) bool {
	return strings.ContainsAny(value, "eE \t")
}
