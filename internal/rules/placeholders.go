// SPDX-FileCopyrightText: 2024 Smile SA
// SPDX-License-Identifier: Apache-2.0

package rules

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/Smile-SA/rating-operator-api/internal/rating"
)

// A placeholder is an identifier in braces, e.g. "{price}". Braces around
// anything else (like PromQL label matchers) are left alone.
var placeholderRx = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

var variableNameRx = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Placeholders returns the distinct variable names referenced by a query
// template, in sorted order.
func Placeholders(query string) []string {
	var result []string
	for _, match := range placeholderRx.FindAllStringSubmatch(query, -1) {
		result = append(result, match[1])
	}
	slices.Sort(result)
	return slices.Compact(result)
}

// Substitute replaces every placeholder in the query template with the
// rendered value of the corresponding variable. The caller must have checked
// that the variable set matches the placeholders.
func Substitute(query string, vars rating.Variables) (string, error) {
	rendered := make(map[string]string, len(vars))
	for _, name := range vars.Names() {
		text, err := vars[name].Render()
		if err != nil {
			return "", rating.ErrValidation.With("cannot bind variable %q: %s", name, err.Error())
		}
		rendered[name] = text
	}

	var missing []string
	result := placeholderRx.ReplaceAllStringFunc(query, func(match string) string {
		name := match[1 : len(match)-1]
		text, ok := rendered[name]
		if !ok {
			missing = append(missing, name)
			return match
		}
		return text
	})
	if len(missing) > 0 {
		return "", rating.ErrValidation.With("no value for variables: %s", strings.Join(missing, ", "))
	}
	return result, nil
}

// symmetricDifference returns the elements of declared missing from bound,
// and the elements of bound missing from declared. Both inputs must be sorted.
func symmetricDifference(declared, bound []string) (missing, extra []string) {
	for _, name := range declared {
		if _, found := slices.BinarySearch(bound, name); !found {
			missing = append(missing, name)
		}
	}
	for _, name := range bound {
		if _, found := slices.BinarySearch(declared, name); !found {
			extra = append(extra, name)
		}
	}
	return missing, extra
}

func validateVariableNames(names []string) error {
	for _, name := range names {
		if !variableNameRx.MatchString(name) {
			return rating.ErrValidation.With("invalid variable name: %q", name)
		}
	}
	return nil
}

// checkTemplateVariables verifies that the declared variables are exactly the
// placeholders of the query template.
func checkTemplateVariables(query string, declared []string) error {
	err := validateVariableNames(declared)
	if err != nil {
		return err
	}
	sortedDeclared := slices.Clone(declared)
	slices.Sort(sortedDeclared)
	sortedDeclared = slices.Compact(sortedDeclared)

	undeclared, unused := symmetricDifference(Placeholders(query), sortedDeclared)
	var problems []string
	if len(undeclared) > 0 {
		problems = append(problems, fmt.Sprintf("query template references undeclared variables: %s", strings.Join(undeclared, ", ")))
	}
	if len(unused) > 0 {
		problems = append(problems, fmt.Sprintf("declared variables are not used in query template: %s", strings.Join(unused, ", ")))
	}
	if len(problems) > 0 {
		return rating.ErrValidation.With("%s", strings.Join(problems, "; "))
	}
	return nil
}
