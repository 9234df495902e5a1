/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package credential

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// validatorKind enumerates the per-property validator variants. Dispatch is
// by table lookup only; no property-name conditionals elsewhere.
type validatorKind int

const (
	validatorURL validatorKind = iota
	validatorUUID
	validatorDID
	validatorRegionCode
	validatorNumericRange
	validatorChoice
)

type fieldRule struct {
	kind    validatorKind
	choices []string
	min     float64
	max     float64
}

// fieldRules maps a property name to its validator. Suffix rules below catch
// naming-convention matches for properties not listed here.
var fieldRules = map[string]fieldRule{
	"gx:website":                {kind: validatorURL},
	"gx:termsAndConditions":     {kind: validatorURL},
	"gx:headquarterAddress":     {kind: validatorRegionCode},
	"gx:legalAddress":           {kind: validatorRegionCode},
	"gx:countrySubdivisionCode": {kind: validatorRegionCode},
	"gx:providedBy":             {kind: validatorDID},
	"gx:maintainedBy":           {kind: validatorDID},
	"gx:issuedBy":               {kind: validatorDID},
	"gx:employeeCount":          {kind: validatorNumericRange, min: 0, max: 10_000_000},
	"gx:registrationNumberType": {
		kind:    validatorChoice,
		choices: []string{"vatID", "leiCode", "EORI", "taxID", "EUID"},
	},
}

var suffixRules = []struct {
	suffix string
	rule   fieldRule
}{
	{suffix: "URL", rule: fieldRule{kind: validatorURL}},
	{suffix: "UUID", rule: fieldRule{kind: validatorUUID}},
}

var (
	didPattern    = regexp.MustCompile(`^did:[a-z0-9]+:.+`)
	regionPattern = regexp.MustCompile(`^[A-Z]{2}-[A-Z0-9]{1,3}$`)
)

func ruleFor(name string) (fieldRule, bool) {
	if rule, ok := fieldRules[name]; ok {
		return rule, true
	}

	for _, entry := range suffixRules {
		if strings.HasSuffix(name, entry.suffix) {
			return entry.rule, true
		}
	}

	return fieldRule{}, false
}

// validateValue checks a collected value against the declarative rule table.
// Non-scalar values pass through untouched; nested objects are composed by
// dedicated pipeline steps with their own rules.
func validateValue(name string, value interface{}) error {
	rule, ok := ruleFor(name)
	if !ok {
		return nil
	}

	switch rule.kind {
	case validatorNumericRange:
		return validateNumericRange(value, rule.min, rule.max)
	default:
	}

	str, ok := value.(string)
	if !ok {
		return nil
	}

	switch rule.kind {
	case validatorURL:
		parsed, err := url.ParseRequestURI(str)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("%q is not a valid URL", str)
		}
	case validatorUUID:
		if _, err := uuid.Parse(str); err != nil {
			return fmt.Errorf("%q is not a valid UUID", str)
		}
	case validatorDID:
		if !didPattern.MatchString(str) {
			return fmt.Errorf("%q is not a valid DID", str)
		}
	case validatorRegionCode:
		if !regionPattern.MatchString(str) {
			return fmt.Errorf("%q is not a valid ISO 3166-2 region code", str)
		}
	case validatorChoice:
		for _, choice := range rule.choices {
			if str == choice {
				return nil
			}
		}

		return fmt.Errorf("%q is not one of %s", str, strings.Join(rule.choices, ", "))
	default:
	}

	return nil
}

func validateNumericRange(value interface{}, min, max float64) error {
	var number float64

	switch v := value.(type) {
	case int:
		number = float64(v)
	case int64:
		number = float64(v)
	case float64:
		number = v
	case float32:
		number = float64(v)
	default:
		return errors.New("expected a numeric value")
	}

	if number < min || number > max {
		return fmt.Errorf("%v is outside the allowed range [%v, %v]", number, min, max)
	}

	return nil
}
