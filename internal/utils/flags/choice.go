package flags

import (
	"fmt"
	"strings"
)

const (
	choicePlaceholderPrefixConstant        = "<"
	choicePlaceholderSuffixConstant        = ">"
	choiceSeparatorConstant                = "|"
	choiceUsageWithoutDescriptionConstant  = "`%s`"
	choiceUsageWithDescriptionConstant     = "`%s` %s"
	unsupportedChoiceErrorTemplateConstant = "unsupported value %q (expected one of %s)"
)

// ChoiceSet is a closed set of accepted flag values with a default.
type ChoiceSet struct {
	Default string
	Values  []string
}

// NewChoiceSet normalizes values to lower case and drops blanks and duplicates.
func NewChoiceSet(defaultValue string, values ...string) ChoiceSet {
	normalizedValues := make([]string, 0, len(values))
	seenValues := make(map[string]struct{}, len(values))
	for _, value := range values {
		normalizedValue := strings.ToLower(strings.TrimSpace(value))
		if len(normalizedValue) == 0 {
			continue
		}
		if _, seen := seenValues[normalizedValue]; seen {
			continue
		}
		seenValues[normalizedValue] = struct{}{}
		normalizedValues = append(normalizedValues, normalizedValue)
	}

	return ChoiceSet{
		Default: strings.ToLower(strings.TrimSpace(defaultValue)),
		Values:  normalizedValues,
	}
}

// Usage renders a usage string with the default value capitalized, e.g. "`<NONE|table>` Report format".
func (set ChoiceSet) Usage(description string) string {
	displayValues := make([]string, 0, len(set.Values))
	for _, value := range set.Values {
		if value == set.Default {
			displayValues = append(displayValues, strings.ToUpper(value))
			continue
		}
		displayValues = append(displayValues, value)
	}

	placeholder := choicePlaceholderPrefixConstant + strings.Join(displayValues, choiceSeparatorConstant) + choicePlaceholderSuffixConstant
	trimmedDescription := strings.TrimSpace(description)
	if len(trimmedDescription) == 0 {
		return fmt.Sprintf(choiceUsageWithoutDescriptionConstant, placeholder)
	}
	return fmt.Sprintf(choiceUsageWithDescriptionConstant, placeholder, trimmedDescription)
}

// Normalize resolves a raw value against the set. Blank input selects the default.
func (set ChoiceSet) Normalize(rawValue string) (string, error) {
	normalizedValue := strings.ToLower(strings.TrimSpace(rawValue))
	if len(normalizedValue) == 0 {
		normalizedValue = set.Default
	}

	for _, value := range set.Values {
		if value == normalizedValue {
			return value, nil
		}
	}

	return "", fmt.Errorf(unsupportedChoiceErrorTemplateConstant, rawValue, strings.Join(set.Values, ", "))
}
