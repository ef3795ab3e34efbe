// Package template scans node configuration for {{placeholder}} tokens and
// renders it once every token has a resolved value.
package template

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*([^{}\s][^{}]*?)\s*\}\}`)

// Placeholders returns the distinct placeholder names in s, in order of
// first appearance.
func Placeholders(s string) []string {
	matches := placeholderPattern.FindAllStringSubmatch(s, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(matches))
	names := make([]string, 0, len(matches))

	for _, m := range matches {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}

	return names
}

// CollectPlaceholders walks a node's configuration and returns every
// distinct placeholder name found in its string values, sorted for
// deterministic resolution order.
func CollectPlaceholders(config map[string]any) []string {
	seen := make(map[string]bool)
	collectValue(config, seen)

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

func collectValue(value any, seen map[string]bool) {
	switch v := value.(type) {
	case string:
		for _, name := range Placeholders(v) {
			seen[name] = true
		}
	case map[string]any:
		for _, nested := range v {
			collectValue(nested, seen)
		}
	case []any:
		for _, nested := range v {
			collectValue(nested, seen)
		}
	}
}

// RenderString substitutes every placeholder in s using the supplied
// values. A string that is exactly one placeholder yields the value with
// its type intact; anything else interpolates into a string.
func RenderString(s string, values map[string]any) any {
	if name, ok := solePlaceholder(s); ok {
		if value, exists := values[name]; exists {
			return value
		}

		return s
	}

	return placeholderPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]

		value, exists := values[name]
		if !exists {
			return match
		}

		return stringify(value)
	})
}

// RenderConfig returns a deep copy of config with all placeholders
// substituted. The input is never mutated.
func RenderConfig(config map[string]any, values map[string]any) map[string]any {
	rendered := make(map[string]any, len(config))
	for key, value := range config {
		rendered[key] = renderValue(value, values)
	}

	return rendered
}

func renderValue(value any, values map[string]any) any {
	switch v := value.(type) {
	case string:
		return RenderString(v, values)
	case map[string]any:
		return RenderConfig(v, values)
	case []any:
		rendered := make([]any, len(v))
		for i, nested := range v {
			rendered[i] = renderValue(nested, values)
		}

		return rendered
	default:
		return value
	}
}

// solePlaceholder reports whether s is exactly one placeholder token.
func solePlaceholder(s string) (string, bool) {
	trimmed := strings.TrimSpace(s)

	match := placeholderPattern.FindStringSubmatch(trimmed)
	if match == nil || match[0] != trimmed {
		return "", false
	}

	return match[1], true
}

func stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		// Avoid the %v exponent form for round numbers.
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}

		return fmt.Sprintf("%g", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
