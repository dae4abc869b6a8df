package validation

import (
	"fmt"
	"strings"
)

// ValidateHeaders classifies the header row against the schema. Missing
// required columns and columns forbidden for the dataset kind are
// always fatal; unrecognized columns follow the schema's header policy.
// Duplicate or empty header names are malformed input and fatal. The
// check is a pure function of the header list and schema.
func ValidateHeaders(schema *Schema, headers []string, summary *Summary) {
	seen := make(map[string]bool, len(headers))
	for i, raw := range headers {
		name := strings.TrimSpace(raw)
		if name == "" {
			summary.Add(KindParse, LevelError, Issue{
				Column:  fmt.Sprintf("#%d", i+1),
				Message: "column has an empty header",
			})
			summary.Fatal = true
			continue
		}
		key := strings.ToLower(name)
		if seen[key] {
			summary.Add(KindParse, LevelError, Issue{
				Column:  name,
				Message: fmt.Sprintf("column %q appears more than once", name),
			})
			summary.Fatal = true
			continue
		}
		seen[key] = true

		if schema.IsForbidden(name) {
			summary.Add(KindHeaderForbidden, LevelError, Issue{
				Column:  name,
				Message: fmt.Sprintf("column %q does not belong in a %s upload", name, schema.Kind),
			})
			summary.Fatal = true
			continue
		}
		if _, ok := schema.Column(name); !ok {
			if schema.HeaderPolicy == HeaderPolicyFatal {
				summary.Add(KindHeaderUnknown, LevelError, Issue{
					Column:  name,
					Message: fmt.Sprintf("unrecognized column %q", name),
				})
				summary.Fatal = true
			} else {
				summary.Add(KindHeaderUnknown, LevelWarning, Issue{
					Column:  name,
					Message: fmt.Sprintf("unrecognized column %q will be ignored", name),
				})
			}
		}
	}

	for _, col := range schema.Required {
		key := strings.ToLower(col.Name)
		if seen[key] {
			continue
		}
		if alternatesPresent(schema, key, seen) {
			continue
		}
		summary.Add(KindHeaderMissing, LevelError, Issue{
			Column:  col.Name,
			Message: fmt.Sprintf("required column %q is missing", col.Name),
		})
		summary.Fatal = true
	}
}

// alternatesPresent reports whether every column of the alternate group
// for the given required column is present.
func alternatesPresent(schema *Schema, requiredKey string, seen map[string]bool) bool {
	group, ok := schema.Alternates[requiredKey]
	if !ok || len(group) == 0 {
		return false
	}
	for _, name := range group {
		if !seen[strings.ToLower(name)] {
			return false
		}
	}
	return true
}
