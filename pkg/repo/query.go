package repo

import (
	"fmt"
	"strings"
)

// Join assembles SQL fragments separated by single spaces, skipping empties.
func Join(parts ...string) string {
	nonEmpty := make([]string, 0, len(parts))
	for _, part := range parts {
		if strings.TrimSpace(part) != "" {
			nonEmpty = append(nonEmpty, part)
		}
	}
	return strings.Join(nonEmpty, " ")
}

// JoinWhere renders a WHERE clause with the given conditions ANDed together.
func JoinWhere(conditions ...string) string {
	nonEmpty := make([]string, 0, len(conditions))
	for _, cond := range conditions {
		if strings.TrimSpace(cond) != "" {
			nonEmpty = append(nonEmpty, cond)
		}
	}
	if len(nonEmpty) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(nonEmpty, " AND ")
}

// FormatLimitOffset renders LIMIT/OFFSET, omitting zero values.
func FormatLimitOffset(limit, offset int) string {
	if limit > 0 && offset > 0 {
		return fmt.Sprintf("LIMIT %d OFFSET %d", limit, offset)
	}
	if limit > 0 {
		return fmt.Sprintf("LIMIT %d", limit)
	}
	if offset > 0 {
		return fmt.Sprintf("OFFSET %d", offset)
	}
	return ""
}
