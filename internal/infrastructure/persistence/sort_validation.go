package persistence

import (
	"strings"
)

// ValidateSortOrder normalizes orderDir to ASC or DESC, defaulting to DESC
func ValidateSortOrder(orderDir string) string {
	if strings.EqualFold(strings.TrimSpace(orderDir), "asc") {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField returns sortField when it is whitelisted, else defaultField
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// OrderSortFields are the columns orders may be listed by
var OrderSortFields = map[string]bool{
	"created_at":    true,
	"total_amount":  true,
	"customer_name": true,
}

// orderClause builds a whitelisted ORDER BY with id as the tie breaker
func orderClause(field, dir string) string {
	field = ValidateSortField(field, OrderSortFields, "created_at")
	dir = ValidateSortOrder(dir)
	return field + " " + dir + ", id " + dir
}
