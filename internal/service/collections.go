package service

import (
	"fmt"
	"strings"
)

// CollectionRegistry maps each synchronized collection to the business
// field holding its natural key: the unique value used to find a
// record pushed by another client before a server id existed for it.
// Collections without an entry reconcile by id only.
type CollectionRegistry struct {
	naturalKeys map[string]string
}

func NewCollectionRegistry() *CollectionRegistry {
	return &CollectionRegistry{
		naturalKeys: map[string]string{
			"shops":                "designation",
			"agents":               "phone",
			"clients":              "phone",
			"products":             "reference",
			"sim_inventories":      "serial",
			"credits":              "reference",
			"salaries":             "reference",
			"virtual_transactions": "reference",
			"reconciliations":      "reference",
		},
	}
}

// Register overrides or adds the natural key field for a collection.
// Deployments with extra tables wire them in at startup.
func (r *CollectionRegistry) Register(collection string, field string) {
	r.naturalKeys[collection] = field
}

// NaturalKey extracts the natural key value from a record's business
// fields. Empty when the collection has no natural key or the field is
// absent or not a string.
func (r *CollectionRegistry) NaturalKey(collection string, fields map[string]any) string {
	field, ok := r.naturalKeys[collection]
	if !ok {
		return ""
	}

	raw, ok := fields[field]
	if !ok {
		return ""
	}

	value, ok := raw.(string)
	if !ok {
		value = fmt.Sprintf("%v", raw)
	}
	return strings.TrimSpace(value)
}

// ValidCollection rejects names that could not come from a sync
// client: empty, oversized, or containing anything beyond the
// lowercase snake_case the mobile schema uses.
func ValidCollection(name string) bool {
	if name == "" || len(name) > 64 {
		return false
	}
	for _, c := range name {
		if c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '_' {
			continue
		}
		return false
	}
	return true
}
