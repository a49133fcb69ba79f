package database

import (
	"fmt"
	"strings"

	"github.com/surrealdb/surrealdb.go/pkg/models"
)

// Rows extracts the record list of the first statement from a Query result.
// A single-object result is returned as a one-element list.
func Rows(results []interface{}) []map[string]interface{} {
	if len(results) == 0 {
		return nil
	}
	payload := results[0]
	if resp, ok := payload.(map[string]interface{}); ok {
		if _, wrapped := resp["status"]; wrapped {
			payload = resp["result"]
		}
	}

	switch v := payload.(type) {
	case []interface{}:
		rows := make([]map[string]interface{}, 0, len(v))
		for _, item := range v {
			if m, ok := item.(map[string]interface{}); ok {
				rows = append(rows, m)
			}
		}
		return rows
	case map[string]interface{}:
		return []map[string]interface{}{v}
	}
	return nil
}

// RecordKey returns the key part of a record id, without the table prefix
func RecordKey(id interface{}) string {
	switch v := id.(type) {
	case models.RecordID:
		return keyString(v.ID)
	case *models.RecordID:
		if v != nil {
			return keyString(v.ID)
		}
	case string:
		if i := strings.Index(v, ":"); i >= 0 {
			return trimBrackets(v[i+1:])
		}
		return v
	case map[string]interface{}:
		// {"tb": "table", "id": "xxx"} format
		if key, ok := v["id"]; ok {
			return keyString(key)
		}
	}
	return ""
}

func keyString(key interface{}) string {
	switch k := key.(type) {
	case string:
		return k
	case nil:
		return ""
	}
	return fmt.Sprint(key)
}

func trimBrackets(s string) string {
	s = strings.TrimPrefix(s, "⟨")
	s = strings.TrimSuffix(s, "⟩")
	s = strings.TrimPrefix(s, "`")
	return strings.TrimSuffix(s, "`")
}
