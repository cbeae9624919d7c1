package types

import "strings"

// AttributeMap holds a variant's attribute set (e.g. size → "l",
// color → "red"). Keys and values are normalized to lowercase when a variant
// is written, so equality is a plain map comparison for rows written by this
// codebase. Rows imported from older catalogs may still carry mixed casing,
// which the inventory resolver tolerates at match time.
type AttributeMap map[string]string

// NormalizeAttributes lowercases and trims every key and value.
func NormalizeAttributes(in map[string]string) AttributeMap {
	if len(in) == 0 {
		return nil
	}
	out := make(AttributeMap, len(in))
	for k, v := range in {
		key := strings.ToLower(strings.TrimSpace(k))
		if key == "" {
			continue
		}
		out[key] = strings.ToLower(strings.TrimSpace(v))
	}
	return out
}

// Lookup returns the value for key trying an exact match first and a
// case-insensitive match second.
func (a AttributeMap) Lookup(key string) (string, bool) {
	if v, ok := a[key]; ok {
		return v, true
	}
	for k, v := range a {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return "", false
}

// ContainsValue reports whether any attribute value equals v ignoring case.
func (a AttributeMap) ContainsValue(v string) bool {
	for _, candidate := range a {
		if strings.EqualFold(candidate, v) {
			return true
		}
	}
	return false
}
