package domain

import "strings"

// TypeTable maps feed specific type tokens onto canonical IOC types.
type TypeTable map[string]IOCType

// DefaultTypeTable returns a fresh copy of the canonical mapping. Callers
// own the returned map.
func DefaultTypeTable() TypeTable {
	return TypeTable{
		"IPv4":     IPAddress,
		"IPv6":     IPAddress,
		"domain":   Domain,
		"hostname": Domain,
		"URL":      URL,
		"MD5":      FileHash,
		"SHA1":     FileHash,
		"SHA256":   FileHash,
	}
}

// Canonical resolves a raw token. Unknown tokens pass through lower-cased,
// an empty token stays empty (absent type).
func (t TypeTable) Canonical(raw string) IOCType {
	if raw == "" {
		return ""
	}
	if mapped, ok := t[raw]; ok {
		return mapped
	}
	return IOCType(strings.ToLower(raw))
}
