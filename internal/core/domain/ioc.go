package domain

import "strings"

type IOCType string

const (
	IPAddress IOCType = "ip"
	Domain    IOCType = "domain"
	URL       IOCType = "url"
	FileHash  IOCType = "hash"
)

// RawIOC is a record as a source adapter delivers it. Type still carries the
// feed's own token (ex: IPv4, SHA256) and is canonicalized by the normalizer.
type RawIOC struct {
	Type    string
	Value   string
	Score   *int
	Country *string
	Source  string
	Tags    []string
	Date    *string
}

// IOC is the canonical indicator shape shared by every stage after
// normalization. Nil pointers mean the feed did not supply the field.
type IOC struct {
	Type    IOCType  // empty when the source gave no type token
	Value   string   // the indicator itself
	Score   *int     // 0-100 confidence
	Country *string  // ISO country code as reported by the feed
	Source  string   // human readable feed name
	Tags    []string // de-duplicated per record
	Date    *string  // feed date, kept verbatim
}

// Key identifies an indicator across sources.
type Key struct {
	Type  IOCType
	Value string
}

func (i IOC) Key() Key {
	return Key{Type: i.Type, Value: i.Value}
}

func (i IOC) HasType() bool {
	return i.Type != ""
}

// CountryIs reports whether the record carries the given country code,
// ignoring case. A record without a country never matches.
func (i IOC) CountryIs(code string) bool {
	if i.Country == nil {
		return false
	}
	return strings.EqualFold(*i.Country, code)
}

func IntPtr(v int) *int { return &v }

func StringPtr(v string) *string { return &v }
