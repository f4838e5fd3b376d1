package pipeline

import "github.com/hive-corporation/iocagg/internal/core/domain"

// Criteria holds the optional filters. Zero values disable a filter.
type Criteria struct {
	Type    domain.IOCType
	Country string
}

func (c Criteria) Match(ioc domain.IOC) bool {
	if c.Type != "" && ioc.Type != c.Type {
		return false
	}
	if c.Country != "" && !ioc.CountryIs(c.Country) {
		return false
	}
	return true
}

// Filter must run after Dedupe: a duplicate removed by a filter must never
// hold the slot of the record that survives dedup.
func Filter(iocs []domain.IOC, c Criteria) []domain.IOC {
	if iocs == nil {
		return nil
	}
	out := make([]domain.IOC, 0, len(iocs))
	for _, ioc := range iocs {
		if c.Match(ioc) {
			out = append(out, ioc)
		}
	}
	return out
}
