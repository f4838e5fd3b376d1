package pipeline

import "github.com/hive-corporation/iocagg/internal/core/domain"

// Normalizer converts adapter records into canonical IOCs.
type Normalizer struct {
	types domain.TypeTable
}

// NewNormalizer copies the table so later changes by the caller do not leak
// into normalization.
func NewNormalizer(table domain.TypeTable) *Normalizer {
	types := make(domain.TypeTable, len(table))
	for k, v := range table {
		types[k] = v
	}
	return &Normalizer{types: types}
}

func (n *Normalizer) Normalize(raw domain.RawIOC) domain.IOC {
	return domain.IOC{
		Type:    n.types.Canonical(raw.Type),
		Value:   raw.Value,
		Score:   raw.Score,
		Country: raw.Country,
		Source:  raw.Source,
		Tags:    uniqueTags(raw.Tags),
		Date:    raw.Date,
	}
}

func (n *Normalizer) NormalizeAll(raws []domain.RawIOC) []domain.IOC {
	out := make([]domain.IOC, 0, len(raws))
	for _, raw := range raws {
		out = append(out, n.Normalize(raw))
	}
	return out
}

// uniqueTags drops empty and repeated tags, keeping first-seen order.
func uniqueTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
