package pipeline

import "github.com/hive-corporation/iocagg/internal/core/domain"

// Dedupe keeps the first record for every (type, value) pair. Later
// duplicates are dropped whole, their tags and scores are not merged.
func Dedupe(iocs []domain.IOC) []domain.IOC {
	seen := make(map[domain.Key]struct{}, len(iocs))
	out := make([]domain.IOC, 0, len(iocs))
	for _, ioc := range iocs {
		key := ioc.Key()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, ioc)
	}
	return out
}
