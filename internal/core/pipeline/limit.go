package pipeline

import "github.com/hive-corporation/iocagg/internal/core/domain"

// Limit returns the first n records. n <= 0 yields an empty slice.
func Limit(iocs []domain.IOC, n int) []domain.IOC {
	if n <= 0 {
		return []domain.IOC{}
	}
	if n > len(iocs) {
		n = len(iocs)
	}
	out := make([]domain.IOC, n)
	copy(out, iocs[:n])
	return out
}
