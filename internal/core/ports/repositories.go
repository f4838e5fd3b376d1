package ports

import (
	"context"
	"io"

	"github.com/google/uuid"

	"github.com/hive-corporation/iocagg/internal/core/domain"
)

// FetchOptions are the feed specific knobs a provider may honor. Providers
// ignore the ones their feed has no notion of.
type FetchOptions struct {
	MinScore int
	Country  string
	Limit    int
}

type ThreatProvider interface {
	FetchIOCs(ctx context.Context, opts FetchOptions) ([]domain.RawIOC, error)
	// Key is the selector used in --sources (ex: abuseipdb).
	Key() string
	// Name is the human readable feed name stamped on every record.
	Name() string
}

type Exporter interface {
	Export(w io.Writer, iocs []domain.IOC) error
	Extension() string
}

type IOCRepository interface {
	SaveBatch(ctx context.Context, runID uuid.UUID, iocs []domain.IOC) error
}
