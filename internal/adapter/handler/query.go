package handler

import (
	"fmt"
	"strconv"

	"github.com/hive-corporation/iocagg/internal/core/domain"
	"github.com/hive-corporation/iocagg/internal/core/service"
)

// Defaults applied when a request leaves a parameter out.
type QueryDefaults struct {
	Sources  string
	MinScore int
	Limit    int
}

func DefaultQueryDefaults() QueryDefaults {
	return QueryDefaults{Sources: "abuseipdb,otx", MinScore: 90, Limit: 10}
}

// queryParams is the transport neutral form of an aggregation request.
type queryParams struct {
	Sources  string
	Type     string
	Country  string
	MinScore string
	Limit    string
}

func (p queryParams) toQuery(d QueryDefaults) (service.Query, error) {
	sources := p.Sources
	if sources == "" {
		sources = d.Sources
	}

	minScore, err := intOr(p.MinScore, d.MinScore)
	if err != nil {
		return service.Query{}, fmt.Errorf("invalid 'min_score' parameter: %w", err)
	}

	limit, err := intOr(p.Limit, d.Limit)
	if err != nil {
		return service.Query{}, fmt.Errorf("invalid 'limit' parameter: %w", err)
	}

	return service.Query{
		Sources:  service.ParseSources(sources),
		MinScore: minScore,
		Country:  p.Country,
		Type:     domain.IOCType(p.Type),
		Limit:    limit,
	}, nil
}

func intOr(raw string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
