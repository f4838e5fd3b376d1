package provider

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hive-corporation/iocagg/internal/core/domain"
	"github.com/hive-corporation/iocagg/internal/core/ports"
)

const otxExportURL = "https://otx.alienvault.com/api/v1/indicators/export"

// Descriptions can be long; lines past this size fail the fetch.
const otxMaxLine = 1024 * 1024

type OTXProvider struct {
	client  *http.Client
	url     string
	apiKey  string
	timeout time.Duration
}

func NewOTXProvider(client *http.Client, apiKey string) *OTXProvider {
	return &OTXProvider{
		client:  clientOrDefault(client),
		url:     otxExportURL,
		apiKey:  apiKey,
		timeout: 30 * time.Second,
	}
}

func (p *OTXProvider) WithURL(exportURL string) *OTXProvider {
	p.url = exportURL
	return p
}

func (p *OTXProvider) Key() string { return "otx" }

func (p *OTXProvider) Name() string { return "AlienVault OTX" }

// FetchIOCs reads the CSV export. OTX has no score or country, so only the
// fetch cap from opts applies.
func (p *OTXProvider) FetchIOCs(ctx context.Context, opts ports.FetchOptions) ([]domain.RawIOC, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("AlienVault OTX: %w (set ALIENVAULT_API_KEY)", domain.ErrMissingCredentials)
	}

	body, cancel, err := get(ctx, p.client, p.url, p.timeout, map[string]string{
		"X-OTX-API-KEY": p.apiKey,
		"Accept":        "text/csv",
	})
	if err != nil {
		return nil, fmt.Errorf("AlienVault OTX: %w", err)
	}
	defer cancel()
	defer body.Close()

	var iocs []domain.RawIOC

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), otxMaxLine)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// each line gets its own reader so a broken quote cannot swallow the rows after it
		record, err := parseOTXLine(line)
		if err != nil {
			continue
		}
		// 0: type, 1: indicator, 2: created, 3+: description...
		if len(record) < 4 {
			continue
		}

		indicatorType := strings.TrimSpace(record[0])
		value := strings.TrimSpace(record[1])
		if value == "" || isOTXHeader(indicatorType) {
			continue
		}

		ioc := domain.RawIOC{
			Type:   indicatorType,
			Value:  value,
			Source: p.Name(),
			Tags:   []string{},
		}
		if date := strings.TrimSpace(record[2]); date != "" {
			ioc.Date = domain.StringPtr(date)
		}
		iocs = append(iocs, ioc)

		if opts.Limit > 0 && len(iocs) >= opts.Limit {
			break
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading OTX export: %w", err)
	}

	return iocs, nil
}

func parseOTXLine(line string) ([]string, error) {
	reader := csv.NewReader(strings.NewReader(line))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	return reader.Read()
}

func isOTXHeader(firstColumn string) bool {
	switch strings.ToLower(firstColumn) {
	case "type", "indicator_type":
		return true
	}
	return false
}
