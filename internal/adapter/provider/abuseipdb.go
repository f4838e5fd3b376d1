package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hive-corporation/iocagg/internal/core/domain"
	"github.com/hive-corporation/iocagg/internal/core/ports"
)

const abuseIPDBBaseURL = "https://api.abuseipdb.com/api/v2"

type AbuseIPDBProvider struct {
	client  *http.Client
	baseURL string
	apiKey  string
	timeout time.Duration
}

func NewAbuseIPDBProvider(client *http.Client, apiKey string) *AbuseIPDBProvider {
	return &AbuseIPDBProvider{
		client:  clientOrDefault(client),
		baseURL: abuseIPDBBaseURL,
		apiKey:  apiKey,
		timeout: 20 * time.Second,
	}
}

// WithBaseURL points the provider at another API root (tests, proxies).
func (p *AbuseIPDBProvider) WithBaseURL(baseURL string) *AbuseIPDBProvider {
	p.baseURL = strings.TrimSuffix(baseURL, "/")
	return p
}

func (p *AbuseIPDBProvider) Key() string { return "abuseipdb" }

func (p *AbuseIPDBProvider) Name() string { return "AbuseIPDB" }

type abuseBlacklistResponse struct {
	Data []abuseBlacklistEntry `json:"data"`
}

type abuseBlacklistEntry struct {
	IPAddress            string `json:"ipAddress"`
	CountryCode          string `json:"countryCode"`
	AbuseConfidenceScore int    `json:"abuseConfidenceScore"`
	LastReportedAt       string `json:"lastReportedAt"`
}

func (p *AbuseIPDBProvider) FetchIOCs(ctx context.Context, opts ports.FetchOptions) ([]domain.RawIOC, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("AbuseIPDB: %w (set ABUSEIPDB_API_KEY)", domain.ErrMissingCredentials)
	}

	params := url.Values{}
	params.Set("confidenceMinimum", strconv.Itoa(opts.MinScore))

	body, cancel, err := get(ctx, p.client, p.baseURL+"/blacklist?"+params.Encode(), p.timeout, map[string]string{
		"Key":    p.apiKey,
		"Accept": "application/json",
	})
	if err != nil {
		return nil, fmt.Errorf("AbuseIPDB: %w", err)
	}
	defer cancel()
	defer body.Close()

	var data abuseBlacklistResponse
	if err := json.NewDecoder(body).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode AbuseIPDB json: %w", err)
	}

	var iocs []domain.RawIOC
	for _, entry := range data.Data {
		if entry.IPAddress == "" {
			continue
		}
		if opts.Country != "" && !strings.EqualFold(entry.CountryCode, opts.Country) {
			continue
		}

		ioc := domain.RawIOC{
			Type:   "ip",
			Value:  entry.IPAddress,
			Score:  domain.IntPtr(entry.AbuseConfidenceScore),
			Source: p.Name(),
			Tags:   []string{},
		}
		if entry.CountryCode != "" {
			ioc.Country = domain.StringPtr(entry.CountryCode)
		}
		iocs = append(iocs, ioc)

		if opts.Limit > 0 && len(iocs) >= opts.Limit {
			break
		}
	}

	return iocs, nil
}
