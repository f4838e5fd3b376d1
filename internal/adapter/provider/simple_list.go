package provider

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hive-corporation/iocagg/internal/core/domain"
	"github.com/hive-corporation/iocagg/internal/core/ports"
)

const feodoIPBlocklist = "https://feodotracker.abuse.ch/downloads/ipblocklist.txt"

// SimpleListProvider reads plain text IP blocklists, one address per line.
type SimpleListProvider struct {
	client       *http.Client
	key          string
	providerName string
	url          string
	threatType   string
	timeout      time.Duration
}

func NewSimpleListProvider(client *http.Client, key, providerName, url, threatType string) *SimpleListProvider {
	return &SimpleListProvider{
		client:       clientOrDefault(client),
		key:          key,
		providerName: providerName,
		url:          url,
		threatType:   threatType,
		timeout:      30 * time.Second,
	}
}

// NewFeodoProvider is the abuse.ch Feodo Tracker botnet C2 list.
func NewFeodoProvider(client *http.Client) *SimpleListProvider {
	return NewSimpleListProvider(client, "feodo", "Feodo Tracker", feodoIPBlocklist, "botnet_c2")
}

func (p *SimpleListProvider) WithURL(listURL string) *SimpleListProvider {
	p.url = listURL
	return p
}

func (p *SimpleListProvider) Key() string { return p.key }

func (p *SimpleListProvider) Name() string { return p.providerName }

func (p *SimpleListProvider) FetchIOCs(ctx context.Context, opts ports.FetchOptions) ([]domain.RawIOC, error) {
	body, cancel, err := get(ctx, p.client, p.url, p.timeout, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.providerName, err)
	}
	defer cancel()
	defer body.Close()

	var iocs []domain.RawIOC
	scanner := bufio.NewScanner(body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
			continue
		}

		if idx := strings.Index(line, "#"); idx != -1 {
			line = strings.TrimSpace(line[:idx])
		}

		if !strings.Contains(line, ".") {
			continue
		}

		iocs = append(iocs, domain.RawIOC{
			Type:   "ip",
			Value:  line,
			Source: p.providerName,
			Tags:   []string{p.threatType},
		})

		if opts.Limit > 0 && len(iocs) >= opts.Limit {
			break
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanner error: %w", err)
	}

	return iocs, nil
}
