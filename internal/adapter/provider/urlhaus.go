package provider

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hive-corporation/iocagg/internal/core/domain"
	"github.com/hive-corporation/iocagg/internal/core/ports"
)

const urlHausCSV = "https://urlhaus.abuse.ch/downloads/csv_recent/"

type URLHausProvider struct {
	client     *http.Client
	url        string
	onlineOnly bool
	timeout    time.Duration
}

func NewURLHausProvider(client *http.Client, onlineOnly bool) *URLHausProvider {
	return &URLHausProvider{
		client:     clientOrDefault(client),
		url:        urlHausCSV,
		onlineOnly: onlineOnly,
		timeout:    30 * time.Second,
	}
}

func (p *URLHausProvider) WithURL(feedURL string) *URLHausProvider {
	p.url = feedURL
	return p
}

func (p *URLHausProvider) Key() string { return "urlhaus" }

func (p *URLHausProvider) Name() string { return "URLHaus" }

func (p *URLHausProvider) FetchIOCs(ctx context.Context, opts ports.FetchOptions) ([]domain.RawIOC, error) {
	body, cancel, err := get(ctx, p.client, p.url, p.timeout, nil)
	if err != nil {
		return nil, fmt.Errorf("URLHaus: %w", err)
	}
	defer cancel()
	defer body.Close()

	reader := csv.NewReader(body)
	reader.Comment = '#'
	reader.FieldsPerRecord = -1

	var iocs []domain.RawIOC

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading csv line: %w", err)
		}
		// 0: id, 1: dateadded, 2: url, 3: url_status, 4: last_online,
		// 5: threat, 6: tags, 7: urlhaus_link, 8: reporter
		if len(record) < 7 {
			continue
		}

		value := strings.TrimSpace(record[2])
		if value == "" || isURLHausHeader(value) {
			continue
		}

		status := strings.ToLower(strings.TrimSpace(record[3]))
		if p.onlineOnly && status != "" && status != "online" {
			continue
		}

		threat := strings.TrimSpace(record[5])
		tags := append([]string{threat, status}, splitTags(record[6])...)

		ioc := domain.RawIOC{
			Type:   "url",
			Value:  value,
			Source: p.Name(),
			Tags:   tags,
		}
		if date := strings.TrimSpace(record[1]); date != "" {
			ioc.Date = domain.StringPtr(date)
		}
		iocs = append(iocs, ioc)

		if opts.Limit > 0 && len(iocs) >= opts.Limit {
			break
		}
	}

	return iocs, nil
}

// The dump ships its header commented out, but a bare one must not become an IOC.
func isURLHausHeader(urlColumn string) bool {
	return strings.EqualFold(urlColumn, "url")
}

// splitTags accepts both comma and semicolon separated lists.
func splitTags(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';'
	})
	tags := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			tags = append(tags, f)
		}
	}
	return tags
}
