package exporter

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hive-corporation/iocagg/internal/core/domain"
)

// STIXExporter exports IOCs as a STIX 2.1 bundle for SIEM ingestion
type STIXExporter struct {
	now func() time.Time
}

func NewSTIXExporter() *STIXExporter {
	return &STIXExporter{now: time.Now}
}

func (e *STIXExporter) Extension() string { return "stix.json" }

func (e *STIXExporter) Export(w io.Writer, iocs []domain.IOC) error {
	bundle := STIXBundle{
		Type:    "bundle",
		ID:      fmt.Sprintf("bundle--%s", uuid.New().String()),
		Objects: make([]STIXObject, 0, len(iocs)),
	}

	now := e.now().UTC()
	for _, ioc := range iocs {
		bundle.Objects = append(bundle.Objects, e.convertToSTIX(ioc, now))
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(bundle); err != nil {
		return fmt.Errorf("failed to marshal STIX bundle: %w", err)
	}
	return nil
}

func (e *STIXExporter) convertToSTIX(ioc domain.IOC, now time.Time) STIXObject {
	name := "Indicator"
	if ioc.HasType() {
		name = fmt.Sprintf("%s Indicator", strings.ToUpper(string(ioc.Type)))
	}

	obj := STIXObject{
		Type:           "indicator",
		SpecVersion:    "2.1",
		ID:             fmt.Sprintf("indicator--%s", uuid.New().String()),
		Created:        now.Format(time.RFC3339),
		Modified:       now.Format(time.RFC3339),
		Name:           name,
		Pattern:        buildPattern(ioc),
		PatternType:    "stix",
		ValidFrom:      now.Format(time.RFC3339),
		IndicatorTypes: []string{"malicious-activity"},
		Confidence:     ioc.Score,
		Labels:         ioc.Tags,
		ExternalReferences: []ExternalReference{
			{
				SourceName: ioc.Source,
				URL:        sourceURL(ioc.Source),
			},
		},
	}
	if ioc.Country != nil {
		obj.Country = strings.ToUpper(*ioc.Country)
	}
	if ioc.Date != nil {
		obj.FeedDate = *ioc.Date
	}
	return obj
}

// buildPattern renders a STIX 2.1 pattern for the canonical type
func buildPattern(ioc domain.IOC) string {
	value := escapePattern(ioc.Value)
	switch ioc.Type {
	case domain.IPAddress:
		if strings.Contains(ioc.Value, ":") {
			return fmt.Sprintf("[ipv6-addr:value = '%s']", value)
		}
		return fmt.Sprintf("[ipv4-addr:value = '%s']", value)
	case domain.Domain:
		return fmt.Sprintf("[domain-name:value = '%s']", value)
	case domain.URL:
		return fmt.Sprintf("[url:value = '%s']", value)
	case domain.FileHash:
		return fmt.Sprintf("[file:hashes.'%s' = '%s']", detectHashType(ioc.Value), value)
	default:
		return fmt.Sprintf("[x-custom:value = '%s']", value)
	}
}

func escapePattern(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, "'", `\'`)
}

func sourceURL(source string) string {
	urls := map[string]string{
		"AbuseIPDB":      "https://www.abuseipdb.com",
		"AlienVault OTX": "https://otx.alienvault.com",
		"URLHaus":        "https://urlhaus.abuse.ch",
		"Feodo Tracker":  "https://feodotracker.abuse.ch",
	}
	return urls[source]
}

func detectHashType(hash string) string {
	// Detect hash algorithm by length
	switch len(hash) {
	case 32:
		return "MD5"
	case 40:
		return "SHA-1"
	default:
		return "SHA-256"
	}
}

// STIX 2.1 data structures

type STIXBundle struct {
	Type    string       `json:"type"`
	ID      string       `json:"id"`
	Objects []STIXObject `json:"objects"`
}

type STIXObject struct {
	Type               string              `json:"type"`
	SpecVersion        string              `json:"spec_version"`
	ID                 string              `json:"id"`
	Created            string              `json:"created"`
	Modified           string              `json:"modified"`
	Name               string              `json:"name"`
	Pattern            string              `json:"pattern"`
	PatternType        string              `json:"pattern_type"`
	ValidFrom          string              `json:"valid_from"`
	IndicatorTypes     []string            `json:"indicator_types"`
	Confidence         *int                `json:"confidence,omitempty"`
	Labels             []string            `json:"labels,omitempty"`
	ExternalReferences []ExternalReference `json:"external_references,omitempty"`
	Country            string              `json:"x_country,omitempty"`
	FeedDate           string              `json:"x_feed_date,omitempty"`
}

type ExternalReference struct {
	SourceName string `json:"source_name"`
	URL        string `json:"url,omitempty"`
}
