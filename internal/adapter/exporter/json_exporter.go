package exporter

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/hive-corporation/iocagg/internal/core/domain"
)

type JSONExporter struct{}

func NewJSONExporter() *JSONExporter { return &JSONExporter{} }

func (e *JSONExporter) Extension() string { return "json" }

// Record is the wire shape of one IOC in JSON exports. Absent fields are
// encoded as null.
type Record struct {
	Type    *string  `json:"type"`
	Value   string   `json:"value"`
	Score   *int     `json:"score"`
	Country *string  `json:"country"`
	Source  string   `json:"source"`
	Tags    []string `json:"tags"`
	Date    *string  `json:"date"`
}

func ToRecord(ioc domain.IOC) Record {
	r := Record{
		Value:   ioc.Value,
		Score:   ioc.Score,
		Country: ioc.Country,
		Source:  ioc.Source,
		Tags:    ioc.Tags,
		Date:    ioc.Date,
	}
	if ioc.HasType() {
		r.Type = domain.StringPtr(string(ioc.Type))
	}
	if r.Tags == nil {
		r.Tags = []string{}
	}
	return r
}

func ToRecords(iocs []domain.IOC) []Record {
	records := make([]Record, 0, len(iocs))
	for _, ioc := range iocs {
		records = append(records, ToRecord(ioc))
	}
	return records
}

func (e *JSONExporter) Export(w io.Writer, iocs []domain.IOC) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(ToRecords(iocs)); err != nil {
		return fmt.Errorf("failed to marshal IOCs: %w", err)
	}
	return nil
}
