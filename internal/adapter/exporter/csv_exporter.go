package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/hive-corporation/iocagg/internal/core/domain"
)

// Header is the fixed column order of CSV exports.
var Header = []string{"type", "value", "score", "country", "source", "tags", "date"}

// TagSeparator joins tags inside the single tags column.
const TagSeparator = ";"

type CSVExporter struct{}

func NewCSVExporter() *CSVExporter { return &CSVExporter{} }

func (e *CSVExporter) Extension() string { return "csv" }

func (e *CSVExporter) Export(w io.Writer, iocs []domain.IOC) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(Header); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, ioc := range iocs {
		if err := writer.Write(csvRow(ioc)); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func csvRow(ioc domain.IOC) []string {
	var score, country, date string
	if ioc.Score != nil {
		score = strconv.Itoa(*ioc.Score)
	}
	if ioc.Country != nil {
		country = *ioc.Country
	}
	if ioc.Date != nil {
		date = *ioc.Date
	}
	return []string{
		string(ioc.Type),
		ioc.Value,
		score,
		country,
		ioc.Source,
		strings.Join(ioc.Tags, TagSeparator),
		date,
	}
}
