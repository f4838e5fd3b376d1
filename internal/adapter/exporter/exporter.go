package exporter

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hive-corporation/iocagg/internal/core/domain"
	"github.com/hive-corporation/iocagg/internal/core/ports"
)

// ResultsBaseName is the file name (without extension) used by SaveToFile.
const ResultsBaseName = "ioc_results"

// Formats lists every supported --save-to value.
var Formats = []string{"json", "csv", "stix", "cef"}

func ForFormat(format string) (ports.Exporter, error) {
	switch strings.ToLower(format) {
	case "json":
		return NewJSONExporter(), nil
	case "csv":
		return NewCSVExporter(), nil
	case "stix":
		return NewSTIXExporter(), nil
	case "cef":
		return NewCEFExporter(), nil
	default:
		return nil, fmt.Errorf("%w: %q (use one of %s)", domain.ErrUnknownFormat, format, strings.Join(Formats, ", "))
	}
}

// SaveToFile writes iocs to <dir>/ioc_results.<ext> and returns the path.
func SaveToFile(dir string, exp ports.Exporter, iocs []domain.IOC) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(dir, ResultsBaseName+"."+exp.Extension())
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}

	if err := exp.Export(f, iocs); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to export results: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", path, err)
	}

	return path, nil
}
