package exporter

import (
	"fmt"
	"io"
	"strings"

	"github.com/hive-corporation/iocagg/internal/core/domain"
)

// CEFExporter exports IOCs in Common Event Format for SIEM ingestion
type CEFExporter struct{}

func NewCEFExporter() *CEFExporter { return &CEFExporter{} }

func (e *CEFExporter) Extension() string { return "cef" }

// Export writes one CEF line per IOC.
// Format: CEF:Version|Device Vendor|Device Product|Device Version|Signature ID|Name|Severity|Extension
func (e *CEFExporter) Export(w io.Writer, iocs []domain.IOC) error {
	for _, ioc := range iocs {
		if _, err := io.WriteString(w, formatCEF(ioc)+"\n"); err != nil {
			return fmt.Errorf("failed to write CEF line: %w", err)
		}
	}
	return nil
}

func formatCEF(ioc domain.IOC) string {
	iocType := string(ioc.Type)
	if !ioc.HasType() {
		iocType = "unknown"
	}

	name := fmt.Sprintf("%s IOC Detected", strings.ToUpper(iocType))

	// CEF Extensions (key=value pairs)
	extensions := []string{
		fmt.Sprintf("src=%s", escapeExtension(ioc.Value)),
		"cs1Label=Source",
		fmt.Sprintf("cs1=%s", escapeExtension(ioc.Source)),
		"cs2Label=Tags",
		fmt.Sprintf("cs2=%s", escapeExtension(strings.Join(ioc.Tags, ","))),
	}
	if ioc.Score != nil {
		extensions = append(extensions, "cn1Label=ConfidenceScore", fmt.Sprintf("cn1=%d", *ioc.Score))
	}
	if ioc.Country != nil {
		extensions = append(extensions, fmt.Sprintf("cs3Label=Country cs3=%s", escapeExtension(*ioc.Country)))
	}
	if ioc.Date != nil {
		extensions = append(extensions, fmt.Sprintf("cs4Label=FeedDate cs4=%s", escapeExtension(*ioc.Date)))
	}

	return fmt.Sprintf("CEF:0|Hive|IOCAggregator|1.0|%s|%s|%d|%s",
		escapeHeader(iocType), escapeHeader(name), calculateSeverity(ioc.Score), strings.Join(extensions, " "))
}

// calculateSeverity maps confidence (0-100) to CEF severity (0-10).
// Feeds without a score get a neutral 5.
func calculateSeverity(score *int) int {
	if score == nil {
		return 5
	}
	switch {
	case *score >= 90:
		return 10 // Critical
	case *score >= 80:
		return 8 // High
	case *score >= 70:
		return 6 // Medium
	case *score >= 60:
		return 4 // Low
	default:
		return 2 // Info
	}
}

func escapeHeader(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	return strings.ReplaceAll(s, "|", "\\|")
}

func escapeExtension(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "=", "\\=")
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, "\r", "\\r")
	return s
}
