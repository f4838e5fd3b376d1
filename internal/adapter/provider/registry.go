package provider

import (
	"net/http"

	"github.com/hive-corporation/iocagg/internal/core/ports"
)

type Credentials struct {
	AbuseIPDBKey string
	OTXKey       string
}

// Default returns every supported feed in fetch order. The order decides
// which record survives when two feeds report the same indicator.
func Default(client *http.Client, creds Credentials, urlhausOnlineOnly bool) []ports.ThreatProvider {
	return []ports.ThreatProvider{
		NewAbuseIPDBProvider(client, creds.AbuseIPDBKey),
		NewOTXProvider(client, creds.OTXKey),
		NewURLHausProvider(client, urlhausOnlineOnly),
		NewFeodoProvider(client),
	}
}
