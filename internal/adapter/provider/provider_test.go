package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hive-corporation/iocagg/internal/core/domain"
	"github.com/hive-corporation/iocagg/internal/core/ports"
)

const abuseBlacklistJSON = `{
  "meta": {"generatedAt": "2025-01-01T00:00:00+00:00"},
  "data": [
    {"ipAddress": "1.1.1.1", "countryCode": "US", "abuseConfidenceScore": 100, "lastReportedAt": "2025-01-01T00:00:00+00:00"},
    {"ipAddress": "2.2.2.2", "countryCode": "de", "abuseConfidenceScore": 97},
    {"ipAddress": "", "countryCode": "US", "abuseConfidenceScore": 99},
    {"ipAddress": "3.3.3.3", "countryCode": "us", "abuseConfidenceScore": 91},
    {"ipAddress": "4.4.4.4", "abuseConfidenceScore": 90}
  ]
}`

func TestAbuseIPDB_FetchIOCs(t *testing.T) {
	var gotKey, gotAccept, gotMin string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/blacklist", r.URL.Path)
		gotKey = r.Header.Get("Key")
		gotAccept = r.Header.Get("Accept")
		gotMin = r.URL.Query().Get("confidenceMinimum")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(abuseBlacklistJSON))
	}))
	defer srv.Close()

	p := NewAbuseIPDBProvider(srv.Client(), "secret").WithBaseURL(srv.URL)

	iocs, err := p.FetchIOCs(context.Background(), ports.FetchOptions{MinScore: 90, Limit: 100})
	require.NoError(t, err)

	assert.Equal(t, "secret", gotKey)
	assert.Equal(t, "application/json", gotAccept)
	assert.Equal(t, "90", gotMin)

	require.Len(t, iocs, 4)
	assert.Equal(t, "ip", iocs[0].Type)
	assert.Equal(t, "1.1.1.1", iocs[0].Value)
	assert.Equal(t, 100, *iocs[0].Score)
	assert.Equal(t, "US", *iocs[0].Country)
	assert.Equal(t, "AbuseIPDB", iocs[0].Source)
	assert.Nil(t, iocs[0].Date)
	assert.Empty(t, iocs[0].Tags)
	assert.Nil(t, iocs[3].Country)
}

func TestAbuseIPDB_CountryAndLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(abuseBlacklistJSON))
	}))
	defer srv.Close()

	p := NewAbuseIPDBProvider(srv.Client(), "secret").WithBaseURL(srv.URL)

	iocs, err := p.FetchIOCs(context.Background(), ports.FetchOptions{Country: "US", Limit: 10})
	require.NoError(t, err)
	require.Len(t, iocs, 2)
	assert.Equal(t, "1.1.1.1", iocs[0].Value)
	assert.Equal(t, "3.3.3.3", iocs[1].Value)

	iocs, err = p.FetchIOCs(context.Background(), ports.FetchOptions{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, iocs, 1)
}

func TestAbuseIPDB_MissingKey(t *testing.T) {
	p := NewAbuseIPDBProvider(nil, "")

	_, err := p.FetchIOCs(context.Background(), ports.FetchOptions{})
	assert.ErrorIs(t, err, domain.ErrMissingCredentials)
}

func TestAbuseIPDB_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errors":[{"detail":"Authentication failed"}]}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := NewAbuseIPDBProvider(srv.Client(), "bad").WithBaseURL(srv.URL)

	_, err := p.FetchIOCs(context.Background(), ports.FetchOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnexpectedStatus)
	assert.Contains(t, err.Error(), "401")
}

const otxExportCSV = `# AlienVault OTX export
type,indicator,created,description
IPv4,1.1.1.1,2025-01-02T10:00:00,scanner
domain,evil.example,2025-01-03T11:00:00,phishing
URL,,2025-01-03T11:00:00,empty value
SHA256,aabbcc,,no date
short,row
`

func TestOTX_FetchIOCs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "otx-key", r.Header.Get("X-OTX-API-KEY"))
		assert.Equal(t, "text/csv", r.Header.Get("Accept"))
		_, _ = w.Write([]byte(otxExportCSV))
	}))
	defer srv.Close()

	p := NewOTXProvider(srv.Client(), "otx-key").WithURL(srv.URL)

	iocs, err := p.FetchIOCs(context.Background(), ports.FetchOptions{Limit: 100})
	require.NoError(t, err)
	require.Len(t, iocs, 3)

	assert.Equal(t, "IPv4", iocs[0].Type)
	assert.Equal(t, "1.1.1.1", iocs[0].Value)
	assert.Equal(t, "2025-01-02T10:00:00", *iocs[0].Date)
	assert.Nil(t, iocs[0].Score)
	assert.Nil(t, iocs[0].Country)
	assert.Equal(t, "AlienVault OTX", iocs[0].Source)

	assert.Equal(t, "domain", iocs[1].Type)
	assert.Equal(t, "SHA256", iocs[2].Type)
	assert.Nil(t, iocs[2].Date)
}

func TestOTX_UnterminatedQuoteKeepsLaterRows(t *testing.T) {
	feed := "IPv4,1.1.1.1,2025,\"unterminated desc\nIPv4,2.2.2.2,2025,ok\ndomain,evil.example,2025,ok\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(feed))
	}))
	defer srv.Close()

	iocs, err := NewOTXProvider(srv.Client(), "otx-key").WithURL(srv.URL).
		FetchIOCs(context.Background(), ports.FetchOptions{Limit: 100})
	require.NoError(t, err)

	values := make([]string, 0, len(iocs))
	for _, ioc := range iocs {
		values = append(values, ioc.Value)
	}
	assert.Equal(t, []string{"1.1.1.1", "2.2.2.2", "evil.example"}, values)
}

func TestOTX_MissingKey(t *testing.T) {
	_, err := NewOTXProvider(nil, "").FetchIOCs(context.Background(), ports.FetchOptions{})
	assert.ErrorIs(t, err, domain.ErrMissingCredentials)
}

const urlHausRecentCSV = `################################################################
# abuse.ch URLhaus Database Dump (CSV - recent URLs)            #
################################################################
#
# id,dateadded,url,url_status,last_online,threat,tags,urlhaus_link,reporter
"3001","2025-01-05 10:00:00","http://bad.example/bin.sh","online","2025-01-05 10:00:00","malware_download","elf,mips,elf","https://urlhaus.abuse.ch/url/3001/","anon"
"3002","2025-01-05 09:00:00","http://gone.example/a.exe","offline","","malware_download","exe","https://urlhaus.abuse.ch/url/3002/","anon"
"3003","2025-01-05 08:00:00","","online","","malware_download","","https://urlhaus.abuse.ch/url/3003/","anon"
"3004","2025-01-05 07:00:00","http://198.51.100.7/x","online","","malware_download","32-bit;arm","https://urlhaus.abuse.ch/url/3004/","anon"
`

func TestURLHaus_FetchIOCs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(urlHausRecentCSV))
	}))
	defer srv.Close()

	p := NewURLHausProvider(srv.Client(), true).WithURL(srv.URL)

	iocs, err := p.FetchIOCs(context.Background(), ports.FetchOptions{Limit: 100})
	require.NoError(t, err)
	require.Len(t, iocs, 2)

	assert.Equal(t, "url", iocs[0].Type)
	assert.Equal(t, "http://bad.example/bin.sh", iocs[0].Value)
	assert.Equal(t, "2025-01-05 10:00:00", *iocs[0].Date)
	assert.Equal(t, []string{"malware_download", "online", "elf", "mips", "elf"}, iocs[0].Tags)
	assert.Equal(t, "URLHaus", iocs[0].Source)
	assert.Nil(t, iocs[0].Score)

	assert.Equal(t, []string{"malware_download", "online", "32-bit", "arm"}, iocs[1].Tags)
}

func TestURLHaus_IncludesOfflineWhenNotOnlineOnly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(urlHausRecentCSV))
	}))
	defer srv.Close()

	p := NewURLHausProvider(srv.Client(), false).WithURL(srv.URL)

	iocs, err := p.FetchIOCs(context.Background(), ports.FetchOptions{Limit: 2})
	require.NoError(t, err)
	require.Len(t, iocs, 2)
	assert.Equal(t, "http://gone.example/a.exe", iocs[1].Value)
}

func TestURLHaus_BareHeaderIsSkipped(t *testing.T) {
	feed := "id,dateadded,url,url_status,last_online,threat,tags,urlhaus_link,reporter\n" +
		`"3001","2025-01-05 10:00:00","http://bad.example/bin.sh","online","","malware_download","elf","https://urlhaus.abuse.ch/url/3001/","anon"` + "\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(feed))
	}))
	defer srv.Close()

	iocs, err := NewURLHausProvider(srv.Client(), false).WithURL(srv.URL).
		FetchIOCs(context.Background(), ports.FetchOptions{Limit: 100})
	require.NoError(t, err)
	require.Len(t, iocs, 1)
	assert.Equal(t, "http://bad.example/bin.sh", iocs[0].Value)
}

func TestURLHaus_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewURLHausProvider(srv.Client(), true).WithURL(srv.URL).FetchIOCs(context.Background(), ports.FetchOptions{})
	assert.ErrorIs(t, err, domain.ErrUnexpectedStatus)
}

func TestSimpleList_FetchIOCs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("# Feodo Tracker\n\n203.0.113.5\n203.0.113.6 # inline\nnot-an-ip\n"))
	}))
	defer srv.Close()

	p := NewFeodoProvider(srv.Client()).WithURL(srv.URL)

	iocs, err := p.FetchIOCs(context.Background(), ports.FetchOptions{Limit: 10})
	require.NoError(t, err)
	require.Len(t, iocs, 2)
	assert.Equal(t, "feodo", p.Key())
	assert.Equal(t, "203.0.113.6", iocs[1].Value)
	assert.Equal(t, []string{"botnet_c2"}, iocs[0].Tags)
	assert.Equal(t, "Feodo Tracker", iocs[0].Source)
}

func TestFetch_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewFeodoProvider(nil).WithURL(url).FetchIOCs(context.Background(), ports.FetchOptions{})
	assert.Error(t, err)
}

func TestDefault_FetchOrder(t *testing.T) {
	providers := Default(nil, Credentials{}, true)

	keys := make([]string, 0, len(providers))
	for _, p := range providers {
		keys = append(keys, p.Key())
	}
	assert.Equal(t, []string{"abuseipdb", "otx", "urlhaus", "feodo"}, keys)
}
