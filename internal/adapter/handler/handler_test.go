package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/hive-corporation/iocagg/internal/core/domain"
	"github.com/hive-corporation/iocagg/internal/core/ports"
	"github.com/hive-corporation/iocagg/internal/core/service"
)

type staticProvider struct {
	key, name string
	iocs      []domain.RawIOC
	err       error
}

func (p staticProvider) Key() string  { return p.key }
func (p staticProvider) Name() string { return p.name }
func (p staticProvider) FetchIOCs(context.Context, ports.FetchOptions) ([]domain.RawIOC, error) {
	return p.iocs, p.err
}

func testAggregator() *service.Aggregator {
	us := domain.StringPtr("US")
	providers := []ports.ThreatProvider{
		staticProvider{key: "abuseipdb", name: "AbuseIPDB", iocs: []domain.RawIOC{
			{Type: "ip", Value: "198.51.100.1", Score: domain.IntPtr(95), Country: us, Source: "AbuseIPDB"},
			{Type: "ip", Value: "198.51.100.2", Score: domain.IntPtr(92), Country: us, Source: "AbuseIPDB"},
		}},
		staticProvider{key: "otx", name: "AlienVault OTX", iocs: []domain.RawIOC{
			{Type: "IPv4", Value: "198.51.100.1", Source: "AlienVault OTX"},
			{Type: "hostname", Value: "c2.example", Source: "AlienVault OTX"},
		}},
		staticProvider{key: "urlhaus", name: "URLHaus", err: domain.ErrUnexpectedStatus},
	}
	return service.NewAggregator(providers, domain.DefaultTypeTable(), 0, zap.NewNop())
}

func newTestRouter(token string) http.Handler {
	h := NewRestHandler(testAggregator(), DefaultQueryDefaults(), time.Second, zap.NewNop())
	return NewRouter(h, token, zap.NewNop())
}

func TestHealth(t *testing.T) {
	w := httptest.NewRecorder()
	newTestRouter("secret").ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, []any{"abuseipdb", "otx", "urlhaus"}, body["sources"])
}

func TestListIOCs_JSON(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/iocs?sources=abuseipdb,otx,urlhaus&limit=10", nil)
	newTestRouter("").ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body resultResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotEmpty(t, body.RunID)
	assert.Equal(t, 3, body.Count)
	require.Len(t, body.IOCs, 3)
	assert.Equal(t, "AbuseIPDB", body.IOCs[0].Source)
	assert.Equal(t, "domain", *body.IOCs[2].Type)

	require.Len(t, body.Sources, 3)
	assert.Equal(t, 2, body.Sources[0].Count)
	assert.NotEmpty(t, body.Sources[2].Error)
}

func TestListIOCs_Filters(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/iocs?country=us&type=ip&limit=1", nil)
	newTestRouter("").ServeHTTP(w, req)

	var body resultResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.IOCs, 1)
	assert.Equal(t, "198.51.100.1", body.IOCs[0].Value)
}

func TestListIOCs_CSV(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/iocs?format=csv", nil)
	newTestRouter("").ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.NotEmpty(t, w.Header().Get("X-Run-ID"))
	assert.True(t, strings.HasPrefix(w.Body.String(), "type,value,score,country,source,tags,date\n"))
}

func TestListIOCs_BadRequests(t *testing.T) {
	tests := []string{
		"/api/v1/iocs?limit=ten",
		"/api/v1/iocs?min_score=high",
		"/api/v1/iocs?format=xml",
	}
	for _, target := range tests {
		t.Run(target, func(t *testing.T) {
			w := httptest.NewRecorder()
			newTestRouter("").ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestAuthMiddleware(t *testing.T) {
	router := newTestRouter("secret")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/iocs", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/iocs", nil)
	req.Header.Set("Authorization", "Bearer secret")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

type failingResponseWriter struct {
	*httptest.ResponseRecorder
}

func (f failingResponseWriter) Write([]byte) (int, error) {
	return 0, errors.New("write failed")
}

func TestWriteJSON_WriteFailure(t *testing.T) {
	h := NewRestHandler(testAggregator(), DefaultQueryDefaults(), time.Second, zap.NewNop())
	w := failingResponseWriter{httptest.NewRecorder()}

	assert.NotPanics(t, func() {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestWriteJSON_EncodeFailure(t *testing.T) {
	h := NewRestHandler(testAggregator(), DefaultQueryDefaults(), time.Second, zap.NewNop())
	w := httptest.NewRecorder()

	h.writeJSON(w, http.StatusOK, make(chan int))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestQueryParams_Defaults(t *testing.T) {
	q, err := queryParams{}.toQuery(DefaultQueryDefaults())
	require.NoError(t, err)

	assert.Equal(t, map[string]bool{"abuseipdb": true, "otx": true}, q.Sources)
	assert.Equal(t, 90, q.MinScore)
	assert.Equal(t, 10, q.Limit)
}

func dialBufconn(t *testing.T) *grpc.ClientConn {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer()
	RegisterAggregatorServer(s, NewGrpcServer(testAggregator(), DefaultQueryDefaults(), zap.NewNop()))
	healthpb.RegisterHealthServer(s, health.NewServer())

	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestGrpcAggregate(t *testing.T) {
	conn := dialBufconn(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := structpb.NewStruct(map[string]any{
		"sources": "abuseipdb,otx",
		"country": "US",
		"limit":   5,
	})
	require.NoError(t, err)

	resp := &structpb.Struct{}
	require.NoError(t, conn.Invoke(ctx, AggregateMethod, req, resp))

	fields := resp.GetFields()
	assert.Equal(t, float64(2), fields["count"].GetNumberValue())

	iocs := fields["iocs"].GetListValue().GetValues()
	require.Len(t, iocs, 2)
	first := iocs[0].GetStructValue().GetFields()
	assert.Equal(t, "198.51.100.1", first["value"].GetStringValue())
	assert.Equal(t, float64(95), first["score"].GetNumberValue())
}

func TestGrpcAggregate_InvalidArgument(t *testing.T) {
	conn := dialBufconn(t)

	req, err := structpb.NewStruct(map[string]any{"limit": "lots"})
	require.NoError(t, err)

	err = conn.Invoke(context.Background(), AggregateMethod, req, &structpb.Struct{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestGrpcHealth(t *testing.T) {
	conn := dialBufconn(t)

	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}
