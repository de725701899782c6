package metrics

import (
	"context"
	stderr "errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/objectfs/objclient/internal/cache"
	"github.com/objectfs/objclient/internal/multipart"
	"github.com/objectfs/objclient/internal/signing"
	"github.com/objectfs/objclient/internal/storage/s3"
	"github.com/objectfs/objclient/pkg/errors"
)

var (
	_ s3.Recorder        = (*Collector)(nil)
	_ multipart.Observer = (*Collector)(nil)
)

func TestNewCollector(t *testing.T) {
	t.Parallel()

	t.Run("with nil config uses defaults", func(t *testing.T) {
		collector, err := NewCollector(nil, nil)
		require.NoError(t, err)
		assert.Equal(t, "/metrics", collector.config.Path)
		assert.Equal(t, "objclient", collector.config.Namespace)
		assert.NotNil(t, collector.Registry())
	})

	t.Run("const labels are applied", func(t *testing.T) {
		collector, err := NewCollector(&Config{Namespace: "test", Labels: map[string]string{"env": "ci"}}, nil)
		require.NoError(t, err)
		collector.RecordRequest("PutObject", time.Millisecond, nil)

		expected := `
# HELP test_requests_total Total number of client operations
# TYPE test_requests_total counter
test_requests_total{env="ci",operation="PutObject",status="success"} 1
`
		require.NoError(t, testutil.GatherAndCompare(collector.Registry(), strings.NewReader(expected), "test_requests_total"))
	})
}

func TestRecordRequest(t *testing.T) {
	t.Parallel()
	collector, err := NewCollector(nil, nil)
	require.NoError(t, err)

	collector.RecordRequest("GetObject", 20*time.Millisecond, nil)
	collector.RecordRequest("GetObject", 30*time.Millisecond, nil)
	collector.RecordRequest("GetObject", time.Millisecond,
		errors.NewError(errors.ErrCodeDigestMismatch, "digest mismatch"))

	assert.Equal(t, 2.0, testutil.ToFloat64(collector.requestCounter.WithLabelValues("GetObject", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.requestCounter.WithLabelValues("GetObject", string(errors.ErrCodeDigestMismatch))))
	assert.Equal(t, 1, testutil.CollectAndCount(collector.requestDuration))
}

func TestRecordBytesAndFailures(t *testing.T) {
	t.Parallel()
	collector, err := NewCollector(nil, nil)
	require.NoError(t, err)

	collector.RecordBytes("PutObject", 1024)
	collector.RecordBytes("PutObject", 0)
	collector.RecordBytes("PutObject", 512)
	collector.RecordIntegrityFailure("GetObject")
	collector.RecordRegionProbe(nil)
	collector.RecordRegionProbe(stderr.New("timeout"))
	collector.RecordRegionProbe(stderr.New("timeout"))

	assert.Equal(t, 1536.0, testutil.ToFloat64(collector.bytesCounter.WithLabelValues("PutObject")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.integrityCounter.WithLabelValues("GetObject")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.probeCounter.WithLabelValues("success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(collector.probeCounter.WithLabelValues("failure")))
}

func TestRecordSignerSelectionAndCompletion(t *testing.T) {
	t.Parallel()
	collector, err := NewCollector(nil, nil)
	require.NoError(t, err)

	collector.RecordSignerSelection("override", signing.KindLegacy)
	collector.RecordSignerSelection("cache", signing.KindRegionScoped)
	collector.RecordSignerSelection("cache", signing.KindRegionScoped)
	collector.ObserveCompletionAttempt(1, multipart.OutcomeRetryable)
	collector.ObserveCompletionAttempt(2, multipart.OutcomeSucceeded)

	assert.Equal(t, 1.0, testutil.ToFloat64(collector.signerCounter.WithLabelValues(signing.KindLegacy.String(), "override")))
	assert.Equal(t, 2.0, testutil.ToFloat64(collector.signerCounter.WithLabelValues(signing.KindRegionScoped.String(), "cache")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.completionCounter.WithLabelValues(multipart.OutcomeRetryable.String())))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.completionCounter.WithLabelValues(multipart.OutcomeSucceeded.String())))
}

func TestRegisterRegionCache(t *testing.T) {
	t.Parallel()
	collector, err := NewCollector(nil, nil)
	require.NoError(t, err)

	rc, err := cache.NewRegionCache(2)
	require.NoError(t, err)
	require.NoError(t, collector.RegisterRegionCache(rc))

	rc.Store("a", "us-east-1")
	rc.Store("b", "eu-west-1")
	rc.Store("c", "ap-south-1")
	rc.Lookup("c")
	rc.Lookup("a")

	expected := `
# HELP objclient_region_cache_entries Buckets with a cached region
# TYPE objclient_region_cache_entries gauge
objclient_region_cache_entries 2
# HELP objclient_region_cache_evictions_total Region cache evictions
# TYPE objclient_region_cache_evictions_total counter
objclient_region_cache_evictions_total 1
# HELP objclient_region_cache_hits_total Region cache hits
# TYPE objclient_region_cache_hits_total counter
objclient_region_cache_hits_total 1
# HELP objclient_region_cache_misses_total Region cache misses
# TYPE objclient_region_cache_misses_total counter
objclient_region_cache_misses_total 1
`
	require.NoError(t, testutil.GatherAndCompare(collector.Registry(), strings.NewReader(expected),
		"objclient_region_cache_entries",
		"objclient_region_cache_evictions_total",
		"objclient_region_cache_hits_total",
		"objclient_region_cache_misses_total",
	))

	assert.Error(t, collector.RegisterRegionCache(rc), "registering twice is rejected")
}

func TestClassifyError(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, "success"},
		{"client error", errors.NewError(errors.ErrCodeSigningNoRegion, "no region"), string(errors.ErrCodeSigningNoRegion)},
		{"canceled", context.Canceled, string(errors.ErrCodeTransferCanceled)},
		{"plain", stderr.New("boom"), string(errors.ErrCodeUnknownError)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyError(tt.err))
		})
	}
}

func TestHandler(t *testing.T) {
	t.Parallel()
	collector, err := NewCollector(nil, nil)
	require.NoError(t, err)
	collector.RecordRequest("DeleteBucket", time.Millisecond, nil)

	rec := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `objclient_requests_total{operation="DeleteBucket",status="success"} 1`)
}

func TestStartStop(t *testing.T) {
	collector, err := NewCollector(&Config{Address: "127.0.0.1:0"}, nil)
	require.NoError(t, err)
	assert.Empty(t, collector.Addr())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, collector.Start(ctx))
	addr := collector.Addr()
	require.NotEmpty(t, addr)

	resp, err := http.Get("http://" + addr + "/health")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "ok", string(body))

	resp, err = http.Get("http://" + addr + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, collector.Stop(context.Background()))
	assert.Empty(t, collector.Addr())
}

func TestStopReleasesContextWatcher(t *testing.T) {
	collector, err := NewCollector(&Config{Address: "127.0.0.1:0"}, nil)
	require.NoError(t, err)

	// a context that outlives every cycle must not pin a goroutine per Start
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, collector.Start(ctx))
		collector.mu.Lock()
		watching := collector.watching
		collector.mu.Unlock()
		require.NotNil(t, watching)

		require.NoError(t, collector.Stop(context.Background()))
		select {
		case <-watching:
		case <-time.After(time.Second):
			t.Fatalf("cycle %d: context watcher still running after Stop", i)
		}
	}
}

func TestStopWithoutStart(t *testing.T) {
	t.Parallel()
	collector, err := NewCollector(nil, nil)
	require.NoError(t, err)
	assert.NoError(t, collector.Stop(context.Background()))
}
