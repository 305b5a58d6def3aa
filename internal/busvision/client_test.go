package busvision

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sakaguchiii/bus-notification/internal/domain"
)

type codes map[string]string

func (c codes) Code(name string) (string, bool) {
	v, ok := c[name]
	return v, ok
}

var testCodes = codes{"乙部朝日": "4403", "津駅前": "4001"}

func newTestClient(t *testing.T, baseURL string, retries int) *Client {
	t.Helper()
	c, err := NewClient(testCodes, zap.NewNop(), Options{
		BaseURL:      baseURL + "/sanco/view/",
		Timeout:      2 * time.Second,
		RatePerSec:   1000,
		Burst:        10,
		MaxRetries:   retries,
		RetryBackoff: time.Millisecond,
	})
	require.NoError(t, err)
	return c
}

func TestFetch_SendsApproachQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sanco/view/approach.html", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "4403", q.Get("stopCdFrom"))
		assert.Equal(t, "4001", q.Get("stopCdTo"))
		assert.Equal(t, "false", q.Get("addSearchDetail"))
		assert.Equal(t, "null", q.Get("searchHour"))
		assert.Equal(t, "null", q.Get("searchMinute"))
		assert.Equal(t, "-1", q.Get("searchAD"))
		assert.Equal(t, "null", q.Get("searchVehicleTypeCd"))
		assert.Equal(t, "null", q.Get("searchCorpCd"))
		assert.Equal(t, "0", q.Get("lang"))
		_, _ = w.Write([]byte(approachPageTwoBuses))
	}))
	defer srv.Close()

	body, err := newTestClient(t, srv.URL, 0).Fetch(context.Background(), "乙部朝日", "津駅前")
	require.NoError(t, err)
	assert.Equal(t, approachPageTwoBuses, body)
}

func TestFetch_UnresolvedStop(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:1", 0)

	_, err := c.Fetch(context.Background(), "新宿", "津駅前")
	require.ErrorIs(t, err, domain.ErrUnresolvedStop)

	_, err = c.Fetch(context.Background(), "乙部朝日", "新宿")
	require.ErrorIs(t, err, domain.ErrUnresolvedStop)
}

func TestFetch_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	body, err := newTestClient(t, srv.URL, 2).Fetch(context.Background(), "乙部朝日", "津駅前")
	require.NoError(t, err)
	assert.Equal(t, "ok", body)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetch_ServerErrorExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL, 1).Fetch(context.Background(), "乙部朝日", "津駅前")
	require.ErrorIs(t, err, domain.ErrFetchFailed)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetch_ClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL, 3).Fetch(context.Background(), "乙部朝日", "津駅前")
	require.ErrorIs(t, err, domain.ErrFetchFailed)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetch_ConnectionFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newTestClient(t, url, 0).Fetch(context.Background(), "乙部朝日", "津駅前")
	require.ErrorIs(t, err, domain.ErrFetchFailed)
}

func TestApproachURL_DefaultBase(t *testing.T) {
	c, err := NewClient(testCodes, zap.NewNop(), Options{})
	require.NoError(t, err)
	assert.Contains(t, c.ApproachURL("4403", "4001"), "https://bus-vision.jp/sanco/view/approach.html?")
}
