package fetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"policy-scraper/pkg/config"
	"policy-scraper/pkg/utils"
)

// testConfig returns an AppConfig with fast retry delays for testing
func testConfig(maxRetries int) *config.AppConfig {
	return &config.AppConfig{
		MaxRetries:        maxRetries,
		InitialRetryDelay: 10 * time.Millisecond,
		MaxRetryDelay:     50 * time.Millisecond,
	}
}

// testLogger returns a logger that discards output
func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// testClient returns an http.Client suitable for testing
func testClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

func testFetcher(maxRetries int) *Fetcher {
	limiter := newTestRateLimiter(time.Millisecond, 2*time.Millisecond)
	return NewFetcher(testClient(), limiter, testConfig(maxRetries), testLogger())
}

// mockServer creates an httptest.Server that returns status codes in sequence.
// Returns the server and an atomic counter tracking request attempts.
func mockServer(t *testing.T, statusCodes []int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	attemptCount := &atomic.Int32{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		idx := int(attemptCount.Add(1)) - 1
		if idx >= len(statusCodes) {
			idx = len(statusCodes) - 1 // repeat last status
		}
		w.WriteHeader(statusCodes[idx])
	}))
	t.Cleanup(server.Close)
	return server, attemptCount
}

func TestFetchWithRetry_Success(t *testing.T) {
	server, attempts := mockServer(t, []int{http.StatusOK})

	fetcher := testFetcher(3)
	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)

	resp, err := fetcher.FetchWithRetry(context.Background(), req)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", resp.StatusCode)
	}
	if attempts.Load() != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts.Load())
	}
}

func TestFetchWithRetry_ServerError_RetrySuccess(t *testing.T) {
	server, attempts := mockServer(t, []int{http.StatusInternalServerError, http.StatusBadGateway, http.StatusOK})

	fetcher := testFetcher(3)
	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)

	resp, err := fetcher.FetchWithRetry(context.Background(), req)
	if err != nil {
		t.Fatalf("expected success after retries, got: %v", err)
	}
	defer resp.Body.Close()

	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestFetchWithRetry_ExhaustsRetries(t *testing.T) {
	server, attempts := mockServer(t, []int{http.StatusInternalServerError})

	fetcher := testFetcher(2)
	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)

	_, err := fetcher.FetchWithRetry(context.Background(), req)
	if !errors.Is(err, utils.ErrRetryFailed) {
		t.Errorf("expected ErrRetryFailed, got: %v", err)
	}
	if attempts.Load() != 3 { // initial + 2 retries
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestFetchWithRetry_ClientError_NoRetry(t *testing.T) {
	server, attempts := mockServer(t, []int{http.StatusNotFound})

	fetcher := testFetcher(3)
	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)

	resp, err := fetcher.FetchWithRetry(context.Background(), req)
	if !errors.Is(err, utils.ErrClientHTTPError) {
		t.Errorf("expected ErrClientHTTPError, got: %v", err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	if attempts.Load() != 1 {
		t.Errorf("404 must not be retried, got %d attempts", attempts.Load())
	}
}

func TestFetchWithRetry_Retries429(t *testing.T) {
	server, attempts := mockServer(t, []int{http.StatusTooManyRequests, http.StatusOK})

	fetcher := testFetcher(3)
	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)

	resp, err := fetcher.FetchWithRetry(context.Background(), req)
	if err != nil {
		t.Fatalf("expected success after 429 retry, got: %v", err)
	}
	defer resp.Body.Close()

	if attempts.Load() != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts.Load())
	}
}

func TestFetchWithRetry_ContextCancelled(t *testing.T) {
	server, _ := mockServer(t, []int{http.StatusInternalServerError})

	fetcher := testFetcher(5)
	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fetcher.FetchWithRetry(ctx, req)
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

func TestFetchWithRetry_ExcludedRedirect(t *testing.T) {
	// Target server that redirects into a booking engine
	bookingEngine := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("booking engine"))
	}))
	t.Cleanup(bookingEngine.Close)

	hotelSite := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, bookingEngine.URL, http.StatusFound)
	}))
	t.Cleanup(hotelSite.Close)

	// Exclusion list that matches the booking engine's host:port-free hostname
	exclusions := NewExclusionList([]string{"127.0.0.1"})
	client := NewClient(config.HTTPClientConfig{Timeout: 5 * time.Second}, exclusions, testLogger())
	limiter := newTestRateLimiter(time.Millisecond, 2*time.Millisecond)
	fetcher := NewFetcher(client, limiter, testConfig(3), testLogger())

	req, _ := http.NewRequest(http.MethodGet, hotelSite.URL, nil)
	_, err := fetcher.FetchWithRetry(context.Background(), req)
	if !errors.Is(err, utils.ErrExcludedDomain) {
		t.Errorf("expected ErrExcludedDomain for redirect into excluded host, got: %v", err)
	}
}
