package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"policy-scraper/pkg/config"
	"policy-scraper/pkg/utils"
)

// Fetcher performs HTTP requests with retry, exponential backoff, and per-host
// rate limiting. The rate limiter gate is taken before every attempt,
// including retries.
type Fetcher struct {
	client  *http.Client
	limiter *RateLimiter
	sem     *semaphore.Weighted // optional global in-flight bound
	cfg     *config.AppConfig
	log     *logrus.Logger
}

// NewFetcher creates a Fetcher.
func NewFetcher(client *http.Client, limiter *RateLimiter, cfg *config.AppConfig, log *logrus.Logger) *Fetcher {
	return &Fetcher{
		client:  client,
		limiter: limiter,
		cfg:     cfg,
		log:     log,
	}
}

// SetGlobalSemaphore installs a shared bound on in-flight requests across all
// workers. Must be called before the first fetch.
func (f *Fetcher) SetGlobalSemaphore(sem *semaphore.Weighted) {
	f.sem = sem
}

// FetchWithRetry performs the request, retrying transient network errors and
// 5xx/429 responses with exponential backoff plus jitter. On success the
// caller owns the response body. Context cancellation aborts both backoff
// sleeps and in-flight requests.
func (f *Fetcher) FetchWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	var lastErr error
	var currentResp *http.Response

	reqLog := f.log.WithField("url", req.URL.String())
	host := req.URL.Hostname()

	maxRetries := f.cfg.MaxRetries
	initialRetryDelay := f.cfg.InitialRetryDelay
	maxRetryDelay := f.cfg.MaxRetryDelay

	for attempt := 0; attempt <= maxRetries; attempt++ {
		select {
		case <-ctx.Done():
			if lastErr != nil {
				return nil, fmt.Errorf("context cancelled (%v) during retry backoff after error: %w", ctx.Err(), lastErr)
			}
			return nil, fmt.Errorf("context cancelled before first attempt: %w", ctx.Err())
		default:
		}

		// Backoff before retry attempts (not before the first)
		if attempt > 0 {
			backoff := float64(initialRetryDelay) * math.Pow(2, float64(attempt-1))
			delay := time.Duration(backoff)
			if delay <= 0 || delay > maxRetryDelay {
				delay = maxRetryDelay
			}
			// +/- 10% jitter to desynchronize retries
			var jitter time.Duration
			if delay > 0 {
				jitter = time.Duration(rand.Int63n(int64(delay)/5)) - (delay / 10)
			}
			finalDelay := delay + jitter
			if finalDelay < 0 {
				finalDelay = 0
			}

			reqLog.WithFields(logrus.Fields{"attempt": attempt, "max_retries": maxRetries, "delay": finalDelay}).Warn("Retrying request...")

			select {
			case <-time.After(finalDelay):
			case <-ctx.Done():
				reqLog.Warnf("Context cancelled during retry sleep: %v", ctx.Err())
				if lastErr != nil {
					return nil, fmt.Errorf("context cancelled (%v) during retry delay after error: %w", ctx.Err(), lastErr)
				}
				return nil, fmt.Errorf("context cancelled during retry delay: %w", ctx.Err())
			}
		}

		// Politeness gate before every attempt
		if err := f.limiter.Acquire(ctx, host); err != nil {
			if lastErr != nil {
				return nil, fmt.Errorf("cancelled waiting on rate limiter after error: %w", lastErr)
			}
			return nil, err
		}

		if f.sem != nil {
			if err := f.sem.Acquire(ctx, 1); err != nil {
				if lastErr != nil {
					return nil, fmt.Errorf("cancelled waiting on request slot after error: %w", lastErr)
				}
				return nil, err
			}
		}
		currentResp, lastErr = f.client.Do(req.WithContext(ctx))
		if f.sem != nil {
			f.sem.Release(1)
		}

		// Network-level errors (DNS, TCP, TLS, redirect policy)
		if lastErr != nil {
			if currentResp != nil {
				io.Copy(io.Discard, currentResp.Body)
				currentResp.Body.Close()
			}
			if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
				reqLog.Warnf("Context cancelled/timed out during HTTP request execution: %v", lastErr)
				return nil, lastErr
			}
			// Redirect into an excluded domain is a policy refusal, never retried
			if errors.Is(lastErr, utils.ErrExcludedDomain) {
				reqLog.Warnf("Request refused by exclusion policy: %v", lastErr)
				return nil, fmt.Errorf("%w: redirect refused for %s", utils.ErrExcludedDomain, req.URL.String())
			}
			reqLog.WithField("attempt", attempt).Errorf("Network error: %v", lastErr)
			continue
		}

		statusCode := currentResp.StatusCode
		resLog := reqLog.WithFields(logrus.Fields{"status_code": statusCode, "attempt": attempt})

		switch {
		case statusCode >= 200 && statusCode < 300:
			resLog.Debug("Successfully fetched")
			return currentResp, nil

		case statusCode >= 500:
			resLog.Warn("Server error, retrying...")
			lastErr = fmt.Errorf("%w: status %d %s", utils.ErrServerHTTPError, statusCode, currentResp.Status)
			io.Copy(io.Discard, currentResp.Body)
			currentResp.Body.Close()
			continue

		case statusCode == http.StatusTooManyRequests:
			resLog.Warn("Received 429 Too Many Requests, retrying...")
			lastErr = fmt.Errorf("%w: status %d %s", utils.ErrClientHTTPError, statusCode, currentResp.Status)
			io.Copy(io.Discard, currentResp.Body)
			currentResp.Body.Close()
			continue

		case statusCode >= 400 && statusCode < 500:
			// Not retryable; caller may want headers, so hand the response back
			resLog.Warn("Client error (4xx), not retrying")
			return currentResp, fmt.Errorf("%w: status %d %s", utils.ErrClientHTTPError, statusCode, currentResp.Status)

		default:
			resLog.Warnf("Non-retryable/unexpected status: %d", statusCode)
			return currentResp, fmt.Errorf("%w: status %d %s", utils.ErrOtherHTTPError, statusCode, currentResp.Status)
		}
	}

	reqLog.Errorf("All %d fetch attempts failed. Last error: %v", maxRetries+1, lastErr)
	if currentResp != nil {
		io.Copy(io.Discard, currentResp.Body)
		currentResp.Body.Close()
	}
	if lastErr != nil {
		if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
			return nil, lastErr
		}
		return nil, fmt.Errorf("%w: %w", utils.ErrRetryFailed, lastErr)
	}
	return nil, utils.ErrRetryFailed
}
