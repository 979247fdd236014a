package fetcher

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitesync/sitesync/internal/domain"
)

func testRetrier() *Retrier {
	return NewRetrier(RetrierOptions{
		MaxRetries:      3,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		Multiplier:      2.0,
	})
}

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := testRetrier().Retry(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return domain.NewRemoteError("upload", 503, "unavailable")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetry_PermanentErrorStopsImmediately(t *testing.T) {
	attempts := 0
	err := testRetrier().Retry(context.Background(), func() error {
		attempts++
		return domain.NewRemoteError("upload", 400, "bad request")
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestRetry_GivesUpAfterMaxRetries(t *testing.T) {
	attempts := 0
	err := testRetrier().Retry(context.Background(), func() error {
		attempts++
		return domain.ErrRateLimited
	})
	require.Error(t, err)
	assert.Equal(t, 4, attempts) // initial try plus three retries
}

func TestRetryWithValue(t *testing.T) {
	attempts := 0
	v, err := RetryWithValue(context.Background(), testRetrier(), func() (string, error) {
		attempts++
		if attempts < 2 {
			return "", &domain.RetryableError{Err: errors.New("flaky")}
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestRetryWithValue_ReturnsLastError(t *testing.T) {
	wantErr := domain.NewRemoteError("list files", 500, "boom")
	_, err := RetryWithValue(context.Background(), testRetrier(), func() (int, error) {
		return 0, wantErr
	})
	assert.ErrorIs(t, err, wantErr)
}

func TestShouldRetryStatus(t *testing.T) {
	tests := []struct {
		status int
		want   bool
	}{
		{429, true},
		{502, true},
		{503, true},
		{504, true},
		{522, true},
		{400, false},
		{404, false},
		{500, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ShouldRetryStatus(tt.status), "status %d", tt.status)
	}
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, 30*time.Second, ParseRetryAfter("30"))
	assert.Equal(t, time.Duration(0), ParseRetryAfter(""))
	assert.Equal(t, time.Duration(0), ParseRetryAfter("soon"))

	future := time.Now().Add(time.Minute).UTC().Format(http.TimeFormat)
	d := ParseRetryAfter(future)
	assert.Greater(t, d, 50*time.Second)
}
