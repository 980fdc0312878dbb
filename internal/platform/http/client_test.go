package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoRequest(t *testing.T) {
	tests := []struct {
		name       string
		statuses   []int
		maxRetries int
		wantCalls  int32
		wantStatus int
	}{
		{name: "success first try", statuses: []int{200}, maxRetries: 0, wantCalls: 1},
		{name: "no retry on server error", statuses: []int{500, 200}, maxRetries: 0, wantCalls: 1, wantStatus: 500},
		{name: "retry recovers", statuses: []int{503, 502, 200}, maxRetries: 2, wantCalls: 3},
		{name: "client error is permanent", statuses: []int{404, 200}, maxRetries: 3, wantCalls: 1, wantStatus: 404},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := calls.Add(1)
				w.WriteHeader(tt.statuses[min(int(n), len(tt.statuses))-1])
			}))
			defer srv.Close()

			client := NewClient(ClientOptions{
				Timeout:              time.Second,
				RequestsPerSec:       100,
				MaxRetries:           tt.maxRetries,
				RetryInitialInterval: time.Millisecond,
			})
			req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, nil)
			require.NoError(t, err)

			resp, err := client.DoRequest(context.Background(), req)
			assert.Equal(t, tt.wantCalls, calls.Load())
			if tt.wantStatus == 0 {
				require.NoError(t, err)
				resp.Body.Close()
				return
			}
			var statusErr *HTTPStatusError
			require.True(t, errors.As(err, &statusErr), "got %v", err)
			assert.Equal(t, tt.wantStatus, statusErr.StatusCode)
		})
	}
}
