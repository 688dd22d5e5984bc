package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhook_PostsPayload(t *testing.T) {
	var got Payload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	payload := Payload{
		Status:         "completed",
		ProjectID:      "p1",
		FileID:         "file-1234abcd",
		TotalPages:     3,
		ProcessedPages: 2,
		FailedPages:    []int{3},
		Timestamp:      time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	err := NewWebhook(srv.Client()).Notify(context.Background(), srv.URL, payload)

	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestWebhook_RejectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := NewWebhook(nil).Notify(context.Background(), srv.URL, Payload{Status: "completed"})
	assert.ErrorIs(t, err, ErrDeliveryFailed)
}
