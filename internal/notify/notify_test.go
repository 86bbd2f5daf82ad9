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

func TestReport(t *testing.T) {
	a := assert.New(t)

	var received *SyncReport

	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		a.Equal(http.MethodPost, r.Method)
		a.Equal("application/json", r.Header.Get("Content-Type"))

		var report SyncReport
		require.NoError(t, json.NewDecoder(r.Body).Decode(&report))
		received = &report

		rw.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	NewReporter(srv.URL).Report(context.Background(), &SyncReport{
		Action:      "update",
		ChannelID:   "UC0000000000000000000001",
		VideosAdded: 3,
		Timestamp:   time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	})

	if a.NotNil(received) {
		a.Equal("update", received.Action)
		a.Equal("UC0000000000000000000001", received.ChannelID)
		a.Equal(3, received.VideosAdded)
	}
}

func TestReportFailureDoesNotPanic(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	NewReporter(srv.URL).Report(context.Background(), &SyncReport{Action: "update"})
}

func TestReportNoWebhookConfigured(t *testing.T) {
	NewReporter("").Report(context.Background(), &SyncReport{Action: "update"})
}
