package usage

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yashgoyal264-hub/airline-invoice-extractor/internal/entity"
)

func TestErrorDetails(t *testing.T) {
	errs := []entity.FileError{
		{File: "a.pdf", Error: "bad"},
		{File: "", Error: ""},
		{File: "c.pdf", Error: "x"},
		{File: "d.pdf", Error: "y"},
		{File: "e.pdf", Error: "z"},
		{File: "f.pdf", Error: "dropped"},
	}
	want := "a.pdf: bad; Unknown: Unknown error; c.pdf: x; d.pdf: y; e.pdf: z"
	if got := ErrorDetails(errs); got != want {
		t.Errorf("ErrorDetails() = %q, want %q", got, want)
	}
	if got := ErrorDetails(nil); got != "" {
		t.Errorf("ErrorDetails(nil) = %q, want empty", got)
	}
}

func TestClient_SessionEnd(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
	}))
	defer srv.Close()

	now := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	c := NewClient(srv.URL, nil, WithToolVersion("9.9"), WithClock(func() time.Time { return now }))
	ok := c.SessionEnd(context.Background(), entity.SessionSummary{
		SessionID:      "s-1",
		UserEmail:      "a@b.c",
		NumberOfFiles:  5,
		ProcessingTime: 12,
		SuccessRate:    60,
		ErrorCount:     2,
		TotalAmount:    600,
		Errors:         []entity.FileError{{File: "x.pdf", Error: "boom"}},
	})
	if !ok {
		t.Fatal("SessionEnd() = false, want true")
	}
	checks := map[string]any{
		"event":         "session_end",
		"sessionId":     "s-1",
		"numberOfFiles": float64(5),
		"successRate":   float64(60),
		"totalAmount":   float64(600),
		"errorDetails":  "x.pdf: boom",
		"toolVersion":   "9.9",
		"timestamp":     "2025-05-01T10:00:00.000Z",
	}
	for k, want := range checks {
		if got[k] != want {
			t.Errorf("%s = %v, want %v", k, got[k], want)
		}
	}
}

func TestClient_Retries(t *testing.T) {
	tests := []struct {
		name      string
		failFirst int32
		want      bool
		wantCalls int32
	}{
		{"first attempt", 0, true, 1},
		{"third attempt", 2, true, 3},
		{"all attempts fail", 10, false, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if atomic.AddInt32(&calls, 1) <= tt.failFirst {
					w.WriteHeader(http.StatusInternalServerError)
				}
			}))
			defer srv.Close()

			c := NewClient(srv.URL, nil, WithRetries(3, time.Millisecond))
			s := entity.ProcessingSession{SessionID: uuid.New(), UserEmail: "a@b.c"}
			if got := c.SessionStart(context.Background(), s); got != tt.want {
				t.Errorf("SessionStart() = %v, want %v", got, tt.want)
			}
			if n := atomic.LoadInt32(&calls); n != tt.wantCalls {
				t.Errorf("calls = %d, want %d", n, tt.wantCalls)
			}
		})
	}
}

func TestClient_Disabled(t *testing.T) {
	c := NewClient("", nil)
	if c.Enabled() {
		t.Error("Enabled() = true for empty URL")
	}
	if c.Error(context.Background(), entity.ProcessingSession{}, "render", entity.FileError{File: "a.pdf"}) {
		t.Error("Error() = true on a disabled client")
	}
}
