// Package usage posts session usage events to a remote collector.
// Delivery is best effort: failures are logged and reported as false,
// never returned to the batch.
package usage

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/yashgoyal264-hub/airline-invoice-extractor/constants"
	"github.com/yashgoyal264-hub/airline-invoice-extractor/internal/entity"
)

const maxErrorDetails = 5

type startEvent struct {
	Event       constants.UsageEvent `json:"event"`
	UserEmail   string               `json:"userEmail"`
	SessionID   string               `json:"sessionId"`
	Timestamp   string               `json:"timestamp"`
	ToolVersion string               `json:"toolVersion"`
}

type endEvent struct {
	Event          constants.UsageEvent `json:"event"`
	UserEmail      string               `json:"userEmail"`
	SessionID      string               `json:"sessionId"`
	NumberOfFiles  int                  `json:"numberOfFiles"`
	ProcessingTime int64                `json:"processingTime"`
	SuccessRate    int                  `json:"successRate"`
	ErrorCount     int                  `json:"errorCount"`
	TotalAmount    float64              `json:"totalAmount"`
	ErrorDetails   string               `json:"errorDetails"`
	Timestamp      string               `json:"timestamp"`
	ToolVersion    string               `json:"toolVersion"`
}

type errorEvent struct {
	Event        constants.UsageEvent `json:"event"`
	UserEmail    string               `json:"userEmail"`
	SessionID    string               `json:"sessionId"`
	ErrorType    string               `json:"errorType"`
	ErrorMessage string               `json:"errorMessage"`
	ErrorFile    string               `json:"errorFile"`
	Timestamp    string               `json:"timestamp"`
	ToolVersion  string               `json:"toolVersion"`
}

// Client posts usage events. A Client with an empty URL is disabled and
// every call returns false without network traffic.
type Client struct {
	url         string
	http        *http.Client
	retries     int
	delay       time.Duration
	toolVersion string
	logger      *slog.Logger
	now         func() time.Time
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithRetries sets the number of attempts and the base back-off delay.
// Attempt n waits delay*n before the next one.
func WithRetries(attempts int, delay time.Duration) Option {
	return func(c *Client) {
		if attempts > 0 {
			c.retries = attempts
		}
		if delay >= 0 {
			c.delay = delay
		}
	}
}

func WithToolVersion(v string) Option {
	return func(c *Client) {
		if v != "" {
			c.toolVersion = v
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

func NewClient(url string, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		url:         url,
		http:        &http.Client{Timeout: 10 * time.Second},
		retries:     3,
		delay:       time.Second,
		toolVersion: constants.ToolVersion,
		logger:      logger,
		now:         time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) Enabled() bool {
	return c != nil && c.url != ""
}

func (c *Client) SessionStart(ctx context.Context, s entity.ProcessingSession) bool {
	return c.send(ctx, constants.UsageSessionStart, startEvent{
		Event:       constants.UsageSessionStart,
		UserEmail:   s.UserEmail,
		SessionID:   s.SessionID.String(),
		Timestamp:   c.timestamp(),
		ToolVersion: c.toolVersion,
	})
}

func (c *Client) SessionEnd(ctx context.Context, sum entity.SessionSummary) bool {
	return c.send(ctx, constants.UsageSessionEnd, endEvent{
		Event:          constants.UsageSessionEnd,
		UserEmail:      sum.UserEmail,
		SessionID:      sum.SessionID,
		NumberOfFiles:  sum.NumberOfFiles,
		ProcessingTime: sum.ProcessingTime,
		SuccessRate:    sum.SuccessRate,
		ErrorCount:     sum.ErrorCount,
		TotalAmount:    sum.TotalAmount,
		ErrorDetails:   ErrorDetails(sum.Errors),
		Timestamp:      c.timestamp(),
		ToolVersion:    c.toolVersion,
	})
}

// Error reports a single failure. errType is a short category such as
// "render" or "extract".
func (c *Client) Error(ctx context.Context, s entity.ProcessingSession, errType string, fe entity.FileError) bool {
	if errType == "" {
		errType = "unknown"
	}
	msg := fe.Error
	if msg == "" {
		msg = "Unknown error"
	}
	return c.send(ctx, constants.UsageError, errorEvent{
		Event:        constants.UsageError,
		UserEmail:    s.UserEmail,
		SessionID:    s.SessionID.String(),
		ErrorType:    errType,
		ErrorMessage: msg,
		ErrorFile:    fe.File,
		Timestamp:    c.timestamp(),
		ToolVersion:  c.toolVersion,
	})
}

func (c *Client) send(ctx context.Context, event constants.UsageEvent, payload any) bool {
	if !c.Enabled() {
		return false
	}
	for attempt := 1; attempt <= c.retries; attempt++ {
		_, _, err := sendJSON(ctx, c.http, c.url, payload, c.logger)
		if err == nil {
			c.logger.Debug("usage.sent", "event", event, "attempt", attempt)
			return true
		}
		c.logger.Warn("usage.attempt.failed", "event", event, "attempt", attempt, "error", err)
		if attempt == c.retries {
			break
		}
		select {
		case <-ctx.Done():
			c.logger.Warn("usage.cancelled", "event", event, "error", ctx.Err())
			return false
		case <-time.After(c.delay * time.Duration(attempt)):
		}
	}
	c.logger.Error("usage.failed", "event", event, "attempts", c.retries)
	return false
}

func (c *Client) timestamp() string {
	return c.now().UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// ErrorDetails renders the first five errors as "file: error" joined by "; ".
func ErrorDetails(errs []entity.FileError) string {
	if len(errs) > maxErrorDetails {
		errs = errs[:maxErrorDetails]
	}
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		file, msg := e.File, e.Error
		if file == "" {
			file = "Unknown"
		}
		if msg == "" {
			msg = "Unknown error"
		}
		parts = append(parts, fmt.Sprintf("%s: %s", file, msg))
	}
	return strings.Join(parts, "; ")
}
