package sheetdb

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/Amitkumar2801/classroom-quest-game/pkg/logger"
	"github.com/Amitkumar2801/classroom-quest-game/pkg/metrics"
	"github.com/Amitkumar2801/classroom-quest-game/pkg/record"
	"github.com/Amitkumar2801/classroom-quest-game/pkg/retry"
)

const maxBodyBytes = 10 << 20

// RollField is the column every lookup and patch is keyed on.
const RollField = "Roll"

// Store is the remote student sheet as seen by the player flows.
type Store interface {
	FindByRoll(ctx context.Context, roll int64) ([]record.StudentRecord, error)
	Insert(ctx context.Context, rec record.StudentRecord) (Confirmation, error)
	PatchByRoll(ctx context.Context, roll int64, patch record.Patch) (Confirmation, error)
	ListAll(ctx context.Context) ([]record.StudentRecord, error)
	Ping(ctx context.Context) error
}

// Config holds the sheet API settings.
type Config struct {
	BaseURL string
	APIKey  string
	// Timeout bounds each request; zero leaves requests unbounded.
	Timeout time.Duration
	// MaxAttempts applies to reads only. Writes are sent once.
	MaxAttempts int
	HTTPClient  *http.Client
}

// Client talks to a SheetDB-style REST endpoint.
type Client struct {
	baseURL   string
	apiKey    string
	http      *http.Client
	readRetry retry.Options
	logger    *logger.Logger
}

var _ Store = (*Client)(nil)

// NewClient creates a Client for the given endpoint.
func NewClient(cfg Config, l *logger.Logger) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	readRetry := retry.DefaultOptions()
	readRetry.MaxAttempts = cfg.MaxAttempts
	readRetry.Classifier = isTransient

	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:    cfg.APIKey,
		http:      httpClient,
		readRetry: readRetry,
		logger:    l.Named("sheetdb"),
	}
}

// FindByRoll returns the rows whose Roll matches. Zero or one row is expected.
func (c *Client) FindByRoll(ctx context.Context, roll int64) ([]record.StudentRecord, error) {
	query := url.Values{"search": {RollField + ":" + strconv.FormatInt(roll, 10)}}
	rows, err := c.readRows(ctx, "find", query)
	if err != nil {
		return nil, err
	}

	out := make([]record.StudentRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := row.Record()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// ListAll returns every row in sheet order. Rows without a usable Roll are skipped.
func (c *Client) ListAll(ctx context.Context) ([]record.StudentRecord, error) {
	rows, err := c.readRows(ctx, "list", nil)
	if err != nil {
		return nil, err
	}

	out := make([]record.StudentRecord, 0, len(rows))
	for i, row := range rows {
		rec, err := row.Record()
		if err != nil {
			c.logger.Warn("skipping malformed row", zap.Int("index", i), zap.Error(err))
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// Insert appends a new row. The caller must check for an existing Roll first.
func (c *Client) Insert(ctx context.Context, rec record.StudentRecord) (Confirmation, error) {
	body, err := c.do(ctx, "insert", http.MethodPost, nil, insertRequest{Data: newInsertRow(rec)})
	if err != nil {
		return Confirmation{}, err
	}
	return decodeConfirmation(body)
}

// PatchByRoll updates the given columns on the row matching roll.
func (c *Client) PatchByRoll(ctx context.Context, roll int64, patch record.Patch) (Confirmation, error) {
	req := patchRequest{
		Data:   patch,
		Search: map[string]int64{RollField: roll},
	}
	body, err := c.do(ctx, "patch", http.MethodPatch, nil, req)
	if err != nil {
		return Confirmation{}, err
	}
	return decodeConfirmation(body)
}

// Ping performs a minimal read to check the endpoint is reachable.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.do(ctx, "ping", http.MethodGet, url.Values{"limit": {"1"}}, nil)
	return err
}

func (c *Client) readRows(ctx context.Context, op string, query url.Values) ([]Row, error) {
	var body []byte
	err := retry.Do(ctx, func(ctx context.Context) error {
		var err error
		body, err = c.do(ctx, op, http.MethodGet, query, nil)
		return err
	}, c.readRetry)
	if err != nil {
		return nil, err
	}
	return decodeRows(body)
}

func (c *Client) do(ctx context.Context, op, method string, query url.Values, payload interface{}) ([]byte, error) {
	endpoint := c.baseURL
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s request: %w", op, err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, &NetworkError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.RemoteRequestLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RemoteRequestsTotal.WithLabelValues(op, "transport_error").Inc()
		return nil, &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		metrics.RemoteRequestsTotal.WithLabelValues(op, "transport_error").Inc()
		return nil, &NetworkError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.RemoteRequestsTotal.WithLabelValues(op, "status_error").Inc()
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = resp.Status
		}
		return nil, &NetworkError{Op: op, StatusCode: resp.StatusCode, Err: errors.New(msg)}
	}

	metrics.RemoteRequestsTotal.WithLabelValues(op, "ok").Inc()
	c.logger.Debug("request done", zap.String("op", op), zap.Int("status", resp.StatusCode))
	return body, nil
}
