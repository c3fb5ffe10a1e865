package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/elly0t/skycli/cli/apperr"
	"github.com/elly0t/skycli/cli/model"
)

const (
	maxResponseBytes = 10 << 20
	maxDiagBytes     = 4 << 10
)

// Client talks to the skygear controller. Credentials and the target app
// come from the model.CLIContext passed to every call, so one Client can
// serve several contexts.
type Client struct {
	HTTPClient *http.Client
	// UploadClient carries presigned uploads. It has no overall timeout
	// since archives can be large; cancel through the context instead.
	UploadClient *http.Client
	UserAgent    string
	Logger       *slog.Logger
}

func New(version string) *Client {
	return &Client{
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		UploadClient: &http.Client{},
		UserAgent:    "skycli/" + version,
		Logger:       slog.Default(),
	}
}

type envelope struct {
	Result json.RawMessage `json:"result"`
	Error  *remoteError    `json:"error"`
}

type remoteError struct {
	Name    string `json:"name"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Call sends an authenticated request to the controller and decodes the
// "result" member of the response into out. out may be nil when the caller
// does not need the result.
func (c *Client) Call(ctx context.Context, cli model.CLIContext, method, path string, body, out any) error {
	op, _, _ := strings.Cut(path, "?")

	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(cli.Endpoint, "/")+path, reqBody)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("X-Skygear-Request-Id", requestID)
	if cli.APIKey != "" {
		req.Header.Set("X-Skygear-Api-Key", cli.APIKey)
	}
	if cli.AccessToken != "" {
		req.Header.Set("X-Skygear-Access-Token", cli.AccessToken)
	}

	c.logger().Debug("controller request", "method", method, "path", op, "request_id", requestID)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return apperr.Transport(op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return apperr.Transport(op, err)
	}

	c.logger().Debug("controller response", "path", op, "status", resp.StatusCode, "request_id", requestID)

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode >= 400 {
			return apperr.API(op, resp.StatusCode, fmt.Sprintf("HTTP %d: %s", resp.StatusCode, truncate(raw)))
		}
		return apperr.Decode(op, err)
	}
	if env.Error != nil {
		msg := env.Error.Message
		if msg == "" {
			msg = env.Error.Name
		}
		return apperr.API(op, resp.StatusCode, msg)
	}
	if resp.StatusCode >= 400 {
		return apperr.API(op, resp.StatusCode, fmt.Sprintf("HTTP %d: %s", resp.StatusCode, truncate(raw)))
	}

	if out == nil {
		return nil
	}
	if len(env.Result) == 0 || string(env.Result) == "null" {
		return apperr.Decode(op, fmt.Errorf("response has no result"))
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return apperr.Decode(op, err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, cli model.CLIContext, path string, body, out any) error {
	return c.Call(ctx, cli, http.MethodPost, path, body, out)
}

func (c *Client) get(ctx context.Context, cli model.CLIContext, path string, out any) error {
	return c.Call(ctx, cli, http.MethodGet, path, nil, out)
}

func (c *Client) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

func truncate(b []byte) string {
	if len(b) > maxDiagBytes {
		b = b[:maxDiagBytes]
	}
	return strings.TrimSpace(string(b))
}
