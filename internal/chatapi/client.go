package chatapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/chatcache/chatcache/internal/chatcacheerr"
	"github.com/chatcache/chatcache/internal/ratelimit"
)

// Client is the rate-limited HTTP client fronting the remote chat API.
type Client struct {
	http   *http.Client
	bucket *ratelimit.Bucket
	cfg    Config
}

// New builds a Client from cfg, defaulting unset tuning knobs.
func New(cfg Config) *Client {
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 20
	}
	if cfg.BurstCapacity <= 0 {
		cfg.BurstCapacity = 20
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 60 * time.Second
	}
	if cfg.ExponentialBase <= 0 {
		cfg.ExponentialBase = 2.0
	}

	transport := &http.Transport{MaxConnsPerHost: cfg.MaxConnections}
	return &Client{
		http:   &http.Client{Transport: transport, Timeout: cfg.Timeout},
		bucket: ratelimit.New(cfg.RequestsPerMinute, cfg.BurstCapacity),
		cfg:    cfg,
	}
}

func (c *Client) backOff() *backoff.ExponentialBackOff {
	return &backoff.ExponentialBackOff{
		InitialInterval: c.cfg.InitialDelay,
		Multiplier:      c.cfg.ExponentialBase,
		MaxInterval:     c.cfg.MaxDelay,
	}
}

// do issues one HTTP request gated by the token bucket, decodes the JSON
// envelope, and maps non-ok responses onto the protocol error taxonomy.
// It does not retry; callers that want the retry loop use doRetrying.
func (c *Client) do(ctx context.Context, req *http.Request, out any) error {
	if err := c.bucket.Wait(ctx); err != nil {
		return err
	}

	req.Header.Set("Authorization", "Bearer "+c.cfg.BotToken)
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return backoff.Permanent(chatcacheerr.Unauthorized("remote API rejected credentials"))
	case http.StatusTooManyRequests:
		wait := retryAfter(resp.Header.Get("Retry-After"))
		return &backoff.RetryAfterError{Duration: wait}
	case http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound:
		code := fmt.Sprintf("http %d", resp.StatusCode)
		var env envelope
		if json.Unmarshal(body, &env) == nil && env.Error != "" {
			code = env.Error
		}
		return backoff.Permanent(chatcacheerr.RemoteAPI(code))
	}

	if resp.StatusCode >= 500 {
		return fmt.Errorf("chatapi: remote error: http %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return backoff.Permanent(chatcacheerr.NewCacheError(chatcacheerr.KindSerialization, "decode response", err))
		}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err == nil && !env.OK {
		return backoff.Permanent(chatcacheerr.RemoteAPI(env.Error))
	}

	return nil
}

func retryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	secs, err := strconv.Atoi(header)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// doRetrying wraps do in a bounded retry loop: up to MaxAttempts total
// tries, exponential backoff, honoring a Retry-After override when
// larger than the computed delay.
func (c *Client) doRetrying(ctx context.Context, build func() (*http.Request, error), out any) error {
	attempt := 0
	op := func() (struct{}, error) {
		req, err := build()
		if err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		err = c.do(ctx, req, out)
		var ra *backoff.RetryAfterError
		if errors.As(err, &ra) {
			computed := time.Duration(float64(c.cfg.InitialDelay) * math.Pow(c.cfg.ExponentialBase, float64(attempt)))
			if computed > c.cfg.MaxDelay {
				computed = c.cfg.MaxDelay
			}
			if ra.Duration < computed {
				ra.Duration = computed
			}
		}
		attempt++
		return struct{}{}, err
	}

	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(c.backOff()),
		backoff.WithMaxTries(uint(c.cfg.MaxAttempts)),
	)
	return err
}

// get issues a GET to path with the given query parameters.
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	return c.doRetrying(ctx, func() (*http.Request, error) {
		u := c.cfg.BaseURL + path
		if len(query) > 0 {
			u += "?" + query.Encode()
		}
		return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	}, out)
}

// postForm issues a form-encoded POST to path.
func (c *Client) postForm(ctx context.Context, path string, form url.Values, out any) error {
	return c.doRetrying(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewBufferString(form.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	}, out)
}

// ListPages returns a lazily-iterated sequence of pages for a cursor-
// paginated endpoint, bounding memory to one page at a time. The
// caller's decode func turns the raw page body into a typed slice;
// cursor extraction is handled uniformly via pageEnvelope.
func ListPages[T any](ctx context.Context, c *Client, path string, baseQuery url.Values, decode func(body []byte) ([]T, error)) iter.Seq2[[]T, error] {
	return func(yield func([]T, error) bool) {
		cursor := ""
		for {
			query := url.Values{}
			for k, v := range baseQuery {
				query[k] = v
			}
			if cursor != "" {
				query.Set("cursor", cursor)
			}

			var rawBody []byte
			var page pageEnvelope
			err := c.doRetrying(ctx, func() (*http.Request, error) {
				u := c.cfg.BaseURL + path + "?" + query.Encode()
				return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
			}, rawBodyCapture(&rawBody, &page))
			if err != nil {
				yield(nil, err)
				return
			}

			items, err := decode(rawBody)
			if err != nil {
				yield(nil, chatcacheerr.NewCacheError(chatcacheerr.KindSerialization, "decode page", err))
				return
			}

			if !yield(items, nil) {
				return
			}

			if page.ResponseMetadata.NextCursor == "" {
				return
			}
			cursor = page.ResponseMetadata.NextCursor
		}
	}
}

// rawBodyCapture decodes into both the raw bytes (for the caller's typed
// decode) and the shared pageEnvelope (for cursor extraction), since the
// cursor field name and the item field name live in the same JSON body.
func rawBodyCapture(raw *[]byte, page *pageEnvelope) *captureTarget {
	return &captureTarget{raw: raw, page: page}
}

type captureTarget struct {
	raw *[]byte
	page *pageEnvelope
}

func (t *captureTarget) UnmarshalJSON(data []byte) error {
	*t.raw = append((*t.raw)[:0], data...)
	return json.Unmarshal(data, t.page)
}

// SendMessage posts text to channelID.
func (c *Client) SendMessage(ctx context.Context, channelID, text string) error {
	form := url.Values{"channel": {channelID}, "text": {text}}
	return c.postForm(ctx, "/chat.postMessage", form, nil)
}

// ReadHistory returns the messages in channelID matching opts.
func (c *Client) ReadHistory(ctx context.Context, channelID string, opts HistoryOptions) ([]Message, error) {
	query := historyQuery(channelID, opts)
	var body struct {
		Messages []Message `json:"messages"`
	}
	if err := c.get(ctx, "/conversations.history", query, &body); err != nil {
		return nil, err
	}
	return body.Messages, nil
}

// ReadThread returns the replies under threadTS in channelID.
func (c *Client) ReadThread(ctx context.Context, channelID, threadTS string, opts HistoryOptions) ([]Message, error) {
	query := historyQuery(channelID, opts)
	query.Set("ts", threadTS)
	var body struct {
		Messages []Message `json:"messages"`
	}
	if err := c.get(ctx, "/conversations.replies", query, &body); err != nil {
		return nil, err
	}
	return body.Messages, nil
}

func historyQuery(channelID string, opts HistoryOptions) url.Values {
	q := url.Values{"channel": {channelID}}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Oldest != "" {
		q.Set("oldest", opts.Oldest)
	}
	if opts.Latest != "" {
		q.Set("latest", opts.Latest)
	}
	return q
}
