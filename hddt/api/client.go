package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/cookiejar"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/taxaxion/go-hddt-crawler/hddt/util"
)

// DefaultTimeout is the portal-wide request timeout. Listing and document
// calls override it with much shorter values: the upstream answers quickly
// or not at all, and a fast failure feeds the retry loop.
const DefaultTimeout = 30 * time.Second

// Client is one request context for the portal: its own transport, cookie
// jar, fingerprint headers and bearer token. The portal correlates cookies
// and headers per session, so a Client must be rebuilt (never mutated) for
// every distinct request group.
type Client struct {
	rest    *resty.Client
	baseURL string
}

// Options configure a single request context.
type Options struct {
	Timeout time.Duration
	Token   string
	Headers map[string]string
}

func New(baseURL string, opts Options) *Client {
	jar, _ := cookiejar.New(nil)

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	rest := resty.New().
		SetBaseURL(baseURL).
		SetCookieJar(jar).
		SetTimeout(timeout)

	if len(opts.Headers) > 0 {
		rest.SetHeaders(opts.Headers)
	}
	if opts.Token != "" {
		rest.SetAuthToken(opts.Token)
	}

	return &Client{rest: rest, baseURL: baseURL}
}

// GetJSON performs a GET and decodes the JSON body into result.
func (c *Client) GetJSON(ctx context.Context, endpoint string, params map[string]string, result interface{}) error {
	r := c.rest.R().SetContext(ctx)
	if util.HttpTraceEnabled() {
		r.EnableTrace()
	}
	if len(params) > 0 {
		r.SetQueryParams(params)
	}

	resp, err := r.Get(endpoint)
	printTraceInfo(endpoint, err, resp)
	if err = checkError(resp, err); err != nil {
		return err
	}

	if err := json.Unmarshal(resp.Body(), result); err != nil {
		return &ParseError{Op: endpoint, Cause: err}
	}
	return nil
}

// GetBytes performs a GET and returns the raw body, typically a ZIP archive.
func (c *Client) GetBytes(ctx context.Context, endpoint string, params map[string]string) ([]byte, error) {
	r := c.rest.R().SetContext(ctx)
	if util.HttpTraceEnabled() {
		r.EnableTrace()
	}
	if len(params) > 0 {
		r.SetQueryParams(params)
	}

	resp, err := r.Get(endpoint)
	printTraceInfo(endpoint, err, resp)
	if err = checkError(resp, err); err != nil {
		return nil, err
	}
	return resp.Body(), nil
}

// PostJSON performs a POST with a JSON body and decodes the JSON response
// into result.
func (c *Client) PostJSON(ctx context.Context, endpoint string, body interface{}, result interface{}) error {
	r := c.rest.R().SetContext(ctx)
	if util.HttpTraceEnabled() {
		r.EnableTrace()
	}

	resp, err := r.
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(endpoint)

	printTraceInfo(endpoint, err, resp)
	if err = checkError(resp, err); err != nil {
		return err
	}

	if err := json.Unmarshal(resp.Body(), result); err != nil {
		return &ParseError{Op: endpoint, Cause: err}
	}
	return nil
}

// portalMessage is the error body the portal attaches to non-2xx responses.
type portalMessage struct {
	Message string `json:"message"`
}

func checkError(resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("portal request: %w", err)
	}
	if resp.IsError() {
		body := resp.String()
		var msg portalMessage
		if body != "" {
			_ = json.Unmarshal([]byte(body), &msg)
		}
		return &RequestError{
			StatusCode: resp.StatusCode(),
			Message:    msg.Message,
			Body:       body,
		}
	}
	return nil
}

func printTraceInfo(endpoint string, err error, resp *resty.Response) {

	if !util.HttpTraceEnabled() || resp == nil {
		return
	}

	fmt.Println("Response Info:")
	fmt.Println("  URL        :", endpoint)
	fmt.Println("  Error      :", err)
	fmt.Println("  Status Code:", resp.StatusCode())
	fmt.Println("  Status     :", resp.Status())
	fmt.Println("  Time       :", resp.Time())
	fmt.Println("  Received At:", resp.ReceivedAt())

	ti := resp.Request.TraceInfo()
	fmt.Println("Request Trace Info:")
	fmt.Println("  DNSLookup     :", ti.DNSLookup)
	fmt.Println("  ConnTime      :", ti.ConnTime)
	fmt.Println("  ServerTime    :", ti.ServerTime)
	fmt.Println("  ResponseTime  :", ti.ResponseTime)
	fmt.Println("  TotalTime     :", ti.TotalTime)
	fmt.Println("  RequestAttempt:", ti.RequestAttempt)
}
