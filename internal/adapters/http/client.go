package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	fhttp "github.com/bogdanfinn/fhttp"
	tls_client "github.com/bogdanfinn/tls-client"
	"github.com/bogdanfinn/tls-client/profiles"

	"github.com/ohmynofan/nodeseek-checkin-bot/internal/domain/model"
	"github.com/ohmynofan/nodeseek-checkin-bot/internal/platform/logger"
	"github.com/ohmynofan/nodeseek-checkin-bot/pkg/utils"
)

const (
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	defaultTimeout   = 30 * time.Second
	logBodyLimit     = 2000
)

type HTTPError struct {
	StatusCode int
	Status     string
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP Error %d: %s", e.StatusCode, e.Status)
}

type FetchOptions struct {
	Method            string
	Body              interface{}
	RawBody           []byte
	Cookie            string
	Origin            string
	Referer           string
	AdditionalHeaders map[string]string
}

type Response struct {
	StatusCode  int
	Status      string
	ContentType string
	Body        []byte
}

func (r *Response) JSON(out interface{}) error {
	if err := json.Unmarshal(r.Body, out); err != nil {
		return fmt.Errorf("failed to decode response body: %w", err)
	}
	return nil
}

type Options struct {
	Profile         string
	FallbackProfile string
	Proxy           string
	Timeout         time.Duration
	UserAgent       string
	Session         *model.Session
}

// APIClient is an HTTP client whose TLS and HTTP/2 fingerprint mimics a real
// browser. Cookies persist in an in-memory jar for the client's lifetime.
type APIClient struct {
	UserAgent  string
	Profile    string
	HTTPClient tls_client.HttpClient
	Log        *logger.ClassLogger
}

// ResolveProfile picks the primary fingerprint profile, falling back to the
// secondary one and then to the library default when a name is unknown.
func ResolveProfile(primary, fallback string) (profiles.ClientProfile, string) {
	if p, ok := profiles.MappedTLSClients[strings.TrimSpace(primary)]; ok {
		return p, primary
	}
	if p, ok := profiles.MappedTLSClients[strings.TrimSpace(fallback)]; ok {
		return p, fallback
	}
	return profiles.DefaultClientProfile, "default"
}

func NewAPIClient(opts Options) (*APIClient, error) {
	profile, profileName := ResolveProfile(opts.Profile, opts.FallbackProfile)

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	options := []tls_client.HttpClientOption{
		tls_client.WithTimeoutSeconds(int(timeout / time.Second)),
		tls_client.WithClientProfile(profile),
		tls_client.WithCookieJar(tls_client.NewCookieJar()),
		tls_client.WithRandomTLSExtensionOrder(),
	}
	if opts.Proxy != "" {
		options = append(options, tls_client.WithProxyUrl(opts.Proxy))
	}

	client, err := tls_client.NewHttpClient(tls_client.NewNoopLogger(), options...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tls client: %w", err)
	}

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	apiClient := &APIClient{
		UserAgent:  userAgent,
		Profile:    profileName,
		HTTPClient: client,
	}
	apiClient.Log = logger.NewLogger(apiClient, opts.Session)
	if profileName != opts.Profile {
		apiClient.Log.Warn(fmt.Sprintf("Browser profile %q unsupported, using %q", opts.Profile, profileName))
	}
	return apiClient, nil
}

func (c *APIClient) _generateHeaders(opts *FetchOptions, hasBody bool) fhttp.Header {
	headers := fhttp.Header{
		"accept":          {"application/json, text/plain, */*"},
		"accept-language": {"zh-CN,zh;q=0.9,en;q=0.8"},
		"user-agent":      {c.UserAgent},
		"sec-fetch-dest":  {"empty"},
		"sec-fetch-mode":  {"cors"},
		"sec-fetch-site":  {"same-origin"},
	}
	order := []string{"accept", "accept-language", "content-type", "cookie", "origin", "referer", "sec-fetch-dest", "sec-fetch-mode", "sec-fetch-site", "user-agent"}

	if hasBody {
		headers["content-type"] = []string{"application/json"}
	}
	if opts.Cookie != "" {
		headers["cookie"] = []string{opts.Cookie}
	}
	if opts.Origin != "" {
		headers["origin"] = []string{opts.Origin}
	}
	if opts.Referer != "" {
		headers["referer"] = []string{opts.Referer}
	}
	for key, value := range opts.AdditionalHeaders {
		key = strings.ToLower(key)
		if _, known := headers[key]; !known {
			order = append(order, key)
		}
		headers[key] = []string{value}
	}
	headers[fhttp.HeaderOrderKey] = order
	return headers
}

// Fetch performs one request. Non-2xx responses return both the response and
// an *HTTPError so callers can still inspect the body.
func (c *APIClient) Fetch(ctx context.Context, endpoint string, opts *FetchOptions) (*Response, error) {
	if opts == nil {
		opts = &FetchOptions{}
	}
	method := opts.Method
	if method == "" {
		method = fhttp.MethodGet
	}
	if opts.RawBody != nil && opts.Body != nil {
		return nil, fmt.Errorf("cannot specify both Body and RawBody")
	}

	var payload []byte
	switch {
	case opts.RawBody != nil:
		payload = opts.RawBody
	case opts.Body != nil && method != fhttp.MethodGet:
		b, err := json.Marshal(opts.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		payload = b
	}
	hasBody := payload != nil

	var reqBody io.Reader
	if hasBody {
		reqBody = bytes.NewReader(payload)
	}

	req, err := fhttp.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header = c._generateHeaders(opts, hasBody)

	if hasBody {
		c.Log.JustLog(fmt.Sprintf("%s %s\nBody:\n%s", method, endpoint, redactBody(payload)))
	} else {
		c.Log.JustLog(fmt.Sprintf("%s %s", method, endpoint))
	}

	res, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request error: %w", err)
	}
	defer res.Body.Close()

	resBodyBytes, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	c.Log.JustLog(fmt.Sprintf("Response %d:\n%s", res.StatusCode, utils.TruncateForLog(utils.BeautifyJSON(resBodyBytes), logBodyLimit)))

	resp := &Response{
		StatusCode:  res.StatusCode,
		Status:      res.Status,
		ContentType: res.Header.Get("Content-Type"),
		Body:        resBodyBytes,
	}
	if res.StatusCode >= 200 && res.StatusCode < 300 {
		return resp, nil
	}
	return resp, &HTTPError{
		StatusCode: res.StatusCode,
		Status:     res.Status,
		Body:       resBodyBytes,
	}
}

// SetCookies seeds the jar for rawURL's host.
func (c *APIClient) SetCookies(rawURL string, cookies map[string]string) error {
	if len(cookies) == 0 {
		return nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid cookie url: %w", err)
	}
	jarCookies := make([]*fhttp.Cookie, 0, len(cookies))
	for _, name := range sortedKeys(cookies) {
		jarCookies = append(jarCookies, &fhttp.Cookie{Name: name, Value: cookies[name], Path: "/"})
	}
	c.HTTPClient.SetCookies(u, jarCookies)
	return nil
}

// Cookies returns the jar's cookies applicable to rawURL.
func (c *APIClient) Cookies(rawURL string) map[string]string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return map[string]string{}
	}
	out := map[string]string{}
	for _, ck := range c.HTTPClient.GetCookies(u) {
		if ck == nil || ck.Name == "" {
			continue
		}
		out[ck.Name] = ck.Value
	}
	return out
}

// CookieHeader serializes the jar's cookies for rawURL, optionally limited to
// the given names.
func (c *APIClient) CookieHeader(rawURL string, only ...string) string {
	return FormatCookieHeader(FilterCookies(c.Cookies(rawURL), only...))
}

func redactBody(payload []byte) string {
	var fields map[string]interface{}
	if err := json.Unmarshal(payload, &fields); err != nil {
		return utils.TruncateForLog(string(payload), logBodyLimit)
	}
	if _, ok := fields["password"]; ok {
		fields["password"] = "***"
	}
	if v, ok := fields["token"].(string); ok {
		fields["token"] = utils.MaskSecret(v)
	}
	b, _ := json.MarshalIndent(fields, "", "  ")
	return string(b)
}
