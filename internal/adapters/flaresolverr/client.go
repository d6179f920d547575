package flaresolverr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/ohmynofan/nodeseek-checkin-bot/internal/platform/logger"
)

const (
	defaultTimeout = 60 * time.Second
	maxRenderMs    = 120000
)

var ErrNoCookies = errors.New("flaresolverr returned no cookies")

// Client asks a FlareSolverr instance to render a page in a headless browser
// and hands back the cookies it collected.
type Client struct {
	http *resty.Client
	url  string
	log  *logger.ClassLogger
}

func New(endpoint string) *Client {
	c := &Client{
		url: strings.TrimSpace(endpoint),
		http: resty.New().
			SetTimeout(defaultTimeout).
			SetHeader("content-type", "application/json"),
	}
	c.log = logger.NewLogger(c, nil)
	return c
}

func (c *Client) Enabled() bool {
	return c != nil && c.url != ""
}

type request struct {
	Cmd        string `json:"cmd"`
	URL        string `json:"url"`
	MaxTimeout int    `json:"maxTimeout"`
}

type response struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Solution struct {
		URL       string `json:"url"`
		Status    int    `json:"status"`
		UserAgent string `json:"userAgent"`
		Cookies   []struct {
			Name  string `json:"name"`
			Value string `json:"value"`
		} `json:"cookies"`
	} `json:"solution"`
}

// Cookies renders pageURL and returns name/value cookies.
func (c *Client) Cookies(ctx context.Context, pageURL string) (map[string]string, error) {
	if !c.Enabled() {
		return nil, errors.New("flaresolverr url not configured")
	}

	var out response
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(request{Cmd: "request.get", URL: pageURL, MaxTimeout: maxRenderMs}).
		SetResult(&out).
		Post(c.url)
	if err != nil {
		return nil, fmt.Errorf("flaresolverr request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("flaresolverr status %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}

	cookies := make(map[string]string, len(out.Solution.Cookies))
	for _, ck := range out.Solution.Cookies {
		if ck.Name != "" {
			cookies[ck.Name] = ck.Value
		}
	}
	if len(cookies) == 0 {
		return nil, ErrNoCookies
	}
	c.log.JustLog(fmt.Sprintf("FlareSolverr rendered %s, %d cookies", pageURL, len(cookies)))
	return cookies, nil
}
