package captcha

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const requestTimeout = 30 * time.Second

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: requestTimeout}
}

func postJSON(ctx context.Context, client *http.Client, provider, endpoint string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%s encode error: %w", provider, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s request build error: %w", provider, err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s http error: %w", provider, err)
	}
	defer res.Body.Close()

	resBody, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("%s read error: %w", provider, err)
	}

	if res.StatusCode >= 400 {
		return fmt.Errorf("%s status %s body=%s", provider, res.Status, strings.TrimSpace(string(resBody)))
	}

	if err := json.Unmarshal(resBody, out); err != nil {
		return fmt.Errorf("%s decode error: %w", provider, err)
	}
	return nil
}
