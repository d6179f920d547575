package captcha

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

const turnstileTaskType = "Turnstile"

// Turnstile talks to a self-hosted or third-party solving service exposing
// the createTask/getTaskResult pair with a flat task payload.
type Turnstile struct {
	client    *http.Client
	baseURL   string
	clientKey string
	poll      PollConfig
}

func NewTurnstile(baseURL, clientKey string, poll PollConfig) *Turnstile {
	return &Turnstile{
		client:    newHTTPClient(),
		baseURL:   strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		clientKey: strings.TrimSpace(clientKey),
		poll:      poll,
	}
}

func (t *Turnstile) Name() string { return "turnstile-service" }

type turnstileCreateReq struct {
	ClientKey string `json:"clientKey"`
	Type      string `json:"type"`
	URL       string `json:"url"`
	SiteKey   string `json:"siteKey"`
}

type turnstileCreateResp struct {
	ErrorID          int    `json:"errorId"`
	ErrorCode        string `json:"errorCode"`
	ErrorDescription string `json:"errorDescription"`
	TaskID           taskID `json:"taskId"`
}

type turnstileResultReq struct {
	ClientKey string `json:"clientKey"`
	TaskID    taskID `json:"taskId"`
}

type turnstileResultResp struct {
	ErrorID   int    `json:"errorId"`
	ErrorCode string `json:"errorCode"`
	Status    string `json:"status"`
	Solution  struct {
		Token string `json:"token"`
	} `json:"solution"`
	Result struct {
		Response struct {
			Token string `json:"token"`
		} `json:"response"`
	} `json:"result"`
}

func (r turnstileResultResp) token() string {
	if tok := strings.TrimSpace(r.Solution.Token); tok != "" {
		return tok
	}
	return strings.TrimSpace(r.Result.Response.Token)
}

func (t *Turnstile) SolveTurnstile(ctx context.Context, siteKey, pageURL string) (string, error) {
	if t.baseURL == "" {
		return "", fmt.Errorf("%s: %w", t.Name(), errNotConfigured)
	}
	if err := validateInput(t.Name(), t.clientKey, siteKey, pageURL); err != nil {
		return "", err
	}

	var created turnstileCreateResp
	err := postJSON(ctx, t.client, t.Name(), t.baseURL+"/createTask", turnstileCreateReq{
		ClientKey: t.clientKey,
		Type:      turnstileTaskType,
		URL:       pageURL,
		SiteKey:   siteKey,
	}, &created)
	if err != nil {
		return "", fmt.Errorf("createTask: %w", err)
	}
	if strings.EqualFold(strings.TrimSpace(created.ErrorCode), codeZeroBalance) {
		return "", ErrZeroBalance
	}
	if created.TaskID.Empty() {
		return "", fmt.Errorf("%s createTask returned no taskId (errorCode=%q %s)", t.Name(), created.ErrorCode, created.ErrorDescription)
	}

	return pollForToken(ctx, t.poll, t.Name(), func(ctx context.Context) (string, bool, error) {
		var result turnstileResultResp
		req := turnstileResultReq{ClientKey: t.clientKey, TaskID: created.TaskID}
		if err := postJSON(ctx, t.client, t.Name(), t.baseURL+"/getTaskResult", req, &result); err != nil {
			// transient poll failures count as "not ready"
			return "", false, nil
		}
		if result.ErrorID != 0 || result.ErrorCode != "" {
			if transientCode(result.ErrorCode) {
				return "", false, nil
			}
			return "", false, codeError(t.Name(), "getTaskResult", result.ErrorCode, "")
		}
		if isTerminalStatus(result.Status) {
			return result.token(), true, nil
		}
		return "", false, nil
	})
}
