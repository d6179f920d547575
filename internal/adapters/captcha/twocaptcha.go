package captcha

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

const (
	twoCaptchaBaseURL = "https://api.2captcha.com"
	createTaskPath    = "/createTask"
	getResultPath     = "/getTaskResult"
	turnstileType     = "TurnstileTaskProxyless"
)

type TwoCaptcha struct {
	client  *http.Client
	baseURL string
	apiKey  string
	poll    PollConfig
}

func NewTwoCaptcha(apiKey string, poll PollConfig) *TwoCaptcha {
	return &TwoCaptcha{
		client:  newHTTPClient(),
		baseURL: twoCaptchaBaseURL,
		apiKey:  strings.TrimSpace(apiKey),
		poll:    poll,
	}
}

func (tc *TwoCaptcha) Name() string { return "2captcha" }

type createTaskRequest struct {
	ClientKey string      `json:"clientKey"`
	Task      interface{} `json:"task"`
}

type turnstileTask struct {
	Type       string `json:"type"`
	WebsiteURL string `json:"websiteURL"`
	WebsiteKey string `json:"websiteKey"`
}

type createTaskResponse struct {
	ErrorID          int    `json:"errorId"`
	TaskID           taskID `json:"taskId"`
	ErrorCode        string `json:"errorCode"`
	ErrorDescription string `json:"errorDescription"`
}

type resultRequest struct {
	ClientKey string `json:"clientKey"`
	TaskID    taskID `json:"taskId"`
}

type getResultResponse struct {
	ErrorID  int    `json:"errorId"`
	Status   string `json:"status"`
	Solution struct {
		Token string `json:"token"`
	} `json:"solution"`
	ErrorCode        string `json:"errorCode"`
	ErrorDescription string `json:"errorDescription"`
}

func (tc *TwoCaptcha) SolveTurnstile(ctx context.Context, siteKey, pageURL string) (string, error) {
	if err := validateInput(tc.Name(), tc.apiKey, siteKey, pageURL); err != nil {
		return "", err
	}

	task := turnstileTask{
		Type:       turnstileType,
		WebsiteURL: pageURL,
		WebsiteKey: siteKey,
	}
	var createResp createTaskResponse
	if err := postJSON(ctx, tc.client, tc.Name(), tc.baseURL+createTaskPath, createTaskRequest{ClientKey: tc.apiKey, Task: task}, &createResp); err != nil {
		return "", err
	}
	if createResp.ErrorID != 0 {
		return "", codeError(tc.Name(), "createTask", createResp.ErrorCode, createResp.ErrorDescription)
	}

	return pollForToken(ctx, tc.poll, tc.Name(), func(ctx context.Context) (string, bool, error) {
		var result getResultResponse
		req := resultRequest{ClientKey: tc.apiKey, TaskID: createResp.TaskID}
		if err := postJSON(ctx, tc.client, tc.Name(), tc.baseURL+getResultPath, req, &result); err != nil {
			return "", false, nil
		}

		if result.ErrorID != 0 {
			if transientCode(result.ErrorCode) {
				return "", false, nil
			}
			return "", false, codeError(tc.Name(), "getTaskResult", result.ErrorCode, result.ErrorDescription)
		}

		switch strings.ToLower(result.Status) {
		case "processing":
			return "", false, nil
		case "ready":
			return result.Solution.Token, true, nil
		default:
			return "", false, fmt.Errorf("unexpected 2captcha status: %s", result.Status)
		}
	})
}
