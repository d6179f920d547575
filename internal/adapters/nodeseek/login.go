package nodeseek

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/ohmynofan/nodeseek-checkin-bot/internal/adapters/captcha"
	adhttp "github.com/ohmynofan/nodeseek-checkin-bot/internal/adapters/http"
	"github.com/ohmynofan/nodeseek-checkin-bot/internal/config"
	"github.com/ohmynofan/nodeseek-checkin-bot/internal/domain/model"
	"github.com/ohmynofan/nodeseek-checkin-bot/internal/platform/logger"
)

var (
	ErrNoToken       = errors.New("turnstile token unavailable")
	ErrLoginRejected = errors.New("login rejected")
	ErrNoCookies     = errors.New("login returned no cookies")
)

// CookieSource pre-fetches clearance cookies for a page, e.g. FlareSolverr.
type CookieSource interface {
	Enabled() bool
	Cookies(ctx context.Context, pageURL string) (map[string]string, error)
}

type signInRequest struct {
	Password string `json:"password"`
	Token    string `json:"token"`
	Source   string `json:"source"`
	Email    string `json:"email,omitempty"`
	Username string `json:"username,omitempty"`
}

type apiResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type AcquirerOptions struct {
	Site       config.Site
	Solver     captcha.Solver
	Flare      CookieSource
	NewBrowser BrowserFactory
	PerMinute  int
	Timeout    time.Duration
}

// Acquirer logs into the forum with a password and a Turnstile token and
// returns the resulting cookie string.
type Acquirer struct {
	site       config.Site
	solver     captcha.Solver
	flare      CookieSource
	newBrowser BrowserFactory
	limiter    *rate.Limiter
	timeout    time.Duration
	log        *logger.ClassLogger
}

func NewAcquirer(opts AcquirerOptions) *Acquirer {
	limit := rate.Inf
	if opts.PerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(opts.PerMinute))
	}
	a := &Acquirer{
		site:       opts.Site,
		solver:     opts.Solver,
		flare:      opts.Flare,
		newBrowser: opts.NewBrowser,
		limiter:    rate.NewLimiter(limit, 1),
		timeout:    opts.Timeout,
	}
	a.log = logger.NewLogger(a, nil)
	return a
}

// step bounds one network phase of the login. The captcha phase is bounded
// by the solver instead.
func (a *Acquirer) step(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.timeout)
}

func (a *Acquirer) Login(ctx context.Context, session *model.Session, username, password string) (string, error) {
	log := a.log.With(session)
	if strings.TrimSpace(username) == "" || password == "" {
		return "", errors.New("username and password required")
	}
	if err := a.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("login rate limit: %w", err)
	}

	pre, cancelPre := a.step(ctx)
	defer cancelPre()
	var flareCookies map[string]string
	if a.flare != nil && a.flare.Enabled() {
		cookies, err := a.flare.Cookies(pre, a.site.LoginPage)
		if err != nil {
			log.Warn(fmt.Sprintf("FlareSolverr cookies unavailable: %v", err))
		} else {
			flareCookies = cookies
		}
	}

	browser, err := a.newBrowser(session)
	if err != nil {
		return "", fmt.Errorf("failed to open browser: %w", err)
	}
	if _, err := browser.Fetch(pre, a.site.LoginPage, &adhttp.FetchOptions{Referer: a.site.BaseURL + "/"}); err != nil {
		log.Warn(fmt.Sprintf("Initial visit to login page failed: %v", err))
	}
	cancelPre()

	log.Log("Solving Turnstile challenge...")
	token, err := a.solver.SolveTurnstile(ctx, a.site.TurnstileSiteKey, a.site.LoginPage)
	if err == nil && token == "" {
		err = captcha.ErrEmptyToken
	}
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNoToken, err)
	}

	if err := browser.SetCookies(a.site.BaseURL, flareCookies); err != nil {
		log.Warn(fmt.Sprintf("Could not inject FlareSolverr cookies: %v", err))
	}

	payload := signInRequest{Password: password, Token: token, Source: "turnstile"}
	if strings.Contains(username, "@") {
		payload.Email = username
	} else {
		payload.Username = username
	}

	post, cancelPost := a.step(ctx)
	defer cancelPost()
	headers := &adhttp.FetchOptions{
		Method:  "POST",
		Body:    payload,
		Origin:  a.site.BaseURL,
		Referer: a.site.LoginPage,
	}
	resp, err := browser.Fetch(post, a.site.SignInAPI, headers)
	if resp == nil {
		return "", fmt.Errorf("sign-in request failed: %w", err)
	}
	var body apiResponse
	if jsonErr := resp.JSON(&body); jsonErr != nil {
		return "", fmt.Errorf("sign-in response unreadable (status %d): %w", resp.StatusCode, jsonErr)
	}
	if !body.Success {
		return "", fmt.Errorf("%w: %s", ErrLoginRejected, body.Message)
	}

	for _, page := range []string{a.site.BaseURL + "/", a.site.ProfilePage} {
		if _, err := browser.Fetch(post, page, &adhttp.FetchOptions{Origin: a.site.BaseURL, Referer: a.site.LoginPage}); err != nil {
			log.Warn(fmt.Sprintf("Fetching %s after login failed: %v", page, err))
		}
	}

	cookie := adhttp.FormatCookieHeader(browser.Cookies(a.site.BaseURL))
	if cookie == "" {
		return "", ErrNoCookies
	}
	log.Success("Login succeeded, session cookie refreshed")
	return cookie, nil
}
