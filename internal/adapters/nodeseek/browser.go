package nodeseek

import (
	"context"

	adhttp "github.com/ohmynofan/nodeseek-checkin-bot/internal/adapters/http"
	"github.com/ohmynofan/nodeseek-checkin-bot/internal/domain/model"
)

// Browser is the subset of the fingerprinted client the forum flows need.
type Browser interface {
	Fetch(ctx context.Context, endpoint string, opts *adhttp.FetchOptions) (*adhttp.Response, error)
	SetCookies(rawURL string, cookies map[string]string) error
	Cookies(rawURL string) map[string]string
}

// BrowserFactory opens a fresh browser with an empty cookie jar.
type BrowserFactory func(session *model.Session) (Browser, error)

func NewBrowserFactory(opts adhttp.Options) BrowserFactory {
	return func(session *model.Session) (Browser, error) {
		o := opts
		o.Session = session
		client, err := adhttp.NewAPIClient(o)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}
