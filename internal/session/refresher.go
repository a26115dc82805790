package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"vhrscraper/internal/components/assert"
	"vhrscraper/internal/components/chrono"
	"vhrscraper/internal/components/telemetry"

	"github.com/go-resty/resty/v2"
)

const DefaultTokenEndpoint = "https://auth.carfax.com/oauth/token"

const (
	report_refresher_refresh = "refresher.refresh"
)

// OAuthRefresher refreshes tokens with the refresh_token grant.
type OAuthRefresher struct {
	http     *resty.Client
	endpoint string
	clientId string
	time     chrono.API
	tel      telemetry.API
}

func NewOAuthRefresher(endpoint, clientId string, time chrono.API, tel telemetry.API) OAuthRefresher {
	assert.NotEmptyStr(endpoint)
	assert.NotNil(time)
	assert.NotNil(tel)

	tel = telemetry.NewScopedAPI("oauth", tel)
	client := resty.New()
	telemetry.InstrumentResty(client, tel, nil)

	return OAuthRefresher{
		http:     client,
		endpoint: endpoint,
		clientId: clientId,
		time:     time,
		tel:      tel,
	}
}

func (r OAuthRefresher) exchange(ctx context.Context, op string, form url.Values) (Token, error) {
	if r.clientId != "" {
		form.Set("client_id", r.clientId)
	}

	res, err := r.http.R().
		SetContext(ctx).
		SetBody(form.Encode()).
		SetHeader("content-type", "application/x-www-form-urlencoded").
		SetHeader("accept", "application/json").
		Post(r.endpoint)
	if err != nil {
		return Token{}, fmt.Errorf("oauth: %s request: %w", op, err)
	}
	if res.StatusCode() != 200 {
		r.tel.ReportWarning(report_refresher_refresh, op, res.Status(), res.String())
		return Token{}, fmt.Errorf("oauth: %s rejected: %s", op, res.Status())
	}

	var token Token
	err = json.Unmarshal(res.Body(), &token)
	if err != nil {
		return Token{}, fmt.Errorf("oauth: parse %s response: %w", op, err)
	}
	if token.AccessToken == "" {
		return Token{}, fmt.Errorf("oauth: %s response has no access_token", op)
	}
	token.Stamp(r.time.Now())
	return token, nil
}

func (r OAuthRefresher) Refresh(ctx context.Context, current Token) (Token, error) {
	if current.RefreshToken == "" {
		return Token{}, ErrNotRefreshable
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	if current.Scope != "" {
		form.Set("scope", current.Scope)
	}
	form.Set("refresh_token", current.RefreshToken)

	refreshed, err := r.exchange(ctx, "refresh", form)
	if err != nil {
		return Token{}, err
	}

	// the provider only rotates the refresh token sometimes
	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = current.RefreshToken
	}
	return refreshed, nil
}

// PasswordLogin obtains a new token set with the resource owner password
// grant.
func (r OAuthRefresher) PasswordLogin(ctx context.Context, username, password string) (Token, error) {
	if username == "" || password == "" {
		return Token{}, ErrNoCredentials
	}

	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("username", username)
	form.Set("password", password)
	form.Set("scope", DefaultScope)

	return r.exchange(ctx, "login", form)
}
