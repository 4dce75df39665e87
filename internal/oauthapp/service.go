// Package oauthapp claims and refreshes access tokens from third-party apps'
// token endpoints on behalf of users.
package oauthapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"maps"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-authgate/mcpgate/internal/core"
	"github.com/go-authgate/mcpgate/internal/logger"
	"github.com/go-authgate/mcpgate/internal/models"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const maxResponseSize = 1 << 20

// standardFields are token response members that map onto OAuth2Value
// fields. Everything else lands in OAuth2Value.Data.
var standardFields = map[string]struct{}{
	"access_token":  {},
	"refresh_token": {},
	"expires_in":    {},
	"token_type":    {},
	"scope":         {},
}

// ClaimRequest carries everything needed to exchange an authorization code
// issued by an external app.
type ClaimRequest struct {
	Code                string
	CodeVerifier        string // sent only when non-empty (PKCE)
	ClientID            string
	ClientSecret        string
	TokenURL            string
	Scope               string
	AuthorizationMethod models.AuthorizationMethod
	Props               map[string]any
	RedirectURL         string
}

// Service talks to external token endpoints. It never retries; callers decide
// what to do with an OAuth2ExchangeError.
type Service struct {
	httpClient *http.Client
	metrics    core.Recorder
	log        *zap.Logger
	now        func() time.Time
}

// NewService creates a service that performs every exchange with httpClient,
// which must carry a bounded timeout.
func NewService(httpClient *http.Client, metrics core.Recorder, log *zap.Logger) *Service {
	return &Service{
		httpClient: httpClient,
		metrics:    metrics,
		log:        log,
		now:        time.Now,
	}
}

// SetClock overrides the time source used for claimed_at.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Claim exchanges an authorization code for tokens.
func (s *Service) Claim(ctx context.Context, appName string, req ClaimRequest) (*models.OAuth2Value, error) {
	if req.Code == "" {
		return nil, core.Validationf("authorization code is required")
	}
	if req.TokenURL == "" || req.ClientID == "" {
		return nil, core.Validationf("token url and client id are required")
	}

	cfg := s.oauthConfig(req.ClientID, req.ClientSecret, req.TokenURL, req.AuthorizationMethod)
	cfg.RedirectURL = req.RedirectURL

	var opts []oauth2.AuthCodeOption
	if req.CodeVerifier != "" {
		opts = append(opts, oauth2.VerifierOption(req.CodeVerifier))
	}

	ctx, capture := s.withClient(ctx)
	start := time.Now()
	token, err := cfg.Exchange(ctx, req.Code, opts...)
	s.metrics.RecordExternalTokenCall(appName, time.Since(start))
	if err != nil {
		s.metrics.RecordConnectionClaim(appName, false)
		exchangeErr := toExchangeError(appName, err)
		s.log.Warn("oauth2 claim failed",
			zap.String("app", appName),
			zap.Int("status", exchangeErr.StatusCode),
			zap.String("error_code", exchangeErr.Code),
		)
		return nil, exchangeErr
	}
	s.metrics.RecordConnectionClaim(appName, true)

	value := &models.OAuth2Value{
		Type:                models.ConnectionTypeOAuth2,
		AccessToken:         token.AccessToken,
		RefreshToken:        token.RefreshToken,
		TokenType:           token.TokenType,
		ClaimedAt:           s.now().Unix(),
		TokenURL:            req.TokenURL,
		ClientID:            req.ClientID,
		ClientSecret:        req.ClientSecret,
		Scope:               req.Scope,
		AuthorizationMethod: methodOrDefault(req.AuthorizationMethod),
		Props:               maps.Clone(req.Props),
	}
	applyResponse(value, token, capture.fields())

	s.log.Info("oauth2 connection claimed",
		zap.String("app", appName),
		zap.String("access_token_prefix", logger.Prefix(value.AccessToken)),
		zap.Int64("expires_in", value.ExpiresIn),
	)
	return value, nil
}

// Refresh exchanges the stored refresh token for a new access token. When the
// upstream omits refresh_token the prior one is kept.
func (s *Service) Refresh(
	ctx context.Context,
	appName, ownerID string,
	current *models.OAuth2Value,
) (*models.OAuth2Value, error) {
	if current.RefreshToken == "" {
		return nil, core.Validationf("connection for %s has no refresh token", appName)
	}

	cfg := s.oauthConfig(current.ClientID, current.ClientSecret, current.TokenURL, current.AuthorizationMethod)

	ctx, capture := s.withClient(ctx)
	start := time.Now()
	token, err := cfg.TokenSource(ctx, &oauth2.Token{
		RefreshToken: current.RefreshToken,
	}).Token()
	s.metrics.RecordExternalTokenCall(appName, time.Since(start))
	if err != nil {
		exchangeErr := toExchangeError(appName, err)
		s.log.Warn("oauth2 refresh failed",
			zap.String("app", appName),
			zap.String("owner_id", ownerID),
			zap.Int("status", exchangeErr.StatusCode),
			zap.String("error_code", exchangeErr.Code),
		)
		return nil, exchangeErr
	}

	next := current.Clone()
	next.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		next.RefreshToken = token.RefreshToken
	}
	if token.TokenType != "" {
		next.TokenType = token.TokenType
	}
	next.ClaimedAt = s.now().Unix()
	applyResponse(next, token, capture.fields())

	s.log.Info("oauth2 connection refreshed",
		zap.String("app", appName),
		zap.String("owner_id", ownerID),
		zap.Bool("refresh_token_rotated", token.RefreshToken != "" && token.RefreshToken != current.RefreshToken),
	)
	return next, nil
}

func (s *Service) oauthConfig(
	clientID, clientSecret, tokenURL string,
	method models.AuthorizationMethod,
) *oauth2.Config {
	style := oauth2.AuthStyleInParams
	if methodOrDefault(method) == models.AuthorizationMethodHeader {
		style = oauth2.AuthStyleInHeader
	}
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  tokenURL,
			AuthStyle: style,
		},
	}
}

// withClient attaches a per-call copy of the HTTP client whose transport
// captures the response body.
func (s *Service) withClient(ctx context.Context) (context.Context, *captureTransport) {
	base := s.httpClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	capture := &captureTransport{base: base}

	c := *s.httpClient
	c.Transport = capture
	return context.WithValue(ctx, oauth2.HTTPClient, &c), capture
}

// applyResponse copies expires_in, scope and non-standard fields from the raw
// token response onto value.
func applyResponse(value *models.OAuth2Value, token *oauth2.Token, raw map[string]any) {
	if v, ok := raw["expires_in"]; ok {
		if secs, ok := toInt64(v); ok {
			value.ExpiresIn = secs
		}
	} else if !token.Expiry.IsZero() {
		value.ExpiresIn = int64(time.Until(token.Expiry).Round(time.Second).Seconds())
	}

	if scope, ok := raw["scope"].(string); ok && scope != "" {
		value.Scope = scope
	}

	for k, v := range raw {
		if _, std := standardFields[k]; std {
			continue
		}
		if value.Data == nil {
			value.Data = make(map[string]any)
		}
		value.Data[k] = v
	}
}

// captureTransport keeps a copy of the token endpoint's response body. The
// parsed oauth2.Token does not expose the full set of returned fields.
type captureTransport struct {
	base        http.RoundTripper
	body        []byte
	contentType string
}

func (t *captureTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	resp.Body.Close()
	if err != nil {
		return nil, err
	}
	t.body = body
	t.contentType = resp.Header.Get("Content-Type")
	resp.Body = io.NopCloser(bytes.NewReader(body))
	return resp, nil
}

// fields decodes the captured body as a JSON object or form values.
func (t *captureTransport) fields() map[string]any {
	out := make(map[string]any)
	mediaType, _, _ := mime.ParseMediaType(t.contentType)
	switch mediaType {
	case "application/x-www-form-urlencoded", "text/plain":
		vals, err := url.ParseQuery(string(t.body))
		if err != nil {
			return out
		}
		for k := range vals {
			out[k] = vals.Get(k)
		}
	default:
		_ = json.Unmarshal(t.body, &out)
	}
	return out
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	}
	return 0, false
}

func methodOrDefault(m models.AuthorizationMethod) models.AuthorizationMethod {
	if m == "" {
		return models.AuthorizationMethodBody
	}
	return m
}

// toExchangeError converts an x/oauth2 error into an OAuth2ExchangeError,
// keeping the upstream status and body when there was a response.
func toExchangeError(appName string, err error) *core.OAuth2ExchangeError {
	out := &core.OAuth2ExchangeError{App: appName, Err: err}

	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		if re.Response != nil {
			out.StatusCode = re.Response.StatusCode
		}
		out.Code = re.ErrorCode
		out.Body = string(re.Body)
	}
	return out
}
