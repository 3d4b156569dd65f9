package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const defaultGraphBaseURL = "https://graph.qq.com"

// ErrOAuthRejected is returned when the QQ connect endpoints report an error
// for the supplied code or token.
var ErrOAuthRejected = errors.New("qq oauth exchange rejected")

// QQConfig holds the QQ connect application credentials.
type QQConfig struct {
	AppID   string
	AppKey  string
	BaseURL string // overridable for tests; defaults to graph.qq.com
}

// QQClient talks to the QQ connect OAuth endpoints.
type QQClient struct {
	config QQConfig
	client *http.Client
}

// NewQQClient creates a new QQClient.
func NewQQClient(config QQConfig) *QQClient {
	if config.BaseURL == "" {
		config.BaseURL = defaultGraphBaseURL
	}
	return &QQClient{
		config: config,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// AuthCodeURL builds the authorize URL the server redirects a user to.
func (c *QQClient) AuthCodeURL(redirectURI, state string) string {
	params := url.Values{}
	params.Set("response_type", "code")
	params.Set("client_id", c.config.AppID)
	params.Set("redirect_uri", redirectURI)
	params.Set("state", state)
	params.Set("scope", "get_user_info")
	return c.config.BaseURL + "/oauth2.0/authorize?" + params.Encode()
}

// TokenResult holds the outcome of an authorization-code exchange.
type TokenResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    string
}

// ExchangeCode trades an authorization code for an access token.
func (c *QQClient) ExchangeCode(ctx context.Context, code, redirectURI string) (*TokenResult, error) {
	params := url.Values{}
	params.Set("grant_type", "authorization_code")
	params.Set("client_id", c.config.AppID)
	params.Set("client_secret", c.config.AppKey)
	params.Set("code", code)
	params.Set("redirect_uri", redirectURI)
	params.Set("fmt", "json")

	body, err := c.get(ctx, "/oauth2.0/token", params)
	if err != nil {
		return nil, err
	}
	return &TokenResult{
		AccessToken:  stringValue(body, "access_token"),
		RefreshToken: stringValue(body, "refresh_token"),
		ExpiresIn:    stringValue(body, "expires_in"),
	}, nil
}

// OpenIDResult identifies a QQ user. The unionID is the stable identifier
// across applications and is what accounts are keyed on.
type OpenIDResult struct {
	OpenID  string
	UnionID string
}

// FetchOpenID resolves the openID and unionID for an access token.
func (c *QQClient) FetchOpenID(ctx context.Context, accessToken string) (*OpenIDResult, error) {
	params := url.Values{}
	params.Set("access_token", accessToken)
	params.Set("unionid", "1")
	params.Set("fmt", "json")

	body, err := c.get(ctx, "/oauth2.0/me", params)
	if err != nil {
		return nil, err
	}
	res := &OpenIDResult{
		OpenID:  stringValue(body, "openid"),
		UnionID: stringValue(body, "unionid"),
	}
	if res.UnionID == "" {
		return nil, fmt.Errorf("%w: no unionid in response", ErrOAuthRejected)
	}
	return res, nil
}

// UserInfo is the public profile of a QQ user.
type UserInfo struct {
	Nickname  string
	FigureURL string
}

// FetchUserInfo retrieves the user's nickname and the largest available
// avatar URL.
func (c *QQClient) FetchUserInfo(ctx context.Context, accessToken, openID string) (*UserInfo, error) {
	params := url.Values{}
	params.Set("access_token", accessToken)
	params.Set("oauth_consumer_key", c.config.AppID)
	params.Set("openid", openID)

	body, err := c.getRaw(ctx, "/user/get_user_info", params)
	if err != nil {
		return nil, err
	}
	if ret, ok := body["ret"].(float64); !ok || ret != 0 {
		return nil, fmt.Errorf("%w: get_user_info ret=%v msg=%s", ErrOAuthRejected, body["ret"], stringValue(body, "msg"))
	}

	// Prefer the 640x640 avatar, then 100x100, then the legacy 40x40.
	figure := stringValue(body, "figureurl_qq_1")
	if v := stringValue(body, "figureurl_2"); v != "" {
		figure = v
	}
	if v := stringValue(body, "figureurl_qq"); v != "" {
		figure = v
	}

	return &UserInfo{
		Nickname:  stringValue(body, "nickname"),
		FigureURL: figure,
	}, nil
}

// get performs a GET request and rejects responses carrying an OAuth error.
func (c *QQClient) get(ctx context.Context, path string, params url.Values) (map[string]any, error) {
	body, err := c.getRaw(ctx, path, params)
	if err != nil {
		return nil, err
	}
	if _, bad := body["error"]; bad {
		return nil, fmt.Errorf("%w: %s: %s", ErrOAuthRejected, stringValue(body, "error"), stringValue(body, "error_description"))
	}
	if _, bad := body["code"]; bad {
		return nil, fmt.Errorf("%w: code=%s msg=%s", ErrOAuthRejected, stringValue(body, "code"), stringValue(body, "msg"))
	}
	return body, nil
}

func (c *QQClient) getRaw(ctx context.Context, path string, params url.Values) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("qq oauth request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("qq oauth endpoint returned %d", resp.StatusCode)
	}

	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("failed to decode qq oauth response: %w", err)
	}
	return body, nil
}

// stringValue renders one response field as a string; the QQ endpoints are
// loose about numeric versus string fields.
func stringValue(body map[string]any, key string) string {
	switch v := body[key].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	case bool:
		return fmt.Sprintf("%t", v)
	default:
		return ""
	}
}
