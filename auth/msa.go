package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Scope and client ID are fixed to the Xbox Live title/device flow used by
// game consoles and companion apps; they are not user-configurable because
// the signed-request pipeline downstream assumes this particular audience.
const (
	msaScope    = "service::user.auth.xboxlive.com::MBI_SSL"
	msaClientID = "00000000441cc96b"

	defaultPollInterval = 5 * time.Second
)

// Overridable for tests; production callers never need to touch these.
var (
	msaDeviceCodeURL  = "https://login.live.com/oauth20_connect.srf"
	msaAccessTokenURL = "https://login.live.com/oauth20_token.srf"
)

// DeviceCodeResponse is what MSA returns when starting the device-code
// flow: a code for this device and a user-facing code to enter at
// VerificationURI.
type DeviceCodeResponse struct {
	UserCode        string `json:"user_code"`
	DeviceCode      string `json:"device_code"`
	VerificationURI string `json:"verification_uri"`
	Interval        uint64 `json:"interval"`
	ExpiresIn       uint64 `json:"expires_in"`
}

// MSAToken is the token pair returned by MSA, cacheable and refreshable.
type MSAToken struct {
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	UserID       string `json:"user_id"`
	ExpiresIn    uint64 `json:"expires_in"`
}

type msaErrorResponse struct {
	Error string `json:"error"`
}

// MSAClient drives the MSA device-authorization flow.
type MSAClient struct {
	http *http.Client
}

// NewMSAClient builds an MSAClient using httpClient for requests.
func NewMSAClient(httpClient *http.Client) *MSAClient {
	return &MSAClient{http: httpClient}
}

// StartDeviceAuth begins the device-code flow.
func (m *MSAClient) StartDeviceAuth(ctx context.Context) (*DeviceCodeResponse, error) {
	form := url.Values{
		"scope":         {msaScope},
		"client_id":     {msaClientID},
		"response_type": {"device_code"},
	}
	var out DeviceCodeResponse
	if err := m.postForm(ctx, msaDeviceCodeURL, form, &out); err != nil {
		return nil, fmt.Errorf("starting device auth: %w", err)
	}
	return &out, nil
}

// WaitDeviceAuth polls until the user authorizes the device code, the code
// expires (ErrDeviceCodeExpired), or ctx is canceled.
func (m *MSAClient) WaitDeviceAuth(ctx context.Context, dc *DeviceCodeResponse) (Expiring[MSAToken], error) {
	var zero Expiring[MSAToken]

	interval := time.Duration(dc.Interval) * time.Second
	if interval <= 0 {
		interval = defaultPollInterval
	}
	deadline := time.Now().Add(time.Duration(dc.ExpiresIn) * time.Second)

	form := url.Values{
		"grant_type":  {"urn:ietf:params:oauth:grant-type:device_code"},
		"device_code": {dc.DeviceCode},
		"client_id":   {msaClientID},
	}

	for {
		if time.Now().After(deadline) {
			return zero, ErrDeviceCodeExpired
		}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(interval):
		}

		var token MSAToken
		var errResp msaErrorResponse
		switch err := m.postFormEither(ctx, msaAccessTokenURL, form, &token, &errResp); {
		case err != nil:
			return zero, fmt.Errorf("polling for token: %w", err)
		case errResp.Error == "":
			return NewExpiringWithDuration(token, token.ExpiresIn), nil
		case errResp.Error == "authorization_pending":
			continue
		case errResp.Error == "slow_down":
			interval += 5 * time.Second
			continue
		default:
			return zero, fmt.Errorf("%w: %s", ErrAuthRejected, errResp.Error)
		}
	}
}

// RefreshToken exchanges a refresh token for a new MSA token pair.
func (m *MSAClient) RefreshToken(ctx context.Context, refreshToken string) (Expiring[MSAToken], error) {
	form := url.Values{
		"scope":         {msaScope},
		"grant_type":    {"refresh_token"},
		"client_id":     {msaClientID},
		"refresh_token": {refreshToken},
	}
	var token MSAToken
	if err := m.postForm(ctx, msaAccessTokenURL, form, &token); err != nil {
		return Expiring[MSAToken]{}, fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}
	return NewExpiringWithDuration(token, token.ExpiresIn), nil
}

func (m *MSAClient) postForm(ctx context.Context, reqURL string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp msaErrorResponse
		json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Error != "" {
			return fmt.Errorf("%s: %s", reqURL, errResp.Error)
		}
		return fmt.Errorf("%s: status %d", reqURL, resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

// postFormEither decodes the response body into a single combined struct so
// that either a successful token or an MSA error JSON body parses cleanly,
// mirroring the fact that MSA's device-token endpoint uses the same 200
// status for both "pending" and "granted" responses.
func (m *MSAClient) postFormEither(ctx context.Context, reqURL string, form url.Values, token *MSAToken, errResp *msaErrorResponse) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var combined struct {
		MSAToken
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&combined); err != nil {
		return err
	}
	*token = combined.MSAToken
	errResp.Error = combined.Error
	return nil
}
