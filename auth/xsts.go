package auth

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	userTokenPath   = "/user/authenticate"
	deviceTokenPath = "/device/authenticate"
	titleTokenPath  = "/title/authenticate"
	xstsTokenPath   = "/xsts/authorize"

	rtaRelyingParty = "http://xboxlive.com"
)

// Overridable for tests; production callers never need to touch these.
var (
	userTokenURL   = "https://user.auth.xboxlive.com/user/authenticate"
	deviceTokenURL = "https://device.auth.xboxlive.com/device/authenticate"
	titleTokenURL  = "https://title.auth.xboxlive.com/title/authenticate"
	xstsTokenURL   = "https://xsts.auth.xboxlive.com/xsts/authorize"
)

// XSTSToken is the token pair RTA (and any other Xbox Live service call)
// authenticates with.
type XSTSToken struct {
	Token    string `json:"token"`
	UserHash string `json:"user_hash"`
	Gamertag string `json:"gamertag"`
	XUID     string `json:"xuid"`
}

// Authorization renders the XBL3.0 Authorization header value.
func (t XSTSToken) Authorization() string {
	return fmt.Sprintf("XBL3.0 x=%s;%s", t.UserHash, t.Token)
}

type responseEnvelope[T any] struct {
	IssueInstant  string `json:"IssueInstant"`
	NotAfter      string `json:"NotAfter"`
	Token         string `json:"Token"`
	DisplayClaims T      `json:"DisplayClaims"`
}

type userDisplayClaims struct {
	Xui []struct {
		UHS string `json:"uhs"`
	} `json:"xui"`
}

type deviceDisplayClaims struct {
	Xdi struct {
		DID string `json:"did"`
		DCS string `json:"dcs"`
	} `json:"xdi"`
}

type titleDisplayClaims struct {
	Xti struct {
		TID string `json:"tid"`
	} `json:"xti"`
}

type xstsDisplayClaims struct {
	Xui []struct {
		GTG string `json:"gtg"`
		XID string `json:"xid"`
		UHS string `json:"uhs"`
	} `json:"xui"`
}

// XBLAuth drives the full MSA -> Xbox Live XSTS pipeline for one user,
// caching both the MSA and XSTS token pairs on disk.
type XBLAuth struct {
	userName   string
	cache      *Cache
	msa        *MSAClient
	http       *http.Client
	signingKey *ecdsa.PrivateKey

	// OnDeviceCode, if set, is invoked with the device-code details
	// whenever an interactive sign-in is required. The default behavior
	// logs the verification URI and code.
	OnDeviceCode func(*DeviceCodeResponse)
}

// NewXBLAuth builds an XBLAuth for userName, with its token cache rooted
// at cacheDir. A fresh P-256 signing key is generated for the lifetime of
// this XBLAuth; it is never persisted.
func NewXBLAuth(cacheDir, userName string, httpClient *http.Client) (*XBLAuth, error) {
	cache, err := NewCache(cacheDir, userName)
	if err != nil {
		return nil, err
	}
	signingKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating signing key: %w", err)
	}
	return &XBLAuth{
		userName:   userName,
		cache:      cache,
		msa:        NewMSAClient(httpClient),
		http:       httpClient,
		signingKey: signingKey,
	}, nil
}

// proofKey derives the JWK advertisement of this session's public key.
// Recomputed on every call rather than cached, since it is cheap and the
// underlying key never changes within a process.
func (a *XBLAuth) proofKey() ProofKey {
	return NewProofKey(&a.signingKey.PublicKey)
}

// GetXboxToken returns a valid XSTS token, using the on-disk cache when
// possible and falling back to a full MSA + Xbox Live token exchange
// otherwise.
func (a *XBLAuth) GetXboxToken(ctx context.Context) (Expiring[XSTSToken], error) {
	if cached, err := a.cache.GetXSTS(); err == nil && !cached.IsExpired() {
		return cached, nil
	}

	msaToken, err := a.accessMSAToken(ctx)
	if err != nil {
		return Expiring[XSTSToken]{}, fmt.Errorf("acquiring MSA token: %w", err)
	}

	xsts, err := a.exchangeXboxTokens(ctx, msaToken.Take().AccessToken)
	if err != nil {
		return Expiring[XSTSToken]{}, err
	}
	if err := a.cache.UpdateXSTS(xsts); err != nil {
		log.Printf("[xblauth] failed to cache XSTS token: %v", err)
	} else {
		log.Printf("[xblauth] cached XSTS token for %s, expires %s", a.userName,
			humanize.Time(time.Unix(int64(xsts.ExpiredAt), 0)))
	}
	return xsts, nil
}

// accessMSAToken implements the cache -> refresh -> interactive fallback
// policy for the MSA leg of the pipeline.
func (a *XBLAuth) accessMSAToken(ctx context.Context) (Expiring[MSAToken], error) {
	cached, err := a.cache.GetMSA()
	switch {
	case err == nil && !cached.IsExpired():
		return cached, nil
	case err == nil:
		refreshed, rerr := a.msa.RefreshToken(ctx, cached.Take().RefreshToken)
		if rerr != nil {
			return a.interactiveMSAAuth(ctx)
		}
		if uerr := a.cache.UpdateMSA(refreshed); uerr != nil {
			log.Printf("[xblauth] failed to cache MSA token: %v", uerr)
		}
		return refreshed, nil
	default:
		return a.interactiveMSAAuth(ctx)
	}
}

func (a *XBLAuth) interactiveMSAAuth(ctx context.Context) (Expiring[MSAToken], error) {
	dc, err := a.msa.StartDeviceAuth(ctx)
	if err != nil {
		return Expiring[MSAToken]{}, fmt.Errorf("starting device auth: %w", err)
	}
	if a.OnDeviceCode != nil {
		a.OnDeviceCode(dc)
	} else {
		log.Printf("[xblauth] open %q and enter code %s to sign in as %s", dc.VerificationURI, dc.UserCode, a.userName)
	}
	token, err := a.msa.WaitDeviceAuth(ctx, dc)
	if err != nil {
		return Expiring[MSAToken]{}, err
	}
	if err := a.cache.UpdateMSA(token); err != nil {
		log.Printf("[xblauth] failed to cache MSA token: %v", err)
	}
	return token, nil
}

// exchangeXboxTokens runs the four-step signed exchange: User and Device
// tokens concurrently, Title once Device completes, and XSTS once all
// three are available.
func (a *XBLAuth) exchangeXboxTokens(ctx context.Context, msaAccessToken string) (Expiring[XSTSToken], error) {
	var userToken, deviceToken responseEnvelope[json.RawMessage]

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		env, err := a.requestUserToken(gctx, msaAccessToken)
		if err != nil {
			return err
		}
		userToken = env.env
		return nil
	})
	g.Go(func() error {
		env, err := a.requestDeviceToken(gctx)
		if err != nil {
			return err
		}
		deviceToken = env.env
		return nil
	})
	if err := g.Wait(); err != nil {
		return Expiring[XSTSToken]{}, fmt.Errorf("requesting user/device tokens: %w", err)
	}

	titleEnv, err := a.requestTitleToken(ctx, msaAccessToken, deviceToken.Token)
	if err != nil {
		return Expiring[XSTSToken]{}, fmt.Errorf("requesting title token: %w", err)
	}
	titleToken := titleEnv.env

	xsts, xstsClaims, err := a.requestXSTSToken(ctx, userToken.Token, deviceToken.Token, titleToken.Token)
	if err != nil {
		return Expiring[XSTSToken]{}, fmt.Errorf("requesting xsts token: %w", err)
	}

	var uhs, gtg, xid string
	if len(xstsClaims.Xui) > 0 {
		uhs = xstsClaims.Xui[0].UHS
		gtg = xstsClaims.Xui[0].GTG
		xid = xstsClaims.Xui[0].XID
	}
	result := XSTSToken{Token: xsts.Token, UserHash: uhs, Gamertag: gtg, XUID: xid}
	return NewExpiringWithTimestamp(result, notAfterToUnix(xsts.NotAfter)), nil
}

// notAfterToUnix parses the Xbox Live "NotAfter" timestamp; if it cannot
// be parsed, the token is treated as valid for a further 24 hours rather
// than failing the whole pipeline over a cosmetic field.
func notAfterToUnix(notAfter string) uint64 {
	t, err := time.Parse(time.RFC3339Nano, notAfter)
	if err != nil {
		return uint64(time.Now().Add(24 * time.Hour).Unix())
	}
	return uint64(t.Unix())
}

type rawEnvelope[T any] struct {
	env    responseEnvelope[json.RawMessage]
	claims T
}

func (a *XBLAuth) requestUserToken(ctx context.Context, msaAccessToken string) (rawEnvelope[userDisplayClaims], error) {
	body := fmt.Sprintf(`{"Properties":{"AuthMethod":"RPS","SiteName":"user.auth.xboxlive.com","RpsTicket":"t=%s"},"RelyingParty":"http://auth.xboxlive.com","TokenType":"JWT"}`, msaAccessToken)
	headers := map[string]string{
		"Accept":                 "application/json",
		"Content-Type":           "application/json",
		"x-xbl-contract-version": "2",
		"Cache-Control":          "no-store, must-revalidate, no-cache",
	}
	return doSignedEnvelope[userDisplayClaims](ctx, a, userTokenURL, userTokenPath, []byte(body), headers)
}

func (a *XBLAuth) requestDeviceToken(ctx context.Context) (rawEnvelope[deviceDisplayClaims], error) {
	deviceID := uuid.New().String()
	proofKey, err := json.Marshal(a.proofKey())
	if err != nil {
		return rawEnvelope[deviceDisplayClaims]{}, err
	}
	body := fmt.Sprintf(`{"Properties":{"AuthMethod":"ProofOfPossession","Id":"{%s}","SerialNumber":"{%s}","Version":"0.0.0","DeviceType":"Nintendo","ProofKey":%s},"RelyingParty":"http://auth.xboxlive.com","TokenType":"JWT"}`, deviceID, deviceID, proofKey)
	headers := map[string]string{
		"Cache-Control":          "no-store, must-revalidate, no-cache",
		"x-xbl-contract-version": "1",
	}
	return doSignedEnvelope[deviceDisplayClaims](ctx, a, deviceTokenURL, deviceTokenPath, []byte(body), headers)
}

func (a *XBLAuth) requestTitleToken(ctx context.Context, msaAccessToken, deviceToken string) (rawEnvelope[titleDisplayClaims], error) {
	proofKey, err := json.Marshal(a.proofKey())
	if err != nil {
		return rawEnvelope[titleDisplayClaims]{}, err
	}
	body := fmt.Sprintf(`{"Properties":{"AuthMethod":"RPS","DeviceToken":"%s","RpsTicket":"t=%s","SiteName":"user.auth.xboxlive.com","ProofKey":%s},"RelyingParty":"http://auth.xboxlive.com","TokenType":"JWT"}`, deviceToken, msaAccessToken, proofKey)
	headers := map[string]string{
		"Cache-Control":          "no-store, must-revalidate, no-cache",
		"x-xbl-contract-version": "1",
	}
	return doSignedEnvelope[titleDisplayClaims](ctx, a, titleTokenURL, titleTokenPath, []byte(body), headers)
}

func (a *XBLAuth) requestXSTSToken(ctx context.Context, userToken, deviceToken, titleToken string) (responseEnvelope[json.RawMessage], xstsDisplayClaims, error) {
	proofKey, err := json.Marshal(a.proofKey())
	if err != nil {
		return responseEnvelope[json.RawMessage]{}, xstsDisplayClaims{}, err
	}
	body := fmt.Sprintf(`{"Properties":{"UserTokens":["%s"],"DeviceToken":"%s","TitleToken":"%s","ProofKey":%s,"SandboxId":"RETAIL"},"RelyingParty":"%s","TokenType":"JWT"}`,
		userToken, deviceToken, titleToken, proofKey, rtaRelyingParty)
	headers := map[string]string{
		"Cache-Control":          "no-store, must-revalidate, no-cache",
		"x-xbl-contract-version": "1",
	}
	env, err := doSignedEnvelope[xstsDisplayClaims](ctx, a, xstsTokenURL, xstsTokenPath, []byte(body), headers)
	if err != nil {
		return responseEnvelope[json.RawMessage]{}, xstsDisplayClaims{}, err
	}
	return env.env, env.claims, nil
}

// doSignedEnvelope signs and POSTs body to reqURL, decoding the response
// into a responseEnvelope[DisplayClaims]. Network/DNS/timeout failures are
// wrapped in ErrTransport; a non-2xx response attempts to decode an
// XboxError and wraps it in ErrAuthRejected. Callers can tell the two
// apart with errors.Is instead of both collapsing into one kind.
func doSignedEnvelope[C any](ctx context.Context, a *XBLAuth, reqURL, path string, body []byte, headers map[string]string) (rawEnvelope[C], error) {
	var zero rawEnvelope[C]

	sig, err := Sign(a.signingKey, path, body)
	if err != nil {
		return zero, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return zero, fmt.Errorf("%w: building request: %v", ErrTransport, err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Signature", sig)

	resp, err := a.http.Do(req)
	if err != nil {
		return zero, fmt.Errorf("%w: request failed: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return zero, fmt.Errorf("%w: reading response: %v", ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var xboxErr XboxError
		if json.Unmarshal(respBody, &xboxErr) == nil && xboxErr.Message != "" {
			return zero, fmt.Errorf("%w: %w", ErrAuthRejected, &xboxErr)
		}
		return zero, fmt.Errorf("%w: status %d", ErrAuthRejected, resp.StatusCode)
	}

	var full struct {
		responseEnvelope[json.RawMessage]
		DisplayClaims C `json:"DisplayClaims"`
	}
	if err := json.Unmarshal(respBody, &full); err != nil {
		return zero, fmt.Errorf("decoding response: %w", err)
	}
	return rawEnvelope[C]{
		env:    responseEnvelope[json.RawMessage]{IssueInstant: full.IssueInstant, NotAfter: full.NotAfter, Token: full.Token},
		claims: full.DisplayClaims,
	}, nil
}
