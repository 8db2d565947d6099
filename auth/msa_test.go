package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func withOverriddenURL(t *testing.T, target *string, value string) {
	t.Helper()
	original := *target
	*target = value
	t.Cleanup(func() { *target = original })
}

func TestMSAClient_StartDeviceAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parsing form: %v", err)
		}
		if r.Form.Get("client_id") != msaClientID {
			t.Errorf("client_id = %q, want %q", r.Form.Get("client_id"), msaClientID)
		}
		json.NewEncoder(w).Encode(DeviceCodeResponse{
			UserCode: "ABC123", DeviceCode: "DEV", VerificationURI: "https://microsoft.com/link",
			Interval: 1, ExpiresIn: 900,
		})
	}))
	defer srv.Close()
	withOverriddenURL(t, &msaDeviceCodeURL, srv.URL)

	c := NewMSAClient(srv.Client())
	dc, err := c.StartDeviceAuth(context.Background())
	if err != nil {
		t.Fatalf("StartDeviceAuth: %v", err)
	}
	if dc.UserCode != "ABC123" || dc.DeviceCode != "DEV" {
		t.Fatalf("unexpected device code response: %+v", dc)
	}
}

func TestMSAClient_WaitDeviceAuth_PollsThenSucceeds(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			json.NewEncoder(w).Encode(map[string]string{"error": "authorization_pending"})
			return
		}
		json.NewEncoder(w).Encode(MSAToken{AccessToken: "access", RefreshToken: "refresh", ExpiresIn: 3600})
	}))
	defer srv.Close()
	withOverriddenURL(t, &msaAccessTokenURL, srv.URL)

	c := NewMSAClient(srv.Client())
	dc := &DeviceCodeResponse{DeviceCode: "DEV", Interval: 0, ExpiresIn: 60}

	token, err := c.WaitDeviceAuth(context.Background(), dc)
	if err != nil {
		t.Fatalf("WaitDeviceAuth: %v", err)
	}
	if token.Take().AccessToken != "access" {
		t.Fatalf("got access token %q, want %q", token.Take().AccessToken, "access")
	}
	if attempts != 3 {
		t.Fatalf("expected 3 poll attempts, got %d", attempts)
	}
}

func TestMSAClient_WaitDeviceAuth_DeadlineExpires(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"error": "authorization_pending"})
	}))
	defer srv.Close()
	withOverriddenURL(t, &msaAccessTokenURL, srv.URL)

	c := NewMSAClient(srv.Client())
	dc := &DeviceCodeResponse{DeviceCode: "DEV", Interval: 0, ExpiresIn: 0}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := c.WaitDeviceAuth(ctx, dc); !errors.Is(err, ErrDeviceCodeExpired) {
		t.Fatalf("got %v, want ErrDeviceCodeExpired", err)
	}
}

func TestMSAClient_RefreshToken_FailureWrapsErrRefreshFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("not json"))
	}))
	defer srv.Close()
	withOverriddenURL(t, &msaAccessTokenURL, srv.URL)

	c := NewMSAClient(srv.Client())
	if _, err := c.RefreshToken(context.Background(), "refresh-token"); !errors.Is(err, ErrRefreshFailed) {
		t.Fatalf("got %v, want ErrRefreshFailed", err)
	}
}
