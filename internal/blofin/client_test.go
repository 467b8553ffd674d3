package blofin

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"blofin-rsi-sentry/pkg/types"
	"github.com/cenkalti/backoff/v4"
)

func newTestClient(serverURL string) *Client {
	c := NewClient(types.ExchangeConfig{
		BaseURL:    serverURL,
		APIKey:     "key",
		APISecret:  "secret",
		Passphrase: "pass",
	}, types.NetworkConfig{Timeout: 5 * time.Second})
	c.now = func() time.Time { return time.UnixMilli(1700000000000) }
	c.newBackOff = func() backoff.BackOff { return backoff.NewConstantBackOff(time.Millisecond) }
	return c
}

func TestSignedGetMatchesTransmittedRequest(t *testing.T) {
	signer := NewSigner(Credentials{Secret: "secret"})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s", r.Method)
		}
		want := signer.Sign(r.Method, r.URL.RequestURI(), r.Header.Get(HeaderTimestamp), r.Header.Get(HeaderNonce), "")
		if got := r.Header.Get(HeaderSign); got != want {
			t.Errorf("signature = %s, want %s", got, want)
		}
		if r.Header.Get(HeaderAccessKey) != "key" || r.Header.Get(HeaderPassphrase) != "pass" {
			t.Errorf("missing auth headers: %v", r.Header)
		}
		if r.Header.Get(HeaderTimestamp) != "1700000000000" {
			t.Errorf("timestamp = %s", r.Header.Get(HeaderTimestamp))
		}
		w.Write([]byte(`{"code":"0","data":[]}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	query := url.Values{"instId": {"BTC-USDT"}, "bar": {"1H"}}
	if _, err := c.Get(context.Background(), "/api/v1/market/candles", query, true); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
}

func TestFreshNoncePerRequest(t *testing.T) {
	nonces := make(map[string]bool)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := r.Header.Get(HeaderNonce)
		if n == "" || nonces[n] {
			t.Errorf("nonce missing or reused: %q", n)
		}
		nonces[n] = true
		w.Write([]byte(`{"code":"0"}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	for i := 0; i < 3; i++ {
		if _, err := c.Get(context.Background(), "/x", nil, true); err != nil {
			t.Fatal(err)
		}
	}
}

func TestPostSignsExactBody(t *testing.T) {
	signer := NewSigner(Credentials{Secret: "secret"})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"instId":"BTC-USDT","sz":"0.2"}` {
			t.Errorf("body = %s", body)
		}
		want := signer.Sign("POST", r.URL.Path, r.Header.Get(HeaderTimestamp), r.Header.Get(HeaderNonce), string(body))
		if got := r.Header.Get(HeaderSign); got != want {
			t.Errorf("signature = %s, want %s", got, want)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content-type = %s", r.Header.Get("Content-Type"))
		}
		w.Write([]byte(`{"code":"0"}`))
	}))
	defer server.Close()

	payload := struct {
		InstID string `json:"instId"`
		Size   string `json:"sz"`
	}{"BTC-USDT", "0.2"}

	c := newTestClient(server.URL)
	if _, err := c.Post(context.Background(), "/api/v1/trade/order", payload); err != nil {
		t.Fatalf("Post() error = %v", err)
	}
}

func TestPostUnserializablePayload(t *testing.T) {
	c := newTestClient("http://127.0.0.1:0")
	_, err := c.Post(context.Background(), "/x", map[string]interface{}{"bad": make(chan int)})
	if !errors.Is(err, types.ErrSigningFailure) {
		t.Errorf("err = %v, want ErrSigningFailure", err)
	}
}

func TestGetWithRetry(t *testing.T) {
	tests := []struct {
		name        string
		statuses    []int
		maxRetries  uint64
		wantErr     bool
		wantAttempt int32
	}{
		{name: "5xx后成功", statuses: []int{500, 502, 200}, maxRetries: 3, wantAttempt: 3},
		{name: "4xx不重试", statuses: []int{400, 200}, maxRetries: 3, wantErr: true, wantAttempt: 1},
		{name: "重试次数用尽", statuses: []int{500, 500, 500, 500}, maxRetries: 2, wantErr: true, wantAttempt: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				i := atomic.AddInt32(&calls, 1) - 1
				status := tt.statuses[len(tt.statuses)-1]
				if int(i) < len(tt.statuses) {
					status = tt.statuses[i]
				}
				w.WriteHeader(status)
				w.Write([]byte(`{"code":"0"}`))
			}))
			defer server.Close()

			c := newTestClient(server.URL)
			_, err := c.GetWithRetry(context.Background(), "/balance", nil, true, tt.maxRetries)
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got := atomic.LoadInt32(&calls); got != tt.wantAttempt {
				t.Errorf("attempts = %d, want %d", got, tt.wantAttempt)
			}
		})
	}
}

func TestPostNeverRetries(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	_, err := c.Post(context.Background(), "/order", map[string]string{"a": "b"})

	var statusErr *HTTPStatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusBadGateway {
		t.Errorf("err = %v, want HTTPStatusError 502", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestCodeUnmarshal(t *testing.T) {
	tests := []struct {
		name string
		body string
		ok   bool
		code Code
	}{
		{name: "字符串0", body: `{"code":"0"}`, ok: true, code: "0"},
		{name: "数字0", body: `{"code":0}`, ok: true, code: "0"},
		{name: "数字错误码", body: `{"code":102002,"msg":"x"}`, code: "102002"},
		{name: "字符串错误码", body: `{"code":"1"}`, code: "1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := DecodeResponse([]byte(tt.body))
			if err != nil {
				t.Fatal(err)
			}
			if resp.Code != tt.code || resp.Code.OK() != tt.ok {
				t.Errorf("code = %q ok=%v", resp.Code, resp.Code.OK())
			}
		})
	}

	if _, err := DecodeResponse([]byte("<html>")); err == nil {
		t.Error("expected error for non-JSON body")
	}
}
