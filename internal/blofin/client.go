package blofin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"blofin-rsi-sentry/pkg/types"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// HTTPStatusError 非200的HTTP响应
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("HTTP响应错误: %d %s", e.StatusCode, e.Body)
}

// Client BloFin REST客户端，负责限速、签名和传输
type Client struct {
	baseURL    string
	signer     *Signer
	hasCreds   bool
	httpClient *http.Client
	limiter    *rate.Limiter

	now        func() time.Time
	nonce      func() string
	newBackOff func() backoff.BackOff
}

// NewClient 创建REST客户端
func NewClient(exchange types.ExchangeConfig, network types.NetworkConfig) *Client {
	// 设置超时时间
	timeout := network.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	httpClient := &http.Client{
		Timeout:   timeout,
		Transport: &http.Transport{},
	}

	// 如果配置了代理，则使用代理
	if network.Proxy != "" {
		proxyURL, err := url.Parse(network.Proxy)
		if err == nil {
			httpClient.Transport.(*http.Transport).Proxy = http.ProxyURL(proxyURL)
			zap.L().Info("✅ 已配置HTTP代理", zap.String("proxy", network.Proxy))
		} else {
			zap.L().Warn("⚠️ 代理地址格式错误", zap.Error(err))
		}
	}

	limit := rate.Inf
	burst := 1
	if exchange.RequestsPerSecond > 0 {
		limit = rate.Limit(exchange.RequestsPerSecond)
		if int(exchange.RequestsPerSecond) > burst {
			burst = int(exchange.RequestsPerSecond)
		}
	}

	return &Client{
		baseURL: strings.TrimRight(exchange.BaseURL, "/"),
		signer: NewSigner(Credentials{
			APIKey:     exchange.APIKey,
			Secret:     exchange.APISecret,
			Passphrase: exchange.Passphrase,
		}),
		hasCreds:   exchange.APIKey != "" && exchange.APISecret != "",
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, burst),
		now:        time.Now,
		nonce:      NewNonce,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.MaxElapsedTime = 30 * time.Second
			return b
		},
	}
}

// HasCredentials 是否配置了API凭证
func (c *Client) HasCredentials() bool {
	return c.hasCreds
}

// Get 发送GET请求，单次尝试
func (c *Client) Get(ctx context.Context, path string, query url.Values, signed bool) ([]byte, error) {
	return c.do(ctx, http.MethodGet, requestPath(path, query), nil, signed)
}

// GetWithRetry 只读请求，失败时指数退避重试；4xx不重试
func (c *Client) GetWithRetry(ctx context.Context, path string, query url.Values, signed bool, maxRetries uint64) ([]byte, error) {
	var body []byte
	attempt := 0

	operation := func() error {
		attempt++
		var err error
		body, err = c.Get(ctx, path, query, signed)
		if err == nil {
			return nil
		}

		var statusErr *HTTPStatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode < http.StatusInternalServerError && statusErr.StatusCode != http.StatusTooManyRequests {
			return backoff.Permanent(err)
		}

		zap.L().Warn("🔄 请求失败，准备重试",
			zap.String("path", path),
			zap.Int("attempt", attempt),
			zap.Error(err))
		return err
	}

	strategy := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), maxRetries), ctx)
	if err := backoff.Retry(operation, strategy); err != nil {
		return nil, err
	}

	return body, nil
}

// Post 发送签名POST请求，不做任何重试
func (c *Client) Post(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: 序列化请求体失败: %v", types.ErrSigningFailure, err)
	}

	return c.do(ctx, http.MethodPost, path, body, true)
}

// do 发送请求；签名使用的body与实际发送的字节完全一致
func (c *Client) do(ctx context.Context, method, path string, body []byte, signed bool) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("创建HTTP请求失败: %v", err)
	}

	req.Header.Set("User-Agent", "BloFin-RSI-Sentry/1.0")
	req.Header.Set("Accept", "application/json")
	if signed {
		envelope := c.signer.Envelope(method, path, Timestamp(c.now()), c.nonce(), body)
		for key, values := range envelope.Headers {
			req.Header[key] = values
		}
	} else if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP请求失败: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应体失败: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPStatusError{StatusCode: resp.StatusCode, Body: truncate(string(respBody), 256)}
	}

	return respBody, nil
}

// requestPath 拼接路径和查询参数，签名和发送都使用这个结果
func requestPath(path string, query url.Values) string {
	if len(query) == 0 {
		return path
	}
	return path + "?" + query.Encode()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
