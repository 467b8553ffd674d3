package blofin

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
)

const (
	HeaderAccessKey  = "ACCESS-KEY"
	HeaderTimestamp  = "ACCESS-TIMESTAMP"
	HeaderNonce      = "ACCESS-NONCE"
	HeaderSign       = "ACCESS-SIGN"
	HeaderPassphrase = "ACCESS-PASSPHRASE"
)

// Credentials API凭证
type Credentials struct {
	APIKey     string
	Secret     string
	Passphrase string
}

// SignedEnvelope 单次请求的签名结果，每次HTTP调用重新生成
type SignedEnvelope struct {
	Timestamp string
	Nonce     string
	Signature string
	Headers   http.Header
}

// Signer 请求签名器
type Signer struct {
	creds Credentials
}

// NewSigner 创建签名器
func NewSigner(creds Credentials) *Signer {
	return &Signer{creds: creds}
}

// Sign 计算签名：base64(hex(HMAC-SHA256(secret, path+method+timestamp+nonce+body)))
//
// 交易所要求对十六进制摘要字符串做base64，而不是原始摘要字节。
func (s *Signer) Sign(method, path, timestamp, nonce, body string) string {
	prehash := path + method + timestamp + nonce + body

	h := hmac.New(sha256.New, []byte(s.creds.Secret))
	h.Write([]byte(prehash))
	hexDigest := hex.EncodeToString(h.Sum(nil))

	return base64.StdEncoding.EncodeToString([]byte(hexDigest))
}

// Envelope 生成完整的鉴权请求头
func (s *Signer) Envelope(method, path, timestamp, nonce string, body []byte) *SignedEnvelope {
	signature := s.Sign(method, path, timestamp, nonce, string(body))

	headers := make(http.Header)
	headers.Set(HeaderAccessKey, s.creds.APIKey)
	headers.Set(HeaderTimestamp, timestamp)
	headers.Set(HeaderNonce, nonce)
	headers.Set(HeaderSign, signature)
	if s.creds.Passphrase != "" {
		headers.Set(HeaderPassphrase, s.creds.Passphrase)
	}
	headers.Set("Content-Type", "application/json")

	return &SignedEnvelope{
		Timestamp: timestamp,
		Nonce:     nonce,
		Signature: signature,
		Headers:   headers,
	}
}

// Timestamp 毫秒时间戳字符串
func Timestamp(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

// NewNonce 每个请求一个新的随机nonce
func NewNonce() string {
	return uuid.NewString()
}
