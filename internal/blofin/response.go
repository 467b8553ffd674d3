package blofin

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Code 业务返回码，交易所有时返回字符串 "0"，有时返回数字 0
type Code string

// UnmarshalJSON 同时兼容字符串和数字
func (c *Code) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*c = ""
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = Code(strings.TrimSpace(s))
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("无法解析返回码 %s: %v", string(data), err)
	}
	*c = Code(n.String())
	return nil
}

// OK 是否成功
func (c Code) OK() bool {
	return c == "0"
}

// Response 通用响应结构 {code, msg, data}
type Response struct {
	Code Code            `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// DecodeResponse 解析通用响应
func DecodeResponse(body []byte) (*Response, error) {
	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("解析JSON失败: %v", err)
	}
	return &resp, nil
}
