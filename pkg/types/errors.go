package types

import "errors"

var (
	// ErrDataUnavailable 行情或账户数据拉取/解析失败，跳过本轮
	ErrDataUnavailable = errors.New("data unavailable")
	// ErrInvalidPrice 价格非正或止盈止损位置非法，中止本轮
	ErrInvalidPrice = errors.New("invalid price")
	// ErrSigningFailure 请求体无法序列化签名
	ErrSigningFailure = errors.New("signing failure")
	// ErrExecutionFailure 下单被拒绝或提交失败，不做本地重试
	ErrExecutionFailure = errors.New("execution failure")
)
