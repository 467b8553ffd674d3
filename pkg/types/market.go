package types

import "time"

// KLine K线数据结构，拉取后不可变，按时间从旧到新排列
type KLine struct {
	Symbol    string    `json:"symbol"`
	OpenTime  time.Time `json:"open_time"`
	CloseTime time.Time `json:"close_time"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
	Interval  string    `json:"interval"` // 1H
}

// Closes 提取收盘价序列，长度和顺序与K线窗口一致
func Closes(klines []*KLine) []float64 {
	closes := make([]float64, len(klines))
	for i, k := range klines {
		closes[i] = k.Close
	}
	return closes
}

// AccountBalance 账户余额
type AccountBalance struct {
	Currency  string  `json:"currency"`
	Available float64 `json:"available"`
	Equity    float64 `json:"equity"`
}
