package fetcher

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// flexValue 兼容字符串或数字形式的字段
type flexValue string

func (v *flexValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = flexValue(s)
		return nil
	}
	*v = flexValue(data)
	return nil
}

// parseTimestamp 解析时间戳（毫秒）
func parseTimestamp(ts string) (time.Time, error) {
	timestamp, err := strconv.ParseInt(strings.TrimSpace(ts), 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(timestamp), nil
}

// parseFloat 解析浮点数，NaN和Inf视为非法
func parseFloat(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("非有限数值: %q", s)
	}
	return v, nil
}

// getIntervalDuration 获取时间间隔的Duration
func getIntervalDuration(interval string) time.Duration {
	switch interval {
	case "1m":
		return time.Minute
	case "3m":
		return 3 * time.Minute
	case "5m":
		return 5 * time.Minute
	case "15m":
		return 15 * time.Minute
	case "30m":
		return 30 * time.Minute
	case "1H", "1h":
		return time.Hour
	case "2H", "2h":
		return 2 * time.Hour
	case "4H", "4h":
		return 4 * time.Hour
	case "6H", "6h":
		return 6 * time.Hour
	case "12H", "12h":
		return 12 * time.Hour
	case "1D", "1d":
		return 24 * time.Hour
	case "1W", "1w":
		return 7 * 24 * time.Hour
	default:
		return time.Hour
	}
}
