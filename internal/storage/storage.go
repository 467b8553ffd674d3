package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"blofin-rsi-sentry/pkg/types"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// SignalGuard 信号去重：同一交易对、方向、K线在冷却期内只放行一次
type SignalGuard struct {
	ttl         time.Duration
	seen        map[string]time.Time
	mutex       sync.Mutex
	redisClient *redis.Client
	useRedis    bool
	now         func() time.Time

	allowed    int
	suppressed int
}

// NewSignalGuard 创建信号去重器，Redis不可用时使用纯内存模式
func NewSignalGuard(redisConfig types.RedisConfig, ttl time.Duration) *SignalGuard {
	sg := &SignalGuard{
		ttl:  ttl,
		seen: make(map[string]time.Time),
		now:  time.Now,
	}

	// 尝试连接Redis
	if redisConfig.URL != "" {
		sg.redisClient = redis.NewClient(&redis.Options{
			Addr:     redisConfig.URL,
			Password: redisConfig.Password,
			DB:       redisConfig.DB,
		})

		// 测试连接
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := sg.redisClient.Ping(ctx).Err(); err != nil {
			zap.L().Warn("⚠️ Redis连接失败，使用纯内存模式", zap.Error(err))
			sg.redisClient.Close()
			sg.redisClient = nil
		} else {
			zap.L().Info("✅ Redis连接成功", zap.String("addr", redisConfig.URL))
			sg.useRedis = true
		}
	} else {
		zap.L().Info("🔧 未配置Redis，使用纯内存模式")
	}

	return sg
}

// Allow 返回true表示该信号首次出现，应当执行
func (sg *SignalGuard) Allow(ctx context.Context, symbol string, signal types.Signal, candleTime time.Time) bool {
	if signal == types.SignalHold || sg.ttl <= 0 {
		return true
	}

	key := signalKey(symbol, signal, candleTime)

	allowed := false
	if sg.useRedis {
		ok, err := sg.redisClient.SetNX(ctx, key, sg.now().Unix(), sg.ttl).Result()
		if err != nil {
			zap.L().Warn("Redis去重失败，回退到内存", zap.String("key", key), zap.Error(err))
			allowed = sg.allowMemory(key)
		} else {
			allowed = ok
		}
	} else {
		allowed = sg.allowMemory(key)
	}

	sg.mutex.Lock()
	if allowed {
		sg.allowed++
	} else {
		sg.suppressed++
	}
	sg.mutex.Unlock()

	return allowed
}

// allowMemory 内存模式去重，顺便清理过期记录
func (sg *SignalGuard) allowMemory(key string) bool {
	sg.mutex.Lock()
	defer sg.mutex.Unlock()

	now := sg.now()
	for k, expiry := range sg.seen {
		if !now.Before(expiry) {
			delete(sg.seen, k)
		}
	}

	if _, exists := sg.seen[key]; exists {
		return false
	}
	sg.seen[key] = now.Add(sg.ttl)
	return true
}

func signalKey(symbol string, signal types.Signal, candleTime time.Time) string {
	return fmt.Sprintf("blofin:signal:%s:%s:%d", symbol, signal, candleTime.UnixMilli())
}

// GetStats 获取去重统计信息
func (sg *SignalGuard) GetStats() map[string]interface{} {
	sg.mutex.Lock()
	defer sg.mutex.Unlock()

	return map[string]interface{}{
		"redis_enabled": sg.useRedis,
		"memory_keys":   len(sg.seen),
		"allowed":       sg.allowed,
		"suppressed":    sg.suppressed,
	}
}

// Close 关闭Redis连接
func (sg *SignalGuard) Close() error {
	if sg.redisClient != nil {
		return sg.redisClient.Close()
	}
	return nil
}
