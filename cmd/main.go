package main

import (
	"log"

	"blofin-rsi-sentry/pkg/config"
	"blofin-rsi-sentry/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("加载配置失败:", err)
	}

	// 初始化日志
	cleanup, err := logger.Init(cfg.Log)
	if err != nil {
		log.Fatal("初始化日志失败:", err)
	}
	defer cleanup()

	app, err := NewApp(cfg)
	if err != nil {
		zap.L().Error("❌ 初始化失败", zap.Error(err))
		return
	}

	app.Start()
	app.WaitForShutdown()
	app.Stop()
}
