package database

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"blofin-rsi-sentry/pkg/types"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Manager 行情与指标快照记录器，只做分析留档，不参与交易决策
type Manager struct {
	db     *gorm.DB
	config types.MySQLConfig
}

// KLine 数据库K线模型
type KLine struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Symbol    string    `gorm:"type:varchar(32);not null;uniqueIndex:uk_symbol_interval_time" json:"symbol"`
	Interval  string    `gorm:"type:varchar(10);not null;uniqueIndex:uk_symbol_interval_time" json:"interval"`
	OpenTime  int64     `gorm:"not null;uniqueIndex:uk_symbol_interval_time" json:"open_time"`
	CloseTime int64     `gorm:"not null" json:"close_time"`
	Open      float64   `gorm:"type:decimal(20,8);not null" json:"open"`
	High      float64   `gorm:"type:decimal(20,8);not null" json:"high"`
	Low       float64   `gorm:"type:decimal(20,8);not null" json:"low"`
	Close     float64   `gorm:"type:decimal(20,8);not null" json:"close"`
	Volume    float64   `gorm:"type:decimal(28,8);not null" json:"volume"`
	CreatedAt time.Time `json:"created_at"`
}

// Indicator 指标快照模型
type Indicator struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Symbol     string    `gorm:"type:varchar(32);not null;index:idx_symbol_time" json:"symbol"`
	KlineTime  int64     `gorm:"not null;index:idx_symbol_time" json:"kline_time"`
	LastClose  float64   `gorm:"type:decimal(20,8);not null" json:"last_close"`
	RSI        *float64  `gorm:"type:decimal(10,4)" json:"rsi"` // RSI未定义时为NULL
	Divergence string    `gorm:"type:varchar(10);not null;default:'NONE'" json:"divergence"`
	FibLevels  string    `gorm:"type:text" json:"fib_levels"`
	Signal     string    `gorm:"type:varchar(10);not null" json:"signal"`
	Suppressed bool      `gorm:"default:false" json:"suppressed"`
	CreatedAt  time.Time `json:"created_at"`
}

// SignalStat 每日信号统计
type SignalStat struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Symbol      string    `gorm:"type:varchar(32);not null;uniqueIndex:uk_symbol_date" json:"symbol"`
	Date        time.Time `gorm:"type:date;not null;uniqueIndex:uk_symbol_date" json:"date"`
	Cycles      int       `gorm:"default:0" json:"cycles"`
	BuySignals  int       `gorm:"default:0" json:"buy_signals"`
	SellSignals int       `gorm:"default:0" json:"sell_signals"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewManager 创建数据库管理器
func NewManager(config types.MySQLConfig) (*Manager, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		config.Username,
		config.Password,
		config.Host,
		config.Port,
		config.Database,
	)

	// 配置GORM日志
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	db, err := gorm.Open(mysql.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("连接MySQL失败: %v", err)
	}

	// 配置连接池
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取数据库实例失败: %v", err)
	}

	sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	manager := &Manager{
		db:     db,
		config: config,
	}

	// 自动迁移表结构
	if err := manager.AutoMigrate(); err != nil {
		return nil, fmt.Errorf("数据库迁移失败: %v", err)
	}

	zap.L().Info("✅ MySQL数据库连接成功",
		zap.String("host", config.Host),
		zap.Int("port", config.Port),
		zap.String("database", config.Database))

	return manager, nil
}

// AutoMigrate 自动迁移表结构
func (m *Manager) AutoMigrate() error {
	return m.db.AutoMigrate(
		&KLine{},
		&Indicator{},
		&SignalStat{},
	)
}

// SaveCycle 记录一轮运行的K线和指标快照
func (m *Manager) SaveCycle(report *types.CycleReport) error {
	if report == nil || report.Snapshot == nil {
		return nil
	}

	if err := m.BatchSaveKlines(report.Klines); err != nil {
		return err
	}

	indicator, err := toIndicatorModel(report)
	if err != nil {
		return err
	}
	if err := m.db.Create(indicator).Error; err != nil {
		return fmt.Errorf("保存指标快照失败: %v", err)
	}

	return m.UpdateSignalStat(report.Symbol, report.Signal, report.StartedAt)
}

// BatchSaveKlines 批量保存K线数据，已存在的K线跳过
func (m *Manager) BatchSaveKlines(klines []*types.KLine) error {
	if len(klines) == 0 {
		return nil
	}

	dbKlines := make([]KLine, 0, len(klines))
	for _, kline := range klines {
		dbKlines = append(dbKlines, toKLineModel(kline))
	}

	err := m.db.Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(dbKlines, 100).Error
	if err != nil {
		return fmt.Errorf("批量插入K线数据失败: %v", err)
	}

	zap.L().Debug("✅ 批量保存K线数据完成",
		zap.Int("count", len(klines)),
		zap.String("symbol", klines[0].Symbol))

	return nil
}

// UpdateSignalStat 更新每日信号统计
func (m *Manager) UpdateSignalStat(symbol string, signal types.Signal, at time.Time) error {
	if at.IsZero() {
		at = time.Now()
	}
	day := time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, at.Location())

	var stat SignalStat
	result := m.db.Where("symbol = ? AND date = ?", symbol, day).First(&stat)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		stat = SignalStat{Symbol: symbol, Date: day}
		applySignal(&stat, signal)
		return m.db.Create(&stat).Error
	} else if result.Error != nil {
		return result.Error
	}

	applySignal(&stat, signal)
	return m.db.Model(&stat).Where("id = ?", stat.ID).Updates(map[string]interface{}{
		"cycles":       stat.Cycles,
		"buy_signals":  stat.BuySignals,
		"sell_signals": stat.SellSignals,
	}).Error
}

// Close 关闭数据库连接
func (m *Manager) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Health 检查数据库连接健康状态
func (m *Manager) Health() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

func toKLineModel(kline *types.KLine) KLine {
	return KLine{
		Symbol:    kline.Symbol,
		Interval:  kline.Interval,
		OpenTime:  kline.OpenTime.UnixMilli(),
		CloseTime: kline.CloseTime.UnixMilli(),
		Open:      kline.Open,
		High:      kline.High,
		Low:       kline.Low,
		Close:     kline.Close,
		Volume:    kline.Volume,
		CreatedAt: time.Now(),
	}
}

func toIndicatorModel(report *types.CycleReport) (*Indicator, error) {
	snapshot := report.Snapshot

	fib, err := json.Marshal(snapshot.FibLevels)
	if err != nil {
		return nil, fmt.Errorf("序列化斐波那契回撤位失败: %v", err)
	}

	indicator := &Indicator{
		Symbol:     report.Symbol,
		KlineTime:  snapshot.CandleTime.UnixMilli(),
		LastClose:  snapshot.LastClose,
		Divergence: snapshot.Divergence.String(),
		FibLevels:  string(fib),
		Signal:     report.Signal.String(),
		Suppressed: report.Suppressed,
		CreatedAt:  time.Now(),
	}
	if !math.IsNaN(snapshot.RSI) {
		rsi := snapshot.RSI
		indicator.RSI = &rsi
	}

	return indicator, nil
}

func applySignal(stat *SignalStat, signal types.Signal) {
	stat.Cycles++
	switch signal {
	case types.SignalBuy:
		stat.BuySignals++
	case types.SignalSell:
		stat.SellSignals++
	}
}
