package notifier

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"blofin-rsi-sentry/pkg/types"
	"go.uber.org/zap"
)

const pushPlusEndpoint = "http://www.pushplus.plus/send"

// safePadding 安全地计算填充空格数量，避免负数
func safePadding(content string, totalWidth int) int {
	runeCount := utf8.RuneCountInString(content)
	padding := totalWidth - runeCount - 4 // 4是边框字符数
	if padding < 0 {
		padding = 0
	}
	return padding
}

// buildTradingURL 根据交易对生成交易链接
func buildTradingURL(symbol string) string {
	return fmt.Sprintf("https://blofin.com/futures/%s", symbol)
}

// alertTitle 通知标题
func alertTitle(alert *types.TradeAlert) string {
	if alert.Err != nil {
		return fmt.Sprintf("❌ BloFin下单失败 - %s %s", alert.Symbol, alert.Signal)
	}
	if alert.Result != nil && alert.Result.DryRun {
		return fmt.Sprintf("🧪 BloFin模拟下单 - %s %s", alert.Symbol, alert.Signal)
	}
	return fmt.Sprintf("✅ BloFin已下单 - %s %s", alert.Symbol, alert.Signal)
}

// Interface 通知接口
type Interface interface {
	SendTradeAlert(alert *types.TradeAlert) error
}

// New 根据配置选择通知服务（优先级：钉钉 > PushPlus > 控制台）
func New(dingTalk types.DingTalkConfig, pushPlus types.PushPlusConfig) Interface {
	if dingTalk.WebhookURL != "" {
		return NewDingTalkNotifier(dingTalk.WebhookURL, dingTalk.Secret)
	}
	if pushPlus.UserToken != "" {
		return NewPushPlusNotifier(pushPlus.UserToken, pushPlus.To)
	}
	zap.L().Info("🔧 未配置推送服务，使用控制台输出模式")
	return NewConsoleNotifier()
}

// ConsoleNotifier 控制台通知器
type ConsoleNotifier struct {
	out io.Writer
}

func NewConsoleNotifier() *ConsoleNotifier {
	return &ConsoleNotifier{}
}

func (cn *ConsoleNotifier) SendTradeAlert(alert *types.TradeAlert) error {
	cn.printAlert(alert)
	return nil
}

func (cn *ConsoleNotifier) printAlert(alert *types.TradeAlert) {
	var b strings.Builder
	width := 60

	line := func(content string) {
		fmt.Fprintf(&b, "║ %s%s ║\n", content, strings.Repeat(" ", safePadding(content, width)))
	}

	b.WriteString("\n╔" + strings.Repeat("═", width) + "╗\n")
	line(alertTitle(alert))
	b.WriteString("║" + strings.Repeat(" ", width) + "║\n")
	line(fmt.Sprintf("RSI: %.2f", alert.RSI))
	if o := alert.Order; o != nil {
		line(fmt.Sprintf("方向: %s  数量: %v  杠杆: %dx", o.Side.Side(), o.Quantity, o.Leverage))
		line(fmt.Sprintf("入场价: %v", o.EntryPrice))
		line(fmt.Sprintf("止损: %v  止盈: %v", o.StopLossPrice, o.TakeProfitPrice))
	}
	if alert.Result != nil && alert.Result.OrderID != "" {
		line(fmt.Sprintf("订单ID: %s", alert.Result.OrderID))
	}
	if alert.Err != nil {
		line(fmt.Sprintf("错误: %v", alert.Err))
	}
	line(fmt.Sprintf("时间: %s", alert.AlertTime.Format("2006-01-02 15:04:05")))
	b.WriteString("╚" + strings.Repeat("═", width) + "╝\n")

	out := cn.out
	if out == nil {
		fmt.Print(b.String())
		return
	}
	fmt.Fprint(out, b.String())
}

// PushPlusNotifier PushPlus推送服务
type PushPlusNotifier struct {
	userToken  string
	to         string
	endpoint   string
	httpClient *http.Client
}

// PushPlusRequest PushPlus请求结构
type PushPlusRequest struct {
	Token    string `json:"token"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	Template string `json:"template"`
	To       string `json:"to,omitempty"` // 好友令牌，给朋友发送通知
}

type PushPlusResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data string `json:"data"`
}

func NewPushPlusNotifier(userToken, to string) *PushPlusNotifier {
	if to != "" {
		zap.L().Info("✅ 已配置PushPlus通知服务（包含好友推送）", zap.String("to", to))
	} else {
		zap.L().Info("✅ 已配置PushPlus通知服务")
	}

	return &PushPlusNotifier{
		userToken: userToken,
		to:        to,
		endpoint:  pushPlusEndpoint,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (ppn *PushPlusNotifier) SendTradeAlert(alert *types.TradeAlert) error {
	title := alertTitle(alert)
	content := ppn.buildHTMLContent(alert)

	if err := ppn.sendPushPlusMessage(title, content); err != nil {
		zap.L().Warn("❌ PushPlus发送失败，降级为控制台输出", zap.Error(err))
		return NewConsoleNotifier().SendTradeAlert(alert)
	}

	zap.L().Info("✅ PushPlus通知已发送", zap.String("symbol", alert.Symbol), zap.String("signal", alert.Signal.String()))
	return nil
}

func (ppn *PushPlusNotifier) buildHTMLContent(alert *types.TradeAlert) string {
	color := "#00C851" // 绿色表示做多
	if alert.Signal == types.SignalSell {
		color = "#FF4444"
	}
	if alert.Err != nil {
		color = "#999999"
	}

	var rows strings.Builder
	row := func(name, value string) {
		fmt.Fprintf(&rows, "        <p><strong>%s:</strong> <span style=\"color: #333;\">%s</span></p>\n", name, value)
	}
	row("交易对", fmt.Sprintf(`<a href="%s" target="_blank">%s 🔗</a>`, buildTradingURL(alert.Symbol), alert.Symbol))
	row("RSI", fmt.Sprintf("%.2f", alert.RSI))
	if o := alert.Order; o != nil {
		row("方向", fmt.Sprintf("%s / %s", o.Side.Side(), o.Side.PositionSide()))
		row("数量", fmt.Sprintf("%v (杠杆 %dx)", o.Quantity, o.Leverage))
		row("入场价", fmt.Sprintf("%v", o.EntryPrice))
		row("止损价", fmt.Sprintf("%v", o.StopLossPrice))
		row("止盈价", fmt.Sprintf("%v", o.TakeProfitPrice))
	}
	if alert.Result != nil && alert.Result.OrderID != "" {
		row("订单ID", alert.Result.OrderID)
	}
	if alert.Err != nil {
		row("错误", alert.Err.Error())
	}
	row("时间", alert.AlertTime.Format("2006-01-02 15:04:05"))

	return fmt.Sprintf(`
<div style="border: 2px solid %s; border-radius: 10px; padding: 20px; margin: 10px; background-color: #f9f9f9;">
    <h2 style="color: %s; text-align: center; margin-top: 0;">%s</h2>
    <div style="background-color: white; padding: 15px; border-radius: 8px; margin: 10px 0;">
%s    </div>
</div>
`, color, color, alertTitle(alert), rows.String())
}

func (ppn *PushPlusNotifier) sendPushPlusMessage(title, content string) error {
	reqData := PushPlusRequest{
		Token:    ppn.userToken,
		Title:    title,
		Content:  content,
		Template: "html",
		To:       ppn.to,
	}

	jsonData, err := json.Marshal(reqData)
	if err != nil {
		return fmt.Errorf("序列化请求数据失败: %v", err)
	}

	resp, err := ppn.httpClient.Post(ppn.endpoint, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("HTTP请求失败: %v", err)
	}
	defer resp.Body.Close()

	var pushResp PushPlusResponse
	if err := json.NewDecoder(resp.Body).Decode(&pushResp); err != nil {
		return fmt.Errorf("解析响应失败: %v", err)
	}

	if pushResp.Code != 200 {
		return fmt.Errorf("PushPlus API错误: %s", pushResp.Msg)
	}

	return nil
}

// DingTalkNotifier 钉钉机器人通知
type DingTalkNotifier struct {
	webhookURL string
	secret     string
	httpClient *http.Client
	now        func() time.Time
}

// DingTalkMessage 钉钉消息结构
type DingTalkMessage struct {
	MsgType  string            `json:"msgtype"`
	Markdown *DingTalkMarkdown `json:"markdown,omitempty"`
	At       *DingTalkAt       `json:"at,omitempty"`
}

type DingTalkMarkdown struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

type DingTalkAt struct {
	AtAll bool `json:"isAtAll"`
}

// DingTalkResponse 钉钉API响应
type DingTalkResponse struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

func NewDingTalkNotifier(webhookURL, secret string) *DingTalkNotifier {
	if secret != "" {
		zap.L().Info("✅ 已配置钉钉通知服务（含加签验证）")
	} else {
		zap.L().Warn("⚠️ 钉钉通知已配置，但未设置secret（建议配置加签验证）")
	}

	return &DingTalkNotifier{
		webhookURL: webhookURL,
		secret:     secret,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		now: time.Now,
	}
}

func (dtn *DingTalkNotifier) SendTradeAlert(alert *types.TradeAlert) error {
	title := alertTitle(alert)
	content := dtn.buildMarkdownContent(alert)

	if err := dtn.sendDingTalkMessage(title, content); err != nil {
		zap.L().Warn("❌ 钉钉发送失败，降级为控制台输出", zap.Error(err))
		return NewConsoleNotifier().SendTradeAlert(alert)
	}

	zap.L().Info("✅ 钉钉通知已发送", zap.String("symbol", alert.Symbol), zap.String("signal", alert.Signal.String()))
	return nil
}

// generateSignature 生成钉钉加签
func (dtn *DingTalkNotifier) generateSignature(timestamp int64) string {
	if dtn.secret == "" {
		return ""
	}

	// timestamp + "\n" + secret
	stringToSign := fmt.Sprintf("%d\n%s", timestamp, dtn.secret)

	h := hmac.New(sha256.New, []byte(dtn.secret))
	h.Write([]byte(stringToSign))
	signature := base64.StdEncoding.EncodeToString(h.Sum(nil))

	return url.QueryEscape(signature)
}

// buildSignedURL 构建带签名的URL
func (dtn *DingTalkNotifier) buildSignedURL() string {
	if dtn.secret == "" {
		return dtn.webhookURL
	}

	timestamp := dtn.now().UnixMilli()
	signature := dtn.generateSignature(timestamp)

	separator := "&"
	if !strings.Contains(dtn.webhookURL, "?") {
		separator = "?"
	}

	return fmt.Sprintf("%s%stimestamp=%d&sign=%s",
		dtn.webhookURL, separator, timestamp, signature)
}

// buildMarkdownContent 构建Markdown内容
func (dtn *DingTalkNotifier) buildMarkdownContent(alert *types.TradeAlert) string {
	color := "green"
	if alert.Signal == types.SignalSell {
		color = "red"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", alertTitle(alert))
	fmt.Fprintf(&b, "**交易对**: [%s](%s)  \n", alert.Symbol, buildTradingURL(alert.Symbol))
	fmt.Fprintf(&b, "**信号**: <font color=\"%s\">%s</font>  \n", color, alert.Signal)
	fmt.Fprintf(&b, "**RSI**: %.2f  \n", alert.RSI)
	if o := alert.Order; o != nil {
		fmt.Fprintf(&b, "**数量**: %v (杠杆 %dx)  \n", o.Quantity, o.Leverage)
		fmt.Fprintf(&b, "**入场价**: %v  \n", o.EntryPrice)
		fmt.Fprintf(&b, "**止损/止盈**: %v / %v  \n", o.StopLossPrice, o.TakeProfitPrice)
	}
	if alert.Result != nil && alert.Result.OrderID != "" {
		fmt.Fprintf(&b, "**订单ID**: %s  \n", alert.Result.OrderID)
	}
	if alert.Err != nil {
		fmt.Fprintf(&b, "**错误**: %v  \n", alert.Err)
	}
	fmt.Fprintf(&b, "**时间**: %s\n", alert.AlertTime.Format("2006-01-02 15:04:05"))

	return b.String()
}

// sendDingTalkMessage 发送钉钉消息
func (dtn *DingTalkNotifier) sendDingTalkMessage(title, content string) error {
	message := &DingTalkMessage{
		MsgType: "markdown",
		Markdown: &DingTalkMarkdown{
			Title: title,
			Text:  content,
		},
		At: &DingTalkAt{
			AtAll: false,
		},
	}

	jsonData, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("序列化消息失败: %v", err)
	}

	resp, err := dtn.httpClient.Post(dtn.buildSignedURL(), "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("HTTP请求失败: %v", err)
	}
	defer resp.Body.Close()

	var dingResp DingTalkResponse
	if err := json.NewDecoder(resp.Body).Decode(&dingResp); err != nil {
		return fmt.Errorf("解析响应失败: %v", err)
	}

	if dingResp.ErrCode != 0 {
		return fmt.Errorf("钉钉API错误 [%d]: %s", dingResp.ErrCode, dingResp.ErrMsg)
	}

	return nil
}
