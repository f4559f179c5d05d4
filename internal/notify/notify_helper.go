package notify

import (
	"fmt"
	"os"
	"strings"
)

// Alert 运维告警（伪造回调、CAS 冲突耗尽等异常场景）
// 群ID 从环境变量读取，未配置时静默跳过，不阻塞回调链路
func Alert(level, title, text string) {
	chatID := os.Getenv("TELEGRAM_ALERT_CHAT_ID")
	if chatID == "" {
		return
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("*[%s]* %s\n", strings.ToUpper(level), escapeMarkdown(title)))
	sb.WriteString(escapeMarkdown(text))
	NotifySendMsgToTG(chatID, sb.String())
}

// escapeMarkdown 转义 Telegram Markdown V2 特殊字符
func escapeMarkdown(s string) string {
	replacer := strings.NewReplacer(
		"_", "\\_",
		"*", "\\*",
		"[", "\\[",
		"]", "\\]",
		"(", "\\(",
		")", "\\)",
		"~", "\\~",
		"`", "\\`",
		">", "\\>",
		"#", "\\#",
		"+", "\\+",
		"-", "\\-",
		"=", "\\=",
		"|", "\\|",
		"{", "\\{",
		"}", "\\}",
		".", "\\.",
		"!", "\\!",
	)
	return replacer.Replace(s)
}
