package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/joho/godotenv"
)

type telegramMessage struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
	Parse  string `json:"parse_mode"`
}

func init() {
	_ = godotenv.Load() // 本地开发从 .env 读 bot token
}

// SendTelegramMessage 同步发送一条 Telegram 消息
func SendTelegramMessage(chatID, content string) error {
	botToken := os.Getenv("TELEGRAM_BOT_TOKEN")
	if botToken == "" {
		return fmt.Errorf("missing TELEGRAM_BOT_TOKEN in env")
	}

	body, _ := json.Marshal(telegramMessage{
		ChatID: chatID,
		Text:   content,
		Parse:  "Markdown",
	})
	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", botToken)
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram api status %d", resp.StatusCode)
	}
	return nil
}

// NotifySendMsgToTG 异步发送，告警不阻塞业务链路
func NotifySendMsgToTG(chatID, content string) {
	go func() {
		if err := SendTelegramMessage(chatID, content); err != nil {
			log.Printf("telegram send failed: %v", err)
		}
	}()
}
