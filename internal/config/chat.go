package config

import (
	"os"
	"sync"
)

type ChatConfig struct {
	BaseURL       string
	BotToken      string
	VerifyToken   string
	CoordinatorID string
}

var (
	chatConfig *ChatConfig
	chatOnce   sync.Once
)

func LoadChatConfig() *ChatConfig {
	chatOnce.Do(func() {
		chatConfig = &ChatConfig{
			BaseURL:       os.Getenv("CHAT_BASE_URL"),
			BotToken:      os.Getenv("CHAT_BOT_TOKEN"),
			VerifyToken:   os.Getenv("CHAT_VERIFY_TOKEN"),
			CoordinatorID: os.Getenv("CHAT_COORDINATOR_ID"),
		}
	})
	return chatConfig
}
