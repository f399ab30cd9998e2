package config

import (
	"os"
	"sync"
)

type DeepseekConfig struct {
	APIKey string
	Model  string
}

var (
	deepseekConfig *DeepseekConfig
	deepseekOnce   sync.Once
)

func LoadDeepseekConfig() *DeepseekConfig {
	deepseekOnce.Do(func() {
		model := os.Getenv("DEEPSEEK_MODEL")
		if model == "" {
			model = "deepseek-chat"
		}
		deepseekConfig = &DeepseekConfig{
			APIKey: os.Getenv("DEEPSEEK_API_KEY"),
			Model:  model,
		}
	})
	return deepseekConfig
}
