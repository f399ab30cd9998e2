package config

import (
	"os"
	"sync"
)

type GithubConfig struct {
	WebhookSecret string
}

var (
	githubConfig *GithubConfig
	githubOnce   sync.Once
)

func LoadGithubConfig() *GithubConfig {
	githubOnce.Do(func() {
		githubConfig = &GithubConfig{
			WebhookSecret: os.Getenv("GITHUB_WEBHOOK_SECRET"),
		}
	})
	return githubConfig
}
