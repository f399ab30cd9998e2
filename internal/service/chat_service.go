package service

import (
	"context"
	"fmt"
	"log"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"taskbot/internal/config"
	"taskbot/internal/model"
	"taskbot/internal/orchestrator"
)

// ChatServiceInterface is the messaging collaborator that performs the
// outbound actions the orchestration core returns.
type ChatServiceInterface interface {
	SendText(ctx context.Context, receiveID, text string) error
	SendCard(ctx context.Context, receiveID string, card map[string]any) error
	CreateChat(ctx context.Context, name, description string, userIDs []string) (string, error)
	AddMembers(ctx context.Context, chatID string, userIDs []string) error
}

type ChatService struct {
	client *resty.Client
}

func NewChatService() *ChatService {
	cfg := config.LoadChatConfig()
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetHeader("Content-Type", "application/json").
		SetAuthToken(cfg.BotToken)
	return &ChatService{client: client}
}

func (s *ChatService) SendText(ctx context.Context, receiveID, text string) error {
	return s.sendMessage(ctx, receiveID, "text", map[string]any{"text": text})
}

func (s *ChatService) SendCard(ctx context.Context, receiveID string, card map[string]any) error {
	return s.sendMessage(ctx, receiveID, "interactive", card)
}

func (s *ChatService) sendMessage(ctx context.Context, receiveID, msgType string, content map[string]any) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"receive_id": receiveID,
			"msg_type":   msgType,
			"content":    content,
		}).
		Post("/messages")
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("send message to %s failed: %s %s", receiveID, resp.Status(), resp.String())
	}
	log.Printf("Sent %s message to %s", msgType, receiveID)
	return nil
}

func (s *ChatService) CreateChat(ctx context.Context, name, description string, userIDs []string) (string, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"name":         name,
			"description":  description,
			"user_id_list": userIDs,
		}).
		Post("/chats")
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		return "", fmt.Errorf("create chat %q failed: %s %s", name, resp.Status(), resp.String())
	}
	chatID := gjson.Get(resp.String(), "data.chat_id").String()
	if chatID == "" {
		return "", fmt.Errorf("create chat %q returned no chat_id", name)
	}
	log.Printf("Created chat %s (%s)", chatID, name)
	return chatID, nil
}

func (s *ChatService) AddMembers(ctx context.Context, chatID string, userIDs []string) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(map[string]any{"id_list": userIDs}).
		Post(fmt.Sprintf("/chats/%s/members", chatID))
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("add members to %s failed: %s %s", chatID, resp.Status(), resp.String())
	}
	return nil
}

// BuildCandidateCard renders the top-ranked candidates as an interactive
// card with one select button per candidate, for the coordinator to pick.
func BuildCandidateCard(taskID string, ranked []orchestrator.RankedCandidate, byID map[string]model.Candidate) map[string]any {
	elements := []map[string]any{
		{
			"tag":  "div",
			"text": map[string]any{"tag": "lark_md", "content": "**Top candidates for this task:**"},
		},
		{"tag": "hr"},
	}

	for idx, rc := range ranked {
		c := byID[rc.CandidateID]
		name := c.Name
		if name == "" {
			name = rc.CandidateID
		}
		elements = append(elements, map[string]any{
			"tag": "div",
			"fields": []map[string]any{
				{"is_short": true, "text": map[string]any{"tag": "lark_md", "content": fmt.Sprintf("**#%d %s**", idx+1, name)}},
				{"is_short": true, "text": map[string]any{"tag": "lark_md", "content": fmt.Sprintf("**Match: %.0f%%**", rc.Score)}},
				{"is_short": true, "text": map[string]any{"tag": "lark_md", "content": "Skills: " + c.SkillTags}},
				{"is_short": true, "text": map[string]any{"tag": "lark_md", "content": fmt.Sprintf("Available: %.0fh/week", c.HoursAvailable)}},
			},
		})
		elements = append(elements, map[string]any{
			"tag": "action",
			"actions": []map[string]any{
				{
					"tag":  "button",
					"text": map[string]any{"tag": "plain_text", "content": "Assign"},
					"type": "primary",
					"value": map[string]any{
						"task_id": taskID,
						"user_id": rc.CandidateID,
						"action":  "select_candidate",
					},
				},
			},
		})
		if idx < len(ranked)-1 {
			elements = append(elements, map[string]any{"tag": "hr"})
		}
	}

	return map[string]any{
		"config": map[string]any{"wide_screen_mode": true},
		"header": map[string]any{
			"title":    map[string]any{"tag": "plain_text", "content": "Task match results"},
			"template": "blue",
		},
		"elements": elements,
	}
}
