package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"taskbot/internal/config"
	"taskbot/internal/model"
)

// LLMServiceInterface is the scoring collaborator the orchestration core
// stays decoupled from: match scoring feeds the ranker's injected score
// function, submission scoring produces review_scored events.
type LLMServiceInterface interface {
	MatchScore(ctx context.Context, task *model.Task, candidate model.Candidate) (float64, error)
	ScoreSubmission(ctx context.Context, task *model.Task, submissionURL string) (float64, []string, error)
}

type DeepseekService struct {
	client *resty.Client
	model  string
}

const deepseekEndpoint = "https://api.deepseek.com/v1/chat/completions"

func NewDeepseekService() *DeepseekService {
	cfg := config.LoadDeepseekConfig()
	client := resty.New().
		SetHeader("Content-Type", "application/json").
		SetAuthToken(cfg.APIKey)
	return &DeepseekService{client: client, model: cfg.Model}
}

// MatchScore asks the model how well one candidate fits a task, 0-100.
func (s *DeepseekService) MatchScore(ctx context.Context, task *model.Task, candidate model.Candidate) (float64, error) {
	prompt := fmt.Sprintf(`Task requirements: %s
Deadline: %s
Description: %s

Candidate:
user_id: %s
skills: %s
hours available per week: %.1f
performance score: %.1f

Rate how well this candidate fits the task.
Return your answer STRICTLY in JSON format:
{"score": <number 0-100>}`,
		task.SkillTags, task.Deadline.Format("2006-01-02"), task.Description,
		candidate.UserID, candidate.SkillTags, candidate.HoursAvailable, candidate.Performance)

	text, err := s.chat(ctx, "You are a talent matching assistant pairing tasks with people by skill and availability.", prompt)
	if err != nil {
		return 0, err
	}
	score := gjson.Get(text, "score")
	if !score.Exists() {
		return 0, fmt.Errorf("match reply carries no score: %s", text)
	}
	return score.Float(), nil
}

// ScoreSubmission reviews a submission against the task's acceptance
// criteria and returns the score with the reasons it fell short.
func (s *DeepseekService) ScoreSubmission(ctx context.Context, task *model.Task, submissionURL string) (float64, []string, error) {
	prompt := fmt.Sprintf(`Task description: %s
Acceptance criteria: %s
Submission: %s

Score the submission against the acceptance criteria.
Return your answer STRICTLY in JSON format:
{"score": <number 0-100>, "reasons": ["<reason the submission falls short, empty when none>"]}`,
		task.Description, task.AcceptanceCriteria, submissionURL)

	text, err := s.chat(ctx, "You are a quality review assistant scoring submitted work against acceptance criteria.", prompt)
	if err != nil {
		return 0, nil, err
	}
	score := gjson.Get(text, "score")
	if !score.Exists() {
		return 0, nil, fmt.Errorf("review reply carries no score: %s", text)
	}
	var reasons []string
	for _, r := range gjson.Get(text, "reasons").Array() {
		if reason := strings.TrimSpace(r.String()); reason != "" {
			reasons = append(reasons, reason)
		}
	}
	return score.Float(), reasons, nil
}

func (s *DeepseekService) chat(ctx context.Context, system, prompt string) (string, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"model":       s.model,
			"temperature": 0.1,
			"messages": []map[string]string{
				{"role": "system", "content": system},
				{"role": "user", "content": prompt},
			},
		}).
		Post(deepseekEndpoint)
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		return "", fmt.Errorf("deepseek returned %s: %s", resp.Status(), resp.String())
	}

	text := gjson.Get(resp.String(), "choices.0.message.content").String()
	if text == "" {
		return "", fmt.Errorf("no content in deepseek response")
	}
	return StripJSONFences(text), nil
}

// StripJSONFences unwraps a ```json fenced block, which chat models wrap
// around JSON answers even when told not to.
func StripJSONFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	if idx := strings.Index(text, "```"); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}
