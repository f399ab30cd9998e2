package service

import (
	"testing"

	"taskbot/internal/model"
	"taskbot/internal/orchestrator"
)

func TestBuildCandidateCard(t *testing.T) {
	ranked := []orchestrator.RankedCandidate{
		{CandidateID: "u_1", Score: 92},
		{CandidateID: "u_2", Score: 85},
	}
	byID := map[string]model.Candidate{
		"u_1": {UserID: "u_1", Name: "Ada", SkillTags: "go,sql", HoursAvailable: 20},
	}

	card := BuildCandidateCard("task-1", ranked, byID)

	elements, ok := card["elements"].([]map[string]any)
	if !ok || len(elements) == 0 {
		t.Fatalf("card has no elements: %+v", card)
	}

	var buttons []map[string]any
	for _, el := range elements {
		if el["tag"] != "action" {
			continue
		}
		actions := el["actions"].([]map[string]any)
		buttons = append(buttons, actions...)
	}
	if len(buttons) != len(ranked) {
		t.Fatalf("got %d buttons, want %d", len(buttons), len(ranked))
	}

	value := buttons[0]["value"].(map[string]any)
	if value["task_id"] != "task-1" || value["user_id"] != "u_1" || value["action"] != "select_candidate" {
		t.Errorf("first button value = %+v", value)
	}
	// A candidate without a stored profile falls back to the user id.
	value = buttons[1]["value"].(map[string]any)
	if value["user_id"] != "u_2" {
		t.Errorf("second button value = %+v", value)
	}
}
