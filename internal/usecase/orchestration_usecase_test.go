package usecase

import (
	"strings"
	"testing"

	"taskbot/internal/model"
)

func TestNotifyText(t *testing.T) {
	task := &model.Task{Title: "Fix login flow"}

	cases := []struct {
		name string
		data map[string]any
		want string
	}{
		{
			"reminder",
			map[string]any{"reminder": true},
			"no activity",
		},
		{
			"passed",
			map[string]any{"passed": true},
			"passed acceptance",
		},
		{
			"returned with reasons",
			map[string]any{"passed": false, "revision": 1, "failed_reasons": []string{"missing tests"}},
			"missing tests",
		},
		{
			"returned without reasons",
			map[string]any{"passed": false, "revision": 2},
			"none given",
		},
		{
			"submission",
			map[string]any{"submission_url": "https://example.com/pr/1"},
			"https://example.com/pr/1",
		},
		{
			"assignment",
			map[string]any{"deadline": "2026-10-01"},
			"assigned task",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := notifyText(task, tc.data)
			if !strings.Contains(got, tc.want) {
				t.Errorf("notifyText() = %q, want it to mention %q", got, tc.want)
			}
			if !strings.Contains(got, task.Title) {
				t.Errorf("notifyText() = %q, want the task title in it", got)
			}
		})
	}
}

func TestJoinReasons(t *testing.T) {
	if got := joinReasons([]string{"a", "b"}); got != "a; b" {
		t.Errorf("joinReasons = %q", got)
	}
	if got := joinReasons(nil); got != "none given" {
		t.Errorf("joinReasons(nil) = %q", got)
	}
	if got := joinReasons([]string{}); got != "none given" {
		t.Errorf("joinReasons(empty) = %q", got)
	}
}
