package usecase

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"taskbot/internal/config"
	"taskbot/internal/model"
	"taskbot/internal/orchestrator"
	"taskbot/internal/repository"
	"taskbot/internal/service"
)

// poolSize bounds how many candidate profiles the embedding pre-filter feeds
// into ranking.
const poolSize = 20

type OrchestrationUsecase struct {
	taskRepo      *repository.TaskRepository
	candidateRepo *repository.CandidateRepository
	llm           service.LLMServiceInterface
	gemini        service.GeminiServiceInterface
	chat          service.ChatServiceInterface
	core          *orchestrator.Orchestrator
	coordinatorID string
	reminderIdle  time.Duration
}

func NewOrchestrationUsecase(
	taskRepo *repository.TaskRepository,
	candidateRepo *repository.CandidateRepository,
	llm service.LLMServiceInterface,
	gemini service.GeminiServiceInterface,
	chat service.ChatServiceInterface,
) *OrchestrationUsecase {
	cfg := config.LoadOrchestrationConfig()

	uc := &OrchestrationUsecase{
		taskRepo:      taskRepo,
		candidateRepo: candidateRepo,
		llm:           llm,
		gemini:        gemini,
		chat:          chat,
		coordinatorID: config.LoadChatConfig().CoordinatorID,
		reminderIdle:  cfg.ReminderIdle,
	}
	uc.core = orchestrator.New(
		orchestrator.NewDeduplicator(cfg.DedupRetention, cfg.DedupMaxEntries),
		orchestrator.NewEvaluator(cfg.ReviewPassThreshold),
		orchestrator.NewRanker(uc.matchScore),
		orchestrator.Config{EvalTimeout: cfg.EvalTimeout, RankTimeout: cfg.RankTimeout},
	)
	return uc
}

func (uc *OrchestrationUsecase) matchScore(ctx context.Context, task *model.Task, c model.Candidate) (float64, error) {
	return uc.llm.MatchScore(ctx, task, c)
}

type CreateTaskInput struct {
	Title              string    `json:"title"`
	Description        string    `json:"description"`
	AcceptanceCriteria string    `json:"acceptance_criteria"`
	SkillTags          string    `json:"skill_tags"`
	Deadline           time.Time `json:"deadline"`
}

// CreateTask persists a fresh Draft task and runs the matching flow: the
// core ranks a candidate pool and the coordinator receives a picker card.
func (uc *OrchestrationUsecase) CreateTask(ctx context.Context, in CreateTaskInput) (*model.Task, error) {
	task := &model.Task{
		ID:                 uuid.New(),
		Title:              in.Title,
		Description:        in.Description,
		AcceptanceCriteria: in.AcceptanceCriteria,
		SkillTags:          in.SkillTags,
		Deadline:           in.Deadline,
		Status:             model.StatusDraft,
		CreatedAt:          time.Now(),
		UpdatedAt:          time.Now(),
	}
	if err := uc.taskRepo.CreateTask(task); err != nil {
		return nil, err
	}

	pool := uc.candidatePool(ctx, task)
	ev := orchestrator.Event{
		ID:     uuid.NewString(),
		Type:   orchestrator.EventTaskCreated,
		TaskID: task.ID.String(),
	}
	res, err := uc.core.Handle(ctx, ev, orchestrator.Snapshot{Task: task, Candidates: pool})
	if err != nil {
		return task, err
	}
	uc.dispatch(ctx, &res)
	return task, nil
}

// candidatePool narrows the candidate table to the profiles nearest the task
// text. Falls back to the full table when the embedding path is down: a
// degraded pool beats no assignment flow at all.
func (uc *OrchestrationUsecase) candidatePool(ctx context.Context, task *model.Task) []model.Candidate {
	text := task.Title + "\n" + task.Description + "\n" + task.SkillTags
	emb, err := uc.gemini.GenerateEmbedding(ctx, text)
	if err == nil {
		pool, serr := uc.candidateRepo.SearchCandidates(pgvector.NewVector(emb), poolSize)
		if serr == nil {
			return pool
		}
		log.Printf("Candidate embedding search failed: %v", serr)
	} else {
		log.Printf("Task embedding failed: %v", err)
	}

	pool, err := uc.candidateRepo.GetCandidates()
	if err != nil {
		log.Printf("Candidate fallback load failed: %v", err)
		return nil
	}
	return pool
}

func (uc *OrchestrationUsecase) SelectCandidate(ctx context.Context, eventID, taskID, userID string) (*orchestrator.Result, error) {
	task, err := uc.taskRepo.FindTaskByID(taskID)
	if err != nil {
		return nil, err
	}
	ev := orchestrator.Event{
		ID:      eventID,
		Type:    orchestrator.EventCandidateSelected,
		TaskID:  taskID,
		Payload: orchestrator.Payload{CandidateID: userID},
	}
	return uc.handleAndDispatch(ctx, ev, task)
}

// ReceiveSubmission records a submission announced in a task sub-channel.
func (uc *OrchestrationUsecase) ReceiveSubmission(ctx context.Context, eventID, chatID, url, sha string) (*orchestrator.Result, error) {
	task, err := uc.taskRepo.FindTaskByChatID(chatID)
	if err != nil {
		return nil, err
	}
	ev := orchestrator.Event{
		ID:      eventID,
		Type:    orchestrator.EventSubmissionReceived,
		TaskID:  task.ID.String(),
		Payload: orchestrator.Payload{SubmissionURL: url, CommitSHA: sha},
	}
	return uc.handleAndDispatch(ctx, ev, task)
}

// HandleCIStatus feeds a parsed CI signal for a commit into the core.
func (uc *OrchestrationUsecase) HandleCIStatus(ctx context.Context, eventID, sha string, status orchestrator.CIStatus) (*orchestrator.Result, error) {
	task, err := uc.taskRepo.FindTaskByCommit(sha)
	if err != nil {
		return nil, err
	}
	ev := orchestrator.Event{
		ID:      eventID,
		Type:    orchestrator.EventCIStatusChanged,
		TaskID:  task.ID.String(),
		Payload: orchestrator.Payload{CIStatus: status},
	}
	return uc.handleAndDispatch(ctx, ev, task)
}

// ReviewSubmission fetches an LLM review score for a non-code task and feeds
// the result into the core. The primary provider is DeepSeek with Gemini as
// the fallback scorer.
func (uc *OrchestrationUsecase) ReviewSubmission(ctx context.Context, taskID string) (*orchestrator.Result, error) {
	task, err := uc.taskRepo.FindTaskByID(taskID)
	if err != nil {
		return nil, err
	}

	score, reasons, err := uc.llm.ScoreSubmission(ctx, task, task.SubmissionURL)
	if err != nil {
		log.Printf("Primary review scorer failed, falling back to Gemini: %v", err)
		score, reasons, err = uc.gemini.ScoreSubmission(ctx, task, task.SubmissionURL)
		if err != nil {
			return nil, fmt.Errorf("review scoring failed: %w", err)
		}
	}

	ev := orchestrator.Event{
		ID:      uuid.NewString(),
		Type:    orchestrator.EventReviewScored,
		TaskID:  taskID,
		Payload: orchestrator.Payload{Score: score, Reasons: reasons},
	}
	return uc.handleAndDispatch(ctx, ev, task)
}

// RemindIdleTasks emits a reminder_tick for every assigned or returned task
// idle past the configured window. The ticker lives in the process bootstrap;
// the core only consumes the resulting events.
func (uc *OrchestrationUsecase) RemindIdleTasks(ctx context.Context) {
	tasks, err := uc.taskRepo.ListTasksByStatus(model.StatusAssigned, model.StatusReturned)
	if err != nil {
		log.Printf("Reminder sweep failed to list tasks: %v", err)
		return
	}
	cutoff := time.Now().Add(-uc.reminderIdle)
	for i := range tasks {
		task := tasks[i]
		if task.UpdatedAt.After(cutoff) {
			continue
		}
		ev := orchestrator.Event{
			ID:     uuid.NewString(),
			Type:   orchestrator.EventReminderTick,
			TaskID: task.ID.String(),
		}
		if _, err := uc.handleAndDispatch(ctx, ev, &task); err != nil {
			log.Printf("Reminder for task %s failed: %v", task.ID, err)
		}
	}
}

func (uc *OrchestrationUsecase) GetTask(id string) (*model.Task, error) {
	return uc.taskRepo.FindTaskByID(id)
}

func (uc *OrchestrationUsecase) ListTasks(page, pageSize int) ([]model.Task, int64, error) {
	return uc.taskRepo.ListTasks(page, pageSize)
}

func (uc *OrchestrationUsecase) CreateCandidate(ctx context.Context, c *model.Candidate) error {
	text := c.Name + "\n" + c.SkillTags
	if emb, err := uc.gemini.GenerateEmbedding(ctx, text); err == nil {
		c.Embedding = pgvector.NewVector(emb)
	} else {
		log.Printf("Candidate embedding failed for %s: %v", c.UserID, err)
	}
	c.CreatedAt = time.Now()
	c.UpdatedAt = time.Now()
	return uc.candidateRepo.CreateCandidate(c)
}

func (uc *OrchestrationUsecase) handleAndDispatch(ctx context.Context, ev orchestrator.Event, task *model.Task) (*orchestrator.Result, error) {
	res, err := uc.core.Handle(ctx, ev, orchestrator.Snapshot{Task: task})
	if err != nil {
		return nil, err
	}
	uc.dispatch(ctx, &res)
	return &res, nil
}

// dispatch performs the outbound actions in order. Messaging failures are
// logged and skipped so one unreachable chat never blocks persistence;
// persistence failures are logged loudly since the durable copy is behind.
func (uc *OrchestrationUsecase) dispatch(ctx context.Context, res *orchestrator.Result) {
	if res.Outcome == orchestrator.OutcomeDuplicate {
		log.Println("Duplicate event ignored")
		return
	}
	if res.Outcome == orchestrator.OutcomeRejected {
		log.Printf("Event rejected: %s", res.Reason)
		return
	}

	var createdChatID string
	for _, action := range res.Actions {
		switch action.Kind {
		case orchestrator.ActionNotify:
			uc.notify(ctx, res.Task, action)

		case orchestrator.ActionCreateSubchannel:
			name, _ := action.Data["name"].(string)
			desc, _ := action.Data["description"].(string)
			members := []string{}
			if res.Task != nil && res.Task.AssigneeID != "" {
				members = append(members, res.Task.AssigneeID)
			}
			if uc.coordinatorID != "" {
				members = append(members, uc.coordinatorID)
			}
			chatID, err := uc.chat.CreateChat(ctx, name, desc, members)
			if err != nil {
				log.Printf("Create subchannel failed: %v", err)
				continue
			}
			createdChatID = chatID
			if err := uc.taskRepo.SetChatID(action.Target, chatID); err != nil {
				log.Printf("Persist chat id for task %s failed: %v", action.Target, err)
			}

		case orchestrator.ActionInvite:
			if createdChatID == "" {
				continue // membership already handled at chat creation
			}
			if err := uc.chat.AddMembers(ctx, createdChatID, []string{action.Target}); err != nil {
				log.Printf("Invite %s failed: %v", action.Target, err)
			}

		case orchestrator.ActionPersistTask:
			if err := uc.taskRepo.ApplyChangeSet(res.Changes); err != nil {
				log.Printf("Persist change-set for task %s failed: %v", action.Target, err)
			}

		case orchestrator.ActionEscalate:
			text := fmt.Sprintf("Task %v exhausted its revision budget and needs a decision.\nReasons: %s",
				action.Data["task_id"], joinReasons(action.Data["failed_reasons"]))
			if err := uc.chat.SendText(ctx, uc.coordinatorID, text); err != nil {
				log.Printf("Escalation message failed: %v", err)
			}
		}
	}
}

func (uc *OrchestrationUsecase) notify(ctx context.Context, task *model.Task, action orchestrator.OutboundAction) {
	target := action.Target
	if target == "" || target == "coordinator" {
		target = uc.coordinatorID
	}
	if target == "" {
		log.Println("Notify action has no resolvable target")
		return
	}

	// Ranked candidates go out as a picker card; everything else as text.
	if ranked, ok := action.Data["candidates"].([]orchestrator.RankedCandidate); ok {
		byID := map[string]model.Candidate{}
		for _, rc := range ranked {
			if c, err := uc.candidateRepo.FindCandidateByUserID(rc.CandidateID); err == nil {
				byID[rc.CandidateID] = *c
			}
		}
		taskID, _ := action.Data["task_id"].(string)
		card := service.BuildCandidateCard(taskID, ranked, byID)
		if err := uc.chat.SendCard(ctx, target, card); err != nil {
			log.Printf("Candidate card to %s failed: %v", target, err)
		}
		return
	}

	if err := uc.chat.SendText(ctx, target, notifyText(task, action.Data)); err != nil {
		log.Printf("Notify %s failed: %v", target, err)
	}
}

func notifyText(task *model.Task, data map[string]any) string {
	title := ""
	if task != nil {
		title = task.Title
	}
	if reminder, _ := data["reminder"].(bool); reminder {
		return fmt.Sprintf("Reminder: task %q has had no activity for a while, please post an update.", title)
	}
	if passed, ok := data["passed"].(bool); ok {
		if passed {
			return fmt.Sprintf("Task %q passed acceptance. Nice work!", title)
		}
		return fmt.Sprintf("Task %q was returned for revision (round %v).\nReasons: %s",
			title, data["revision"], joinReasons(data["failed_reasons"]))
	}
	if url, ok := data["submission_url"].(string); ok && url != "" {
		return fmt.Sprintf("New submission for task %q: %s", title, url)
	}
	return fmt.Sprintf("You have been assigned task %q. A working channel has been set up for it.", title)
}

func joinReasons(v any) string {
	reasons, ok := v.([]string)
	if !ok || len(reasons) == 0 {
		return "none given"
	}
	return strings.Join(reasons, "; ")
}
