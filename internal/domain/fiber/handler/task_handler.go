package handler

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"taskbot/internal/dto"
	"taskbot/internal/middleware"
	"taskbot/internal/model"
	"taskbot/internal/orchestrator"
	"taskbot/internal/response"
	"taskbot/internal/usecase"
	"taskbot/internal/util"
)

type TaskHandler struct {
	uc *usecase.OrchestrationUsecase
}

func NewTaskHandler(uc *usecase.OrchestrationUsecase) *TaskHandler {
	return &TaskHandler{uc: uc}
}

func (h *TaskHandler) RegisterRoutes(app *fiber.App) {
	app.Post("/tasks", middleware.RateLimiter(10, time.Minute), h.CreateTask)
	app.Get("/tasks", h.ListTasks)
	app.Get("/tasks/:id", h.GetTask)
	app.Post("/tasks/:id/review", middleware.RateLimiter(5, time.Minute), h.ReviewSubmission)
	app.Post("/candidates", h.CreateCandidate)
}

func (h *TaskHandler) CreateTask(c *fiber.Ctx) error {
	var in usecase.CreateTaskInput
	if err := c.BodyParser(&in); err != nil {
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Code:    fiber.StatusBadRequest,
			Message: "invalid task payload",
		}, err)
	}
	if strings.TrimSpace(in.Title) == "" {
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Code:    fiber.StatusBadRequest,
			Message: "title is required",
		})
	}

	task, err := h.uc.CreateTask(c.UserContext(), in)
	if err != nil {
		if orchestrator.IsRetryable(err) {
			// The task row exists; only the matching round timed out.
			return util.ErrorResponse(c, util.ErrorResponseFormat{
				Code:    fiber.StatusGatewayTimeout,
				Message: "candidate ranking timed out, retry later",
			}, err)
		}
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Message: "failed to create task",
		}, err)
	}

	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Code:    fiber.StatusCreated,
		Message: "Success create task",
		Data:    toTaskDTO(task),
	})
}

func (h *TaskHandler) GetTask(c *fiber.Ctx) error {
	task, err := h.uc.GetTask(c.Params("id"))
	if err != nil {
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Code:    fiber.StatusNotFound,
			Message: "task not found",
		}, nil)
	}
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Message: "Success get task",
		Data:    toTaskDTO(task),
	})
}

func (h *TaskHandler) ListTasks(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	pageSize := c.QueryInt("page_size", 20)
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	tasks, total, err := h.uc.ListTasks(page, pageSize)
	if err != nil {
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Message: "failed to list tasks",
		}, err)
	}

	data := make([]dto.TaskDTO, 0, len(tasks))
	for i := range tasks {
		data = append(data, toTaskDTO(&tasks[i]))
	}

	totalPages := (total + int64(pageSize) - 1) / int64(pageSize)
	from := (page-1)*pageSize + 1
	if len(data) == 0 {
		from = 0
	}
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Message: "Success list tasks",
		Data:    data,
		Pagination: &response.Pagination{
			Page:       page,
			PageSize:   pageSize,
			TotalPages: totalPages,
			TotalItems: total,
			HasMore:    int64(page) < totalPages,
			From:       from,
			To:         from + len(data) - 1,
		},
	})
}

// ReviewSubmission triggers an LLM review round for a submitted task. CI-backed
// tasks normally finish through the webhook instead.
func (h *TaskHandler) ReviewSubmission(c *fiber.Ctx) error {
	res, err := h.uc.ReviewSubmission(c.UserContext(), c.Params("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.ErrorResponse(c, util.ErrorResponseFormat{
				Code:    fiber.StatusNotFound,
				Message: "task not found",
			}, nil)
		}
		if orchestrator.IsRetryable(err) {
			return util.ErrorResponse(c, util.ErrorResponseFormat{
				Code:    fiber.StatusGatewayTimeout,
				Message: "evaluation timed out, the review can be retried",
			}, err)
		}
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Message: "failed to review submission",
		}, err)
	}
	return resultResponse(c, res, "Success review submission")
}

func (h *TaskHandler) CreateCandidate(c *fiber.Ctx) error {
	var candidate model.Candidate
	if err := c.BodyParser(&candidate); err != nil {
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Code:    fiber.StatusBadRequest,
			Message: "invalid candidate payload",
		}, err)
	}
	if candidate.UserID == "" {
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Code:    fiber.StatusBadRequest,
			Message: "user_id is required",
		})
	}

	if err := h.uc.CreateCandidate(c.UserContext(), &candidate); err != nil {
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Message: "failed to create candidate",
		}, err)
	}
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Code:    fiber.StatusCreated,
		Message: "Success create candidate",
		Data:    fiber.Map{"user_id": candidate.UserID},
	})
}

// resultResponse maps a core result onto the response envelope: duplicates
// are acknowledged, rejections come back as a conflict with the reason.
func resultResponse(c *fiber.Ctx, res *orchestrator.Result, okMessage string) error {
	switch res.Outcome {
	case orchestrator.OutcomeDuplicate:
		return util.SuccessResponse(c, util.SuccessResponseFormat{
			Message: "Duplicate event ignored",
		})
	case orchestrator.OutcomeRejected:
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Code:    fiber.StatusConflict,
			Message: res.Reason,
		})
	}
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Message: okMessage,
		Data:    toTaskDTO(res.Task),
	})
}

func toTaskDTO(t *model.Task) dto.TaskDTO {
	return dto.TaskDTO{
		ID:                 t.ID,
		Title:              t.Title,
		Description:        t.Description,
		AcceptanceCriteria: t.AcceptanceCriteria,
		SkillTags:          t.SkillTags,
		Deadline:           t.Deadline,
		AssigneeID:         t.AssigneeID,
		Status:             string(t.Status),
		RevisionCount:      t.RevisionCount,
		FailedReasons:      t.FailedReasons,
		NeedsCoordinator:   t.NeedsCoordinator,
		SubmissionURL:      t.SubmissionURL,
		ChatID:             t.ChatID,
		CreatedAt:          t.CreatedAt,
		AssignedAt:         t.AssignedAt,
		DoneAt:             t.DoneAt,
		UpdatedAt:          t.UpdatedAt,
	}
}
