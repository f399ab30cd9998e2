package handler

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"gorm.io/gorm"

	"taskbot/internal/config"
	"taskbot/internal/middleware"
	"taskbot/internal/orchestrator"
	"taskbot/internal/service"
	"taskbot/internal/usecase"
	"taskbot/internal/util"
)

// WebhookHandler receives the two inbound event sources: GitHub CI deliveries
// and chat platform callbacks (card actions and sub-channel messages).
type WebhookHandler struct {
	uc          *usecase.OrchestrationUsecase
	ci          service.CIServiceInterface
	verifyToken string
}

func NewWebhookHandler(uc *usecase.OrchestrationUsecase, ci service.CIServiceInterface) *WebhookHandler {
	return &WebhookHandler{
		uc:          uc,
		ci:          ci,
		verifyToken: config.LoadChatConfig().VerifyToken,
	}
}

func (h *WebhookHandler) RegisterRoutes(app *fiber.App) {
	app.Post("/webhook/github", middleware.RateLimiter(100, time.Minute), h.HandleGithub)
	app.Post("/webhook/chat", middleware.RateLimiter(100, time.Minute), h.HandleChatEvent)
}

// HandleGithub ingests a CI delivery. The delivery GUID doubles as the event
// ID, so GitHub's own redelivery mechanism lands in the deduplicator.
func (h *WebhookHandler) HandleGithub(c *fiber.Ctx) error {
	body := c.Body()

	signature := c.Get("X-Hub-Signature-256")
	if signature == "" {
		signature = c.Get("X-Hub-Signature")
	}
	if !h.ci.VerifySignature(body, signature) {
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Code:    fiber.StatusUnauthorized,
			Message: "invalid webhook signature",
		})
	}

	status, err := h.ci.ParseStatus(body)
	if err != nil {
		// Not every delivery is a CI signal (pushes, stars, pings).
		return util.SuccessResponse(c, util.SuccessResponseFormat{
			Message: "Event ignored",
		})
	}
	commit := h.ci.ExtractCommit(body)
	if commit.SHA == "" {
		return util.SuccessResponse(c, util.SuccessResponseFormat{
			Message: "Event carries no commit",
		})
	}

	eventID := c.Get("X-GitHub-Delivery")
	if eventID == "" {
		eventID = uuid.NewString()
	}

	res, err := h.uc.HandleCIStatus(c.UserContext(), "gh:"+eventID, commit.SHA, status)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// CI ran for a commit no tracked task submitted.
			return util.SuccessResponse(c, util.SuccessResponseFormat{
				Message: "No task for this commit",
			})
		}
		if orchestrator.IsRetryable(err) {
			return util.ErrorResponse(c, util.ErrorResponseFormat{
				Code:    fiber.StatusServiceUnavailable,
				Message: "evaluation timed out, redeliver the webhook",
			}, err)
		}
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Message: "failed to process CI status",
		}, err)
	}
	return resultResponse(c, res, "Success process CI status")
}

// HandleChatEvent ingests chat platform callbacks: the URL verification
// challenge, candidate card button presses, and sub-channel messages.
func (h *WebhookHandler) HandleChatEvent(c *fiber.Ctx) error {
	body := string(c.Body())

	if gjson.Get(body, "type").String() == "url_verification" {
		if h.verifyToken != "" && gjson.Get(body, "token").String() != h.verifyToken {
			return util.ErrorResponse(c, util.ErrorResponseFormat{
				Code:    fiber.StatusUnauthorized,
				Message: "invalid verification token",
			})
		}
		return c.JSON(fiber.Map{"challenge": gjson.Get(body, "challenge").String()})
	}

	if h.verifyToken != "" {
		token := gjson.Get(body, "header.token").String()
		if token == "" {
			token = gjson.Get(body, "token").String()
		}
		if token != h.verifyToken {
			return util.ErrorResponse(c, util.ErrorResponseFormat{
				Code:    fiber.StatusUnauthorized,
				Message: "invalid event token",
			})
		}
	}

	if action := gjson.Get(body, "action.value"); action.Exists() {
		return h.handleCardAction(c, body, action)
	}
	if gjson.Get(body, "header.event_type").String() == "im.message.receive_v1" {
		return h.handleMessage(c, body)
	}
	return util.SuccessResponse(c, util.SuccessResponseFormat{
		Message: "Event ignored",
	})
}

func (h *WebhookHandler) handleCardAction(c *fiber.Ctx, body string, action gjson.Result) error {
	if action.Get("action").String() != "select_candidate" {
		return util.SuccessResponse(c, util.SuccessResponseFormat{
			Message: "Action ignored",
		})
	}
	taskID := action.Get("task_id").String()
	userID := action.Get("user_id").String()
	if taskID == "" || userID == "" {
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Code:    fiber.StatusBadRequest,
			Message: "card action is missing task_id or user_id",
		})
	}

	res, err := h.uc.SelectCandidate(c.UserContext(), chatEventID(body), taskID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.ErrorResponse(c, util.ErrorResponseFormat{
				Code:    fiber.StatusNotFound,
				Message: "task not found",
			}, nil)
		}
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Message: "failed to select candidate",
		}, err)
	}
	return resultResponse(c, res, "Success select candidate")
}

// handleMessage watches task sub-channels for "/submit <url> [commit_sha]".
func (h *WebhookHandler) handleMessage(c *fiber.Ctx, body string) error {
	chatID := gjson.Get(body, "event.message.chat_id").String()
	text := gjson.Get(body, "event.message.content").String()
	if inner := gjson.Get(text, "text"); inner.Exists() {
		text = inner.String()
	}

	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) < 2 || fields[0] != "/submit" {
		return util.SuccessResponse(c, util.SuccessResponseFormat{
			Message: "Message ignored",
		})
	}
	url := fields[1]
	sha := ""
	if len(fields) > 2 {
		sha = fields[2]
	}

	res, err := h.uc.ReceiveSubmission(c.UserContext(), chatEventID(body), chatID, url, sha)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.SuccessResponse(c, util.SuccessResponseFormat{
				Message: "No task for this chat",
			})
		}
		return util.ErrorResponse(c, util.ErrorResponseFormat{
			Message: "failed to record submission",
		}, err)
	}
	return resultResponse(c, res, "Success record submission")
}

func chatEventID(body string) string {
	if id := gjson.Get(body, "header.event_id").String(); id != "" {
		return "chat:" + id
	}
	if id := gjson.Get(body, "event_id").String(); id != "" {
		return "chat:" + id
	}
	return uuid.NewString()
}
