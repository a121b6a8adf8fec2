package handlers

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/unionhall/triage-service/internal/api/dto"
	"github.com/unionhall/triage-service/internal/auth"
	"github.com/unionhall/triage-service/internal/domain"
	"github.com/unionhall/triage-service/internal/service"
	apperrors "github.com/unionhall/triage-service/pkg/util/errorutil"
)

// TasksHandler manages proponent review-task endpoints.
type TasksHandler struct {
	proponents *service.ProponentService
	triage     *service.TriageService
}

// NewTasksHandler constructs handler.
func NewTasksHandler(proponents *service.ProponentService, triage *service.TriageService) *TasksHandler {
	return &TasksHandler{proponents: proponents, triage: triage}
}

// Create POST /tasks. The drafted response is seeded from the ticket's
// current suggestion.
func (h *TasksHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewInvalidInput("invalid payload", nil)
	}
	if req.TicketID == "" {
		return apperrors.NewInvalidInput("ticket_id is required", nil)
	}

	ticket, err := h.triage.GetTicket(c.UserContext(), req.TicketID)
	if err != nil {
		return err
	}
	if ticket.Suggestion == nil {
		return apperrors.NewInvalidInput("ticket has no drafted response to review",
			map[string]any{"ticket_id": ticket.ID})
	}

	due := time.Now().Add(72 * time.Hour)
	if req.DueDate != nil {
		due = *req.DueDate
	}
	task, err := h.proponents.CreateTask(c.UserContext(), ticket.ID, req.Proponent, ticket.Suggestion.Explanation, due)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": taskResponse(task)})
}

// Get GET /tasks/:id.
func (h *TasksHandler) Get(c *fiber.Ctx) error {
	task, err := h.proponents.GetTask(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": taskResponse(task)})
}

// GetForTicket GET /tickets/:id/task.
func (h *TasksHandler) GetForTicket(c *fiber.Ctx) error {
	task, err := h.proponents.GetTaskForTicket(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": taskResponse(task)})
}

// StartEditing POST /tasks/:id/edit.
func (h *TasksHandler) StartEditing(c *fiber.Ctx) error {
	task, err := h.proponents.StartEditing(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": taskResponse(task)})
}

// Resubmit POST /tasks/:id/resubmit.
func (h *TasksHandler) Resubmit(c *fiber.Ctx) error {
	var req dto.ResubmitRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewInvalidInput("invalid payload", nil)
	}
	task, err := h.proponents.Resubmit(c.UserContext(), c.Params("id"), req.ResponseText)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": taskResponse(task)})
}

// Approve POST /tasks/:id/approve.
func (h *TasksHandler) Approve(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	task, err := h.proponents.Approve(c.UserContext(), c.Params("id"), principal.Name)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": taskResponse(task)})
}

// Reject POST /tasks/:id/reject.
func (h *TasksHandler) Reject(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.RejectRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewInvalidInput("invalid payload", nil)
	}
	task, err := h.proponents.Reject(c.UserContext(), c.Params("id"), principal.Name, req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": taskResponse(task)})
}

// Diff GET /tasks/:id/diff.
func (h *TasksHandler) Diff(c *fiber.Ctx) error {
	taskID := c.Params("id")
	segments, err := h.proponents.Diff(c.UserContext(), taskID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.DiffResponse{TaskID: taskID, Segments: segments}})
}

func taskResponse(task *domain.ProponentTask) dto.TaskResponse {
	return dto.TaskResponse{
		ID:           task.ID,
		TicketID:     task.TicketID,
		Proponent:    task.Proponent,
		ResponseText: task.ResponseText,
		Status:       task.Status,
		DueDate:      task.DueDate,
		CreatedAt:    task.CreatedAt,
		UpdatedAt:    task.UpdatedAt,
	}
}
