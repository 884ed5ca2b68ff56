package api

import (
	"net/http"

	"tornado_miniapp/internal/model"
	"tornado_miniapp/internal/money"
	"tornado_miniapp/internal/repository"
	"tornado_miniapp/internal/service"
	"tornado_miniapp/pkg/auth"
	"tornado_miniapp/pkg/logger"
	"go.uber.org/zap"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type taskRoutes struct {
	ts service.TaskServiceI
}

func NewTaskRoutes(handler *gin.RouterGroup, ts service.TaskServiceI, a *auth.TelegramAuth) {
	r := &taskRoutes{ts: ts}
	h := handler.Group("/tasks")
	h.Use(a.TelegramAuthMiddleware())
	{
		h.GET("/", r.GetTasks)
		h.POST("/", r.CreateTask)
		h.POST("/:task_id/start", r.StartTask)
		h.POST("/:task_id/claim", r.ClaimTask)
	}
}

func (r *taskRoutes) GetTasks(c *gin.Context) {
	log := logger.Logger()

	user, ok := currentUser(c)
	if !ok {
		return
	}

	var category *model.TaskCategory
	if raw := c.Query("category"); raw != "" {
		parsed, err := model.ParseTaskCategory(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown category"})
			return
		}
		category = &parsed
	}

	tasks, completed, err := r.ts.GetTasks(c.Request.Context(), user.ID, category)
	if err != nil {
		log.Error("failed to get tasks", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get tasks"})
		return
	}

	done := make(map[uuid.UUID]bool, len(completed))
	for _, id := range completed {
		done[id] = true
	}

	out := make([]gin.H, len(tasks))
	for i, task := range tasks {
		out[i] = gin.H{
			"id":                  task.ID,
			"name":                task.Name,
			"url":                 task.URL,
			"kind":                task.Kind,
			"category":            task.Category,
			"reward":              task.Reward.String(),
			"current_completions": task.CurrentCompletions,
			"max_completions":     task.MaxCompletions,
			"completed":           done[task.ID],
		}
	}

	c.JSON(http.StatusOK, out)
}

// CreateTaskRequest takes reward_ton as a number or a numeric string;
// mini-app clients send both.
type CreateTaskRequest struct {
	Name           string      `json:"name" binding:"required"`
	URL            string      `json:"url" binding:"required"`
	Kind           string      `json:"kind" binding:"required"`
	Category       string      `json:"category" binding:"required"`
	RewardTON      interface{} `json:"reward_ton" binding:"required"`
	MaxCompletions int         `json:"max_completions" binding:"required"`
	CheckEnabled   bool        `json:"check_enabled"`
}

func (r *taskRoutes) CreateTask(c *gin.Context) {
	log := logger.Logger()

	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error("failed to bind request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	kind, err := model.ParseTaskKind(req.Kind)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	category, err := model.ParseTaskCategory(req.Category)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	reward := money.FromTON(money.SafeNumber(req.RewardTON))
	if reward <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid reward"})
		return
	}

	user, ok := currentUser(c)
	if !ok {
		return
	}
	creator := user.ID

	task := &model.Task{
		Name:           req.Name,
		URL:            req.URL,
		Kind:           kind,
		Category:       category,
		Reward:         reward,
		MaxCompletions: req.MaxCompletions,
		CheckEnabled:   req.CheckEnabled,
		CreatedBy:      &creator,
	}

	if err := r.ts.CreateTask(c.Request.Context(), task); err != nil {
		switch {
		case errors.Is(err, repository.ErrInsufficientBalance),
			errors.Is(err, service.ErrUserBanned),
			errors.Is(err, service.ErrUserNotFound):
			respondClaimError(c, err)
		default:
			log.Error("failed to create task", zap.Error(err))
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": task.ID})
}

func (r *taskRoutes) StartTask(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	taskID, err := uuid.Parse(c.Param("task_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task_id"})
		return
	}

	task, err := r.ts.StartTask(c.Request.Context(), user.ID, taskID)
	if err != nil {
		respondClaimError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":  task.ID,
		"url": task.URL,
	})
}

func (r *taskRoutes) ClaimTask(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	taskID, err := uuid.Parse(c.Param("task_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task_id"})
		return
	}

	reward, err := r.ts.ClaimTask(c.Request.Context(), user.ID, taskID)
	if err != nil {
		respondClaimError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "claimed",
		"reward": reward.String(),
	})
}
