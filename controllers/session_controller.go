package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"applypilot/services"
	"applypilot/utils"
)

// SessionController exposes start/stop/status over the control API.
type SessionController struct {
	supervisor *services.SessionSupervisor
}

func NewSessionController(supervisor *services.SessionSupervisor) *SessionController {
	return &SessionController{supervisor: supervisor}
}

// StartSession handles POST /api/sessions/:userID/start
func (ctrl *SessionController) StartSession(c *gin.Context) {
	userID, err := strconv.Atoi(c.Param("userID"))
	if err != nil {
		utils.BadRequestError(c, "Invalid user ID", err)
		return
	}

	var req services.StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestError(c, "Invalid request body", err)
		return
	}
	if len(req.Search.Positions) == 0 || len(req.Search.Locations) == 0 {
		utils.BadRequestError(c, "At least one position and one location are required", nil)
		return
	}

	snapshot, err := ctrl.supervisor.Start(userID, req)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrAlreadyRunning):
			utils.ConflictError(c, "A session is already running for this user", err)
		case errors.Is(err, services.ErrQuotaExceeded):
			utils.ErrorResponseWithCode(c, http.StatusTooManyRequests, "Daily application quota exhausted", err)
		case errors.Is(err, services.ErrCredentialsMissing):
			utils.ErrorResponseWithCode(c, http.StatusUnprocessableEntity, "No site credentials on file", err)
		default:
			utils.InternalServerError(c, "Failed to start session", err)
		}
		return
	}

	utils.SuccessResponse(c, http.StatusCreated, "Session started", snapshot)
}

// StopSession handles POST /api/sessions/:userID/stop
func (ctrl *SessionController) StopSession(c *gin.Context) {
	userID, err := strconv.Atoi(c.Param("userID"))
	if err != nil {
		utils.BadRequestError(c, "Invalid user ID", err)
		return
	}

	if err := ctrl.supervisor.Stop(userID, "stopped by user"); err != nil {
		if errors.Is(err, services.ErrNotRunning) {
			utils.NotFoundError(c, "No running session for this user")
			return
		}
		utils.InternalServerError(c, "Failed to stop session", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Session stopping", nil)
}

// SessionStatus handles GET /api/sessions/:userID/status
func (ctrl *SessionController) SessionStatus(c *gin.Context) {
	userID, err := strconv.Atoi(c.Param("userID"))
	if err != nil {
		utils.BadRequestError(c, "Invalid user ID", err)
		return
	}

	snapshot, live := ctrl.supervisor.Status(userID)
	if !live {
		utils.SuccessResponse(c, http.StatusOK, "No active session", gin.H{"status": "idle"})
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Session status", snapshot)
}
