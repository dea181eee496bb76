package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"applypilot/models"
	"applypilot/utils"
)

// HistoryController serves the durable per-user records written by
// workers: application outcomes, cached listings, and activity feeds.
type HistoryController struct {
	records    *models.ApplicationRecordModel
	discovered *models.DiscoveredJobModel
	activities *models.ActivityLogModel
}

func NewHistoryController(records *models.ApplicationRecordModel, discovered *models.DiscoveredJobModel, activities *models.ActivityLogModel) *HistoryController {
	return &HistoryController{
		records:    records,
		discovered: discovered,
		activities: activities,
	}
}

// GetApplications handles GET /api/users/:userID/applications
func (ctrl *HistoryController) GetApplications(c *gin.Context) {
	userID, err := strconv.Atoi(c.Param("userID"))
	if err != nil {
		utils.BadRequestError(c, "Invalid user ID", err)
		return
	}
	limit, offset := pagination(c)

	records, err := ctrl.records.GetByUserID(userID, limit, offset)
	if err != nil {
		utils.InternalServerError(c, "Failed to fetch applications", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Applications retrieved", records)
}

// GetDiscoveredJobs handles GET /api/users/:userID/discovered-jobs
func (ctrl *HistoryController) GetDiscoveredJobs(c *gin.Context) {
	userID, err := strconv.Atoi(c.Param("userID"))
	if err != nil {
		utils.BadRequestError(c, "Invalid user ID", err)
		return
	}
	limit, offset := pagination(c)

	jobs, err := ctrl.discovered.GetByUserID(userID, limit, offset)
	if err != nil {
		utils.InternalServerError(c, "Failed to fetch discovered jobs", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Discovered jobs retrieved", jobs)
}

// GetSessionActivity handles GET /api/users/:userID/sessions/:sessionID/activity
func (ctrl *HistoryController) GetSessionActivity(c *gin.Context) {
	if _, err := strconv.Atoi(c.Param("userID")); err != nil {
		utils.BadRequestError(c, "Invalid user ID", err)
		return
	}
	sessionID := c.Param("sessionID")
	if sessionID == "" {
		utils.BadRequestError(c, "Session ID required", nil)
		return
	}
	limit, _ := pagination(c)

	logs, err := ctrl.activities.GetRecent(sessionID, limit)
	if err != nil {
		utils.InternalServerError(c, "Failed to fetch activity", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Activity retrieved", logs)
}

func pagination(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
