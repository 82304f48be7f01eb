package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/scriptwell/scriptwell-backend/internal/data/repos"
	"github.com/scriptwell/scriptwell-backend/internal/modules/analysis"
	"github.com/scriptwell/scriptwell-backend/internal/modules/script"
	"github.com/scriptwell/scriptwell-backend/internal/platform/dbctx"
	"github.com/scriptwell/scriptwell-backend/internal/platform/errkind"
	"github.com/scriptwell/scriptwell-backend/internal/platform/logger"
)

type AnalysisHandler struct {
	log      *logger.Logger
	analysis *analysis.Usecases
	scripts  *script.Usecases
	jobRuns  repos.JobRunRepo
}

func NewAnalysisHandler(log *logger.Logger, an *analysis.Usecases, sc *script.Usecases, jobRuns repos.JobRunRepo) *AnalysisHandler {
	return &AnalysisHandler{
		log:      log.With("Handler", "AnalysisHandler"),
		analysis: an,
		scripts:  sc,
		jobRuns:  jobRuns,
	}
}

type analyzeRequest struct {
	Depth string `json:"depth,omitempty"`
}

// Analyze enqueues a whole-script analysis pass and returns the job id.
// A duplicate request while the job is still pending reports accepted=false.
func (h *AnalysisHandler) Analyze(c *gin.Context) {
	scriptID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondDomainError(c, errkind.Validation("bad script id"))
		return
	}
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		RespondDomainError(c, errkind.Validation("bad request body: %v", err))
		return
	}
	jobID, accepted, err := h.analysis.AnalyzeScript(c.Request.Context(), scriptID, req.Depth)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"job_id": jobID, "accepted": accepted})
}

// SceneChanged runs the synchronous staleness bookkeeping for an edited
// scene and enqueues whatever refreshes it warranted.
func (h *AnalysisHandler) SceneChanged(c *gin.Context) {
	sceneID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondDomainError(c, errkind.Validation("bad scene id"))
		return
	}
	if err := h.scripts.OnSceneChanged(c.Request.Context(), sceneID); err != nil {
		RespondDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DeadJobs lists dead-lettered job ledger rows for inspection.
func (h *AnalysisHandler) DeadJobs(c *gin.Context) {
	rows, err := h.jobRuns.ListDead(dbctx.Context{Ctx: c.Request.Context()}, 100)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	RespondOK(c, gin.H{"jobs": rows})
}
