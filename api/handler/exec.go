package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sshcollectorpro/clisession/internal/service"
	"github.com/sshcollectorpro/clisession/pkg/logger"
)

// ExecHandler 命令执行与历史查询
type ExecHandler struct {
	svc     *service.ExecService
	started time.Time
}

// NewExecHandler 创建处理器
func NewExecHandler(svc *service.ExecService) *ExecHandler {
	return &ExecHandler{svc: svc, started: time.Now()}
}

// BatchRequest 多设备批量执行请求
type BatchRequest struct {
	Requests []service.ExecRequest `json:"requests" binding:"required,min=1,dive"`
}

// Health 健康检查
func (h *ExecHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, SuccessResponse{
		Code:    "SUCCESS",
		Message: "服务正常",
		Data: gin.H{
			"uptime_seconds": int64(time.Since(h.started).Seconds()),
			"profiles":       len(h.svc.Profiles().Names()),
		},
	})
}

// Execute 在单台设备上执行一个命令批次
// @Router /api/v1/exec [post]
func (h *ExecHandler) Execute(c *gin.Context) {
	var req service.ExecRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "INVALID_PARAMS",
			Message: "请求参数无效: " + err.Error(),
		})
		return
	}
	resp, err := h.svc.Execute(c.Request.Context(), req)
	if err != nil {
		// 部分输出同样返回给调用方
		status, _ := errorResponse(err)
		c.JSON(status, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ExecuteBatch 多台设备并发执行，每台设备的结果独立
// @Router /api/v1/exec/batch [post]
func (h *ExecHandler) ExecuteBatch(c *gin.Context) {
	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "INVALID_PARAMS",
			Message: "请求参数无效: " + err.Error(),
		})
		return
	}
	results := h.svc.ExecuteBatch(c.Request.Context(), req.Requests)
	failed := 0
	for _, r := range results {
		if !r.Success {
			failed++
		}
	}
	logger.Infof("batch finished: %d devices, %d failed", len(results), failed)
	c.JSON(http.StatusOK, SuccessResponse{
		Code:    "SUCCESS",
		Message: "批量执行完成",
		Data:    gin.H{"total": len(results), "failed": failed, "results": results},
	})
}

// GetRun 查询执行记录
// @Router /api/v1/runs/{id} [get]
func (h *ExecHandler) GetRun(c *gin.Context) {
	run, err := h.svc.Run(c.Request.Context(), c.Param("id"))
	if service.IsNotFound(err) {
		c.JSON(http.StatusNotFound, ErrorResponse{Code: "NOT_FOUND", Message: err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Code: "INTERNAL", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, run)
}

// ListRuns 最近的执行记录，可按 hostname 过滤
// @Router /api/v1/runs [get]
func (h *ExecHandler) ListRuns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	runs, err := h.svc.Runs(c.Request.Context(), c.Query("hostname"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Code: "INTERNAL", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Code: "SUCCESS", Message: "ok", Data: runs})
}
