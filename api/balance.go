package api

import (
	"cashflow/database"
	"cashflow/middleware"
	"cashflow/service"

	"github.com/gin-gonic/gin"
)

// BalanceHandler 余额处理器
type BalanceHandler struct{}

// NewBalanceHandler 创建余额处理器
func NewBalanceHandler() *BalanceHandler {
	return &BalanceHandler{}
}

func (h *BalanceHandler) projector() *service.Projector {
	return service.NewProjector(service.NewSeriesStore(database.DB))
}

// UpsertStartingBalanceRequest 设置起始余额请求
type UpsertStartingBalanceRequest struct {
	EffectiveDate string  `json:"effective_date" binding:"required" example:"2024-01-01"`
	Amount        float64 `json:"amount" binding:"min=0" example:"1000.00"`
}

// UpsertStartingBalance 设置起始余额
// @Summary 设置起始余额
// @Description 设置或替换当前用户的起始余额。每个用户同一时间只有一条生效的起始余额，重复设置直接覆盖旧值。
// @Tags 余额
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body UpsertStartingBalanceRequest true "起始余额信息"
// @Success 200 {object} Response{data=models.StartingBalance} "设置成功"
// @Failure 400 {object} Response "请求参数错误"
// @Failure 401 {object} Response "未授权"
// @Router /api/v1/balance/starting [put]
func (h *BalanceHandler) UpsertStartingBalance(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	var req UpsertStartingBalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "参数错误"))
		return
	}

	effectiveDate, err := parseDate(req.EffectiveDate)
	if err != nil {
		BadRequest(c, "effective_date 格式错误，应为: 2006-01-02")
		return
	}

	balance, err := h.projector().UpsertStartingBalance(userID, effectiveDate, req.Amount)
	if err != nil {
		handleServiceError(c, err, "设置起始余额失败")
		return
	}

	SuccessWithMessage(c, "设置成功", balance)
}

// Project 余额预测
// @Summary 余额预测
// @Description 预测当前用户在目标日期（含当天）的账户余额：起始余额 + 生效日到目标日之间全部发生记录（套用单次例外）的带符号金额之和，结果按两位小数四舍六入五成双。目标日期最多预测未来 10 年。
// @Tags 余额
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param target_date query string true "目标日期 (2024-12-31)"
// @Success 200 {object} Response{data=service.ProjectionResult} "预测成功"
// @Failure 400 {object} Response "请求参数错误或超出预测窗口"
// @Failure 401 {object} Response "未授权"
// @Failure 412 {object} Response "尚未设置起始余额或目标日期早于生效日"
// @Router /api/v1/balance/projection [get]
func (h *BalanceHandler) Project(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	targetStr := c.Query("target_date")
	if targetStr == "" {
		BadRequest(c, "target_date 参数必填")
		return
	}
	targetDate, err := parseDate(targetStr)
	if err != nil {
		BadRequest(c, "target_date 格式错误，应为: 2006-01-02")
		return
	}

	result, err := h.projector().Project(userID, targetDate)
	if err != nil {
		handleServiceError(c, err, "预测失败")
		return
	}

	Success(c, result)
}
