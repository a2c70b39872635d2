package api

import (
	"errors"
	"strconv"
	"time"

	"cashflow/database"
	"cashflow/middleware"
	"cashflow/models"
	"cashflow/service"

	"github.com/gin-gonic/gin"
)

// EntryHandler 条目系列处理器
type EntryHandler struct{}

// NewEntryHandler 创建条目系列处理器
func NewEntryHandler() *EntryHandler {
	return &EntryHandler{}
}

func (h *EntryHandler) engine() *service.MutationEngine {
	return service.NewMutationEngine(service.NewSeriesStore(database.DB))
}

func (h *EntryHandler) projector() *service.Projector {
	return service.NewProjector(service.NewSeriesStore(database.DB))
}

// CreateEntryRequest 创建条目请求
type CreateEntryRequest struct {
	EntryType   string  `json:"entry_type" binding:"required,oneof=income expense" example:"expense"`
	Title       string  `json:"title" binding:"required,max=100" example:"房租"`
	Description string  `json:"description" example:"每月房租"`
	Amount      float64 `json:"amount" binding:"required,gt=0" example:"2500.00"`
	StartDate   string  `json:"start_date" binding:"required" example:"2024-01-01"`
	Frequency   string  `json:"frequency" binding:"omitempty,oneof=daily weekly monthly yearly" example:"monthly"`
	Interval    int     `json:"interval" example:"1"`
	EndDate     string  `json:"end_date" example:"2024-12-31"`
}

// UpdateEntryRequest 按作用域编辑条目请求
// scope=occurrence 只改 date 当天；scope=future 从 date 起拆分；scope=entire 改整个系列。
type UpdateEntryRequest struct {
	Date        string   `json:"date" binding:"required" example:"2024-03-01"`
	Scope       string   `json:"scope" binding:"required" example:"occurrence"`
	Title       *string  `json:"title" example:"房租"`
	Description *string  `json:"description" example:"涨租后的房租"`
	Amount      *float64 `json:"amount" example:"2800.00"`
	EntryType   *string  `json:"entry_type" example:"expense"`
}

// EntryListRequest 条目列表请求
type EntryListRequest struct {
	Page      int    `form:"page" example:"1"`
	PageSize  int    `form:"page_size" example:"10"`
	EntryType string `form:"entry_type" example:"expense"`
	StartTime string `form:"start_time" example:"2024-01-01"`
	EndTime   string `form:"end_time" example:"2024-12-31"`
}

// Create 创建条目系列
// @Summary 创建条目系列
// @Description 创建一条收支条目。不传 frequency 为单次条目，只在 start_date 当天发生一次；传 frequency 则按 frequency/interval 周期性发生，end_date 为排期的包含式上界（可空，表示无限期）。
// @Tags 条目
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateEntryRequest true "条目信息"
// @Success 200 {object} Response{data=models.EntrySeries} "创建成功"
// @Failure 400 {object} Response "请求参数错误"
// @Failure 401 {object} Response "未授权"
// @Router /api/v1/entries [post]
func (h *EntryHandler) Create(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	var req CreateEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "参数错误"))
		return
	}

	startDate, err := parseDate(req.StartDate)
	if err != nil {
		BadRequest(c, "start_date 格式错误，应为: 2006-01-02")
		return
	}

	series := models.EntrySeries{
		UserID:      userID,
		EntryType:   req.EntryType,
		Title:       req.Title,
		Description: req.Description,
		Amount:      req.Amount,
		StartDate:   startDate,
		Interval:    req.Interval,
	}
	if req.Frequency != "" {
		series.Frequency = &req.Frequency
	}
	if req.EndDate != "" {
		endDate, err := parseDate(req.EndDate)
		if err != nil {
			BadRequest(c, "end_date 格式错误，应为: 2006-01-02")
			return
		}
		series.EndDate = &endDate
	}

	if err := h.engine().CreateEntry(&series); err != nil {
		handleServiceError(c, err, "创建条目失败")
		return
	}

	SuccessWithMessage(c, "创建成功", series)
}

// List 获取条目系列列表
// @Summary 获取条目系列列表
// @Description 获取当前用户的条目系列列表，支持分页、类型筛选和日期范围筛选（返回排期与范围有交集的系列）
// @Tags 条目
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(10)
// @Param entry_type query string false "类型筛选 income/expense"
// @Param start_time query string false "开始日期 (2024-01-01)"
// @Param end_time query string false "结束日期 (2024-12-31)"
// @Success 200 {object} Response{data=PageResponse{list=[]models.EntrySeries}} "获取成功"
// @Failure 401 {object} Response "未授权"
// @Router /api/v1/entries [get]
func (h *EntryHandler) List(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	var req EntryListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "参数错误"))
		return
	}

	// 默认分页参数
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.PageSize <= 0 {
		req.PageSize = 10
	}
	if req.PageSize > 100 {
		req.PageSize = 100
	}

	query := database.DB.Model(&models.EntrySeries{}).Where("user_id = ?", userID)

	// 类型筛选
	if req.EntryType != "" {
		query = query.Where("entry_type = ?", req.EntryType)
	}

	// 日期范围筛选：保留排期与 [start, end] 有交集的系列
	if req.EndTime != "" {
		if endTime, err := parseDate(req.EndTime); err == nil {
			query = query.Where("start_date <= ?", endTime)
		}
	}
	if req.StartTime != "" {
		if startTime, err := parseDate(req.StartTime); err == nil {
			query = query.Where("end_date IS NULL OR end_date >= ?", startTime)
		}
	}

	// 获取总数
	var total int64
	query.Count(&total)

	// 获取列表
	var list []models.EntrySeries
	offset := (req.Page - 1) * req.PageSize
	if err := query.Order("start_date DESC, id DESC").Offset(offset).Limit(req.PageSize).Find(&list).Error; err != nil {
		InternalError(c, SafeErrorMessage(err, "查询失败"))
		return
	}

	Success(c, PageResponse{
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		List:     list,
	})
}

// Get 获取条目系列详情
// @Summary 获取条目系列详情
// @Description 根据ID获取条目系列及其全部单次例外记录
// @Tags 条目
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "系列ID"
// @Success 200 {object} Response{data=service.SeriesDetail} "获取成功"
// @Failure 401 {object} Response "未授权"
// @Failure 404 {object} Response "记录不存在"
// @Router /api/v1/entries/{id} [get]
func (h *EntryHandler) Get(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		BadRequest(c, "无效的ID")
		return
	}

	detail, err := h.engine().FetchSeriesDetail(uint(id), userID)
	if err != nil {
		handleServiceError(c, err, "查询失败")
		return
	}

	Success(c, detail)
}

// Occurrences 获取发生记录视图
// @Summary 获取发生记录视图
// @Description 将当前用户的全部系列在指定日期范围内展开为具体发生记录（套用单次例外后），按日期升序返回。金额带符号：收入为正，支出为负。
// @Tags 条目
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param start_time query string true "开始日期 (2024-01-01)"
// @Param end_time query string true "结束日期 (2024-12-31)"
// @Success 200 {object} Response{data=[]service.Occurrence} "获取成功"
// @Failure 400 {object} Response "请求参数错误"
// @Failure 401 {object} Response "未授权"
// @Router /api/v1/entries/occurrences [get]
func (h *EntryHandler) Occurrences(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	from, to, ok := parseDateRange(c)
	if !ok {
		return
	}

	occurrences, err := h.projector().OccurrencesInWindow(userID, from, to)
	if err != nil {
		handleServiceError(c, err, "查询失败")
		return
	}

	Success(c, occurrences)
}

// Update 按作用域编辑条目
// @Summary 按作用域编辑条目
// @Description 编辑条目系列。scope=occurrence 只影响 date 当天（周期系列写单次例外，单次系列直接改系列）；scope=future 在 date 处把系列拆分为截断的原系列和携带新字段的新系列（date 等于系列起始日时退化为 entire）；scope=entire 直接更新整个系列的标题/描述/金额/类型，排期字段不变。
// @Tags 条目
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "系列ID"
// @Param request body UpdateEntryRequest true "编辑信息"
// @Success 200 {object} Response{data=service.EditResult} "编辑成功"
// @Failure 400 {object} Response "请求参数错误或作用域无效"
// @Failure 401 {object} Response "未授权"
// @Failure 404 {object} Response "记录不存在"
// @Router /api/v1/entries/{id} [put]
func (h *EntryHandler) Update(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		BadRequest(c, "无效的ID")
		return
	}

	var req UpdateEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "参数错误"))
		return
	}

	date, err := parseDate(req.Date)
	if err != nil {
		BadRequest(c, "date 格式错误，应为: 2006-01-02")
		return
	}

	fields := service.EditFields{
		Title:       req.Title,
		Description: req.Description,
		Amount:      req.Amount,
		EntryType:   req.EntryType,
	}

	result, err := h.engine().EditEntry(uint(id), userID, date, req.Scope, fields)
	if err != nil {
		handleServiceError(c, err, "编辑失败")
		return
	}

	SuccessWithMessage(c, "编辑成功", result)
}

// Delete 按作用域删除条目
// @Summary 按作用域删除条目
// @Description 删除条目系列。scope=occurrence 只删除 date 当天（周期系列写 deleted 例外，单次系列删除整个系列）；scope=future 把系列截断到 date 前一天并丢弃之后的例外（date 等于系列起始日时删除整个系列）；scope=entire 删除系列并级联删除全部例外。
// @Tags 条目
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "系列ID"
// @Param date query string false "目标日期 (2024-03-01)，scope=occurrence/future 时必填"
// @Param scope query string true "作用域 occurrence/future/entire"
// @Success 200 {object} Response{data=service.DeleteResult} "删除成功"
// @Failure 400 {object} Response "请求参数错误或作用域无效"
// @Failure 401 {object} Response "未授权"
// @Failure 404 {object} Response "记录不存在"
// @Router /api/v1/entries/{id} [delete]
func (h *EntryHandler) Delete(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		BadRequest(c, "无效的ID")
		return
	}

	scope := c.Query("scope")
	var date time.Time
	if dateStr := c.Query("date"); dateStr != "" {
		date, err = parseDate(dateStr)
		if err != nil {
			BadRequest(c, "date 格式错误，应为: 2006-01-02")
			return
		}
	} else if scope != service.ScopeEntire {
		BadRequest(c, "scope=occurrence/future 时 date 参数必填")
		return
	}

	result, err := h.engine().DeleteEntry(uint(id), userID, date, scope)
	if err != nil {
		handleServiceError(c, err, "删除失败")
		return
	}

	SuccessWithMessage(c, "删除成功", result)
}

// parseDate 解析 2006-01-02 格式日期
func parseDate(s string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", s, time.Local)
}

// parseDateRange 解析 start_time/end_time 查询参数，失败时已写入响应
func parseDateRange(c *gin.Context) (time.Time, time.Time, bool) {
	startStr := c.Query("start_time")
	endStr := c.Query("end_time")
	if startStr == "" || endStr == "" {
		BadRequest(c, "请提供开始日期和结束日期")
		return time.Time{}, time.Time{}, false
	}

	from, err := parseDate(startStr)
	if err != nil {
		BadRequest(c, "start_time 格式错误，应为: 2006-01-02")
		return time.Time{}, time.Time{}, false
	}
	to, err := parseDate(endStr)
	if err != nil {
		BadRequest(c, "end_time 格式错误，应为: 2006-01-02")
		return time.Time{}, time.Time{}, false
	}
	if to.Before(from) {
		BadRequest(c, "结束日期不能早于开始日期")
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}

// handleServiceError 把引擎错误映射为 HTTP 响应
func handleServiceError(c *gin.Context, err error, fallback string) {
	var (
		validationErr   *service.ValidationError
		notFoundErr     *service.NotFoundError
		scopeErr        *service.InvalidScopeError
		preconditionErr *service.PreconditionError
	)
	switch {
	case errors.As(err, &validationErr):
		BadRequest(c, validationErr.Error())
	case errors.As(err, &scopeErr):
		BadRequest(c, scopeErr.Error())
	case errors.As(err, &notFoundErr):
		NotFound(c, notFoundErr.Error())
	case errors.As(err, &preconditionErr):
		PreconditionFailed(c, preconditionErr.Error())
	default:
		InternalError(c, SafeErrorMessage(err, fallback))
	}
}
