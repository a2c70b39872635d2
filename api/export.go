package api

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/http"
	"strings"

	"cashflow/config"
	"cashflow/database"
	"cashflow/middleware"
	"cashflow/models"
	"cashflow/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
)

// ExportHandler 导出处理器
// 导出的是发生记录视图：系列展开并套用单次例外后的派生结果。
type ExportHandler struct {
	emailService *service.EmailService
}

// NewExportHandler 创建导出处理器
func NewExportHandler(cfg *config.Config) *ExportHandler {
	return &ExportHandler{
		emailService: service.NewEmailService(&cfg.Email),
	}
}

func (h *ExportHandler) projector() *service.Projector {
	return service.NewProjector(service.NewSeriesStore(database.DB))
}

// ExportCSV 导出发生记录为 CSV
// @Summary 导出发生记录为 CSV
// @Description 将日期范围内的全部发生记录（套用单次例外后）导出为 CSV 文件。金额带符号：收入为正，支出为负。
// @Tags 导出
// @Accept json
// @Produce text/csv
// @Security BearerAuth
// @Param start_time query string true "开始日期 (2024-01-01)"
// @Param end_time query string true "结束日期 (2024-12-31)"
// @Success 200 {file} file "CSV 文件"
// @Failure 400 {object} Response "请求参数错误"
// @Failure 401 {object} Response "未授权"
// @Router /api/v1/export/csv [get]
func (h *ExportHandler) ExportCSV(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	from, to, ok := parseDateRange(c)
	if !ok {
		return
	}

	occurrences, err := h.projector().OccurrencesInWindow(userID, from, to)
	if err != nil {
		handleServiceError(c, err, "查询数据失败")
		return
	}

	buf, err := buildOccurrenceCSV(occurrences)
	if err != nil {
		InternalError(c, "生成 CSV 失败")
		return
	}

	// 设置响应头
	filename := fmt.Sprintf("occurrences_%s_%s.csv", c.Query("start_time"), c.Query("end_time"))
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	c.Header("Content-Length", fmt.Sprintf("%d", buf.Len()))

	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// ExportExcel 导出发生记录为 Excel
// @Summary 导出发生记录为 Excel
// @Description 将日期范围内的全部发生记录（套用单次例外后）导出为 xlsx 文件
// @Tags 导出
// @Accept json
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Param start_time query string true "开始日期 (2024-01-01)"
// @Param end_time query string true "结束日期 (2024-12-31)"
// @Success 200 {file} file "Excel 文件"
// @Failure 400 {object} Response "请求参数错误"
// @Failure 401 {object} Response "未授权"
// @Router /api/v1/export/excel [get]
func (h *ExportHandler) ExportExcel(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	from, to, ok := parseDateRange(c)
	if !ok {
		return
	}

	occurrences, err := h.projector().OccurrencesInWindow(userID, from, to)
	if err != nil {
		handleServiceError(c, err, "查询数据失败")
		return
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "发生记录"
	index, err := f.NewSheet(sheet)
	if err != nil {
		InternalError(c, "生成 Excel 失败")
		return
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	headers := []string{"系列ID", "日期", "类型", "标题", "描述", "金额"}
	for i, title := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, title)
	}

	for row, occ := range occurrences {
		values := []interface{}{
			occ.SeriesID,
			occ.Date.Format("2006-01-02"),
			entryTypeLabel(occ.EntryType),
			occ.Title,
			occ.Description,
			occ.Amount,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(sheet, cell, v)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		InternalError(c, "生成 Excel 失败")
		return
	}

	filename := fmt.Sprintf("occurrences_%s_%s.xlsx", c.Query("start_time"), c.Query("end_time"))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	c.Header("Content-Length", fmt.Sprintf("%d", buf.Len()))

	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

// EmailReportRequest 报表邮件请求
type EmailReportRequest struct {
	StartTime string `json:"start_time" binding:"required" example:"2024-01-01"`
	EndTime   string `json:"end_time" binding:"required" example:"2024-12-31"`
}

// EmailReport 发送发生记录报表邮件
// @Summary 发送发生记录报表邮件
// @Description 将日期范围内的发生记录生成 CSV 报表，以附件形式发送到当前用户的注册邮箱。需要服务端已启用邮件配置。
// @Tags 导出
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body EmailReportRequest true "报表范围"
// @Success 200 {object} Response "发送成功"
// @Failure 400 {object} Response "请求参数错误或未绑定邮箱"
// @Failure 401 {object} Response "未授权"
// @Failure 500 {object} Response "邮件发送失败"
// @Router /api/v1/export/email [post]
func (h *ExportHandler) EmailReport(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	var req EmailReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, SafeErrorMessage(err, "参数错误"))
		return
	}

	from, err := parseDate(req.StartTime)
	if err != nil {
		BadRequest(c, "start_time 格式错误，应为: 2006-01-02")
		return
	}
	to, err := parseDate(req.EndTime)
	if err != nil {
		BadRequest(c, "end_time 格式错误，应为: 2006-01-02")
		return
	}
	if to.Before(from) {
		BadRequest(c, "结束日期不能早于开始日期")
		return
	}

	var user models.User
	if err := database.DB.First(&user, userID).Error; err != nil {
		NotFound(c, "用户不存在")
		return
	}
	if strings.TrimSpace(user.Email) == "" {
		BadRequest(c, "当前账号未绑定邮箱，无法发送报表")
		return
	}

	occurrences, err := h.projector().OccurrencesInWindow(userID, from, to)
	if err != nil {
		handleServiceError(c, err, "查询数据失败")
		return
	}

	buf, err := buildOccurrenceCSV(occurrences)
	if err != nil {
		InternalError(c, "生成 CSV 失败")
		return
	}

	// 附件名带随机后缀，避免邮件客户端把多次报表识别为同一文件
	filename := fmt.Sprintf("occurrences_%s_%s_%s.csv",
		req.StartTime, req.EndTime, uuid.NewString()[:8])
	if err := h.emailService.SendOccurrenceReport(
		user.Email, user.Username, req.StartTime, req.EndTime, filename, buf.Bytes()); err != nil {
		InternalError(c, SafeErrorMessage(err, "邮件发送失败"))
		return
	}

	SuccessWithMessage(c, "报表已发送至 "+user.Email, nil)
}

// buildOccurrenceCSV 生成发生记录 CSV，带 BOM 以支持 Excel 中文显示
func buildOccurrenceCSV(occurrences []service.Occurrence) (*bytes.Buffer, error) {
	buf := new(bytes.Buffer)
	buf.WriteString("\xEF\xBB\xBF")

	writer := csv.NewWriter(buf)
	if err := writer.Write([]string{"系列ID", "日期", "类型", "标题", "描述", "金额"}); err != nil {
		return nil, err
	}
	for _, occ := range occurrences {
		row := []string{
			fmt.Sprintf("%d", occ.SeriesID),
			occ.Date.Format("2006-01-02"),
			entryTypeLabel(occ.EntryType),
			occ.Title,
			occ.Description,
			fmt.Sprintf("%.2f", occ.Amount),
		}
		if err := writer.Write(row); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf, nil
}

// entryTypeLabel 类型的中文展示
func entryTypeLabel(entryType string) string {
	if entryType == models.EntryTypeIncome {
		return "收入"
	}
	return "支出"
}
