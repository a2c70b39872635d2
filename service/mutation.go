package service

import (
	"math"
	"strings"
	"time"

	"cashflow/models"
)

// 编辑/删除作用域常量
const (
	ScopeOccurrence = "occurrence" // 只影响这一天
	ScopeFuture     = "future"     // 影响这一天及之后
	ScopeEntire     = "entire"     // 影响整个系列
)

// EditFields 编辑载荷，nil 字段表示不修改
type EditFields struct {
	Title       *string
	Description *string
	Amount      *float64
	EntryType   *string
}

// EditResult 编辑结果
// Scope 反映实际生效的作用域（future 的退化情形会折叠为 entire）。
// future 拆分时 Series 为截断后的原系列，NewSeries 为新插入的系列。
type EditResult struct {
	Scope     string                     `json:"scope"`
	Series    *models.EntrySeries        `json:"series"`
	NewSeries *models.EntrySeries        `json:"new_series,omitempty"`
	Override  *models.OccurrenceOverride `json:"override,omitempty"`
}

// DeleteResult 删除结果
type DeleteResult struct {
	Scope          string                     `json:"scope"`
	AffectedSeries []uint                     `json:"affected_series"`
	Override       *models.OccurrenceOverride `json:"override,omitempty"`
}

// SeriesDetail 系列详情（系列 + 全部例外）
type SeriesDetail struct {
	Series    *models.EntrySeries         `json:"series"`
	Overrides []models.OccurrenceOverride `json:"overrides"`
}

// MutationEngine 作用域变更引擎
// 实现单次/未来/整体三种作用域的编辑与删除语义。所有多步写操作（拆分、截断）
// 都在存储事务内完成。引擎不读取任何环境身份，归属用户由调用方显式传入。
type MutationEngine struct {
	store SeriesStore
}

// NewMutationEngine 创建变更引擎
func NewMutationEngine(store SeriesStore) *MutationEngine {
	return &MutationEngine{store: store}
}

// CreateEntry 创建系列，写入前完成全部校验
func (e *MutationEngine) CreateEntry(series *models.EntrySeries) error {
	if err := validateSeries(series); err != nil {
		return err
	}
	series.StartDate = DateOnly(series.StartDate)
	if series.EndDate != nil {
		d := DateOnly(*series.EndDate)
		series.EndDate = &d
	}
	// interval 未填（0）视为缺省，补为 1
	if series.Interval < 1 {
		series.Interval = 1
	}
	return e.store.InsertSeries(series)
}

// FetchSeriesDetail 查询系列及其全部例外
func (e *MutationEngine) FetchSeriesDetail(seriesID, userID uint) (*SeriesDetail, error) {
	series, err := e.store.GetSeries(seriesID, userID)
	if err != nil {
		return nil, err
	}
	overrides, err := e.store.ListOverrides(seriesID)
	if err != nil {
		return nil, err
	}
	return &SeriesDetail{Series: series, Overrides: overrides}, nil
}

// EditEntry 按作用域编辑系列
//   - occurrence: 单次系列直接改系列字段；周期系列写一条 modified 例外，父系列不动
//   - future:     在目标日期拆分系列，原系列截断到前一天，新系列从目标日期起携带新字段；
//     目标日期等于系列起始日时退化为 entire 语义
//   - entire:     直接更新系列的标题/描述/金额/类型，周期字段不变，既有例外保持生效
func (e *MutationEngine) EditEntry(seriesID, userID uint, date time.Time, scope string, fields EditFields) (*EditResult, error) {
	if err := validateScope(scope); err != nil {
		return nil, err
	}
	if err := validateEditFields(fields); err != nil {
		return nil, err
	}
	date = DateOnly(date)

	switch scope {
	case ScopeOccurrence:
		series, err := e.store.GetSeries(seriesID, userID)
		if err != nil {
			return nil, err
		}
		return e.editOccurrence(series, date, fields)
	case ScopeFuture:
		return e.editFuture(seriesID, userID, date, fields)
	default:
		series, err := e.store.GetSeries(seriesID, userID)
		if err != nil {
			return nil, err
		}
		return e.editEntire(e.store, series, fields)
	}
}

// editOccurrence 单日编辑
func (e *MutationEngine) editOccurrence(series *models.EntrySeries, date time.Time, fields EditFields) (*EditResult, error) {
	if !series.IsRecurring() {
		// 单次系列只有一个发生日，直接改系列本身
		if !date.Equal(DateOnly(series.StartDate)) {
			return nil, e.scopeError(series, date, ScopeOccurrence)
		}
		updates := seriesFieldUpdates(fields, false)
		if len(updates) > 0 {
			if err := e.store.UpdateSeries(series.ID, updates); err != nil {
				return nil, err
			}
		}
		applyFieldsToSeries(series, fields, false)
		return &EditResult{Scope: ScopeOccurrence, Series: series}, nil
	}

	if err := e.requireOccurrence(series, date, ScopeOccurrence); err != nil {
		return nil, err
	}

	// 以当前渲染值为基底：已有 modified 例外时在例外之上继续编辑
	base := occurrenceBase(series, date)
	existing, err := e.store.ListOverrides(series.ID)
	if err != nil {
		return nil, err
	}
	for i := range existing {
		if DateOnly(existing[i].OccurrenceDate).Equal(date) && existing[i].Kind == models.OverrideKindModified {
			base.Title = existing[i].Title
			base.Description = existing[i].Description
			base.Amount = existing[i].Amount
		}
	}
	if fields.Title != nil {
		base.Title = strings.TrimSpace(*fields.Title)
	}
	if fields.Description != nil {
		base.Description = *fields.Description
	}
	if fields.Amount != nil {
		base.Amount = *fields.Amount
	}

	if err := e.store.UpsertOverride(base); err != nil {
		return nil, err
	}
	return &EditResult{Scope: ScopeOccurrence, Series: series, Override: base}, nil
}

// editFuture 在 date 处拆分系列
// 加载、校验与拆分写在同一事务内完成：系列用行锁重新读取后校验，两个并发的
// future 操作命中同一系列时后者阻塞到前者提交，再依截断后的排期判定目标日期。
func (e *MutationEngine) editFuture(seriesID, userID uint, date time.Time, fields EditFields) (*EditResult, error) {
	var result *EditResult
	err := e.store.Transaction(func(tx SeriesStore) error {
		series, err := tx.GetSeriesForUpdate(seriesID, userID)
		if err != nil {
			return err
		}
		if err := e.requireOccurrence(series, date, ScopeFuture); err != nil {
			return err
		}
		// 退化情形：目标日期就是系列起始日，拆分没有意义，折叠为整体编辑
		if date.Equal(DateOnly(series.StartDate)) {
			result, err = e.editEntire(tx, series, fields)
			return err
		}

		newSeries := cloneSeriesFrom(series, date)
		applyFieldsToSeries(newSeries, fields, true)
		if err := tx.InsertSeries(newSeries); err != nil {
			return err
		}
		truncated := date.AddDate(0, 0, -1)
		if err := tx.UpdateSeries(series.ID, map[string]interface{}{"end_date": truncated}); err != nil {
			return err
		}
		// 目标日期及之后的例外随排期一起归属新系列
		if err := tx.MoveOverridesFrom(series.ID, newSeries.ID, date); err != nil {
			return err
		}
		series.EndDate = &truncated
		result = &EditResult{Scope: ScopeFuture, Series: series, NewSeries: newSeries}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// editEntire 整体编辑，周期字段不变
func (e *MutationEngine) editEntire(st SeriesStore, series *models.EntrySeries, fields EditFields) (*EditResult, error) {
	updates := seriesFieldUpdates(fields, true)
	if len(updates) > 0 {
		if err := st.UpdateSeries(series.ID, updates); err != nil {
			return nil, err
		}
	}
	applyFieldsToSeries(series, fields, true)
	return &EditResult{Scope: ScopeEntire, Series: series}, nil
}

// DeleteEntry 按作用域删除系列
//   - occurrence: 单次系列删除整个系列；周期系列写一条 deleted 例外
//   - future:     原系列截断到前一天并丢弃之后的例外；目标日期等于起始日时删除整个系列
//   - entire:     删除系列并级联删除全部例外
func (e *MutationEngine) DeleteEntry(seriesID, userID uint, date time.Time, scope string) (*DeleteResult, error) {
	if err := validateScope(scope); err != nil {
		return nil, err
	}

	date = DateOnly(date)

	switch scope {
	case ScopeOccurrence:
		series, err := e.store.GetSeries(seriesID, userID)
		if err != nil {
			return nil, err
		}
		if !series.IsRecurring() {
			if err := e.store.DeleteSeries(series.ID); err != nil {
				return nil, err
			}
			return &DeleteResult{Scope: ScopeEntire, AffectedSeries: []uint{series.ID}}, nil
		}
		if err := e.requireOccurrence(series, date, scope); err != nil {
			return nil, err
		}
		ov := &models.OccurrenceOverride{
			SeriesID:       series.ID,
			OccurrenceDate: date,
			Kind:           models.OverrideKindDeleted,
		}
		if err := e.store.UpsertOverride(ov); err != nil {
			return nil, err
		}
		return &DeleteResult{Scope: ScopeOccurrence, AffectedSeries: []uint{series.ID}, Override: ov}, nil

	case ScopeFuture:
		return e.deleteFuture(seriesID, userID, date)

	default:
		series, err := e.store.GetSeries(seriesID, userID)
		if err != nil {
			return nil, err
		}
		if err := e.store.DeleteSeries(series.ID); err != nil {
			return nil, err
		}
		return &DeleteResult{Scope: ScopeEntire, AffectedSeries: []uint{series.ID}}, nil
	}
}

// deleteFuture 截断系列并丢弃之后的例外
// 与 editFuture 相同，行锁加载与校验在截断所在的事务内完成。
func (e *MutationEngine) deleteFuture(seriesID, userID uint, date time.Time) (*DeleteResult, error) {
	var result *DeleteResult
	err := e.store.Transaction(func(tx SeriesStore) error {
		series, err := tx.GetSeriesForUpdate(seriesID, userID)
		if err != nil {
			return err
		}
		if err := e.requireOccurrence(series, date, ScopeFuture); err != nil {
			return err
		}
		// 退化情形：从起始日起删除未来，等价于删除整个系列
		if date.Equal(DateOnly(series.StartDate)) {
			if err := tx.DeleteSeries(series.ID); err != nil {
				return err
			}
			result = &DeleteResult{Scope: ScopeEntire, AffectedSeries: []uint{series.ID}}
			return nil
		}
		truncated := date.AddDate(0, 0, -1)
		if err := tx.UpdateSeries(series.ID, map[string]interface{}{"end_date": truncated}); err != nil {
			return err
		}
		if err := tx.DeleteOverridesFrom(series.ID, date); err != nil {
			return err
		}
		result = &DeleteResult{Scope: ScopeFuture, AffectedSeries: []uint{series.ID}}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// requireOccurrence 校验 date 是系列的真实发生日
func (e *MutationEngine) requireOccurrence(series *models.EntrySeries, date time.Time, scope string) error {
	if OccursOn(series, date) {
		return nil
	}
	return e.scopeError(series, date, scope)
}

func (e *MutationEngine) scopeError(series *models.EntrySeries, date time.Time, scope string) error {
	scopeErr := &InvalidScopeError{
		Scope: scope,
		Date:  date,
		Start: DateOnly(series.StartDate),
	}
	if series.EndDate != nil {
		end := DateOnly(*series.EndDate)
		scopeErr.End = &end
	}
	return scopeErr
}

// occurrenceBase 以系列字段为基底构造 modified 例外
func occurrenceBase(series *models.EntrySeries, date time.Time) *models.OccurrenceOverride {
	return &models.OccurrenceOverride{
		SeriesID:       series.ID,
		OccurrenceDate: date,
		Kind:           models.OverrideKindModified,
		Title:          series.Title,
		Description:    series.Description,
		Amount:         series.Amount,
	}
}

// cloneSeriesFrom 克隆系列作为拆分后的新系列，排期从 date 开始
func cloneSeriesFrom(series *models.EntrySeries, date time.Time) *models.EntrySeries {
	clone := &models.EntrySeries{
		UserID:      series.UserID,
		EntryType:   series.EntryType,
		Title:       series.Title,
		Description: series.Description,
		Amount:      series.Amount,
		Interval:    series.Interval,
		StartDate:   date,
	}
	if series.Frequency != nil {
		freq := *series.Frequency
		clone.Frequency = &freq
	}
	if series.EndDate != nil {
		end := DateOnly(*series.EndDate)
		clone.EndDate = &end
	}
	return clone
}

// applyFieldsToSeries 把编辑载荷套用到内存中的系列对象
func applyFieldsToSeries(series *models.EntrySeries, fields EditFields, allowType bool) {
	if fields.Title != nil {
		series.Title = strings.TrimSpace(*fields.Title)
	}
	if fields.Description != nil {
		series.Description = *fields.Description
	}
	if fields.Amount != nil {
		series.Amount = *fields.Amount
	}
	if allowType && fields.EntryType != nil {
		series.EntryType = *fields.EntryType
	}
}

// seriesFieldUpdates 把编辑载荷转成 gorm 字段更新表
func seriesFieldUpdates(fields EditFields, allowType bool) map[string]interface{} {
	updates := make(map[string]interface{})
	if fields.Title != nil {
		updates["title"] = strings.TrimSpace(*fields.Title)
	}
	if fields.Description != nil {
		updates["description"] = *fields.Description
	}
	if fields.Amount != nil {
		updates["amount"] = *fields.Amount
	}
	if allowType && fields.EntryType != nil {
		updates["entry_type"] = *fields.EntryType
	}
	return updates
}

// validateScope 校验作用域取值
func validateScope(scope string) error {
	switch scope {
	case ScopeOccurrence, ScopeFuture, ScopeEntire:
		return nil
	}
	return &InvalidScopeError{Scope: scope, Reason: "作用域必须是 occurrence/future/entire 之一"}
}

// validateSeries 系列写入前校验
func validateSeries(series *models.EntrySeries) error {
	if series.EntryType != models.EntryTypeIncome && series.EntryType != models.EntryTypeExpense {
		return &ValidationError{Field: "entry_type", Reason: "类型必须是 income 或 expense"}
	}
	if strings.TrimSpace(series.Title) == "" {
		return &ValidationError{Field: "title", Reason: "标题不能为空"}
	}
	if err := validateAmount(series.Amount); err != nil {
		return err
	}
	if series.Frequency != nil && *series.Frequency != "" {
		if !IsValidFrequency(*series.Frequency) {
			return &ValidationError{Field: "frequency", Reason: "频率必须是 daily/weekly/monthly/yearly 之一"}
		}
		if series.Interval < 0 {
			return &ValidationError{Field: "interval", Reason: "间隔不能为负数，缺省时按 1 处理"}
		}
	} else {
		series.Frequency = nil
	}
	if series.EndDate != nil && DateOnly(*series.EndDate).Before(DateOnly(series.StartDate)) {
		return &ValidationError{Field: "end_date", Reason: "结束日期不能早于开始日期"}
	}
	return nil
}

// validateEditFields 编辑载荷校验，任何存储变更之前执行
func validateEditFields(fields EditFields) error {
	if fields.Title != nil && strings.TrimSpace(*fields.Title) == "" {
		return &ValidationError{Field: "title", Reason: "标题不能为空"}
	}
	if fields.Amount != nil {
		if err := validateAmount(*fields.Amount); err != nil {
			return err
		}
	}
	if fields.EntryType != nil &&
		*fields.EntryType != models.EntryTypeIncome && *fields.EntryType != models.EntryTypeExpense {
		return &ValidationError{Field: "entry_type", Reason: "类型必须是 income 或 expense"}
	}
	return nil
}

// validateAmount 金额必须为正且最多两位小数
func validateAmount(amount float64) error {
	if amount <= 0 {
		return &ValidationError{Field: "amount", Reason: "金额必须大于 0"}
	}
	cents := amount * 100
	if math.Abs(cents-math.Round(cents)) > 1e-6 {
		return &ValidationError{Field: "amount", Reason: "金额最多保留两位小数"}
	}
	return nil
}
