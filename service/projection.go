package service

import (
	"fmt"
	"math"
	"sort"
	"time"

	"cashflow/models"
)

// maxProjectionYears 预测窗口上限，防止无界展开
const maxProjectionYears = 10

// Occurrence 发生记录视图
// 系列展开并套用例外后的派生结果，按需计算，从不落库。
type Occurrence struct {
	SeriesID    uint      `json:"series_id"`
	Date        time.Time `json:"date"`
	EntryType   string    `json:"entry_type"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Amount      float64   `json:"amount"` // 带符号：收入为正，支出为负
}

// ProjectionResult 余额预测结果
type ProjectionResult struct {
	ProjectedBalance float64   `json:"projected_balance"`
	AsOfDate         time.Time `json:"as_of_date"`
}

// Projector 余额预测器
// 只读、幂等：底层系列与例外不变时，相同输入必然得到相同输出。
type Projector struct {
	store SeriesStore
}

// NewProjector 创建余额预测器
func NewProjector(store SeriesStore) *Projector {
	return &Projector{store: store}
}

// Project 预测用户在 targetDate（含当天）的账户余额
// 余额 = 起始余额 + [生效日, 目标日] 内全部发生记录的带符号金额之和。
func (p *Projector) Project(userID uint, targetDate time.Time) (*ProjectionResult, error) {
	balance, err := p.store.GetStartingBalance(userID)
	if err != nil {
		if _, ok := err.(*NotFoundError); ok {
			return nil, &PreconditionError{Reason: "尚未设置起始余额，请先设置后再预测"}
		}
		return nil, err
	}

	target := DateOnly(targetDate)
	effective := DateOnly(balance.EffectiveDate)
	if target.Before(effective) {
		return nil, &PreconditionError{
			Reason:    fmt.Sprintf("目标日期早于起始余额生效日 %s", effective.Format("2006-01-02")),
			ValidFrom: &effective,
		}
	}
	if target.After(DateOnly(time.Now()).AddDate(maxProjectionYears, 0, 0)) {
		return nil, &ValidationError{
			Field:  "target_date",
			Reason: fmt.Sprintf("目标日期最多只能预测未来 %d 年", maxProjectionYears),
		}
	}

	occurrences, err := p.OccurrencesInWindow(userID, effective, target)
	if err != nil {
		return nil, err
	}

	total := balance.Amount
	for _, occ := range occurrences {
		total += occ.Amount
	}
	return &ProjectionResult{
		ProjectedBalance: roundHalfEven(total),
		AsOfDate:         target,
	}, nil
}

// OccurrencesInWindow 展开用户全部系列在窗口内的发生记录，套用例外后按日期升序返回
func (p *Projector) OccurrencesInWindow(userID uint, from, to time.Time) ([]Occurrence, error) {
	seriesList, err := p.store.ListSeriesByUser(userID)
	if err != nil {
		return nil, err
	}

	var all []Occurrence
	for i := range seriesList {
		series := &seriesList[i]
		var overrides []models.OccurrenceOverride
		if series.IsRecurring() {
			overrides, err = p.store.ListOverrides(series.ID)
			if err != nil {
				return nil, err
			}
		}
		all = append(all, BuildOccurrences(series, overrides, from, to)...)
	}

	sort.SliceStable(all, func(i, j int) bool {
		if !all[i].Date.Equal(all[j].Date) {
			return all[i].Date.Before(all[j].Date)
		}
		return all[i].SeriesID < all[j].SeriesID
	})
	return all, nil
}

// UpsertStartingBalance 设置或替换用户的起始余额
func (p *Projector) UpsertStartingBalance(userID uint, effectiveDate time.Time, amount float64) (*models.StartingBalance, error) {
	if amount < 0 {
		return nil, &ValidationError{Field: "amount", Reason: "起始余额不能为负数"}
	}
	cents := amount * 100
	if math.Abs(cents-math.Round(cents)) > 1e-6 {
		return nil, &ValidationError{Field: "amount", Reason: "金额最多保留两位小数"}
	}

	balance := &models.StartingBalance{
		UserID:        userID,
		EffectiveDate: DateOnly(effectiveDate),
		Amount:        amount,
	}
	if err := p.store.UpsertStartingBalance(balance); err != nil {
		return nil, err
	}
	return balance, nil
}

// BuildOccurrences 展开单条系列并套用例外
// deleted 例外剔除当天记录，modified 例外替换标题/描述/金额。
func BuildOccurrences(series *models.EntrySeries, overrides []models.OccurrenceOverride, from, to time.Time) []Occurrence {
	dates := Expand(series, from, to)
	if len(dates) == 0 {
		return nil
	}

	byDate := make(map[time.Time]*models.OccurrenceOverride, len(overrides))
	for i := range overrides {
		byDate[DateOnly(overrides[i].OccurrenceDate)] = &overrides[i]
	}

	occurrences := make([]Occurrence, 0, len(dates))
	for _, d := range dates {
		occ := Occurrence{
			SeriesID:    series.ID,
			Date:        d,
			EntryType:   series.EntryType,
			Title:       series.Title,
			Description: series.Description,
			Amount:      series.Amount,
		}
		if ov, ok := byDate[d]; ok {
			if ov.Kind == models.OverrideKindDeleted {
				continue
			}
			occ.Title = ov.Title
			occ.Description = ov.Description
			occ.Amount = ov.Amount
		}
		if series.EntryType == models.EntryTypeExpense {
			occ.Amount = -occ.Amount
		}
		occurrences = append(occurrences, occ)
	}
	return occurrences
}

// roundHalfEven 四舍六入五成双保留两位小数，避免反复累加带来的漂移
func roundHalfEven(v float64) float64 {
	return math.RoundToEven(v*100) / 100
}
