package service

import (
	"testing"
	"time"

	"cashflow/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local)
}

func strPtr(s string) *string { return &s }

func recurringSeries(freq string, interval int, start time.Time, end *time.Time) *models.EntrySeries {
	return &models.EntrySeries{
		ID:        1,
		UserID:    1,
		EntryType: models.EntryTypeExpense,
		Title:     "房租",
		Amount:    2500,
		Frequency: &freq,
		Interval:  interval,
		StartDate: start,
		EndDate:   end,
	}
}

func TestExpand_SingleOccurrence(t *testing.T) {
	series := &models.EntrySeries{
		ID:        1,
		EntryType: models.EntryTypeIncome,
		Title:     "年终奖",
		Amount:    10000,
		StartDate: day(2024, 3, 15),
	}

	// 窗口覆盖发生日
	dates := Expand(series, day(2024, 3, 1), day(2024, 3, 31))
	require.Len(t, dates, 1)
	assert.Equal(t, day(2024, 3, 15), dates[0])

	// 窗口不覆盖发生日
	assert.Empty(t, Expand(series, day(2024, 4, 1), day(2024, 4, 30)))
	assert.Empty(t, Expand(series, day(2024, 1, 1), day(2024, 3, 14)))
}

func TestExpand_Daily(t *testing.T) {
	series := recurringSeries(models.FrequencyDaily, 1, day(2024, 1, 1), nil)

	dates := Expand(series, day(2024, 1, 1), day(2024, 1, 5))
	require.Len(t, dates, 5)
	assert.Equal(t, day(2024, 1, 1), dates[0])
	assert.Equal(t, day(2024, 1, 5), dates[4])
}

func TestExpand_DailyWithInterval(t *testing.T) {
	series := recurringSeries(models.FrequencyDaily, 3, day(2024, 1, 1), nil)

	dates := Expand(series, day(2024, 1, 1), day(2024, 1, 10))
	assert.Equal(t, []time.Time{
		day(2024, 1, 1), day(2024, 1, 4), day(2024, 1, 7), day(2024, 1, 10),
	}, dates)
}

func TestExpand_Weekly(t *testing.T) {
	series := recurringSeries(models.FrequencyWeekly, 2, day(2024, 1, 1), nil)

	dates := Expand(series, day(2024, 1, 1), day(2024, 2, 1))
	assert.Equal(t, []time.Time{
		day(2024, 1, 1), day(2024, 1, 15), day(2024, 1, 29),
	}, dates)
}

func TestExpand_MonthlyClampsToMonthEnd(t *testing.T) {
	// 1月31日起的月度系列：2月收敛到月末，3月回到31日
	series := recurringSeries(models.FrequencyMonthly, 1, day(2024, 1, 31), nil)

	dates := Expand(series, day(2024, 1, 1), day(2024, 4, 30))
	assert.Equal(t, []time.Time{
		day(2024, 1, 31),
		day(2024, 2, 29), // 2024 为闰年
		day(2024, 3, 31),
		day(2024, 4, 30),
	}, dates)

	// 非闰年收敛到 2月28日
	series2 := recurringSeries(models.FrequencyMonthly, 1, day(2025, 1, 31), nil)
	dates2 := Expand(series2, day(2025, 2, 1), day(2025, 2, 28))
	require.Len(t, dates2, 1)
	assert.Equal(t, day(2025, 2, 28), dates2[0])
}

func TestExpand_YearlyLeapDay(t *testing.T) {
	series := recurringSeries(models.FrequencyYearly, 1, day(2024, 2, 29), nil)

	dates := Expand(series, day(2024, 1, 1), day(2026, 12, 31))
	assert.Equal(t, []time.Time{
		day(2024, 2, 29),
		day(2025, 2, 28),
		day(2026, 2, 28),
	}, dates)
}

func TestExpand_RespectsSeriesEndDate(t *testing.T) {
	end := day(2024, 3, 1)
	series := recurringSeries(models.FrequencyMonthly, 1, day(2024, 1, 1), &end)

	// 窗口远大于系列排期，结果仍止于 EndDate
	dates := Expand(series, day(2024, 1, 1), day(2024, 12, 31))
	assert.Equal(t, []time.Time{
		day(2024, 1, 1), day(2024, 2, 1), day(2024, 3, 1),
	}, dates)
}

func TestExpand_WindowBeforeStart(t *testing.T) {
	series := recurringSeries(models.FrequencyDaily, 1, day(2024, 6, 1), nil)
	assert.Empty(t, Expand(series, day(2024, 1, 1), day(2024, 5, 31)))
}

func TestExpand_InvertedWindow(t *testing.T) {
	series := recurringSeries(models.FrequencyDaily, 1, day(2024, 1, 1), nil)
	assert.Empty(t, Expand(series, day(2024, 2, 1), day(2024, 1, 1)))
}

func TestExpand_IntervalBelowOneTreatedAsOne(t *testing.T) {
	series := recurringSeries(models.FrequencyDaily, 0, day(2024, 1, 1), nil)
	dates := Expand(series, day(2024, 1, 1), day(2024, 1, 3))
	assert.Len(t, dates, 3)
}

func TestExpand_AscendingNoDuplicates(t *testing.T) {
	series := recurringSeries(models.FrequencyMonthly, 1, day(2023, 12, 31), nil)
	dates := Expand(series, day(2023, 12, 1), day(2024, 12, 31))
	require.NotEmpty(t, dates)
	for i := 1; i < len(dates); i++ {
		assert.True(t, dates[i-1].Before(dates[i]),
			"发生日期必须严格递增: %v >= %v", dates[i-1], dates[i])
	}
}

func TestExpand_Deterministic(t *testing.T) {
	series := recurringSeries(models.FrequencyWeekly, 1, day(2024, 1, 1), nil)
	first := Expand(series, day(2024, 1, 1), day(2024, 6, 30))
	second := Expand(series, day(2024, 1, 1), day(2024, 6, 30))
	assert.Equal(t, first, second)
}

func TestOccursOn(t *testing.T) {
	series := recurringSeries(models.FrequencyMonthly, 1, day(2024, 1, 15), nil)

	assert.True(t, OccursOn(series, day(2024, 1, 15)))
	assert.True(t, OccursOn(series, day(2024, 3, 15)))
	assert.False(t, OccursOn(series, day(2024, 3, 16)))
	assert.False(t, OccursOn(series, day(2023, 12, 15)))
}

func TestIsValidFrequency(t *testing.T) {
	for _, f := range models.GetFrequencies() {
		assert.True(t, IsValidFrequency(f))
	}
	assert.False(t, IsValidFrequency("hourly"))
	assert.False(t, IsValidFrequency(""))
}

func TestDateOnly(t *testing.T) {
	ts := time.Date(2024, 5, 20, 13, 45, 59, 123, time.Local)
	assert.Equal(t, day(2024, 5, 20), DateOnly(ts))
}
