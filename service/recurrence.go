package service

import (
	"time"

	"cashflow/models"
)

// 周期展开器：把系列的周期定义在给定窗口内展开为具体发生日期。
// 纯函数、无状态、确定性，可被多个请求并发调用。

// Expand 展开系列在 [windowStart, windowEnd] 内的发生日期，升序返回
// 窗口与系列自身的 [StartDate, EndDate] 取交集；无 EndDate 的系列靠调用方
// 提供的窗口保证结果有限。单次系列（Frequency 为空）只在 StartDate 当天发生。
func Expand(series *models.EntrySeries, windowStart, windowEnd time.Time) []time.Time {
	start := DateOnly(series.StartDate)
	ws := DateOnly(windowStart)
	we := DateOnly(windowEnd)
	if we.Before(ws) {
		return nil
	}

	// 上界取窗口与系列 EndDate 的较小者
	end := we
	if series.EndDate != nil {
		if e := DateOnly(*series.EndDate); e.Before(end) {
			end = e
		}
	}
	if end.Before(start) {
		return nil
	}

	if !series.IsRecurring() {
		if !start.Before(ws) && !start.After(end) {
			return []time.Time{start}
		}
		return nil
	}
	if !IsValidFrequency(*series.Frequency) {
		// 未知频率在写入前已被校验拦截，这里兜底返回空
		return nil
	}

	interval := series.Interval
	if interval < 1 {
		interval = 1
	}

	var dates []time.Time
	for n := 0; ; n++ {
		d := occurrenceAt(start, *series.Frequency, interval, n)
		if d.After(end) {
			break
		}
		if !d.Before(ws) {
			dates = append(dates, d)
		}
	}
	return dates
}

// OccursOn 判断 date 是否为系列的真实发生日
func OccursOn(series *models.EntrySeries, date time.Time) bool {
	d := DateOnly(date)
	return len(Expand(series, d, d)) == 1
}

// IsValidFrequency 判断频率取值是否被支持
func IsValidFrequency(freq string) bool {
	for _, f := range models.GetFrequencies() {
		if f == freq {
			return true
		}
	}
	return false
}

// occurrenceAt 计算系列的第 n 次发生日期（n 从 0 开始）
func occurrenceAt(anchor time.Time, freq string, interval, n int) time.Time {
	switch freq {
	case models.FrequencyDaily:
		return anchor.AddDate(0, 0, n*interval)
	case models.FrequencyWeekly:
		return anchor.AddDate(0, 0, n*interval*7)
	case models.FrequencyMonthly:
		return addMonthsClamped(anchor, n*interval)
	default: // yearly
		return addMonthsClamped(anchor, n*interval*12)
	}
}

// addMonthsClamped 按锚点日加月份，锚点日在目标月不存在时收敛到该月最后一天
// 例如 1月31日 + 1个月 = 2月28日（闰年29日），而不是 time.AddDate 的 3月3日。
func addMonthsClamped(anchor time.Time, months int) time.Time {
	y := anchor.Year()
	m := int(anchor.Month()) - 1 + months
	y += m / 12
	m = m % 12

	day := anchor.Day()
	if last := daysInMonth(y, time.Month(m+1)); day > last {
		day = last
	}
	return time.Date(y, time.Month(m+1), day, 0, 0, 0, 0, anchor.Location())
}

// daysInMonth 指定年月的天数
func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// DateOnly 截断到当天零点，保留时区
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
