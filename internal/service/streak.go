package service

import (
	"slices"
	"time"
)

const dayHours = 24

// StreakHistory 是只由完成记录决定的连胜摘要，与查询时间无关，可以缓存
// RunLength 为截至 LastActivityDate 的连续天数
type StreakHistory struct {
	LastActivityDate time.Time `json:"last_activity_date"`
	RunLength        int       `json:"run_length"`
	Longest          int       `json:"longest"`
}

// StreakState 为在某个时间点读取到的连胜结果
type StreakState struct {
	Days             int
	Longest          int
	LastActivityDate *time.Time
}

// CalculateStreak 从完成时间计算 now 时刻的连胜天数
func CalculateStreak(activity []time.Time, now time.Time, loc *time.Location) StreakState {
	return SummarizeStreak(activity, loc).AsOf(now, loc)
}

// SummarizeStreak 把完成时间折算成平台时区的自然日，去重后从最近一天向前数连续天数
func SummarizeStreak(activity []time.Time, loc *time.Location) StreakHistory {
	if loc == nil {
		loc = time.UTC
	}

	seen := make(map[time.Time]struct{}, len(activity))
	days := make([]time.Time, 0, len(activity))
	for _, at := range activity {
		day := normalizeToDate(at.In(loc))
		if _, ok := seen[day]; ok {
			continue
		}
		seen[day] = struct{}{}
		days = append(days, day)
	}
	if len(days) == 0 {
		return StreakHistory{}
	}

	slices.SortFunc(days, func(a, b time.Time) int {
		return b.Compare(a)
	})

	history := StreakHistory{LastActivityDate: days[0], RunLength: 1, Longest: 1}
	run := 1
	counting := true
	for i := 1; i < len(days); i++ {
		if dayDiff(days[i], days[i-1]) == 1 {
			run++
		} else {
			counting = false
			run = 1
		}
		if counting {
			history.RunLength = run
		}
		if run > history.Longest {
			history.Longest = run
		}
	}
	return history
}

// AsOf 做时效检查：查询日比最后活动日晚超过一天即视为中断，返回 0
// 最后活动日晚于查询日（时钟偏差）时按同一天处理
func (h StreakHistory) AsOf(now time.Time, loc *time.Location) StreakState {
	if h.RunLength == 0 || h.LastActivityDate.IsZero() {
		return StreakState{}
	}
	if loc == nil {
		loc = time.UTC
	}

	last := h.LastActivityDate
	state := StreakState{Longest: h.Longest, LastActivityDate: &last}

	today := normalizeToDate(now.In(loc))
	if dayDiff(last, today) <= 1 {
		state.Days = h.RunLength
	}
	return state
}

func normalizeToDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// dayDiff 返回 to 与 from 相差的自然日数，按日历计算，不受夏令时影响
func dayDiff(from, to time.Time) int {
	a := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / dayHours)
}
