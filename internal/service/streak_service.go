package service

import (
	"context"
	"strconv"
	"time"

	"github.com/coursepulse/internal/logger"
	"golang.org/x/sync/singleflight"
)

// StreakService 在读取时惰性计算连胜，不依赖定时任务。
// 缓存只保存与时间无关的 StreakHistory，每次读取都会按 now 重新做时效检查。
type StreakService struct {
	completions *CompletionService
	cache       StreakCache
	loc         *time.Location
	log         *logger.Logger
	group       singleflight.Group
}

// NewStreakService 构造 StreakService；cache 为 nil 时不使用缓存
func NewStreakService(completions *CompletionService, cache StreakCache, loc *time.Location, log *logger.Logger) *StreakService {
	if loc == nil {
		loc = time.UTC
	}
	if cache == nil {
		cache = NoopStreakCache{}
	}
	return &StreakService{
		completions: completions,
		cache:       cache,
		loc:         loc,
		log:         logger.OrNop(log).With("service", "StreakService"),
	}
}

// Streak 返回用户在 now 时刻的连胜状态
func (s *StreakService) Streak(ctx context.Context, userID uint, now time.Time) (StreakState, error) {
	history, err := s.history(ctx, userID)
	if err != nil {
		return StreakState{}, err
	}
	return history.AsOf(now, s.loc), nil
}

// Invalidate 在完成状态变化并提交后调用，使该用户已有及正在写回的缓存条目失效；失败只记录日志
func (s *StreakService) Invalidate(ctx context.Context, userID uint) {
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		s.log.Warn("streak cache invalidate failed", "user_id", userID, "error", err)
	}
}

func (s *StreakService) history(ctx context.Context, userID uint) (StreakHistory, error) {
	if cached, ok, err := s.cache.Get(ctx, userID); err != nil {
		s.log.Warn("streak cache read failed", "user_id", userID, "error", err)
	} else if ok {
		return cached, nil
	}

	// 共享加载不随首个调用方取消，避免合并进来的其他请求一起失败
	loadCtx := context.WithoutCancel(ctx)
	value, err, _ := s.group.Do(strconv.FormatUint(uint64(userID), 10), func() (interface{}, error) {
		// 先读代数再读完成记录：加载期间若有写入，代数已变，写回的条目不会被读到
		generation, genErr := s.cache.Generation(loadCtx, userID)
		if genErr != nil {
			s.log.Warn("streak cache generation read failed", "user_id", userID, "error", genErr)
		}

		activity, err := s.completions.ActivityTimes(loadCtx, userID)
		if err != nil {
			return StreakHistory{}, err
		}
		history := SummarizeStreak(activity, s.loc)
		if genErr == nil {
			if err := s.cache.Set(loadCtx, userID, generation, history); err != nil {
				s.log.Warn("streak cache write failed", "user_id", userID, "error", err)
			}
		}
		return history, nil
	})
	if err != nil {
		return StreakHistory{}, err
	}
	return value.(StreakHistory), nil
}
