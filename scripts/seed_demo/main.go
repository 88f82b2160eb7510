package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/coursepulse/internal/config"
	"github.com/coursepulse/internal/db"
	"github.com/coursepulse/internal/service"
	"gorm.io/gorm"
)

type seedOptions struct {
	Username    string
	Password    string
	CourseTitle string
	Lessons     int
	ActivatedAt time.Time
	Current     float64
	Target      float64
}

type seedResult struct {
	User    *db.User
	Course  *db.Course
	Lessons []db.Lesson
	Created bool
}

// 演示数据生成器：一个学员、一门课程、授权与体重资料
func main() {
	opts := seedOptions{}
	daysAgo := 0
	flag.StringVar(&opts.Username, "user", "learner", "learner username")
	flag.StringVar(&opts.Password, "password", "learner123", "learner password")
	flag.StringVar(&opts.CourseTitle, "course", "30 天燃脂计划", "course title")
	flag.IntVar(&opts.Lessons, "lessons", 30, "number of lessons")
	flag.IntVar(&daysAgo, "activated-days-ago", 3, "enrollment activation offset in days")
	flag.Float64Var(&opts.Current, "current-weight", 72, "current weight in kg")
	flag.Float64Var(&opts.Target, "target-weight", 65, "target weight in kg")
	flag.Parse()

	cfg := config.Load()
	if err := db.Init(cfg.DatabaseDriver, cfg.DatabaseTarget()); err != nil {
		log.Fatal("数据库初始化失败:", err)
	}

	opts.ActivatedAt = time.Now().In(cfg.Timezone).AddDate(0, 0, -daysAgo)

	fmt.Println("开始生成演示数据...")
	result, err := seedDemo(context.Background(), db.DB, opts)
	if err != nil {
		log.Fatal("生成演示数据失败:", err)
	}

	if !result.Created {
		fmt.Printf("课程 %q 已存在，跳过创建\n", opts.CourseTitle)
	}
	fmt.Println("演示数据生成完成！")
	fmt.Printf("用户: %s (密码: %s)\n", result.User.Username, opts.Password)
	fmt.Printf("课程: #%d %s，共 %d 节\n", result.Course.ID, result.Course.Title, len(result.Lessons))
}

// seedDemo 幂等：重复执行不会生成重复的课程或授权
func seedDemo(ctx context.Context, gdb *gorm.DB, opts seedOptions) (*seedResult, error) {
	if opts.Lessons <= 0 {
		return nil, errors.New("lessons must be positive")
	}

	user, err := db.EnsureUser(gdb, opts.Username, opts.Password)
	if err != nil {
		return nil, fmt.Errorf("ensure user: %w", err)
	}
	if user == nil {
		return nil, errors.New("username and password are required")
	}

	catalog := service.NewCatalogService(gdb)
	result := &seedResult{User: user}

	var course db.Course
	err = gdb.WithContext(ctx).Where("title = ?", opts.CourseTitle).First(&course).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		inputs := make([]service.LessonInput, opts.Lessons)
		for i := range inputs {
			inputs[i] = demoLesson(i + 1)
		}
		created, lessons, err := catalog.CreateCourse(ctx, opts.CourseTitle, inputs)
		if err != nil {
			return nil, err
		}
		result.Course = created
		result.Lessons = lessons
		result.Created = true
	case err != nil:
		return nil, fmt.Errorf("find course: %w", err)
	default:
		lessons, err := catalog.Lessons(ctx, course.ID)
		if err != nil {
			return nil, err
		}
		result.Course = &course
		result.Lessons = lessons
	}

	if _, err := service.NewEnrollmentService(gdb).Grant(ctx, user.ID, result.Course.ID, opts.ActivatedAt); err != nil {
		return nil, fmt.Errorf("grant enrollment: %w", err)
	}

	if _, err := service.NewProfileService(gdb).Upsert(ctx, user.ID, service.ProfileInput{
		CurrentWeight: opts.Current,
		TargetWeight:  opts.Target,
	}); err != nil {
		return nil, fmt.Errorf("upsert profile: %w", err)
	}

	return result, nil
}

// demoLesson 让时长与热量随课程推进逐步增加
func demoLesson(order int) service.LessonInput {
	minutes := 20 + (order-1)%4*5
	return service.LessonInput{
		Title:           fmt.Sprintf("第 %d 天", order),
		DurationMinutes: minutes,
		CalorieYield:    minutes * 9,
	}
}
