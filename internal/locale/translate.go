package locale

// Pick returns the text matching the request language, defaulting to Chinese.
func Pick(language, english, chinese string) string {
	if NormalizeLanguage(language) == LanguageEnglish {
		if english != "" {
			return english
		}
		return chinese
	}
	if chinese != "" {
		return chinese
	}
	return english
}

type message struct {
	en string
	zh string
}

// 错误码对应的提示文案；前端依赖 code 区分"未购买"与"尚未开放"
var messages = map[string]message{
	"not_enrolled":            {en: "You have not purchased this course.", zh: "尚未购买该课程"},
	"lesson_locked":           {en: "This lesson is not available yet.", zh: "该课程尚未开放"},
	"lesson_not_found":        {en: "Lesson not found.", zh: "课程不存在"},
	"catalog_invalid":         {en: "Course catalog is misconfigured.", zh: "课程目录配置异常"},
	"concurrent_modification": {en: "The lesson was updated concurrently, please retry.", zh: "操作冲突，请重试"},
	"persistence_failure":     {en: "Temporary storage failure, please retry.", zh: "存储暂时不可用，请重试"},
	"invalid_request":         {en: "Invalid request parameters.", zh: "请求参数不合法"},
	"invalid_course_id":       {en: "Invalid course id.", zh: "无效的课程ID"},
	"invalid_lesson_id":       {en: "Invalid lesson id.", zh: "无效的课程节ID"},
	"invalid_profile":         {en: "Invalid weight values.", zh: "体重数据不合法"},
	"unauthorized":            {en: "Please log in first.", zh: "请先登录"},
	"invalid_credentials":     {en: "Incorrect username or password.", zh: "用户名或密码错误"},
	"session_failed":          {en: "Failed to save session.", zh: "会话保存失败"},
	"internal_error":          {en: "Operation failed.", zh: "操作失败"},
}

// Message 返回错误码对应的本地化文案，未知错误码回退到通用提示
func Message(language, code string) string {
	msg, ok := messages[code]
	if !ok {
		msg = messages["internal_error"]
	}
	return Pick(language, msg.en, msg.zh)
}
