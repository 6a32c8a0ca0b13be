package utils

// Server-side translations of API messages. Keys are the English messages themselves,
// so an untranslated message falls through unchanged.
var translations = map[string]map[string]string{
	"zh": {
		"ok":                                        "好的",
		"Survey not found or unauthorized":          "问卷不存在或无权访问",
		"Survey not found":                          "问卷不存在",
		"You must be logged in.":                    "请先登录。",
		"You must be logged in to submit.":          "请登录后再提交。",
		"Cannot publish a survey with no questions": "没有问题的问卷无法发布",
		"You have already filled this survey.":      "您已填写过此问卷。",
		"Survey limit reached.":                     "问卷回复数量已达上限。",
		"Survey is not accepting responses.":        "问卷当前不接受回复。",
		"Failed to submit survey.":                  "问卷提交失败。",
		"Failed to update survey":                   "问卷更新失败",
		"Title is required":                         "标题不能为空",
		"Email already in use!":                     "该邮箱已被使用！",
		"invalid credentials":                       "邮箱或密码错误",
		"Unauthorized":                              "未授权",
		"Forbidden":                                 "禁止访问",
		"Minimum 6 characters required":             "密码至少需要 6 个字符",
		"Invalid email":                             "邮箱格式不正确",
		"Name is required":                          "姓名不能为空",
		"Incorrect current password":                "当前密码不正确",
		"invalid request body":                      "请求体格式错误",
		"Internal server error":                     "服务器内部错误",
		"Registered successfully":                   "注册成功",
		"Logged in successfully":                    "登录成功",
		"Password changed successfully":             "密码修改成功",
		"Profile updated successfully":              "资料更新成功",
		"Survey created successfully":               "问卷创建成功",
		"Survey updated successfully":               "问卷更新成功",
		"Survey deleted successfully":               "问卷已删除",
		"Question added successfully":               "问题添加成功",
		"Question deleted successfully":             "问题已删除",
		"Survey submitted successfully!":            "问卷提交成功！",
	},
}

// T returns the translation of key in locale, or key itself.
func T(locale, key string) string {
	if m, ok := translations[locale]; ok {
		if v, ok := m[key]; ok {
			return v
		}
	}
	return key
}
