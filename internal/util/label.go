package util

import (
	"regexp"
	"strings"
)

var labelTokenRe = regexp.MustCompile(`(?i)\b([A-D])\b`)

// NormalizeLabel 把自由格式的选项标签归一成 A-D 单个大写字母，
// "B" == "B." == "B:" == "option B" == "Option b"。找不到返回空串，
// 由调用方按归一化失败处理。
func NormalizeLabel(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}

	if m := labelTokenRe.FindStringSubmatch(s); m != nil {
		return strings.ToUpper(m[1])
	}

	// 兜底：去掉末尾的 . 或 : 后取首字符
	if strings.HasSuffix(s, ".") || strings.HasSuffix(s, ":") {
		s = s[:len(s)-1]
	}
	if s == "" {
		return ""
	}
	r := []rune(s)
	return strings.ToUpper(string(r[0]))
}

// ExtractLabel 只认独立出现的 A-D 标记，不做首字符兜底。
// 聊天解析用它区分"没给选项"和"给了无效选项"，
// "explain" 这类普通单词不会被当成标签。
func ExtractLabel(raw string) string {
	if m := labelTokenRe.FindStringSubmatch(raw); m != nil {
		return strings.ToUpper(m[1])
	}
	return ""
}
