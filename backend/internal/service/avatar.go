package service

import "strings"

var avatarPalette = []string{
	"#5bb2f5", "#42c93a", "#f69050", "#b46cff",
	"#ff4d6d", "#00b8d9", "#ffb703", "#4361ee",
}

// avatarInitials 取姓名首尾两个单词的首字母；单个单词取前两个字符
func avatarInitials(name string) string {
	words := strings.Fields(name)
	switch len(words) {
	case 0:
		return "NA"
	case 1:
		r := []rune(words[0])
		if len(r) > 2 {
			r = r[:2]
		}
		return strings.ToUpper(string(r))
	default:
		first := []rune(words[0])[0]
		last := []rune(words[len(words)-1])[0]
		return strings.ToUpper(string([]rune{first, last}))
	}
}

// avatarColor 按学号字符和取模选色，同一学号颜色固定
func avatarColor(studentID string) string {
	sum := 0
	for _, r := range studentID {
		sum += int(r)
	}
	return avatarPalette[sum%len(avatarPalette)]
}

// maskEmail ab***@example.com
func maskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return "***"
	}
	local := []rune(email[:at])
	keep := 2
	if len(local) < keep {
		keep = len(local)
	}
	return string(local[:keep]) + "***" + email[at:]
}
