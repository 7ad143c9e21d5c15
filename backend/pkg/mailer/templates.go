package mailer

import (
	"fmt"
	"html"
	"time"
)

// ActivationCode 账号激活验证码邮件
func ActivationCode(to, name, code string, ttl time.Duration) Message {
	minutes := int(ttl.Minutes())
	text := fmt.Sprintf(
		"Hello %s,\n\nYour UPMS TeamUp activation code is %s.\nIt expires in %d minutes.\n\nIf you did not request this, ignore this email.\n",
		name, code, minutes,
	)
	htmlBody := fmt.Sprintf(
		"<p>Hello %s,</p><p>Your UPMS TeamUp activation code is <strong>%s</strong>.</p><p>It expires in %d minutes.</p>",
		html.EscapeString(name), code, minutes,
	)
	return Message{
		To:      to,
		ToName:  name,
		Subject: "UPMS TeamUp account activation code",
		Text:    text,
		HTML:    htmlBody,
	}
}
