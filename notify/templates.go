package notify

import (
	"html/template"
	"strings"
	"time"
)

const (
	// OTPSubject is the subject line of the two-factor code email.
	OTPSubject = "Your two-factor authentication code"
	// ConfirmSubject is the subject line of the account confirmation email.
	ConfirmSubject = "Confirm your account"
)

var otpTemplate = template.Must(template.New("otp").Parse(
	`<p>Your verification code is: <strong>{{.Code}}</strong></p>` +
		`<p>The code is valid for {{.Minutes}} minutes and can be attempted at most {{.Attempts}} times.</p>`))

var confirmTemplate = template.Must(template.New("confirm").Parse(
	`<p>To confirm your account, <a href="{{.Link}}">click here</a>.</p>`))

// OTPBody renders the two-factor code email.
func OTPBody(code string, ttl time.Duration, attempts int) (string, error) {
	var b strings.Builder
	err := otpTemplate.Execute(&b, struct {
		Code     string
		Minutes  int
		Attempts int
	}{code, int(ttl / time.Minute), attempts})
	return b.String(), err
}

// ConfirmBody renders the account confirmation email.
func ConfirmBody(link string) (string, error) {
	var b strings.Builder
	err := confirmTemplate.Execute(&b, struct{ Link string }{link})
	return b.String(), err
}
