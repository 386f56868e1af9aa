package model

// MailSettings holds the outbound SMTP configuration. It is stored encrypted.
type MailSettings struct {
	SMTPHost        string `json:"smtpHost"`
	SMTPPort        int    `json:"smtpPort"`
	SMTPUser        string `json:"smtpUser"`
	SMTPPass        string `json:"smtpPass"`
	SMTPFromAddress string `json:"smtpFromAddress"`
	SMTPFromName    string `json:"smtpFromName"`
}

// Masked returns a copy safe to send to the browser.
func (s MailSettings) Masked() MailSettings {
	s.SMTPPass = ""
	return s
}
