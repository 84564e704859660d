package userforms

import "log"

// SendEmail interface allows applications to provide their own email sending implementation
type SendEmail interface {
	SendPasswordResetEmail(to string, loginLink string) error
}

// ConsoleEmailSender is a development implementation that logs emails to console
type ConsoleEmailSender struct{}

func (c *ConsoleEmailSender) SendPasswordResetEmail(to string, loginLink string) error {
	log.Printf("\n=== EMAIL: Password Recovery ===")
	log.Printf("To: %s", to)
	log.Printf("Subject: Replacement login information")
	log.Printf("Body: Log in once with this link and choose a new password: %s", loginLink)
	log.Printf("================================\n")
	return nil
}
