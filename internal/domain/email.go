package domain

import "context"

// Mailer sends a single email. Implementations: SES, noop.
type Mailer interface {
	Send(to, subject, html, text string) error
}

// EmailTemplateRenderer renders a named template with the given data into
// subject, HTML body, and text body.
type EmailTemplateRenderer interface {
	Render(template string, data any) (subject, html, text string, err error)
}

// WelcomeEmailData is the data for the sign-up welcome email.
type WelcomeEmailData struct {
	Email string
	Name  string
	Role  Role
}

// EmailService sends application emails.
type EmailService interface {
	SendWelcomeMessage(ctx context.Context, data *WelcomeEmailData) error
}
