package identity

import "context"

// MailerFunc pair adapts plain functions into a Mailer.
type MailerFunc struct {
	OnActivation    func(ctx context.Context, account *Account) error
	OnPasswordReset func(ctx context.Context, account *Account) error
}

// SendActivationMail implements Mailer.
func (m MailerFunc) SendActivationMail(ctx context.Context, account *Account) error {
	if m.OnActivation == nil {
		return nil
	}
	return m.OnActivation(ctx, account)
}

// SendPasswordResetMail implements Mailer.
func (m MailerFunc) SendPasswordResetMail(ctx context.Context, account *Account) error {
	if m.OnPasswordReset == nil {
		return nil
	}
	return m.OnPasswordReset(ctx, account)
}

type noopMailer struct{}

func (noopMailer) SendActivationMail(context.Context, *Account) error    { return nil }
func (noopMailer) SendPasswordResetMail(context.Context, *Account) error { return nil }

func normalizeMailer(m Mailer) Mailer {
	if m == nil {
		return noopMailer{}
	}
	return m
}
