package email

import (
	"context"
	"io"
)

type Attachment struct {
	Filename string
	Content  io.Reader
}

type Provider interface {
	Send(ctx context.Context, to []string, subject string, htmlBody string, attachments ...Attachment) error
}

type NoOpProvider struct{}

func (p *NoOpProvider) Send(ctx context.Context, to []string, subject string, htmlBody string, attachments ...Attachment) error {
	return nil
}
