package pdf

import (
	"context"
	"io"
)

// Provider renders the artifacts issued when a payment first verifies.
type Provider interface {
	GenerateDuesReceipt(ctx context.Context, data ReceiptData) (io.Reader, error)
	GenerateMembershipCredential(ctx context.Context, data CredentialData) (io.Reader, error)
}

type ReceiptData struct {
	Reference    string
	MemberName   string
	MembershipNo string
	Session      string
	Amount       string
	PaidAt       string
	PaidVia      string
}

type CredentialData struct {
	MemberName   string
	MembershipNo string
	Reference    string
	IssuedAt     string
}

type NoOpProvider struct{}

func (p *NoOpProvider) GenerateDuesReceipt(ctx context.Context, data ReceiptData) (io.Reader, error) {
	return nil, nil
}

func (p *NoOpProvider) GenerateMembershipCredential(ctx context.Context, data CredentialData) (io.Reader, error) {
	return nil, nil
}
