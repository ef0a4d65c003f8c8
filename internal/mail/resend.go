// Package mail wraps the Resend SDK behind a small interface so handlers and
// the account service can be tested without the live provider.
package mail

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v2"
)

// Sender delivers transactional email. The account service only needs the
// password-reset message.
type Sender interface {
	SendPasswordResetCode(ctx context.Context, to, code string) error
}

// Client is the Resend-backed implementation of Sender, plus the domain
// management calls proxied by the /resend routes.
type Client struct {
	api  *resend.Client
	from string
}

var _ Sender = (*Client)(nil)

// NewClient creates a Resend client. from is the verified sender address.
func NewClient(apiKey, from string) *Client {
	return &Client{
		api:  resend.NewClient(apiKey),
		from: from,
	}
}

// SendPasswordResetCode emails a reset code to the given address.
func (c *Client) SendPasswordResetCode(ctx context.Context, to, code string) error {
	_, err := c.api.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    c.from,
		To:      []string{to},
		Subject: "Your OptioHire password reset code",
		Text:    fmt.Sprintf("Your password reset code is %s. It expires in 15 minutes.", code),
	})
	if err != nil {
		return fmt.Errorf("send reset email: %w", err)
	}
	return nil
}

// ListDomains returns the domains registered with the provider.
func (c *Client) ListDomains(ctx context.Context) ([]resend.Domain, error) {
	resp, err := c.api.Domains.ListWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list domains: %w", err)
	}
	return resp.Data, nil
}

// GetDomain returns one domain by id.
func (c *Client) GetDomain(ctx context.Context, domainID string) (*resend.Domain, error) {
	d, err := c.api.Domains.GetWithContext(ctx, domainID)
	if err != nil {
		return nil, fmt.Errorf("get domain %s: %w", domainID, err)
	}
	return &d, nil
}

// Verify checks that the API key is valid by listing domains. It returns the
// number of registered domains on success.
func (c *Client) Verify(ctx context.Context) (int, error) {
	resp, err := c.api.Domains.ListWithContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("verify provider credentials: %w", err)
	}
	return len(resp.Data), nil
}
