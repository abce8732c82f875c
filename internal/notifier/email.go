package notifier

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"gopkg.in/gomail.v2"

	"github.com/akylbek/bike-rental/billing-service/internal/models"
)

// Sender is satisfied by *gomail.Dialer.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

type EmailNotifier struct {
	sender Sender
	from   string
	ids    *snowflake.Node
}

func NewEmailNotifier(sender Sender, from string, nodeID int64) (*EmailNotifier, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("create id node: %w", err)
	}
	return &EmailNotifier{sender: sender, from: from, ids: node}, nil
}

// NewSMTPDialer builds a dialer that upgrades to STARTTLS when the server offers it.
func NewSMTPDialer(host string, port int, username, password string) *gomail.Dialer {
	return gomail.NewDialer(host, port, username, password)
}

func (n *EmailNotifier) Send(ctx context.Context, req models.EmailRequest) (*models.Email, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", req.Email)
	m.SetHeader("Subject", req.Subject)
	m.SetBody("text/html", req.Message)

	if err := n.sender.DialAndSend(m); err != nil {
		return nil, fmt.Errorf("send email to %s: %w", req.Email, err)
	}

	return &models.Email{
		ID:      n.ids.Generate().Int64(),
		Email:   req.Email,
		Subject: req.Subject,
		Message: req.Message,
	}, nil
}
