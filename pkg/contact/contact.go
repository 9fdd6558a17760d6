// Package contact relays contact form submissions by email.
package contact

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log"
	"strings"
	"time"

	"github.com/eyeonidea/contentd/pkg/models"
)

var (
	// ErrMissingFields is returned when name, email or message is blank.
	ErrMissingFields = errors.New("please fill in name, email and message")
	// ErrNotConfigured is returned when the relay has no mailer or addresses.
	ErrNotConfigured = errors.New("email service is not fully configured")
)

const defaultSubject = "New contact form submission"

// Relay validates submissions and sends them on.
type Relay struct {
	mailer   Mailer
	to       string
	from     string
	throttle *Throttle
	ledger   Ledger
	senders  senderLocks
}

// Options wires a Relay. Throttle and Ledger are optional.
type Options struct {
	Mailer   Mailer
	To       string
	From     string
	Throttle *Throttle
	Ledger   Ledger
}

// NewRelay creates a Relay.
func NewRelay(opts Options) *Relay {
	return &Relay{
		mailer:   opts.Mailer,
		to:       opts.To,
		from:     opts.From,
		throttle: opts.Throttle,
		ledger:   opts.Ledger,
	}
}

// Submit sends msg for site. A filled honeypot is accepted without sending.
func (r *Relay) Submit(ctx context.Context, site string, msg models.ContactMessage) error {
	if strings.TrimSpace(msg.Company) != "" {
		log.Printf("contact %s: honeypot filled, dropping submission", site)
		return nil
	}
	if strings.TrimSpace(msg.Name) == "" || strings.TrimSpace(msg.Email) == "" || strings.TrimSpace(msg.Message) == "" {
		return ErrMissingFields
	}
	if r.mailer == nil || r.to == "" || r.from == "" {
		return ErrNotConfigured
	}

	sender := strings.ToLower(strings.TrimSpace(msg.Email))
	if r.throttle != nil {
		// Check, send and record run as one step per sender so concurrent
		// submissions cannot all pass the check before any is recorded.
		defer r.senders.lock(sender)()
		if err := r.throttle.Check(ctx, sender); err != nil {
			return err
		}
	}

	e := compose(msg)
	e.From = r.from
	e.To = r.to
	if err := r.mailer.Send(ctx, e); err != nil {
		return err
	}

	if r.ledger != nil {
		err := r.ledger.Record(ctx, models.Submission{
			Site:      site,
			Sender:    sender,
			Subject:   e.Subject,
			CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			log.Printf("contact %s: %v", site, err)
		}
	}
	return nil
}

func compose(msg models.ContactMessage) Email {
	subject := strings.TrimSpace(msg.Subject)
	if subject == "" {
		subject = defaultSubject
	}
	shown := msg.Subject
	if shown == "" {
		shown = "-"
	}
	text := strings.Join([]string{
		fmt.Sprintf("Name: %s", msg.Name),
		fmt.Sprintf("Email: %s", msg.Email),
		fmt.Sprintf("Subject: %s", shown),
		"",
		msg.Message,
	}, "\n")
	return Email{
		ReplyTo: msg.Email,
		Subject: subject,
		Text:    text,
		HTML:    strings.ReplaceAll(html.EscapeString(text), "\n", "<br>"),
	}
}
