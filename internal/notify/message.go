package notify

import (
	"context"
	"errors"
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"tokenWatch/internal/model"
)

// Message is a single outbound notification.
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Sender delivers one message. Implementations must be safe for concurrent use.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// ErrNoRecipient is returned when a message has no destination address.
var ErrNoRecipient = errors.New("message has no recipient")

var printer = message.NewPrinter(language.English)

// ComposeSwing renders a percentage swing alert addressed to to.
func ComposeSwing(ev model.PercentageSwing, threshold float64, to string) Message {
	return Message{
		To:      to,
		Subject: printer.Sprintf("Price of %s increased by more than %s%%", ev.TokenName, formatFloat(threshold)),
		Body:    printer.Sprintf("Price of %s increased by %.2f%%, current price is %s", ev.TokenName, ev.PercentageIncrease, formatFloat(ev.CurrentPrice)),
	}
}

// ComposeTargetHit renders a target price alert addressed to the registrant.
func ComposeTargetHit(ev model.TargetHit) Message {
	return Message{
		To:      ev.Email,
		Subject: printer.Sprintf("Price of %s reached target price", ev.TokenName),
		Body:    printer.Sprintf("Price of %s reached targeted price of %s", ev.TokenName, ev.TargetPrice),
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
