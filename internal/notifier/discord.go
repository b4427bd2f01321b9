package notifier

import (
	"fmt"
	"log"

	"github.com/bwmarrin/discordgo"
	"github.com/evorto/evorto-api/internal/models"
	"github.com/evorto/evorto-api/internal/pricing"
)

type Notifier interface {
	NotifyRegistration(user models.User, event models.Event, registration models.EventRegistration) error
	NotifyReceiptSubmitted(user models.User, event models.Event, receipt models.FinanceReceipt, currency string) error
	NotifyRefund(recipient models.User, total int64, currency string, receiptCount int) error
}

// NopNotifier is used when no Discord bot is configured.
type NopNotifier struct{}

func (NopNotifier) NotifyRegistration(models.User, models.Event, models.EventRegistration) error {
	return nil
}

func (NopNotifier) NotifyReceiptSubmitted(models.User, models.Event, models.FinanceReceipt, string) error {
	return nil
}

func (NopNotifier) NotifyRefund(models.User, int64, string, int) error { return nil }

type DiscordNotifier struct {
	session   *discordgo.Session
	channelID string
}

func NewDiscordNotifier(session *discordgo.Session, channelID string) *DiscordNotifier {
	return &DiscordNotifier{
		session:   session,
		channelID: channelID,
	}
}

// New returns a DiscordNotifier when a bot token and channel are configured
// and a NopNotifier otherwise.
func New(token, channelID string) (Notifier, error) {
	if token == "" || channelID == "" {
		return NopNotifier{}, nil
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return NopNotifier{}, fmt.Errorf("create discord session: %w", err)
	}
	return NewDiscordNotifier(session, channelID), nil
}

func (n *DiscordNotifier) send(message string) error {
	if n.session == nil {
		return fmt.Errorf("discord session is nil")
	}
	if n.channelID == "" {
		return fmt.Errorf("discord channel ID is empty")
	}

	_, err := n.session.ChannelMessageSend(n.channelID, message)
	if err != nil {
		log.Printf("Failed to send discord message: %v", err)
		return err
	}
	return nil
}

func (n *DiscordNotifier) NotifyRegistration(user models.User, event models.Event, registration models.EventRegistration) error {
	status := "registered"
	switch registration.Status {
	case models.RegistrationPending:
		status = "started checkout"
	case models.RegistrationWaitlist:
		status = "joined the waitlist"
	case models.RegistrationCancelled:
		status = "cancelled 😢"
	}

	message := fmt.Sprintf("🎉 **Registration Update**\n**User:** %s\n**Event:** %s (%s)\n**Status:** %s",
		user.DisplayName(),
		event.Title,
		event.Start.Format("2006-01-02 15:04"),
		status,
	)
	return n.send(message)
}

func (n *DiscordNotifier) NotifyReceiptSubmitted(user models.User, event models.Event, receipt models.FinanceReceipt, currency string) error {
	message := fmt.Sprintf("🧾 **Receipt submitted**\n**By:** %s\n**Event:** %s\n**Total:** %s",
		user.DisplayName(),
		event.Title,
		pricing.FormatAmount(receipt.TotalAmount, currency),
	)
	return n.send(message)
}

func (n *DiscordNotifier) NotifyRefund(recipient models.User, total int64, currency string, receiptCount int) error {
	message := fmt.Sprintf("💸 **Receipt refund**\n**To:** %s\n**Amount:** %s\n**Receipts:** %d",
		recipient.DisplayName(),
		pricing.FormatAmount(total, currency),
		receiptCount,
	)
	return n.send(message)
}
