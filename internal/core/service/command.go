package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/tholander/bagwatch/internal/core/domain"
	"github.com/tholander/bagwatch/internal/port"
)

const searchLimit = 10

const helpText = "Commands:\n" +
	"  subscribe <item id> — get pinged when the store has bags again\n" +
	"  unsubscribe <item id>\n" +
	"  list — your subscriptions\n" +
	"  search <store name>\n" +
	"  help"

// CommandService executes parsed user commands against the same store the
// poll loop reconciles into, so subscribe/unsubscribe never race a cycle's
// bulk update outside the transaction boundary.
type CommandService struct {
	items port.ItemRepository
	subs  port.SubscriptionRepository
}

func NewCommandService(items port.ItemRepository, subs port.SubscriptionRepository) *CommandService {
	return &CommandService{items: items, subs: subs}
}

// Execute runs one command for the given Slack user and returns the reply
// text. Errors are internal; callers surface a generic unavailable message.
func (s *CommandService) Execute(ctx context.Context, slackID string, cmd domain.Command) (string, error) {
	switch cmd.Kind {
	case domain.CommandSubscribe:
		return s.subscribe(ctx, slackID, cmd.ItemID)
	case domain.CommandUnsubscribe:
		return s.unsubscribe(ctx, slackID, cmd.ItemID)
	case domain.CommandList:
		return s.list(ctx, slackID)
	case domain.CommandSearch:
		return s.search(ctx, cmd.Query)
	case domain.CommandHelp:
		return helpText, nil
	default:
		return "Sorry, I didn't understand that.\n" + helpText, nil
	}
}

func (s *CommandService) subscribe(ctx context.Context, slackID string, itemID int64) (string, error) {
	user, err := s.subs.GetOrCreateUser(ctx, slackID)
	if err != nil {
		return "", fmt.Errorf("resolve user %s: %w", slackID, err)
	}

	if err := s.subs.Subscribe(ctx, user.ID, itemID); err != nil {
		return "", fmt.Errorf("subscribe user %d to item %d: %w", user.ID, itemID, err)
	}

	log.Printf("commands: user %s subscribed to item %d", slackID, itemID)
	return fmt.Sprintf("Subscribed to %s. You'll get a ping when bags show up.", s.itemLabel(ctx, itemID)), nil
}

func (s *CommandService) unsubscribe(ctx context.Context, slackID string, itemID int64) (string, error) {
	user, err := s.subs.GetOrCreateUser(ctx, slackID)
	if err != nil {
		return "", fmt.Errorf("resolve user %s: %w", slackID, err)
	}

	existed, err := s.subs.Unsubscribe(ctx, user.ID, itemID)
	if err != nil {
		return "", fmt.Errorf("unsubscribe user %d from item %d: %w", user.ID, itemID, err)
	}
	if !existed {
		return fmt.Sprintf("You weren't subscribed to %s.", s.itemLabel(ctx, itemID)), nil
	}

	log.Printf("commands: user %s unsubscribed from item %d", slackID, itemID)
	return fmt.Sprintf("Unsubscribed from %s.", s.itemLabel(ctx, itemID)), nil
}

func (s *CommandService) list(ctx context.Context, slackID string) (string, error) {
	user, err := s.subs.GetOrCreateUser(ctx, slackID)
	if err != nil {
		return "", fmt.Errorf("resolve user %s: %w", slackID, err)
	}

	items, err := s.subs.ListSubscriptions(ctx, user.ID)
	if err != nil {
		return "", fmt.Errorf("list subscriptions for user %d: %w", user.ID, err)
	}
	if len(items) == 0 {
		return "You have no subscriptions. Try `search <store name>`.", nil
	}

	var b strings.Builder
	b.WriteString("Your subscriptions:\n")
	for _, item := range items {
		fmt.Fprintf(&b, "  %s\n", formatItemLine(item))
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (s *CommandService) search(ctx context.Context, query string) (string, error) {
	items, err := s.items.SearchItems(ctx, query, searchLimit)
	if err != nil {
		return "", fmt.Errorf("search %q: %w", query, err)
	}
	if len(items) == 0 {
		return fmt.Sprintf("No stores matching %q.", query), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Stores matching %q:\n", query)
	for _, item := range items {
		fmt.Fprintf(&b, "  %s\n", formatItemLine(item))
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (s *CommandService) itemLabel(ctx context.Context, itemID int64) string {
	item, err := s.items.GetItem(ctx, itemID)
	if err != nil || item == nil || item.DisplayName == "" {
		return fmt.Sprintf("store #%d", itemID)
	}
	return item.DisplayName
}

func formatItemLine(item domain.Item) string {
	name := item.DisplayName
	if name == "" {
		name = fmt.Sprintf("store #%d", item.ID)
	}
	return fmt.Sprintf("#%d %s [%d bags, %s]", item.ID, name, item.Quantity, item.Price())
}
