package domain

import (
	"strconv"
	"strings"
)

type CommandKind int

const (
	CommandUnknown CommandKind = iota
	CommandSubscribe
	CommandUnsubscribe
	CommandList
	CommandSearch
	CommandHelp
)

// Command is one parsed user instruction. Kind selects the variant; ItemID is
// set for Subscribe/Unsubscribe, Query for Search.
type Command struct {
	Kind   CommandKind
	ItemID int64
	Query  string
}

// ParseCommand parses raw slash-command text into a Command. Unrecognized
// input, including subscribe/unsubscribe without a numeric item id, yields
// CommandUnknown.
func ParseCommand(text string) Command {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 {
		return Command{Kind: CommandHelp}
	}

	verb := strings.ToLower(fields[0])
	args := fields[1:]

	switch verb {
	case "subscribe", "sub":
		if id, ok := parseItemID(args); ok {
			return Command{Kind: CommandSubscribe, ItemID: id}
		}
	case "unsubscribe", "unsub":
		if id, ok := parseItemID(args); ok {
			return Command{Kind: CommandUnsubscribe, ItemID: id}
		}
	case "list":
		if len(args) == 0 {
			return Command{Kind: CommandList}
		}
	case "search":
		if len(args) > 0 {
			return Command{Kind: CommandSearch, Query: strings.Join(args, " ")}
		}
	case "help":
		return Command{Kind: CommandHelp}
	}

	return Command{Kind: CommandUnknown}
}

func parseItemID(args []string) (int64, bool) {
	if len(args) != 1 {
		return 0, false
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
