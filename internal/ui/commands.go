package ui

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"peerdrop/internal/registry"
	"peerdrop/pkg/utils"
)

var (
	ErrUnknownCommand  = errors.New("unknown command")
	ErrMissingArgument = errors.New("missing argument")
)

// CommandKind identifies an interactive command
type CommandKind int

const (
	CommandSend CommandKind = iota + 1
	CommandCancel
	CommandList
	CommandHelp
	CommandQuit
)

// Command is one parsed line of user input
type Command struct {
	Kind CommandKind
	Arg  string
}

// Usage lists the interactive commands
const Usage = `Commands:
  send <path>     send a file to the peer
  cancel <name>   cancel an outgoing transfer
  ls              list transfers
  help            show this help
  quit            close the connection and exit`

// ParseCommand parses one input line. The argument is the rest of the line,
// so paths may contain spaces; surrounding quotes are removed.
func ParseCommand(line string) (Command, error) {
	verb, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	arg = unquote(strings.TrimSpace(arg))

	var kind CommandKind
	switch strings.ToLower(verb) {
	case "send", "s":
		kind = CommandSend
	case "cancel", "c":
		kind = CommandCancel
	case "ls", "list":
		return Command{Kind: CommandList}, nil
	case "help", "?":
		return Command{Kind: CommandHelp}, nil
	case "quit", "exit", "q":
		return Command{Kind: CommandQuit}, nil
	default:
		return Command{}, fmt.Errorf("%w: %q", ErrUnknownCommand, verb)
	}

	if arg == "" {
		return Command{}, fmt.Errorf("%w: %s needs a file", ErrMissingArgument, verb)
	}
	return Command{Kind: kind, Arg: arg}, nil
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}

// WriteTransfers renders the transfer table shown by the ls command
func WriteTransfers(w io.Writer, outbound []registry.OutboundTransfer, inbound []registry.InboundTransfer) error {
	if len(outbound) == 0 && len(inbound) == 0 {
		_, err := fmt.Fprintln(w, "No transfers")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DIRECTION\tFILE\tSIZE\tPROGRESS\tSTATUS")
	for _, t := range outbound {
		fmt.Fprintf(tw, "send\t%s\t%s\t%d%%\t%s\n",
			t.FileName, utils.FormatFileSize(t.TotalSize), t.Progress, t.Status)
	}
	for _, t := range inbound {
		fmt.Fprintf(tw, "receive\t%s\t%s\t%d%%\t%s\n",
			t.FileName, utils.FormatFileSize(t.BytesReceived), t.Progress, t.Status)
	}
	return tw.Flush()
}
