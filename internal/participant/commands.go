package participant

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Tayyab-Ali-786/Chattify/internal/datachannel"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrUsage          = errors.New("usage")
)

type commandKind int

const (
	cmdNone commandKind = iota
	cmdChat
	cmdSend
	cmdBoard
	cmdDraw
	cmdPeers
	cmdHelp
	cmdQuit
)

type command struct {
	kind    commandKind
	text    string
	paths   []string
	open    bool
	point   datachannel.Point
	penDown bool
}

const helpText = `Commands:
  <text>            chat with everyone in the room
  /send <path>...   send files to every connected peer
  /board on|off     open or close the shared whiteboard
  /draw x y [up]    draw at x,y (0..1, or pixels on 800x600); "up" lifts the pen
  /peers            list peers
  /quit             leave the room`

// parseCommand turns one input line into a command. Lines not starting with
// a slash are chat.
func parseCommand(line string) (command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return command{kind: cmdNone}, nil
	}
	if !strings.HasPrefix(line, "/") {
		return command{kind: cmdChat, text: line}, nil
	}

	fields := strings.Fields(line)
	args := fields[1:]

	switch strings.ToLower(fields[0]) {
	case "/send":
		if len(args) == 0 {
			return command{}, fmt.Errorf("%w: /send <path>...", ErrUsage)
		}
		return command{kind: cmdSend, paths: args}, nil

	case "/board":
		if len(args) != 1 {
			return command{}, fmt.Errorf("%w: /board on|off", ErrUsage)
		}
		switch strings.ToLower(args[0]) {
		case "on", "open":
			return command{kind: cmdBoard, open: true}, nil
		case "off", "close":
			return command{kind: cmdBoard, open: false}, nil
		}
		return command{}, fmt.Errorf("%w: /board on|off", ErrUsage)

	case "/draw":
		return parseDraw(args)

	case "/peers", "/who":
		return command{kind: cmdPeers}, nil

	case "/help", "/?":
		return command{kind: cmdHelp}, nil

	case "/quit", "/exit", "/leave":
		return command{kind: cmdQuit}, nil
	}

	return command{}, fmt.Errorf("%w: %s", ErrUnknownCommand, fields[0])
}

func parseDraw(args []string) (command, error) {
	usage := fmt.Errorf("%w: /draw x y [up]", ErrUsage)
	if len(args) < 2 || len(args) > 3 {
		return command{}, usage
	}

	x, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return command{}, usage
	}
	y, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return command{}, usage
	}

	penDown := true
	if len(args) == 3 {
		if !strings.EqualFold(args[2], "up") {
			return command{}, usage
		}
		penDown = false
	}

	return command{kind: cmdDraw, point: datachannel.Point{X: x, Y: y}, penDown: penDown}, nil
}
