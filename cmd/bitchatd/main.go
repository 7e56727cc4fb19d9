/*
File Name:  main.go

Reference CLI binding for the core library: a single process joins an
in-memory loopback mesh under a name given on the command line and reads
slash commands from stdin. This stands in for the real BLE transport and
terminal UI, the way the teacher's own command-line tools (Commands.go)
read a line at a time and dispatched on the leading token.
*/

package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	core "github.com/bitchat-go/core"
	"github.com/bitchat-go/core/link"
	"github.com/bitchat-go/core/secretstore"
)

var sharedMesh = link.NewMesh()

func main() {
	if len(os.Args) < 2 {
		fmt.Println("usage: bitchatd <nickname>")
		os.Exit(1)
	}
	nickname := os.Args[1]

	backend, status, err := core.Init("", secretstore.NewMemory())
	if status != core.ExitSuccess {
		fmt.Fprintf(os.Stderr, "init failed: %v\n", err)
		os.Exit(1)
	}
	backend.Config.Nickname = nickname
	backend.Log.Subscribe(os.Stderr)

	backend.Connect(sharedMesh.Join(nickname))
	defer backend.Shutdown()

	events, _ := backend.SubscribeEvents(32)
	go printEvents(events)

	fmt.Printf("bitchat-go: joined as %s. Commands: /m <fp> <text>, /j #channel, /pass #channel <pw>, /rooms, /fav <fp>, /clear, /quit\n", nickname)
	repl(backend)
}

func printEvents(events <-chan core.Event) {
	for ev := range events {
		switch ev.Kind {
		case core.EventMessage:
			m := ev.Message
			if m.Channel != "" {
				fmt.Printf("[%s] %s: %s\n", m.Channel, m.SenderNickname, m.Content)
			} else {
				fmt.Printf("<%s> %s\n", m.SenderNickname, m.Content)
			}
		case core.EventPeerDiscovered:
			fmt.Printf("* %s (%s) joined\n", ev.Nickname, ev.Fingerprint)
		case core.EventPeerLost:
			fmt.Printf("* peer %x disconnected\n", ev.PeerID)
		case core.EventDeliveryUpdate:
			fmt.Printf("* delivery update: %v\n", ev.Status.State)
		case core.EventChannelMetadata:
			fmt.Printf("* channel %s metadata updated\n", ev.Channel.Channel)
		}
	}
}

var joinedChannels = map[string]bool{}

func repl(backend *core.Backend) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "/") {
			broadcastToJoinedChannels(backend, line)
			continue
		}
		dispatchCommand(backend, line)
	}
}

func broadcastToJoinedChannels(backend *core.Backend, text string) {
	if len(joinedChannels) == 0 {
		if _, err := backend.SendPublic(text, nil, ""); err != nil {
			fmt.Fprintf(os.Stderr, "send: %v\n", err)
		}
		return
	}
	for channel := range joinedChannels {
		if _, err := backend.SendPublic(text, nil, channel); err != nil {
			fmt.Fprintf(os.Stderr, "send to %s: %v\n", channel, err)
		}
	}
}

func dispatchCommand(backend *core.Backend, line string) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/j":
		if len(fields) < 2 {
			fmt.Println("usage: /j #channel")
			return
		}
		joinedChannels[fields[1]] = true
		fmt.Printf("joined %s\n", fields[1])

	case "/rooms":
		for channel := range joinedChannels {
			fmt.Println(channel)
		}

	case "/m":
		if len(fields) < 3 {
			fmt.Println("usage: /m <fingerprint> <text>")
			return
		}
		text := strings.Join(fields[2:], " ")
		if _, err := backend.SendPrivate(context.Background(), fields[1], text); err != nil {
			fmt.Fprintf(os.Stderr, "send private: %v\n", err)
		}

	case "/pass":
		if len(fields) < 3 {
			fmt.Println("usage: /pass #channel <password>")
			return
		}
		if err := backend.SetChannelPassword(context.Background(), fields[1], strings.Join(fields[2:], " ")); err != nil {
			fmt.Fprintf(os.Stderr, "set password: %v\n", err)
		}

	case "/fav":
		if len(fields) < 2 {
			fmt.Println("usage: /fav <fingerprint>")
			return
		}
		fmt.Printf("favorite=%v\n", backend.ToggleFavorite(fields[1]))

	case "/block":
		if len(fields) < 2 {
			fmt.Println("usage: /block <fingerprint>")
			return
		}
		backend.Block(fields[1])

	case "/clear":
		fmt.Print("\033[H\033[2J")

	case "/wipe":
		backend.PanicWipe()
		fmt.Println("panic wipe complete")

	case "/quit":
		os.Exit(0)

	default:
		fmt.Printf("unknown command: %s\n", fields[0])
	}
}
