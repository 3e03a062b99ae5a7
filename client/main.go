package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/mahaj/dupahar-dm/pkg/client"
	"github.com/mahaj/dupahar-dm/pkg/logging"
	"github.com/mahaj/dupahar-dm/pkg/model"
)

func main() {
	apiAddr := flag.String("api", "http://localhost:8080", "server base URL")
	wsAddr := flag.String("ws", "localhost:8080", "server websocket address")
	userID := flag.String("user", "user1", "user id")
	peer := flag.String("peer", "", "user id to open a conversation with")
	flag.Parse()

	log := logging.New("client", "warn")
	ctx := context.Background()

	api := client.NewAPI(*apiAddr)
	if err := api.Login(ctx, *userID); err != nil {
		fmt.Fprintln(os.Stderr, "login failed:", err)
		os.Exit(1)
	}

	sock, err := client.Dial(*wsAddr, api.Token(), log)
	if err != nil {
		fmt.Fprintln(os.Stderr, "dial failed:", err)
		os.Exit(1)
	}
	defer sock.Close()

	agent := client.NewAgent(api, *userID, log)
	agent.Subscribe(sock)
	defer agent.Unsubscribe()

	// A second subscription just for printing; the agent keeps the state.
	releasePrinter := sock.Subscribe(func(ev model.Event) {
		printEvent(ev)
	})
	defer releasePrinter()

	if *peer != "" {
		openConversation(ctx, agent, *peer)
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	go repl(ctx, api, agent, sock)

	select {
	case <-interrupt:
	case <-sock.Done():
		fmt.Println("connection lost")
	}
	// Give the close frame a moment to go out.
	time.Sleep(100 * time.Millisecond)
}

func repl(ctx context.Context, api *client.API, agent *client.Agent, sock *client.Socket) {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":

		case line == "/quit":
			sock.Close()
			return

		case line == "/users":
			users, err := api.ListUsers(ctx)
			if err != nil {
				fmt.Println("error:", err)
				break
			}
			online := agent.Online()
			for _, u := range users {
				marker := " "
				for _, id := range online {
					if id == u.ID {
						marker = "*"
						break
					}
				}
				fmt.Printf("  %s %s (%s)\n", marker, u.Username, u.ID)
			}

		case strings.HasPrefix(line, "/open "):
			openConversation(ctx, agent, strings.TrimSpace(strings.TrimPrefix(line, "/open ")))

		case strings.HasPrefix(line, "/revoke "):
			id, err := strconv.ParseInt(strings.TrimSpace(strings.TrimPrefix(line, "/revoke ")), 10, 64)
			if err != nil {
				fmt.Println("usage: /revoke <message id>")
				break
			}
			if err := agent.Revoke(ctx, id); err != nil {
				fmt.Println("revoke failed, message restored:", err)
			}

		case line == "/typing":
			if agent.Peer() != "" {
				if err := sock.Typing(agent.Peer()); err != nil {
					fmt.Println("error:", err)
				}
			}

		default:
			if agent.Peer() == "" {
				fmt.Println("open a conversation first: /open <user id>")
				break
			}
			msg, err := api.Send(ctx, agent.Peer(), line, nil)
			if err != nil {
				fmt.Println("send failed:", err)
				break
			}
			agent.Append(msg)
		}
		fmt.Print("> ")
	}
}

func openConversation(ctx context.Context, agent *client.Agent, peer string) {
	if err := agent.Open(ctx, peer); err != nil {
		fmt.Println("error:", err)
		return
	}
	for _, m := range agent.Messages() {
		printMessage(m)
	}
}

func printEvent(ev model.Event) {
	switch ev.Type {
	case model.EventNewMessage:
		var msg model.Message
		if json.Unmarshal(ev.Data, &msg) == nil {
			fmt.Print("\r")
			printMessage(&msg)
			fmt.Print("> ")
		}
	case model.EventMessageRevoked:
		var rev model.Revocation
		if json.Unmarshal(ev.Data, &rev) == nil {
			fmt.Printf("\rmessage %d was revoked\n> ", rev.MessageID)
		}
	case model.EventTyping:
		var typing model.TypingData
		if json.Unmarshal(ev.Data, &typing) == nil {
			fmt.Printf("\r%s is typing...\n> ", typing.From)
		}
	case model.EventGetOnlineUsers:
		var online []string
		if json.Unmarshal(ev.Data, &online) == nil {
			fmt.Printf("\ronline: %s\n> ", strings.Join(online, ", "))
		}
	}
}

func printMessage(m *model.Message) {
	if m.Deleted {
		fmt.Printf("[%d] %s: (revoked)\n", m.ID, m.SenderID)
		return
	}
	text := m.Text
	if len(m.Images) > 0 {
		text = fmt.Sprintf("%s %v", text, m.Images)
	}
	fmt.Printf("[%d] %s: %s\n", m.ID, m.SenderID, text)
}
