// Verifies the full send/deliver/revoke flow against a running server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/mahaj/dupahar-dm/pkg/client"
	"github.com/mahaj/dupahar-dm/pkg/logging"
)

func main() {
	apiAddr := flag.String("api", "http://localhost:8080", "server base URL")
	wsAddr := flag.String("ws", "localhost:8080", "server websocket address")
	flag.Parse()

	log := logging.New("verify-api", "info")
	ctx := context.Background()

	sender := client.NewAPI(*apiAddr)
	if err := sender.Login(ctx, "verify_a"); err != nil {
		fail("login verify_a: %v", err)
	}
	receiver := client.NewAPI(*apiAddr)
	if err := receiver.Login(ctx, "verify_b"); err != nil {
		fail("login verify_b: %v", err)
	}

	// Receiver online, watching for pushes through the agent.
	sock, err := client.Dial(*wsAddr, receiver.Token(), log)
	if err != nil {
		fail("dial: %v", err)
	}
	defer sock.Close()

	agent := client.NewAgent(receiver, "verify_b", log)
	agent.Subscribe(sock)
	if err := agent.Open(ctx, "verify_a"); err != nil {
		fail("open: %v", err)
	}

	msg, err := sender.Send(ctx, "verify_b", "hello from verify", nil)
	if err != nil {
		fail("send: %v", err)
	}
	log.Info().Int64("message_id", msg.ID).Msg("message sent")

	waitFor(func() bool {
		msgs := agent.Messages()
		return len(msgs) > 0 && msgs[len(msgs)-1].ID == msg.ID
	}, "newMessage push")
	log.Info().Msg("newMessage push received")

	if err := sender.Revoke(ctx, msg.ID); err != nil {
		fail("revoke: %v", err)
	}

	waitFor(func() bool {
		for _, m := range agent.Messages() {
			if m.ID == msg.ID && m.Deleted {
				return true
			}
		}
		return false
	}, "messageRevoked push")
	log.Info().Msg("messageRevoked push received, tombstone applied")

	// The receiver must not be able to revoke the sender's messages.
	msg2, err := sender.Send(ctx, "verify_b", "second", nil)
	if err != nil {
		fail("send: %v", err)
	}
	if err := receiver.Revoke(ctx, msg2.ID); err == nil {
		fail("foreign revoke unexpectedly succeeded")
	}
	log.Info().Msg("foreign revoke rejected")

	fmt.Println("OK")
}

func waitFor(cond func() bool, what string) {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	fail("timed out waiting for %s", what)
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
