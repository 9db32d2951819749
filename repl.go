package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"parley/internal/client"
	"parley/internal/models"
)

var errLoggedOut = errors.New("logged out")

// repl is a thin wiring harness around the engine: it forwards typed
// lines as commands or sends and echoes engine updates. It is not a UI.
func repl(ctx context.Context, engine *client.Engine, self models.User) error {
	fmt.Printf("parley — logged in as %s. /help for commands.\n", self.DisplayName())

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case update := <-engine.Updates():
			if err := printUpdate(engine, self, update); err != nil {
				return err
			}

		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if err := handleLine(engine, self, line); err != nil {
				if errors.Is(err, errLoggedOut) {
					return nil
				}
				return err
			}
		}
	}
}

func printUpdate(engine *client.Engine, self models.User, update client.Update) error {
	switch update.Kind {
	case client.UpdateAuthExpired:
		fmt.Println("session expired; run with -login <email>")
		return errLoggedOut

	case client.UpdateMessages:
		messages := engine.Messages()
		if len(messages) == 0 {
			return nil
		}
		last := messages[len(messages)-1]
		marker := ""
		if last.State == models.MessagePending {
			marker = " …"
		}
		name := last.SenderName
		if last.Sender == self.ID {
			name = "you"
		}
		if name == "" {
			name = last.Sender
		}
		fmt.Printf("[%s] %s: %s%s\n", last.Timestamp.Format("15:04"), name, last.Content, marker)

	case client.UpdateTyping:
		if engine.PeerTyping() {
			fmt.Println("… typing")
		}
	}
	return nil
}

func handleLine(engine *client.Engine, self models.User, line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	if !strings.HasPrefix(line, "/") {
		engine.Typing()
		engine.Send(line)
		return nil
	}

	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch cmd {
	case "/help":
		fmt.Println("/chats  /open <n|id>  /close  /search <text>  /dm <userId>  /group <name> <userId...>  /rewrite <style> <text>  /logout  /quit")

	case "/chats":
		for i, c := range engine.Conversations() {
			status := ""
			if other, ok := c.Other(self.ID); ok && engine.IsOnline(other.ID) {
				status = " (online)"
			}
			preview := ""
			if c.LastMessage != nil {
				preview = " — " + c.LastMessage.Content
			}
			fmt.Printf("%2d. %s%s%s\n", i+1, c.DisplayName(self.ID), status, preview)
		}

	case "/open":
		if rest == "" {
			fmt.Println("usage: /open <n|id>")
			return nil
		}
		id := rest
		if n, err := strconv.Atoi(rest); err == nil {
			conversations := engine.Conversations()
			if n < 1 || n > len(conversations) {
				fmt.Println("no such chat")
				return nil
			}
			id = conversations[n-1].ID
		}
		engine.Open(id)

	case "/close":
		engine.CloseConversation()

	case "/search":
		engine.Search(rest, func(users []models.User, err error) {
			if err != nil {
				fmt.Printf("search failed: %v\n", err)
				return
			}
			for _, u := range users {
				fmt.Printf("  %s <%s>  id=%s\n", u.DisplayName(), u.Email, u.ID)
			}
		})

	case "/dm":
		if rest == "" {
			fmt.Println("usage: /dm <userId>")
			return nil
		}
		engine.StartDirect(rest)

	case "/group":
		fields := strings.Fields(rest)
		if len(fields) < 2 {
			fmt.Println("usage: /group <name> <userId...>")
			return nil
		}
		engine.StartGroup(fields[0], fields[1:])

	case "/rewrite":
		style, text, _ := strings.Cut(rest, " ")
		text = strings.TrimSpace(text)
		if style == "" || text == "" {
			fmt.Println("usage: /rewrite <style> <text>  (e.g. /rewrite professional can u send the report)")
			return nil
		}
		engine.Rewrite(text, style, func(rewritten string, err error) {
			if err != nil {
				fmt.Printf("rewrite failed: %v\n", err)
				return
			}
			fmt.Printf("rewritten: %s\n", rewritten)
		})

	case "/logout":
		engine.Logout()
		return errLoggedOut

	case "/quit":
		return errLoggedOut

	default:
		fmt.Println("unknown command; /help")
	}
	return nil
}
