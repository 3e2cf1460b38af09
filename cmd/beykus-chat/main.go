// ABOUTME: Terminal client for chatting through beykus-gateway
// ABOUTME: Streams answers with the model's reasoning dimmed above the reply

package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/fatih/color"
)

var (
	dim    = color.New(color.Faint)
	red    = color.New(color.FgRed)
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
)

// getToken returns the JWT from BEYKUS_TOKEN or the token file written by
// "beykus-gateway token --save".
func getToken() string {
	if token := os.Getenv("BEYKUS_TOKEN"); token != "" {
		return token
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configDir = filepath.Join(homeDir, ".config")
	}
	data, err := os.ReadFile(filepath.Join(configDir, "beykus", "token"))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func main() {
	server := flag.String("server", "http://localhost:8080", "Gateway server URL")
	chatID := flag.Int64("chat", 0, "Chat to continue (default: create a new one on first message)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	c := newClient(*server, getToken())
	fmt.Printf("beykus-chat connected to %s\n", *server)
	if c.token == "" {
		fmt.Println("Not signed in. Use /login <email> <password> or set BEYKUS_TOKEN.")
	}
	fmt.Println("Type a message and press Enter. /help for commands. Ctrl+C to quit.")
	fmt.Println()

	r := &repl{client: c, chatID: *chatID, out: os.Stdout}
	if err := r.run(ctx, os.Stdin); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("\nGoodbye!")
}

type repl struct {
	client *client
	chatID int64
	out    io.Writer
}

func (r *repl) run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	lines := make(chan string)
	errCh := make(chan error, 1)
	go func() {
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		if err := scanner.Err(); err != nil {
			errCh <- err
			return
		}
		errCh <- io.EOF
	}()

	for {
		if r.chatID != 0 {
			fmt.Fprintf(r.out, "[%d]> ", r.chatID)
		} else {
			fmt.Fprint(r.out, "> ")
		}

		var input string
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		case input = <-lines:
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if input == "/quit" || input == "/exit" || input == "/q" {
			return nil
		}

		var err error
		if strings.HasPrefix(input, "/") {
			err = r.command(ctx, input)
		} else {
			err = r.send(ctx, input)
		}
		if err != nil {
			red.Fprintf(r.out, "[error] %v\n", err)
		}
		fmt.Fprintln(r.out)
	}
}

func (r *repl) command(ctx context.Context, input string) error {
	name, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/help":
		r.printHelp()
	case "/login":
		email, password, ok := strings.Cut(arg, " ")
		if !ok {
			return errors.New("usage: /login <email> <password>")
		}
		if err := r.client.login(ctx, email, strings.TrimSpace(password)); err != nil {
			return err
		}
		green.Fprintln(r.out, "Signed in")
	case "/chats":
		chats, err := r.client.listChats(ctx)
		if err != nil {
			return err
		}
		if len(chats) == 0 {
			fmt.Fprintln(r.out, "No chats yet")
		}
		for _, ch := range chats {
			fmt.Fprintf(r.out, "  %4d  %s ", ch.ID, ch.Title)
			dim.Fprintln(r.out, truncate(ch.LastMessage, 50))
		}
	case "/new":
		ch, err := r.client.createChat(ctx, arg)
		if err != nil {
			return err
		}
		r.chatID = ch.ID
		fmt.Fprintf(r.out, "Created chat %d: %s\n", ch.ID, ch.Title)
	case "/use":
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil || id <= 0 {
			return errors.New("usage: /use <chat id>")
		}
		r.chatID = id
		fmt.Fprintf(r.out, "Now using chat %d\n", id)
	case "/history":
		if r.chatID == 0 {
			return errors.New("no chat selected, use /use <id> or /new")
		}
		msgs, err := r.client.history(ctx, r.chatID)
		if err != nil {
			return err
		}
		r.printHistory(msgs)
	case "/models":
		models, err := r.client.models(ctx)
		if err != nil {
			return err
		}
		for _, m := range models {
			fmt.Fprintf(r.out, "  %-16s ", m.Name)
			dim.Fprintln(r.out, m.ID)
		}
	case "/model":
		if r.chatID == 0 {
			return errors.New("no chat selected, use /use <id> or /new")
		}
		if arg == "" {
			return errors.New("usage: /model <name>")
		}
		name, err := r.client.changeModel(ctx, r.chatID, arg)
		if err != nil {
			return err
		}
		fmt.Fprintf(r.out, "Chat %d now uses %s\n", r.chatID, name)
	case "/reset":
		if r.chatID == 0 {
			return errors.New("no chat selected, use /use <id> or /new")
		}
		if err := r.client.reset(ctx, r.chatID); err != nil {
			return err
		}
		fmt.Fprintln(r.out, "Session reset")
	default:
		return fmt.Errorf("unknown command %s, try /help", name)
	}
	return nil
}

func (r *repl) printHelp() {
	fmt.Fprintln(r.out, "Commands:")
	fmt.Fprintln(r.out, "  /login <email> <pw>  Sign in")
	fmt.Fprintln(r.out, "  /chats               List your chats")
	fmt.Fprintln(r.out, "  /new [title]         Start a new chat")
	fmt.Fprintln(r.out, "  /use <id>            Continue an existing chat")
	fmt.Fprintln(r.out, "  /history             Show the current chat")
	fmt.Fprintln(r.out, "  /models              List models")
	fmt.Fprintln(r.out, "  /model <name>        Switch the current chat's model")
	fmt.Fprintln(r.out, "  /reset               Restart the model session")
	fmt.Fprintln(r.out, "  /quit                Exit")
}

func (r *repl) printHistory(msgs []message) {
	if len(msgs) == 0 {
		fmt.Fprintln(r.out, "No messages yet")
		return
	}
	for _, m := range msgs {
		if !m.IsBot {
			yellow.Fprint(r.out, "you: ")
			fmt.Fprintln(r.out, m.Content)
			continue
		}
		if m.Thoughts != nil {
			dim.Fprintln(r.out, *m.Thoughts)
		}
		green.Fprint(r.out, "bot: ")
		fmt.Fprintln(r.out, m.Content)
	}
}

// send streams one turn, creating a chat first if none is selected.
func (r *repl) send(ctx context.Context, content string) error {
	if r.chatID == 0 {
		ch, err := r.client.createChat(ctx, truncate(content, 40))
		if err != nil {
			return err
		}
		r.chatID = ch.ID
	}

	var streamErr error
	err := r.client.send(ctx, r.chatID, content, func(ev streamEvent) {
		switch {
		case ev.Thoughts != nil:
			dim.Fprintln(r.out, *ev.Thoughts)
		case ev.Content != nil:
			fmt.Fprint(r.out, *ev.Content)
		case ev.Error != nil:
			streamErr = errors.New(*ev.Error)
		case ev.Done:
			fmt.Fprintln(r.out)
		}
	})
	if err != nil {
		return err
	}
	return streamErr
}

// truncate shortens s to maxLen characters, adding "..." if cut.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}
