package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/cwrk-planet/chat-service/internal/attachment"
	"github.com/cwrk-planet/chat-service/internal/chatclient"
	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/logger"
	"github.com/cwrk-planet/chat-service/internal/poller"
)

func main() {
	var (
		baseURL  = flag.String("url", envOr("CHAT_URL", "http://localhost:3001"), "chat-service base URL")
		token    = flag.String("token", os.Getenv("CHAT_TOKEN"), "bearer token")
		me       = flag.String("me", os.Getenv("CHAT_USER"), "own user id")
		peer     = flag.String("peer", "", "conversation partner user id")
		interval = flag.Duration("interval", poller.DefaultInterval, "poll interval")
	)
	flag.Parse()

	logger.InitWriter(logger.Config{Service: "chat-cli", Level: logger.ParseLevel(os.Getenv("LOG_LEVEL"))}, os.Stderr)

	if *token == "" || *me == "" {
		fmt.Fprintln(os.Stderr, "usage: chat-cli -token <jwt> -me <userId> [-peer <userId>]")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cli := chatclient.New(*baseURL, chatclient.Credentials{Token: *token, UserID: domain.UserID(*me)})

	if *peer == "" {
		if err := printUsers(ctx, cli); err != nil {
			fail(err)
		}
		return
	}

	pr := &printer{me: cli.Me(), seen: map[domain.MessageID]struct{}{}}
	p := poller.New(cli, domain.UserID(*peer), poller.Config{
		Interval: *interval,
		OnChange: pr.print,
	})
	if err := p.Start(ctx); err != nil {
		slog.Warn("initial load failed, retrying in background", slog.Any("err", err))
	}
	defer p.Stop()

	lines := make(chan string)
	go func() {
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if quit := handleLine(ctx, p, line); quit {
				return
			}
		}
	}
}

// handleLine: текст отправляется как есть, команды начинаются с "/".
func handleLine(ctx context.Context, p *poller.Poller, line string) bool {
	cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	arg = strings.TrimSpace(arg)

	var err error
	switch cmd {
	case "":
		return false
	case "/quit", "/q":
		return true
	case "/img":
		// с диска тип известен по сигнатуре, не-картинки не отправляем
		var content string
		if content, err = attachment.EncodeFile(arg); err == nil {
			_, err = p.Send(ctx, content)
		}
	case "/del":
		err = p.Delete(ctx, domain.MessageID(arg))
	case "/sync":
		err = p.Sync(ctx)
	default:
		_, err = p.Send(ctx, line)
	}

	if err != nil {
		if apiErr, ok := chatclient.AsAPIError(err); ok && apiErr.IsAuth() {
			fmt.Fprintln(os.Stderr, "! session expired, get a new token")
			return true
		}
		fmt.Fprintf(os.Stderr, "! %v\n", err)
	}
	return false
}

type printer struct {
	me domain.UserID

	mu   sync.Mutex
	seen map[domain.MessageID]struct{}
}

// print выводит только сообщения, которых ещё не было на экране.
func (pr *printer) print(view []domain.Message) {
	pr.mu.Lock()
	defer pr.mu.Unlock()

	for _, m := range view {
		if _, ok := pr.seen[m.ID]; ok {
			continue
		}
		pr.seen[m.ID] = struct{}{}

		who := string(m.SenderID)
		if m.Sender != nil && m.Sender.Username != "" {
			who = m.Sender.Username
		}
		if m.SenderID == pr.me {
			who = "you"
		}

		body := m.Content
		if attachment.IsImage(body) {
			mime, raw, err := attachment.Decode(body)
			if err == nil {
				body = fmt.Sprintf("[image %s, %d bytes]", mime, len(raw))
			} else {
				body = "[image]"
			}
		}
		fmt.Printf("%s %s (%s): %s\n", m.CreatedAt.Local().Format(time.Kitchen), who, m.ID, body)
	}
}

func printUsers(ctx context.Context, cli *chatclient.Client) error {
	users, err := cli.ListUsers(ctx)
	if err != nil {
		return err
	}
	for _, u := range users {
		fmt.Printf("%s\t%s\n", u.ID, u.Username)
	}
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "chat-cli: %v\n", err)
	os.Exit(1)
}
