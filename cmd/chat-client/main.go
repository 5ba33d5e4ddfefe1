package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/omochice/counsel-chat/internal/chat"
	"github.com/omochice/counsel-chat/internal/client"
	"github.com/omochice/counsel-chat/internal/config"
	"github.com/omochice/counsel-chat/internal/domain"
	"github.com/omochice/counsel-chat/internal/history"
	"github.com/omochice/counsel-chat/internal/log"
	"github.com/omochice/counsel-chat/internal/transport"
	"github.com/omochice/counsel-chat/internal/transport/gobwas"
	"github.com/omochice/counsel-chat/internal/transport/ws"
	"github.com/omochice/counsel-chat/pkg/stomp"
)

func main() {
	configPath := flag.String("config", "", "Directory containing config.yaml")
	baseURL := flag.String("server", "", "Backend base URL (overrides chat.base_url)")
	userID := flag.Int64("user", 0, "User id")
	counselorID := flag.Int64("counselor", 0, "Counselor id")
	role := flag.String("role", string(stomp.SenderUser), "Side to speak for: USER or COUNSELOR")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger := log.L()
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Log.ServiceName == "" {
		cfg.Log.ServiceName = "chat-client"
	}
	log.Init(cfg.Log)
	logger := log.L()

	if *userID <= 0 || *counselorID <= 0 {
		logger.Fatal().Msg("-user and -counselor are required")
	}
	senderType := stomp.SenderType(strings.ToUpper(*role))
	if senderType != stomp.SenderUser && senderType != stomp.SenderCounselor {
		logger.Fatal().Str("role", *role).Msg("role must be USER or COUNSELOR")
	}
	if *baseURL != "" {
		cfg.Chat.BaseURL = *baseURL
	}

	session := client.New(cfg.Chat.BaseURL, newDialer(cfg.Transport),
		client.WithPath(cfg.Chat.WSPath),
		client.WithLogger(logger),
	)
	fetcher := history.New(cfg.Chat.BaseURL,
		history.WithLimit(cfg.History.Limit),
		history.WithTimeout(cfg.History.Timeout),
		history.WithLogger(logger),
	)
	room := chat.NewRoom(*userID, *counselorID, session,
		chat.WithRole(senderType),
		chat.WithHistory(fetcher),
		chat.WithLogger(logger),
	)
	defer room.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go printEvents(room, senderType)

	if err := room.Open(ctx); err != nil {
		logger.Error().Err(err).Msg("failed to open chat")
		return
	}

	fmt.Println("Type your messages (or 'quit' to exit):")
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		if err := scanner.Err(); err != nil {
			logger.Error().Err(err).Msg("error reading input")
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			text := strings.TrimSpace(line)
			if text == "" {
				continue
			}
			if text == "quit" || text == "exit" {
				return
			}
			// Failures are also delivered as events.
			_ = room.Send(ctx, text)
		}
	}
}

func newDialer(cfg config.TransportConfig) transport.Dialer {
	opts := transport.Options{
		ConnectTimeout: cfg.ConnectTimeout,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
	}

	var d transport.Dialer
	switch cfg.Driver {
	case config.DriverGobwas:
		d = gobwas.NewDialer(opts)
	default:
		d = ws.NewDialer(opts)
	}

	if cfg.RetryOnFailure {
		d = transport.NewRetryDialer(d, cfg.MaxRetries, cfg.RetryInterval)
	}
	return d
}

func printEvents(room *chat.Room, self stomp.SenderType) {
	for ev := range room.Events() {
		switch ev.Type {
		case chat.EventConnected:
			fmt.Println("*** connected ***")
		case chat.EventHistoryLoaded:
			for _, m := range room.Messages() {
				printMessage(m, self)
			}
		case chat.EventMessage:
			if ev.Message.SenderType != string(self) {
				printMessage(ev.Message, self)
			}
		case chat.EventError:
			fmt.Printf("!!! %s\n", ev.Error)
		}
	}
}

func printMessage(m domain.DisplayMessage, self stomp.SenderType) {
	who := strings.ToLower(m.SenderType)
	if m.SenderType == string(self) {
		who = "me"
	}
	fmt.Printf("[%s] %s: %s\n", chat.FormatClock(m.SentTime), who, m.Content)
}
