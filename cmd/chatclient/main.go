package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/oauth2"

	"tutorlink/internal/client"
	"tutorlink/internal/domain/entity"
	"tutorlink/internal/infrastructure/auth"
)

var (
	chatID   string
	withUser string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "chatclient",
		Short: "Terminal client for TutorLink chats",
		RunE:  runClient,
	}

	cobra.OnInitialize(loadConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./configs/client.yaml)")
	rootCmd.Flags().StringVarP(&chatID, "chat", "c", "", "id of the chat to open")
	rootCmd.Flags().StringVarP(&withUser, "with", "w", "", "open the direct chat with this user, creating it if needed")
	rootCmd.Flags().StringP("user", "u", "", "your user id")
	viper.BindPFlag("auth.user_id", rootCmd.Flags().Lookup("user"))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func tokenSource() oauth2.TokenSource {
	switch {
	case cfg.Auth.Token != "":
		return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Auth.Token, TokenType: "Bearer"})
	case cfg.Auth.DevSecret != "":
		return auth.NewDevTokens(cfg.Auth.DevSecret, cfg.Auth.DevTokenTTL).TokenSource(cfg.Auth.UserID)
	default:
		return client.RemoteDevTokenSource(cfg.Server.APIURL, cfg.Auth.UserID, nil)
	}
}

func runClient(cmd *cobra.Command, args []string) error {
	if cfg.Auth.UserID == "" {
		return fmt.Errorf("a user id is required (--user or auth.user_id)")
	}
	if chatID == "" && withUser == "" {
		return fmt.Errorf("one of --chat or --with is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sessionCfg := client.Config{
		ServerURL:       cfg.Server.URL,
		APIURL:          cfg.Server.APIURL,
		UserID:          cfg.Auth.UserID,
		TokenSource:     tokenSource(),
		TypingStopDelay: cfg.Typing.StopDelay,
	}

	if chatID == "" {
		id, err := client.StartChat(ctx, sessionCfg, withUser, entity.ChatTypeDirect)
		if err != nil {
			return fmt.Errorf("start chat with %s: %w", withUser, err)
		}
		chatID = id
	}

	session := client.NewSession(sessionCfg)
	defer session.Close()

	view := newTranscript(cfg.Auth.UserID)
	session.OnMessages = view.render
	session.OnTyping = func(userID string, isTyping bool) {
		if isTyping {
			printLine("%s is typing...", userID)
		}
	}
	session.OnPresence = func(userID string, online bool) {
		state := "offline"
		if online {
			state = "online"
		}
		printLine("%s is %s", userID, state)
	}
	session.OnError = func(err error) {
		printLine("[ERROR] %v", err)
	}

	openCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	err := session.Open(openCtx, chatID)
	cancel()
	if err != nil {
		return fmt.Errorf("open chat %s: %w", chatID, err)
	}

	for _, p := range session.Participants() {
		status := "offline"
		if p.IsOnline {
			status = "online"
		}
		fmt.Printf("  %s (%s, %s)\n", p.DisplayName, p.ID, status)
	}
	view.render(session.Messages())
	fmt.Println("Type a message, or /edit <id> <text>, /delete <id>, /read, /quit")
	fmt.Print("> ")

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := handleLine(ctx, session, view, strings.TrimSpace(line)); quit {
				return nil
			}
			fmt.Print("> ")
		}
	}
}

func handleLine(ctx context.Context, session *client.Session, view *transcript, line string) bool {
	if line == "" {
		return false
	}

	fields := strings.SplitN(line, " ", 3)
	var err error

	switch fields[0] {
	case "/quit":
		return true
	case "/edit":
		if len(fields) < 3 {
			printLine("[ERROR] usage: /edit <id> <text>")
			return false
		}
		err = session.Edit(fields[1], fields[2])
	case "/delete":
		if len(fields) < 2 {
			printLine("[ERROR] usage: /delete <id>")
			return false
		}
		err = session.Delete(ctx, fields[1])
		if err == nil {
			view.render(session.Messages())
		}
	case "/read":
		err = session.MarkRead()
	default:
		_, err = session.Send(line)
		if err == nil {
			view.render(session.Messages())
		}
	}

	if err != nil {
		printLine("[ERROR] %v", err)
	}
	return false
}

func printLine(format string, args ...interface{}) {
	fmt.Printf("\r"+format+"\n> ", args...)
}
