package cli

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

	"github.com/eaili5/eaili5/internal/api"
	"github.com/eaili5/eaili5/internal/chat"
	"github.com/eaili5/eaili5/internal/config"
	"github.com/eaili5/eaili5/internal/domain"
	"github.com/eaili5/eaili5/internal/session"
	"github.com/eaili5/eaili5/internal/store"
	"github.com/eaili5/eaili5/internal/ws"
)

func newChatCmd() *cobra.Command {
	var identity string

	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Chat with the eaili5 AI explainer",
		Long:  "Starts an interactive chat session. With a message argument, sends it, prints the streamed answer, and exits.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			if identity == "" {
				identity = cfg.Session.Identity
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := paths.EnsureDirs(); err != nil {
				return err
			}
			db, err := store.Open(storePath(cfg), log)
			if err != nil {
				return err
			}
			defer db.Close()

			apiClient := api.New(cfg.API, log)
			neg := session.NewNegotiator(apiClient, db, log)

			token, err := neg.GetOrCreateWithRetry(ctx, identity)
			if err != nil {
				return fmt.Errorf("session negotiation failed: %w", err)
			}

			level, err := db.LearningLevel(cfg.Session.LearningLevel)
			if err != nil {
				level = cfg.Session.LearningLevel
			}

			r := newTurnRenderer(cmd)
			client := chat.NewClient(&ws.GorillaDialer{}, cfg.Chat.Endpoint, r.callbacks(), log)
			if err := client.Connect(ctx); err != nil {
				return err
			}
			defer client.Close()

			if len(args) > 0 {
				message := strings.Join(args, " ")
				return runTurn(ctx, client, neg, db, identity, token, level, message, r)
			}

			fmt.Printf("Connected as %s (learning level %d). Type a question, or \"exit\" to quit.\n", identity, level)
			scanner := bufio.NewScanner(os.Stdin)
			for {
				fmt.Print("> ")
				if !scanner.Scan() {
					return scanner.Err()
				}
				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					continue
				}
				if line == "exit" || line == "quit" {
					return nil
				}
				if err := runTurn(ctx, client, neg, db, identity, token, level, line, r); err != nil {
					if ctx.Err() != nil {
						return nil
					}
					fmt.Println(downStyle.Render("error: " + err.Error()))
				}
				// the negotiator may have refreshed the token mid-turn
				if t, err := neg.GetOrCreate(ctx, identity); err == nil {
					token = t
				}
			}
		},
	}

	cmd.Flags().StringVar(&identity, "identity", "", "identity to chat as (default from config)")

	cmd.AddCommand(newChatHistoryCmd())
	cmd.AddCommand(newChatClearCmd())
	return cmd
}

// runTurn sends one message and blocks until the turn completes. If the
// backend rejects the session, the token is refreshed and the message
// resent once.
func runTurn(ctx context.Context, client *chat.Client, neg *session.Negotiator, db *store.DB, identity, token string, level int, message string, r *turnRenderer) error {
	err := sendAndWait(ctx, client, token, identity, level, message, r)
	if err != nil && session.IsSessionError(err) {
		log.Warn().Err(err).Msg("session rejected, refreshing and resending")
		token, err = neg.Refresh(ctx, identity)
		if err != nil {
			return err
		}
		err = sendAndWait(ctx, client, token, identity, level, message, r)
	}
	if err != nil {
		return err
	}

	if dbErr := db.AppendChatMessage(identity, domain.ChatMessage{
		Role: domain.RoleUser, Content: message, Timestamp: time.Now(),
	}); dbErr != nil {
		log.Warn().Err(dbErr).Msg("failed to persist user message")
	}
	if last := r.lastResult(); last != nil {
		if dbErr := db.AppendChatMessage(identity, domain.ChatMessage{
			Role: domain.RoleAssistant, Content: last.Content, Timestamp: time.Now(),
		}); dbErr != nil {
			log.Warn().Err(dbErr).Msg("failed to persist assistant message")
		}
	}
	return nil
}

func sendAndWait(ctx context.Context, client *chat.Client, token, identity string, level int, message string, r *turnRenderer) error {
	r.reset()
	if _, err := client.Send(message, identity, token, level); err != nil {
		return err
	}
	select {
	case err := <-r.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// turnRenderer prints streamed turn events and signals completion.
type turnRenderer struct {
	cmd    *cobra.Command
	done   chan error
	result *domain.TurnResult
}

func newTurnRenderer(cmd *cobra.Command) *turnRenderer {
	return &turnRenderer{cmd: cmd, done: make(chan error, 1)}
}

func (r *turnRenderer) reset() {
	r.done = make(chan error, 1)
	r.result = nil
}

func (r *turnRenderer) lastResult() *domain.TurnResult { return r.result }

func (r *turnRenderer) callbacks() chat.Callbacks {
	return chat.Callbacks{
		OnChunk: func(turnID, chunk string) {
			fmt.Fprint(r.cmd.OutOrStdout(), chunk)
		},
		OnStatus: func(a domain.AgentActivity) {
			fmt.Fprintln(r.cmd.ErrOrStderr(), dimStyle.Render(
				fmt.Sprintf("  [%s] %s", agentStyle.Render(a.Agent), a.Status)))
		},
		OnComplete: func(turnID string, result domain.TurnResult) {
			r.result = &result
			fmt.Fprintln(r.cmd.OutOrStdout())
			for _, s := range result.Suggestions {
				fmt.Fprintln(r.cmd.OutOrStdout(), suggestionStyle.Render("  ? "+s))
			}
			r.done <- nil
		},
		OnError: func(turnID string, err error) {
			r.done <- err
		},
	}
}

func newChatHistoryCmd() *cobra.Command {
	var (
		identity string
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show stored chat history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			if identity == "" {
				identity = cfg.Session.Identity
			}

			if err := paths.EnsureDirs(); err != nil {
				return err
			}
			db, err := store.Open(storePath(cfg), log)
			if err != nil {
				return err
			}
			defer db.Close()

			msgs, err := db.ChatHistory(identity, limit)
			if err != nil {
				return err
			}
			for _, m := range msgs {
				prefix := "you"
				if m.Role == domain.RoleAssistant {
					prefix = "eaili5"
				}
				fmt.Printf("%s %s: %s\n",
					dimStyle.Render(m.Timestamp.Format("15:04")),
					headerStyle.Render(prefix), m.Content)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&identity, "identity", "", "identity whose history to show")
	cmd.Flags().IntVar(&limit, "limit", 50, "max messages to show")
	return cmd
}

func newChatClearCmd() *cobra.Command {
	var identity string

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete stored chat history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			if identity == "" {
				identity = cfg.Session.Identity
			}

			if err := paths.EnsureDirs(); err != nil {
				return err
			}
			db, err := store.Open(storePath(cfg), log)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.ClearChatHistory(identity); err != nil {
				return err
			}
			fmt.Println("History cleared.")
			return nil
		},
	}

	cmd.Flags().StringVar(&identity, "identity", "", "identity whose history to clear")
	return cmd
}

// storePath resolves the sqlite path, preferring config over the
// default state file.
func storePath(cfg config.Config) string {
	if cfg.Store.Path != "" {
		return cfg.Store.Path
	}
	return paths.State
}
