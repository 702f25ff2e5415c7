package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/research-desk/backend/internal/config"
	"github.com/zhouzirui/research-desk/backend/internal/model/assistant"
	"github.com/zhouzirui/research-desk/backend/internal/model/chat"
	"github.com/zhouzirui/research-desk/backend/internal/service/ai"
	chatservice "github.com/zhouzirui/research-desk/backend/internal/service/chat"
	"github.com/zhouzirui/research-desk/backend/internal/service/search"
	"github.com/zhouzirui/research-desk/backend/internal/service/turn"
	"github.com/zhouzirui/research-desk/backend/pkg/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

type probe struct {
	cfg   *config.Config
	tools []search.Tool
}

func newRootCmd() *cobra.Command {
	p := &probe{}

	root := &cobra.Command{
		Use:          "toolprobe",
		Short:        "Run a lookup tool or a full research turn from the terminal",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(); err != nil {
				log.Debug("no .env file loaded", "err", err)
			}
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("配置加载失败: %w", err)
			}
			if err := logging.Setup(cfg.LogLevel); err != nil {
				return err
			}
			p.cfg = cfg
			p.tools = search.NewToolset(search.ConfigFrom(cfg.Tools))
			return nil
		},
	}

	root.AddCommand(p.newToolCmd(), p.newAskCmd())
	return root
}

func (p *probe) newToolCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "tool <web_search|arxiv|wikipedia> <query>",
		Short:     "Query one lookup tool and print its observation",
		Args:      cobra.MinimumNArgs(2),
		ValidArgs: []string{"web_search", "arxiv", "wikipedia"},
		RunE: func(cmd *cobra.Command, args []string) error {
			tool, err := p.findTool(args[0])
			if err != nil {
				return err
			}
			out, err := tool.Query(cmd.Context(), strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
}

func (p *probe) newAskCmd() *cobra.Command {
	var (
		apiKey     string
		creativity float64
	)

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Run one turn against a fresh session and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("creativity") {
				creativity = p.cfg.LLM.DefaultCreativity
			}
			if apiKey == "" {
				apiKey = os.Getenv("TOOLPROBE_API_KEY")
			}

			profile := assistant.Default()
			aiSvc, err := ai.NewService(p.cfg.LLM, profile, p.tools)
			if err != nil {
				return err
			}
			sessions := chatservice.NewService(profile.Greeting, 0)
			session, err := sessions.CreateSession(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			hooks := turn.Hooks{
				OnStep: func(step ai.Step) {
					fmt.Fprintf(cmd.ErrOrStderr(), "-> %s(%q)\n", step.Tool, step.Input)
				},
			}
			res, err := turn.NewHandler(sessions, aiSvc).Handle(cmd.Context(), session.ID,
				strings.Join(args, " "), chat.Settings{Credential: apiKey, Creativity: creativity}, hooks)
			if err != nil {
				fmt.Fprintln(out, turn.Describe(err))
				if turn.IsWarning(err) {
					return nil
				}
				return err
			}
			fmt.Fprintln(out, res.Reply)
			return nil
		},
	}

	cmd.Flags().StringVar(&apiKey, "api-key", "", "credential for the reasoning call (falls back to TOOLPROBE_API_KEY)")
	cmd.Flags().Float64Var(&creativity, "creativity", chat.DefaultCreativity, "sampling temperature between 0.0 and 1.0")
	return cmd
}

func (p *probe) findTool(name string) (search.Tool, error) {
	names := make([]string, 0, len(p.tools))
	for _, t := range p.tools {
		if t.Name() == name {
			return t, nil
		}
		names = append(names, t.Name())
	}
	return nil, fmt.Errorf("unknown tool %q (available: %s)", name, strings.Join(names, ", "))
}
