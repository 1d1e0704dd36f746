package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Protocol-Lattice/calendar-agent/pkg/orchestrator"
)

var chatFlags RunFlags

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive session keeping the chat history between turns",
	Args:  cobra.NoArgs,
	RunE:  runChat,
}

func init() {
	addRunFlags(chatCmd, &chatFlags)
}

func runChat(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Type a message, or /exit to quit.")
	var history []orchestrator.Turn
	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/exit", "/quit":
			return nil
		case "/reset":
			history = nil
			fmt.Fprintln(out, "History cleared.")
			continue
		}

		ctx, cancel := withSignals(cmd.Context())
		result, err := a.orchestrator.Orchestrate(ctx, chatFlags.request(cfg, line, history, a.registry))
		cancel()
		if err != nil {
			return err
		}
		if err := printResult(out, result, globalFlags.JSON); err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), err)
		}
		history = append(history,
			orchestrator.Turn{Role: "user", Content: line},
			orchestrator.Turn{Role: "assistant", Content: result.Response},
		)
	}
}
