package prompt

import (
	"fmt"

	"ventwave/cmd/ventwave/app"
	"ventwave/internal/agent"
	"ventwave/internal/secret"

	"github.com/spf13/cobra"
)

var Cmd = &cobra.Command{
	Use:   "prompt",
	Short: "Print the system prompt the agent sends to the model",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := app.LoadConfig()
		if err != nil {
			return err
		}
		// Tools only affect the request, not the prompt text.
		agentCfg, err := agent.FromProfile(agent.AgentProfile{
			Name:       cfg.Agent.Name,
			Provider:   cfg.Agent.Provider,
			Model:      cfg.Agent.Model,
			Credential: cfg.Agent.Credential,
			Output:     cfg.Agent.Output,
		}, secret.Chain{}, nil)
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(cmd.OutOrStdout(), agentCfg.SystemPrompt())
		return err
	},
}
