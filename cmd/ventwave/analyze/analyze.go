package analyze

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"ventwave/cmd/ventwave/app"
	"ventwave/internal/agent"
	"ventwave/internal/llm"

	"github.com/spf13/cobra"
)

var (
	images []string
	text   string
)

var Cmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze ventilator waveform images",
	Example: `  ventwave analyze -i pressure.png -i flow.png
  ventwave analyze -i screen.jpg -p "Suspected reverse triggering?"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		input := llm.Input{Text: text}
		for _, path := range images {
			img, err := llm.ImageFromFile(path)
			if err != nil {
				return err
			}
			input.Images = append(input.Images, img)
		}
		if input.Empty() {
			return fmt.Errorf("nothing to analyze: pass --image or --prompt")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		a, err := app.New(ctx)
		if err != nil {
			return err
		}
		defer a.Close(ctx)

		out := cmd.OutOrStdout()
		resp, err := a.Runner.Send(ctx, input, func(ev agent.Event) {
			switch ev.Type {
			case agent.EventToken:
				fmt.Fprint(out, ev.Data)
			case agent.EventToolCall:
				slog.Info("tool call", "data", ev.Data)
			}
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(out)
		slog.Debug("analysis complete",
			"response_id", resp.ID,
			"finish_reason", resp.FinishReason,
			"input_tokens", resp.Usage.InputTokens,
			"output_tokens", resp.Usage.OutputTokens,
		)
		return nil
	},
}

func init() {
	Cmd.Flags().StringArrayVarP(&images, "image", "i", nil, "waveform image (png, jpeg, webp or gif); repeatable")
	Cmd.Flags().StringVarP(&text, "prompt", "p", "", "question or clinical context to send with the images")
}
