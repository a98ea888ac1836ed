package gateway

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"ventwave/cmd/ventwave/app"
	gw "ventwave/internal/gateway"

	"github.com/spf13/cobra"
)

var addr string

var Cmd = &cobra.Command{
	Use:   "gateway",
	Short: "Start the HTTP gateway",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := app.New(ctx)
		if err != nil {
			return err
		}
		defer a.Close(cmd.Context())

		if addr != "" {
			a.Config.Gateway.Addr = addr
		}

		opts := []gw.Option{gw.WithMaxUpload(int64(a.Config.Gateway.MaxUploadMB) << 20)}
		if a.History != nil {
			opts = append(opts, gw.WithHistory(a.History))
		}
		srv := gw.NewServer(a.Runner, opts...)

		cfg := a.Runner.Config()
		slog.Info("starting gateway",
			"addr", a.Config.Gateway.Addr,
			"agent", cfg.Name(),
			"model", cfg.Model().ModelID,
			"history", a.History != nil,
		)
		return srv.ListenAndServe(ctx, a.Config.Gateway.Addr)
	},
}

func init() {
	Cmd.Flags().StringVarP(&addr, "addr", "a", "", "override gateway listen address")
}
