package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/soulscout/soulscout/internal/gateway"
	"github.com/soulscout/soulscout/internal/telegram"
)

func gatewayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gateway",
		Short: "Bridge Telegram chat to the command streams",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			rt, err := newRuntime(ctx, "gateway")
			if err != nil {
				return err
			}
			defer rt.Close()

			if rt.cfg.Gateway.BotToken == "" {
				return fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
			}
			if rt.cfg.Gateway.OwnerTelegramID == 0 {
				return fmt.Errorf("OWNER_TELEGRAM_ID is required")
			}

			tg := telegram.NewREST(rt.cfg.Gateway.BotToken)
			svc := gateway.NewService(rt.cfg, rt.bus, tg)

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error { return svc.Run(ctx, rt.consumer) })
			g.Go(func() error { return rt.healthServer("gateway").Run(ctx) })

			log.Info().Msg("gateway running")
			return ignoreCancel(g.Wait())
		},
	}
}
