package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sakif/agrilink/internal/service"
)

// OfferCommandHandler runs offer maintenance outside the server's schedule.
type OfferCommandHandler struct{}

// ExpireCmd expires every pending offer past its deadline, exactly as the
// scheduled sweep does.
func (h *OfferCommandHandler) ExpireCmd(cmd *cobra.Command, _ []string) error {
	logger, err := setupLogger(cmd)
	if err != nil {
		return err
	}
	cfg, db, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer db.Close()

	notifier := service.NewNotificationService(db, logger)
	offers := service.NewOfferService(db, notifier, cfg.OfferTTL, logger)

	n, err := offers.ExpireOverdue(cmd.Context())
	if err != nil {
		return fmt.Errorf("expired %d offer(s) before failing: %w", n, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "expired %d offer(s)\n", n)
	return nil
}

// InitOfferCommands registers "offers expire".
func InitOfferCommands(rootCmd *cobra.Command) {
	handler := &OfferCommandHandler{}

	offersCmd := &cobra.Command{
		Use:   "offers",
		Short: "Offer maintenance",
	}
	expireCmd := &cobra.Command{
		Use:   "expire",
		Short: "Expire pending offers past their deadline",
		Args:  cobra.NoArgs,
		RunE:  handler.ExpireCmd,
	}

	offersCmd.AddCommand(expireCmd)
	rootCmd.AddCommand(offersCmd)
}
