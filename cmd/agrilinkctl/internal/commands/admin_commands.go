package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sakif/agrilink/internal/auth"
	"github.com/sakif/agrilink/internal/service"
)

// AdminCommandHandler grants and revokes the admin flag.
type AdminCommandHandler struct{}

func (h *AdminCommandHandler) PromoteCmd(cmd *cobra.Command, _ []string) error {
	return h.setAdmin(cmd, true)
}

func (h *AdminCommandHandler) DemoteCmd(cmd *cobra.Command, _ []string) error {
	return h.setAdmin(cmd, false)
}

func (h *AdminCommandHandler) setAdmin(cmd *cobra.Command, admin bool) error {
	email, err := cmd.Flags().GetString("email")
	if err != nil {
		return fmt.Errorf("invalid email flag: %w", err)
	}
	phone, err := cmd.Flags().GetString("phone")
	if err != nil {
		return fmt.Errorf("invalid phone flag: %w", err)
	}
	identifier := email
	if identifier == "" {
		identifier = phone
	}

	logger, err := setupLogger(cmd)
	if err != nil {
		return err
	}
	cfg, db, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer db.Close()

	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		return err
	}
	svc := service.NewAuthService(db, tokens, auth.NewPasswordService(), logger)

	user, err := svc.SetAdmin(cmd.Context(), identifier, admin)
	if err != nil {
		return err
	}
	verb := "revoked from"
	if admin {
		verb = "granted to"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "admin %s %s (%s); takes effect at next sign-in\n", verb, user.Name, user.ID)
	return nil
}

// InitAdminCommands registers "admin promote" and "admin demote".
func InitAdminCommands(rootCmd *cobra.Command) {
	handler := &AdminCommandHandler{}

	adminCmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage administrator accounts",
	}

	promoteCmd := &cobra.Command{
		Use:   "promote",
		Short: "Give an account the admin flag",
		Args:  cobra.NoArgs,
		RunE:  handler.PromoteCmd,
	}
	demoteCmd := &cobra.Command{
		Use:   "demote",
		Short: "Remove the admin flag from an account",
		Args:  cobra.NoArgs,
		RunE:  handler.DemoteCmd,
	}
	for _, c := range []*cobra.Command{promoteCmd, demoteCmd} {
		c.Flags().String("email", "", "Email address of the account")
		c.Flags().String("phone", "", "Phone number of the account")
		c.MarkFlagsOneRequired("email", "phone")
		c.MarkFlagsMutuallyExclusive("email", "phone")
	}

	adminCmd.AddCommand(promoteCmd, demoteCmd)
	rootCmd.AddCommand(adminCmd)
}
