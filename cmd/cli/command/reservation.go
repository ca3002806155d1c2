package command

import (
	"fmt"

	"github.com/spf13/cobra"

	"librarian/internal/cache"
)

var reservationCmd = &cobra.Command{
	Use:     "reservation",
	Aliases: []string{"res"},
	Short:   "Track and manage reservations",
	Long: `List reservations, convert a ready reservation into a loan and cancel
reservations. Staff accounts can expire and clean up stale entries.`,
}

var reservationListCmd = &cobra.Command{
	Use:   "list",
	Short: "List reservations",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng := newEngine()
		defer eng.Close()

		applyListFlags(cmd, eng, cache.KindReservations)

		list := eng.Reservations
		if refreshRequested(cmd) {
			list = eng.ReloadReservations
		}
		reservations, err := list(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to fetch reservations: %w", err)
		}
		if len(reservations) == 0 {
			fmt.Println("🔖 No reservations on this page")
			return nil
		}

		view := eng.View(cache.KindReservations)
		fmt.Printf("🔖 Reservations (page %d)\n", view.Page)
		fmt.Println("─────────────────────────────────────────────────────────")
		for i, r := range reservations {
			fmt.Printf("%d. %s by %s (ID: %s)\n", i+1, r.Book.Title, r.Book.Author, r.ID)
			fmt.Printf("   Holder:  %s\n", r.User.Username)
			fmt.Printf("   Status:  %s\n", r.Status.Label())
			fmt.Printf("   Created: %s, expires %s\n",
				r.CreatedAt.Format("2006-01-02"), r.ExpiresAt.Format("2006-01-02"))
			fmt.Println()
		}
		return nil
	},
}

var reservationCheckoutCmd = &cobra.Command{
	Use:   "checkout [reservation_id]",
	Short: "Convert a ready reservation into a loan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng := newEngine()
		defer eng.Close()

		reservation, err := eng.Reservation(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to fetch reservation: %w", err)
		}
		if err := eng.LoanFromReservation(cmd.Context(), reservation); err != nil {
			return fmt.Errorf("failed to check out reservation: %w", err)
		}
		fmt.Printf("✅ Checked out %q, the reservation is done\n", reservation.Book.Title)
		return nil
	},
}

var reservationCancelCmd = &cobra.Command{
	Use:   "cancel [reservation_id]",
	Short: "Cancel a reservation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng := newEngine()
		defer eng.Close()

		if err := eng.CancelReservation(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("failed to cancel reservation: %w", err)
		}
		fmt.Printf("✅ Canceled reservation (ID: %s)\n", args[0])
		return nil
	},
}

var reservationExpireCmd = &cobra.Command{
	Use:   "expire",
	Short: "Mark overdue reservations as expired",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng := newEngine()
		defer eng.Close()

		updated, err := eng.ExpireReservations(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to expire reservations: %w", err)
		}
		fmt.Printf("✅ Marked %d reservation(s) as expired\n", updated)
		return nil
	},
}

var reservationCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete expired reservations",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng := newEngine()
		defer eng.Close()

		if err := eng.CleanupExpiredReservations(cmd.Context()); err != nil {
			return fmt.Errorf("failed to clean up reservations: %w", err)
		}
		fmt.Println("✅ Expired reservations removed")
		return nil
	},
}

func init() {
	reservationCmd.AddCommand(reservationListCmd)
	reservationCmd.AddCommand(reservationCheckoutCmd)
	reservationCmd.AddCommand(reservationCancelCmd)
	reservationCmd.AddCommand(reservationExpireCmd)
	reservationCmd.AddCommand(reservationCleanupCmd)

	addListFlags(reservationListCmd)

	rootCmd.AddCommand(reservationCmd)
}
