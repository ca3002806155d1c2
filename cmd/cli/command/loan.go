package command

import (
	"fmt"

	"github.com/spf13/cobra"

	"librarian/internal/cache"
	"librarian/internal/engine"
	"librarian/internal/model"
)

var loanCmd = &cobra.Command{
	Use:   "loan",
	Short: "Track and manage loans",
	Long:  `List active loans with their due status, extend return dates and return books.`,
}

var loanListCmd = &cobra.Command{
	Use:   "list",
	Short: "List loans with due status",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng := newEngine()
		defer eng.Close()

		applyListFlags(cmd, eng, cache.KindLoans)

		list := eng.Loans
		if refreshRequested(cmd) {
			list = eng.ReloadLoans
		}
		loans, err := list(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to fetch loans: %w", err)
		}
		if len(loans) == 0 {
			fmt.Println("📖 No loans on this page")
			return nil
		}

		view := eng.View(cache.KindLoans)
		fmt.Printf("📖 Loans (page %d)\n", view.Page)
		fmt.Println("─────────────────────────────────────────────────────────")
		for i, l := range loans {
			status := model.DueStatusNow(l.ReturnDate)
			marker := "  "
			switch status.Kind {
			case model.DueOverdue:
				marker = "❗"
			case model.DueToday, model.DueSoon:
				marker = "⏰"
			}
			fmt.Printf("%d. %s %s by %s (ID: %s)\n", i+1, marker, l.Book.Title, l.Book.Author, l.ID)
			fmt.Printf("   Borrower: %s\n", l.User.Username)
			fmt.Printf("   Borrowed: %s\n", l.BorrowDate.Format("2006-01-02"))
			fmt.Printf("   Due:      %s (%s)\n", l.ReturnDate.Format("2006-01-02"), status.Label())
			fmt.Println()
		}
		return nil
	},
}

var loanProlongCmd = &cobra.Command{
	Use:   "prolong [loan_id]",
	Short: "Extend a loan's return date",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		days, _ := cmd.Flags().GetInt("days")
		if !cmd.Flags().Changed("days") {
			days = cfg.ProlongDays
		}

		eng := newEngine()
		defer eng.Close()

		if err := eng.ProlongLoan(cmd.Context(), args[0], days); err != nil {
			if engine.IsBusy(err) {
				return fmt.Errorf("that loan already has a pending extension, try again in a moment")
			}
			return fmt.Errorf("failed to prolong loan: %w", err)
		}
		fmt.Printf("✅ Extended loan (ID: %s) by %d day(s)\n", args[0], days)
		return nil
	},
}

var loanReturnCmd = &cobra.Command{
	Use:   "return [loan_id]",
	Short: "Return a borrowed book",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng := newEngine()
		defer eng.Close()

		if err := eng.CancelLoan(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("failed to return book: %w", err)
		}
		fmt.Printf("✅ Returned loan (ID: %s)\n", args[0])
		return nil
	},
}

func init() {
	loanCmd.AddCommand(loanListCmd)
	loanCmd.AddCommand(loanProlongCmd)
	loanCmd.AddCommand(loanReturnCmd)

	addListFlags(loanListCmd)

	loanProlongCmd.Flags().IntP("days", "d", engine.DefaultProlongDays, "Days to extend the loan by")

	rootCmd.AddCommand(loanCmd)
}
