package command

import (
	"fmt"

	"github.com/spf13/cobra"

	"librarian/internal/api"
	"librarian/internal/cache"
	"librarian/internal/engine"
)

var bookCmd = &cobra.Command{
	Use:   "book",
	Short: "Browse and manage the catalog",
	Long:  `List, borrow and reserve books. Staff accounts can add, update and remove catalog entries.`,
}

var bookListCmd = &cobra.Command{
	Use:   "list",
	Short: "List books in the catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng := newEngine()
		defer eng.Close()

		applyListFlags(cmd, eng, cache.KindBooks)

		list := eng.Books
		if refreshRequested(cmd) {
			list = eng.ReloadBooks
		}
		books, err := list(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to fetch books: %w", err)
		}
		if len(books) == 0 {
			fmt.Println("📚 No books on this page")
			return nil
		}

		view := eng.View(cache.KindBooks)
		fmt.Printf("📚 Catalog (page %d)\n", view.Page)
		fmt.Println("─────────────────────────────────────────────────────────")
		for i, b := range books {
			fmt.Printf("%d. %s by %s (ID: %s)\n", i+1, b.Title, b.Author, b.ID)
			fmt.Printf("   Copies: %d of %d available\n", b.AvailableCopies, b.TotalCopies)
			if !b.HasAvailableCopies() {
				fmt.Println("   All copies on loan, reservations join the queue")
			}
			fmt.Println()
		}
		return nil
	},
}

var bookAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a book to the catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		var payload api.CreateBookPayload
		payload.Title, _ = cmd.Flags().GetString("title")
		payload.Author, _ = cmd.Flags().GetString("author")
		payload.TotalCopies, _ = cmd.Flags().GetInt("copies")

		eng := newEngine()
		defer eng.Close()

		if err := eng.CreateBook(cmd.Context(), payload); err != nil {
			return fmt.Errorf("failed to add book: %w", err)
		}
		fmt.Printf("✅ Added %q to the catalog\n", payload.Title)
		return nil
	},
}

var bookUpdateCmd = &cobra.Command{
	Use:   "update [book_id]",
	Short: "Update a book's title or author",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var payload api.UpdateBookPayload
		payload.Title, _ = cmd.Flags().GetString("title")
		payload.Author, _ = cmd.Flags().GetString("author")

		eng := newEngine()
		defer eng.Close()

		if err := eng.UpdateBook(cmd.Context(), args[0], payload); err != nil {
			return fmt.Errorf("failed to update book: %w", err)
		}
		fmt.Printf("✅ Updated book (ID: %s)\n", args[0])
		return nil
	},
}

var bookRemoveCmd = &cobra.Command{
	Use:   "remove [book_id]",
	Short: "Remove a book from the catalog",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng := newEngine()
		defer eng.Close()

		if err := eng.DeleteBook(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("failed to remove book: %w", err)
		}
		fmt.Printf("✅ Removed book (ID: %s) from the catalog\n", args[0])
		return nil
	},
}

var bookBorrowCmd = &cobra.Command{
	Use:   "borrow [book_id]",
	Short: "Borrow a book",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng := newEngine()
		defer eng.Close()

		if err := eng.Borrow(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("failed to borrow book: %w", err)
		}
		fmt.Printf("✅ Borrowed book (ID: %s). Check \"loan list\" for the due date.\n", args[0])
		return nil
	},
}

var bookReserveCmd = &cobra.Command{
	Use:   "reserve [book_id]",
	Short: "Reserve a book",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng := newEngine()
		defer eng.Close()

		if err := eng.Reserve(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("failed to reserve book: %w", err)
		}
		fmt.Printf("✅ Reserved book (ID: %s)\n", args[0])
		return nil
	},
}

// applyListFlags pushes the shared pagination and sort flags into the
// engine's view state before a list command loads.
func applyListFlags(cmd *cobra.Command, eng *engine.Engine, kind cache.Kind) {
	if cmd.Flags().Changed("size") {
		size, _ := cmd.Flags().GetInt("size")
		eng.SetSize(kind, size)
	}
	if cmd.Flags().Changed("sort-by") {
		sortBy, _ := cmd.Flags().GetString("sort-by")
		sortOrder, _ := cmd.Flags().GetString("sort-order")
		eng.SetSort(kind, sortBy, sortOrder)
	}
	if cmd.Flags().Changed("page") {
		page, _ := cmd.Flags().GetInt("page")
		eng.SetPage(kind, page)
	}
}

func addListFlags(cmd *cobra.Command) {
	cmd.Flags().Int("page", 0, "Page number, starting at 0")
	cmd.Flags().Int("size", 0, "Page size")
	cmd.Flags().String("sort-by", "", "Field to sort by")
	cmd.Flags().String("sort-order", "asc", "Sort order: asc or desc")
	cmd.Flags().Bool("refresh", false, "Skip cached results and refetch from the server")
}

func refreshRequested(cmd *cobra.Command) bool {
	refresh, _ := cmd.Flags().GetBool("refresh")
	return refresh
}

func init() {
	bookCmd.AddCommand(bookListCmd)
	bookCmd.AddCommand(bookAddCmd)
	bookCmd.AddCommand(bookUpdateCmd)
	bookCmd.AddCommand(bookRemoveCmd)
	bookCmd.AddCommand(bookBorrowCmd)
	bookCmd.AddCommand(bookReserveCmd)

	addListFlags(bookListCmd)

	bookAddCmd.Flags().StringP("title", "t", "", "Book title")
	bookAddCmd.Flags().StringP("author", "a", "", "Book author")
	bookAddCmd.Flags().IntP("copies", "c", 1, "Number of copies")
	bookAddCmd.MarkFlagRequired("title")
	bookAddCmd.MarkFlagRequired("author")

	bookUpdateCmd.Flags().StringP("title", "t", "", "New title")
	bookUpdateCmd.Flags().StringP("author", "a", "", "New author")

	rootCmd.AddCommand(bookCmd)
}
