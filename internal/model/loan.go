package model

import "time"

// Loan is an active lending of one book copy to one user. The user and
// book records are denormalized copies embedded by the server. Dates are
// parsed to time.Time on ingestion and never kept as wire strings.
// ReturnDate is the due date; prolonging a loan moves it forward.
type Loan struct {
	ID         string    `json:"id"`
	BorrowDate time.Time `json:"borrowDate"`
	ReturnDate time.Time `json:"returnDate"`
	User       User      `json:"user"`
	Book       Book      `json:"book"`
}
