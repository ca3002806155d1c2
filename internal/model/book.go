package model

// Book is a catalog entry as returned by the library API. Copies are
// accounted server-side: lending a copy decrements AvailableCopies,
// returning or cancelling a loan restores it. The client only mirrors
// those numbers, it never computes them.
type Book struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Author          string `json:"author"`
	TotalCopies     int    `json:"totalCopies"`
	AvailableCopies int    `json:"availableCopies"`
}

// HasAvailableCopies reports whether at least one copy can still be borrowed.
func (b Book) HasAvailableCopies() bool {
	return b.AvailableCopies > 0
}
