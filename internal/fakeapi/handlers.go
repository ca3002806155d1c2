package fakeapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type credentialsBody struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type bookBody struct {
	Title       string `json:"title"`
	Author      string `json:"author"`
	TotalCopies int    `json:"totalCopies"`
}

type userBody struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type loanBody struct {
	UserID string `json:"userId"`
	BookID string `json:"bookId"`
}

type prolongBody struct {
	DaysToProlong int `json:"daysToProlong"`
}

func (s *Server) routes() *gin.Engine {
	router := gin.New()

	v1 := router.Group("/v1")
	v1.POST("/auth/register", s.handleRegister)
	v1.POST("/auth/login", s.handleLogin)

	authed := v1.Group("", s.authMiddleware())
	authed.GET("/books", s.handleListBooks)
	authed.POST("/books", s.handleCreateBook)
	authed.PUT("/books/:id", s.handleUpdateBook)
	authed.DELETE("/books/:id", s.handleDeleteBook)

	authed.GET("/users", s.handleListUsers)
	authed.GET("/users/me", s.handleMe)
	authed.POST("/users", s.handleCreateUser)
	authed.PUT("/users/:id", s.handleUpdateUser)
	authed.DELETE("/users/:id", s.handleDeleteUser)

	authed.GET("/loans", s.handleListLoans)
	authed.POST("/loans", s.handleCreateLoan)
	authed.PUT("/loans/:id", s.handleProlongLoan)
	authed.DELETE("/loans/:id", s.handleCancelLoan)

	authed.GET("/reservations", s.handleListReservations)
	authed.POST("/reservations", s.handleCreateReservation)
	authed.DELETE("/reservations/expired", s.handleCleanupExpired)
	authed.POST("/reservations/expire", s.handleExpireSweep)
	authed.GET("/reservations/:id", s.handleGetReservation)
	authed.DELETE("/reservations/:id", s.handleCancelReservation)

	return router
}

func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		parts := strings.Split(header, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "missing bearer token"})
			return
		}
		claims := jwt.MapClaims{}
		_, err := jwt.ParseWithClaims(parts[1], claims, func(*jwt.Token) (any, error) {
			return []byte(signingSecret), nil
		})
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "invalid token"})
			return
		}
		sub, _ := claims["sub"].(string)
		c.Set("accountID", sub)
		c.Next()
	}
}

func (s *Server) handleRegister(c *gin.Context) {
	var body credentialsBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "username and password are required"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.accountByUsername(body.Username) != nil {
		c.JSON(http.StatusConflict, gin.H{"message": "username already taken"})
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.MinCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "hashing failed"})
		return
	}
	acc := &account{ID: uuid.NewString(), Username: body.Username, PasswordHash: hash, Role: "USER"}
	s.accounts[acc.ID] = acc
	c.JSON(http.StatusCreated, gin.H{"token": s.issueToken(acc)})
}

func (s *Server) handleLogin(c *gin.Context) {
	var body credentialsBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "username and password are required"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	acc := s.accountByUsername(body.Username)
	if acc == nil || bcrypt.CompareHashAndPassword(acc.PasswordHash, []byte(body.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "invalid credentials"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": s.issueToken(acc)})
}

// --- rendering ---

func renderUser(acc *account) gin.H {
	return gin.H{"id": acc.ID, "username": acc.Username, "role": acc.Role}
}

func renderBook(b *book) gin.H {
	return gin.H{
		"id":              b.ID,
		"title":           b.Title,
		"author":          b.Author,
		"totalCopies":     b.TotalCopies,
		"availableCopies": b.AvailableCopies,
	}
}

// renderLoan embeds the live user and book records, the way the real
// server denormalizes them into loan responses.
func (s *Server) renderLoan(l *loan) gin.H {
	out := gin.H{
		"id":         l.ID,
		"borrowDate": l.BorrowDate.Format(time.RFC3339),
		"returnDate": l.ReturnDate.Format(time.RFC3339),
	}
	if acc, ok := s.accounts[l.UserID]; ok {
		out["user"] = renderUser(acc)
	}
	if b, ok := s.books[l.BookID]; ok {
		out["book"] = renderBook(b)
	}
	return out
}

func (s *Server) renderReservation(r *reservation) gin.H {
	out := gin.H{
		"id":        r.ID,
		"createdAt": r.CreatedAt.Format(time.RFC3339),
		"expiresAt": r.ExpiresAt.Format(time.RFC3339),
		"status":    r.Status,
	}
	if acc, ok := s.accounts[r.UserID]; ok {
		out["user"] = renderUser(acc)
	}
	if b, ok := s.books[r.BookID]; ok {
		out["book"] = renderBook(b)
	}
	return out
}

// --- books ---

func (s *Server) handleListBooks(c *gin.Context) {
	page, size, sortBy, sortOrder := listParams(c, 20)
	s.mu.Lock()
	defer s.mu.Unlock()
	all := make([]*book, 0, len(s.books))
	for _, b := range s.books {
		all = append(all, b)
	}
	switch sortBy {
	case "author":
		sortSlice(all, func(a, b *book) bool { return a.Author < b.Author }, sortOrder == "desc")
	default:
		sortSlice(all, func(a, b *book) bool { return a.Title < b.Title }, sortOrder == "desc")
	}
	out := make([]gin.H, 0, size)
	for _, b := range paginate(all, page, size) {
		out = append(out, renderBook(b))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleCreateBook(c *gin.Context) {
	var body bookBody
	if err := c.ShouldBindJSON(&body); err != nil || body.Title == "" || body.TotalCopies < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "title, author and at least one copy are required"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b := &book{
		ID:              uuid.NewString(),
		Title:           body.Title,
		Author:          body.Author,
		TotalCopies:     body.TotalCopies,
		AvailableCopies: body.TotalCopies,
	}
	s.books[b.ID] = b
	c.JSON(http.StatusCreated, renderBook(b))
}

func (s *Server) handleUpdateBook(c *gin.Context) {
	var body bookBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid payload"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.books[c.Param("id")]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": "book not found"})
		return
	}
	b.Title = body.Title
	b.Author = body.Author
	c.JSON(http.StatusOK, renderBook(b))
}

func (s *Server) handleDeleteBook(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := c.Param("id")
	if _, ok := s.books[id]; !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": "book not found"})
		return
	}
	delete(s.books, id)
	for loanID, l := range s.loans {
		if l.BookID == id {
			delete(s.loans, loanID)
		}
	}
	for resID, r := range s.reservations {
		if r.BookID == id {
			delete(s.reservations, resID)
		}
	}
	c.Status(http.StatusNoContent)
}

// --- users ---

func (s *Server) handleMe(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[c.GetString("accountID")]
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "unknown account"})
		return
	}
	c.JSON(http.StatusOK, renderUser(acc))
}

func (s *Server) handleListUsers(c *gin.Context) {
	page, size, _, sortOrder := listParams(c, 10)
	s.mu.Lock()
	defer s.mu.Unlock()
	all := make([]*account, 0, len(s.accounts))
	for _, acc := range s.accounts {
		all = append(all, acc)
	}
	sortSlice(all, func(a, b *account) bool { return a.Username < b.Username }, sortOrder == "desc")
	out := make([]gin.H, 0, size)
	for _, acc := range paginate(all, page, size) {
		out = append(out, renderUser(acc))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleCreateUser(c *gin.Context) {
	var body userBody
	if err := c.ShouldBindJSON(&body); err != nil || body.Username == "" || body.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "username and password are required"})
		return
	}
	if body.Role != "USER" && body.Role != "LIBRARIAN" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "role must be USER or LIBRARIAN"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.accountByUsername(body.Username) != nil {
		c.JSON(http.StatusConflict, gin.H{"message": "username already taken"})
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.MinCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "hashing failed"})
		return
	}
	acc := &account{ID: uuid.NewString(), Username: body.Username, PasswordHash: hash, Role: body.Role}
	s.accounts[acc.ID] = acc
	c.JSON(http.StatusCreated, renderUser(acc))
}

func (s *Server) handleUpdateUser(c *gin.Context) {
	var body userBody
	if err := c.ShouldBindJSON(&body); err != nil || body.Username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "username is required"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[c.Param("id")]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": "user not found"})
		return
	}
	if other := s.accountByUsername(body.Username); other != nil && other.ID != acc.ID {
		c.JSON(http.StatusConflict, gin.H{"message": "username already taken"})
		return
	}
	acc.Username = body.Username
	if body.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.MinCost)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "hashing failed"})
			return
		}
		acc.PasswordHash = hash
	}
	c.JSON(http.StatusOK, renderUser(acc))
}

func (s *Server) handleDeleteUser(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := c.Param("id")
	if _, ok := s.accounts[id]; !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": "user not found"})
		return
	}
	delete(s.accounts, id)
	c.Status(http.StatusNoContent)
}

// --- loans ---

func (s *Server) handleListLoans(c *gin.Context) {
	page, size, _, sortOrder := listParams(c, 10)
	s.mu.Lock()
	defer s.mu.Unlock()
	all := make([]*loan, 0, len(s.loans))
	for _, l := range s.loans {
		all = append(all, l)
	}
	sortSlice(all, func(a, b *loan) bool { return a.BorrowDate.Before(b.BorrowDate) }, sortOrder == "desc")
	out := make([]gin.H, 0, size)
	for _, l := range paginate(all, page, size) {
		out = append(out, s.renderLoan(l))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleCreateLoan(c *gin.Context) {
	var body loanBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid payload"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.books[body.BookID]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": "book not found"})
		return
	}
	if _, ok := s.accounts[body.UserID]; !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": "user not found"})
		return
	}
	if b.AvailableCopies == 0 {
		c.JSON(http.StatusConflict, gin.H{"message": "no copies available"})
		return
	}
	b.AvailableCopies--
	now := s.now()
	l := &loan{
		ID:         uuid.NewString(),
		UserID:     body.UserID,
		BookID:     body.BookID,
		BorrowDate: now,
		ReturnDate: now.AddDate(0, 0, 30),
	}
	s.loans[l.ID] = l
	// A matching READY reservation is consumed by the conversion.
	for resID, r := range s.reservations {
		if r.UserID == body.UserID && r.BookID == body.BookID && r.Status == "READY" {
			delete(s.reservations, resID)
			break
		}
	}
	c.JSON(http.StatusCreated, s.renderLoan(l))
}

func (s *Server) handleProlongLoan(c *gin.Context) {
	var body prolongBody
	if err := c.ShouldBindJSON(&body); err != nil || body.DaysToProlong < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "daysToProlong must be positive"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.loans[c.Param("id")]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": "loan not found"})
		return
	}
	l.ReturnDate = l.ReturnDate.AddDate(0, 0, body.DaysToProlong)
	c.JSON(http.StatusOK, s.renderLoan(l))
}

func (s *Server) handleCancelLoan(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.loans[c.Param("id")]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": "loan not found"})
		return
	}
	if b, ok := s.books[l.BookID]; ok && b.AvailableCopies < b.TotalCopies {
		b.AvailableCopies++
	}
	delete(s.loans, l.ID)
	c.Status(http.StatusNoContent)
}

// --- reservations ---

func (s *Server) handleListReservations(c *gin.Context) {
	page, size, _, sortOrder := listParams(c, 10)
	s.mu.Lock()
	defer s.mu.Unlock()
	all := make([]*reservation, 0, len(s.reservations))
	for _, r := range s.reservations {
		all = append(all, r)
	}
	sortSlice(all, func(a, b *reservation) bool { return a.CreatedAt.Before(b.CreatedAt) }, sortOrder == "desc")
	out := make([]gin.H, 0, size)
	for _, r := range paginate(all, page, size) {
		out = append(out, s.renderReservation(r))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleGetReservation(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reservations[c.Param("id")]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": "reservation not found"})
		return
	}
	c.JSON(http.StatusOK, s.renderReservation(r))
}

func (s *Server) handleCreateReservation(c *gin.Context) {
	var body loanBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid payload"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.books[body.BookID]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": "book not found"})
		return
	}
	if _, ok := s.accounts[body.UserID]; !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": "user not found"})
		return
	}
	status := "READY"
	if b.AvailableCopies == 0 {
		status = "QUEUED"
	}
	now := s.now()
	r := &reservation{
		ID:        uuid.NewString(),
		UserID:    body.UserID,
		BookID:    body.BookID,
		CreatedAt: now,
		ExpiresAt: now.AddDate(0, 0, 7),
		Status:    status,
	}
	s.reservations[r.ID] = r
	c.JSON(http.StatusCreated, s.renderReservation(r))
}

func (s *Server) handleCancelReservation(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := c.Param("id")
	if _, ok := s.reservations[id]; !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": "reservation not found"})
		return
	}
	delete(s.reservations, id)
	c.Status(http.StatusNoContent)
}

func (s *Server) handleCleanupExpired(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, r := range s.reservations {
		if r.Status == "EXPIRED" {
			delete(s.reservations, id)
		}
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleExpireSweep(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	updated := 0
	for _, r := range s.reservations {
		if r.Status != "EXPIRED" && r.ExpiresAt.Before(now) {
			r.Status = "EXPIRED"
			updated++
		}
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}
