package apitest

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/concerttix/console/internal/auth"
	"github.com/concerttix/console/internal/domain"
	apperrors "github.com/concerttix/console/pkg/util/errorutil"
)

func (s *Server) login(c *fiber.Ctx) error {
	var creds domain.Credentials
	if err := c.BodyParser(&creds); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}

	s.mu.Lock()
	acc := s.accountByEmail(creds.Email)
	s.mu.Unlock()
	if acc == nil || auth.ComparePassword(acc.hash, creds.Password) != nil {
		return apperrors.NewUnauthorized("Invalid email or password")
	}
	return s.issue(c, http.StatusOK, "Login successful", &acc.user)
}

func (s *Server) register(c *fiber.Ctx) error {
	var reg domain.Registration
	if err := c.BodyParser(&reg); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	if reg.Name == "" || reg.Email == "" || len(reg.Password) < 6 {
		return apperrors.NewValidationError("name, email and a password of at least 6 characters are required", nil)
	}
	hash, err := auth.HashPassword(reg.Password, 0)
	if err != nil {
		return apperrors.NewInternalError(err)
	}

	s.mu.Lock()
	if s.accountByEmail(reg.Email) != nil {
		s.mu.Unlock()
		return apperrors.NewConflict("Email already registered", nil)
	}
	user := domain.User{
		ID:        s.id(),
		Name:      reg.Name,
		Email:     reg.Email,
		Role:      domain.RoleUser,
		CreatedAt: domain.NewTimestamp(time.Now()),
	}
	if reg.Phone != "" {
		phone := reg.Phone
		user.Phone = &phone
	}
	s.accounts[user.ID] = &account{user: user, hash: hash}
	s.mu.Unlock()

	return s.issue(c, http.StatusCreated, "Registration successful", &user)
}

func (s *Server) issue(c *fiber.Ctx, status int, message string, user *domain.User) error {
	token, _, err := s.tokens.GenerateToken(user)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	return ok(c, status, message, domain.AuthResult{User: user.Clone(), AccessToken: token})
}

func (s *Server) profile(c *fiber.Ctx) error {
	return ok(c, http.StatusOK, "", principal(c))
}

func (s *Server) updateProfile(c *fiber.Ctx) error {
	var patch domain.ProfilePatch
	if err := c.BodyParser(&patch); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	me := principal(c)

	s.mu.Lock()
	defer s.mu.Unlock()
	acc := s.accounts[me.ID]
	if patch.NewPassword != "" {
		if auth.ComparePassword(acc.hash, patch.CurrentPassword) != nil {
			return apperrors.NewValidationError("Current password is incorrect", nil)
		}
		hash, err := auth.HashPassword(patch.NewPassword, 0)
		if err != nil {
			return apperrors.NewInternalError(err)
		}
		acc.hash = hash
	}
	if patch.Name != nil {
		acc.user.Name = *patch.Name
	}
	if patch.Phone != nil {
		phone := *patch.Phone
		acc.user.Phone = &phone
	}
	acc.user.UpdatedAt = domain.NewTimestamp(time.Now())
	return ok(c, http.StatusOK, "Profile updated", acc.user.Clone())
}

func (s *Server) listConcerts(c *fiber.Ctx) error {
	search := strings.ToLower(c.Query("search"))
	status := domain.ConcertStatus(c.Query("status"))

	s.mu.Lock()
	var items []domain.Concert
	for _, concert := range s.concerts {
		if status != "" && concert.Status != status {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(concert.Title+" "+concert.Venue), search) {
			continue
		}
		items = append(items, s.concertWithTypes(concert))
	}
	s.mu.Unlock()

	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return ok(c, http.StatusOK, "", paginate(c, items))
}

func (s *Server) getConcert(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	concert, found := s.concerts[id]
	if !found {
		return apperrors.NewNotFound("Concert", nil)
	}
	return ok(c, http.StatusOK, "", s.concertWithTypes(concert))
}

func (s *Server) concertTickets(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, found := s.concerts[id]; !found {
		return apperrors.NewNotFound("Concert", nil)
	}
	return ok(c, http.StatusOK, "", s.concertWithTypes(s.concerts[id]).TicketTypes)
}

func (s *Server) createConcert(c *fiber.Ctx) error {
	var in domain.ConcertInput
	if err := c.BodyParser(&in); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	concert := &domain.Concert{ID: s.id(), Status: domain.ConcertUpcoming}
	applyConcert(concert, in)
	s.concerts[concert.ID] = concert
	return ok(c, http.StatusCreated, "Concert created", s.concertWithTypes(concert))
}

func (s *Server) updateConcert(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	var in domain.ConcertInput
	if err := c.BodyParser(&in); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	concert, found := s.concerts[id]
	if !found {
		return apperrors.NewNotFound("Concert", nil)
	}
	applyConcert(concert, in)
	return ok(c, http.StatusOK, "Concert updated", s.concertWithTypes(concert))
}

func (s *Server) deleteConcert(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, found := s.concerts[id]; !found {
		return apperrors.NewNotFound("Concert", nil)
	}
	delete(s.concerts, id)
	for ttID, tt := range s.ticketTypes {
		if tt.ConcertID == id {
			delete(s.ticketTypes, ttID)
		}
	}
	return ok(c, http.StatusOK, "Concert deleted", nil)
}

func (s *Server) createTicketType(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	var in domain.TicketTypeInput
	if err := c.BodyParser(&in); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, found := s.concerts[id]; !found {
		return apperrors.NewNotFound("Concert", nil)
	}
	tt := &domain.TicketType{
		ID: s.id(), ConcertID: id, Name: in.Name, Price: in.Price,
		QuantityTotal: in.QuantityTotal, QuantityAvailable: in.QuantityTotal,
	}
	s.ticketTypes[tt.ID] = tt
	return ok(c, http.StatusCreated, "Ticket type created", *tt)
}

func (s *Server) getTicketType(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tt, found := s.ticketTypes[id]
	if !found {
		return apperrors.NewNotFound("Ticket type", nil)
	}
	return ok(c, http.StatusOK, "", *tt)
}

func (s *Server) updateTicketType(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	var in domain.TicketTypeInput
	if err := c.BodyParser(&in); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tt, found := s.ticketTypes[id]
	if !found {
		return apperrors.NewNotFound("Ticket type", nil)
	}
	if in.Name != "" {
		tt.Name = in.Name
	}
	if in.Price > 0 {
		tt.Price = in.Price
	}
	if in.QuantityTotal > 0 {
		sold := tt.QuantityTotal - tt.QuantityAvailable
		if in.QuantityTotal < sold {
			return apperrors.NewValidationError("quantity below tickets already sold", nil)
		}
		tt.QuantityTotal = in.QuantityTotal
		tt.QuantityAvailable = in.QuantityTotal - sold
	}
	return ok(c, http.StatusOK, "Ticket type updated", *tt)
}

func (s *Server) deleteTicketType(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, found := s.ticketTypes[id]; !found {
		return apperrors.NewNotFound("Ticket type", nil)
	}
	delete(s.ticketTypes, id)
	return ok(c, http.StatusOK, "Ticket type deleted", nil)
}

func (s *Server) downloadTicket(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	me := principal(c)

	s.mu.Lock()
	order, found := s.orders[id]
	s.mu.Unlock()
	if !found || (order.UserID != me.ID && !me.IsAdmin()) {
		return apperrors.NewNotFound("Order", nil)
	}
	if order.Status != domain.OrderStatusPaid {
		return apperrors.NewValidationError("Tickets are only available for paid orders", nil)
	}

	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="ticket-ORD-%d.pdf"`, order.ID))
	return c.Status(http.StatusOK).Send([]byte(fmt.Sprintf("%%PDF-1.4\n%% order %d\n%%%%EOF\n", order.ID)))
}

func (s *Server) listOrders(c *fiber.Ctx) error {
	me := principal(c)
	return ok(c, http.StatusOK, "", paginate(c, s.filterOrders(c, func(o *domain.Order) bool {
		return o.UserID == me.ID
	})))
}

func (s *Server) listAllOrders(c *fiber.Ctx) error {
	return ok(c, http.StatusOK, "", paginate(c, s.filterOrders(c, func(*domain.Order) bool { return true })))
}

func (s *Server) filterOrders(c *fiber.Ctx, keep func(*domain.Order) bool) []domain.Order {
	status := domain.OrderStatus(c.Query("status"))
	s.mu.Lock()
	defer s.mu.Unlock()
	var items []domain.Order
	for _, o := range s.orders {
		if !keep(o) || (status != "" && o.Status != status) {
			continue
		}
		items = append(items, *cloneOrder(o))
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID > items[j].ID })
	return items
}

func (s *Server) getOrder(c *fiber.Ctx) error {
	order, err := s.ownOrder(c)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, "", order)
}

func (s *Server) createOrder(c *fiber.Ctx) error {
	var in domain.NewOrder
	if err := c.BodyParser(&in); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	if len(in.Items) == 0 {
		return apperrors.NewValidationError("Order items are required", nil)
	}
	me := principal(c)

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, line := range in.Items {
		tt, found := s.ticketTypes[line.TicketTypeID]
		if !found {
			return apperrors.NewNotFound("Ticket type", nil)
		}
		if line.Quantity <= 0 || tt.QuantityAvailable < line.Quantity {
			return apperrors.NewValidationError(fmt.Sprintf("Not enough %s tickets available", tt.Name), nil)
		}
	}
	order := s.newOrder(me.ID, in.Items)
	for _, line := range in.Items {
		s.ticketTypes[line.TicketTypeID].QuantityAvailable -= line.Quantity
	}
	return ok(c, http.StatusCreated, "Order created", cloneOrder(order))
}

func (s *Server) payOrder(c *fiber.Ctx) error {
	var body struct {
		PaymentMethod domain.PaymentMethod `json:"payment_method"`
	}
	if err := c.BodyParser(&body); err != nil || !body.PaymentMethod.Valid() {
		return apperrors.NewValidationError("Valid payment method is required", nil)
	}
	return s.mutateOwnOrder(c, func(o *domain.Order) error {
		if o.Status != domain.OrderStatusPending {
			return apperrors.NewValidationError("Order is not in pending status", nil)
		}
		m := body.PaymentMethod
		o.Status = domain.OrderStatusPaymentSubmitted
		o.PaymentMethod = &m
		o.PaymentSubmittedAt = domain.NewTimestamp(time.Now())
		return nil
	})
}

func (s *Server) cancelOrder(c *fiber.Ctx) error {
	return s.mutateOwnOrder(c, func(o *domain.Order) error {
		if o.Status != domain.OrderStatusPending && o.Status != domain.OrderStatusPaymentSubmitted {
			return apperrors.NewValidationError("Order can no longer be cancelled", nil)
		}
		o.Status = domain.OrderStatusCancelled
		s.restock(o)
		return nil
	})
}

func (s *Server) verifyOrder(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	var v domain.Verification
	if err := c.BodyParser(&v); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	if v.Status != domain.OrderStatusPaid && v.Status != domain.OrderStatusCancelled {
		return apperrors.NewValidationError("Status must be paid or cancelled", nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	o, found := s.orders[id]
	if !found {
		return apperrors.NewNotFound("Order", nil)
	}
	if o.Status != domain.OrderStatusPaymentSubmitted {
		return apperrors.NewValidationError("Order is not awaiting verification", nil)
	}
	o.Status = v.Status
	o.PaymentVerifiedAt = domain.NewTimestamp(time.Now())
	o.UpdatedAt = o.PaymentVerifiedAt
	if v.AdminNotes != "" {
		notes := v.AdminNotes
		o.AdminNotes = &notes
	}
	if v.Status == domain.OrderStatusCancelled {
		s.restock(o)
	}
	return ok(c, http.StatusOK, "Payment verified", cloneOrder(o))
}

func (s *Server) ownOrder(c *fiber.Ctx) (*domain.Order, error) {
	id, err := paramID(c)
	if err != nil {
		return nil, err
	}
	me := principal(c)
	s.mu.Lock()
	defer s.mu.Unlock()
	o, found := s.orders[id]
	if !found || o.UserID != me.ID {
		return nil, apperrors.NewNotFound("Order", nil)
	}
	return cloneOrder(o), nil
}

func (s *Server) mutateOwnOrder(c *fiber.Ctx, mutate func(*domain.Order) error) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	me := principal(c)
	s.mu.Lock()
	defer s.mu.Unlock()
	o, found := s.orders[id]
	if !found || o.UserID != me.ID {
		return apperrors.NewNotFound("Order", nil)
	}
	if err := mutate(o); err != nil {
		return err
	}
	o.UpdatedAt = domain.NewTimestamp(time.Now())
	return ok(c, http.StatusOK, "Order updated", cloneOrder(o))
}

func (s *Server) dashboard(c *fiber.Ctx) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := domain.DashboardStats{
		TotalUsers:    len(s.accounts),
		TotalConcerts: len(s.concerts),
		TotalOrders:   len(s.orders),
	}
	for _, o := range s.orders {
		if o.Status == domain.OrderStatusPaid {
			stats.TotalRevenue += o.TotalAmount
		}
	}
	stats.MonthlyRevenue = stats.TotalRevenue
	return ok(c, http.StatusOK, "", stats)
}

func (s *Server) listUsers(c *fiber.Ctx) error {
	search := strings.ToLower(c.Query("search"))
	role := domain.Role(c.Query("role"))
	s.mu.Lock()
	var items []domain.User
	for _, acc := range s.accounts {
		if role != "" && acc.user.Role != role {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(acc.user.Name+" "+acc.user.Email), search) {
			continue
		}
		items = append(items, *acc.user.Clone())
	}
	s.mu.Unlock()
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return ok(c, http.StatusOK, "", paginate(c, items))
}

func (s *Server) getUser(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, found := s.accounts[id]
	if !found {
		return apperrors.NewNotFound("User", nil)
	}
	return ok(c, http.StatusOK, "", acc.user.Clone())
}

func (s *Server) updateUser(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	var upd domain.UserUpdate
	if err := c.BodyParser(&upd); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, found := s.accounts[id]
	if !found {
		return apperrors.NewNotFound("User", nil)
	}
	if upd.Name != nil {
		acc.user.Name = *upd.Name
	}
	if upd.Phone != nil {
		phone := *upd.Phone
		acc.user.Phone = &phone
	}
	if upd.Role != nil {
		acc.user.Role = *upd.Role
	}
	return ok(c, http.StatusOK, "User updated", acc.user.Clone())
}

func (s *Server) salesReport(c *fiber.Ctx) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var revenue float64
	sold := 0
	for _, o := range s.orders {
		if o.Status != domain.OrderStatusPaid {
			continue
		}
		revenue += o.TotalAmount
		for _, item := range o.Items {
			sold += item.Quantity
		}
	}
	return ok(c, http.StatusOK, "", fiber.Map{
		"summary": fiber.Map{"total_revenue": revenue, "total_tickets_sold": sold},
		"details": []any{},
	})
}

func (s *Server) newOrder(userID int64, lines []domain.OrderLine) *domain.Order {
	order := &domain.Order{
		ID:        s.id(),
		UserID:    userID,
		Status:    domain.OrderStatusPending,
		CreatedAt: domain.NewTimestamp(time.Now()),
	}
	var total int64
	for _, line := range lines {
		tt := s.ticketTypes[line.TicketTypeID]
		sub := int64(line.Quantity) * domain.Cents(tt.Price)
		total += sub
		ttCopy := *tt
		order.Items = append(order.Items, domain.OrderItem{
			ID:           s.id(),
			TicketTypeID: tt.ID,
			Quantity:     line.Quantity,
			PricePerUnit: tt.Price,
			Subtotal:     float64(sub) / 100,
			TicketType:   &ttCopy,
		})
	}
	order.TotalAmount = float64(total) / 100
	s.orders[order.ID] = order
	return order
}

func (s *Server) restock(o *domain.Order) {
	for _, item := range o.Items {
		if tt, found := s.ticketTypes[item.TicketTypeID]; found {
			tt.QuantityAvailable += item.Quantity
		}
	}
}

func (s *Server) concertWithTypes(concert *domain.Concert) domain.Concert {
	out := *concert
	out.TicketTypes = []domain.TicketType{}
	for _, tt := range s.ticketTypes {
		if tt.ConcertID == concert.ID {
			out.TicketTypes = append(out.TicketTypes, *tt)
		}
	}
	sort.Slice(out.TicketTypes, func(i, j int) bool { return out.TicketTypes[i].ID < out.TicketTypes[j].ID })
	return out
}

func applyConcert(concert *domain.Concert, in domain.ConcertInput) {
	if in.Title != "" {
		concert.Title = in.Title
	}
	if in.Description != "" {
		concert.Description = in.Description
	}
	if in.Venue != "" {
		concert.Venue = in.Venue
	}
	if in.Date != "" {
		concert.Date = in.Date
	}
	if in.Time != "" {
		concert.Time = in.Time
	}
	if in.BannerImage != "" {
		banner := in.BannerImage
		concert.BannerImage = &banner
	}
	if in.Status != "" {
		concert.Status = in.Status
	}
}

func paginate[T any](c *fiber.Ctx, items []T) domain.Page[T] {
	page := c.QueryInt("page", 1)
	perPage := c.QueryInt("per_page", 10)
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	total := len(items)
	pages := (total + perPage - 1) / perPage
	start := (page - 1) * perPage
	if start > total {
		start = total
	}
	end := start + perPage
	if end > total {
		end = total
	}
	out := append([]T{}, items[start:end]...)
	return domain.Page[T]{
		Items: out,
		Pagination: domain.Pagination{
			Page: page, PerPage: perPage, Total: total, Pages: pages,
			HasPrev: page > 1, HasNext: page < pages,
		},
	}
}

func cloneOrder(o *domain.Order) *domain.Order {
	out := *o
	out.Items = append([]domain.OrderItem(nil), o.Items...)
	if o.PaymentMethod != nil {
		m := *o.PaymentMethod
		out.PaymentMethod = &m
	}
	if o.AdminNotes != nil {
		n := *o.AdminNotes
		out.AdminNotes = &n
	}
	return &out
}
