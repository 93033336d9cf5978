package apiclient

import (
	"context"
	"fmt"
	"mime"
	"net/http"

	"github.com/concerttix/console/internal/domain"
)

// GetTicketType fetches one ticket type.
func (c *Client) GetTicketType(ctx context.Context, id int64) (*domain.TicketType, error) {
	var out domain.TicketType
	if err := c.getJSON(ctx, fmt.Sprintf("/tickets/%d", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateTicketType edits a ticket type.
func (c *Client) UpdateTicketType(ctx context.Context, id int64, in domain.TicketTypeInput) (*domain.TicketType, error) {
	var out domain.TicketType
	if err := c.sendJSON(ctx, http.MethodPut, fmt.Sprintf("/tickets/%d", id), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteTicketType removes a ticket type.
func (c *Client) DeleteTicketType(ctx context.Context, id int64) error {
	return c.sendJSON(ctx, http.MethodDelete, fmt.Sprintf("/tickets/%d", id), nil, nil)
}

// DownloadTicket fetches the PDF ticket of a paid order.
func (c *Client) DownloadTicket(ctx context.Context, orderID int64) (*domain.Ticket, error) {
	return c.ticketPDF(ctx, fmt.Sprintf("/tickets/download/%d", orderID), orderID)
}

// PreviewTicket fetches the preview rendition of an order's ticket.
func (c *Client) PreviewTicket(ctx context.Context, orderID int64) (*domain.Ticket, error) {
	return c.ticketPDF(ctx, fmt.Sprintf("/tickets/preview/%d", orderID), orderID)
}

func (c *Client) ticketPDF(ctx context.Context, path string, orderID int64) (*domain.Ticket, error) {
	resp, err := c.do(ctx, request{method: http.MethodGet, path: path, accept: "application/pdf"})
	if err != nil {
		return nil, err
	}
	contentType := resp.header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/pdf"
	}
	return &domain.Ticket{
		Filename:    attachmentName(resp.header.Get("Content-Disposition"), fmt.Sprintf("ticket-%d.pdf", orderID)),
		ContentType: contentType,
		Content:     resp.body,
	}, nil
}

func attachmentName(disposition, fallback string) string {
	if disposition == "" {
		return fallback
	}
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil || params["filename"] == "" {
		return fallback
	}
	return params["filename"]
}
