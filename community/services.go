package community

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// ServicesService lists residential service providers and sends them
// inquiries.
type ServicesService struct {
	c *Client
}

// InquiryDraft is the payload for contacting a service provider.
type InquiryDraft struct {
	Content string `json:"content"`
	Contact string `json:"contact,omitempty"`
}

// List returns a page of service listings. Query filters by category or
// name.
func (s *ServicesService) List(ctx context.Context, opts ListOptions) (Page[Service], error) {
	var page Page[Service]
	if err := s.c.get(ctx, "services", "/api/services", listQuery(opts), &page); err != nil {
		return Page[Service]{}, fmt.Errorf("failed to list services: %w", err)
	}
	return page, nil
}

// Get returns one service listing by ID.
func (s *ServicesService) Get(ctx context.Context, id string) (Service, error) {
	var svc Service
	if err := s.c.get(ctx, "services", "/api/services/"+url.PathEscape(id), nil, &svc); err != nil {
		return Service{}, fmt.Errorf("failed to get service %s: %w", id, err)
	}
	return svc, nil
}

// Inquire sends an inquiry to the service provider.
func (s *ServicesService) Inquire(ctx context.Context, serviceID string, draft InquiryDraft) (Inquiry, error) {
	r := request{
		resource: "services",
		method:   http.MethodPost,
		path:     "/api/services/" + url.PathEscape(serviceID) + "/inquiries",
		body:     draft,
	}

	var inquiry Inquiry
	if err := s.c.do(ctx, r, &inquiry); err != nil {
		return Inquiry{}, fmt.Errorf("failed to send inquiry to service %s: %w", serviceID, err)
	}

	s.c.invalidate([]string{"/api/services/" + url.PathEscape(serviceID)}, []string{"/api/services"})
	return inquiry, nil
}
