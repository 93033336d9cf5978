package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"

	consolehttp "github.com/concerttix/console/internal/api/http"
	"github.com/concerttix/console/internal/api/http/handlers"
	"github.com/concerttix/console/internal/apiclient"
	"github.com/concerttix/console/internal/apitest"
	"github.com/concerttix/console/internal/config"
	"github.com/concerttix/console/internal/domain"
	"github.com/concerttix/console/internal/events"
	"github.com/concerttix/console/internal/observability"
	"github.com/concerttix/console/internal/service"
	"github.com/concerttix/console/internal/session"
	"github.com/concerttix/console/internal/tokenstore"
	"github.com/concerttix/console/internal/worker"
)

type console struct {
	srv *apitest.Server
	mgr *session.Manager
	app *fiber.App
}

func newConsole(t *testing.T) *console {
	t.Helper()
	srv := apitest.NewServer(t)
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	dispatcher := events.NewInMemoryDispatcher()

	client := apiclient.New(apiclient.Options{
		BaseURL:      srv.BaseURL,
		Timeout:      5 * time.Second,
		MaxRetries:   3,
		RetryBackoff: time.Millisecond,
		Metrics:      metrics,
	})
	mgr := session.NewManager(client, tokenstore.New(tokenstore.NewMemoryBackend(), nil), session.Options{
		Metrics:    metrics,
		Dispatcher: dispatcher,
	})
	client.SetTokenSource(mgr)
	client.OnUnauthorized(mgr.Invalidate)

	feed := service.NewNotificationService(dispatcher, nil, config.NotificationConfig{})
	worker.StartNotificationWorker(feed)
	orders := service.NewOrderService(client, dispatcher, nil)

	app := fiber.New()
	consolehttp.RegisterMiddlewares(app, nil, metrics, 0)
	consolehttp.RegisterRoutes(app, consolehttp.RouteConfig{
		Health:        handlers.NewHealthHandler("concerttix-console", "test", mgr, client),
		Auth:          handlers.NewAuthHandler(mgr),
		Concerts:      handlers.NewConcertsHandler(client),
		Orders:        handlers.NewOrdersHandler(client, orders),
		Admin:         handlers.NewAdminHandler(client, orders),
		Notifications: handlers.NewNotificationsHandler(feed),
		Sessions:      mgr,
		Gatherer:      reg,
	})
	return &console{srv: srv, mgr: mgr, app: app}
}

func (c *console) do(t *testing.T, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encode body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.app.Test(req, 10000)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	out := map[string]any{}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("decode %s: %v", raw, err)
		}
	} else {
		out["raw"] = string(raw)
	}
	return resp, out
}

func (c *console) login(t *testing.T, email string) {
	t.Helper()
	resp, body := c.do(t, http.MethodPost, "/auth/login", map[string]string{"email": email, "password": apitest.Password})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d body = %v", resp.StatusCode, body)
	}
}

func errorCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func dataMap(body map[string]any) map[string]any {
	d, _ := body["data"].(map[string]any)
	return d
}

func TestConsole_WaitsUntilSessionSettles(t *testing.T) {
	c := newConsole(t)

	resp, _ := c.do(t, http.MethodGet, "/orders", nil)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status before initialize = %d", resp.StatusCode)
	}

	c.mgr.Initialize(context.Background())
	resp, body := c.do(t, http.MethodGet, "/orders", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body["redirect"] != "/login?from=%2Forders" {
		t.Errorf("redirect = %v", body["redirect"])
	}
}

func TestConsole_PublicCatalogue(t *testing.T) {
	c := newConsole(t)
	resp, body := c.do(t, http.MethodGet, "/concerts", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d body = %v", resp.StatusCode, body)
	}
	items, _ := dataMap(body)["items"].([]any)
	if len(items) == 0 {
		t.Fatal("no concerts listed")
	}
}

func TestConsole_CustomerBooksAndPays(t *testing.T) {
	c := newConsole(t)
	c.mgr.Initialize(context.Background())
	c.login(t, apitest.CustomerEmail)

	resp, body := c.do(t, http.MethodPost, "/orders", map[string]any{
		"items": []map[string]any{{"ticket_type_id": 2, "quantity": 2}},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d body = %v", resp.StatusCode, body)
	}
	order := dataMap(body)["order"].(map[string]any)
	id := int64(order["order_id"].(float64))

	resp, body = c.do(t, http.MethodPut, fmt.Sprintf("/orders/%d/pay", id), map[string]string{"payment_method": string(domain.PaymentEWallet)})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("pay status = %d body = %v", resp.StatusCode, body)
	}
	view := dataMap(body)
	if view["status_label"] != "Awaiting Verification" {
		t.Errorf("label = %v", view["status_label"])
	}
	if got := c.srv.Order(id); got.Status != domain.OrderStatusPaymentSubmitted || got.PaymentSubmittedAt == nil {
		t.Errorf("server order = %+v", got)
	}

	resp, body = c.do(t, http.MethodPut, fmt.Sprintf("/orders/%d/pay", id), map[string]string{"payment_method": string(domain.PaymentCash)})
	if resp.StatusCode != http.StatusConflict || errorCode(body) != "INVALID_STATE_TRANSITION" {
		t.Errorf("second pay = %d %v", resp.StatusCode, body)
	}

	resp, body = c.do(t, http.MethodGet, "/notifications", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("notifications status = %d", resp.StatusCode)
	}
	toasts, _ := body["data"].([]any)
	if len(toasts) < 3 {
		t.Errorf("toasts = %v", toasts)
	}
}

func TestConsole_WrongPasswordStaysOnForm(t *testing.T) {
	c := newConsole(t)
	c.mgr.Initialize(context.Background())

	resp, body := c.do(t, http.MethodPost, "/auth/login", map[string]string{"email": apitest.CustomerEmail, "password": "nope"})
	if resp.StatusCode != http.StatusUnauthorized || errorCode(body) != "INVALID_CREDENTIALS" {
		t.Fatalf("status = %d body = %v", resp.StatusCode, body)
	}
	if _, ok := body["redirect"]; ok {
		t.Error("login form error carries a redirect")
	}
}

func TestConsole_ExpiredSessionRedirects(t *testing.T) {
	c := newConsole(t)
	c.mgr.Initialize(context.Background())
	c.login(t, apitest.CustomerEmail)
	c.srv.Revoke(c.mgr.Snapshot().Token)

	resp, body := c.do(t, http.MethodGet, "/orders", nil)
	if resp.StatusCode != http.StatusUnauthorized || errorCode(body) != "SESSION_EXPIRED" {
		t.Fatalf("status = %d body = %v", resp.StatusCode, body)
	}
	if body["redirect"] != "/login" {
		t.Errorf("redirect = %v", body["redirect"])
	}

	_, body = c.do(t, http.MethodGet, "/auth/session", nil)
	if dataMap(body)["is_authenticated"] != false {
		t.Errorf("session after 401 = %v", body)
	}
}

func TestConsole_AdminVerifiesPayment(t *testing.T) {
	c := newConsole(t)
	c.mgr.Initialize(context.Background())
	c.login(t, apitest.AdminEmail)
	seeded := c.srv.SeedOrder(apitest.CustomerEmail, domain.OrderStatusPaymentSubmitted)

	resp, body := c.do(t, http.MethodPut, fmt.Sprintf("/admin/orders/%d/verify", seeded.ID),
		map[string]string{"action": "approve", "admin_notes": "ok"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("verify status = %d body = %v", resp.StatusCode, body)
	}
	if got := c.srv.Order(seeded.ID); got.Status != domain.OrderStatusPaid || got.PaymentVerifiedAt == nil {
		t.Errorf("server order = %+v", got)
	}

	resp, body = c.do(t, http.MethodGet, "/orders", nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("admin on customer page = %d %v", resp.StatusCode, body)
	}

	resp, _ = c.do(t, http.MethodGet, "/admin/dashboard", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("dashboard status = %d", resp.StatusCode)
	}
}

func TestConsole_CustomerCannotOpenAdmin(t *testing.T) {
	c := newConsole(t)
	c.mgr.Initialize(context.Background())
	c.login(t, apitest.CustomerEmail)

	resp, body := c.do(t, http.MethodGet, "/admin/dashboard", nil)
	if resp.StatusCode != http.StatusForbidden || errorCode(body) != "FORBIDDEN" {
		t.Fatalf("status = %d body = %v", resp.StatusCode, body)
	}
}

func TestConsole_TicketDownload(t *testing.T) {
	c := newConsole(t)
	c.mgr.Initialize(context.Background())
	c.login(t, apitest.CustomerEmail)
	paid := c.srv.SeedOrder(apitest.CustomerEmail, domain.OrderStatusPaid)

	resp, body := c.do(t, http.MethodGet, fmt.Sprintf("/orders/%d/ticket", paid.ID), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d body = %v", resp.StatusCode, body)
	}
	if resp.Header.Get("Content-Type") != "application/pdf" {
		t.Errorf("content type = %q", resp.Header.Get("Content-Type"))
	}
	if !strings.Contains(resp.Header.Get("Content-Disposition"), fmt.Sprintf("ticket-ORD-%d.pdf", paid.ID)) {
		t.Errorf("disposition = %q", resp.Header.Get("Content-Disposition"))
	}
	if !strings.HasPrefix(body["raw"].(string), "%PDF-") {
		t.Error("body is not a PDF")
	}
}

func TestConsole_TicketPreview(t *testing.T) {
	c := newConsole(t)
	c.mgr.Initialize(context.Background())
	c.login(t, apitest.CustomerEmail)
	paid := c.srv.SeedOrder(apitest.CustomerEmail, domain.OrderStatusPaid)
	pending := c.srv.SeedOrder(apitest.CustomerEmail, domain.OrderStatusPending)

	resp, body := c.do(t, http.MethodGet, fmt.Sprintf("/orders/%d/ticket/preview", paid.ID), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d body = %v", resp.StatusCode, body)
	}
	if !strings.HasPrefix(resp.Header.Get("Content-Disposition"), "inline") {
		t.Errorf("disposition = %q", resp.Header.Get("Content-Disposition"))
	}
	if !strings.HasPrefix(body["raw"].(string), "%PDF-") {
		t.Error("body is not a PDF")
	}

	resp, body = c.do(t, http.MethodGet, fmt.Sprintf("/orders/%d/ticket/preview", pending.ID), nil)
	if resp.StatusCode != http.StatusConflict || errorCode(body) != "INVALID_STATE_TRANSITION" {
		t.Errorf("pending preview = %d %v", resp.StatusCode, body)
	}
	if n := c.srv.Calls(fmt.Sprintf("GET /tickets/preview/%d", pending.ID)); n != 0 {
		t.Errorf("pending preview reached the API %d times", n)
	}
}

func TestConsole_AdminManagesTicketTypes(t *testing.T) {
	c := newConsole(t)
	c.mgr.Initialize(context.Background())
	c.login(t, apitest.AdminEmail)

	resp, body := c.do(t, http.MethodGet, "/admin/tickets/2", nil)
	if resp.StatusCode != http.StatusOK || dataMap(body)["name"] != "Regular" {
		t.Fatalf("get = %d %v", resp.StatusCode, body)
	}

	resp, body = c.do(t, http.MethodPut, "/admin/tickets/2", map[string]any{"name": "Regular Plus", "price": 59.5})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update = %d %v", resp.StatusCode, body)
	}
	if d := dataMap(body); d["name"] != "Regular Plus" || d["price"] != 59.5 || d["quantity_total"] != float64(500) {
		t.Errorf("updated = %v", d)
	}

	resp, body = c.do(t, http.MethodPut, "/admin/tickets/2", map[string]any{"price": -1})
	if resp.StatusCode != http.StatusBadRequest || errorCode(body) != "VALIDATION_FAILED" {
		t.Errorf("negative price = %d %v", resp.StatusCode, body)
	}

	resp, _ = c.do(t, http.MethodDelete, "/admin/tickets/2", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}
	resp, body = c.do(t, http.MethodGet, "/admin/tickets/2", nil)
	if resp.StatusCode != http.StatusNotFound || errorCode(body) != "NOT_FOUND" {
		t.Errorf("after delete = %d %v", resp.StatusCode, body)
	}
}

func TestConsole_CustomerCannotManageTicketTypes(t *testing.T) {
	c := newConsole(t)
	c.mgr.Initialize(context.Background())
	c.login(t, apitest.CustomerEmail)

	resp, body := c.do(t, http.MethodDelete, "/admin/tickets/1", nil)
	if resp.StatusCode != http.StatusForbidden || errorCode(body) != "FORBIDDEN" {
		t.Fatalf("status = %d body = %v", resp.StatusCode, body)
	}
	if n := c.srv.Calls("DELETE /tickets/1"); n != 0 {
		t.Errorf("delete reached the API %d times", n)
	}
}

func TestConsole_ValidationAndUnknownRoutes(t *testing.T) {
	c := newConsole(t)
	c.mgr.Initialize(context.Background())

	resp, body := c.do(t, http.MethodPost, "/auth/register", map[string]string{
		"name": "X", "email": "x@example.com", "password": "secret1", "confirm_password": "secret2",
	})
	if resp.StatusCode != http.StatusBadRequest || errorCode(body) != "VALIDATION_FAILED" {
		t.Errorf("register mismatch = %d %v", resp.StatusCode, body)
	}

	resp, body = c.do(t, http.MethodGet, "/nowhere", nil)
	if resp.StatusCode != http.StatusNotFound || errorCode(body) != "NOT_FOUND" {
		t.Errorf("unknown route = %d %v", resp.StatusCode, body)
	}
}

func TestConsole_HealthAndMetrics(t *testing.T) {
	c := newConsole(t)

	resp, _ := c.do(t, http.MethodGet, "/health/ready", nil)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("ready before initialize = %d", resp.StatusCode)
	}

	c.mgr.Initialize(context.Background())
	c.login(t, apitest.CustomerEmail)

	resp, _ = c.do(t, http.MethodGet, "/health/ready", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("ready = %d", resp.StatusCode)
	}

	resp, body := c.do(t, http.MethodGet, "/metrics", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics status = %d", resp.StatusCode)
	}
	for _, series := range []string{"concerttix_api_requests_total", "concerttix_session_transitions_total"} {
		if !strings.Contains(body["raw"].(string), series) {
			t.Errorf("metrics missing %s", series)
		}
	}
}
