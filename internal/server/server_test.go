package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/require"

	"github.com/sefazor/subscription-checkout/internal/controller"
	"github.com/sefazor/subscription-checkout/internal/handler"
	"github.com/sefazor/subscription-checkout/internal/middleware"
	"github.com/sefazor/subscription-checkout/internal/models"
	"github.com/sefazor/subscription-checkout/internal/page"
	"github.com/sefazor/subscription-checkout/internal/service"
	"github.com/sefazor/subscription-checkout/pkg/logging"
	"github.com/sefazor/subscription-checkout/pkg/payment"
	"github.com/sefazor/subscription-checkout/pkg/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const publishableKey = "pk_test_checkout"

func subscriptionBackend(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// stripeCalls records the confirmations the fake Stripe API received.
type stripeCalls struct {
	mu    sync.Mutex
	paths []string
	forms []url.Values
	// hold, when set, is called for every confirmation before it is answered.
	hold func()
}

func (s *stripeCalls) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.paths...)
}

func (s *stripeCalls) Forms() []url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]url.Values(nil), s.forms...)
}

func stripeAPI(t *testing.T, calls *stripeCalls) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if calls != nil {
			calls.mu.Lock()
			calls.paths = append(calls.paths, r.URL.Path)
			calls.forms = append(calls.forms, r.PostForm)
			calls.mu.Unlock()
			if calls.hold != nil {
				calls.hold()
			}
		}
		w.Header().Set("Content-Type", "application/json")
		if r.PostForm.Get("payment_method_data[card][token]") == "tok_chargeDeclined" {
			w.WriteHeader(http.StatusPaymentRequired)
			_, _ = io.WriteString(w, `{"error":{"type":"card_error","code":"card_declined","message":"Your card was declined."}}`)
			return
		}
		_, _ = io.WriteString(w, `{"id":"pi_1","object":"payment_intent","status":"succeeded"}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestServer(t *testing.T, backendURL string, mode models.PricingMode) *Server {
	t.Helper()
	return newTestServerWithStripe(t, backendURL, mode, nil)
}

func newTestServerWithStripe(t *testing.T, backendURL string, mode models.PricingMode, calls *stripeCalls) *Server {
	t.Helper()
	logger := logging.Nop()

	subscriptionService := service.NewSubscriptionService(backendURL, utils.NewValidator(), logger, service.SubscriptionOptions{})
	stripeService := payment.NewStripeService(publishableKey, payment.Options{APIURL: stripeAPI(t, calls).URL, Logger: logger})
	paymentService := service.NewPaymentService(stripeService, logger)

	checkoutHandler := handler.NewCheckoutHandler(
		controller.NewSubscriptionController(subscriptionService),
		controller.NewPaymentController(paymentService),
		page.NewRegistry[*handler.CheckoutSession](time.Minute),
		handler.CheckoutConfig{
			PricingMode:    mode,
			ProductID:      "prod_K2OpdTIt5JQxoW",
			PublishableKey: publishableKey,
			PublicURL:      "https://shop.example/",
		},
		logger,
	)
	return NewServer(checkoutHandler, logger, Options{})
}

func postForm(target string, form url.Values, cookies ...*http.Cookie) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return req
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

var sessionInput = regexp.MustCompile(`name="session" value="([0-9a-f-]+)"`)

// loadSubscribePage opens a confirmation page and returns its session cookie and the
// session id embedded in its form.
func loadSubscribePage(t *testing.T, app *fiber.App, target string) (*http.Cookie, string) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, target, nil), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cookie := sessionCookie(t, resp)
	m := sessionInput.FindStringSubmatch(readBody(t, resp))
	require.Len(t, m, 2)
	require.Equal(t, cookie.Value, m[1])
	return cookie, m[1]
}

func sessionCookie(t *testing.T, resp *http.Response) *http.Cookie {
	t.Helper()
	for _, c := range resp.Cookies() {
		if c.Name == middleware.PageSessionCookie {
			return c
		}
	}
	t.Fatal("no page session cookie")
	return nil
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, "http://127.0.0.1:1", models.PricingByProduct)
	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/health", nil), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCheckoutFlow(t *testing.T) {
	backend := subscriptionBackend(t, http.StatusOK, `{"client_secret":"pi_1_secret_2"}`)
	app := newTestServer(t, backend.URL, models.PricingByProduct).App()

	// prices page
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/prices.html?ref=mail", nil), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := readBody(t, resp)
	require.Contains(t, body, `value="prod_K2OpdTIt5JQxoW"`)
	require.Contains(t, body, `id="authToken"`)

	// initiate
	resp, err = app.Test(postForm("/prices.html?ref=mail", url.Values{"authToken": {"tok123"}, "orgID": {"42"}}), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	location := resp.Header.Get("Location")
	require.Equal(t, "subscribe.html?ref=mail&clientSecret=pi_1_secret_2", location)

	// confirmation page load
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/"+location, nil), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cookie := sessionCookie(t, resp)
	body = readBody(t, resp)
	require.Contains(t, body, publishableKey)
	require.Contains(t, body, `id="card-element"`)

	// declined, then retried
	resp, err = app.Test(postForm("/"+location, url.Values{"name": {"Ada"}, "card-element": {"tok_chargeDeclined"}}, cookie), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, readBody(t, resp), "Payment failed: Your card was declined.")

	resp, err = app.Test(postForm("/"+location, url.Values{"name": {"Ada"}, "card-element": {"tok_visa"}}, cookie), -1)
	require.NoError(t, err)
	body = readBody(t, resp)
	require.Contains(t, body, "<br>Payment failed: Your card was declined.<br>Success! You can redirect to another page.")

	// status
	req := httptest.NewRequest(http.MethodGet, "/subscribe/status", nil)
	req.AddCookie(cookie)
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Success bool                  `json:"success"`
		Data    models.CheckoutStatus `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(readBody(t, resp)), &out))
	require.True(t, out.Success)
	require.Equal(t, models.CheckoutSucceeded, out.Data.State)
	require.Equal(t, []string{
		"Payment failed: Your card was declined.",
		"Success! You can redirect to another page.",
	}, out.Data.Messages)
}

func TestCreateSubscriptionByYears(t *testing.T) {
	var got map[string]interface{}
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = io.WriteString(w, `{"client_secret":"pi_1_secret_2"}`)
	}))
	defer backend.Close()
	app := newTestServer(t, backend.URL, models.PricingByYears).App()

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/prices.html", nil), -1)
	require.NoError(t, err)
	require.Contains(t, readBody(t, resp), `id="years"`)

	resp, err = app.Test(postForm("/prices.html", url.Values{"authToken": {"tok123"}, "orgID": {"42"}, "years": {"2"}}), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, map[string]interface{}{"org_id": "42", "years": float64(2)}, got)
}

func TestCreateSubscriptionFailureStaysOnPage(t *testing.T) {
	backend := subscriptionBackend(t, http.StatusOK, `{"client_secret":"pi_1_secret_2"}`)
	app := newTestServer(t, backend.URL, models.PricingByProduct).App()

	// wrong token is rejected by the backend
	resp, err := app.Test(postForm("/prices.html", url.Values{"authToken": {"nope"}, "orgID": {"42"}}), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Empty(t, resp.Header.Get("Location"))
	require.Contains(t, readBody(t, resp), "Subscription could not be started.")
}

func TestSubscribePageRequiresClientSecret(t *testing.T) {
	app := newTestServer(t, "http://127.0.0.1:1", models.PricingByProduct).App()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/subscribe.html?ref=mail", nil), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSubmitWithoutSession(t *testing.T) {
	app := newTestServer(t, "http://127.0.0.1:1", models.PricingByProduct).App()

	resp, err := app.Test(postForm("/subscribe.html?clientSecret=pi_1_secret_2", url.Values{"name": {"Ada"}}), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	stale := &http.Cookie{Name: middleware.PageSessionCookie, Value: "0b7c0a8e-8f8e-4c39-9a43-3c1c6f5f2f11"}
	resp, err = app.Test(postForm("/subscribe.html?clientSecret=pi_1_secret_2", url.Values{"name": {"Ada"}}, stale), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/subscribe/status", nil), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSubmitWithoutCardToken(t *testing.T) {
	app := newTestServer(t, "http://127.0.0.1:1", models.PricingByProduct).App()

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/subscribe.html?clientSecret=pi_1_secret_2", nil), -1)
	require.NoError(t, err)
	cookie := sessionCookie(t, resp)

	resp, err = app.Test(postForm("/subscribe.html?clientSecret=pi_1_secret_2", url.Values{"name": {"Ada"}}, cookie), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, readBody(t, resp), "Payment failed: card details are incomplete")
}

func TestHandoffQRCode(t *testing.T) {
	app := newTestServer(t, "http://127.0.0.1:1", models.PricingByProduct).App()

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/subscribe/qr.png?clientSecret=pi_1_secret_2", nil), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	require.True(t, strings.HasPrefix(readBody(t, resp), "\x89PNG"))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/subscribe/qr.png", nil), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateSubscriptionInvalidYears(t *testing.T) {
	called := false
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		_, _ = io.WriteString(w, `{"client_secret":"pi_1_secret_2"}`)
	}))
	defer backend.Close()
	app := newTestServer(t, backend.URL, models.PricingByYears).App()

	resp, err := app.Test(postForm("/prices.html", url.Values{"authToken": {"tok123"}, "orgID": {"42"}, "years": {"two"}}), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Empty(t, resp.Header.Get("Location"))
	require.Contains(t, readBody(t, resp), "Subscription could not be started.")
	require.False(t, called)
}

func TestSubmitUsesSessionOfItsOwnPage(t *testing.T) {
	calls := &stripeCalls{}
	app := newTestServerWithStripe(t, "http://127.0.0.1:1", models.PricingByProduct, calls).App()

	_, first := loadSubscribePage(t, app, "/subscribe.html?clientSecret=pi_A_secret_1")
	latest, second := loadSubscribePage(t, app, "/subscribe.html?clientSecret=pi_B_secret_1")
	require.NotEqual(t, first, second)

	// the browser only keeps the cookie of the latest page
	resp, err := app.Test(postForm("/subscribe.html?clientSecret=pi_A_secret_1",
		url.Values{"session": {first}, "name": {"Ada"}, "card-element": {"tok_visa"}}, latest), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, readBody(t, resp), "Success! You can redirect to another page.")
	require.Equal(t, []string{"/v1/payment_intents/pi_A/confirm"}, calls.Paths())

	// without its session field the first page would land on the second page's session
	resp, err = app.Test(postForm("/subscribe.html?clientSecret=pi_A_secret_1",
		url.Values{"name": {"Ada"}, "card-element": {"tok_visa"}}, latest), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.Len(t, calls.Paths(), 1)

	// a session id that does not belong to the page's client secret is refused too
	resp, err = app.Test(postForm("/subscribe.html?clientSecret=pi_A_secret_1",
		url.Values{"session": {second}, "name": {"Ada"}, "card-element": {"tok_visa"}}), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.Len(t, calls.Paths(), 1)

	// status of a specific page
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/subscribe/status?session="+first, nil), -1)
	require.NoError(t, err)
	var out struct {
		Data models.CheckoutStatus `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(readBody(t, resp)), &out))
	require.Equal(t, models.CheckoutSucceeded, out.Data.State)
}

func TestConcurrentSubmitsKeepTheirOwnInputs(t *testing.T) {
	var arrived sync.WaitGroup
	arrived.Add(2)
	calls := &stripeCalls{hold: func() {
		arrived.Done()
		done := make(chan struct{})
		go func() {
			arrived.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
		}
	}}
	app := newTestServerWithStripe(t, "http://127.0.0.1:1", models.PricingByProduct, calls).App()

	cookie, id := loadSubscribePage(t, app, "/subscribe.html?clientSecret=pi_1_secret_2")

	forms := []url.Values{
		{"session": {id}, "name": {"Ada"}, "card-element": {"tok_ada"}},
		{"session": {id}, "name": {"Bob"}, "card-element": {"tok_bob"}},
	}
	var wg sync.WaitGroup
	for _, form := range forms {
		wg.Add(1)
		go func(form url.Values) {
			defer wg.Done()
			resp, err := app.Test(postForm("/subscribe.html?clientSecret=pi_1_secret_2", form, cookie), -1)
			if err == nil {
				resp.Body.Close()
			}
		}(form)
	}
	wg.Wait()

	paired := map[string]string{}
	for _, f := range calls.Forms() {
		paired[f.Get("payment_method_data[billing_details][name]")] = f.Get("payment_method_data[card][token]")
	}
	require.Equal(t, map[string]string{"Ada": "tok_ada", "Bob": "tok_bob"}, paired)

	req := httptest.NewRequest(http.MethodGet, "/subscribe/status?session="+id, nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	var out struct {
		Data models.CheckoutStatus `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(readBody(t, resp)), &out))
	require.Equal(t, []string{
		"Success! You can redirect to another page.",
		"Success! You can redirect to another page.",
	}, out.Data.Messages)
}
