package handler

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/sefazor/subscription-checkout/internal/controller"
	"github.com/sefazor/subscription-checkout/internal/middleware"
	"github.com/sefazor/subscription-checkout/internal/models"
	"github.com/sefazor/subscription-checkout/internal/page"
	"github.com/sefazor/subscription-checkout/internal/service"
	"github.com/sefazor/subscription-checkout/pkg/qrcode"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

const qrSize = 256

// SessionField is the hidden input carrying the page session id of a loaded
// confirmation page, so each page submits against its own session.
const SessionField = "session"

// CheckoutSession is what a loaded confirmation page keeps between requests.
type CheckoutSession struct {
	Page     *page.SessionPage
	Checkout *service.Checkout
}

type CheckoutConfig struct {
	PricingMode    models.PricingMode
	ProductID      string
	PublishableKey string
	// Absolute base for handoff links; the request's base URL when empty.
	PublicURL string
}

type CheckoutHandler struct {
	subscriptionController *controller.SubscriptionController
	paymentController      *controller.PaymentController
	sessions               *page.Registry[*CheckoutSession]
	cfg                    CheckoutConfig
	logger                 *zap.SugaredLogger
}

func NewCheckoutHandler(
	subscriptionController *controller.SubscriptionController,
	paymentController *controller.PaymentController,
	sessions *page.Registry[*CheckoutSession],
	cfg CheckoutConfig,
	logger *zap.SugaredLogger,
) *CheckoutHandler {
	return &CheckoutHandler{
		subscriptionController: subscriptionController,
		paymentController:      paymentController,
		sessions:               sessions,
		cfg:                    cfg,
		logger:                 logger,
	}
}

type pricesView struct {
	Action    string
	Mode      models.PricingMode
	ProductID string
	OrgID     string
	Failed    bool
}

type subscribeView struct {
	Action         string
	SessionField   string
	SessionID      string
	PublishableKey string
	CardMountID    string
	Status         template.HTML
}

func (h *CheckoutHandler) PricesPage(c *fiber.Ctx) error {
	return h.renderPrices(c, fiber.StatusOK, pricesView{OrgID: c.Query("orgID")})
}

// CreateSubscription handles the prices form. Success answers with a redirect to the
// confirmation page; failure leaves the user on the prices page.
func (h *CheckoutHandler) CreateSubscription(c *fiber.Ctx) error {
	p := page.FromFiber(c)
	orgID := p.Field("orgID")

	var pricing models.Pricing
	switch h.cfg.PricingMode {
	case models.PricingByYears:
		years, err := parseYears(p.Field("years"))
		if err != nil {
			h.logger.Warnw("subscription not requested", "org_id", orgID, "error", err)
			return h.renderPrices(c, fiber.StatusOK, pricesView{OrgID: orgID, Failed: true})
		}
		pricing = models.YearsPricing(years)
	default:
		pricing = models.ProductPricing(h.cfg.ProductID)
	}

	if _, err := h.subscriptionController.CreateSubscription(c.UserContext(), p, orgID, pricing); err != nil {
		return h.renderPrices(c, fiber.StatusOK, pricesView{OrgID: orgID, Failed: true})
	}
	return nil
}

// SubscribePage is the confirmation page load. Each load starts a new page session.
func (h *CheckoutHandler) SubscribePage(c *fiber.Ctx) error {
	loc := page.FromFiber(c).Location()

	sess, err := h.sessions.CreateWith(func(status *page.StatusRegion) (*CheckoutSession, error) {
		sp := page.NewSessionPage(loc, status)
		checkout, err := h.paymentController.LoadCheckout(sp)
		if err != nil {
			return nil, err
		}
		return &CheckoutSession{Page: sp, Checkout: checkout}, nil
	})
	if err != nil {
		h.logger.Warnw("confirmation page loaded without client secret", "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse("Missing " + models.ClientSecretParam))
	}

	middleware.SetPageSession(c, sess.ID)
	return h.renderSubscribe(c, fiber.StatusOK, sess)
}

// SubmitPayment is the confirmation form submission.
func (h *CheckoutHandler) SubmitPayment(c *fiber.Ctx) error {
	sess, err := h.session(c)
	if err != nil {
		return c.Status(fiber.StatusConflict).JSON(models.ErrorResponse("Page session expired, reload the page"))
	}
	// The session must be the one loaded for this page's client secret.
	if secret := c.Query(models.ClientSecretParam); secret != "" && secret != sess.Value.Checkout.ClientSecret() {
		h.logger.Warnw("payment submitted against another page session", "session", sess.ID)
		return c.Status(fiber.StatusConflict).JSON(models.ErrorResponse("Page session does not match this page, reload the page"))
	}

	form := sess.Value.Page.Fill(c, service.NameField, service.EmailField, service.CardMountID)
	state := h.paymentController.SubmitCheckout(c.UserContext(), sess.Value.Checkout, form)
	h.logger.Debugw("payment submitted", "session", sess.ID, "state", state)

	return h.renderSubscribe(c, fiber.StatusOK, sess)
}

func (h *CheckoutHandler) CheckoutStatus(c *fiber.Ctx) error {
	sess, err := h.session(c)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(models.ErrorResponse("Page session not found"))
	}
	return c.JSON(models.SuccessResponse(models.CheckoutStatus{
		State:    sess.Value.Checkout.State(),
		Messages: sess.Status.Messages(),
	}, ""))
}

// HandoffQRCode renders the confirmation link for the current query as a QR code.
func (h *CheckoutHandler) HandoffQRCode(c *fiber.Ctx) error {
	if c.Query(models.ClientSecretParam) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse("Missing " + models.ClientSecretParam))
	}

	base := h.cfg.PublicURL
	if base == "" {
		base = c.BaseURL()
	}
	png, err := qrcode.NewQRService(base).GenerateQRCode(models.ConfirmationPage, string(c.Request().URI().QueryString()), qrSize)
	if err != nil {
		h.logger.Errorw("qr code generation failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse("Could not render QR code"))
	}

	c.Set(fiber.HeaderCacheControl, "no-store")
	c.Type("png")
	return c.Send(png)
}

// session finds the page session named by the submitted form, or by the cookie of the
// most recently loaded page when the request carries no session field.
func (h *CheckoutHandler) session(c *fiber.Ctx) (*page.Session[*CheckoutSession], error) {
	id := c.FormValue(SessionField)
	if id == "" {
		id = middleware.PageSessionID(c)
	}
	if id == "" {
		return nil, page.ErrSessionNotFound
	}
	return h.sessions.Get(id)
}

func (h *CheckoutHandler) renderPrices(c *fiber.Ctx, status int, v pricesView) error {
	v.Action = c.OriginalURL()
	v.Mode = h.cfg.PricingMode
	v.ProductID = h.cfg.ProductID
	return render(c, status, "prices.html", v)
}

func (h *CheckoutHandler) renderSubscribe(c *fiber.Ctx, status int, sess *page.Session[*CheckoutSession]) error {
	return render(c, status, "subscribe.html", subscribeView{
		Action:         c.OriginalURL(),
		SessionField:   SessionField,
		SessionID:      sess.ID,
		PublishableKey: h.cfg.PublishableKey,
		CardMountID:    service.CardMountID,
		Status:         sess.Status.HTML(),
	})
}

func parseYears(raw string) (int, error) {
	years, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid years %q: %w", raw, err)
	}
	return years, nil
}

func render(c *fiber.Ctx, status int, name string, data interface{}) error {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	c.Status(status)
	c.Type("html", "utf-8")
	return c.Send(buf.Bytes())
}
