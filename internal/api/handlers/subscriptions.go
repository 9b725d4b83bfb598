package handlers

import (
	"math"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jahboukie/ndarite/internal/api/middleware"
	"github.com/jahboukie/ndarite/internal/config"
	"github.com/jahboukie/ndarite/internal/db/models"
	"github.com/jahboukie/ndarite/internal/services"
)

type SubscriptionHandler struct {
	billing *services.BillingService
	usage   *services.UsageService
	tiers   config.TierConfig
	logger  *zap.Logger
}

func NewSubscriptionHandler(
	billing *services.BillingService,
	usage *services.UsageService,
	tiers config.TierConfig,
	logger *zap.Logger,
) *SubscriptionHandler {
	return &SubscriptionHandler{
		billing: billing,
		usage:   usage,
		tiers:   tiers,
		logger:  logger.With(zap.String("handler", "subscriptions")),
	}
}

// Plans is the public pricing endpoint.
func (h *SubscriptionHandler) Plans(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"plans": h.billing.Plans(c.Request.Context())})
}

func (h *SubscriptionHandler) Current(c *gin.Context) {
	user := middleware.CurrentUser(c)

	sub, err := h.billing.Current(c.Request.Context(), user.ID)
	if err != nil {
		if err == services.ErrNoSubscription {
			c.JSON(http.StatusOK, gin.H{
				"tier":         user.Tier,
				"subscription": nil,
			})
			return
		}
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tier": user.Tier,
		"subscription": gin.H{
			"plan":                 sub.Plan,
			"status":               sub.Status,
			"current_period_start": sub.CurrentPeriodStart,
			"current_period_end":   sub.CurrentPeriodEnd,
			"cancel_at_period_end": sub.CancelAtPeriodEnd,
			"days_until_renewal":   sub.DaysUntilRenewal(),
		},
	})
}

type upgradeRequest struct {
	Tier models.Tier `json:"tier" binding:"required"`
}

// Upgrade starts a Stripe Checkout session and returns its URL for the
// client to redirect to.
func (h *SubscriptionHandler) Upgrade(c *gin.Context) {
	user := middleware.CurrentUser(c)

	var req upgradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	if !req.Tier.IsValid() || req.Tier == models.TierFree {
		respondError(c, services.ErrUnknownPlan)
		return
	}

	url, err := h.billing.CreateCheckout(c.Request.Context(), user, req.Tier)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"checkout_url": url})
}

func (h *SubscriptionHandler) Cancel(c *gin.Context) {
	user := middleware.CurrentUser(c)

	sub, err := h.billing.CancelAtPeriodEnd(c.Request.Context(), user)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":            "Subscription will cancel at the end of the billing period",
		"current_period_end": sub.CurrentPeriodEnd,
	})
}

// Usage reports the month's consumption against the tier allowance.
func (h *SubscriptionHandler) Usage(c *gin.Context) {
	user := middleware.CurrentUser(c)

	monthly, err := h.usage.MonthlyDocumentCount(user.ID)
	if err != nil {
		h.logger.Error("Usage count failed", zap.Error(err))
		respondError(c, err)
		return
	}

	limit := h.tiers.DocumentLimits()[user.Tier]
	percentage := 0.0
	if limit > 0 {
		percentage = math.Round(float64(monthly)/float64(limit)*1000) / 10
	}

	c.JSON(http.StatusOK, gin.H{
		"tier":                 user.Tier,
		"documents_this_month": monthly,
		"monthly_limit":        limit,
		"usage_percentage":     percentage,
		"period_start":         services.MonthStart(),
		"period_end":           services.MonthEnd(),
	})
}
