package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/jahboukie/ndarite/internal/config"
	"github.com/jahboukie/ndarite/internal/db/models"
	"github.com/jahboukie/ndarite/pkg/metrics"
)

var (
	ErrBillingDisabled   = errors.New("billing is not configured")
	ErrUnknownPlan       = errors.New("unknown subscription plan")
	ErrNoSubscription    = errors.New("no active subscription")
	ErrAlreadySubscribed = errors.New("subscription for this plan already active")
)

// Plan describes one purchasable tier for the pricing endpoint.
type Plan struct {
	Tier             models.Tier `json:"tier"`
	Name             string      `json:"name"`
	PriceMonthlyUSD  int         `json:"price_monthly_usd"`
	DocumentLimit    int         `json:"document_limit"`
	ESignIncluded    bool        `json:"esign_included"`
	PrioritySupport  bool        `json:"priority_support"`
	StripeConfigured bool        `json:"-"`
}

// BillingService wraps the Stripe API and keeps local subscription rows in
// sync with webhook events.
type BillingService struct {
	db      *gorm.DB
	cfg     config.BillingConfig
	tiers   config.TierConfig
	stripe  *client.API
	cache   *Cache
	logger  *zap.Logger
	metrics *metrics.Collector
}

func NewBillingService(
	db *gorm.DB,
	cfg config.BillingConfig,
	tiers config.TierConfig,
	cache *Cache,
	logger *zap.Logger,
	collector *metrics.Collector,
) *BillingService {
	bs := &BillingService{
		db:      db,
		cfg:     cfg,
		tiers:   tiers,
		cache:   cache,
		logger:  logger.With(zap.String("service", "billing_service")),
		metrics: collector,
	}
	if cfg.StripeSecretKey != "" {
		bs.stripe = &client.API{}
		bs.stripe.Init(cfg.StripeSecretKey, nil)
	}
	return bs
}

func (bs *BillingService) Enabled() bool {
	return bs.stripe != nil
}

const plansCacheKey = "billing:plans"

// Plans returns the purchasable tiers. The list is cheap to build but cached
// anyway so the pricing page never touches the database path.
func (bs *BillingService) Plans(ctx context.Context) []Plan {
	var cached []Plan
	if err := bs.cache.GetJSON(ctx, plansCacheKey, &cached); err == nil {
		return cached
	}

	limits := bs.tiers.DocumentLimits()
	plans := []Plan{
		{Tier: models.TierFree, Name: "Free", PriceMonthlyUSD: 0, DocumentLimit: limits[models.TierFree]},
		{Tier: models.TierStarter, Name: "Starter", PriceMonthlyUSD: 19, DocumentLimit: limits[models.TierStarter]},
		{Tier: models.TierProfessional, Name: "Professional", PriceMonthlyUSD: 49, DocumentLimit: limits[models.TierProfessional], ESignIncluded: true},
		{Tier: models.TierEnterprise, Name: "Enterprise", PriceMonthlyUSD: 149, DocumentLimit: limits[models.TierEnterprise], ESignIncluded: true, PrioritySupport: true},
	}

	bs.cache.SetJSON(ctx, plansCacheKey, plans, time.Hour)
	return plans
}

func (bs *BillingService) priceForTier(tier models.Tier) (string, error) {
	switch tier {
	case models.TierStarter:
		return bs.cfg.StarterPriceID, nil
	case models.TierProfessional:
		return bs.cfg.ProfessionalPriceID, nil
	case models.TierEnterprise:
		return bs.cfg.EnterprisePriceID, nil
	}
	return "", ErrUnknownPlan
}

func (bs *BillingService) tierForPrice(priceID string) models.Tier {
	switch priceID {
	case bs.cfg.StarterPriceID:
		return models.TierStarter
	case bs.cfg.ProfessionalPriceID:
		return models.TierProfessional
	case bs.cfg.EnterprisePriceID:
		return models.TierEnterprise
	}
	return models.TierFree
}

// EnsureCustomer returns the user's Stripe customer ID, creating the
// customer on first use.
func (bs *BillingService) EnsureCustomer(ctx context.Context, user *models.User) (string, error) {
	if !bs.Enabled() {
		return "", ErrBillingDisabled
	}
	if user.StripeCustomerID != "" {
		return user.StripeCustomerID, nil
	}

	customer, err := bs.stripe.Customers.New(&stripe.CustomerParams{
		Params: stripe.Params{Context: ctx},
		Email:  stripe.String(user.Email),
		Name:   stripe.String(user.FullName()),
		Metadata: map[string]string{
			"user_id": user.ID.String(),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create customer: %w", err)
	}

	if err := bs.db.WithContext(ctx).Model(user).Update("stripe_customer_id", customer.ID).Error; err != nil {
		return "", err
	}
	user.StripeCustomerID = customer.ID

	bs.logger.Info("Stripe customer created",
		zap.String("user_id", user.ID.String()),
		zap.String("customer_id", customer.ID))
	return customer.ID, nil
}

// CreateCheckout starts a Stripe Checkout session for the requested tier and
// returns its redirect URL.
func (bs *BillingService) CreateCheckout(ctx context.Context, user *models.User, tier models.Tier) (string, error) {
	if !bs.Enabled() {
		return "", ErrBillingDisabled
	}
	if user.Tier == tier {
		return "", ErrAlreadySubscribed
	}

	priceID, err := bs.priceForTier(tier)
	if err != nil {
		return "", err
	}
	if priceID == "" {
		return "", ErrUnknownPlan
	}

	customerID, err := bs.EnsureCustomer(ctx, user)
	if err != nil {
		return "", err
	}

	session, err := bs.stripe.CheckoutSessions.New(&stripe.CheckoutSessionParams{
		Params:            stripe.Params{Context: ctx},
		Customer:          stripe.String(customerID),
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL:        stripe.String(bs.cfg.CheckoutSuccessURL),
		CancelURL:         stripe.String(bs.cfg.CheckoutCancelURL),
		ClientReferenceID: stripe.String(user.ID.String()),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(priceID), Quantity: stripe.Int64(1)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create checkout session: %w", err)
	}

	bs.metrics.Increment("billing.checkout_created")
	bs.logger.Info("Checkout session created",
		zap.String("user_id", user.ID.String()),
		zap.String("tier", string(tier)))
	return session.URL, nil
}

// Current returns the user's subscription row, if any.
func (bs *BillingService) Current(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	err := bs.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoSubscription
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// CancelAtPeriodEnd schedules the active subscription for cancellation at the
// end of the paid period. Access continues until then.
func (bs *BillingService) CancelAtPeriodEnd(ctx context.Context, user *models.User) (*models.Subscription, error) {
	if !bs.Enabled() {
		return nil, ErrBillingDisabled
	}

	sub, err := bs.Current(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if !sub.IsActive() {
		return nil, ErrNoSubscription
	}

	_, err = bs.stripe.Subscriptions.Update(sub.StripeSubscriptionID, &stripe.SubscriptionParams{
		Params:            stripe.Params{Context: ctx},
		CancelAtPeriodEnd: stripe.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to cancel subscription: %w", err)
	}

	if err := bs.db.WithContext(ctx).Model(sub).Update("cancel_at_period_end", true).Error; err != nil {
		return nil, err
	}
	sub.CancelAtPeriodEnd = true

	bs.metrics.Increment("billing.cancellations")
	bs.logger.Info("Subscription cancellation scheduled",
		zap.String("user_id", user.ID.String()),
		zap.String("subscription_id", sub.StripeSubscriptionID))
	return sub, nil
}

// ApplyStripeEvent reconciles a verified webhook event into local state.
// Upserts are keyed by Stripe IDs so replayed deliveries converge.
func (bs *BillingService) ApplyStripeEvent(ctx context.Context, event *stripe.Event) error {
	bs.metrics.Increment("billing.webhook_events")

	switch event.Type {
	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return fmt.Errorf("failed to decode checkout session: %w", err)
		}
		return bs.applyCheckoutCompleted(ctx, &session)

	case "customer.subscription.updated", "customer.subscription.created":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("failed to decode subscription: %w", err)
		}
		return bs.applySubscriptionState(ctx, &sub)

	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("failed to decode subscription: %w", err)
		}
		return bs.applySubscriptionDeleted(ctx, &sub)

	case "invoice.payment_failed":
		var invoice stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			return fmt.Errorf("failed to decode invoice: %w", err)
		}
		return bs.applyPaymentFailed(ctx, &invoice)
	}

	bs.logger.Debug("Ignoring webhook event", zap.String("type", string(event.Type)))
	return nil
}

func (bs *BillingService) applyCheckoutCompleted(ctx context.Context, session *stripe.CheckoutSession) error {
	if session.ClientReferenceID == "" || session.Subscription == nil {
		return nil
	}
	userID, err := uuid.Parse(session.ClientReferenceID)
	if err != nil {
		return fmt.Errorf("bad client reference: %w", err)
	}

	sub, err := bs.stripe.Subscriptions.Get(session.Subscription.ID, &stripe.SubscriptionParams{
		Params: stripe.Params{Context: ctx},
	})
	if err != nil {
		return fmt.Errorf("failed to fetch subscription: %w", err)
	}

	return bs.upsertSubscription(ctx, userID, sub)
}

func (bs *BillingService) applySubscriptionState(ctx context.Context, sub *stripe.Subscription) error {
	userID, err := bs.userForCustomer(ctx, sub.Customer.ID)
	if err != nil {
		return err
	}
	return bs.upsertSubscription(ctx, userID, sub)
}

func (bs *BillingService) upsertSubscription(ctx context.Context, userID uuid.UUID, sub *stripe.Subscription) error {
	plan := models.TierFree
	if sub.Items != nil && len(sub.Items.Data) > 0 {
		plan = bs.tierForPrice(sub.Items.Data[0].Price.ID)
	}

	periodStart := time.Unix(sub.CurrentPeriodStart, 0).UTC()
	periodEnd := time.Unix(sub.CurrentPeriodEnd, 0).UTC()

	return bs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row models.Subscription
		err := tx.Where("stripe_subscription_id = ?", sub.ID).First(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			row = models.Subscription{
				UserID:               userID,
				StripeSubscriptionID: sub.ID,
			}
		} else if err != nil {
			return err
		}

		row.Plan = plan
		row.Status = models.SubscriptionStatus(sub.Status)
		row.CurrentPeriodStart = periodStart
		row.CurrentPeriodEnd = periodEnd
		row.CancelAtPeriodEnd = sub.CancelAtPeriodEnd

		if err := tx.Save(&row).Error; err != nil {
			return err
		}

		// The user's tier follows the subscription while it is in good
		// standing, and drops to free otherwise.
		tier := plan
		if !row.IsActive() {
			tier = models.TierFree
		}
		if err := tx.Model(&models.User{}).Where("id = ?", userID).Update("tier", tier).Error; err != nil {
			return err
		}

		bs.logger.Info("Subscription state applied",
			zap.String("user_id", userID.String()),
			zap.String("subscription_id", sub.ID),
			zap.String("status", string(sub.Status)),
			zap.String("tier", string(tier)))
		return nil
	})
}

func (bs *BillingService) applySubscriptionDeleted(ctx context.Context, sub *stripe.Subscription) error {
	userID, err := bs.userForCustomer(ctx, sub.Customer.ID)
	if err != nil {
		return err
	}

	return bs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Subscription{}).
			Where("stripe_subscription_id = ?", sub.ID).
			Update("status", models.SubscriptionCanceled).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.User{}).
			Where("id = ?", userID).
			Update("tier", models.TierFree).Error; err != nil {
			return err
		}
		bs.logger.Info("Subscription deleted, user downgraded",
			zap.String("user_id", userID.String()),
			zap.String("subscription_id", sub.ID))
		return nil
	})
}

func (bs *BillingService) applyPaymentFailed(ctx context.Context, invoice *stripe.Invoice) error {
	if invoice.Subscription == nil {
		return nil
	}
	err := bs.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("stripe_subscription_id = ?", invoice.Subscription.ID).
		Update("status", models.SubscriptionPastDue).Error
	if err != nil {
		return err
	}
	bs.logger.Warn("Subscription payment failed",
		zap.String("subscription_id", invoice.Subscription.ID))
	return nil
}

func (bs *BillingService) userForCustomer(ctx context.Context, customerID string) (uuid.UUID, error) {
	var user models.User
	err := bs.db.WithContext(ctx).
		Select("id").
		Where("stripe_customer_id = ?", customerID).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return uuid.Nil, fmt.Errorf("no user for customer %s", customerID)
	}
	if err != nil {
		return uuid.Nil, err
	}
	return user.ID, nil
}
