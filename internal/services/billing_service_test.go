package services

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v79"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/jahboukie/ndarite/internal/config"
	"github.com/jahboukie/ndarite/internal/db/models"
	"github.com/jahboukie/ndarite/pkg/metrics"
)

func newTestBillingService(t *testing.T, database *gorm.DB) *BillingService {
	t.Helper()
	logger := zap.NewNop()
	return NewBillingService(
		database,
		config.BillingConfig{
			StarterPriceID:      "price_starter",
			ProfessionalPriceID: "price_pro",
			EnterprisePriceID:   "price_ent",
		},
		config.TierConfig{FreeLimit: 3, StarterLimit: 25, ProfessionalLimit: 100, EnterpriseLimit: -1},
		NewCache(config.RedisConfig{}, logger),
		logger,
		metrics.NewCollector(),
	)
}

func subscriptionEvent(t *testing.T, eventType, subID, customerID, priceID, status string, cancelAtPeriodEnd bool) *stripe.Event {
	t.Helper()
	start := time.Now().UTC()
	end := start.AddDate(0, 1, 0)
	raw := fmt.Sprintf(`{
		"id": %q,
		"customer": %q,
		"status": %q,
		"cancel_at_period_end": %t,
		"current_period_start": %d,
		"current_period_end": %d,
		"items": {"data": [{"price": {"id": %q}}]}
	}`, subID, customerID, status, cancelAtPeriodEnd, start.Unix(), end.Unix(), priceID)

	return &stripe.Event{
		Type: stripe.EventType(eventType),
		Data: &stripe.EventData{Raw: json.RawMessage(raw)},
	}
}

func TestBillingServicePlans(t *testing.T) {
	database := newTestDB(t)
	bs := newTestBillingService(t, database)

	plans := bs.Plans(context.Background())
	if len(plans) != 4 {
		t.Fatalf("plans = %d, want 4", len(plans))
	}
	if plans[0].Tier != models.TierFree || plans[0].PriceMonthlyUSD != 0 {
		t.Errorf("first plan = %+v, want free at $0", plans[0])
	}
	if plans[3].DocumentLimit != -1 {
		t.Errorf("enterprise limit = %d, want unlimited", plans[3].DocumentLimit)
	}
}

func TestBillingServiceTierForPrice(t *testing.T) {
	bs := newTestBillingService(t, newTestDB(t))

	tests := []struct {
		priceID string
		want    models.Tier
	}{
		{"price_starter", models.TierStarter},
		{"price_pro", models.TierProfessional},
		{"price_ent", models.TierEnterprise},
		{"price_unknown", models.TierFree},
	}
	for _, tt := range tests {
		t.Run(tt.priceID, func(t *testing.T) {
			if got := bs.tierForPrice(tt.priceID); got != tt.want {
				t.Errorf("tierForPrice(%q) = %s, want %s", tt.priceID, got, tt.want)
			}
		})
	}
}

func TestBillingServiceApplySubscriptionUpdated(t *testing.T) {
	database := newTestDB(t)
	bs := newTestBillingService(t, database)

	user := createTestUser(t, database, "jane@example.com", models.TierFree)
	database.Model(user).Update("stripe_customer_id", "cus_1")

	event := subscriptionEvent(t, "customer.subscription.updated", "sub_1", "cus_1", "price_pro", "active", false)
	if err := bs.ApplyStripeEvent(context.Background(), event); err != nil {
		t.Fatalf("ApplyStripeEvent: %v", err)
	}

	var sub models.Subscription
	if err := database.Where("stripe_subscription_id = ?", "sub_1").First(&sub).Error; err != nil {
		t.Fatalf("load subscription: %v", err)
	}
	if sub.Plan != models.TierProfessional {
		t.Errorf("plan = %s, want professional", sub.Plan)
	}
	if sub.Status != models.SubscriptionActive {
		t.Errorf("status = %s, want active", sub.Status)
	}

	var updated models.User
	database.First(&updated, "id = ?", user.ID)
	if updated.Tier != models.TierProfessional {
		t.Errorf("user tier = %s, want professional", updated.Tier)
	}

	// Replaying the event must not create a second row.
	if err := bs.ApplyStripeEvent(context.Background(), event); err != nil {
		t.Fatalf("replayed event: %v", err)
	}
	var rows int64
	database.Model(&models.Subscription{}).Where("stripe_subscription_id = ?", "sub_1").Count(&rows)
	if rows != 1 {
		t.Errorf("subscription rows = %d, want 1", rows)
	}
}

func TestBillingServicePastDueDowngradesTier(t *testing.T) {
	database := newTestDB(t)
	bs := newTestBillingService(t, database)

	user := createTestUser(t, database, "jane@example.com", models.TierProfessional)
	database.Model(user).Update("stripe_customer_id", "cus_1")

	event := subscriptionEvent(t, "customer.subscription.updated", "sub_1", "cus_1", "price_pro", "past_due", false)
	if err := bs.ApplyStripeEvent(context.Background(), event); err != nil {
		t.Fatalf("ApplyStripeEvent: %v", err)
	}

	var updated models.User
	database.First(&updated, "id = ?", user.ID)
	if updated.Tier != models.TierFree {
		t.Errorf("user tier = %s, want free after past_due", updated.Tier)
	}
}

func TestBillingServiceApplySubscriptionDeleted(t *testing.T) {
	database := newTestDB(t)
	bs := newTestBillingService(t, database)

	user := createTestUser(t, database, "jane@example.com", models.TierProfessional)
	database.Model(user).Update("stripe_customer_id", "cus_1")

	created := subscriptionEvent(t, "customer.subscription.updated", "sub_1", "cus_1", "price_pro", "active", false)
	if err := bs.ApplyStripeEvent(context.Background(), created); err != nil {
		t.Fatalf("setup event: %v", err)
	}

	deleted := subscriptionEvent(t, "customer.subscription.deleted", "sub_1", "cus_1", "price_pro", "canceled", false)
	if err := bs.ApplyStripeEvent(context.Background(), deleted); err != nil {
		t.Fatalf("ApplyStripeEvent: %v", err)
	}

	var sub models.Subscription
	database.Where("stripe_subscription_id = ?", "sub_1").First(&sub)
	if sub.Status != models.SubscriptionCanceled {
		t.Errorf("status = %s, want canceled", sub.Status)
	}

	var updated models.User
	database.First(&updated, "id = ?", user.ID)
	if updated.Tier != models.TierFree {
		t.Errorf("user tier = %s, want free", updated.Tier)
	}
}

func TestBillingServicePaymentFailed(t *testing.T) {
	database := newTestDB(t)
	bs := newTestBillingService(t, database)

	user := createTestUser(t, database, "jane@example.com", models.TierProfessional)
	database.Model(user).Update("stripe_customer_id", "cus_1")

	created := subscriptionEvent(t, "customer.subscription.updated", "sub_1", "cus_1", "price_pro", "active", false)
	if err := bs.ApplyStripeEvent(context.Background(), created); err != nil {
		t.Fatalf("setup event: %v", err)
	}

	failed := &stripe.Event{
		Type: "invoice.payment_failed",
		Data: &stripe.EventData{Raw: json.RawMessage(`{"id":"in_1","subscription":"sub_1"}`)},
	}
	if err := bs.ApplyStripeEvent(context.Background(), failed); err != nil {
		t.Fatalf("ApplyStripeEvent: %v", err)
	}

	var sub models.Subscription
	database.Where("stripe_subscription_id = ?", "sub_1").First(&sub)
	if sub.Status != models.SubscriptionPastDue {
		t.Errorf("status = %s, want past_due", sub.Status)
	}
}

func TestBillingServiceIgnoresUnknownEvents(t *testing.T) {
	bs := newTestBillingService(t, newTestDB(t))
	event := &stripe.Event{
		Type: "charge.succeeded",
		Data: &stripe.EventData{Raw: json.RawMessage(`{}`)},
	}
	if err := bs.ApplyStripeEvent(context.Background(), event); err != nil {
		t.Errorf("unknown event type should be ignored, got %v", err)
	}
}

func TestBillingServiceDisabledWithoutKey(t *testing.T) {
	database := newTestDB(t)
	bs := newTestBillingService(t, database)
	user := createTestUser(t, database, "jane@example.com", models.TierFree)

	if bs.Enabled() {
		t.Error("billing should be disabled without a secret key")
	}
	if _, err := bs.CreateCheckout(context.Background(), user, models.TierStarter); err != ErrBillingDisabled {
		t.Errorf("CreateCheckout: err = %v, want ErrBillingDisabled", err)
	}
	if _, err := bs.CancelAtPeriodEnd(context.Background(), user); err != ErrBillingDisabled {
		t.Errorf("CancelAtPeriodEnd: err = %v, want ErrBillingDisabled", err)
	}
}
