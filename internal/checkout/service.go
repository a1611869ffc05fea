package checkout

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/shopfront/internal/cart"
	pkgerrors "github.com/angelmondragon/shopfront/pkg/errors"
	"github.com/angelmondragon/shopfront/pkg/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventOrderPlaced is the event type attached to published confirmations.
const EventOrderPlaced = "order.placed"

// Cart is the cart surface checkout empties.
type Cart interface {
	Take() cart.Snapshot
}

// Publisher delivers order events. Implemented by pkg/pubsub.EventPublisher.
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload any) (string, error)
}

// Confirmation summarizes a placed order.
type Confirmation struct {
	OrderID        uuid.UUID       `json:"orderId"`
	FullName       string          `json:"fullName"`
	Email          string          `json:"email"`
	Phone          string          `json:"phone"`
	Address        string          `json:"address"`
	City           string          `json:"city"`
	ZipCode        string          `json:"zipCode"`
	Lines          []cart.Line     `json:"lines"`
	TotalItemCount int             `json:"totalItemCount"`
	TotalAmount    decimal.Decimal `json:"totalAmount"`
	PlacedAt       time.Time       `json:"placedAt"`
}

// Service places orders from the current cart. No payment is taken.
type Service struct {
	cart      Cart
	publisher Publisher
	logg      *logger.Logger
	now       func() time.Time
	newID     func() uuid.UUID
}

// Option configures optional service collaborators.
type Option func(*Service)

func WithPublisher(p Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

func WithLogger(logg *logger.Logger) Option {
	return func(s *Service) {
		if logg != nil {
			s.logg = logg
		}
	}
}

// NewService builds the checkout service.
func NewService(c Cart, opts ...Option) (*Service, error) {
	if c == nil {
		return nil, errors.New("cart required")
	}
	s := &Service{
		cart:  c,
		logg:  logger.Nop(),
		now:   time.Now,
		newID: uuid.New,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// PlaceOrder validates the form, then takes the cart contents as the order.
// Lines added after the take stay in the cart. Publishing the confirmation is
// best effort.
func (s *Service) PlaceOrder(ctx context.Context, form Form) (*Confirmation, error) {
	result := Validate(form)
	if !result.Valid {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout form invalid").WithDetails(result.Errors)
	}

	snapshot := s.cart.Take()
	if snapshot.IsEmpty() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "cart is empty")
	}

	form = form.Normalize()
	confirmation := &Confirmation{
		OrderID:        s.newID(),
		FullName:       form.FullName,
		Email:          form.Email,
		Phone:          form.Phone,
		Address:        form.Address,
		City:           form.City,
		ZipCode:        form.ZipCode,
		Lines:          snapshot.Lines,
		TotalItemCount: snapshot.TotalItemCount,
		TotalAmount:    snapshot.TotalAmount,
		PlacedAt:       s.now().UTC(),
	}

	ctx = s.logg.WithFields(s.logg.WithComponent(ctx, "checkout"), map[string]any{
		"order_id":    confirmation.OrderID.String(),
		"total_items": confirmation.TotalItemCount,
	})
	if s.publisher != nil {
		if _, err := s.publisher.Publish(ctx, EventOrderPlaced, confirmation); err != nil {
			s.logg.Error(ctx, "failed to publish order confirmation", err)
		}
	}

	s.logg.Info(ctx, "order placed")
	return confirmation, nil
}
