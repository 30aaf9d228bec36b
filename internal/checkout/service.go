// Package checkout turns carts and paid payment sessions into per-vendor
// orders. Each order is written together with its order_created outbox event,
// which the worker turns into the fulfillment saga.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/grocery-backend/internal/cartsync"
	"github.com/angelmondragon/grocery-backend/internal/checkout/helpers"
	"github.com/angelmondragon/grocery-backend/internal/households"
	"github.com/angelmondragon/grocery-backend/internal/orders"
	"github.com/angelmondragon/grocery-backend/internal/products"
	"github.com/angelmondragon/grocery-backend/internal/vendors"
	"github.com/angelmondragon/grocery-backend/pkg/currency"
	"github.com/angelmondragon/grocery-backend/pkg/db"
	"github.com/angelmondragon/grocery-backend/pkg/db/models"
	"github.com/angelmondragon/grocery-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/grocery-backend/pkg/errors"
	"github.com/angelmondragon/grocery-backend/pkg/logger"
	"github.com/angelmondragon/grocery-backend/pkg/ordernumber"
	"github.com/angelmondragon/grocery-backend/pkg/outbox"
	"github.com/angelmondragon/grocery-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/grocery-backend/pkg/redis"
)

const (
	sessionUniqueIndex = "idx_orders_stripe_session_id"
	defaultLockTTL     = 30 * time.Second
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// CartSessions resolves the caller's cart session. *cartsync.Registry
// satisfies it.
type CartSessions interface {
	Session(ctx context.Context, cartCtx cartsync.CartContext) (*cartsync.Session, error)
}

type ServiceParams struct {
	TxRunner        txRunner
	Orders          orders.Repository
	Products        products.Repository
	Vendors         vendors.Repository
	Households      households.Repository
	Carts           CartSessions
	Outbox          outbox.Emitter
	Payments        PaymentProvider
	Locker          redis.Locker
	Converter       currency.Converter
	Logger          *logger.Logger
	DefaultVendorID *uuid.UUID
	LockTTL         time.Duration
	Clock           func() time.Time
}

type Service struct {
	tx              txRunner
	orders          orders.Repository
	products        products.Repository
	vendors         vendors.Repository
	households      households.Repository
	carts           CartSessions
	outbox          outbox.Emitter
	payments        PaymentProvider
	locker          redis.Locker
	converter       currency.Converter
	logg            *logger.Logger
	defaultVendorID *uuid.UUID
	lockTTL         time.Duration
	clock           func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.TxRunner == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	case params.Orders == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repository required")
	case params.Products == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "products repository required")
	case params.Vendors == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "vendors repository required")
	case params.Households == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "households repository required")
	case params.Outbox == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox emitter required")
	}
	if params.Logger == nil {
		params.Logger = logger.Nop()
	}
	if params.LockTTL <= 0 {
		params.LockTTL = defaultLockTTL
	}
	if params.Clock == nil {
		params.Clock = time.Now
	}
	return &Service{
		tx:              params.TxRunner,
		orders:          params.Orders,
		products:        params.Products,
		vendors:         params.Vendors,
		households:      params.Households,
		carts:           params.Carts,
		outbox:          params.Outbox,
		payments:        params.Payments,
		locker:          params.Locker,
		converter:       params.Converter,
		logg:            params.Logger,
		defaultVendorID: params.DefaultVendorID,
		lockTTL:         params.LockTTL,
		clock:           params.Clock,
	}, nil
}

// VendorOrderInput is everything needed to persist one vendor's order.
// Group prices must already be in the language's currency.
type VendorOrderInput struct {
	CartContext     cartsync.CartContext
	Group           helpers.VendorGroup
	Delivery        helpers.Delivery
	DeliveryDate    *time.Time
	Language        enums.Language
	PaymentMethod   enums.PaymentMethod
	Source          payloads.OrderSource
	StripeSessionID *string
	Paid            bool
}

// CreateVendorOrder snapshots the household and products and writes the order,
// its items and the order_created event in one transaction.
func (s *Service) CreateVendorOrder(ctx context.Context, in VendorOrderInput) (*models.Order, error) {
	if len(in.Group.Items) == 0 {
		return nil, pkgerrors.Validation("vendor group has no items")
	}
	if _, err := s.vendors.Get(ctx, in.Group.VendorID); err != nil {
		return nil, err
	}

	householdID := in.CartContext.ActingHouseholdID
	var household *models.Household
	if householdID != nil {
		found, err := s.households.Get(ctx, *householdID)
		if err != nil {
			return nil, err
		}
		household = found
	}

	productIDs := make([]uuid.UUID, 0, len(in.Group.Items))
	for _, line := range in.Group.Items {
		productIDs = append(productIDs, line.Line.ProductID)
	}
	catalog, err := s.products.GetMany(ctx, productIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load products")
	}

	items := make([]models.OrderItem, 0, len(in.Group.Items))
	for _, line := range in.Group.Items {
		product, ok := catalog[line.Line.ProductID]
		if !ok {
			return nil, pkgerrors.NotFound("product not found").
				WithDetails(map[string]any{"product_id": line.Line.ProductID.String()})
		}
		items = append(items, models.OrderItem{
			ProductID:            product.ID,
			ProductName:          product.Name,
			ProductNameLocalized: product.NameLocalized,
			SKU:                  product.SKU,
			Unit:                 unitFor(line.Line, product),
			Category:             product.Category,
			Quantity:             line.Line.Quantity,
			Price:                line.UnitPrice,
		})
	}

	now := s.clock()
	order := &models.Order{
		OrderNumber:     ordernumber.Generate(in.Group.VendorID.String(), uuidString(householdID), now),
		UserEmail:       in.CartContext.UserEmail,
		VendorID:        in.Group.VendorID,
		HouseholdID:     householdID,
		Items:           items,
		DeliveryPrice:   in.Group.DeliveryFee,
		OrderCurrency:   in.Group.Currency,
		Language:        in.Language,
		Status:          enums.OrderStatusPending,
		PaymentStatus:   enums.PaymentStatusPending,
		PaymentMethod:   in.PaymentMethod,
		StripeSessionID: in.StripeSessionID,
		DeliveryAddress: in.Delivery.Address,
		DeliveryCity:    in.Delivery.City,
		DeliveryPhone:   in.Delivery.Phone,
		DeliveryNotes:   in.Delivery.Notes,
		DeliveryDate:    in.DeliveryDate,
	}
	if in.Paid {
		order.PaymentStatus = enums.PaymentStatusPaid
		order.IsPaid = true
	}
	if household != nil {
		order.HouseholdCode = &household.Code
		order.HouseholdName = &household.Name
		order.HouseholdContactName = household.ContactName
		order.HouseholdContactPhone = household.ContactPhone
	}
	order.TotalAmount = order.ComputedTotal()

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.orders.WithTx(tx).Create(ctx, order); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         actorRef(in.CartContext),
			OccurredAt:    now.UTC(),
			Data: payloads.OrderCreatedEvent{
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				VendorID:    order.VendorID,
				HouseholdID: order.HouseholdID,
				UserEmail:   order.UserEmail,
				Source:      in.Source,
			},
		})
	})
	if err != nil {
		if in.StripeSessionID != nil && db.IsUniqueViolation(err, sessionUniqueIndex) {
			return nil, errSessionAlreadyReconciled
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order")
	}

	logCtx := s.logg.WithOrderID(ctx, order.ID.String())
	logCtx = s.logg.WithVendorID(logCtx, order.VendorID.String())
	s.logg.Info(logCtx, "order created")
	return order, nil
}

// PlaceOrdersInput carries the checkout form for direct placement.
type PlaceOrdersInput struct {
	Delivery      helpers.Delivery
	DeliveryDate  *time.Time
	Language      enums.Language
	PaymentMethod enums.PaymentMethod
	// VendorID limits placement to one vendor's lines.
	VendorID *uuid.UUID
}

// Failure records a vendor whose order could not be created.
type Failure struct {
	VendorID uuid.UUID     `json:"vendor_id"`
	Code     pkgerrors.Code `json:"code"`
	Message  string        `json:"message"`
}

// PlacementResult lists the orders created by one checkout. First is the
// first order created and is what the caller navigates to.
type PlacementResult struct {
	Orders   []models.Order    `json:"orders"`
	First    *models.Order     `json:"first"`
	Failures []Failure         `json:"failures,omitempty"`
	Warnings []helpers.Warning `json:"warnings,omitempty"`
}

// PlaceOrders splits the caller's cart by vendor and creates one order per
// vendor. A vendor that fails does not stop the others; its lines stay in the
// cart. An error is returned only when validation fails or no order was
// created.
func (s *Service) PlaceOrders(ctx context.Context, cartCtx cartsync.CartContext, in PlaceOrdersInput) (*PlacementResult, error) {
	if s.carts == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "cart sessions not configured")
	}
	if err := s.validatePlacement(ctx, cartCtx, &in); err != nil {
		return nil, err
	}

	session, err := s.carts.Session(ctx, cartCtx)
	if err != nil {
		return nil, err
	}
	if err := session.Load(ctx, true); err != nil {
		return nil, err
	}
	lines := session.Items()

	vendorIndex, err := s.vendorsFor(ctx, lines)
	if err != nil {
		return nil, err
	}
	groups, warnings, err := helpers.SplitByVendor(lines, helpers.SplitOptions{
		TargetVendorID:  in.VendorID,
		DefaultVendorID: s.defaultVendorID,
		TargetCurrency:  currency.ForLanguage(in.Language),
		Converter:       s.converter,
		Vendors:         vendorIndex,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "price cart")
	}
	if len(groups) == 0 {
		return nil, pkgerrors.Validation("cart is empty").WithDetails(map[string]any{"warnings": warnings})
	}

	result := &PlacementResult{Warnings: warnings}
	var firstErr error
	for _, group := range groups {
		order, err := s.CreateVendorOrder(ctx, VendorOrderInput{
			CartContext:   cartCtx,
			Group:         group,
			Delivery:      in.Delivery,
			DeliveryDate:  in.DeliveryDate,
			Language:      in.Language,
			PaymentMethod: in.PaymentMethod,
			Source:        payloads.SourceDirect,
		})
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			failure := Failure{VendorID: group.VendorID, Code: pkgerrors.CodeOf(err), Message: err.Error()}
			result.Failures = append(result.Failures, failure)
			s.logg.Error(s.logg.WithVendorID(ctx, group.VendorID.String()), "vendor order failed", err)
			continue
		}
		result.Orders = append(result.Orders, *order)

		// Remove the exact lines the order was built from. A vendor filter
		// would miss legacy lines assigned to the default vendor.
		placed := make([]uuid.UUID, 0, len(group.Items))
		for _, item := range group.Items {
			placed = append(placed, item.Line.ID)
		}
		if out := session.RemoveLines(ctx, placed); !out.OK() {
			s.logg.Warn(s.logg.WithVendorID(ctx, group.VendorID.String()), "cart clear after order failed")
		}
	}

	if len(result.Orders) == 0 {
		return nil, firstErr
	}
	result.First = &result.Orders[0]
	return result, nil
}

func (s *Service) validatePlacement(ctx context.Context, cartCtx cartsync.CartContext, in *PlaceOrdersInput) error {
	if cartCtx.UserEmail == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "authenticated user required")
	}
	if err := helpers.ValidateDelivery(&in.Delivery); err != nil {
		return err
	}
	if in.Language == "" {
		in.Language = enums.LanguageHebrew
	}
	if !in.Language.IsValid() {
		return pkgerrors.Validation(fmt.Sprintf("unsupported language %q", in.Language))
	}
	if in.PaymentMethod == "" {
		in.PaymentMethod = enums.PaymentMethodCash
	}
	if !in.PaymentMethod.IsValid() || in.PaymentMethod == enums.PaymentMethodStripe {
		return pkgerrors.Validation(fmt.Sprintf("payment method %q is not available for direct checkout", in.PaymentMethod))
	}
	return cartsync.Authorize(ctx, s.households, cartCtx, cartCtx.ActingHouseholdID)
}

func (s *Service) vendorsFor(ctx context.Context, lines []models.CartLineItem) (map[uuid.UUID]models.Vendor, error) {
	seen := map[uuid.UUID]struct{}{}
	ids := []uuid.UUID{}
	add := func(id *uuid.UUID) {
		if id == nil || *id == uuid.Nil {
			return
		}
		if _, ok := seen[*id]; !ok {
			seen[*id] = struct{}{}
			ids = append(ids, *id)
		}
	}
	for _, line := range lines {
		add(line.VendorID)
	}
	add(s.defaultVendorID)
	if len(ids) == 0 {
		return map[uuid.UUID]models.Vendor{}, nil
	}
	rows, err := s.vendors.List(ctx, vendors.Filter{IDs: ids})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load vendors")
	}
	return vendors.ByID(rows), nil
}

var errSessionAlreadyReconciled = pkgerrors.New(pkgerrors.CodeConflict, "payment session already has an order")

func isSessionAlreadyReconciled(err error) bool {
	return errors.Is(err, errSessionAlreadyReconciled)
}

func actorRef(c cartsync.CartContext) *outbox.ActorRef {
	ref := &outbox.ActorRef{UserEmail: c.UserEmail, Role: c.Role.String()}
	if c.ActingHouseholdID != nil {
		id := c.ActingHouseholdID.String()
		ref.HouseholdID = &id
	}
	return ref
}

func unitFor(line models.CartLineItem, product models.Product) string {
	if line.Unit != "" {
		return line.Unit
	}
	if product.Unit != "" {
		return product.Unit
	}
	return "unit"
}

func uuidString(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}
