package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/angelmondragon/grocery-backend/internal/cartsync"
	"github.com/angelmondragon/grocery-backend/internal/checkout/helpers"
	"github.com/angelmondragon/grocery-backend/pkg/currency"
	"github.com/angelmondragon/grocery-backend/pkg/db/models"
	"github.com/angelmondragon/grocery-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/grocery-backend/pkg/errors"
	"github.com/angelmondragon/grocery-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/grocery-backend/pkg/redis"
	pkgstripe "github.com/angelmondragon/grocery-backend/pkg/stripe"
)

const reconcileLockScope = "checkout_session"

// PaymentProvider is the hosted payment page backend. *pkgstripe.Client
// satisfies it.
type PaymentProvider interface {
	RetrieveSession(ctx context.Context, id string) (*pkgstripe.Session, error)
	CreateSession(ctx context.Context, req pkgstripe.SessionRequest) (*pkgstripe.Session, error)
}

// Metadata keys written on payment sessions and read back on reconciliation.
const (
	metaUserEmail       = "user_email"
	metaRole            = "role"
	metaHouseholdID     = "household_id"
	metaVendorID        = "vendor_id"
	metaLanguage        = "language"
	metaDeliveryAddress = "delivery_address"
	metaDeliveryCity    = "delivery_city"
	metaDeliveryPhone   = "delivery_phone"
	metaDeliveryNotes   = "delivery_notes"
	metaDeliveryDate    = "delivery_date"
	// metaItems is the single-key item list of sessions created before items
	// were split across metaItemsPrefix keys. It is still read.
	metaItems       = "items"
	metaItemsPrefix = "items_"
)

// Stripe rejects metadata with more keys or longer values than this.
const (
	maxMetadataKeys  = 50
	maxMetadataValue = 500
)

// SessionItem is one cart line carried through the payment provider. LineID
// names the cart line it was priced from so only that line is cleared once
// the session is paid.
type SessionItem struct {
	LineID    uuid.UUID `json:"l"`
	ProductID uuid.UUID `json:"p"`
	Quantity  float64   `json:"q"`
}

// SessionOrder is the order a payment session pays for, minus prices, which
// are re-read from the catalog on reconciliation.
type SessionOrder struct {
	CartContext  cartsync.CartContext
	VendorID     uuid.UUID
	Language     enums.Language
	Delivery     helpers.Delivery
	DeliveryDate *time.Time
	Items        []SessionItem
}

// Metadata encodes o as payment session metadata. Items are spread over
// numbered keys so every value stays within the provider's limits; a cart too
// large to fit, or a delivery field that is too long, is a validation error.
func (o SessionOrder) Metadata() (map[string]string, error) {
	chunks, err := chunkItems(o.Items)
	if err != nil {
		return nil, err
	}
	meta := map[string]string{
		metaUserEmail:       o.CartContext.UserEmail,
		metaRole:            o.CartContext.Role.String(),
		metaVendorID:        o.VendorID.String(),
		metaLanguage:        o.Language.String(),
		metaDeliveryAddress: o.Delivery.Address,
		metaDeliveryCity:    o.Delivery.City,
	}
	for i, chunk := range chunks {
		meta[itemsKey(i)] = chunk
	}
	if o.CartContext.ActingHouseholdID != nil {
		meta[metaHouseholdID] = o.CartContext.ActingHouseholdID.String()
	}
	if o.Delivery.Phone != nil {
		meta[metaDeliveryPhone] = *o.Delivery.Phone
	}
	if o.Delivery.Notes != nil {
		meta[metaDeliveryNotes] = *o.Delivery.Notes
	}
	if o.DeliveryDate != nil {
		meta[metaDeliveryDate] = o.DeliveryDate.UTC().Format(time.RFC3339)
	}

	if len(meta) > maxMetadataKeys {
		return nil, pkgerrors.Validation("cart too large for online payment").
			WithDetails(map[string]any{"items": len(o.Items)})
	}
	for key, value := range meta {
		if utf8.RuneCountInString(value) > maxMetadataValue {
			return nil, pkgerrors.Validation("field too long for online payment").
				WithDetails(map[string]any{"field": key, "max_length": maxMetadataValue})
		}
	}
	return meta, nil
}

// chunkItems packs items into JSON arrays of at most maxMetadataValue bytes.
func chunkItems(items []SessionItem) ([]string, error) {
	var chunks []string
	current := []byte{'['}
	for _, item := range items {
		encoded, err := json.Marshal(item)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode session item")
		}
		if len(current) > 1 && len(current)+1+len(encoded)+1 > maxMetadataValue {
			chunks = append(chunks, string(append(current, ']')))
			current = []byte{'['}
		}
		if len(current) > 1 {
			current = append(current, ',')
		}
		current = append(current, encoded...)
	}
	if len(current) > 1 {
		chunks = append(chunks, string(append(current, ']')))
	}
	return chunks, nil
}

func itemsKey(i int) string {
	return fmt.Sprintf("%s%d", metaItemsPrefix, i)
}

// ParseSessionMetadata decodes what Metadata wrote.
func ParseSessionMetadata(meta map[string]string) (*SessionOrder, error) {
	invalid := func(field string, err error) error {
		e := pkgerrors.Validation("payment session metadata invalid").WithDetails(map[string]any{"field": field})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, e.Message()).WithDetails(e.Details())
		}
		return e
	}

	email := strings.TrimSpace(meta[metaUserEmail])
	if email == "" {
		return nil, invalid(metaUserEmail, nil)
	}
	vendorID, err := uuid.Parse(meta[metaVendorID])
	if err != nil {
		return nil, invalid(metaVendorID, err)
	}
	out := &SessionOrder{
		CartContext: cartsync.CartContext{UserEmail: email, Role: enums.Role(meta[metaRole])},
		VendorID:    vendorID,
		Language:    enums.LanguageHebrew,
		Delivery: helpers.Delivery{
			Address: meta[metaDeliveryAddress],
			City:    meta[metaDeliveryCity],
		},
	}
	if raw := meta[metaHouseholdID]; raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, invalid(metaHouseholdID, err)
		}
		out.CartContext.ActingHouseholdID = &id
	}
	if raw := meta[metaLanguage]; raw != "" {
		lang, err := enums.ParseLanguage(raw)
		if err != nil {
			return nil, invalid(metaLanguage, err)
		}
		out.Language = lang
	}
	if v, ok := meta[metaDeliveryPhone]; ok {
		out.Delivery.Phone = &v
	}
	if v, ok := meta[metaDeliveryNotes]; ok {
		out.Delivery.Notes = &v
	}
	if raw := meta[metaDeliveryDate]; raw != "" {
		date, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, invalid(metaDeliveryDate, err)
		}
		out.DeliveryDate = &date
	}
	for i := 0; ; i++ {
		raw, ok := meta[itemsKey(i)]
		if !ok {
			break
		}
		var part []SessionItem
		if err := json.Unmarshal([]byte(raw), &part); err != nil {
			return nil, invalid(itemsKey(i), err)
		}
		out.Items = append(out.Items, part...)
	}
	if raw, ok := meta[metaItems]; ok && len(out.Items) == 0 {
		if err := json.Unmarshal([]byte(raw), &out.Items); err != nil {
			return nil, invalid(metaItems, err)
		}
	}
	if len(out.Items) == 0 {
		return nil, invalid(metaItems, nil)
	}
	return out, nil
}

// ReconcileResult reports the order for a session and whether this call
// created it.
type ReconcileResult struct {
	Order   *models.Order `json:"order"`
	Created bool          `json:"created"`
}

// ReconcileSession makes sure exactly one order exists for a paid payment
// session. Repeated calls return the same order.
func (s *Service) ReconcileSession(ctx context.Context, sessionID string) (*ReconcileResult, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, pkgerrors.Validation("session id required")
	}
	if s.payments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment provider not configured")
	}

	if existing, err := s.findBySession(ctx, sessionID); err != nil || existing != nil {
		return existingResult(existing, err)
	}

	if s.locker != nil {
		release, err := s.locker.Acquire(ctx, reconcileLockScope, sessionID, s.lockTTL)
		if errors.Is(err, redis.ErrLockHeld) {
			return nil, pkgerrors.New(pkgerrors.CodeIdempotency, "session reconciliation already in progress")
		}
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire reconciliation lock")
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "release reconciliation lock failed")
			}
		}()

		if existing, err := s.findBySession(ctx, sessionID); err != nil || existing != nil {
			return existingResult(existing, err)
		}
	}

	session, err := s.payments.RetrieveSession(ctx, sessionID)
	if err != nil {
		return nil, pkgerrors.Dependency(err, "retrieve payment session")
	}
	if session.PaymentStatus != pkgstripe.PaymentStatusPaid {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment not confirmed").
			WithDetails(map[string]any{"payment_status": session.PaymentStatus})
	}

	sessionOrder, err := ParseSessionMetadata(session.Metadata)
	if err != nil {
		return nil, err
	}
	group, err := s.sessionGroup(ctx, sessionOrder)
	if err != nil {
		return nil, err
	}

	order, err := s.CreateVendorOrder(ctx, VendorOrderInput{
		CartContext:     sessionOrder.CartContext,
		Group:           *group,
		Delivery:        sessionOrder.Delivery,
		DeliveryDate:    sessionOrder.DeliveryDate,
		Language:        sessionOrder.Language,
		PaymentMethod:   enums.PaymentMethodStripe,
		Source:          payloads.SourcePaymentSession,
		StripeSessionID: &sessionID,
		Paid:            true,
	})
	if isSessionAlreadyReconciled(err) {
		existing, findErr := s.findBySession(ctx, sessionID)
		return existingResult(existing, findErr)
	}
	if err != nil {
		return nil, err
	}

	s.clearPaidLines(ctx, sessionOrder)
	return &ReconcileResult{Order: order, Created: true}, nil
}

// FinalizeSession is ReconcileSession on behalf of a signed-in caller. The
// caller must own the session, or be staff, before anything is written.
func (s *Service) FinalizeSession(ctx context.Context, caller cartsync.CartContext, sessionID string) (*ReconcileResult, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, pkgerrors.Validation("session id required")
	}
	if strings.TrimSpace(caller.UserEmail) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authenticated user required")
	}
	if s.payments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment provider not configured")
	}

	existing, err := s.findBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if !mayFinalizeFor(caller, existing.UserEmail) {
			return nil, errForeignSession()
		}
		return &ReconcileResult{Order: existing}, nil
	}

	session, err := s.payments.RetrieveSession(ctx, sessionID)
	if err != nil {
		return nil, pkgerrors.Dependency(err, "retrieve payment session")
	}
	if !mayFinalizeFor(caller, session.Metadata[metaUserEmail]) {
		return nil, errForeignSession()
	}
	return s.ReconcileSession(ctx, sessionID)
}

func mayFinalizeFor(caller cartsync.CartContext, owner string) bool {
	switch caller.Role {
	case enums.RoleAdmin, enums.RoleStaff:
		return true
	}
	owner = strings.TrimSpace(owner)
	return owner != "" && strings.EqualFold(owner, strings.TrimSpace(caller.UserEmail))
}

func errForeignSession() error {
	return pkgerrors.Forbidden("payment session belongs to another customer")
}

// sessionGroup prices the session's items against the current catalog.
func (s *Service) sessionGroup(ctx context.Context, order *SessionOrder) (*helpers.VendorGroup, error) {
	vendor, err := s.vendors.Get(ctx, order.VendorID)
	if err != nil {
		return nil, err
	}

	catalog, err := s.products.GetMany(ctx, productIDs(order.Items))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load products")
	}

	forHousehold := order.CartContext.ActingHouseholdID != nil
	lines := make([]models.CartLineItem, 0, len(order.Items))
	for _, item := range order.Items {
		product, ok := catalog[item.ProductID]
		if !ok {
			return nil, pkgerrors.NotFound("product not found").
				WithDetails(map[string]any{"product_id": item.ProductID.String()})
		}
		if item.Quantity <= 0 {
			return nil, pkgerrors.Validation("session item quantity must be positive")
		}
		lines = append(lines, models.CartLineItem{
			ID:          uuid.New(),
			ProductID:   product.ID,
			VendorID:    &order.VendorID,
			HouseholdID: order.CartContext.ActingHouseholdID,
			UnitPrice:   cartsync.PriceFor(product, forHousehold),
			Currency:    product.Currency,
			Quantity:    item.Quantity,
			Unit:        product.Unit,
		})
	}

	groups, _, err := helpers.SplitByVendor(lines, helpers.SplitOptions{
		TargetVendorID: &order.VendorID,
		TargetCurrency: currency.ForLanguage(order.Language),
		Converter:      s.converter,
		Vendors:        map[uuid.UUID]models.Vendor{vendor.ID: *vendor},
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "price payment session")
	}
	if len(groups) != 1 {
		return nil, pkgerrors.Validation("payment session has no items for its vendor")
	}
	return &groups[0], nil
}

func (s *Service) clearPaidLines(ctx context.Context, order *SessionOrder) {
	if s.carts == nil {
		return
	}
	ids := make([]uuid.UUID, 0, len(order.Items))
	for _, item := range order.Items {
		if item.LineID != uuid.Nil {
			ids = append(ids, item.LineID)
		}
	}
	if len(ids) == 0 {
		return
	}
	session, err := s.carts.Session(ctx, order.CartContext)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "cart lookup after payment failed")
		return
	}
	if out := session.RemoveLines(ctx, ids); !out.OK() {
		s.logg.Warn(s.logg.WithVendorID(ctx, order.VendorID.String()), "cart clear after payment failed")
	}
}

func (s *Service) findBySession(ctx context.Context, sessionID string) (*models.Order, error) {
	order, err := s.orders.FindBySessionID(ctx, sessionID)
	if pkgerrors.Is(err, pkgerrors.CodeNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return order, nil
}

func existingResult(order *models.Order, err error) (*ReconcileResult, error) {
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order for session vanished")
	}
	return &ReconcileResult{Order: order}, nil
}

func productIDs(items []SessionItem) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	return ids
}
