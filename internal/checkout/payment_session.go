package checkout

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/grocery-backend/internal/cartsync"
	"github.com/angelmondragon/grocery-backend/internal/checkout/helpers"
	"github.com/angelmondragon/grocery-backend/pkg/currency"
	pkgerrors "github.com/angelmondragon/grocery-backend/pkg/errors"
	pkgstripe "github.com/angelmondragon/grocery-backend/pkg/stripe"
)

// CreatePaymentSession opens a hosted payment page for one vendor's lines.
// The order itself is created later by ReconcileSession once the provider
// reports the session paid.
func (s *Service) CreatePaymentSession(ctx context.Context, cartCtx cartsync.CartContext, in PlaceOrdersInput) (*pkgstripe.Session, error) {
	if s.payments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment provider not configured")
	}
	if s.carts == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "cart sessions not configured")
	}
	if in.VendorID == nil {
		return nil, pkgerrors.Validation("vendor_id is required for online payment")
	}
	in.PaymentMethod = ""
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
	groups, _, err := helpers.SplitByVendor(lines, helpers.SplitOptions{
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
		return nil, pkgerrors.Validation("cart has no items for this vendor")
	}
	group := groups[0]

	ids := make([]SessionItem, 0, len(group.Items))
	for _, line := range group.Items {
		ids = append(ids, SessionItem{LineID: line.Line.ID, ProductID: line.Line.ProductID, Quantity: line.Line.Quantity})
	}
	catalog, err := s.products.GetMany(ctx, productIDs(ids))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load products")
	}

	req := pkgstripe.SessionRequest{
		Currency:      strings.ToLower(group.Currency.String()),
		CustomerEmail: cartCtx.UserEmail,
	}
	for _, line := range group.Items {
		name := line.Line.ProductID.String()
		if product, ok := catalog[line.Line.ProductID]; ok {
			name = product.Name
		}
		req.Lines = append(req.Lines, pkgstripe.SessionLine{Name: name, AmountMinor: minorUnits(line.Total())})
	}
	if group.DeliveryFee > 0 {
		req.Lines = append(req.Lines, pkgstripe.SessionLine{Name: "Delivery", AmountMinor: minorUnits(group.DeliveryFee)})
	}

	meta, err := SessionOrder{
		CartContext:  cartCtx,
		VendorID:     group.VendorID,
		Language:     in.Language,
		Delivery:     in.Delivery,
		DeliveryDate: in.DeliveryDate,
		Items:        ids,
	}.Metadata()
	if err != nil {
		return nil, err
	}
	req.Metadata = meta

	created, err := s.payments.CreateSession(ctx, req)
	if err != nil {
		return nil, pkgerrors.Dependency(err, "create payment session")
	}
	s.logg.Info(s.logg.WithField(s.logg.WithVendorID(ctx, group.VendorID.String()), "session_id", created.ID), "payment session created")
	return created, nil
}

func minorUnits(amount float64) int64 {
	return decimal.NewFromFloat(amount).Shift(2).Round(0).IntPart()
}
