// Package cartsync keeps an optimistic local copy of a cart and reconciles it
// against the cart repository. Reads are debounced and deduplicated; writes
// apply locally first and revert when the remote write fails.
//
// Conflicts are last-write-wins: two sessions editing the same identity
// overwrite each other's quantities without detection.
package cartsync

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/angelmondragon/grocery-backend/internal/cart"
	"github.com/angelmondragon/grocery-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/grocery-backend/pkg/errors"
	"github.com/angelmondragon/grocery-backend/pkg/logger"
)

// DefaultDebounce is the window in which unforced loads are skipped.
const DefaultDebounce = 2 * time.Second

// Remote is the cart store a session reconciles against. cart.Repository
// satisfies it. Line writes are scoped to the identity; a line stored under
// another identity reports NOT_FOUND.
type Remote interface {
	List(ctx context.Context, filter cart.LineFilter) ([]models.CartLineItem, error)
	Create(ctx context.Context, line *models.CartLineItem) error
	UpdateLine(ctx context.Context, identity string, id uuid.UUID, updates map[string]any) error
	DeleteLine(ctx context.Context, identity string, id uuid.UUID) error
}

// Options wires a Session. Remote is required.
type Options struct {
	Remote   Remote
	Members  MembershipChecker
	Logger   *logger.Logger
	Debounce time.Duration
	Clock    func() time.Time
	// Loads shares in-flight fetches across sessions. A private group is used
	// when nil.
	Loads *singleflight.Group
}

// Session is one user's view of their active cart.
type Session struct {
	remote   Remote
	members  MembershipChecker
	logg     *logger.Logger
	debounce time.Duration
	clock    func() time.Time
	loads    *singleflight.Group

	mu           sync.Mutex
	cartCtx      CartContext
	identity     string
	lines        []Line
	inflight     int
	lastLoadedAt time.Time
	lastUsedAt   time.Time
	generation   uint64
	// loadSeq numbers loads as they start; appliedSeq is the newest one whose
	// rows are in lines. Older fetches that finish late are dropped.
	loadSeq    uint64
	appliedSeq uint64
}

func NewSession(cartCtx CartContext, opts Options) (*Session, error) {
	if opts.Remote == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "cart remote required")
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Loads == nil {
		opts.Loads = &singleflight.Group{}
	}
	return &Session{
		remote:     opts.Remote,
		members:    opts.Members,
		logg:       opts.Logger,
		debounce:   opts.Debounce,
		clock:      opts.Clock,
		loads:      opts.Loads,
		cartCtx:    cartCtx,
		identity:   ResolveIdentity(cartCtx),
		lastUsedAt: opts.Clock(),
	}, nil
}

// Context returns the cart context the session currently acts under.
func (s *Session) Context() CartContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cartCtx
}

func (s *Session) Identity() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

func (s *Session) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight > 0
}

// Lines returns a copy of the local lines in remote order.
func (s *Session) Lines() []Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Line, len(s.lines))
	copy(out, s.lines)
	return out
}

// Items returns the local lines as plain cart rows.
func (s *Session) Items() []models.CartLineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.CartLineItem, 0, len(s.lines))
	for _, line := range s.lines {
		out = append(out, line.CartLineItem)
	}
	return out
}

// Load replaces local state with the remote rows for the active identity.
// Unforced loads inside the debounce window are no-ops, as are unforced loads
// while another load is running.
func (s *Session) Load(ctx context.Context, force bool) error {
	s.mu.Lock()
	now := s.clock()
	s.lastUsedAt = now
	if !force {
		if s.inflight > 0 || (!s.lastLoadedAt.IsZero() && now.Sub(s.lastLoadedAt) < s.debounce) {
			s.mu.Unlock()
			return nil
		}
	}
	identity := s.identity
	generation := s.generation
	s.loadSeq++
	seq := s.loadSeq
	s.inflight++
	s.mu.Unlock()

	// A forced load follows a write, so it must not join a fetch that started
	// before that write. The fetch runs detached from ctx because other
	// callers may be waiting on it.
	if force {
		s.loads.Forget(identity)
	}
	fetchCtx := context.WithoutCancel(ctx)
	result, err, _ := s.loads.Do(identity, func() (any, error) {
		return s.remote.List(fetchCtx, cart.LineFilter{Identity: identity})
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight--
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	if generation != s.generation || seq < s.appliedSeq {
		// Either the context switched while fetching or a newer load already
		// landed; these rows are stale.
		return nil
	}
	s.appliedSeq = seq
	rows, _ := result.([]models.CartLineItem)
	lines := make([]Line, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, Line{CartLineItem: row, State: StateSynced})
	}
	s.lines = lines
	s.lastLoadedAt = s.clock()
	return nil
}

// Add puts quantity of product in the cart, incrementing an existing line for
// the same product and household. targetHousehold defaults to the acting
// household. The unit price is captured now and never re-derived.
func (s *Session) Add(ctx context.Context, product models.Product, quantity float64, targetHousehold *uuid.UUID) Outcome {
	if quantity <= 0 {
		return Outcome{Err: pkgerrors.Validation("quantity must be positive")}
	}

	s.mu.Lock()
	cartCtx := s.cartCtx
	identity := s.identity
	s.lastUsedAt = s.clock()
	s.mu.Unlock()

	household := targetHousehold
	if household == nil {
		household = cartCtx.ActingHouseholdID
	}
	if err := Authorize(ctx, s.members, cartCtx, household); err != nil {
		return Outcome{Err: err}
	}

	filter := cart.LineFilter{Identity: identity, ProductID: &product.ID, HouseholdID: household, NoHousehold: household == nil}
	existing, err := s.remote.List(ctx, filter)
	if err != nil {
		return s.retry(ctx, err, "cart add lookup failed")
	}

	if len(existing) > 0 {
		line := existing[0]
		err = s.remote.UpdateLine(ctx, identity, line.ID, map[string]any{"quantity": line.Quantity + quantity})
	} else {
		err = s.remote.Create(ctx, &models.CartLineItem{
			CartIdentity: identity,
			ProductID:    product.ID,
			VendorID:     product.VendorID,
			HouseholdID:  household,
			UnitPrice:    PriceFor(product, household != nil),
			Currency:     product.Currency,
			Quantity:     quantity,
			Unit:         product.Unit,
		})
	}
	if err != nil {
		return s.retry(ctx, err, "cart add failed")
	}

	if err := s.Load(ctx, true); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "cart reload after add failed")
	}
	return Outcome{}
}

// UpdateQuantity sets a line's quantity. Zero or less removes the line.
func (s *Session) UpdateQuantity(ctx context.Context, lineID uuid.UUID, quantity float64) Outcome {
	if quantity <= 0 {
		return s.Remove(ctx, lineID)
	}

	s.mu.Lock()
	identity := s.identity
	s.lastUsedAt = s.clock()
	idx := s.indexOf(lineID)
	var snapshot models.CartLineItem
	if idx >= 0 {
		line := &s.lines[idx]
		if err := line.move(StatePendingWrite); err != nil {
			s.mu.Unlock()
			return Outcome{Notice: NoticeRetry, Err: pkgerrors.New(pkgerrors.CodeStateConflict, err.Error())}
		}
		snapshot = line.CartLineItem
		line.Quantity = quantity
	}
	s.mu.Unlock()

	err := s.remote.UpdateLine(ctx, identity, lineID, map[string]any{"quantity": quantity})

	s.mu.Lock()
	if idx = s.indexOf(lineID); idx >= 0 && s.lines[idx].State == StatePendingWrite {
		line := &s.lines[idx]
		if err == nil {
			_ = line.move(StateSynced)
		} else {
			_ = line.move(StateReverting)
			line.CartLineItem = snapshot
			_ = line.move(StateSynced)
		}
	}
	s.mu.Unlock()

	if err == nil {
		return Outcome{}
	}
	if pkgerrors.Is(err, pkgerrors.CodeNotFound) {
		return s.conflict(ctx, lineID, err)
	}
	return s.retry(ctx, err, "cart quantity update reverted")
}

// Remove deletes a line. A line already gone remotely counts as removed.
func (s *Session) Remove(ctx context.Context, lineID uuid.UUID) Outcome {
	s.mu.Lock()
	identity := s.identity
	s.lastUsedAt = s.clock()
	idx := s.indexOf(lineID)
	var removed *Line
	if idx >= 0 {
		line := s.lines[idx]
		if err := line.move(StatePendingWrite); err != nil {
			s.mu.Unlock()
			return Outcome{Notice: NoticeRetry, Err: pkgerrors.New(pkgerrors.CodeStateConflict, err.Error())}
		}
		removed = &line
		s.lines = append(s.lines[:idx:idx], s.lines[idx+1:]...)
	}
	s.mu.Unlock()

	err := s.remote.DeleteLine(ctx, identity, lineID)
	if err == nil || pkgerrors.Is(err, pkgerrors.CodeNotFound) {
		return Outcome{}
	}

	if removed != nil {
		s.mu.Lock()
		_ = removed.move(StateReverting)
		_ = removed.move(StateSynced)
		if s.indexOf(lineID) < 0 {
			at := idx
			if at > len(s.lines) {
				at = len(s.lines)
			}
			s.lines = append(s.lines[:at], append([]Line{*removed}, s.lines[at:]...)...)
		}
		s.mu.Unlock()
	}
	return s.retry(ctx, err, "cart remove reverted")
}

// Clear deletes every line for the active identity, or only vendorID's lines
// when set. Any failure falls back to a forced reload so local state matches
// whatever the remote kept.
func (s *Session) Clear(ctx context.Context, vendorID *uuid.UUID) Outcome {
	s.mu.Lock()
	identity := s.identity
	s.lastUsedAt = s.clock()
	s.mu.Unlock()

	rows, err := s.remote.List(ctx, cart.LineFilter{Identity: identity, VendorID: vendorID})
	if err == nil {
		for _, row := range rows {
			if delErr := s.remote.DeleteLine(ctx, identity, row.ID); delErr != nil && !pkgerrors.Is(delErr, pkgerrors.CodeNotFound) {
				err = delErr
				break
			}
		}
	}

	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "cart clear failed, reloading")
		if loadErr := s.Load(ctx, true); loadErr != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", loadErr.Error()), "cart reload after clear failed")
		}
		return Outcome{Notice: NoticeRetry, Err: err}
	}

	s.mu.Lock()
	kept := s.lines[:0]
	for _, line := range s.lines {
		if vendorID != nil && (line.VendorID == nil || *line.VendorID != *vendorID) {
			kept = append(kept, line)
		}
	}
	s.lines = kept
	s.mu.Unlock()
	return Outcome{}
}

// RemoveLines deletes exactly the given lines of the active identity, such as
// the lines an order was placed from. Lines already gone count as removed.
// Failures fall back to a forced reload like Clear.
func (s *Session) RemoveLines(ctx context.Context, ids []uuid.UUID) Outcome {
	s.mu.Lock()
	identity := s.identity
	s.lastUsedAt = s.clock()
	s.mu.Unlock()

	var err error
	for _, id := range ids {
		if delErr := s.remote.DeleteLine(ctx, identity, id); delErr != nil && !pkgerrors.Is(delErr, pkgerrors.CodeNotFound) {
			err = delErr
			break
		}
	}
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "cart line removal failed, reloading")
		if loadErr := s.Load(ctx, true); loadErr != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", loadErr.Error()), "cart reload after line removal failed")
		}
		return Outcome{Notice: NoticeRetry, Err: err}
	}

	gone := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		gone[id] = struct{}{}
	}
	s.mu.Lock()
	kept := s.lines[:0]
	for _, line := range s.lines {
		if _, ok := gone[line.ID]; !ok {
			kept = append(kept, line)
		}
	}
	s.lines = kept
	s.mu.Unlock()
	return Outcome{}
}

// SwitchContext applies a session change. When the resolved identity differs
// the local cache is dropped and reloaded; carts are never merged. It reports
// whether the identity changed.
func (s *Session) SwitchContext(ctx context.Context, next CartContext) (bool, error) {
	identity := ResolveIdentity(next)

	s.mu.Lock()
	s.cartCtx = next
	s.lastUsedAt = s.clock()
	if identity == s.identity && !s.lastLoadedAt.IsZero() {
		s.mu.Unlock()
		return false, nil
	}
	changed := identity != s.identity
	s.identity = identity
	s.lines = nil
	s.lastLoadedAt = time.Time{}
	s.generation++
	s.mu.Unlock()

	if changed {
		s.logg.Info(s.logg.WithField(ctx, "cart_identity", identity), "cart identity switched")
	}
	return changed, s.Load(ctx, true)
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsedAt
}

func (s *Session) indexOf(id uuid.UUID) int {
	for i := range s.lines {
		if s.lines[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Session) retry(ctx context.Context, err error, msg string) Outcome {
	s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), msg)
	return Outcome{Notice: NoticeRetry, Err: err}
}

func (s *Session) conflict(ctx context.Context, lineID uuid.UUID, err error) Outcome {
	ctx = s.logg.WithField(ctx, "line_id", lineID.String())
	s.logg.Warn(ctx, "cart line changed remotely, reloading")
	if loadErr := s.Load(ctx, true); loadErr != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", loadErr.Error()), "cart reload after conflict failed")
	}
	return Outcome{Notice: NoticeSyncConflict, Err: err}
}
