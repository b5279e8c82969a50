package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/flicky/phone-marketplace/internal/model"
	"github.com/flicky/phone-marketplace/internal/repository"
)

type mockUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User
	byID  map[uuid.UUID]*model.User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*model.User), byID: make(map[uuid.UUID]*model.User)}
}

func (m *mockUserRepo) put(u *model.User) *model.User {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.Status == "" {
		u.Status = model.UserStatusActive
	}
	m.users[u.Email] = u
	m.byID[u.ID] = u
	return u
}

func (m *mockUserRepo) Create(_ context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.Email]; ok {
		return repository.ErrDuplicate
	}
	user.ID = uuid.New()
	user.CreatedAt = time.Now()
	user.UpdatedAt = time.Now()
	m.put(user)
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[email]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (m *mockUserRepo) GetByIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[uuid.UUID]*model.User)
	for _, id := range ids {
		if u, ok := m.byID[id]; ok {
			cp := *u
			out[id] = &cp
		}
	}
	return out, nil
}

func (m *mockUserRepo) List(_ context.Context, filter model.UserFilter, page model.Page) ([]model.User, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.User
	for _, u := range m.byID {
		if filter.Status != "" && u.Status != filter.Status {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(u.Email+" "+u.FullName()), strings.ToLower(filter.Search)) {
			continue
		}
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return paginate(out, page), len(out), nil
}

func (m *mockUserRepo) Update(_ context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.byID[user.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	if other, ok := m.users[user.Email]; ok && other.ID != user.ID {
		return repository.ErrDuplicate
	}
	delete(m.users, existing.Email)
	existing.Email, existing.FirstName, existing.LastName = user.Email, user.FirstName, user.LastName
	m.users[existing.Email] = existing
	return nil
}

func (m *mockUserRepo) UpdatePassword(_ context.Context, id uuid.UUID, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	u.Password = hash
	return nil
}

func (m *mockUserRepo) SetStatus(_ context.Context, id uuid.UUID, status model.UserStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	u.Status = status
	return nil
}

func (m *mockUserRepo) TouchLastLogin(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	now := time.Now()
	u.LastLogin = &now
	return nil
}

func (m *mockUserRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	delete(m.byID, id)
	delete(m.users, u.Email)
	return nil
}

type mockListingRepo struct {
	mu       sync.Mutex
	listings map[uuid.UUID]*model.Listing
	// failDecrement makes DecrementStock fail the guard for this listing.
	failDecrement map[uuid.UUID]bool
}

func newMockListingRepo() *mockListingRepo {
	return &mockListingRepo{listings: make(map[uuid.UUID]*model.Listing), failDecrement: make(map[uuid.UUID]bool)}
}

func (m *mockListingRepo) put(l *model.Listing) *model.Listing {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	if l.Status == "" {
		l.Status = model.ListingStatusActive
	}
	m.listings[l.ID] = l
	return l
}

func (m *mockListingRepo) stock(id uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listings[id].Stock
}

func (m *mockListingRepo) Create(_ context.Context, l *model.Listing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l.ID = uuid.New()
	l.CreatedAt = time.Now()
	l.UpdatedAt = l.CreatedAt
	cp := *l
	m.listings[l.ID] = &cp
	return nil
}

func (m *mockListingRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.listings[id]
	if !ok {
		return nil, nil
	}
	cp := *l
	return &cp, nil
}

func (m *mockListingRepo) List(_ context.Context, filter model.ListingFilter, page model.Page) ([]model.Listing, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Listing
	for _, l := range m.listings {
		if filter.Status != "" && l.Status != filter.Status {
			continue
		}
		if filter.Brand != "" && l.Brand != filter.Brand {
			continue
		}
		if filter.Title != "" && !strings.Contains(strings.ToLower(l.Title), strings.ToLower(filter.Title)) {
			continue
		}
		if filter.MaxPrice.IsPositive() && l.Price.GreaterThan(filter.MaxPrice) {
			continue
		}
		if filter.SellerID != nil && !l.IsSeller(*filter.SellerID) {
			continue
		}
		out = append(out, *l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return paginate(out, page), len(out), nil
}

func (m *mockListingRepo) AlmostSoldOut(_ context.Context, limit int) ([]model.ListingSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ListingSummary
	for _, l := range m.listings {
		if l.Status == model.ListingStatusActive && l.Stock > 0 {
			out = append(out, model.ListingSummary{ID: l.ID, Title: l.Title, Price: l.Price, Stock: l.Stock})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Stock < out[j].Stock })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockListingRepo) BestSellers(_ context.Context, _, _ int) ([]model.ListingSummary, error) {
	return nil, nil
}

func (m *mockListingRepo) Brands(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := map[string]bool{}
	var out []string
	for _, l := range m.listings {
		if !seen[l.Brand] {
			seen[l.Brand] = true
			out = append(out, l.Brand)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *mockListingRepo) Update(_ context.Context, l *model.Listing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.listings[l.ID]; !ok {
		return pgx.ErrNoRows
	}
	cp := *l
	m.listings[l.ID] = &cp
	return nil
}

func (m *mockListingRepo) SetStatus(_ context.Context, id uuid.UUID, status model.ListingStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.listings[id]
	if !ok {
		return pgx.ErrNoRows
	}
	l.Status = status
	return nil
}

func (m *mockListingRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.listings[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(m.listings, id)
	return nil
}

func (m *mockListingRepo) DecrementStock(_ context.Context, id uuid.UUID, quantity int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.listings[id]
	if !ok || m.failDecrement[id] || l.Stock < quantity {
		return false, nil
	}
	l.Stock -= quantity
	return true, nil
}

func (m *mockListingRepo) IncrementStock(_ context.Context, id uuid.UUID, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.listings[id]
	if !ok {
		return pgx.ErrNoRows
	}
	l.Stock += quantity
	return nil
}

type cartKey struct{ user, listing uuid.UUID }

type mockCartRepo struct {
	mu       sync.Mutex
	lines    map[cartKey]int
	order    []cartKey
	listings *mockListingRepo
}

func newMockCartRepo(listings *mockListingRepo) *mockCartRepo {
	return &mockCartRepo{lines: make(map[cartKey]int), listings: listings}
}

func (m *mockCartRepo) userLines(userID uuid.UUID) []model.CartLine {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.CartLine
	for _, k := range m.order {
		if q, ok := m.lines[k]; ok && k.user == userID {
			out = append(out, model.CartLine{ListingID: k.listing, Quantity: q})
		}
	}
	return out
}

func (m *mockCartRepo) GetItems(ctx context.Context, userID uuid.UUID) ([]model.CartItem, error) {
	var items []model.CartItem
	for _, line := range m.userLines(userID) {
		item := model.CartItem{ListingID: line.ListingID, Quantity: line.Quantity}
		if l, _ := m.listings.GetByID(ctx, line.ListingID); l != nil {
			item.Resolved = true
			item.Title, item.Image, item.Price, item.Stock = l.Title, l.Image, l.Price, l.Stock
		}
		items = append(items, item)
	}
	return items, nil
}

func (m *mockCartRepo) GetLine(_ context.Context, userID, listingID uuid.UUID) (*model.CartLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.lines[cartKey{userID, listingID}]
	if !ok {
		return nil, nil
	}
	return &model.CartLine{ListingID: listingID, Quantity: q}, nil
}

func (m *mockCartRepo) AddItem(_ context.Context, userID, listingID uuid.UUID, quantity int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := cartKey{userID, listingID}
	if _, ok := m.lines[k]; !ok {
		m.order = append(m.order, k)
	}
	m.lines[k] += quantity
	return m.lines[k], nil
}

func (m *mockCartRepo) SetQuantity(_ context.Context, userID, listingID uuid.UUID, quantity int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := cartKey{userID, listingID}
	if _, ok := m.lines[k]; !ok {
		return false, nil
	}
	m.lines[k] = quantity
	return true, nil
}

func (m *mockCartRepo) RemoveItem(_ context.Context, userID, listingID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.lines, cartKey{userID, listingID})
	return nil
}

func (m *mockCartRepo) RemoveItems(_ context.Context, userID uuid.UUID, listingIDs []uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range listingIDs {
		delete(m.lines, cartKey{userID, id})
	}
	return nil
}

func (m *mockCartRepo) ClearCart(_ context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.lines {
		if k.user == userID {
			delete(m.lines, k)
		}
	}
	return nil
}

type mockReviewRepo struct {
	mu       sync.Mutex
	reviews  []*model.Review
	listings *mockListingRepo
}

func newMockReviewRepo(listings *mockListingRepo) *mockReviewRepo {
	return &mockReviewRepo{listings: listings}
}

func (m *mockReviewRepo) find(id uuid.UUID) *model.Review {
	for _, r := range m.reviews {
		if r.ID == id {
			return r
		}
	}
	return nil
}

func (m *mockReviewRepo) Create(_ context.Context, r *model.Review) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = uuid.New()
	r.CreatedAt = time.Now()
	cp := *r
	m.reviews = append(m.reviews, &cp)
	return nil
}

func (m *mockReviewRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.find(id)
	if r == nil {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (m *mockReviewRepo) ListByListing(_ context.Context, listingID uuid.UUID) ([]model.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Review
	for _, r := range m.reviews {
		if r.ListingID == listingID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *mockReviewRepo) List(ctx context.Context, filter model.ReviewFilter, page model.Page) ([]model.ReviewEntry, int, error) {
	m.mu.Lock()
	var matched []model.Review
	for _, r := range m.reviews {
		if filter.ListingID != nil && r.ListingID != *filter.ListingID {
			continue
		}
		if filter.ReviewerID != nil && r.ReviewerID != *filter.ReviewerID {
			continue
		}
		if filter.Visibility != "" && r.Visibility != filter.Visibility {
			continue
		}
		if filter.Text != "" && !strings.Contains(strings.ToLower(r.Comment), strings.ToLower(filter.Text)) {
			continue
		}
		matched = append(matched, *r)
	}
	m.mu.Unlock()

	var out []model.ReviewEntry
	for _, r := range matched {
		e := model.ReviewEntry{Review: r}
		if l, _ := m.listings.GetByID(ctx, r.ListingID); l != nil {
			e.ListingTitle, e.ListingSeller = l.Title, l.SellerID
		}
		out = append(out, e)
	}
	return paginate(out, page), len(out), nil
}

func (m *mockReviewRepo) ToggleVisibility(_ context.Context, id uuid.UUID) (model.ReviewVisibility, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.find(id)
	if r == nil {
		return "", pgx.ErrNoRows
	}
	if r.Visibility == model.ReviewHidden {
		r.Visibility = model.ReviewVisible
	} else {
		r.Visibility = model.ReviewHidden
	}
	return r.Visibility, nil
}

func (m *mockReviewRepo) SetVisibility(_ context.Context, id uuid.UUID, v model.ReviewVisibility) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.find(id)
	if r == nil {
		return pgx.ErrNoRows
	}
	r.Visibility = v
	return nil
}

type mockTransactionRepo struct {
	mu   sync.Mutex
	txns []*model.Transaction
	err  error
}

func newMockTransactionRepo() *mockTransactionRepo { return &mockTransactionRepo{} }

func (m *mockTransactionRepo) Create(_ context.Context, txn *model.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	txn.ID = uuid.New()
	if txn.Timestamp.IsZero() {
		txn.Timestamp = time.Now()
	}
	txn.CreatedAt = time.Now()
	cp := *txn
	cp.Items = append([]model.TransactionItem(nil), txn.Items...)
	m.txns = append(m.txns, &cp)
	return nil
}

func (m *mockTransactionRepo) GetByID(_ context.Context, id uuid.UUID) (*model.TransactionEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.txns {
		if t.ID == id {
			return &model.TransactionEntry{Transaction: *t}, nil
		}
	}
	return nil, nil
}

func (m *mockTransactionRepo) List(_ context.Context, filter model.TransactionFilter, page model.Page) ([]model.TransactionEntry, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.TransactionEntry
	for _, t := range m.txns {
		if filter.BuyerID != nil && t.BuyerID != *filter.BuyerID {
			continue
		}
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		out = append(out, model.TransactionEntry{Transaction: *t})
	}
	return paginate(out, page), len(out), nil
}

type mockWishlistRepo struct {
	mu    sync.Mutex
	items map[cartKey]bool
}

func newMockWishlistRepo() *mockWishlistRepo { return &mockWishlistRepo{items: make(map[cartKey]bool)} }

func (m *mockWishlistRepo) Add(_ context.Context, userID, listingID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[cartKey{userID, listingID}] = true
	return nil
}

func (m *mockWishlistRepo) Remove(_ context.Context, userID, listingID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, cartKey{userID, listingID})
	return nil
}

func (m *mockWishlistRepo) List(_ context.Context, userID uuid.UUID) ([]model.ListingSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ListingSummary
	for k := range m.items {
		if k.user == userID {
			out = append(out, model.ListingSummary{ID: k.listing})
		}
	}
	return out, nil
}

type mockAdminLogRepo struct {
	mu   sync.Mutex
	logs []model.AdminLog
	err  error
}

func (m *mockAdminLogRepo) Create(_ context.Context, entry *model.AdminLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	entry.ID = uuid.New()
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	m.logs = append(m.logs, *entry)
	return nil
}

func (m *mockAdminLogRepo) List(_ context.Context, filter model.AdminLogFilter, page model.Page) ([]model.AdminLog, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.AdminLog
	for _, l := range m.logs {
		if filter.Action != "" && l.Action != filter.Action {
			continue
		}
		out = append(out, l)
	}
	return paginate(out, page), len(out), nil
}

func (m *mockAdminLogRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.logs)
}

type mockPublisher struct {
	mu     sync.Mutex
	events []model.OrderEvent
	err    error
}

func (m *mockPublisher) PublishOrder(_ context.Context, e model.OrderEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, e)
	return nil
}

type mockCache struct {
	mu          sync.Mutex
	invalidated []uuid.UUID
}

func (m *mockCache) InvalidateCache(_ context.Context, ids ...uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalidated = append(m.invalidated, ids...)
}

var errBoom = errors.New("boom")

func paginate[T any](items []T, page model.Page) []T {
	if page.Offset >= len(items) {
		return nil
	}
	items = items[page.Offset:]
	if page.Limit > 0 && len(items) > page.Limit {
		items = items[:page.Limit]
	}
	return items
}

var (
	_ repository.UserRepository        = (*mockUserRepo)(nil)
	_ repository.ListingRepository     = (*mockListingRepo)(nil)
	_ repository.CartRepository        = (*mockCartRepo)(nil)
	_ repository.ReviewRepository      = (*mockReviewRepo)(nil)
	_ repository.TransactionRepository = (*mockTransactionRepo)(nil)
	_ repository.WishlistRepository    = (*mockWishlistRepo)(nil)
	_ repository.AdminLogRepository    = (*mockAdminLogRepo)(nil)
)

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }
