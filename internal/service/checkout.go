package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/flicky/phone-marketplace/internal/dto"
	"github.com/flicky/phone-marketplace/internal/model"
	"github.com/flicky/phone-marketplace/internal/repository"
)

const publishTimeout = 5 * time.Second

// OrderPublisher delivers new-order notifications.
type OrderPublisher interface {
	PublishOrder(ctx context.Context, event model.OrderEvent) error
}

// ListingCache drops stale cached listings.
type ListingCache interface {
	InvalidateCache(ctx context.Context, ids ...uuid.UUID)
}

type CheckoutService struct {
	listingRepo repository.ListingRepository
	cartRepo    repository.CartRepository
	txnRepo     repository.TransactionRepository
	userRepo    repository.UserRepository
	publisher   OrderPublisher
	cache       ListingCache
	log         *slog.Logger
}

func NewCheckoutService(
	listingRepo repository.ListingRepository,
	cartRepo repository.CartRepository,
	txnRepo repository.TransactionRepository,
	userRepo repository.UserRepository,
	publisher OrderPublisher,
	cache ListingCache,
	log *slog.Logger,
) *CheckoutService {
	return &CheckoutService{
		listingRepo: listingRepo, cartRepo: cartRepo, txnRepo: txnRepo, userRepo: userRepo,
		publisher: publisher, cache: cache, log: log,
	}
}

// Checkout converts the submitted cart into a completed transaction.
//
// Every line is validated before any stock moves. Each decrement is guarded
// by stock >= quantity in the database; when a concurrent buyer wins the
// race, lines already taken are put back and the call fails with a
// *StockError.
func (s *CheckoutService) Checkout(ctx context.Context, buyerID uuid.UUID, lines []dto.CheckoutLine) (*model.Transaction, error) {
	ctx, span := tracer.Start(ctx, "checkout")
	defer span.End()
	span.SetAttributes(attribute.String("buyer.id", buyerID.String()))

	items, total, err := s.validate(ctx, lines)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if err := s.commit(ctx, items); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	touched := make([]uuid.UUID, len(items))
	for i, it := range items {
		touched[i] = it.ListingID
	}
	s.cache.InvalidateCache(ctx, touched...)

	if err := s.cartRepo.ClearCart(ctx, buyerID); err != nil {
		s.log.Error("clear cart after checkout", "user_id", buyerID, "error", err)
	}

	txn := &model.Transaction{
		BuyerID:     buyerID,
		Items:       items,
		TotalAmount: total,
		Status:      model.TransactionStatusCompleted,
		Timestamp:   time.Now().UTC(),
	}
	if err := s.txnRepo.Create(ctx, txn); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("create transaction: %w", err)
	}
	span.SetAttributes(attribute.String("order.id", txn.ID.String()))

	s.notify(ctx, txn)

	s.log.Info("checkout completed",
		"order_id", txn.ID, "user_id", buyerID, "items", len(items), "total", total.String())
	return txn, nil
}

// validate checks the lines in submission order and stops at the first one
// that fails. Repeated listings are folded into one item, keeping first-seen
// order, and each repeat is checked against the running quantity.
func (s *CheckoutService) validate(ctx context.Context, lines []dto.CheckoutLine) ([]model.TransactionItem, decimal.Decimal, error) {
	if len(lines) == 0 {
		return nil, decimal.Zero, ErrInvalidCart
	}

	index := make(map[uuid.UUID]int, len(lines))
	items := make([]model.TransactionItem, 0, len(lines))
	stock := make(map[uuid.UUID]int, len(lines))
	for _, l := range lines {
		if l.ListingID == uuid.Nil {
			return nil, decimal.Zero, ErrInvalidCart
		}
		if l.Quantity <= 0 || l.Quantity > MaxLineQuantity {
			return nil, decimal.Zero, ErrInvalidQuantity
		}

		i, seen := index[l.ListingID]
		if !seen {
			listing, err := s.listingRepo.GetByID(ctx, l.ListingID)
			if err != nil {
				return nil, decimal.Zero, fmt.Errorf("get listing: %w", err)
			}
			if listing == nil || listing.Status == model.ListingStatusDisabled {
				return nil, decimal.Zero, ErrListingNotFound
			}
			i = len(items)
			index[l.ListingID] = i
			stock[l.ListingID] = listing.Stock
			items = append(items, model.TransactionItem{
				ListingID: listing.ID,
				Title:     listing.Title,
				Price:     listing.Price,
			})
		}

		if l.Quantity > MaxLineQuantity-items[i].Quantity {
			return nil, decimal.Zero, ErrInvalidQuantity
		}
		requested := items[i].Quantity + l.Quantity
		if available := stock[l.ListingID]; available < requested {
			return nil, decimal.Zero, &StockError{
				ListingID: items[i].ListingID, Title: items[i].Title,
				Available: available, Requested: requested,
			}
		}
		items[i].Quantity = requested
	}

	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return items, total, nil
}

func (s *CheckoutService) commit(ctx context.Context, items []model.TransactionItem) error {
	for i, it := range items {
		ok, err := s.listingRepo.DecrementStock(ctx, it.ListingID, it.Quantity)
		if err == nil && ok {
			continue
		}
		s.release(ctx, items[:i])
		if err != nil {
			return fmt.Errorf("decrement stock: %w", err)
		}
		available := 0
		if current, gerr := s.listingRepo.GetByID(ctx, it.ListingID); gerr == nil && current != nil {
			available = current.Stock
		}
		return &StockError{ListingID: it.ListingID, Title: it.Title, Available: available, Requested: it.Quantity}
	}
	return nil
}

// release returns stock taken by a checkout that could not complete.
func (s *CheckoutService) release(ctx context.Context, items []model.TransactionItem) {
	ctx = context.WithoutCancel(ctx)
	for _, it := range items {
		if err := s.listingRepo.IncrementStock(ctx, it.ListingID, it.Quantity); err != nil {
			s.log.Error("release stock", "listing_id", it.ListingID, "quantity", it.Quantity, "error", err)
		}
	}
}

func (s *CheckoutService) notify(ctx context.Context, txn *model.Transaction) {
	if s.publisher == nil {
		return
	}
	buyerName := ""
	if buyer, err := s.userRepo.GetByID(ctx, txn.BuyerID); err == nil && buyer != nil {
		buyerName = buyer.FullName()
	}
	count := 0
	for _, it := range txn.Items {
		count += it.Quantity
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	err := s.publisher.PublishOrder(pubCtx, model.OrderEvent{
		Event:     model.EventNewOrder,
		OrderID:   txn.ID,
		BuyerName: buyerName,
		Total:     txn.TotalAmount,
		ItemCount: count,
		CreatedAt: txn.Timestamp,
	})
	if err != nil {
		s.log.Error("publish order event", "order_id", txn.ID, "error", err)
	}
}
