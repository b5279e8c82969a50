package service

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/flicky/phone-marketplace/internal/dto"
	"github.com/flicky/phone-marketplace/internal/model"
	"github.com/flicky/phone-marketplace/internal/repository"
)

const (
	ExportCSV  = "csv"
	ExportJSON = "json"

	maxExportRows = 10000
)

type TransactionService struct {
	txnRepo  repository.TransactionRepository
	userRepo repository.UserRepository
}

func NewTransactionService(txnRepo repository.TransactionRepository, userRepo repository.UserRepository) *TransactionService {
	return &TransactionService{txnRepo: txnRepo, userRepo: userRepo}
}

// ListMine returns the buyer's own purchase history, newest first.
func (s *TransactionService) ListMine(ctx context.Context, buyerID uuid.UUID) ([]model.TransactionEntry, error) {
	entries, _, err := s.txnRepo.List(ctx, model.TransactionFilter{BuyerID: &buyerID},
		model.Page{Limit: maxUnpagedRows, Sort: "timestamp", Order: "desc"})
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return entries, nil
}

func (s *TransactionService) GetForBuyer(ctx context.Context, id, buyerID uuid.UUID) (*model.TransactionEntry, error) {
	entry, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry.BuyerID != buyerID {
		return nil, ErrTransactionNotFound
	}
	return entry, nil
}

func (s *TransactionService) Get(ctx context.Context, id uuid.UUID) (*model.TransactionEntry, error) {
	entry, err := s.txnRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	if entry == nil {
		return nil, ErrTransactionNotFound
	}
	return entry, nil
}

func (s *TransactionService) List(ctx context.Context, filter model.TransactionFilter, page model.Page) ([]model.TransactionEntry, int, error) {
	entries, total, err := s.txnRepo.List(ctx, filter, page)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	return entries, total, nil
}

// Create inserts a transaction directly, bypassing checkout. The total is
// always derived from the items.
func (s *TransactionService) Create(ctx context.Context, req dto.CreateTransactionRequest) (*model.Transaction, error) {
	buyer, err := s.userRepo.GetByID(ctx, req.BuyerID)
	if err != nil {
		return nil, fmt.Errorf("get buyer: %w", err)
	}
	if buyer == nil {
		return nil, ErrUserNotFound
	}

	status := req.Status
	if status == "" {
		status = model.TransactionStatusCompleted
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}

	txn := &model.Transaction{BuyerID: req.BuyerID, Status: status, TotalAmount: decimal.Zero}
	for _, it := range req.Items {
		if it.Quantity < 1 {
			return nil, ErrInvalidQuantity
		}
		if it.Price.IsNegative() {
			return nil, ErrInvalidPrice
		}
		txn.Items = append(txn.Items, model.TransactionItem{
			ListingID: it.ListingID, Title: it.Title, Price: it.Price, Quantity: it.Quantity,
		})
		txn.TotalAmount = txn.TotalAmount.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	if len(txn.Items) == 0 {
		return nil, ErrInvalidCart
	}

	if err := s.txnRepo.Create(ctx, txn); err != nil {
		return nil, fmt.Errorf("create transaction: %w", err)
	}
	return txn, nil
}

// Export writes every transaction matching filter to w and returns the
// number of rows written.
func (s *TransactionService) Export(ctx context.Context, w io.Writer, format string, filter model.TransactionFilter) (int, error) {
	entries, _, err := s.txnRepo.List(ctx, filter,
		model.Page{Limit: maxExportRows, Sort: "timestamp", Order: "desc"})
	if err != nil {
		return 0, fmt.Errorf("list transactions: %w", err)
	}

	switch format {
	case ExportJSON:
		out := make([]dto.TransactionResponse, 0, len(entries))
		for _, e := range entries {
			out = append(out, ToTransactionResponse(e))
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return 0, fmt.Errorf("encode json: %w", err)
		}
	case ExportCSV, "":
		if err := writeTransactionsCSV(w, entries); err != nil {
			return 0, err
		}
	default:
		return 0, fmt.Errorf("%w: unknown export format %q", ErrInvalidInput, format)
	}
	return len(entries), nil
}

func writeTransactionsCSV(w io.Writer, entries []model.TransactionEntry) error {
	cw := csv.NewWriter(w)
	header := []string{"Transaction ID", "Timestamp", "Buyer", "Buyer Email", "Items", "Total Amount", "Status"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, e := range entries {
		items := make([]string, 0, len(e.Items))
		for _, it := range e.Items {
			items = append(items, it.Title+" x"+strconv.Itoa(it.Quantity))
		}
		row := []string{
			e.ID.String(),
			e.Timestamp.UTC().Format("2006-01-02T15:04:05Z07:00"),
			e.BuyerName,
			e.BuyerEmail,
			strings.Join(items, "; "),
			e.TotalAmount.StringFixed(2),
			string(e.Status),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func ToTransactionResponse(e model.TransactionEntry) dto.TransactionResponse {
	resp := ToTransactionView(&e.Transaction)
	resp.BuyerName = e.BuyerName
	resp.BuyerEmail = e.BuyerEmail
	return resp
}

func ToTransactionView(t *model.Transaction) dto.TransactionResponse {
	items := make([]dto.TransactionItemResponse, 0, len(t.Items))
	for _, it := range t.Items {
		items = append(items, dto.TransactionItemResponse{
			ListingID: it.ListingID, Title: it.Title, Price: it.Price, Quantity: it.Quantity,
		})
	}
	return dto.TransactionResponse{
		ID:          t.ID,
		BuyerID:     t.BuyerID,
		Items:       items,
		TotalAmount: t.TotalAmount,
		Status:      t.Status,
		Timestamp:   t.Timestamp,
	}
}
