package service

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flicky/phone-marketplace/internal/model"
)

func newCartFixture() (*CartService, *mockCartRepo, *mockListingRepo) {
	listings := newMockListingRepo()
	carts := newMockCartRepo(listings)
	return NewCartService(carts, listings), carts, listings
}

func TestCartService_Add(t *testing.T) {
	svc, carts, listings := newCartFixture()
	l := listings.put(&model.Listing{Title: "Pixel", Price: decimal.NewFromInt(300), Stock: 10})
	user := uuid.New()

	require.NoError(t, svc.Add(context.Background(), user, l.ID, 2))
	require.NoError(t, svc.Add(context.Background(), user, l.ID, 3))

	lines := carts.userLines(user)
	require.Len(t, lines, 1)
	assert.Equal(t, 5, lines[0].Quantity)
}

func TestCartService_Add_ListingNotFound(t *testing.T) {
	svc, carts, _ := newCartFixture()
	user := uuid.New()
	err := svc.Add(context.Background(), user, uuid.New(), 2)
	assert.ErrorIs(t, err, ErrListingNotFound)
	assert.Empty(t, carts.userLines(user))
}

func TestCartService_Add_BeyondStock(t *testing.T) {
	svc, carts, listings := newCartFixture()
	l := listings.put(&model.Listing{Title: "Pixel", Stock: 3})
	user := uuid.New()

	require.NoError(t, svc.Add(context.Background(), user, l.ID, 2))
	err := svc.Add(context.Background(), user, l.ID, 2)

	var stockErr *StockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, 3, stockErr.Available)
	assert.Equal(t, 2, carts.userLines(user)[0].Quantity)
}

func TestCartService_Add_InvalidQuantity(t *testing.T) {
	svc, _, listings := newCartFixture()
	l := listings.put(&model.Listing{Stock: 3})
	assert.ErrorIs(t, svc.Add(context.Background(), uuid.New(), l.ID, 0), ErrInvalidQuantity)
}

func TestCartService_Add_QuantityCap(t *testing.T) {
	svc, carts, listings := newCartFixture()
	ctx := context.Background()
	l := listings.put(&model.Listing{Title: "Phone", Stock: MaxLineQuantity})
	user := uuid.New()

	assert.ErrorIs(t, svc.Add(ctx, user, l.ID, math.MaxInt), ErrInvalidQuantity)

	_, err := carts.AddItem(ctx, user, l.ID, MaxLineQuantity)
	require.NoError(t, err)
	assert.ErrorIs(t, svc.Add(ctx, user, l.ID, 1), ErrInvalidQuantity)
	assert.ErrorIs(t, svc.Update(ctx, user, l.ID, math.MaxInt), ErrInvalidQuantity)
}

func TestCartService_MergeProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("repeated adds collapse into one line holding the sum", prop.ForAll(
		func(quantities []int) bool {
			svc, carts, listings := newCartFixture()
			l := listings.put(&model.Listing{Title: "Phone", Stock: 1000})
			user := uuid.New()

			sum := 0
			for _, q := range quantities {
				if err := svc.Add(context.Background(), user, l.ID, q); err != nil {
					return false
				}
				sum += q
			}
			lines := carts.userLines(user)
			return len(lines) == 1 && lines[0].Quantity == sum
		},
		gen.SliceOfN(5, gen.IntRange(1, 20)),
	))

	properties.TestingRun(t)
}

func TestCartService_Update(t *testing.T) {
	svc, carts, listings := newCartFixture()
	l := listings.put(&model.Listing{Stock: 10})
	user := uuid.New()
	ctx := context.Background()

	assert.ErrorIs(t, svc.Update(ctx, user, l.ID, 4), ErrCartItemNotFound)

	require.NoError(t, svc.Add(ctx, user, l.ID, 1))
	require.NoError(t, svc.Update(ctx, user, l.ID, 4))
	assert.Equal(t, 4, carts.userLines(user)[0].Quantity)

	assert.ErrorIs(t, svc.Update(ctx, user, l.ID, 0), ErrInvalidQuantity)
}

func TestCartService_Remove(t *testing.T) {
	svc, carts, listings := newCartFixture()
	l := listings.put(&model.Listing{Stock: 10})
	user := uuid.New()
	ctx := context.Background()

	require.NoError(t, svc.Add(ctx, user, l.ID, 1))
	require.NoError(t, svc.Remove(ctx, user, l.ID))
	require.NoError(t, svc.Remove(ctx, user, l.ID))
	assert.Empty(t, carts.userLines(user))
}

func TestCartService_Get_PrunesDeadLines(t *testing.T) {
	svc, carts, listings := newCartFixture()
	ctx := context.Background()
	user := uuid.New()
	kept := listings.put(&model.Listing{Title: "Kept", Price: decimal.NewFromInt(10), Stock: 10})
	gone := listings.put(&model.Listing{Title: "Gone", Price: decimal.NewFromInt(10), Stock: 10})

	require.NoError(t, svc.Add(ctx, user, kept.ID, 2))
	require.NoError(t, svc.Add(ctx, user, gone.ID, 1))
	require.NoError(t, listings.Delete(ctx, gone.ID))

	items, err := svc.Get(ctx, user)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Kept", items[0].Title)

	lines := carts.userLines(user)
	require.Len(t, lines, 1)
	assert.Equal(t, kept.ID, lines[0].ListingID)

	resp := ToCartResponse(items)
	assert.True(t, decimal.NewFromInt(20).Equal(resp.Total))
}
