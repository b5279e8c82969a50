package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flicky/phone-marketplace/internal/dto"
	"github.com/flicky/phone-marketplace/internal/model"
)

type listingFixture struct {
	listings *mockListingRepo
	reviews  *mockReviewRepo
	users    *mockUserRepo
	svc      *ListingService
}

func newListingFixture() *listingFixture {
	f := &listingFixture{listings: newMockListingRepo(), users: newMockUserRepo()}
	f.reviews = newMockReviewRepo(f.listings)
	f.svc = NewListingService(f.listings, f.reviews, f.users, nil, 0)
	return f
}

func TestListingService_Create(t *testing.T) {
	f := newListingFixture()
	seller := uuid.New()

	l, err := f.svc.Create(context.Background(), Actor{ID: seller}, dto.CreateListingRequest{
		Title: " Galaxy S5 ", Brand: "Samsung", Price: decimal.RequireFromString("150.00"), Stock: 4,
		SellerID: ptr(uuid.New()),
	})
	require.NoError(t, err)
	assert.Equal(t, "Galaxy S5", l.Title)
	assert.True(t, l.IsSeller(seller))
	assert.Equal(t, model.ListingStatusActive, l.Status)
}

func TestListingService_Create_AdminAssignsSeller(t *testing.T) {
	f := newListingFixture()
	seller := uuid.New()

	l, err := f.svc.Create(context.Background(), Actor{ID: uuid.New(), Admin: true}, dto.CreateListingRequest{
		Title: "Moto G", Brand: "Motorola", Price: decimal.NewFromInt(80), SellerID: &seller,
	})
	require.NoError(t, err)
	assert.True(t, l.IsSeller(seller))
}

func TestListingService_Create_NegativePrice(t *testing.T) {
	f := newListingFixture()
	_, err := f.svc.Create(context.Background(), Actor{ID: uuid.New()}, dto.CreateListingRequest{
		Title: "X", Brand: "Y", Price: decimal.NewFromInt(-1),
	})
	assert.ErrorIs(t, err, ErrInvalidPrice)
}

func TestListingService_Update(t *testing.T) {
	f := newListingFixture()
	ctx := context.Background()
	seller := uuid.New()
	l := f.listings.put(&model.Listing{Title: "Old", Stock: 0, SellerID: &seller})

	_, err := f.svc.Update(ctx, Actor{ID: uuid.New()}, l.ID, dto.UpdateListingRequest{Stock: ptr(5)})
	assert.ErrorIs(t, err, ErrForbidden)

	updated, err := f.svc.Update(ctx, Actor{ID: seller}, l.ID, dto.UpdateListingRequest{Stock: ptr(5), Title: ptr("New")})
	require.NoError(t, err)
	assert.Equal(t, 5, updated.Stock)
	assert.Equal(t, 5, f.listings.stock(l.ID))

	_, err = f.svc.Update(ctx, Actor{ID: seller}, l.ID, dto.UpdateListingRequest{Stock: ptr(-1)})
	assert.ErrorIs(t, err, ErrInvalidStock)

	_, err = f.svc.Update(ctx, Actor{ID: seller}, uuid.New(), dto.UpdateListingRequest{})
	assert.ErrorIs(t, err, ErrListingNotFound)
}

func TestListingService_GetDetail_DisabledVisibleToSellerOnly(t *testing.T) {
	f := newListingFixture()
	ctx := context.Background()
	seller := f.users.put(&model.User{Email: "s@example.com", FirstName: "Sam"})
	l := f.listings.put(&model.Listing{Title: "Hidden phone", SellerID: &seller.ID, Status: model.ListingStatusDisabled})

	_, err := f.svc.GetDetail(ctx, l.ID, nil)
	assert.ErrorIs(t, err, ErrListingNotFound)

	stranger := uuid.New()
	_, err = f.svc.GetDetail(ctx, l.ID, &stranger)
	assert.ErrorIs(t, err, ErrListingNotFound)

	detail, err := f.svc.GetDetail(ctx, l.ID, &seller.ID)
	require.NoError(t, err)
	assert.Equal(t, "Sam", detail.Seller.FirstName)
}

func TestListingService_GetDetail_FiltersReviews(t *testing.T) {
	f := newListingFixture()
	ctx := context.Background()
	reviewer := f.users.put(&model.User{Email: "r@example.com", FirstName: "Rae"})
	l := f.listings.put(&model.Listing{Title: "Phone"})
	require.NoError(t, f.reviews.Create(ctx, &model.Review{ListingID: l.ID, ReviewerID: reviewer.ID, Rating: 5, Comment: "a", Visibility: model.ReviewVisible}))
	require.NoError(t, f.reviews.Create(ctx, &model.Review{ListingID: l.ID, ReviewerID: reviewer.ID, Rating: 1, Comment: "b", Visibility: model.ReviewHidden}))

	anon, err := f.svc.GetDetail(ctx, l.ID, nil)
	require.NoError(t, err)
	require.Len(t, anon.Reviews, 1)
	assert.Equal(t, "Rae", anon.Reviews[0].Reviewer.FirstName)

	own, err := f.svc.GetDetail(ctx, l.ID, &reviewer.ID)
	require.NoError(t, err)
	assert.Len(t, own.Reviews, 2)
}

func TestListingService_Search_OnlyActive(t *testing.T) {
	f := newListingFixture()
	f.listings.put(&model.Listing{Title: "iPhone 7", Brand: "Apple", Price: decimal.NewFromInt(300)})
	f.listings.put(&model.Listing{Title: "iPhone 8", Brand: "Apple", Price: decimal.NewFromInt(500)})
	f.listings.put(&model.Listing{Title: "iPhone X", Brand: "Apple", Status: model.ListingStatusDisabled})

	got, total, err := f.svc.Search(context.Background(),
		model.ListingFilter{Brand: "Apple", Title: "iphone", MaxPrice: decimal.NewFromInt(400)}, model.Page{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "iPhone 7", got[0].Title)
}

func TestListingService_ToggleAndDelete(t *testing.T) {
	f := newListingFixture()
	ctx := context.Background()
	seller := uuid.New()
	l := f.listings.put(&model.Listing{Title: "P", SellerID: &seller})
	admin := Actor{ID: uuid.New(), Admin: true}

	toggled, err := f.svc.ToggleStatus(ctx, admin, l.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ListingStatusDisabled, toggled.Status)

	toggled, err = f.svc.ToggleStatus(ctx, admin, l.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ListingStatusActive, toggled.Status)

	assert.ErrorIs(t, f.svc.Delete(ctx, Actor{ID: uuid.New()}, l.ID), ErrForbidden)
	require.NoError(t, f.svc.Delete(ctx, Actor{ID: seller}, l.ID))
	assert.ErrorIs(t, f.svc.Delete(ctx, Actor{ID: seller}, l.ID), ErrListingNotFound)
}

func TestListingService_AlmostSoldOut(t *testing.T) {
	f := newListingFixture()
	for i := 0; i < 7; i++ {
		f.listings.put(&model.Listing{Title: "P", Stock: i})
	}
	got, err := f.svc.AlmostSoldOut(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 5)
	assert.Equal(t, 1, got[0].Stock)
}

func ptr[T any](v T) *T { return &v }
