package services

import (
	"context"
	"time"

	"github.com/Alan934/taller-charli-sub000/internal/models"
)

// CatalogClient loads the read-only reference catalogs
type CatalogClient interface {
	ListCommonIssues(ctx context.Context, kind models.AssetKind, partCategoryID *int) ([]models.CommonIssue, error)
	ListPartCategories(ctx context.Context) ([]models.PartCategory, error)
	ListVehicleTypes(ctx context.Context) ([]models.VehicleType, error)
	ListVehicleBrands(ctx context.Context) ([]models.VehicleBrand, error)
}

// SlotClient answers "which start times are still open on this day"
type SlotClient interface {
	ListAvailableSlots(ctx context.Context, query models.SlotQuery) ([]time.Time, error)
}

// BookingClient creates the booking. Calls are never retried.
type BookingClient interface {
	CreateBooking(ctx context.Context, accessToken string, payload *models.CreateBookingPayload) (*models.BookingSubmission, error)
}

// CustomerDirectory is the admin-only customer lookup
type CustomerDirectory interface {
	SearchCustomers(ctx context.Context, accessToken, query string) ([]models.Customer, error)
	ListCustomerVehicles(ctx context.Context, accessToken string, customerID int) ([]models.CustomerVehicle, error)
}

// DraftStorage is durable string key-value storage for persisted drafts
type DraftStorage interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// DraftCodec turns a serialized draft into the stored representation and back
type DraftCodec interface {
	Seal(plaintext []byte) (string, error)
	Open(stored string) ([]byte, error)
}

// Identity is the current user as seen by a wizard session
type Identity struct {
	UserID      string
	Email       string
	Role        models.Role
	AccessToken string
}

// IsAdmin reports whether the identity acts for other customers
func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == models.RoleAdmin
}

// plainCodec stores drafts as-is
type plainCodec struct{}

// PlainCodec returns a codec that stores the JSON unchanged
func PlainCodec() DraftCodec { return plainCodec{} }

func (plainCodec) Seal(plaintext []byte) (string, error) { return string(plaintext), nil }
func (plainCodec) Open(stored string) ([]byte, error) { return []byte(stored), nil }
