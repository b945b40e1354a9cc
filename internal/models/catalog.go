package models

import "time"

// CommonIssue is a catalog entry the customer can tick in the issues step
type CommonIssue struct {
	ID              int       `json:"id"`
	Name            string    `json:"name"`
	Description     *string   `json:"description,omitempty"`
	DurationMinutes *int      `json:"durationMinutes,omitempty"`
	AssetKind       AssetKind `json:"assetType,omitempty"`
	PartCategoryID  *int      `json:"partCategoryId,omitempty"`
}

// PartCategory groups detachable parts (gearbox, injector, ...)
type PartCategory struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// VehicleType is car, motorcycle, truck, ...
type VehicleType struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// VehicleBrand is a make offered in the vehicle step
type VehicleBrand struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	VehicleTypeID *int   `json:"vehicleTypeId,omitempty"`
}

// Customer is a registered client as seen by an admin
type Customer struct {
	ID    int     `json:"id"`
	Name  string  `json:"name"`
	Email string  `json:"email"`
	Phone *string `json:"phone,omitempty"`
}

// CustomerVehicle is a vehicle already on file for a customer
type CustomerVehicle struct {
	ID         int     `json:"id"`
	CustomerID int     `json:"customerId"`
	Model      string  `json:"model"`
	BrandName  *string `json:"brandName,omitempty"`
	TypeName   *string `json:"typeName,omitempty"`
	Year       *int    `json:"year,omitempty"`
	Plate      *string `json:"plate,omitempty"`
}

// SlotQuery asks the shop for the open slots of one day
type SlotQuery struct {
	Date            string
	AssetKind       AssetKind
	DurationMinutes *int
}

// DaySlots is the shop's answer for one day
type DaySlots struct {
	Date  string      `json:"date"`
	Slots []time.Time `json:"slots"`
}
