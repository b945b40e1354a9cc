package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/Alan934/taller-charli-sub000/internal/models"
	"github.com/sirupsen/logrus"
)

// LoadingFlags reports which catalogs have a fetch in flight
type LoadingFlags struct {
	Issues         bool `json:"issues"`
	PartCategories bool `json:"partCategories"`
	VehicleTypes   bool `json:"vehicleTypes"`
	VehicleBrands  bool `json:"vehicleBrands"`
}

type issueScope struct {
	kind           models.AssetKind
	partCategoryID *int
}

func (s issueScope) equal(o issueScope) bool {
	return s.kind == o.kind && equalIntPtr(s.partCategoryID, o.partCategoryID)
}

// catalogSlot caches one catalog list
type catalogSlot[T any] struct {
	items      []T
	loaded     bool
	loading    bool
	generation uint64
}

// ReferenceDataService loads the read-only catalogs on demand and keeps them for the
// session. A failed load keeps whatever was loaded before.
type ReferenceDataService struct {
	mu      sync.Mutex
	catalog CatalogClient
	logger  *logrus.Logger

	issues         catalogSlot[models.CommonIssue]
	issuesScope    issueScope
	partCategories catalogSlot[models.PartCategory]
	vehicleTypes   catalogSlot[models.VehicleType]
	vehicleBrands  catalogSlot[models.VehicleBrand]
}

// NewReferenceDataService creates an empty loader set
func NewReferenceDataService(catalog CatalogClient, logger *logrus.Logger) *ReferenceDataService {
	return &ReferenceDataService{
		catalog: catalog,
		logger:  logger,
	}
}

// Loading returns the loading flags
func (s *ReferenceDataService) Loading() LoadingFlags {
	s.mu.Lock()
	defer s.mu.Unlock()
	return LoadingFlags{
		Issues:         s.issues.loading,
		PartCategories: s.partCategories.loading,
		VehicleTypes:   s.vehicleTypes.loading,
		VehicleBrands:  s.vehicleBrands.loading,
	}
}

// Issues returns the common issues for an asset kind (and part category when booking a
// part), fetching them unless the same scope is already loaded.
func (s *ReferenceDataService) Issues(ctx context.Context, kind models.AssetKind, partCategoryID *int) ([]models.CommonIssue, error) {
	scope := issueScope{kind: kind, partCategoryID: copyInt(partCategoryID)}

	s.mu.Lock()
	if s.issues.loaded && s.issuesScope.equal(scope) {
		items := append([]models.CommonIssue(nil), s.issues.items...)
		s.mu.Unlock()
		return items, nil
	}
	s.issues.loading = true
	generation := s.issues.generation
	s.mu.Unlock()

	items, err := s.catalog.ListCommonIssues(ctx, kind, partCategoryID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.issues.generation != generation {
		return nil, ErrSessionEnded
	}
	s.issues.loading = false
	if err != nil {
		s.logger.WithError(err).WithField("asset_kind", kind).Warn("Failed to load common issues")
		return nil, fmt.Errorf("failed to load common issues: %w", err)
	}
	s.issues.items = items
	s.issues.loaded = true
	s.issuesScope = scope
	return append([]models.CommonIssue(nil), items...), nil
}

// ClearIssues drops the issue catalog so the next load is scoped to the new asset kind
func (s *ReferenceDataService) ClearIssues() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issues = catalogSlot[models.CommonIssue]{generation: s.issues.generation + 1}
	s.issuesScope = issueScope{}
}

// PartCategories returns the part categories
func (s *ReferenceDataService) PartCategories(ctx context.Context) ([]models.PartCategory, error) {
	return loadSlot(ctx, s, &s.partCategories, "part categories", s.catalog.ListPartCategories)
}

// VehicleTypes returns the vehicle types
func (s *ReferenceDataService) VehicleTypes(ctx context.Context) ([]models.VehicleType, error) {
	return loadSlot(ctx, s, &s.vehicleTypes, "vehicle types", s.catalog.ListVehicleTypes)
}

// VehicleBrands returns the vehicle brands
func (s *ReferenceDataService) VehicleBrands(ctx context.Context) ([]models.VehicleBrand, error) {
	return loadSlot(ctx, s, &s.vehicleBrands, "vehicle brands", s.catalog.ListVehicleBrands)
}

func loadSlot[T any](ctx context.Context, s *ReferenceDataService, slot *catalogSlot[T], name string, fetch func(context.Context) ([]T, error)) ([]T, error) {
	s.mu.Lock()
	if slot.loaded {
		items := append([]T(nil), slot.items...)
		s.mu.Unlock()
		return items, nil
	}
	slot.loading = true
	s.mu.Unlock()

	items, err := fetch(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	slot.loading = false
	if err != nil {
		s.logger.WithError(err).Warnf("Failed to load %s", name)
		return append([]T(nil), slot.items...), fmt.Errorf("failed to load %s: %w", name, err)
	}
	slot.items = items
	slot.loaded = true
	return append([]T(nil), items...), nil
}
