package store

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/hadijannat/titan-aas/titanerr"
)

// descriptorRow is the GORM-mapped shape for the descriptors table.
// Registry entries are a simple typed CRUD shape, unlike entities, so
// they go through GORM rather than hand-rolled SQL (grounded on the
// teacher's db/postgres.go GORM usage).
type descriptorRow struct {
	Kind          string `gorm:"primaryKey;column:kind"`
	ID            string `gorm:"primaryKey;column:id"`
	IDShort       string `gorm:"column:id_short"`
	GlobalAssetID string `gorm:"column:global_asset_id"`
	Endpoints     string `gorm:"column:endpoints;type:jsonb"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (descriptorRow) TableName() string { return "descriptors" }

// EndpointDTO mirrors model.Endpoint without importing model, keeping
// the store package's dependency surface narrow.
type EndpointDTO struct {
	Interface string `json:"interface"`
	Href      string `json:"href"`
}

// DescriptorStore manages ShellDescriptor/SubmodelDescriptor registry rows.
type DescriptorStore struct {
	db *gorm.DB
}

// NewDescriptorStore opens a GORM connection against connString and
// migrates the descriptors table.
func NewDescriptorStore(connString string) (*DescriptorStore, error) {
	db, err := gorm.Open(postgres.Open(connString), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, titanerr.Wrap(titanerr.StoreUnavailable, err)
	}
	if err := db.AutoMigrate(&descriptorRow{}); err != nil {
		return nil, titanerr.Wrap(titanerr.StoreUnavailable, err)
	}
	return &DescriptorStore{db: db}, nil
}

// Upsert creates or replaces a descriptor row.
func (d *DescriptorStore) Upsert(ctx context.Context, kind, id, idShort, globalAssetID string, endpoints []EndpointDTO) error {
	encoded, err := json.Marshal(endpoints)
	if err != nil {
		return titanerr.Wrap(titanerr.ValidationError, err)
	}
	row := descriptorRow{
		Kind:          kind,
		ID:            id,
		IDShort:       idShort,
		GlobalAssetID: globalAssetID,
		Endpoints:     string(encoded),
		UpdatedAt:     time.Now().UTC(),
	}
	result := d.db.WithContext(ctx).Save(&row)
	if result.Error != nil {
		return titanerr.Wrap(titanerr.StoreUnavailable, result.Error)
	}
	return nil
}

// Get returns a single descriptor row, or NotFound.
func (d *DescriptorStore) Get(ctx context.Context, kind, id string) (*descriptorRow, error) {
	var row descriptorRow
	result := d.db.WithContext(ctx).Where("kind = ? AND id = ?", kind, id).First(&row)
	if result.Error == gorm.ErrRecordNotFound {
		return nil, titanerr.Newf(titanerr.NotFound, "%s %q not found", kind, id)
	}
	if result.Error != nil {
		return nil, titanerr.Wrap(titanerr.StoreUnavailable, result.Error)
	}
	return &row, nil
}

// Patch updates only the non-empty fields supplied.
func (d *DescriptorStore) Patch(ctx context.Context, kind, id string, idShort string, endpoints []EndpointDTO) error {
	updates := map[string]interface{}{"updated_at": time.Now().UTC()}
	if idShort != "" {
		updates["id_short"] = idShort
	}
	if endpoints != nil {
		encoded, err := json.Marshal(endpoints)
		if err != nil {
			return titanerr.Wrap(titanerr.ValidationError, err)
		}
		updates["endpoints"] = string(encoded)
	}
	result := d.db.WithContext(ctx).Model(&descriptorRow{}).
		Where("kind = ? AND id = ?", kind, id).
		Updates(updates)
	if result.Error != nil {
		return titanerr.Wrap(titanerr.StoreUnavailable, result.Error)
	}
	if result.RowsAffected == 0 {
		return titanerr.Newf(titanerr.NotFound, "%s %q not found", kind, id)
	}
	return nil
}

// Delete removes a descriptor row and reports whether it existed.
func (d *DescriptorStore) Delete(ctx context.Context, kind, id string) (bool, error) {
	result := d.db.WithContext(ctx).Where("kind = ? AND id = ?", kind, id).Delete(&descriptorRow{})
	if result.Error != nil {
		return false, titanerr.Wrap(titanerr.StoreUnavailable, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// List returns descriptor rows of a kind, offset-paginated (registry
// listings are small enough that keyset pagination is unnecessary here).
func (d *DescriptorStore) List(ctx context.Context, kind string, limit, offset int) ([]descriptorRow, error) {
	var rows []descriptorRow
	result := d.db.WithContext(ctx).
		Where("kind = ?", kind).
		Order("id_short ASC").
		Limit(limit).Offset(offset).
		Find(&rows)
	if result.Error != nil {
		return nil, titanerr.Wrap(titanerr.StoreUnavailable, result.Error)
	}
	return rows, nil
}
