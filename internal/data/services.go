package data

import (
	"context"
	"database/sql"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultResolverCacheSize = 256

// ServiceModel maps service names to their numeric identifiers. Lookups hit
// an in-process LRU first and fall back to the service directory table.
// An unknown name is reported as a miss, not an error; the caller stores
// NULL instead of failing the event.
type ServiceModel struct {
	DB    DBTX
	cache *lru.Cache[string, int64]
}

func NewServiceModel(db DBTX, cacheSize int) *ServiceModel {
	if cacheSize <= 0 {
		cacheSize = defaultResolverCacheSize
	}
	c, _ := lru.New[string, int64](cacheSize)
	return &ServiceModel{DB: db, cache: c}
}

// ServiceID resolves a service name. ok is false when the name is unknown.
func (m *ServiceModel) ServiceID(ctx context.Context, name string) (int64, bool, error) {
	if name == "" {
		return 0, false, nil
	}
	if id, hit := m.cache.Get(name); hit {
		return id, true, nil
	}

	var id int64
	err := m.DB.QueryRowContext(ctx,
		`SELECT serviceid FROM service WHERE servicename = $1`, name).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	m.cache.Add(name, id)
	return id, true, nil
}
