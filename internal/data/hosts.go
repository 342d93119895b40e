package data

import (
	"context"
	"database/sql"

	lru "github.com/hashicorp/golang-lru/v2"
)

// HostModel maps a raw interface address to its display hostname via the
// ipinterface table. Resolution is best-effort: on any failure or no match
// the raw address is returned unchanged, never an error.
type HostModel struct {
	DB    DBTX
	cache *lru.Cache[string, string]
}

func NewHostModel(db DBTX, cacheSize int) *HostModel {
	if cacheSize <= 0 {
		cacheSize = defaultResolverCacheSize
	}
	c, _ := lru.New[string, string](cacheSize)
	return &HostModel{DB: db, cache: c}
}

// Hostname resolves an address to a hostname, falling back to the address.
func (m *HostModel) Hostname(ctx context.Context, addr string) string {
	if addr == "" {
		return addr
	}
	if name, hit := m.cache.Get(addr); hit {
		return name
	}

	var name sql.NullString
	err := m.DB.QueryRowContext(ctx,
		`SELECT iphostname FROM ipinterface WHERE ipaddr = $1`, addr).Scan(&name)
	if err != nil || !name.Valid || name.String == "" {
		return addr
	}

	m.cache.Add(addr, name.String)
	return name.String
}
