package metrics

import (
	"log/slog"

	"github.com/abdul-hamid-achik/safekey/internal/store"
)

// CollectStore updates gauges from the local index.
func (m *Metrics) CollectStore(s store.Store) {
	if m == nil || s == nil {
		return
	}

	if count, err := s.CountWallets(); err == nil {
		m.WalletsTotal.Set(float64(count))
	} else {
		slog.Debug("failed to count wallets for metrics", "error", err)
	}
}
