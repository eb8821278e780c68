package hazard

import (
	"sync/atomic"
	"time"

	h3 "github.com/uber/h3-go/v4"

	"github.com/embernav/embernav/geo"
)

// Snapshot is an immutable, versioned view of the current hazard
// zones. Route requests take a handle at request start and use it
// throughout; the scorer never mutates a published snapshot.
type Snapshot struct {
	Version   uint64
	CreatedAt time.Time
	Zones     []*Zone

	byCell map[h3.Cell]*Zone
}

// ZoneAt returns the zone covering the cell, if any.
func (s *Snapshot) ZoneAt(cell h3.Cell) (*Zone, bool) {
	z, ok := s.byCell[cell]
	return z, ok
}

// ZonesNear returns the distinct zones with any cell within radiusM
// of the point.
func (s *Snapshot) ZonesNear(lat, lon, radiusM float64, resolution int) []*Zone {
	seen := make(map[string]bool)
	out := make([]*Zone, 0)
	for _, cell := range geo.CellsWithinRadius(lat, lon, radiusM, resolution) {
		if z, ok := s.byCell[cell]; ok && !seen[z.ID] {
			seen[z.ID] = true
			out = append(out, z)
		}
	}
	return out
}

// Age is the time since the snapshot was published.
func (s *Snapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.CreatedAt)
}

// SnapshotStore publishes snapshots with an atomic pointer swap. The
// swap is the sole synchronization point between the scorer and the
// router: in-flight readers keep their (possibly stale) handle.
type SnapshotStore struct {
	cur     atomic.Pointer[Snapshot]
	version atomic.Uint64
	// Freshness is the age beyond which responses carry a stale-data
	// warning. Staleness is a flag, never a failure.
	Freshness time.Duration
}

func NewSnapshotStore(freshness time.Duration) *SnapshotStore {
	return &SnapshotStore{Freshness: freshness}
}

// Publish installs the zone set as the next snapshot version and
// returns it.
func (st *SnapshotStore) Publish(zones []*Zone, now time.Time) *Snapshot {
	byCell := make(map[h3.Cell]*Zone)
	for _, z := range zones {
		for _, c := range z.Cells {
			byCell[c] = z
		}
	}
	snap := &Snapshot{
		Version:   st.version.Add(1),
		CreatedAt: now,
		Zones:     zones,
		byCell:    byCell,
	}
	st.cur.Store(snap)
	return snap
}

// Current returns the latest published snapshot, nil before the first
// publish.
func (st *SnapshotStore) Current() *Snapshot {
	return st.cur.Load()
}

// Stale reports whether the current snapshot is older than the
// freshness threshold.
func (st *SnapshotStore) Stale(now time.Time) bool {
	snap := st.cur.Load()
	if snap == nil {
		return true
	}
	return st.Freshness > 0 && snap.Age(now) > st.Freshness
}
