package zones

import (
	"fmt"
	"sync"

	"github.com/paulmach/orb"
	"github.com/tidwall/rtree"

	"github.com/openmaraude/apitaxi/pkg/db/models"
)

type exclusion struct {
	name  string
	shape orb.MultiPolygon
}

// ExclusionIndex answers whether street hailing is forbidden at a
// position (airport terminals, station concourses).
type ExclusionIndex struct {
	mtx  sync.RWMutex
	tree rtree.RTreeG[*exclusion]
	size int
}

// NewExclusionIndex builds an empty exclusion index.
func NewExclusionIndex() *ExclusionIndex {
	return &ExclusionIndex{}
}

// Rebuild replaces the index content from registry rows.
func (idx *ExclusionIndex) Rebuild(rows []models.Exclusion) error {
	var tree rtree.RTreeG[*exclusion]
	for _, row := range rows {
		decoded, err := decodeShape(row.Shape)
		if err != nil {
			return fmt.Errorf("exclusion %s: %w", row.Name, err)
		}
		e := &exclusion{name: row.Name, shape: decoded}
		min, max := shapeBound(decoded)
		tree.Insert(min, max, e)
	}

	idx.mtx.Lock()
	idx.tree = tree
	idx.size = len(rows)
	idx.mtx.Unlock()
	return nil
}

// Len returns the number of indexed exclusion areas.
func (idx *ExclusionIndex) Len() int {
	idx.mtx.RLock()
	defer idx.mtx.RUnlock()
	return idx.size
}

// Excluded reports whether the point falls inside an exclusion area.
// The (0,0) position is never excluded: GPS devices without a fix report
// it, and rejecting those hails would mask the real problem.
func (idx *ExclusionIndex) Excluded(lon, lat float64) bool {
	if lon == 0 && lat == 0 {
		return false
	}

	idx.mtx.RLock()
	defer idx.mtx.RUnlock()

	excluded := false
	point := [2]float64{lon, lat}
	idx.tree.Search(point, point, func(_, _ [2]float64, e *exclusion) bool {
		if shapeContains(e.shape, lon, lat) {
			excluded = true
			return false
		}
		return true
	})
	return excluded
}
