package zones

import (
	"fmt"
	"sync"

	"github.com/paulmach/orb"
	"github.com/tidwall/rtree"

	"github.com/openmaraude/apitaxi/pkg/db/models"
)

// town is one indexed commune with its decoded boundary.
type town struct {
	insee string
	name  string
	shape orb.MultiPolygon
}

// Index resolves a position to the set of INSEE codes whose taxis may
// pick up there. Towns are indexed by bounding box in an R-tree; exact
// point-in-polygon tests run only on the bounding box candidates. ZUPC
// unions widen the answer: when the point falls inside a member town,
// every INSEE code of the union is allowed.
type Index struct {
	mtx   sync.RWMutex
	tree  rtree.RTreeG[*town]
	towns map[string]*town
	// insee -> union of all allowed sets of the ZUPCs it belongs to
	unions map[string][]string
}

// NewIndex builds an empty index. Call Rebuild before resolving.
func NewIndex() *Index {
	return &Index{
		towns:  make(map[string]*town),
		unions: make(map[string][]string),
	}
}

// Rebuild replaces the index content from registry rows. Rows with an
// unparseable shape abort the rebuild so a bad import never leaves a
// half-empty index serving traffic.
func (idx *Index) Rebuild(towns []models.Town, zupcs []models.ZUPC) error {
	var tree rtree.RTreeG[*town]
	byInsee := make(map[string]*town, len(towns))

	for _, row := range towns {
		decoded, err := decodeShape(row.Shape)
		if err != nil {
			return fmt.Errorf("town %s: %w", row.InseeCode, err)
		}
		t := &town{insee: row.InseeCode, name: row.Name, shape: decoded}
		min, max := shapeBound(decoded)
		tree.Insert(min, max, t)
		byInsee[row.InseeCode] = t
	}

	unions := make(map[string][]string)
	for _, zupc := range zupcs {
		for _, insee := range zupc.AllowedInsee {
			unions[insee] = append(unions[insee], zupc.AllowedInsee...)
		}
	}

	idx.mtx.Lock()
	idx.tree = tree
	idx.towns = byInsee
	idx.unions = unions
	idx.mtx.Unlock()
	return nil
}

// Len returns the number of indexed towns.
func (idx *Index) Len() int {
	idx.mtx.RLock()
	defer idx.mtx.RUnlock()
	return len(idx.towns)
}

// TownsAt returns the INSEE codes of the towns containing the point.
func (idx *Index) TownsAt(lon, lat float64) []string {
	idx.mtx.RLock()
	defer idx.mtx.RUnlock()
	return idx.townsAtLocked(lon, lat)
}

func (idx *Index) townsAtLocked(lon, lat float64) []string {
	var found []string
	point := [2]float64{lon, lat}
	idx.tree.Search(point, point, func(_, _ [2]float64, t *town) bool {
		if shapeContains(t.shape, lon, lat) {
			found = append(found, t.insee)
		}
		return true
	})
	return found
}

// AllowedInsee returns every INSEE code whose ADS holders may pick up at
// the point: the containing towns plus the full allowed set of any ZUPC
// one of them belongs to.
func (idx *Index) AllowedInsee(lon, lat float64) map[string]struct{} {
	idx.mtx.RLock()
	defer idx.mtx.RUnlock()

	allowed := make(map[string]struct{})
	for _, insee := range idx.townsAtLocked(lon, lat) {
		allowed[insee] = struct{}{}
		for _, member := range idx.unions[insee] {
			allowed[member] = struct{}{}
		}
	}
	return allowed
}

// Authorized reports whether a taxi whose ADS is registered under
// adsInsee may pick up at the point.
func (idx *Index) Authorized(adsInsee string, lon, lat float64) bool {
	allowed := idx.AllowedInsee(lon, lat)
	_, ok := allowed[adsInsee]
	return ok
}
