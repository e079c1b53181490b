package zones

import (
	"fmt"
	"testing"

	"github.com/lib/pq"

	"github.com/openmaraude/apitaxi/pkg/db/models"
)

func squareShape(minLon, minLat, maxLon, maxLat float64) models.GeoJSON {
	raw := fmt.Sprintf(
		`{"type":"Polygon","coordinates":[[[%[1]g,%[2]g],[%[3]g,%[2]g],[%[3]g,%[4]g],[%[1]g,%[4]g],[%[1]g,%[2]g]]]}`,
		minLon, minLat, maxLon, maxLat)
	return models.GeoJSON([]byte(raw))
}

func testTowns() []models.Town {
	return []models.Town{
		{InseeCode: "75056", Name: "Paris", Shape: squareShape(2.2, 48.8, 2.4, 48.9)},
		{InseeCode: "94018", Name: "Charenton-le-Pont", Shape: squareShape(2.4, 48.8, 2.5, 48.9)},
		{InseeCode: "13055", Name: "Marseille", Shape: squareShape(5.3, 43.2, 5.5, 43.4)},
	}
}

func testZUPCs() []models.ZUPC {
	return []models.ZUPC{
		{ZUPCID: "zupc-paris", Nom: "Agglomeration parisienne", AllowedInsee: pq.StringArray{"75056", "94018"}},
	}
}

func TestIndexTownsAt(t *testing.T) {
	idx := NewIndex()
	if err := idx.Rebuild(testTowns(), testZUPCs()); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	found := idx.TownsAt(2.35, 48.85)
	if len(found) != 1 || found[0] != "75056" {
		t.Fatalf("expected [75056], got %v", found)
	}

	if got := idx.TownsAt(0.0, 45.0); len(got) != 0 {
		t.Fatalf("expected no town in the middle of nowhere, got %v", got)
	}
}

func TestIndexAllowedInseeIncludesUnion(t *testing.T) {
	idx := NewIndex()
	if err := idx.Rebuild(testTowns(), testZUPCs()); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	allowed := idx.AllowedInsee(2.35, 48.85)
	for _, insee := range []string{"75056", "94018"} {
		if _, ok := allowed[insee]; !ok {
			t.Fatalf("expected %s in allowed set %v", insee, allowed)
		}
	}
	if _, ok := allowed["13055"]; ok {
		t.Fatal("Marseille must not be allowed in Paris")
	}
}

func TestIndexAuthorized(t *testing.T) {
	idx := NewIndex()
	if err := idx.Rebuild(testTowns(), testZUPCs()); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	// A Charenton ADS may pick up in Paris through the shared zone.
	if !idx.Authorized("94018", 2.35, 48.85) {
		t.Fatal("expected Charenton taxi to be authorized in Paris")
	}
	if !idx.Authorized("75056", 2.45, 48.85) {
		t.Fatal("expected Paris taxi to be authorized in Charenton")
	}
	// Marseille has no shared zone: only its own ADS holders.
	if idx.Authorized("75056", 5.4, 43.3) {
		t.Fatal("Paris taxi must not be authorized in Marseille")
	}
	if !idx.Authorized("13055", 5.4, 43.3) {
		t.Fatal("expected Marseille taxi to be authorized at home")
	}
}

func TestIndexRebuildRejectsBadShape(t *testing.T) {
	idx := NewIndex()
	bad := []models.Town{{InseeCode: "75056", Name: "Paris", Shape: models.GeoJSON([]byte(`{"type":"Point","coordinates":[2.3,48.8]}`))}}
	if err := idx.Rebuild(bad, nil); err == nil {
		t.Fatal("expected error for non-polygon shape")
	}
	if idx.Len() != 0 {
		t.Fatalf("failed rebuild must not leave towns behind, got %d", idx.Len())
	}
}
