package pagination

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   Params
		want Params
	}{
		{name: "defaults", in: Params{}, want: Params{Page: 1, PerPage: DefaultPerPage}},
		{name: "negative page", in: Params{Page: -3, PerPage: 10}, want: Params{Page: 1, PerPage: 10}},
		{name: "capped per page", in: Params{Page: 2, PerPage: 5000}, want: Params{Page: 2, PerPage: MaxPerPage}},
		{name: "valid untouched", in: Params{Page: 4, PerPage: 30}, want: Params{Page: 4, PerPage: 30}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Normalize(tc.in)
			if got != tc.want {
				t.Fatalf("expected %+v, got %+v", tc.want, got)
			}
		})
	}
}

func TestOffset(t *testing.T) {
	p := Normalize(Params{Page: 3, PerPage: 30})
	if p.Offset() != 60 {
		t.Fatalf("expected offset 60, got %d", p.Offset())
	}
	if Normalize(Params{}).Offset() != 0 {
		t.Fatal("first page should start at offset 0")
	}
}

func TestNewMeta(t *testing.T) {
	p := Normalize(Params{Page: 2, PerPage: 30})

	meta := NewMeta(p, 61)
	if meta.Pages != 3 {
		t.Fatalf("expected 3 pages for 61 rows, got %d", meta.Pages)
	}
	if meta.Total != 61 || meta.Page != 2 || meta.PerPage != 30 {
		t.Fatalf("unexpected meta %+v", meta)
	}

	empty := NewMeta(p, 0)
	if empty.Pages != 1 {
		t.Fatalf("an empty result still has one page, got %d", empty.Pages)
	}
}
