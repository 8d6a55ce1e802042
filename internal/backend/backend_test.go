package backend

import (
	"testing"
)

func TestCapacityFreeBytes(t *testing.T) {
	tests := []struct {
		name string
		cap  Capacity
		want int64
	}{
		{"normal", Capacity{TotalBytes: 100, UsedBytes: 40}, 60},
		{"full", Capacity{TotalBytes: 100, UsedBytes: 100}, 0},
		{"overfull clamps to zero", Capacity{TotalBytes: 100, UsedBytes: 120}, 0},
		{"empty", Capacity{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cap.FreeBytes(); got != tt.want {
				t.Errorf("FreeBytes() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestFilterMatches(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		input  string
		want   bool
	}{
		{"empty matches all", Filter{}, "anything", true},
		{"exact name match", Filter{Name: "a.txt"}, "a.txt", true},
		{"exact name mismatch", Filter{Name: "a.txt"}, "a.txt_part1", false},
		{"contains match", Filter{Contains: "a.txt_part"}, "a.txt_part11", true},
		{"contains mismatch", Filter{Contains: "a.txt_part"}, "b.txt_part1", false},
		{"contains is case sensitive", Filter{Contains: "Report"}, "report.pdf", false},
		{"name takes precedence", Filter{Name: "a", Contains: "b"}, "b", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Matches(tt.input); got != tt.want {
				t.Errorf("Matches(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestRegistryListSorted(t *testing.T) {
	r := NewRegistry()
	r.Register("zulu", nil)
	r.Register("alpha", nil)
	r.Register("mike", nil)

	ids := r.List()
	want := []string{"alpha", "mike", "zulu"}
	if len(ids) != len(want) {
		t.Fatalf("List() = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("List() = %v, want %v", ids, want)
		}
	}
}

func TestRegistryGetUnknown(t *testing.T) {
	r := NewRegistry()
	if _, ok := r.Get("nope"); ok {
		t.Fatal("Get(nope) ok = true, want false")
	}
}
