package types

import (
	"encoding/json"
	"testing"
)

func TestRawDataset_HasTotal(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		expected bool
	}{
		{"numeric total", `{"total": 220}`, true},
		{"zero total", `{"total": 0}`, false},
		{"true total", `{"total": true}`, true},
		{"false total", `{"total": false}`, false},
		{"null total", `{"total": null}`, false},
		{"missing total", `{"canon": []}`, false},
		{"empty string total", `{"total": ""}`, false},
		{"object total", `{"total": {}}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d RawDataset
			if err := json.Unmarshal([]byte(tt.payload), &d); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if got := d.HasTotal(); got != tt.expected {
				t.Errorf("HasTotal() = %v, want %v", got, tt.expected)
			}
		})
	}

	var nilData *RawDataset
	if nilData.HasTotal() {
		t.Error("nil dataset should not report a total")
	}
}

func TestParseClassification(t *testing.T) {
	tests := []struct {
		in       string
		expected Classification
	}{
		{"canon", ClassCanon},
		{"filler", ClassFiller},
		{"mixed", ClassMixed},
		{"unknown", ClassUnknown},
		{"recap", ClassUnknown},
		{"", ClassUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseClassification(tt.in); got != tt.expected {
				t.Errorf("ParseClassification(%q) = %q, want %q", tt.in, got, tt.expected)
			}
		})
	}
}

func TestAnimePage_Pages(t *testing.T) {
	tests := []struct {
		total, limit, expected int
	}{
		{0, 50, 0},
		{1, 50, 1},
		{50, 50, 1},
		{51, 50, 2},
		{10, 0, 0},
	}

	for _, tt := range tests {
		p := AnimePage{Total: tt.total, Limit: tt.limit}
		if got := p.Pages(); got != tt.expected {
			t.Errorf("Pages() with total=%d limit=%d = %d, want %d", tt.total, tt.limit, got, tt.expected)
		}
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		err      error
		expected string
	}{
		{ErrAnimeNotFound{Key: "naruto"}, "anime not found: naruto"},
		{ErrEpisodeNotFound{AnimeID: "a1", Number: 3}, "episode not found: a1 #3"},
		{ErrEpisodeNotFound{ID: "e1"}, "episode not found: e1"},
		{ErrInvalidTitle{Title: "!!"}, `invalid title: "!!"`},
		{ErrSourceNotFound{Name: "x"}, "no dataset source registered: x"},
		{ErrConfigInvalid{Reason: "bad"}, "invalid config: bad"},
		{ErrAPIError{Service: "Dataset", StatusCode: 500, Message: "boom"}, "Dataset API error (500): boom"},
	}

	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.expected {
			t.Errorf("Error() = %q, want %q", got, tt.expected)
		}
	}
}
