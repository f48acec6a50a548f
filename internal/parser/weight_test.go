package parser

import (
	"errors"
	"testing"
)

func TestParseGrams(t *testing.T) {
	tests := []struct {
		input string
		grams int
		err   error
	}{
		{"450", 450, nil},
		{"450г", 450, nil},
		{"450 гр", 450, nil},
		{"450 гр.", 450, nil},
		{"450 граммов", 450, nil},
		{"450g", 450, nil},
		{"1.2кг", 1200, nil},
		{"1,2 кг", 1200, nil},
		{"1.2kg", 1200, nil},
		{"1.2 KG", 1200, nil},
		{"0.0755кг", 76, nil},
		{"0", 0, nil},
		{" 1 800 ", 1800, nil},
		{"", 0, ErrEmptyWeight},
		{"   ", 0, ErrEmptyWeight},
		{"abc", 0, ErrInvalidWeight},
		{"450 фунтов", 0, ErrInvalidWeight},
		{"1.2.3кг", 0, ErrInvalidWeight},
		{"-450", 0, ErrInvalidWeight},
		{"150кг", 0, ErrWeightTooHigh},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseGrams(tt.input)
			if !errors.Is(err, tt.err) {
				t.Fatalf("ParseGrams(%q): err %v, want %v", tt.input, err, tt.err)
			}
			if err == nil && got != tt.grams {
				t.Errorf("ParseGrams(%q): got %d, want %d", tt.input, got, tt.grams)
			}
		})
	}
}
