package util

import (
	"bytes"
	"image"
	"image/png"
	"testing"
)

func TestTrimQuotes(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty string", "", ""},
		{"no quotes", "mumbai", "mumbai"},
		{"double quoted", `"mumbai"`, "mumbai"},
		{"single quotes only", "'mumbai'", "'mumbai'"},
		{"quotes in middle", `mum"bai`, `mum"bai`},
		{"only quotes", `""`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := TrimQuotes(tt.input)
			if result != tt.expected {
				t.Errorf("TrimQuotes(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestImageMIME(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 1, 1))); err != nil {
		t.Fatal(err)
	}

	if got := ImageMIME(buf.Bytes()); got != "image/png" {
		t.Errorf("ImageMIME(png) = %q, want image/png", got)
	}
	if got := ImageMIME([]byte("not an image")); got != "image/jpeg" {
		t.Errorf("ImageMIME(text) = %q, want image/jpeg", got)
	}
}

func TestDataURL(t *testing.T) {
	tests := []struct {
		name     string
		mime     string
		data     []byte
		expected string
	}{
		{"empty data", "image/jpeg", nil, ""},
		{"explicit mime", "image/jpeg", []byte("abc"), "data:image/jpeg;base64,YWJj"},
		{"sniffed mime", "", []byte("abc"), "data:image/jpeg;base64,YWJj"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := DataURL(tt.mime, tt.data)
			if result != tt.expected {
				t.Errorf("DataURL(%q, %q) = %q, want %q", tt.mime, tt.data, result, tt.expected)
			}
		})
	}
}
