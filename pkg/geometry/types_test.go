package geometry

import (
	"image"
	"testing"
)

func TestRectToPixels(t *testing.T) {
	tests := []struct {
		name   string
		rect   Rect
		w, h   int
		want   RectInt
		wantOK bool
	}{
		{"full", NewRect(0, 0, 1, 1), 400, 200, RectInt{0, 0, 400, 200}, true},
		{"quadrant", NewRect(0.5, 0.5, 0.5, 0.5), 400, 200, RectInt{200, 100, 200, 100}, true},
		{"clamped right", NewRect(0.75, 0, 0.5, 1), 400, 200, RectInt{300, 0, 100, 200}, true},
		{"negative origin", NewRect(-0.1, 0, 0.2, 1), 100, 100, RectInt{0, 0, 10, 100}, true},
		{"zero width", NewRect(0.5, 0, 0.001, 1), 100, 100, RectInt{50, 0, 0, 100}, false},
		{"outside", NewRect(1.2, 0, 0.5, 1), 100, 100, RectInt{100, 0, 0, 100}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.rect.ToPixels(tt.w, tt.h)
			if ok != tt.wantOK {
				t.Errorf("ok = %v, want %v", ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestRectIntImageRect(t *testing.T) {
	r := RectInt{X: 10, Y: 20, Width: 30, Height: 40}
	got := r.ImageRect(image.Pt(5, 5))
	want := image.Rect(15, 25, 45, 65)
	if got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestClamp(t *testing.T) {
	if got := Clamp(-1, 0, 1); got != 0 {
		t.Errorf("Clamp(-1) = %v", got)
	}
	if got := Clamp(2, 0, 1); got != 1 {
		t.Errorf("Clamp(2) = %v", got)
	}
	if got := Clamp(0.3, 0, 1); got != 0.3 {
		t.Errorf("Clamp(0.3) = %v", got)
	}
}
