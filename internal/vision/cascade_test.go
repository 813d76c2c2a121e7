package vision

import (
	"image"
	"testing"
)

func TestLargestRect(t *testing.T) {
	rects := []image.Rectangle{
		image.Rect(0, 0, 10, 10),
		image.Rect(5, 5, 105, 85),
		image.Rect(0, 0, 50, 50),
	}
	got := largestRect(rects)
	if got != rects[1] {
		t.Fatalf("largestRect = %v, want %v", got, rects[1])
	}
}

func TestPadRectClampsToImageBounds(t *testing.T) {
	tests := []struct {
		name          string
		rect          image.Rectangle
		width, height int
		want          image.Rectangle
	}{
		{
			name:  "interior box grows on all sides",
			rect:  image.Rect(100, 100, 200, 200),
			width: 640, height: 480,
			want: image.Rect(80, 80, 220, 220),
		},
		{
			name:  "box at origin clamps to zero",
			rect:  image.Rect(0, 0, 100, 100),
			width: 640, height: 480,
			want: image.Rect(0, 0, 120, 120),
		},
		{
			name:  "box at far edge clamps to image size",
			rect:  image.Rect(540, 380, 640, 480),
			width: 640, height: 480,
			want: image.Rect(520, 360, 640, 480),
		},
		{
			name:  "box covering whole image stays put",
			rect:  image.Rect(0, 0, 640, 480),
			width: 640, height: 480,
			want: image.Rect(0, 0, 640, 480),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := padRect(tt.rect, tt.width, tt.height, 0.2)
			if got != tt.want {
				t.Fatalf("padRect = %v, want %v", got, tt.want)
			}
		})
	}
}
