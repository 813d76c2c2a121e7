package faceengine

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"testing"

	"github.com/Kagami/go-face"
)

func TestEuclideanDistance(t *testing.T) {
	var a, b face.Descriptor
	if got := euclideanDistance(a, b); got != 0 {
		t.Fatalf("distance between identical descriptors = %v, want 0", got)
	}

	a[0] = 3
	b[0] = 0
	a[1] = 0
	b[1] = 4
	if got := euclideanDistance(a, b); math.Abs(got-5) > 1e-9 {
		t.Fatalf("distance = %v, want 5", got)
	}
}

func TestToJPEGPassesThroughJPEG(t *testing.T) {
	src := encodeTestImage(t, "jpeg")
	out, err := toJPEG(src)
	if err != nil {
		t.Fatalf("toJPEG: %v", err)
	}
	if !bytes.Equal(out, src) {
		t.Fatal("jpeg input should be returned unchanged")
	}
}

func TestToJPEGTranscodesPNG(t *testing.T) {
	src := encodeTestImage(t, "png")
	out, err := toJPEG(src)
	if err != nil {
		t.Fatalf("toJPEG: %v", err)
	}
	if _, err := jpeg.Decode(bytes.NewReader(out)); err != nil {
		t.Fatalf("output is not valid jpeg: %v", err)
	}
}

func TestToJPEGRejectsCorruptPNG(t *testing.T) {
	corrupt := append([]byte{}, pngMagic...)
	corrupt = append(corrupt, []byte("not a real png")...)
	if _, err := toJPEG(corrupt); err == nil {
		t.Fatal("expected error for corrupt png data")
	}
}

func encodeTestImage(t *testing.T, format string) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 30), G: uint8(y * 30), B: 128, A: 255})
		}
	}

	var buf bytes.Buffer
	var err error
	switch format {
	case "png":
		err = png.Encode(&buf, img)
	default:
		err = jpeg.Encode(&buf, img, nil)
	}
	if err != nil {
		t.Fatalf("encode %s: %v", format, err)
	}
	return buf.Bytes()
}
