// Package imaging normalizes item photos that are uploaded inline as data
// URIs. Plain image URLs are left alone.
package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/image/draw"
)

// MaxDimension is the maximum width or height of a stored item photo.
const MaxDimension = 1200

// JPEGQuality is the compression quality for JPEG output.
const JPEGQuality = 82

// MaxInlineBytes caps the decoded size of an inline photo.
const MaxInlineBytes = 8 << 20

// AllowedMIME lists the accepted input MIME types.
var AllowedMIME = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// ErrUnsupported is returned for image references that are neither an
// http(s) URL nor a JPEG/PNG data URI.
var ErrUnsupported = errors.New("unsupported image")

// Process validates image bytes by sniffing them, downscales anything larger
// than MaxDimension and re-encodes the result as JPEG.
func Process(data []byte) ([]byte, error) {
	detected := http.DetectContentType(data)
	if !AllowedMIME[detected] {
		return nil, fmt.Errorf("%w: %s (only JPEG and PNG accepted)", ErrUnsupported, detected)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	img = downscale(img, MaxDimension)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encoding JPEG: %w", err)
	}
	return buf.Bytes(), nil
}

// Normalize returns the form of an item image reference that gets stored.
// Empty references and http(s) URLs pass through unchanged. Base64 data URIs
// are decoded, processed and re-encoded as a JPEG data URI.
func Normalize(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", nil
	}

	if !strings.HasPrefix(ref, "data:") {
		u, err := url.Parse(ref)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return "", fmt.Errorf("%w: expected an http(s) URL or data URI", ErrUnsupported)
		}
		return ref, nil
	}

	meta, payload, ok := strings.Cut(strings.TrimPrefix(ref, "data:"), ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return "", fmt.Errorf("%w: data URI must be base64 encoded", ErrUnsupported)
	}
	if base64.StdEncoding.DecodedLen(len(payload)) > MaxInlineBytes {
		return "", fmt.Errorf("%w: image larger than %d bytes", ErrUnsupported, MaxInlineBytes)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", fmt.Errorf("%w: invalid base64 payload", ErrUnsupported)
	}

	out, err := Process(data)
	if err != nil {
		return "", err
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(out), nil
}

// downscale resizes the image so neither dimension exceeds maxDim.
// Uses Catmull-Rom interpolation; images already within bounds are returned
// as is.
func downscale(img image.Image, maxDim int) image.Image {
	bounds := img.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()

	if w <= maxDim && h <= maxDim {
		return img
	}

	newW, newH := w, h
	if w > h {
		newW = maxDim
		newH = int(float64(h) * float64(maxDim) / float64(w))
	} else {
		newH = maxDim
		newW = int(float64(w) * float64(maxDim) / float64(h))
	}
	newW = max(newW, 1)
	newH = max(newH, 1)

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

func init() {
	image.RegisterFormat("jpeg", "\xff\xd8", jpeg.Decode, jpeg.DecodeConfig)
	image.RegisterFormat("png", "\x89PNG", png.Decode, png.DecodeConfig)
}
