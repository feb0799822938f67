//go:build tesseract

package scanner

import (
	"context"
	"strings"
	"time"

	"github.com/otiai10/gosseract/v2"
)

const plateWhitelist = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789 "

// TesseractSource runs OCR over still images and yields one frame per image,
// with every recognized text line as a separate reading.
type TesseractSource struct {
	images <-chan []byte
}

func NewTesseractSource(images <-chan []byte) *TesseractSource {
	return &TesseractSource{images: images}
}

func (s *TesseractSource) Frames(ctx context.Context) <-chan Frame {
	out := make(chan Frame)

	go func() {
		defer close(out)

		client := gosseract.NewClient()
		defer client.Close()
		_ = client.SetWhitelist(plateWhitelist)
		_ = client.SetPageSegMode(gosseract.PSM_SPARSE_TEXT)

		for {
			select {
			case <-ctx.Done():
				return
			case img, ok := <-s.images:
				if !ok {
					return
				}
				f := recognize(client, img)
				select {
				case out <- f:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}

func recognize(client *gosseract.Client, img []byte) Frame {
	f := Frame{At: time.Now()}
	if err := client.SetImageFromBytes(img); err != nil {
		f.Err = err
		return f
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		f.Err = err
		return f
	}
	for _, b := range boxes {
		if line := strings.TrimSpace(b.Word); line != "" {
			f.RawOCRStrings = append(f.RawOCRStrings, line)
		}
	}
	return f
}
