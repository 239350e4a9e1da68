// Package imageproc applies ordered transform steps to an image and encodes the result as PNG.
package imageproc

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/disintegration/imaging"
	"github.com/imagemill/imagemill/internal/model"
)

const defaultSharpenSigma = 1.0

// Apply decodes the input, runs every step strictly in order and encodes the
// result as PNG regardless of the input format. Resize fits the image to the
// exact requested dimensions without preserving aspect ratio; blur/sharpen
// sigmas are handed to the library as-is.
func Apply(r io.Reader, steps []model.Step) (io.Reader, int64, error) {
	if r == nil {
		return nil, 0, errors.New("nil-reader provided to Apply")
	}

	img, err := imaging.Decode(r)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to decode input image: %w", err)
	}

	for _, step := range steps {
		switch step.Op {
		case model.OpResize:
			img = imaging.Resize(img, step.Width, step.Height, imaging.Lanczos)
		case model.OpBlur:
			img = imaging.Blur(img, *step.Sigma)
		case model.OpSharpen:
			sigma := defaultSharpenSigma
			if step.Sigma != nil {
				sigma = *step.Sigma
			}
			img = imaging.Sharpen(img, sigma)
		default:
			// request validation rejects unknown kinds, but queue payloads
			// don't pass through it
			return nil, 0, model.ErrIncorrectOp
		}
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, 0, fmt.Errorf("failed to encode result as PNG: %w", err)
	}
	return &buf, int64(buf.Len()), nil
}
