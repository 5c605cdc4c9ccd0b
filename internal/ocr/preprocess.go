package ocr

import (
	"image"
	"image/color"
)

// preprocess applies the configured scale factor and optional contrast
// stretch. Denoise and adaptive binarization are off by default for speed
// and are applied only when enabled.
func (e *Engine) preprocess(img image.Image) image.Image {
	out := img
	if e.cfg.ScaleFactor > 0 && e.cfg.ScaleFactor != 1.0 {
		out = scaleImage(out, e.cfg.ScaleFactor)
	}
	if e.cfg.ContrastEnhancement {
		out = stretchContrast(out)
	}
	if e.cfg.Denoise {
		out = boxBlur(out)
	}
	if e.cfg.AdaptiveBinarize {
		out = binarize(out)
	}
	return out
}

// scaleImage resamples with nearest-neighbor, which is adequate for
// screen captures (hard edges, no photographic gradients).
func scaleImage(img image.Image, factor float64) image.Image {
	bounds := img.Bounds()
	w := int(float64(bounds.Dx()) * factor)
	h := int(float64(bounds.Dy()) * factor)
	if w < 1 || h < 1 {
		return img
	}
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		srcY := bounds.Min.Y + int(float64(y)/factor)
		for x := 0; x < w; x++ {
			srcX := bounds.Min.X + int(float64(x)/factor)
			out.Set(x, y, img.At(srcX, srcY))
		}
	}
	return out
}

// stretchContrast maps the observed luma range onto [0,255].
func stretchContrast(img image.Image) image.Image {
	bounds := img.Bounds()
	minL, maxL := 255, 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			l := luma(img.At(x, y))
			if l < minL {
				minL = l
			}
			if l > maxL {
				maxL = l
			}
		}
	}
	if maxL <= minL {
		return img
	}
	scale := 255.0 / float64(maxL-minL)
	out := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			l := float64(luma(img.At(x, y))-minL) * scale
			out.SetGray(x, y, color.Gray{Y: uint8(clampInt(int(l), 0, 255))})
		}
	}
	return out
}

// boxBlur applies a single 3x3 mean filter pass.
func boxBlur(img image.Image) image.Image {
	bounds := img.Bounds()
	out := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			sum, n := 0, 0
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					px, py := x+dx, y+dy
					if px < bounds.Min.X || py < bounds.Min.Y || px >= bounds.Max.X || py >= bounds.Max.Y {
						continue
					}
					sum += luma(img.At(px, py))
					n++
				}
			}
			out.SetGray(x, y, color.Gray{Y: uint8(sum / n)})
		}
	}
	return out
}

// binarize thresholds at the global mean luma.
func binarize(img image.Image) image.Image {
	bounds := img.Bounds()
	sum, n := 0, 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			sum += luma(img.At(x, y))
			n++
		}
	}
	if n == 0 {
		return img
	}
	mean := sum / n
	out := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			v := uint8(0)
			if luma(img.At(x, y)) > mean {
				v = 255
			}
			out.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return out
}

func luma(c color.Color) int {
	r, g, b, _ := c.RGBA()
	return int((299*(r>>8) + 587*(g>>8) + 114*(b>>8)) / 1000)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
