package stereo

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"sync"

	"github.com/disintegration/imaging"

	"github.com/teslashibe/go-wayfinder/pkg/frame"
)

// Matcher errors.
var (
	ErrEmptyFrame   = errors.New("stereo: empty frame")
	ErrSizeMismatch = errors.New("stereo: left and right frames differ in size")
)

// MatcherConfig tunes the block matcher.
type MatcherConfig struct {
	NumDisparities   int     // search range in (scaled) pixels
	BlockSize        int     // odd SAD window side
	Scale            float64 // downscale applied before matching, (0, 1]
	TextureThreshold float64 // mean horizontal gradient a block needs to be matched
}

// DefaultMatcherConfig mirrors the reference SGBM settings
// (64 disparities, 11px blocks) at half resolution.
func DefaultMatcherConfig() MatcherConfig {
	return MatcherConfig{
		NumDisparities:   64,
		BlockSize:        11,
		Scale:            0.5,
		TextureThreshold: 2,
	}
}

// BlockMatcher is a sum-of-absolute-differences block matcher with
// sub-pixel refinement. It is safe for use by one goroutine at a time;
// concurrent calls are serialized.
type BlockMatcher struct {
	cfg    MatcherConfig
	logger *slog.Logger

	mu sync.Mutex
	// scratch buffers reused across frames
	diff     []int32
	integral []int32
	best     []int32
	bestD    []int32
	left     []int32
	right    []int32
	prev     []int32
}

// NewBlockMatcher validates cfg.
func NewBlockMatcher(cfg MatcherConfig, logger *slog.Logger) (*BlockMatcher, error) {
	if cfg.NumDisparities <= 0 {
		return nil, fmt.Errorf("stereo: num disparities must be > 0, got %d", cfg.NumDisparities)
	}
	if cfg.BlockSize < 3 || cfg.BlockSize%2 == 0 {
		return nil, fmt.Errorf("stereo: block size must be odd and >= 3, got %d", cfg.BlockSize)
	}
	if !(cfg.Scale > 0) || cfg.Scale > 1 {
		return nil, fmt.Errorf("stereo: scale must be in (0, 1], got %v", cfg.Scale)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BlockMatcher{cfg: cfg, logger: logger.With("component", "stereo.matcher")}, nil
}

// Disparity implements Source. The returned map has the left frame's size;
// disparities are expressed in full-resolution pixels.
func (m *BlockMatcher) Disparity(ctx context.Context, left, right frame.Frame) (*DisparityMap, error) {
	if left.Empty() || right.Empty() {
		return nil, ErrEmptyFrame
	}
	lw, lh := left.Size()
	rw, rh := right.Size()
	if lw != rw || lh != rh {
		return nil, fmt.Errorf("%w: %dx%d vs %dx%d", ErrSizeMismatch, lw, lh, rw, rh)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lg, sw, sh := m.gray(left.Image, lw, lh)
	rg, _, _ := m.gray(right.Image, lw, lh)

	m.mu.Lock()
	small := m.match(lg, rg, sw, sh)
	m.mu.Unlock()

	if sw == lw && sh == lh {
		return small, nil
	}
	return upsample(small, lw, lh), nil
}

// gray converts img to 8-bit luminance, downscaled by cfg.Scale.
func (m *BlockMatcher) gray(img image.Image, w, h int) ([]uint8, int, int) {
	src := img
	sw, sh := w, h
	if m.cfg.Scale < 1 {
		sw = int(math.Round(float64(w) * m.cfg.Scale))
		sh = int(math.Round(float64(h) * m.cfg.Scale))
		if sw < 1 {
			sw = 1
		}
		if sh < 1 {
			sh = 1
		}
		src = imaging.Resize(img, sw, sh, imaging.Box)
	}

	g := imaging.Grayscale(src)
	out := make([]uint8, sw*sh)
	for y := 0; y < sh; y++ {
		row := g.Pix[y*g.Stride:]
		for x := 0; x < sw; x++ {
			out[y*sw+x] = row[x*4]
		}
	}
	return out, sw, sh
}

func grow(buf []int32, n int) []int32 {
	if cap(buf) < n {
		return make([]int32, n)
	}
	return buf[:n]
}

// match runs SAD block matching over l and r (w x h, row-major).
func (m *BlockMatcher) match(l, r []uint8, w, h int) *DisparityMap {
	out := NewDisparityMap(w, h)
	rad := m.cfg.BlockSize / 2
	if w <= 2*rad || h <= 2*rad {
		return out
	}

	n := w * h
	iw := w + 1
	m.diff = grow(m.diff, n)
	m.integral = grow(m.integral, iw*(h+1))
	m.best = grow(m.best, n)
	m.bestD = grow(m.bestD, n)
	m.left = grow(m.left, n)
	m.right = grow(m.right, n)
	m.prev = grow(m.prev, n)

	const unset = math.MaxInt32
	for i := 0; i < n; i++ {
		m.best[i] = unset
		m.bestD[i] = -1
		m.left[i] = unset
		m.right[i] = unset
		m.prev[i] = unset
	}

	texture := m.textureMask(l, w, h, rad)

	maxD := m.cfg.NumDisparities
	if maxD > w-2*rad {
		maxD = w - 2*rad
	}

	for d := 0; d < maxD; d++ {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				i := y*w + x
				if x < d {
					m.diff[i] = 255
					continue
				}
				v := int32(l[i]) - int32(r[i-d])
				if v < 0 {
					v = -v
				}
				m.diff[i] = v
			}
		}
		integrate(m.diff, m.integral, w, h)

		for y := rad; y < h-rad; y++ {
			for x := rad + d; x < w-rad; x++ {
				i := y*w + x
				c := boxSum(m.integral, iw, x-rad, y-rad, x+rad+1, y+rad+1)
				switch {
				case c < m.best[i]:
					m.best[i] = c
					m.bestD[i] = int32(d)
					m.left[i] = m.prev[i]
					m.right[i] = unset
				case m.bestD[i] == int32(d-1):
					m.right[i] = c
				}
				m.prev[i] = c
			}
		}
	}

	valid := 0
	for y := rad; y < h-rad; y++ {
		for x := rad; x < w-rad; x++ {
			i := y*w + x
			d := m.bestD[i]
			if d <= 0 || !texture[i] {
				continue
			}
			disp := float64(d)
			if m.left[i] != unset && m.right[i] != unset {
				cl, cb, cr := float64(m.left[i]), float64(m.best[i]), float64(m.right[i])
				if denom := cl - 2*cb + cr; denom > 0 {
					disp += (cl - cr) / (2 * denom)
				}
			}
			if disp > 0 {
				out.Data[i] = float32(disp)
				valid++
			}
		}
	}

	m.logger.Debug("disparity computed", "width", w, "height", h, "valid", valid)
	return out
}

// textureMask marks pixels whose block has enough horizontal gradient to match.
func (m *BlockMatcher) textureMask(l []uint8, w, h, rad int) []bool {
	mask := make([]bool, w*h)
	if m.cfg.TextureThreshold <= 0 {
		for i := range mask {
			mask[i] = true
		}
		return mask
	}

	grad := make([]int32, w*h)
	for y := 0; y < h; y++ {
		for x := 1; x < w-1; x++ {
			v := int32(l[y*w+x+1]) - int32(l[y*w+x-1])
			if v < 0 {
				v = -v
			}
			grad[y*w+x] = v
		}
	}
	ii := make([]int32, (w+1)*(h+1))
	integrate(grad, ii, w, h)

	side := 2*rad + 1
	minSum := int32(m.cfg.TextureThreshold * float64(side*side))
	for y := rad; y < h-rad; y++ {
		for x := rad; x < w-rad; x++ {
			mask[y*w+x] = boxSum(ii, w+1, x-rad, y-rad, x+rad+1, y+rad+1) >= minSum
		}
	}
	return mask
}

// integrate fills ii ((w+1) x (h+1)) with the summed-area table of src.
func integrate(src, ii []int32, w, h int) {
	iw := w + 1
	for x := 0; x <= w; x++ {
		ii[x] = 0
	}
	for y := 1; y <= h; y++ {
		var row int32
		ii[y*iw] = 0
		for x := 1; x <= w; x++ {
			row += src[(y-1)*w+x-1]
			ii[y*iw+x] = ii[(y-1)*iw+x] + row
		}
	}
}

// boxSum returns the sum over [x0, x1) x [y0, y1).
func boxSum(ii []int32, iw, x0, y0, x1, y1 int) int32 {
	return ii[y1*iw+x1] - ii[y0*iw+x1] - ii[y1*iw+x0] + ii[y0*iw+x0]
}

// upsample resizes src to w x h with nearest-neighbour lookup and rescales
// disparities to full-resolution pixels.
func upsample(src *DisparityMap, w, h int) *DisparityMap {
	out := NewDisparityMap(w, h)
	fx := float64(src.Width) / float64(w)
	fy := float64(src.Height) / float64(h)
	gain := float32(float64(w) / float64(src.Width))

	for y := 0; y < h; y++ {
		sy := int(float64(y) * fy)
		if sy >= src.Height {
			sy = src.Height - 1
		}
		for x := 0; x < w; x++ {
			sx := int(float64(x) * fx)
			if sx >= src.Width {
				sx = src.Width - 1
			}
			if v := src.At(sx, sy); v > 0 {
				out.Data[y*w+x] = v * gain
			}
		}
	}
	return out
}

var _ Source = (*BlockMatcher)(nil)
