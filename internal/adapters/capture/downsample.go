package capture

import "github.com/okian/proctor/internal/domain/model"

// DefaultObjectWidth is the width frames are reduced to before object detection.
const DefaultObjectWidth = 320

// Downsample returns a copy of frame scaled by nearest neighbour so that its
// width is at most maxWidth. Pixel data is treated as packed rows with a
// whole number of bytes per pixel; frames whose buffer does not match their
// dimensions keep only the new dimensions.
func Downsample(frame model.Frame, maxWidth int) model.Frame {
	if maxWidth <= 0 || frame.Width <= maxWidth || frame.Width <= 0 || frame.Height <= 0 {
		return frame
	}
	w := maxWidth
	h := frame.Height * maxWidth / frame.Width
	if h < 1 {
		h = 1
	}
	out := frame
	out.Width, out.Height = w, h
	out.Pixels = nil

	n := frame.Width * frame.Height
	if len(frame.Pixels) == 0 || len(frame.Pixels)%n != 0 {
		return out
	}
	bpp := len(frame.Pixels) / n
	out.Pixels = make([]byte, w*h*bpp)
	for y := 0; y < h; y++ {
		sy := y * frame.Height / h
		for x := 0; x < w; x++ {
			sx := x * frame.Width / w
			src := (sy*frame.Width + sx) * bpp
			dst := (y*w + x) * bpp
			copy(out.Pixels[dst:dst+bpp], frame.Pixels[src:src+bpp])
		}
	}
	return out
}
