package detection

import "image"

// Candidate is a raw box decoded from the model output before
// non-maximum suppression.
type Candidate struct {
	Box        image.Rectangle
	Confidence float32
	ClassID    int
}

// DecodeYOLOv8 parses a YOLOv8 output tensor laid out as [4+numClasses, anchors]
// (row-major, channel first). Boxes are (cx, cy, w, h) in model input pixels
// and are rescaled to a frameW x frameH image and clipped to its bounds.
func DecodeYOLOv8(data []float32, channels, anchors int, inputW, inputH, frameW, frameH int, minConf float32) []Candidate {
	if channels <= 4 || anchors <= 0 || len(data) < channels*anchors {
		return nil
	}

	sx := float32(frameW) / float32(inputW)
	sy := float32(frameH) / float32(inputH)
	bounds := image.Rect(0, 0, frameW, frameH)

	var out []Candidate
	for i := 0; i < anchors; i++ {
		best := float32(0)
		bestID := -1
		for c := 4; c < channels; c++ {
			if s := data[c*anchors+i]; s > best {
				best = s
				bestID = c - 4
			}
		}
		if bestID < 0 || best < minConf {
			continue
		}

		cx := data[0*anchors+i]
		cy := data[1*anchors+i]
		w := data[2*anchors+i]
		h := data[3*anchors+i]

		box := image.Rect(
			int((cx-w/2)*sx),
			int((cy-h/2)*sy),
			int((cx+w/2)*sx),
			int((cy+h/2)*sy),
		).Intersect(bounds)
		if box.Empty() {
			continue
		}

		out = append(out, Candidate{Box: box, Confidence: best, ClassID: bestID})
	}
	return out
}
