package util

// ClampedLerp interpolates linearly between (x1,y1) and (x2,y2), clamping
// x to the segment first. Used for weather-compensation style curves.
func ClampedLerp(x, x1, y1, x2, y2 float64) float64 {
	if x < x1 {
		x = x1
	}
	if x > x2 {
		x = x2
	}
	return y1 + (x-x1)/(x2-x1)*(y2-y1)
}
