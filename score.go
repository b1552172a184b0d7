package main

// Scoring divides the dial into five contiguous bands centered on the
// presenter's target angle, worth 2/3/4/3/2 points from left to right. Each
// band spans twice bandHalfWidth degrees, so the full scoring zone covers
// target±30°.
const bandHalfWidth = 6.0

var bandPoints = [5]int{2, 3, 4, 3, 2}

// scoreGuess returns the points earned by guessing guess against target.
// Bands are closed intervals checked left to right; the first band containing
// the guess wins, so a guess on a shared edge scores as the leftmost band.
// A guess outside every band scores 0.
func scoreGuess(target, guess float64) int {
	lo := target - bandHalfWidth*float64(len(bandPoints))

	for _, points := range bandPoints {
		hi := lo + 2*bandHalfWidth
		if guess >= lo && guess <= hi {
			return points
		}
		lo = hi
	}

	return 0
}
