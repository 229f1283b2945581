package game

// ScoreInput carries the counters the composite score is computed from.
type ScoreInput struct {
	Won              bool
	TotalGuesses     int
	WrongLetters     int
	WrongWordGuesses int
	ElapsedSeconds   float64
	Length           int
}

// Score computes
//
//	1000·won − 10·guesses − 5·wrongLetters − 40·wrongWords − 0.2·seconds + 2·length
//
// The result can be negative and is stored as is.
func Score(in ScoreInput) float64 {
	won := 0.0
	if in.Won {
		won = 1
	}
	return 1000*won -
		10*float64(in.TotalGuesses) -
		5*float64(in.WrongLetters) -
		40*float64(in.WrongWordGuesses) -
		0.2*in.ElapsedSeconds +
		2*float64(in.Length)
}
