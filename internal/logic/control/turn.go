package control

// TurnSpeeds resolves the wheel powers of a pivot turn.
//
// A Left pivot holds the left wheel, a Right pivot holds the right wheel and
// a Center pivot drives both at half speed (truncated toward zero) in
// opposite directions. side == Left mirrors the turn.
func TurnSpeeds(pivot, side Alignment, speed int) (left, right int) {
	if pivot == Center {
		speed = speed / 2
	}
	if pivot == Left {
		left = 0
	} else {
		left = speed
	}
	if pivot == Right {
		right = 0
	} else {
		right = -speed
	}
	if side == Left {
		left = -left
		right = -right
	}
	return left, right
}
