// Package command decodes motion commands received on the command stream.
//
// Wire format: comma-separated tokens, each a wheel character ('r' or 'l'), a
// sign character ('p' positive, anything else negative) and a decimal
// magnitude, e.g. "rp12.5,ln3.0".
package command

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Wheel identifiers as they appear on the wire.
const (
	WheelRight = 'r'
	WheelLeft  = 'l'
	SignPos    = 'p'
)

// MotorCommand carries per-wheel signed velocity targets. Units are defined by
// the consumer.
type MotorCommand struct {
	Right float64 `json:"right"`
	Left  float64 `json:"left"`
}

// ParseError records the token that stopped a best-effort parse.
type ParseError struct {
	Token string
	Index int
	Err   error
}

// ErrNonFinite is the cause of a ParseError for an "inf" or "nan" magnitude.
var ErrNonFinite = errors.New("magnitude is not finite")

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse token %d %q: %v", e.Index, e.Token, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parse decodes message into a MotorCommand. Tokens are independent and the
// last token for a wheel wins. Tokens shorter than three characters and
// unknown wheel characters are skipped. A token whose magnitude is not a
// finite decimal number stops parsing: the velocities resolved so far are
// returned together with a *ParseError. Wheels not mentioned are 0.
func Parse(message string) (MotorCommand, error) {
	var cmd MotorCommand

	for i, token := range strings.Split(strings.TrimSpace(message), ",") {
		if len(token) < 3 {
			continue
		}

		value, err := strconv.ParseFloat(token[2:], 64)
		if err != nil {
			return cmd, &ParseError{Token: token, Index: i, Err: err}
		}
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return cmd, &ParseError{Token: token, Index: i, Err: ErrNonFinite}
		}
		if token[1] != SignPos {
			value = -value
		}

		switch token[0] {
		case WheelRight:
			cmd.Right = value
		case WheelLeft:
			cmd.Left = value
		}
	}

	return cmd, nil
}

// Format renders cmd in the wire format, right wheel first.
func Format(cmd MotorCommand) string {
	return formatToken(WheelRight, cmd.Right) + "," + formatToken(WheelLeft, cmd.Left)
}

func formatToken(wheel byte, v float64) string {
	sign := byte('n')
	if v >= 0 {
		sign = SignPos
	} else {
		v = -v
	}
	return string([]byte{wheel, sign}) + strconv.FormatFloat(v, 'f', -1, 64)
}
