package entities

import "fmt"

// Sequence describes a named numbering sequence such as the op number
type Sequence struct {
	Code            string `json:"code" db:"code"`
	Prefix          string `json:"prefix" db:"prefix"`
	Padding         int    `json:"padding" db:"padding"`
	NumberNext      int64  `json:"number_next" db:"number_next"`
	NumberIncrement int64  `json:"number_increment" db:"number_increment"`
}

// OpNumberSequence is the sequence seeded for appointment op numbers
var OpNumberSequence = Sequence{
	Code:            "appointment.op_number",
	Prefix:          "OP",
	Padding:         5,
	NumberNext:      1,
	NumberIncrement: 1,
}

// Format renders n with the sequence prefix, zero-padded to Padding digits
func (s Sequence) Format(n int64) string {
	return fmt.Sprintf("%s%0*d", s.Prefix, s.Padding, n)
}
