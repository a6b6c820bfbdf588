package dice

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Shape tags the structured content a wager declares.
type Shape string

const (
	ShapeNone   Shape = ""       // category bets: Big, Dragon, Straight...
	ShapeSingle Shape = "single" // one target digit
	ShapePair   Shape = "pair"   // two digits, in declared order
	ShapeTriple Shape = "triple" // three digits, in declared order
)

var ErrInvalidContent = errors.New("invalid wager content")

// Content is the typed, family-scoped payload of a wager: the target digits
// in the order the player declared them.
type Content struct {
	Shape  Shape `json:"shape,omitempty"`
	Digits []int `json:"digits,omitempty"`
}

func Single(d int) Content       { return Content{Shape: ShapeSingle, Digits: []int{d}} }
func Pair(a, b int) Content      { return Content{Shape: ShapePair, Digits: []int{a, b}} }
func Triple(a, b, c int) Content { return Content{Shape: ShapeTriple, Digits: []int{a, b, c}} }

func (c Content) IsEmpty() bool {
	return c.Shape == ShapeNone
}

// Validate checks the digit count matches the shape and every digit is a die face.
func (c Content) Validate() error {
	want := 0
	switch c.Shape {
	case ShapeNone:
	case ShapeSingle:
		want = 1
	case ShapePair:
		want = 2
	case ShapeTriple:
		want = 3
	default:
		return fmt.Errorf("%w: shape %q", ErrInvalidContent, c.Shape)
	}
	if len(c.Digits) != want {
		return fmt.Errorf("%w: shape %q wants %d digits, got %d", ErrInvalidContent, c.Shape, want, len(c.Digits))
	}
	for _, d := range c.Digits {
		if !isFace(d) {
			return fmt.Errorf("%w: digit %d out of range", ErrInvalidContent, d)
		}
	}
	return nil
}

// MarshalContent encodes content for storage. Empty content encodes as nil.
func MarshalContent(c Content) ([]byte, error) {
	if c.IsEmpty() {
		return nil, nil
	}
	return json.Marshal(c)
}

// UnmarshalContent decodes stored content, treating empty input as no content.
func UnmarshalContent(b []byte) (Content, error) {
	var c Content
	if len(b) == 0 || string(b) == "null" {
		return c, nil
	}
	if err := json.Unmarshal(b, &c); err != nil {
		return Content{}, fmt.Errorf("decode wager content: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Content{}, err
	}
	return c, nil
}

// WagerSpec is the canonical form of a wager's text.
type WagerSpec struct {
	Family  Family
	Code    Code
	Amount  int64
	Content Content
}

func isFace(v int) bool {
	return v >= 1 && v <= 6
}
