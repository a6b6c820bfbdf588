package dice

import "sort"

// rule decides whether a wager wins against a draw. Rules are only looked up
// for a draw of the matching dice count, so they may index dice freely.
type rule func(c Content, d []int) bool

var (
	oneDieRules = map[Code]rule{
		CodeBig:       func(_ Content, d []int) bool { return d[0] >= 4 },
		CodeSmall:     func(_ Content, d []int) bool { return d[0] <= 3 },
		CodeOdd:       func(_ Content, d []int) bool { return d[0]%2 == 1 },
		CodeEven:      func(_ Content, d []int) bool { return d[0]%2 == 0 },
		CodeBigOdd:    func(_ Content, d []int) bool { return d[0] >= 4 && d[0]%2 == 1 },
		CodeBigEven:   func(_ Content, d []int) bool { return d[0] >= 4 && d[0]%2 == 0 },
		CodeSmallOdd:  func(_ Content, d []int) bool { return d[0] <= 3 && d[0]%2 == 1 },
		CodeSmallEven: func(_ Content, d []int) bool { return d[0] <= 3 && d[0]%2 == 0 },
		CodePosition:  func(c Content, d []int) bool { return contains(c.Digits, d[0]) },
	}

	twoDiceRules = map[Code]rule{
		CodeDragon: func(_ Content, d []int) bool { return d[0] > d[1] },
		CodeTiger:  func(_ Content, d []int) bool { return d[0] < d[1] },
		CodeTie:    func(_ Content, d []int) bool { return d[0] == d[1] },
		CodePosition: func(c Content, d []int) bool {
			return c.Shape == ShapePair && exact(c.Digits, d)
		},
	}

	threeDiceRules = map[Code]rule{
		CodeBig:   func(_ Content, d []int) bool { t := sum(d); return !isLeopard(d) && t >= 11 && t <= 17 },
		CodeSmall: func(_ Content, d []int) bool { t := sum(d); return !isLeopard(d) && t >= 4 && t <= 10 },
		CodeOdd:   func(_ Content, d []int) bool { return !isLeopard(d) && sum(d)%2 == 1 },
		CodeEven:  func(_ Content, d []int) bool { return !isLeopard(d) && sum(d)%2 == 0 },

		// two-star dragon/tiger compares the first and last die
		CodeDragon:      func(_ Content, d []int) bool { return d[0] > d[2] },
		CodeTiger:       func(_ Content, d []int) bool { return d[0] < d[2] },
		CodeTie:         func(_ Content, d []int) bool { return d[0] == d[2] },
		CodeFrontDragon: func(_ Content, d []int) bool { return d[0] > d[1] },
		CodeBackDragon:  func(_ Content, d []int) bool { return d[1] > d[2] },

		CodePosition: func(c Content, d []int) bool {
			switch c.Shape {
			case ShapeSingle:
				return contains(d, c.Digits[0])
			case ShapeTriple:
				return exact(c.Digits, d)
			default:
				return false
			}
		},
		CodeCompound: func(c Content, d []int) bool {
			return c.Shape == ShapeTriple && exact(c.Digits, d)
		},
		CodeLeopard: func(c Content, d []int) bool {
			if !isLeopard(d) {
				return false
			}
			if c.Shape == ShapeSingle {
				return d[0] == c.Digits[0]
			}
			return c.IsEmpty()
		},
		CodeStraight:   func(_ Content, d []int) bool { return isStraight(d) },
		CodeGroupThree: func(_ Content, d []int) bool { return distinct(d) == 2 },
		CodeGroupSix:   func(_ Content, d []int) bool { return distinct(d) == 3 },
	}
)

// Evaluate reports whether a wager of the given type and content wins against
// the drawn dice. It is total: unknown codes, codes that do not apply to the
// number of dice drawn, malformed content and out-of-range dice all lose.
func Evaluate(code Code, content Content, dice []int) bool {
	var rules map[Code]rule
	switch len(dice) {
	case 1:
		rules = oneDieRules
	case 2:
		rules = twoDiceRules
	case 3:
		rules = threeDiceRules
	default:
		return false
	}
	for _, v := range dice {
		if !isFace(v) {
			return false
		}
	}
	if content.Validate() != nil {
		return false
	}
	r, ok := rules[code]
	if !ok {
		return false
	}
	return r(content, dice)
}

// Codes returns the wager codes that can win for a draw of n dice, sorted.
func Codes(n int) []Code {
	var rules map[Code]rule
	switch n {
	case 1:
		rules = oneDieRules
	case 2:
		rules = twoDiceRules
	case 3:
		rules = threeDiceRules
	}
	codes := make([]Code, 0, len(rules))
	for c := range rules {
		codes = append(codes, c)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return codes
}

func sum(d []int) int {
	t := 0
	for _, v := range d {
		t += v
	}
	return t
}

func isLeopard(d []int) bool {
	return len(d) == 3 && d[0] == d[1] && d[1] == d[2]
}

// isStraight accepts a run of three consecutive faces, plus the two
// wraparound runs 5-6-1 and 6-1-2.
func isStraight(d []int) bool {
	if len(d) != 3 {
		return false
	}
	s := []int{d[0], d[1], d[2]}
	sort.Ints(s)
	if s[1]-s[0] == 1 && s[2]-s[1] == 1 {
		return true
	}
	return (s[0] == 1 && s[1] == 5 && s[2] == 6) || (s[0] == 1 && s[1] == 2 && s[2] == 6)
}

func distinct(d []int) int {
	seen := make(map[int]struct{}, len(d))
	for _, v := range d {
		seen[v] = struct{}{}
	}
	return len(seen)
}

func contains(set []int, v int) bool {
	for _, x := range set {
		if x == v {
			return true
		}
	}
	return false
}

func exact(want, got []int) bool {
	if len(want) != len(got) {
		return false
	}
	for i := range want {
		if want[i] != got[i] {
			return false
		}
	}
	return true
}
