package dice

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/width"
)

var (
	ErrUnrecognized  = errors.New("unrecognized wager text")
	ErrInvalidAmount = errors.New("wager amount must be a positive integer")
)

var (
	reOneDigit    = regexp.MustCompile(`^([1-6])/(\d+)$`)
	reTwoDigits   = regexp.MustCompile(`^([1-6])/([1-6])/(\d+)$`)
	reThreeDigits = regexp.MustCompile(`^([1-6])([1-6])([1-6])/(\d+)$`)

	reMineSweeperKeyword = regexp.MustCompile(`^(大单|大双|小单|小双|大|小|单|双)(\d+)$`)
	reDragonTigerKeyword = regexp.MustCompile(`^(龙|虎|和)(\d+)$`)
	reK3Keyword          = regexp.MustCompile(`^(前二龙|后二龙|豹子|顺子|组三|组六|大|小|单|双|龙|虎|和)(\d+)$`)
)

var keywords = map[string]Code{
	"大":   CodeBig,
	"小":   CodeSmall,
	"单":   CodeOdd,
	"双":   CodeEven,
	"大单":  CodeBigOdd,
	"大双":  CodeBigEven,
	"小单":  CodeSmallOdd,
	"小双":  CodeSmallEven,
	"龙":   CodeDragon,
	"虎":   CodeTiger,
	"和":   CodeTie,
	"前二龙": CodeFrontDragon,
	"后二龙": CodeBackDragon,
	"豹子":  CodeLeopard,
	"顺子":  CodeStraight,
	"组三":  CodeGroupThree,
	"组六":  CodeGroupSix,
}

// Parse turns raw wager text into a canonical spec for the family. It checks
// only syntax: digits 1-6 and a positive integer amount. Whether the wager
// type is configured for a group is decided at placement.
func Parse(family Family, raw string) (WagerSpec, error) {
	text := normalize(raw)
	if text == "" {
		return WagerSpec{}, fmt.Errorf("%w: empty", ErrUnrecognized)
	}

	var (
		spec WagerSpec
		ok   bool
		err  error
	)
	switch family {
	case FamilyMineSweeper:
		spec, ok, err = parseMineSweeper(text)
	case FamilyDragonTiger:
		spec, ok, err = parseDragonTiger(text)
	case FamilyK3:
		spec, ok, err = parseK3(text)
	default:
		return WagerSpec{}, fmt.Errorf("%w: %q", ErrUnknownFamily, family)
	}
	if err != nil {
		return WagerSpec{}, err
	}
	if !ok {
		return WagerSpec{}, fmt.Errorf("%w: %q", ErrUnrecognized, raw)
	}
	spec.Family = family
	return spec, nil
}

// normalize folds full-width digits and slashes to ASCII and drops whitespace,
// so "大 １０" and "大10" parse the same.
func normalize(raw string) string {
	return strings.Join(strings.Fields(width.Narrow.String(raw)), "")
}

func parseMineSweeper(text string) (WagerSpec, bool, error) {
	if m := reOneDigit.FindStringSubmatch(text); m != nil {
		return withAmount(CodePosition, Single(digit(m[1])), m[2])
	}
	if m := reMineSweeperKeyword.FindStringSubmatch(text); m != nil {
		return withAmount(keywords[m[1]], Content{}, m[2])
	}
	return WagerSpec{}, false, nil
}

func parseDragonTiger(text string) (WagerSpec, bool, error) {
	if m := reTwoDigits.FindStringSubmatch(text); m != nil {
		return withAmount(CodePosition, Pair(digit(m[1]), digit(m[2])), m[3])
	}
	if m := reDragonTigerKeyword.FindStringSubmatch(text); m != nil {
		return withAmount(keywords[m[1]], Content{}, m[2])
	}
	return WagerSpec{}, false, nil
}

func parseK3(text string) (WagerSpec, bool, error) {
	if m := reThreeDigits.FindStringSubmatch(text); m != nil {
		a, b, c := digit(m[1]), digit(m[2]), digit(m[3])
		// a repeated digit names a specific leopard
		if a == b && b == c {
			return withAmount(CodeLeopard, Single(a), m[4])
		}
		return withAmount(CodeCompound, Triple(a, b, c), m[4])
	}
	if m := reOneDigit.FindStringSubmatch(text); m != nil {
		return withAmount(CodePosition, Single(digit(m[1])), m[2])
	}
	if m := reK3Keyword.FindStringSubmatch(text); m != nil {
		return withAmount(keywords[m[1]], Content{}, m[2])
	}
	return WagerSpec{}, false, nil
}

func withAmount(code Code, content Content, amount string) (WagerSpec, bool, error) {
	n, err := strconv.ParseInt(amount, 10, 64)
	if err != nil || n <= 0 {
		return WagerSpec{}, false, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}
	return WagerSpec{Code: code, Amount: n, Content: content}, true, nil
}

// digit converts a regexp-matched [1-6] group.
func digit(s string) int {
	return int(s[0] - '0')
}
