package chain

import (
	"errors"
	"strconv"
	"strings"
)

// Asset is an amount with a symbol. The symbol packs the display
// precision into the low byte and up to seven ASCII characters above
// it, first character in the lowest code byte.
type Asset struct {
	Amount int64
	Symbol uint64
}

func NewSymbol(precision uint8, code uint64) uint64 {
	return code<<8 | uint64(precision)
}

func SymbolPrecision(symbol uint64) uint8 {
	return uint8(symbol)
}

func SymbolCode(symbol uint64) uint64 {
	return symbol >> 8
}

func SymbolCodeToString(code uint64) string {
	buf := make([]byte, 0, 7)
	for ; code > 0 && len(buf) < 7; code >>= 8 {
		buf = append(buf, byte(code))
	}
	return string(buf)
}

func StringToSymbolCode(s string) uint64 {
	var code uint64
	for i := len(s) - 1; i >= 0; i-- {
		code = code<<8 | uint64(s[i])
	}
	return code
}

// SymbolToString renders "precision,CODE", the form contract ABIs use.
func SymbolToString(symbol uint64) string {
	return strconv.Itoa(int(SymbolPrecision(symbol))) + "," + SymbolCodeToString(SymbolCode(symbol))
}

func (a Asset) String() string {
	precision := int(SymbolPrecision(a.Symbol))

	digits := strconv.FormatInt(a.Amount, 10)
	negative := strings.HasPrefix(digits, "-")
	if negative {
		digits = digits[1:]
	}
	if precision > 0 {
		for len(digits) <= precision {
			digits = "0" + digits
		}
		split := len(digits) - precision
		digits = digits[:split] + "." + digits[split:]
	}
	if negative {
		digits = "-" + digits
	}
	return digits + " " + SymbolCodeToString(SymbolCode(a.Symbol))
}

// ParseAsset reads "<amount> <symbol>"; the precision is taken from the
// number of fractional digits.
func ParseAsset(s string) (Asset, error) {
	amountStr, symbolName, ok := strings.Cut(s, " ")
	if !ok || symbolName == "" || strings.ContainsRune(symbolName, ' ') {
		return Asset{}, errors.New("invalid asset string: expected '<amount> <symbol>'")
	}

	var precision uint8
	digits := amountStr
	if whole, frac, hasDot := strings.Cut(amountStr, "."); hasDot {
		precision = uint8(len(frac))
		digits = whole + frac
	}

	amount, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return Asset{}, errors.New("invalid asset amount: " + err.Error())
	}

	return Asset{Amount: amount, Symbol: NewSymbol(precision, StringToSymbolCode(symbolName))}, nil
}
