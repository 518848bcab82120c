package chain

// Account and action names pack up to 13 base-32 characters into a
// uint64: 5 bits per character for the first 12, 4 bits for the last.
// The character set is '.', '1'-'5' and 'a'-'z'; '.' encodes as zero
// and trailing dots are dropped when printing.

const nameMaxLen = 13

var nameAlphabet = [32]byte{
	'.', '1', '2', '3', '4', '5',
	'a', 'b', 'c', 'd', 'e', 'f', 'g', 'h', 'i', 'j', 'k', 'l', 'm',
	'n', 'o', 'p', 'q', 'r', 's', 't', 'u', 'v', 'w', 'x', 'y', 'z',
}

// nameCharValue maps a character to its 5-bit value; anything outside
// the alphabet collapses to zero, like the reference encoders do.
func nameCharValue(c byte) uint64 {
	switch {
	case c >= 'a' && c <= 'z':
		return uint64(c-'a') + 6
	case c >= '1' && c <= '5':
		return uint64(c-'1') + 1
	default:
		return 0
	}
}

func StringToName(s string) uint64 {
	var name uint64
	for i := 0; i < len(s) && i < nameMaxLen; i++ {
		v := nameCharValue(s[i])
		if i < 12 {
			name |= (v & 0x1f) << uint(59-5*i)
		} else {
			name |= v & 0x0f
		}
	}
	return name
}

func NameToString(name uint64) string {
	var buf [nameMaxLen]byte
	for i := 0; i < 12; i++ {
		buf[i] = nameAlphabet[(name>>uint(59-5*i))&0x1f]
	}
	buf[12] = nameAlphabet[name&0x0f]

	end := nameMaxLen
	for end > 0 && buf[end-1] == '.' {
		end--
	}
	return string(buf[:end])
}
