package chain

import (
	"time"
)

// Block timestamps count 500ms slots since 2000-01-01T00:00:00 UTC.
const MSINTERVAL = 500

// BlockTimestamp is a block production slot.
type BlockTimestamp uint32

func (t BlockTimestamp) String() string {
	d := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	d = d.Add(time.Duration(uint64(t) * MSINTERVAL * 1000000))
	return d.Format("2006-01-02T15:04:05.000")
}

func (t BlockTimestamp) Time() time.Time {
	d := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	return d.Add(time.Duration(uint64(t) * MSINTERVAL * 1000000))
}

func (t BlockTimestamp) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

func ParseBlockTimestamp(s string) (BlockTimestamp, error) {
	if s == "" {
		return 0, nil
	}
	if last := len(s) - 1; last >= 0 && s[last] == 'Z' {
		s = s[:last]
	}
	pt, err := time.Parse("2006-01-02T15:04:05.000", s)
	if err != nil {
		return 0, err
	}
	ptd := pt.Sub(time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC))
	return BlockTimestamp(ptd.Milliseconds() / MSINTERVAL), nil
}

// TimePoint is microseconds since the unix epoch.
type TimePoint int64

func (t TimePoint) String() string {
	return time.UnixMicro(int64(t)).UTC().Format("2006-01-02T15:04:05.000")
}

func (t TimePoint) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}
