// Copyright (c) 2025 Neomantra Corp

package hydra

import (
	"time"

	"github.com/relvacode/iso8601"
)

// TimestampToTime converts a nanosecond epoch timestamp to time.Time.
func TimestampToTime(epochNanos int64) time.Time {
	secs := epochNanos / 1e9
	nano := epochNanos - secs*1e9
	return time.Unix(secs, nano).UTC()
}

// TimeToTimestamp converts a time.Time to a nanosecond epoch timestamp.
func TimeToTimestamp(t time.Time) int64 {
	return t.UnixNano()
}

// ParseDatetime parses an ISO 8601 datetime or date string ("2000-06-07",
// "2000-06-07T09:30:00Z") into a nanosecond epoch timestamp.
func ParseDatetime(str string) (int64, error) {
	t, err := iso8601.ParseString(str)
	if err != nil {
		return 0, err
	}
	return t.UnixNano(), nil
}

// TimeToYMD returns the YYYYMMDD for the time.Time in that Time's location.
// A zero time returns a 0 value.
func TimeToYMD(t time.Time) uint32 {
	if t.IsZero() {
		return 0
	}
	return uint32(10000*t.Year() + 100*int(t.Month()) + t.Day())
}

// searchTimestamps returns the index of the first element of index that is
// >= ts, or len(index) when every element is smaller.
func searchTimestamps(index []int64, ts int64) int {
	lo, hi := 0, len(index)
	for lo < hi {
		mid := (lo + hi) / 2
		if index[mid] < ts {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// mergeTimestamps merges sorted unique timestamp slices into one sorted
// unique slice.
func mergeTimestamps(indexes ...[]int64) []int64 {
	total := 0
	for _, idx := range indexes {
		total += len(idx)
	}
	merged := make([]int64, 0, total)
	cursors := make([]int, len(indexes))
	for {
		best := int64(0)
		found := false
		for i, idx := range indexes {
			if cursors[i] >= len(idx) {
				continue
			}
			if !found || idx[cursors[i]] < best {
				best = idx[cursors[i]]
				found = true
			}
		}
		if !found {
			return merged
		}
		for i, idx := range indexes {
			if cursors[i] < len(idx) && idx[cursors[i]] == best {
				cursors[i]++
			}
		}
		merged = append(merged, best)
	}
}
