// Copyright 2022 ColStream Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package types

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/colstream/colstream/pkg/common/moerr"
)

// Datetime is a wall clock instant with no time zone attached.  The
// upper 44 bits hold seconds since January 1, year 1 of the Gregorian
// calendar, the lower 20 bits microseconds.
type Datetime int64

const (
	secsPerMinute = 60
	secsPerHour   = 60 * secsPerMinute
	secsPerDay    = 24 * secsPerHour

	microSecsPerSec = 1000000

	// seconds from year 1 to the unix epoch
	unixEpoch = 62135596800

	MinDatetimeYear = 1
	MaxDatetimeYear = 9999
)

func (dt Datetime) String() string {
	y, m, d, _ := dt.ToDate().Calendar(true)
	hour, minute, sec := dt.Clock()
	return fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d", y, m, d, hour, minute, sec)
}

// String2 prints the fraction with the given number of digits.
func (dt Datetime) String2(precision int32) string {
	y, m, d, _ := dt.ToDate().Calendar(true)
	hour, minute, sec := dt.Clock()
	if precision > 0 {
		msec := fmt.Sprintf("%06d", dt.MicroSec())
		return fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d.%s", y, m, d, hour, minute, sec, msec[:precision])
	}
	return fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d", y, m, d, hour, minute, sec)
}

// ParseDatetime accepts
//
//	yyyy-mm-dd hh:mm:ss(.msec)
//	yyyymmddhhmmss(.msec)
//
// A plain date is taken as midnight of that day.
func ParseDatetime(s string, precision int32) (Datetime, error) {
	s = strings.TrimSpace(s)
	if len(s) < 14 {
		if d, err := ParseDate(s); err == nil {
			return d.ToDatetime(), nil
		}
		return -1, moerr.NewInvalidInputNoCtx("invalid datetime value %s", s)
	}

	var year, month, day, hour, minute, sec int64
	var msec, carry uint32
	var err error

	if s[4] == '-' {
		// yyyy-mm-dd hh:mm:ss
		if len(s) < 19 || s[7] != '-' || s[10] != ' ' || s[13] != ':' || s[16] != ':' {
			return -1, moerr.NewInvalidInputNoCtx("invalid datetime value %s", s)
		}
		year, err = parseDigits(s[0:4])
		if err == nil {
			month, err = parseDigits(s[5:7])
		}
		if err == nil {
			day, err = parseDigits(s[8:10])
		}
		if err == nil {
			hour, err = parseDigits(s[11:13])
		}
		if err == nil {
			minute, err = parseDigits(s[14:16])
		}
		if err == nil {
			sec, err = parseDigits(s[17:19])
		}
		if err != nil {
			return -1, moerr.NewInvalidInputNoCtx("invalid datetime value %s", s)
		}
		if len(s) > 19 {
			if s[19] != '.' {
				return -1, moerr.NewInvalidInputNoCtx("invalid datetime value %s", s)
			}
			msec, carry, err = getMsec(s[20:], precision)
			if err != nil {
				return -1, moerr.NewInvalidInputNoCtx("invalid datetime value %s", s)
			}
		}
	} else {
		// yyyymmddhhmmss
		year, err = parseDigits(s[0:4])
		if err == nil {
			month, err = parseDigits(s[4:6])
		}
		if err == nil {
			day, err = parseDigits(s[6:8])
		}
		if err == nil {
			hour, err = parseDigits(s[8:10])
		}
		if err == nil {
			minute, err = parseDigits(s[10:12])
		}
		if err == nil {
			sec, err = parseDigits(s[12:14])
		}
		if err != nil {
			return -1, moerr.NewInvalidInputNoCtx("invalid datetime value %s", s)
		}
		if len(s) > 14 {
			if s[14] != '.' {
				return -1, moerr.NewInvalidInputNoCtx("invalid datetime value %s", s)
			}
			msec, carry, err = getMsec(s[15:], precision)
			if err != nil {
				return -1, moerr.NewInvalidInputNoCtx("invalid datetime value %s", s)
			}
		}
	}

	if !validDate(int32(year), uint8(month), uint8(day)) ||
		!validTimeInDay(uint8(hour), uint8(minute), uint8(sec)) {
		return -1, moerr.NewInvalidInputNoCtx("invalid datetime value %s", s)
	}
	return FromClock(int32(year), uint8(month), uint8(day), uint8(hour), uint8(minute), uint8(sec)+uint8(carry), msec), nil
}

func parseDigits(s string) (int64, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	return int64(v), err
}

func validTimeInDay(hour, minute, sec uint8) bool {
	return hour <= 23 && minute <= 59 && sec <= 59
}

func FromClock(year int32, month, day, hour, minute, sec uint8, msec uint32) Datetime {
	days := FromCalendar(year, month, day)
	secs := int64(days)*secsPerDay +
		int64(hour)*secsPerHour +
		int64(minute)*secsPerMinute +
		int64(sec)
	return Datetime(secs<<20 + int64(msec))
}

func (dt Datetime) Clock() (hour, minute, sec int8) {
	t := dt.sec() % secsPerDay
	hour = int8(t / secsPerHour)
	minute = int8(t % secsPerHour / secsPerMinute)
	sec = int8(t % secsPerMinute)
	return
}

// Now is the current local wall clock.
func Now() Datetime {
	t := time.Now()
	secs := t.Unix() + unixEpoch + localTZ
	micro := int64(t.Nanosecond()) / 1000
	return Datetime(secs<<20 + micro)
}

func (dt Datetime) UTC() Datetime {
	return Datetime(int64(dt) - localTZ<<20)
}

func (dt Datetime) UnixTimestamp() int64 {
	return dt.sec() - unixEpoch
}

func FromUnix(ts int64) Datetime {
	return Datetime((ts + unixEpoch) << 20)
}

func UnixToTimestamp(ts int64) Timestamp {
	return Timestamp((ts + unixEpoch) << 20)
}

func (dt Datetime) ToDate() Date {
	return Date(dt.sec() / secsPerDay)
}

// ToTime takes the clock part of the datetime, truncated to precision
// fraction digits.
func (dt Datetime) ToTime(precision int32) Time {
	hour, minute, sec := dt.Clock()
	msec := uint32(dt.MicroSec())
	if precision >= 0 && precision < 6 {
		scale := uint32(precisionVal[precision])
		msec = msec / scale * scale
	}
	return FromTimeClock(false, int32(hour), uint8(minute), uint8(sec), msec)
}

func (dt Datetime) Year() int32 {
	return dt.ToDate().Year()
}

func (dt Datetime) Month() uint8 {
	return dt.ToDate().Month()
}

func (dt Datetime) Day() uint8 {
	return dt.ToDate().Day()
}

func (dt Datetime) Hour() int8 {
	hour, _, _ := dt.Clock()
	return hour
}

func (dt Datetime) Minute() int8 {
	_, minute, _ := dt.Clock()
	return minute
}

func (dt Datetime) Sec() int8 {
	_, _, sec := dt.Clock()
	return sec
}

func (dt Datetime) MicroSec() int64 {
	return int64(dt) & 0xfffff
}

func (dt Datetime) sec() int64 {
	return int64(dt) >> 20
}
