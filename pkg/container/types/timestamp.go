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
	"time"

	"github.com/colstream/colstream/pkg/common/moerr"
)

// Timestamp is an instant normalized to UTC.  Values passed in are
// converted using the server's time zone, values printed are converted
// back, so readers in another zone see their own wall clock.  The
// bit layout matches Datetime, seconds since year 1 in the upper bits
// and microseconds in the lower 20.
type Timestamp int64

var (
	TimestampMinValue Timestamp
	TimestampMaxValue Timestamp
)

// the valid range is '1970-01-01 00:00:01.000000' to
// '2038-01-19 03:14:07.999999' UTC.
func init() {
	TimestampMinValue = FromClockUTC(1970, 1, 1, 0, 0, 1, 0)
	TimestampMaxValue = FromClockUTC(2038, 1, 19, 3, 14, 7, 999999)
}

func (ts Timestamp) String() string {
	dt := Datetime(int64(ts) + localTZ<<20)
	y, m, d, _ := dt.ToDate().Calendar(true)
	hour, minute, sec := dt.Clock()
	msec := int64(ts) & 0xfffff
	return fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d.%06d", y, m, d, hour, minute, sec, msec)
}

// String2 prints the fraction with the given number of digits.
func (ts Timestamp) String2(precision int32) string {
	dt := Datetime(int64(ts) + localTZ<<20)
	y, m, d, _ := dt.ToDate().Calendar(true)
	hour, minute, sec := dt.Clock()
	if precision > 0 {
		msec := fmt.Sprintf("%06d", int64(dt)&0xfffff)
		return fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d.%s", y, m, d, hour, minute, sec, msec[:precision])
	}
	return fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d", y, m, d, hour, minute, sec)
}

// scaleTable stores the microseconds unit for each precision
var scaleTable = [...]uint32{1000000, 100000, 10000, 1000, 100, 10, 1}

var OneSecInMicroSeconds = uint32(1000000)

// getMsec parses a fraction digit string into microseconds, rounding
// at precision digits.  The second return is the carry into seconds
// when rounding wraps.
func getMsec(msecStr string, precision int32) (uint32, uint32, error) {
	if precision > 6 {
		precision = 6
	}
	msecs := uint32(0)
	carry := uint32(0)
	msecCarry := uint32(0)
	if len(msecStr) > int(precision) {
		if msecStr[precision] >= '5' && msecStr[precision] <= '9' {
			msecCarry = 1
		} else if msecStr[precision] >= '0' && msecStr[precision] <= '4' {
			msecCarry = 0
		} else {
			return 0, 0, moerr.NewInvalidInputNoCtx("invalid msec string %s", msecStr)
		}
		msecStr = msecStr[:precision]
	} else if len(msecStr) < int(precision) {
		padZeros := int(precision) - len(msecStr)
		for i := 0; i < padZeros; i++ {
			msecStr = msecStr + "0"
		}
	}
	if len(msecStr) == 0 {
		// precision is 0
		return 0, msecCarry, nil
	}
	m, err := strconv.ParseUint(msecStr, 10, 32)
	if err != nil {
		return 0, 0, moerr.NewInvalidInputNoCtx("invalid msec string %s", msecStr)
	}
	msecs = (uint32(m) + msecCarry) * scaleTable[precision]
	if msecs == OneSecInMicroSeconds {
		carry = 1
		msecs = 0
	}
	return msecs, carry, nil
}

func (d Date) ToTimeUTC() Timestamp {
	return Timestamp((int64(d)*secsPerDay)<<20 - (localTZ << 20))
}

// ParseTimestamp will parse a string to be a Timestamp
// Support Format:
// 1. all the Date value
// 2. yyyy-mm-dd hh:mm:ss(.msec)
// 3. yyyymmddhhmmss(.msec)
func ParseTimestamp(s string, precision int32) (Timestamp, error) {
	if len(s) < 14 {
		if d, err := ParseDate(s); err == nil {
			return d.ToTimeUTC(), nil
		}
		return -1, moerr.NewInvalidInputNoCtx("invalid timestamp value %s", s)
	}
	var year int32
	var month, day, hour, minute, second uint8
	var msec uint32 = 0
	var carry uint32 = 0
	var err error

	year = int32(s[0]-'0')*1000 + int32(s[1]-'0')*100 + int32(s[2]-'0')*10 + int32(s[3]-'0')
	if s[4] == '-' {
		if len(s) < 19 {
			return -1, moerr.NewInvalidInputNoCtx("invalid timestamp value %s", s)
		}
		month = (s[5]-'0')*10 + (s[6] - '0')
		if s[7] != '-' {
			return -1, moerr.NewInvalidInputNoCtx("invalid timestamp value %s", s)
		}
		day = (s[8]-'0')*10 + (s[9] - '0')
		if s[10] != ' ' {
			return -1, moerr.NewInvalidInputNoCtx("invalid timestamp value %s", s)
		}
		if !validDate(year, month, day) {
			return -1, moerr.NewInvalidInputNoCtx("invalid timestamp value %s", s)
		}
		hour = (s[11]-'0')*10 + (s[12] - '0')
		if s[13] != ':' {
			return -1, moerr.NewInvalidInputNoCtx("invalid timestamp value %s", s)
		}
		minute = (s[14]-'0')*10 + (s[15] - '0')
		if s[16] != ':' {
			return -1, moerr.NewInvalidInputNoCtx("invalid timestamp value %s", s)
		}
		second = (s[17]-'0')*10 + (s[18] - '0')
		if !validTimeInDay(hour, minute, second) {
			return -1, moerr.NewInvalidInputNoCtx("invalid timestamp value %s", s)
		}
		if len(s) > 19 {
			// the fraction ".123" means 123000 microseconds
			if len(s) > 20 && s[19] == '.' {
				msec, carry, err = getMsec(s[20:], precision)
				if err != nil {
					return -1, moerr.NewInvalidInputNoCtx("invalid timestamp value %s", s)
				}
			} else {
				return -1, moerr.NewInvalidInputNoCtx("invalid timestamp value %s", s)
			}
		}
	} else {
		month = (s[4]-'0')*10 + (s[5] - '0')
		day = (s[6]-'0')*10 + (s[7] - '0')
		hour = (s[8]-'0')*10 + (s[9] - '0')
		minute = (s[10]-'0')*10 + (s[11] - '0')
		second = (s[12]-'0')*10 + (s[13] - '0')
		if !validDate(year, month, day) || !validTimeInDay(hour, minute, second) {
			return -1, moerr.NewInvalidInputNoCtx("invalid timestamp value %s", s)
		}
		if len(s) > 14 {
			if len(s) > 15 && s[14] == '.' {
				msec, carry, err = getMsec(s[15:], precision)
				if err != nil {
					return -1, moerr.NewInvalidInputNoCtx("invalid timestamp value %s", s)
				}
			} else {
				return -1, moerr.NewInvalidInputNoCtx("invalid timestamp value %s", s)
			}
		}
	}

	result := FromClockUTC(year, month, day, hour, minute, second+uint8(carry), msec)
	if result > TimestampMaxValue || result < TimestampMinValue {
		return -1, moerr.NewInvalidInputNoCtx("timestamp %s out of range", s)
	}

	return result, nil
}

// FromClockUTC normalizes local clock parts to a UTC timestamp.
func FromClockUTC(year int32, month, day, hour, min, sec uint8, msec uint32) Timestamp {
	days := FromCalendar(year, month, day)
	secs := int64(days)*secsPerDay +
		int64(hour)*secsPerHour +
		int64(min)*secsPerMinute +
		int64(sec) - localTZ
	return Timestamp((secs << 20) + int64(msec))
}

func NowUTC() Timestamp {
	t := time.Now().UTC()
	secs := t.Unix() + unixEpoch
	return Timestamp(secs<<20 + int64(t.Nanosecond())/1000)
}

func ValidTimestamp(timestamp Timestamp) bool {
	return timestamp > TimestampMinValue && timestamp < TimestampMaxValue
}
