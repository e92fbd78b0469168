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

	"github.com/colstream/colstream/pkg/common/moerr"
)

// Time holds the number of microseconds of a (-)hhh:mm:ss(.msec)
// clock value.  Negative values are allowed, hours may go up to 838
// the way mysql has it.
type Time int64

const (
	minHourInTime, maxHourInTime         = 0, 838
	minMinuteInHour, maxMinuteInHour     = 0, 59
	minSecondInMinute, maxSecondInMinute = 0, 59
)

var FillString = []string{"", "0", "00", "000", "0000", "00000", "000000", "0000000"}

// precisionVal[p] is the microsecond unit of a value with p fraction
// digits.
var precisionVal = [7]int64{1000000, 100000, 10000, 1000, 100, 10, 1}

// no msec part
func (t Time) String() string {
	h, m, s, _, isNeg := t.ClockFormat()
	if isNeg {
		return fmt.Sprintf("-%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func (t Time) String2(precision int32) string {
	var symbol string
	h, m, s, ms, isNeg := t.ClockFormat()
	if isNeg {
		symbol = "-"
	}
	if precision > 0 {
		msecInstr := fmt.Sprintf("%06d", ms)
		return fmt.Sprintf("%s%02d:%02d:%02d.%s", symbol, h, m, s, msecInstr[:precision])
	}
	return fmt.Sprintf("%s%02d:%02d:%02d", symbol, h, m, s)
}

// ParseTime will parse a string to a Time type
// Support Format:
// * yyyy-mm-dd hh:mm:ss(.msec)
// * yyyymmddhhmmss(.msec)
// * (-)hh:mm:ss(.msec) and (-)hhh:mm:ss(.msec)
// * (-)hhmmss(.msec) and (-)hhhmmss(.msec)
// * (-)hh:mm and (-)hhh:mm
//
// If the msec part is longer than precision it gets rounded, so with
// precision 3 "11:11:11.9995" comes out as "11:11:12.000".
func ParseTime(s string, precision int32) (Time, error) {
	s = strings.TrimSpace(s)
	if len(s) == 0 {
		return -1, moerr.NewInvalidInputNoCtx("invalid time value %s", s)
	}

	// separate the clock and the msec part
	strs := strings.Split(s, ".")
	timeString := strs[0]
	isNegative := false

	if len(timeString) >= 14 {
		// long enough for yyyy-mm-dd hh:mm:ss or yyyymmddhhmmss,
		// take the clock out of a datetime
		dt, err := ParseDatetime(s, precision)
		if err != nil {
			return -1, moerr.NewInvalidInputNoCtx("invalid time value %s", s)
		}
		return dt.ToTime(precision), nil
	} else if s[0] == '-' {
		isNegative = true
		timeString = timeString[1:]
	}

	var hour, minute, sec uint64
	var msec uint32 = 0
	var carry uint32 = 0
	var err error
	timeArr := strings.Split(timeString, ":")
	switch len(timeArr) {
	case 1: // s/ss/mss/mmss/hmmss/hhmmss/hhhmmss
		if len(timeArr[0]) > 7 {
			return -1, moerr.NewInvalidInputNoCtx("invalid time value %s", s)
		}
		// fill 0 to make sure its length is 7
		// eg.
		//	1 => 0000001 => (000)(00)(01) => 00:00:01
		//	123 => 0000123 => (000)(01)(23) => 00:01:23
		//	12345 => 0012345 => (001)(23)(45) => 01:23:45
		n := 7 - len(timeArr[0])
		parseString := FillString[n] + timeArr[0]
		if hour, err = strconv.ParseUint(parseString[0:3], 10, 32); err != nil {
			return -1, moerr.NewInvalidInputNoCtx("invalid time value %s", s)
		}
		if minute, err = strconv.ParseUint(parseString[3:5], 10, 8); err != nil {
			return -1, moerr.NewInvalidInputNoCtx("invalid time value %s", s)
		}
		if sec, err = strconv.ParseUint(parseString[5:7], 10, 8); err != nil {
			return -1, moerr.NewInvalidInputNoCtx("invalid time value %s", s)
		}
	case 2: // hh:mm / hhh:mm
		if hour, err = strconv.ParseUint(timeArr[0], 10, 32); err != nil {
			return -1, moerr.NewInvalidInputNoCtx("invalid time value %s", s)
		}
		if minute, err = strconv.ParseUint(timeArr[1], 10, 8); err != nil {
			return -1, moerr.NewInvalidInputNoCtx("invalid time value %s", s)
		}
		sec = 0
	case 3: // hh:mm:ss / hhh:mm:ss
		if hour, err = strconv.ParseUint(timeArr[0], 10, 32); err != nil {
			return -1, moerr.NewInvalidInputNoCtx("invalid time value %s", s)
		}
		if minute, err = strconv.ParseUint(timeArr[1], 10, 8); err != nil {
			return -1, moerr.NewInvalidInputNoCtx("invalid time value %s", s)
		}
		if sec, err = strconv.ParseUint(timeArr[2], 10, 8); err != nil {
			return -1, moerr.NewInvalidInputNoCtx("invalid time value %s", s)
		}
	default:
		return -1, moerr.NewInvalidInputNoCtx("invalid time value %s", s)
	}

	if !validTime(hour, minute, sec) {
		return -1, moerr.NewInvalidInputNoCtx("invalid time value %s", s)
	}

	if len(strs) > 1 {
		msec, carry, err = getMsec(strs[1], precision)
		if err != nil {
			return -1, moerr.NewInvalidInputNoCtx("invalid time value %s", s)
		}
	}

	return FromTimeClock(isNegative, int32(hour), uint8(minute), uint8(sec+uint64(carry)), msec), nil
}

func FromTimeClock(isNegative bool, hour int32, minute, sec uint8, msec uint32) Time {
	secs := int64(hour)*secsPerHour + int64(minute)*secsPerMinute + int64(sec)
	t := secs*microSecsPerSec + int64(msec)
	if isNegative {
		return Time(-t)
	}
	return Time(t)
}

// ClockFormat: symbol part/hour part/minute part/second part/msecond part
func (t Time) ClockFormat() (hour int32, minute, sec int8, msec int64, isNeg bool) {
	if t < 0 {
		isNeg = true
		t = -t
	}
	ts := t.sec()
	h := int32(ts / secsPerHour)
	m := int8(ts % secsPerHour / secsPerMinute)
	s := int8(ts % secsPerMinute)
	ms := int64(t % microSecsPerSec)

	return h, m, s, ms, isNeg
}

func (t Time) MicroSec() int64 {
	return int64(t) % microSecsPerSec
}

func (t Time) Sec() int8 {
	return int8(t.sec() % secsPerMinute)
}

func (t Time) Minute() int8 {
	return int8(t.sec() % secsPerHour / secsPerMinute)
}

func (t Time) Hour() int32 {
	return int32(t.sec() / secsPerHour)
}

func (t Time) sec() int64 {
	return int64(t) / microSecsPerSec
}

func validTime(h, m, s uint64) bool {
	if h < minHourInTime || h > maxHourInTime {
		return false
	}
	if m < minMinuteInHour || m > maxMinuteInHour {
		return false
	}
	if s < minSecondInMinute || s > maxSecondInMinute {
		return false
	}
	return true
}
