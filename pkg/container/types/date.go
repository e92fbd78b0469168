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

// Date is the number of days since January 1, year 1 of the proleptic
// Gregorian calendar.
type Date int32

type Weekday uint8

const (
	Sunday Weekday = iota
	Monday
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
)

var weekdayNames = [7]string{
	"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday",
}

func (d Weekday) String() string {
	if d <= Saturday {
		return weekdayNames[d]
	}
	return fmt.Sprintf("invalid weekday %d", d)
}

const (
	daysPer400Years = 365*400 + 97
	daysPer100Years = 365*100 + 24
	daysPer4Years   = 365*4 + 1

	MinDateYear    = 1
	MaxDateYear    = 9999
	MinMonthInYear = 1
	MaxMonthInYear = 12
)

// daysBefore[m] counts the days in a non leap year before month m+1.
var daysBefore = [13]int32{
	0, 31, 59, 90, 120, 151, 181, 212, 243, 273, 304, 334, 365,
}

var (
	leapYearMonthDays = []uint8{31, 29, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}
	flatYearMonthDays = []uint8{31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}
)

var (
	startupTime time.Time
	localTZ     int64
)

func init() {
	startupTime = time.Now()
	_, offset := startupTime.Zone()
	localTZ = int64(offset)
}

func isLeap(year int32) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

func validDate(year int32, month, day uint8) bool {
	if year < MinDateYear || year > MaxDateYear {
		return false
	}
	if month < MinMonthInYear || month > MaxMonthInYear {
		return false
	}
	if isLeap(year) {
		return day > 0 && day <= leapYearMonthDays[month-1]
	}
	return day > 0 && day <= flatYearMonthDays[month-1]
}

// ParseDate accepts
//
//	yyyy-mm-dd
//	yyyymmdd
func ParseDate(s string) (Date, error) {
	var yy, mm, dd int
	var err1, err2, err3 error

	if strings.Contains(s, "-") {
		parts := strings.Split(s, "-")
		if len(parts) != 3 {
			return -1, moerr.NewInvalidInputNoCtx("invalid date value %s", s)
		}
		yy, err1 = strconv.Atoi(parts[0])
		mm, err2 = strconv.Atoi(parts[1])
		dd, err3 = strconv.Atoi(parts[2])
	} else if len(s) == 8 {
		yy, err1 = strconv.Atoi(s[:4])
		mm, err2 = strconv.Atoi(s[4:6])
		dd, err3 = strconv.Atoi(s[6:8])
	} else {
		return -1, moerr.NewInvalidInputNoCtx("invalid date value %s", s)
	}
	if err1 != nil || err2 != nil || err3 != nil {
		return -1, moerr.NewInvalidInputNoCtx("invalid date value %s", s)
	}
	if mm < MinMonthInYear || mm > MaxMonthInYear || dd < 1 || dd > 31 {
		return -1, moerr.NewInvalidInputNoCtx("invalid date value %s", s)
	}
	if !validDate(int32(yy), uint8(mm), uint8(dd)) {
		return -1, moerr.NewInvalidInputNoCtx("invalid date value %s", s)
	}
	return FromCalendar(int32(yy), uint8(mm), uint8(dd)), nil
}

func daysSinceEpoch(year int32) int32 {
	// 400 year cycles
	n := year / 400
	year -= 400 * n
	d := daysPer400Years * n

	// 100 year cycles
	n = year / 100
	year -= 100 * n
	d += daysPer100Years * n

	// 4 year cycles
	n = year / 4
	year -= 4 * n
	d += daysPer4Years * n

	d += 365 * year
	return d
}

func FromCalendar(year int32, month, day uint8) Date {
	d := daysSinceEpoch(year - 1)
	d += daysBefore[month-1]
	if isLeap(year) && month >= 3 {
		d++
	}
	d += int32(day) - 1
	return Date(d)
}

// Calendar splits the day count back into year, month, day and day of
// year.  Pass full as false when only year and yday are needed.
func (d Date) Calendar(full bool) (year int32, month, day uint8, yday uint16) {
	dd := int32(d)

	n := dd / daysPer400Years
	y := 400 * n
	dd -= daysPer400Years * n

	// Cut off the last day of a 400 year cycle, it would otherwise
	// count as day 0 of the next 100 year cycle.
	n = dd / daysPer100Years
	n -= n >> 2
	y += 100 * n
	dd -= daysPer100Years * n

	n = dd / daysPer4Years
	y += 4 * n
	dd -= daysPer4Years * n

	// Same off by one at the end of a 4 year cycle.
	n = dd / 365
	n -= n >> 2
	y += n
	dd -= 365 * n

	year = y + 1
	yday = uint16(dd + 1)

	if !full {
		return
	}

	if isLeap(year) {
		if dd > 31+29-1 {
			// after leap day
			dd--
		} else if dd == 31+29-1 {
			month = 2
			day = 29
			return
		}
	}

	// Estimate the month, may be low by one, never high.
	m := dd / 31
	end := daysBefore[m+1]
	var begin int32
	if dd >= end {
		m++
		begin = end
	} else {
		begin = daysBefore[m]
	}
	month = uint8(m + 1)
	day = uint8(dd - begin + 1)
	return
}

func (d Date) String() string {
	y, m, day, _ := d.Calendar(true)
	return fmt.Sprintf("%04d-%02d-%02d", y, m, day)
}

func (d Date) Year() int32 {
	year, _, _, _ := d.Calendar(false)
	return year
}

func (d Date) Month() uint8 {
	_, month, _, _ := d.Calendar(true)
	return month
}

func (d Date) Day() uint8 {
	_, _, day, _ := d.Calendar(true)
	return day
}

func (d Date) DayOfYear() uint16 {
	_, _, _, yday := d.Calendar(false)
	return yday
}

// DayOfWeek works because January 1, year 1 was a Monday.
func (d Date) DayOfWeek() Weekday {
	return Weekday((d + 1) % 7)
}

// WeekOfYear returns the ISO 8601 year and week number.  The week of a
// date is the week of its Thursday.
func (d Date) WeekOfYear() (year int32, week uint8) {
	delta := 4 - int32(d.DayOfWeek())
	// Sunday is the last day of the week
	if delta == 4 {
		delta = -3
	}
	thursday := d + Date(delta)
	y, _, _, yday := thursday.Calendar(false)
	return y, uint8((int32(yday)-1)/7 + 1)
}

func LastDay(year int32, month uint8) uint8 {
	if isLeap(year) {
		return leapYearMonthDays[month-1]
	}
	return flatYearMonthDays[month-1]
}

func Today(loc *time.Location) Date {
	now := time.Now().In(loc)
	y, m, d := now.Date()
	return FromCalendar(int32(y), uint8(m), uint8(d))
}

func (d Date) ToDatetime() Datetime {
	return Datetime(int64(d) * secsPerDay << 20)
}
