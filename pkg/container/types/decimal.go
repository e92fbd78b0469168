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
	"encoding/binary"
	"math"
	"math/bits"
	"strconv"
	"strings"

	"github.com/colstream/colstream/pkg/common/moerr"
)

// Decimal64 and Decimal128 hold fixed point numbers as scaled two's
// complement integers.  The scale lives in the column type, the value
// itself is just the raw integer.

type Decimal64 uint64

type Decimal128 struct {
	B0_63   uint64
	B64_127 uint64
}

const (
	// widest DECIMAL each representation can hold
	Decimal64MaxWidth  = 18
	Decimal128MaxWidth = 38
)

var pow10u64 [Decimal64MaxWidth + 1]uint64

var pow10d128 [Decimal128MaxWidth + 1]Decimal128

func init() {
	p64 := uint64(1)
	for i := range pow10u64 {
		pow10u64[i] = p64
		p64 *= 10
	}
	p128 := Decimal128{B0_63: 1}
	for i := range pow10d128 {
		pow10d128[i] = p128
		p128, _ = mul128u64(p128, 10)
	}
}

func (x Decimal64) Sign() bool {
	return x>>63 != 0
}

func (x Decimal64) Minus() Decimal64 {
	return Decimal64(-int64(x))
}

func (x Decimal64) Less(y Decimal64) bool {
	return int64(x) < int64(y)
}

func (x Decimal128) Sign() bool {
	return x.B64_127>>63 != 0
}

func (x Decimal128) Minus() Decimal128 {
	lo, c := bits.Add64(^x.B0_63, 1, 0)
	hi, _ := bits.Add64(^x.B64_127, 0, c)
	return Decimal128{lo, hi}
}

func (x Decimal128) Less(y Decimal128) bool {
	if xs, ys := x.Sign(), y.Sign(); xs != ys {
		return xs
	}
	if x.B64_127 != y.B64_127 {
		return x.B64_127 < y.B64_127
	}
	return x.B0_63 < y.B0_63
}

func CompareDecimal64(x, y Decimal64) int {
	if x == y {
		return 0
	}
	if x.Less(y) {
		return -1
	}
	return 1
}

func CompareDecimal128(x, y Decimal128) int {
	if x == y {
		return 0
	}
	if x.Less(y) {
		return -1
	}
	return 1
}

func mul128u64(x Decimal128, y uint64) (Decimal128, bool) {
	hi, lo := bits.Mul64(x.B0_63, y)
	hi2, lo2 := bits.Mul64(x.B64_127, y)
	s, c := bits.Add64(hi, lo2, 0)
	return Decimal128{lo, s}, hi2 != 0 || c != 0
}

func add128u64(x Decimal128, y uint64) (Decimal128, bool) {
	lo, c := bits.Add64(x.B0_63, y, 0)
	hi, c := bits.Add64(x.B64_127, 0, c)
	return Decimal128{lo, hi}, c != 0
}

func lt128u(x, y Decimal128) bool {
	if x.B64_127 != y.B64_127 {
		return x.B64_127 < y.B64_127
	}
	return x.B0_63 < y.B0_63
}

func div128u10(x Decimal128) (Decimal128, uint64) {
	q1, r := bits.Div64(0, x.B64_127, 10)
	q0, r := bits.Div64(r, x.B0_63, 10)
	return Decimal128{q0, q1}, r
}

// scaleDigits splits s into sign and raw digits at the given scale.
// Extra fraction digits round half up, the carry is returned as a
// one ulp increment for the caller to add.
func scaleDigits(s string, scale int32) (neg bool, digits string, carry bool, err error) {
	str := strings.TrimSpace(s)
	if len(str) > 0 && (str[0] == '+' || str[0] == '-') {
		neg = str[0] == '-'
		str = str[1:]
	}
	if len(str) == 0 {
		err = moerr.NewInvalidInputNoCtx("invalid decimal value %s", s)
		return
	}
	intPart := str
	fracPart := ""
	if dot := strings.IndexByte(str, '.'); dot >= 0 {
		intPart = str[:dot]
		fracPart = str[dot+1:]
	}
	if len(intPart)+len(fracPart) == 0 {
		err = moerr.NewInvalidInputNoCtx("invalid decimal value %s", s)
		return
	}
	for i := 0; i < len(intPart); i++ {
		if intPart[i] < '0' || intPart[i] > '9' {
			err = moerr.NewInvalidInputNoCtx("invalid decimal value %s", s)
			return
		}
	}
	for i := 0; i < len(fracPart); i++ {
		if fracPart[i] < '0' || fracPart[i] > '9' {
			err = moerr.NewInvalidInputNoCtx("invalid decimal value %s", s)
			return
		}
	}
	if int32(len(fracPart)) > scale {
		carry = fracPart[scale] >= '5'
		fracPart = fracPart[:scale]
	} else if int32(len(fracPart)) < scale {
		fracPart = fracPart + strings.Repeat("0", int(scale)-len(fracPart))
	}
	digits = strings.TrimLeft(intPart+fracPart, "0")
	return
}

// ParseDecimal64 parses s into a DECIMAL(width, scale) value, rounding
// half up past scale digits.
func ParseDecimal64(s string, width, scale int32) (Decimal64, error) {
	if width > Decimal64MaxWidth {
		width = Decimal64MaxWidth
	}
	neg, digits, carry, err := scaleDigits(s, scale)
	if err != nil {
		return 0, err
	}
	var v uint64
	for i := 0; i < len(digits); i++ {
		d := uint64(digits[i] - '0')
		if v > (math.MaxUint64-d)/10 {
			return 0, moerr.NewInvalidInputNoCtx("decimal value %s overflows DECIMAL(%d,%d)", s, width, scale)
		}
		v = v*10 + d
	}
	if carry {
		v++
	}
	if v >= pow10u64[width] {
		return 0, moerr.NewInvalidInputNoCtx("decimal value %s overflows DECIMAL(%d,%d)", s, width, scale)
	}
	if neg {
		return Decimal64(v).Minus(), nil
	}
	return Decimal64(v), nil
}

func ParseDecimal128(s string, width, scale int32) (Decimal128, error) {
	if width > Decimal128MaxWidth {
		width = Decimal128MaxWidth
	}
	var zero Decimal128
	neg, digits, carry, err := scaleDigits(s, scale)
	if err != nil {
		return zero, err
	}
	v := zero
	overflow := false
	for i := 0; i < len(digits); i++ {
		var of1, of2 bool
		v, of1 = mul128u64(v, 10)
		v, of2 = add128u64(v, uint64(digits[i]-'0'))
		overflow = overflow || of1 || of2
	}
	if carry {
		var of bool
		v, of = add128u64(v, 1)
		overflow = overflow || of
	}
	if overflow || !lt128u(v, pow10d128[width]) {
		return zero, moerr.NewInvalidInputNoCtx("decimal value %s overflows DECIMAL(%d,%d)", s, width, scale)
	}
	if neg {
		return v.Minus(), nil
	}
	return v, nil
}

func formatDigits(digits string, scale int32, neg bool) string {
	if int32(len(digits)) <= scale {
		digits = strings.Repeat("0", int(scale)-len(digits)+1) + digits
	}
	point := len(digits) - int(scale)
	var buf strings.Builder
	if neg {
		buf.WriteByte('-')
	}
	buf.WriteString(digits[:point])
	if scale > 0 {
		buf.WriteByte('.')
		buf.WriteString(digits[point:])
	}
	return buf.String()
}

// Format renders the value with scale fraction digits.
func (x Decimal64) Format(scale int32) string {
	neg := x.Sign()
	if neg {
		x = x.Minus()
	}
	return formatDigits(strconv.FormatUint(uint64(x), 10), scale, neg)
}

func (x Decimal128) Format(scale int32) string {
	neg := x.Sign()
	if neg {
		x = x.Minus()
	}
	if x.B64_127 == 0 {
		return formatDigits(strconv.FormatUint(x.B0_63, 10), scale, neg)
	}
	var tmp [40]byte
	i := len(tmp)
	for x.B64_127 != 0 || x.B0_63 != 0 {
		var r uint64
		x, r = div128u10(x)
		i--
		tmp[i] = byte('0' + r)
	}
	return formatDigits(string(tmp[i:]), scale, neg)
}

func (x Decimal64) String() string {
	return x.Format(0)
}

func (x Decimal128) String() string {
	return x.Format(0)
}

func (x Decimal64) Marshal() ([]byte, error) {
	data := make([]byte, 8)
	binary.LittleEndian.PutUint64(data, uint64(x))
	return data, nil
}

func (x *Decimal64) Unmarshal(data []byte) error {
	if len(data) != 8 {
		return moerr.NewInternalErrorNoCtx("unmarshal decimal64: %d bytes", len(data))
	}
	*x = Decimal64(binary.LittleEndian.Uint64(data))
	return nil
}

func (x Decimal128) Marshal() ([]byte, error) {
	data := make([]byte, 16)
	binary.LittleEndian.PutUint64(data, x.B0_63)
	binary.LittleEndian.PutUint64(data[8:], x.B64_127)
	return data, nil
}

func (x *Decimal128) Unmarshal(data []byte) error {
	if len(data) != 16 {
		return moerr.NewInternalErrorNoCtx("unmarshal decimal128: %d bytes", len(data))
	}
	x.B0_63 = binary.LittleEndian.Uint64(data)
	x.B64_127 = binary.LittleEndian.Uint64(data[8:])
	return nil
}
