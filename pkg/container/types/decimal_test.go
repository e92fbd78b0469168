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
	"testing"
)

func TestParse64(t *testing.T) {
	x, y := ParseDecimal64("99999.99999999999999999999999999999999", 12, 6)
	if y != nil || x != 100000000000 {
		panic("Decimal64Parse wrong")
	}
}

func TestParse128(t *testing.T) {
	x, y := ParseDecimal128("99999.999999999999999999999999999999999", 12, 6)
	if y != nil || x.B0_63 != 100000000000 {
		panic("Decimal128Parse wrong")
	}
}

func TestCompare64(t *testing.T) {
	x := Decimal64(0)
	y := ^x
	if CompareDecimal64(x, y) != 1 {
		panic("CompareDecimal64 wrong")
	}
}

func TestCompare128(t *testing.T) {
	x := Decimal128{0, 0}
	y := Decimal128{^x.B0_63, ^x.B64_127}
	if CompareDecimal128(x, y) != 1 {
		panic("CompareDecimal128 wrong")
	}
}

func TestParseNeg(t *testing.T) {
	x, err := ParseDecimal64("-123.456", 18, 3)
	if err != nil || x.Format(3) != "-123.456" {
		panic("Decimal64 negative parse wrong")
	}
	y, err := ParseDecimal128("-0.5", 38, 1)
	if err != nil || y.Format(1) != "-0.5" {
		panic("Decimal128 negative parse wrong")
	}
}

func TestParseOverflow(t *testing.T) {
	if _, err := ParseDecimal64("100", 5, 3); err == nil {
		panic("DECIMAL(5,3) overflow not caught")
	}
	if _, err := ParseDecimal64("1e5", 10, 2); err == nil {
		panic("malformed decimal not caught")
	}
	if _, err := ParseDecimal128("99999999999999999999999999999999999999999", 38, 0); err == nil {
		panic("DECIMAL(38,0) overflow not caught")
	}
}

func TestParseFormat(t *testing.T) {
	x := Decimal128{0, 1}
	c := x.Format(5)
	y, err := ParseDecimal128(c, 30, 5)
	if err != nil {
		panic("error")
	}
	if x != y {
		panic("wrong")
	}
}
