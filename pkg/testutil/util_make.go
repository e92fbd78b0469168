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

package testutil

import (
	"github.com/colstream/colstream/pkg/container/types"
	"github.com/colstream/colstream/pkg/container/vector"
)

// The Make family builds vectors on TestUtilMp for tests that do not
// track allocations themselves.  nsp lists the null rows.

func makeFixedVector[T types.FixedSizeT](vs []T, nsp []uint64, typ types.Type) *vector.Vector {
	vec := vector.NewVec(typ)
	if err := vector.AppendFixedList(vec, vs, nil, TestUtilMp); err != nil {
		vec.Free(TestUtilMp)
		return nil
	}
	for _, row := range nsp {
		vec.GetNulls().Set(row)
	}
	return vec
}

func MakeInt8Vector(vs []int8, nsp []uint64) *vector.Vector {
	return makeFixedVector(vs, nsp, types.T_int8.ToType())
}

func MakeInt32Vector(vs []int32, nsp []uint64) *vector.Vector {
	return makeFixedVector(vs, nsp, types.T_int32.ToType())
}

func MakeInt64Vector(vs []int64, nsp []uint64) *vector.Vector {
	return makeFixedVector(vs, nsp, types.T_int64.ToType())
}

func MakeUint64Vector(vs []uint64, nsp []uint64) *vector.Vector {
	return makeFixedVector(vs, nsp, types.T_uint64.ToType())
}

func MakeFloat64Vector(vs []float64, nsp []uint64) *vector.Vector {
	return makeFixedVector(vs, nsp, types.T_float64.ToType())
}

func MakeVarcharVector(vs []string, nsp []uint64) *vector.Vector {
	vec := vector.NewVec(types.T_varchar.ToType())
	if err := vector.AppendStringList(vec, vs, nil, TestUtilMp); err != nil {
		vec.Free(TestUtilMp)
		return nil
	}
	for _, row := range nsp {
		vec.GetNulls().Set(row)
	}
	return vec
}

func MakeScalarNull(t types.T, length int) *vector.Vector {
	return vector.NewConstNull(t.ToType(), length, TestUtilMp)
}
