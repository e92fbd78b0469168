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

package vector

import (
	"testing"

	"github.com/colstream/colstream/pkg/common/mpool"
	"github.com/colstream/colstream/pkg/container/types"
	"github.com/stretchr/testify/require"
)

func TestGenerateFixedTypeParameter(t *testing.T) {
	mp := mpool.MustNewZero()

	vec := NewVec(types.T_int64.ToType())
	require.NoError(t, AppendFixedList(vec, []int64{10, 20, 30}, nil, mp))

	p := GenerateFunctionFixedTypeParameter[int64](vec)
	_, ok := p.(*FunctionParameterWithoutNull[int64])
	require.True(t, ok)
	v, isNull := p.GetValue(1)
	require.False(t, isNull)
	require.Equal(t, int64(20), v)
	require.Equal(t, []int64{10, 20, 30}, p.UnSafeGetAllValue())
	require.Equal(t, vec, p.GetSourceVector())

	require.NoError(t, AppendFixed(vec, int64(0), true, mp))
	p = GenerateFunctionFixedTypeParameter[int64](vec)
	_, ok = p.(*FunctionParameterNormal[int64])
	require.True(t, ok)
	_, isNull = p.GetValue(3)
	require.True(t, isNull)
	v, isNull = p.GetValue(2)
	require.False(t, isNull)
	require.Equal(t, int64(30), v)
}

func TestGenerateScalarParameter(t *testing.T) {
	mp := mpool.MustNewZero()

	vec, err := NewConstFixed(types.T_int32.ToType(), int32(7), 5, mp)
	require.NoError(t, err)
	p := GenerateFunctionFixedTypeParameter[int32](vec)
	_, ok := p.(*FunctionParameterScalar[int32])
	require.True(t, ok)
	v, isNull := p.GetValue(4)
	require.False(t, isNull)
	require.Equal(t, int32(7), v)

	nullVec := NewConstNull(types.T_int32.ToType(), 5, mp)
	p = GenerateFunctionFixedTypeParameter[int32](nullVec)
	_, ok = p.(*FunctionParameterScalarNull[int32])
	require.True(t, ok)
	_, isNull = p.GetValue(0)
	require.True(t, isNull)
	require.Nil(t, p.UnSafeGetAllValue())
}

func TestGenerateStrParameter(t *testing.T) {
	mp := mpool.MustNewZero()

	long := "the quick brown fox jumps over the lazy dog"
	vec := NewVec(types.T_varchar.ToType())
	require.NoError(t, AppendBytes(vec, []byte("abc"), false, mp))
	require.NoError(t, AppendBytes(vec, []byte(long), false, mp))
	require.NoError(t, AppendBytes(vec, nil, true, mp))

	p := GenerateFunctionStrParameter(vec)
	_, ok := p.(*FunctionParameterNormal[types.Varlena])
	require.True(t, ok)
	bs, isNull := p.GetStrValue(0)
	require.False(t, isNull)
	require.Equal(t, []byte("abc"), bs)
	bs, isNull = p.GetStrValue(1)
	require.False(t, isNull)
	require.Equal(t, []byte(long), bs)
	_, isNull = p.GetStrValue(2)
	require.True(t, isNull)

	constVec, err := NewConstBytes(types.T_varchar.ToType(), []byte(long), 3, mp)
	require.NoError(t, err)
	p = GenerateFunctionStrParameter(constVec)
	_, ok = p.(*FunctionParameterScalar[types.Varlena])
	require.True(t, ok)
	bs, isNull = p.GetStrValue(2)
	require.False(t, isNull)
	require.Equal(t, []byte(long), bs)
}

func BenchmarkGetStrValue1(b *testing.B) {
	mp := mpool.MustNewZeroNoFixed()

	vecSize := uint64(50000)
	vec := NewVec(types.T_varchar.ToType())
	for i := uint64(0); i < vecSize; i++ {
		err := appendOneBytes(vec, []byte("x"), false, mp)
		require.NoError(b, err)
	}

	g1 := GenerateFunctionStrParameter(vec)

	vv, nn := []byte(nil), false
	for i := 0; i < b.N; i++ {
		for j := uint64(0); j < vecSize; j++ {
			v, n := g1.GetStrValue(j)
			vv, nn = v, n
		}
	}
	_, _ = vv, nn
}

func BenchmarkGetStrValue2(b *testing.B) {
	mp := mpool.MustNewZeroNoFixed()

	vecSize := uint64(50000)
	t2 := types.T_varchar.ToType()
	t2.Width = 10
	vec2 := NewVec(t2)
	for i := uint64(0); i < vecSize; i++ {
		err := appendOneBytes(vec2, []byte("x"), false, mp)
		require.NoError(b, err)
	}

	g2 := GenerateFunctionStrParameter(vec2)

	vv, nn := []byte(nil), false
	for i := 0; i < b.N; i++ {
		for j := uint64(0); j < vecSize; j++ {
			v, n := g2.GetStrValue(j)
			vv, nn = v, n
		}
	}
	_, _ = vv, nn
}
