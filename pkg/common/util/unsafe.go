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

package util

import (
	"unsafe"
)

// UnsafeBytesToString casts a byte slice to a string without copying.
// The caller must not modify b afterwards.
func UnsafeBytesToString(b []byte) string {
	return *(*string)(unsafe.Pointer(&b))
}

// UnsafeStringToBytes casts a string to a byte slice without copying.
// The caller must not modify the returned slice.
func UnsafeStringToBytes(s string) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice(unsafe.StringData(s), len(s))
}

// UnsafeToBytes views the object behind p as its raw bytes.
func UnsafeToBytes[T any](p *T) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(p)), unsafe.Sizeof(*p))
}

// UnsafeToBytesWithLength views length bytes starting at p.
func UnsafeToBytesWithLength[T any](p *T, length int) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(p)), length)
}

// UnsafeSliceCast reinterprets the elements of s as TTo.  The element
// sizes have to be compatible, no check is done here.
func UnsafeSliceCast[TTo any, TFrom any](s []TFrom) []TTo {
	if s == nil {
		return nil
	}
	var to TTo
	var from TFrom
	n := uintptr(len(s)) * unsafe.Sizeof(from) / unsafe.Sizeof(to)
	return unsafe.Slice((*TTo)(unsafe.Pointer(unsafe.SliceData(s))), n)
}

func UnsafeUintptr[T any](p *T) uintptr {
	return uintptr(unsafe.Pointer(p))
}
