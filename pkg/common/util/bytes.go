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

// CloneBytesIf copies src when clone is set, otherwise hands back the
// original slice.  Useful when the source buffer is only valid until
// some closer runs.
func CloneBytesIf(src []byte, clone bool) []byte {
	if clone {
		if len(src) > 0 {
			dst := make([]byte, len(src))
			copy(dst, src)
			return dst
		}
		return []byte{}
	}
	return src
}

// CloneBytes returns a copy of src, nil for an empty source.
func CloneBytes(src []byte) []byte {
	var ret []byte
	if len(src) > 0 {
		ret = make([]byte, len(src))
		copy(ret, src)
	}
	return ret
}
