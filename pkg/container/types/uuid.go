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
	"bytes"

	"github.com/google/uuid"

	"github.com/colstream/colstream/pkg/common/moerr"
)

// Uuid is a RFC 4122 UUID stored as raw bytes.
type Uuid [16]byte

func BuildUuid() (Uuid, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Uuid{}, moerr.NewInternalErrorNoCtx("build uuid: %s", err.Error())
	}
	return Uuid(id), nil
}

// ParseUuid accepts the forms uuid.Parse does, the canonical
// 8-4-4-4-12 form included.
func ParseUuid(str string) (Uuid, error) {
	id, err := uuid.Parse(str)
	if err != nil {
		return Uuid{}, moerr.NewInvalidInputNoCtx("invalid uuid string %s", str)
	}
	return Uuid(id), nil
}

func (d Uuid) String() string {
	return uuid.UUID(d).String()
}

func (d Uuid) Eq(other Uuid) bool {
	return d == other
}

func (d Uuid) Compare(other Uuid) int {
	return bytes.Compare(d[:], other[:])
}

func (d Uuid) Marshal() ([]byte, error) {
	return d[:], nil
}

func (d *Uuid) Unmarshal(data []byte) error {
	if len(data) != 16 {
		return moerr.NewInternalErrorNoCtx("unmarshal uuid: %d bytes", len(data))
	}
	copy(d[:], data)
	return nil
}
