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

package external

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/matrixorigin/simdcsv"
	"github.com/pierrec/lz4"

	"github.com/colstream/colstream/pkg/common/moerr"
)

const (
	// CompressAuto detects the compression from the filename suffix.
	CompressAuto = "auto"
	CompressNone = "none"
	CompressLZ4  = "lz4"
)

const fileBufferSize = 1 << 20

// fileReader owns one open source file: the descriptor, an optional
// decompression layer and the csv parser on top of both.
type fileReader struct {
	name string
	file *os.File
	csv  *simdcsv.Reader
}

// openFile is a package variable so tests can fail the open path.
var openFile = func(ctx context.Context, name string) (*os.File, error) {
	f, err := os.Open(name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, moerr.NewFileNotFound(ctx, name)
		}
		return nil, moerr.NewCannotOpenFile(ctx, name, err.Error())
	}
	return f, nil
}

// compressionOf resolves the effective compression kind. Empty and
// auto fall back to the filename suffix.
func compressionOf(kind, name string) string {
	kind = strings.ToLower(kind)
	if kind != "" && kind != CompressAuto {
		return kind
	}
	if strings.HasSuffix(strings.ToLower(name), ".lz4") {
		return CompressLZ4
	}
	return CompressNone
}

func getUnCompressReader(ctx context.Context, kind, name string, r io.Reader) (io.Reader, error) {
	switch compressionOf(kind, name) {
	case CompressNone:
		return r, nil
	case CompressLZ4:
		return lz4.NewReader(r), nil
	default:
		return nil, moerr.NewNotSupported(ctx, "compression %s", kind)
	}
}

// newFileReader opens name and stacks the read layers over it.
func newFileReader(ctx context.Context, name, compression string, terminator rune) (*fileReader, error) {
	f, err := openFile(ctx, name)
	if err != nil {
		return nil, err
	}
	r, err := newFileReaderFromFile(ctx, f, name, compression, terminator)
	if err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

// newFileReaderFromFile builds the reader over an already open
// descriptor. The reader owns the descriptor from here on.
func newFileReaderFromFile(ctx context.Context, f *os.File, name, compression string, terminator rune) (*fileReader, error) {
	src, err := getUnCompressReader(ctx, compression, name, bufio.NewReaderSize(f, fileBufferSize))
	if err != nil {
		return nil, err
	}
	return &fileReader{
		name: name,
		file: f,
		csv: simdcsv.NewReaderWithOptions(src,
			terminator,
			'#',
			true,
			true),
	}, nil
}

// read parses up to size lines, reusing the records buffer.
func (r *fileReader) read(ctx context.Context, size int, records [][]string) ([][]string, int, error) {
	return r.csv.Read(size, ctx, records)
}

// close releases the descriptor. The csv layer has no close of its
// own.
func (r *fileReader) close(ctx context.Context) error {
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	if err != nil {
		return moerr.NewCannotCloseFile(ctx, r.name, err.Error())
	}
	return nil
}
