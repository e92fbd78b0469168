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

package moerr

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
)

const (
	// 0 - 99 is OK.  They do not contain info, and are special handled
	// using a static instance, no alloc.
	Ok            uint16 = 0
	OkExpectedEOF uint16 = 1 // Expected End Of File
	OkExpectedEOB uint16 = 2 // Expected End of Batch
	OkMax         uint16 = 99

	// Group 1: internal errors
	ErrStart            uint16 = 20100
	ErrInternal         uint16 = 20101
	ErrNYI              uint16 = 20102
	ErrOOM              uint16 = 20103
	ErrQueryInterrupted uint16 = 20104
	ErrNotSupported     uint16 = 20105

	// Group 2: invalid input
	ErrBadConfig    uint16 = 20200
	ErrInvalidInput uint16 = 20201

	// Group 3: unexpected state and io errors
	ErrInvalidState       uint16 = 20300
	ErrFileNotFound       uint16 = 20301
	ErrFileAlreadyExists  uint16 = 20302
	ErrCannotOpenFile     uint16 = 20303
	ErrCannotCloseFile    uint16 = 20304
	ErrUnexpectedEOF      uint16 = 20305
	ErrInvalidPath        uint16 = 20306
	ErrNoSuchTable        uint16 = 20307
	ErrTableAlreadyExists uint16 = 20308
	ErrNoSuchBlock        uint16 = 20309
	ErrMySQLSource        uint16 = 20310

	// Group 4: query options and limits
	ErrUnsupportedOption     uint16 = 20400
	ErrInvalidValue          uint16 = 20401
	ErrInvalidOverflowMode   uint16 = 20402
	ErrDistinctLimitExceeded uint16 = 20403

	// ErrEnd, the max value of the error code
	ErrEnd uint16 = 65535
)

type moErrorMsgItem struct {
	errorMsgOrFormat string
}

var errorMsgRefer = map[uint16]moErrorMsgItem{
	// OK code not in this table.  They do not carry a message, as
	// they are OK -- should not leak back to the client.

	// Group 1: internal errors
	ErrStart:            {"internal error: error code start"},
	ErrInternal:         {"internal error: %s"},
	ErrNYI:              {"%s is not yet implemented"},
	ErrOOM:              {"error: out of memory"},
	ErrQueryInterrupted: {"query interrupted"},
	ErrNotSupported:     {"not supported: %s"},

	// Group 2: invalid input
	ErrBadConfig:    {"invalid configuration: %s"},
	ErrInvalidInput: {"invalid input: %s"},

	// Group 3: unexpected state or file io error
	ErrInvalidState:       {"invalid state %s"},
	ErrFileNotFound:       {"file %s is not found"},
	ErrFileAlreadyExists:  {"file %s already exists"},
	ErrCannotOpenFile:     {"cannot open file %s: %s"},
	ErrCannotCloseFile:    {"cannot close file %s: %s"},
	ErrUnexpectedEOF:      {"unexpected end of file %s"},
	ErrInvalidPath:        {"invalid file path %s"},
	ErrNoSuchTable:        {"no such table %s.%s"},
	ErrTableAlreadyExists: {"table %s already exists"},
	ErrNoSuchBlock:        {"no such block %d in table %s"},
	ErrMySQLSource:        {"mysql source %s: %s"},

	// Group 4: query options and limits
	ErrUnsupportedOption:     {"unsupported option %s"},
	ErrInvalidValue:          {"invalid value %s for option %s"},
	ErrInvalidOverflowMode:   {"invalid overflow mode %s"},
	ErrDistinctLimitExceeded: {"DISTINCT-Set size limit exceeded. Rows: %d, limit: %d. Bytes: %d, limit: %d."},

	// Group End: max value of the error code
	ErrEnd: {"internal error: end of errcode code"},
}

func newError(ctx context.Context, code uint16, args ...any) *Error {
	var err *Error
	item, has := errorMsgRefer[code]
	if !has {
		panic(NewInternalError(ctx, "not exist error code: %d", code))
	}
	if len(args) == 0 {
		err = &Error{
			code:    code,
			message: item.errorMsgOrFormat,
		}
	} else {
		err = &Error{
			code:    code,
			message: fmt.Sprintf(item.errorMsgOrFormat, args...),
		}
	}
	return err
}

type Error struct {
	code    uint16
	message string
	detail  string
}

func (e *Error) Error() string {
	return e.message
}

func (e *Error) Detail() string {
	return e.detail
}

func (e *Error) Display() string {
	if len(e.detail) == 0 {
		return e.message
	}
	return fmt.Sprintf("%s: %s", e.message, e.detail)
}

func (e *Error) ErrorCode() uint16 {
	return e.code
}

func IsMoErrCode(e error, rc uint16) bool {
	if e == nil {
		return rc == Ok
	}

	me, ok := e.(*Error)
	if !ok {
		// This is not a moerr
		return false
	}
	return me.code == rc
}

func DowncastError(e error) *Error {
	if err, ok := e.(*Error); ok {
		return err
	}
	return newError(Context(), ErrInternal, fmt.Sprintf("downcast error failed: %v", e))
}

// ConvertPanicError converts a runtime panic to internal error.
func ConvertPanicError(ctx context.Context, v interface{}) *Error {
	if e, ok := v.(*Error); ok {
		return e
	}
	return newError(ctx, ErrInternal, fmt.Sprintf("panic %v", v))
}

// ConvertGoError converts a go error into mo error.
// Note here we must return error, because nil error
// is the same as nil *Error -- Go strangeness.
func ConvertGoError(ctx context.Context, err error) error {
	// nil is nil
	if err == nil {
		return err
	}

	// already a moerr, return it as is
	if _, ok := err.(*Error); ok {
		return err
	}

	// Convert a few well known os/go error.
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		// if io.EOF reaches here, we believe it is not expected.
		return NewUnexpectedEOF(ctx, err.Error())
	}

	return NewInternalError(ctx, "convert go error to mo error %v", err)
}

func (e *Error) Succeeded() bool {
	return e.code < OkMax
}

// Special handling of OK codes.  These are not errors, but are used to
// signal different success conditions in tight loops, where we cannot
// afford to new an Error and definitely not construct call stack and do
// logging.  Note that exactly because of these, OK codes do not have
// any contextual info.  Caller can use GetOkXXX() to get the *Error,
// and the returned value can be tested with either
//
//	   if err == GetOkXXX()
//	or if moerr.IsMoErrCode(err, moerr.OkXXX)
//
// They are both fast, one with less typing and the other is consistent
// with other error code checking.
var errOkExpectedEOF = Error{OkExpectedEOF, "ExpectedEOF", ""}
var errOkExpectedEOB = Error{OkExpectedEOB, "ExpectedEOB", ""}

func GetOkExpectedEOF() *Error {
	return &errOkExpectedEOF
}

func GetOkExpectedEOB() *Error {
	return &errOkExpectedEOB
}

func NewInternalError(ctx context.Context, msg string, args ...any) *Error {
	xmsg := fmt.Sprintf(msg, args...)
	return newError(ctx, ErrInternal, xmsg)
}

func NewNYI(ctx context.Context, msg string, args ...any) *Error {
	xmsg := fmt.Sprintf(msg, args...)
	return newError(ctx, ErrNYI, xmsg)
}

func NewNotSupported(ctx context.Context, msg string, args ...any) *Error {
	xmsg := fmt.Sprintf(msg, args...)
	return newError(ctx, ErrNotSupported, xmsg)
}

func NewOOM(ctx context.Context) *Error {
	return newError(ctx, ErrOOM)
}

func NewQueryInterrupted(ctx context.Context) *Error {
	return newError(ctx, ErrQueryInterrupted)
}

func NewBadConfig(ctx context.Context, msg string, args ...any) *Error {
	xmsg := fmt.Sprintf(msg, args...)
	return newError(ctx, ErrBadConfig, xmsg)
}

func NewInvalidInput(ctx context.Context, msg string, args ...any) *Error {
	xmsg := fmt.Sprintf(msg, args...)
	return newError(ctx, ErrInvalidInput, xmsg)
}

func NewInvalidState(ctx context.Context, msg string, args ...any) *Error {
	xmsg := fmt.Sprintf(msg, args...)
	return newError(ctx, ErrInvalidState, xmsg)
}

func NewFileNotFound(ctx context.Context, f string) *Error {
	return newError(ctx, ErrFileNotFound, f)
}

func NewFileAlreadyExists(ctx context.Context, f string) *Error {
	return newError(ctx, ErrFileAlreadyExists, f)
}

func NewCannotOpenFile(ctx context.Context, f string, reason string) *Error {
	return newError(ctx, ErrCannotOpenFile, f, reason)
}

func NewCannotCloseFile(ctx context.Context, f string, reason string) *Error {
	return newError(ctx, ErrCannotCloseFile, f, reason)
}

func NewUnexpectedEOF(ctx context.Context, f string) *Error {
	return newError(ctx, ErrUnexpectedEOF, f)
}

func NewInvalidPath(ctx context.Context, f string) *Error {
	return newError(ctx, ErrInvalidPath, f)
}

func NewNoSuchTable(ctx context.Context, db, tbl string) *Error {
	return newError(ctx, ErrNoSuchTable, db, tbl)
}

func NewTableAlreadyExists(ctx context.Context, t string) *Error {
	return newError(ctx, ErrTableAlreadyExists, t)
}

func NewNoSuchBlock(ctx context.Context, id uint64, tbl string) *Error {
	return newError(ctx, ErrNoSuchBlock, id, tbl)
}

func NewMySQLSource(ctx context.Context, src string, reason string) *Error {
	return newError(ctx, ErrMySQLSource, src, reason)
}

func NewUnsupportedOption(ctx context.Context, opt string) *Error {
	return newError(ctx, ErrUnsupportedOption, opt)
}

func NewInvalidValue(ctx context.Context, val string, opt string) *Error {
	return newError(ctx, ErrInvalidValue, val, opt)
}

func NewInvalidOverflowMode(ctx context.Context, mode string) *Error {
	return newError(ctx, ErrInvalidOverflowMode, mode)
}

func NewDistinctLimitExceeded(ctx context.Context, rows, rowLimit, bytes, byteLimit uint64) *Error {
	return newError(ctx, ErrDistinctLimitExceeded, rows, rowLimit, bytes, byteLimit)
}

var contextFunc atomic.Value

func SetContextFunc(f func() context.Context) {
	contextFunc.Store(f)
}

// Context returns the default context used when the caller does not
// have one at hand.
func Context() context.Context {
	return contextFunc.Load().(func() context.Context)()
}

func init() {
	SetContextFunc(func() context.Context { return context.Background() })
}
