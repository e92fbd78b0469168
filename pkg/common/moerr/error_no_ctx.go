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

import "fmt"

// The NoCtx constructors are for the leaf packages that do not carry a
// context around, mostly the container and memory code.

func NewInternalErrorNoCtx(msg string, args ...any) *Error {
	xmsg := fmt.Sprintf(msg, args...)
	return newError(Context(), ErrInternal, xmsg)
}

func NewNYINoCtx(msg string, args ...any) *Error {
	xmsg := fmt.Sprintf(msg, args...)
	return newError(Context(), ErrNYI, xmsg)
}

func NewNotSupportedNoCtx(msg string, args ...any) *Error {
	xmsg := fmt.Sprintf(msg, args...)
	return newError(Context(), ErrNotSupported, xmsg)
}

func NewOOMNoCtx() *Error {
	return newError(Context(), ErrOOM)
}

func NewBadConfigNoCtx(msg string, args ...any) *Error {
	xmsg := fmt.Sprintf(msg, args...)
	return newError(Context(), ErrBadConfig, xmsg)
}

func NewInvalidInputNoCtx(msg string, args ...any) *Error {
	xmsg := fmt.Sprintf(msg, args...)
	return newError(Context(), ErrInvalidInput, xmsg)
}

func NewInvalidStateNoCtx(msg string, args ...any) *Error {
	xmsg := fmt.Sprintf(msg, args...)
	return newError(Context(), ErrInvalidState, xmsg)
}

func NewFileNotFoundNoCtx(f string) *Error {
	return newError(Context(), ErrFileNotFound, f)
}

func NewInvalidPathNoCtx(p string) *Error {
	return newError(Context(), ErrInvalidPath, p)
}

func NewUnsupportedOptionNoCtx(opt string) *Error {
	return newError(Context(), ErrUnsupportedOption, opt)
}

func NewInvalidValueNoCtx(val string, opt string) *Error {
	return newError(Context(), ErrInvalidValue, val, opt)
}
