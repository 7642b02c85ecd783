// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package status

import (
	"io"
	"mime"
	"strings"

	"github.com/ugorji/go/codec"
)

// Format indicates which encoding is desired
type Format int

const (
	JSON Format = iota
	Msgpack
)

const (
	JSONContentType    = "application/json"
	MsgpackContentType = "application/msgpack"
)

var (
	// handles contains the codec.Handle for each Format, in order
	handles = []codec.Handle{
		&codec.JsonHandle{
			BasicHandle: codec.BasicHandle{
				TypeInfos: codec.NewTypeInfos([]string{"json"}),
			},
		},
		&codec.MsgpackHandle{
			BasicHandle: codec.BasicHandle{
				TypeInfos: codec.NewTypeInfos([]string{"json"}),
			},
			WriteExt: true,
		},
	}

	contentTypes = []string{JSONContentType, MsgpackContentType}
)

// handle looks up the appropriate codec.Handle for this format constant.
// This method returns nil if the format value is invalid.
func (f Format) handle() codec.Handle {
	if int(f) < len(handles) {
		return handles[f]
	}

	return nil
}

func (f Format) ContentType() string {
	if int(f) < len(contentTypes) {
		return contentTypes[f]
	}

	return ""
}

// FormatFromAccept selects msgpack if the Accept header lists it, and JSON otherwise
func FormatFromAccept(accept string) Format {
	for _, part := range strings.Split(accept, ",") {
		if mediaType, _, err := mime.ParseMediaType(strings.TrimSpace(part)); err == nil {
			switch mediaType {
			case MsgpackContentType, "application/x-msgpack":
				return Msgpack
			}
		}
	}

	return JSON
}

// Encoder represents the underlying ugorji behavior used for responses
type Encoder interface {
	Encode(interface{}) error
	Reset(io.Writer)
}

// Decoder represents the underlying ugorji behavior, as used by clients of this surface
type Decoder interface {
	Decode(interface{}) error
	Reset(io.Reader)
}

func NewEncoder(output io.Writer, f Format) Encoder {
	return codec.NewEncoder(output, f.handle())
}

func NewDecoder(input io.Reader, f Format) Decoder {
	return codec.NewDecoder(input, f.handle())
}
