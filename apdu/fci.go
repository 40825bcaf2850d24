// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package apdu

import (
	"fmt"
	"strings"

	"github.com/moov-io/bertlv"
)

// FCI template tags
const (
	tagFCI         = "6F"
	tagFCP         = "62"
	tagFMD         = "64"
	tagDFName      = "84"
	tagLabel       = "50"
	tagProprietary = "A5"
)

// FCI is the subset of the file control information a SELECT response may
// carry. Unrecognized tags are kept in Unknown.
type FCI struct {
	DFName      []byte
	Label       []byte
	Proprietary []byte
	Unknown     []bertlv.TLV
}

// ParseFCI decodes the BER-TLV body of a SELECT response. The 6F, 62 and 64
// templates are flattened; a bare list of data objects is accepted too.
func ParseFCI(data []byte) (*FCI, error) {
	packets, err := bertlv.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("apdu: decode FCI: %w", err)
	}
	fci := &FCI{}
	fci.collect(packets)
	return fci, nil
}

func (f *FCI) collect(packets []bertlv.TLV) {
	for _, p := range packets {
		switch strings.ToUpper(p.Tag) {
		case tagFCI, tagFCP, tagFMD:
			f.collect(p.TLVs)
		case tagDFName:
			f.DFName = p.Value
		case tagLabel:
			f.Label = p.Value
		case tagProprietary:
			if len(p.TLVs) > 0 {
				if enc, err := bertlv.Encode(p.TLVs); err == nil {
					f.Proprietary = enc
					continue
				}
			}
			f.Proprietary = p.Value
		default:
			f.Unknown = append(f.Unknown, p)
		}
	}
}

func (f *FCI) String() string {
	var sb strings.Builder
	if len(f.DFName) > 0 {
		_, _ = fmt.Fprintf(&sb, "DF name %X", f.DFName)
	}
	if len(f.Label) > 0 {
		if sb.Len() > 0 {
			sb.WriteString(", ")
		}
		_, _ = fmt.Fprintf(&sb, "label %q", f.Label)
	}
	if len(f.Proprietary) > 0 {
		if sb.Len() > 0 {
			sb.WriteString(", ")
		}
		_, _ = fmt.Fprintf(&sb, "proprietary %X", f.Proprietary)
	}
	if sb.Len() == 0 {
		return "(empty FCI)"
	}
	return sb.String()
}
