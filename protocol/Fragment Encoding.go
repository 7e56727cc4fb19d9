/*
File Name:  Fragment Encoding.go

Wire layout for one fragment piece carried inside a FragmentStart/
FragmentContinue/FragmentEnd packet's payload (§4.5, C7):

	fragment_id    8B
	index          u16
	total          u16
	original_type  u8
	data           remaining bytes
*/

package protocol

import (
	"github.com/bitchat-go/core/codec"
	"github.com/bitchat-go/core/fragment"
)

// EncodeFragment serializes one fragment piece for embedding in a Packet payload.
func EncodeFragment(f *fragment.Fragment) []byte {
	w := codec.NewWriter(2 + 2 + 1 + fragment.FragmentIDSize + len(f.Data))
	w.WriteRaw(f.FragmentID[:])
	w.WriteUint16(f.Index)
	w.WriteUint16(f.Total)
	w.WriteUint8(f.OriginalType)
	w.WriteRaw(f.Data)
	return w.Bytes()
}

// DecodeFragment parses the payload produced by EncodeFragment.
func DecodeFragment(data []byte) (*fragment.Fragment, error) {
	r := codec.NewReader(data)
	f := &fragment.Fragment{}

	id, err := r.ReadBytes(fragment.FragmentIDSize)
	if err != nil {
		return nil, ErrMalformedInnerMessage
	}
	copy(f.FragmentID[:], id)

	if f.Index, err = r.ReadUint16(); err != nil {
		return nil, ErrMalformedInnerMessage
	}
	if f.Total, err = r.ReadUint16(); err != nil {
		return nil, ErrMalformedInnerMessage
	}
	if f.OriginalType, err = r.ReadUint8(); err != nil {
		return nil, ErrMalformedInnerMessage
	}
	if f.Data, err = r.ReadBytes(r.Remaining()); err != nil {
		return nil, ErrMalformedInnerMessage
	}
	return f, nil
}
