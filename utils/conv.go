package utils

import (
	"bytes"
	"strings"

	"github.com/mogaika/studiomdl/config"

	"github.com/pkg/errors"
	"golang.org/x/text/transform"
)

const VALVEBIPED_PREFIX = "ValveBiped."

func BytesToString(bs []byte) string {
	n := bytes.IndexByte(bs, 0)
	if n < 0 {
		n = len(bs)
	}

	s, _, err := transform.Bytes(config.GetEncoding().NewDecoder(), bs[0:n])
	if err != nil {
		return string(bs[0:n])
	}

	return string(s)
}

// StringToBytesBuffer encodes s with the current charmap into a zero padded
// buffer of bufSize bytes. Returns an error if it does not fit.
func StringToBytesBuffer(s string, bufSize int, nilTerminate bool) ([]byte, error) {
	bs, err := StringToBytes(s, nilTerminate)
	if err != nil {
		return nil, err
	}
	if len(bs) > bufSize {
		return nil, errors.Errorf("String %q does not fit into %d bytes", s, bufSize)
	}
	r := make([]byte, bufSize)
	copy(r, bs)
	return r, nil
}

func StringToBytes(s string, nilTerminate bool) ([]byte, error) {
	bs, _, err := transform.Bytes(config.GetEncoding().NewEncoder(), []byte(s))
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to encode %q with %v", s, config.GetEncoding())
	}

	if nilTerminate {
		bs = append(bs, 0)
	}
	return bs, nil
}

// NameToBytes writes a name field. Names that do not fit lose the
// ValveBiped. prefix first and are then cut, always keeping the NUL.
func NameToBytes(s string, bufSize int) ([]byte, error) {
	bs, err := StringToBytes(s, false)
	if err != nil {
		return nil, err
	}
	if len(bs) >= bufSize && strings.HasPrefix(s, VALVEBIPED_PREFIX) {
		if bs, err = StringToBytes(strings.TrimPrefix(s, VALVEBIPED_PREFIX), false); err != nil {
			return nil, err
		}
	}
	if len(bs) >= bufSize {
		bs = bs[:bufSize-1]
	}
	r := make([]byte, bufSize)
	copy(r, bs)
	return r, nil
}

func Align(v, align int) int {
	if rem := v % align; rem != 0 {
		return v + align - rem
	}
	return v
}
