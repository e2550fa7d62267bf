package vm

import (
	"bytes"
	"encoding/binary"

	"os161/serr"
)

const PTRSZ = 8

func ReadPtr(as AddrSpace, va Tva) (Tva, error) {
	b, err := as.Read(va, PTRSZ)
	if err != nil {
		return 0, err
	}
	return Tva(binary.LittleEndian.Uint64(b)), nil
}

func WritePtr(as AddrSpace, va, ptr Tva) error {
	b := make([]byte, PTRSZ)
	binary.LittleEndian.PutUint64(b, uint64(ptr))
	return as.Write(va, b)
}

func CopyoutInt32(as AddrSpace, va Tva, v int32) error {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, uint32(v))
	return as.Write(va, b)
}

func CopyinInt32(as AddrSpace, va Tva) (int32, error) {
	b, err := as.Read(va, 4)
	if err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(b)), nil
}

// CopyinStr copies a NUL-terminated string of at most max bytes,
// terminator included, out of user memory.
func CopyinStr(as AddrSpace, va Tva, max int) (string, error) {
	if va == 0 {
		return "", serr.NewErr(serr.TErrFault, va)
	}
	var buf bytes.Buffer
	for buf.Len() < max {
		b, err := as.Read(va+Tva(buf.Len()), 1)
		if err != nil {
			return "", err
		}
		if b[0] == 0 {
			return buf.String(), nil
		}
		buf.WriteByte(b[0])
	}
	return "", serr.NewErr(serr.TErrNameTooLong, va)
}

// CopyinArgv copies a NULL-terminated array of string pointers and the
// strings it points to. maxbytes bounds the total string size.
func CopyinArgv(as AddrSpace, va Tva, maxargs, maxbytes int) ([]string, error) {
	if va == 0 {
		return nil, serr.NewErr(serr.TErrFault, va)
	}
	args := make([]string, 0, 8)
	tot := 0
	for i := 0; ; i++ {
		if i > maxargs {
			return nil, serr.NewErr(serr.TErrTooBig, va)
		}
		p, err := ReadPtr(as, va+Tva(i*PTRSZ))
		if err != nil {
			return nil, err
		}
		if p == 0 {
			return args, nil
		}
		s, err := CopyinStr(as, p, maxbytes-tot)
		if err != nil {
			if serr.IsErrCode(err, serr.TErrNameTooLong) {
				return nil, serr.NewErr(serr.TErrTooBig, va)
			}
			return nil, err
		}
		tot += len(s) + 1
		args = append(args, s)
	}
}
