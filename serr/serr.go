// Package serr defines the error codes returned by the process
// lifecycle calls and their mapping onto OS/161 errno values.
package serr

import (
	"errors"
	"fmt"
)

type Terror uint32

const (
	TErrNoError Terror = iota
	TErrProcLimit
	TErrNoMem
	TErrInval
	TErrNoChild
	TErrNotfound
	TErrNoExec
	TErrTooBig
	TErrFault
	TErrNameTooLong
	TErrError
)

func (err Terror) String() string {
	switch err {
	case TErrNoError:
		return "no error"
	case TErrProcLimit:
		return "process table exhausted"
	case TErrNoMem:
		return "out of memory"
	case TErrInval:
		return "invalid argument"
	case TErrNoChild:
		return "no such child"
	case TErrNotfound:
		return "file not found"
	case TErrNoExec:
		return "exec format error"
	case TErrTooBig:
		return "argument list too long"
	case TErrFault:
		return "bad address"
	case TErrNameTooLong:
		return "file name too long"
	case TErrError:
		return "generic error"
	default:
		return "unknown error"
	}
}

// OS/161 kern/errno.h values
type Terrno int

const (
	ENOSYS       Terrno = 1
	ENOMEM       Terrno = 3
	EFAULT       Terrno = 6
	ENAMETOOLONG Terrno = 7
	EINVAL       Terrno = 8
	EMPROC       Terrno = 11
	ENPROC       Terrno = 12
	ENOEXEC      Terrno = 13
	E2BIG        Terrno = 14
	ECHILD       Terrno = 16
	ENOENT       Terrno = 19
	EIO          Terrno = 32
)

func (err Terror) Errno() Terrno {
	switch err {
	case TErrNoError:
		return 0
	case TErrProcLimit:
		return EMPROC
	case TErrNoMem:
		return ENOMEM
	case TErrInval:
		return EINVAL
	case TErrNoChild:
		return ECHILD
	case TErrNotfound:
		return ENOENT
	case TErrNoExec:
		return ENOEXEC
	case TErrTooBig:
		return E2BIG
	case TErrFault:
		return EFAULT
	case TErrNameTooLong:
		return ENAMETOOLONG
	default:
		return EIO
	}
}

type Err struct {
	ErrCode Terror
	Obj     string
	Err     error
}

func NewErr(code Terror, obj interface{}) *Err {
	return &Err{code, fmt.Sprintf("%v", obj), nil}
}

func NewErrError(code Terror, obj interface{}, err error) *Err {
	return &Err{code, fmt.Sprintf("%v", obj), err}
}

func (err *Err) Code() Terror {
	return err.ErrCode
}

func (err *Err) Unwrap() error {
	return err.Err
}

func (err *Err) Error() string {
	if err.Err != nil {
		return fmt.Sprintf("%v %v: %v", err.ErrCode, err.Obj, err.Err)
	}
	return fmt.Sprintf("%v %v", err.ErrCode, err.Obj)
}

func (err *Err) String() string {
	return err.Error()
}

func (err *Err) IsErrCode(code Terror) bool {
	return err.ErrCode == code
}

// IsErrCode reports whether err, or an error it wraps, is an *Err with
// the given code.
func IsErrCode(err error, code Terror) bool {
	var serr *Err
	if errors.As(err, &serr) {
		return serr.ErrCode == code
	}
	return false
}

// Errno maps any error onto an OS/161 errno; nil maps to 0.
func Errno(err error) Terrno {
	if err == nil {
		return 0
	}
	var serr *Err
	if errors.As(err, &serr) {
		return serr.ErrCode.Errno()
	}
	return EIO
}

func (e Terrno) String() string {
	switch e {
	case 0:
		return "0"
	case ENOSYS:
		return "ENOSYS"
	case ENOMEM:
		return "ENOMEM"
	case EFAULT:
		return "EFAULT"
	case ENAMETOOLONG:
		return "ENAMETOOLONG"
	case EINVAL:
		return "EINVAL"
	case EMPROC:
		return "EMPROC"
	case ENPROC:
		return "ENPROC"
	case ENOEXEC:
		return "ENOEXEC"
	case E2BIG:
		return "E2BIG"
	case ECHILD:
		return "ECHILD"
	case ENOENT:
		return "ENOENT"
	case EIO:
		return "EIO"
	default:
		return fmt.Sprintf("errno %d", int(e))
	}
}

// Terror is the error code an errno stands for.
func (e Terrno) Terror() Terror {
	switch e {
	case 0:
		return TErrNoError
	case EMPROC, ENPROC:
		return TErrProcLimit
	case ENOMEM:
		return TErrNoMem
	case EINVAL:
		return TErrInval
	case ECHILD:
		return TErrNoChild
	case ENOENT:
		return TErrNotfound
	case ENOEXEC:
		return TErrNoExec
	case E2BIG:
		return TErrTooBig
	case EFAULT:
		return TErrFault
	case ENAMETOOLONG:
		return TErrNameTooLong
	default:
		return TErrError
	}
}

// NewErrno makes the error a user program sees for a failed system
// call; nil if errno is 0.
func NewErrno(errno Terrno, obj interface{}) error {
	if errno == 0 {
		return nil
	}
	return NewErr(errno.Terror(), obj)
}
