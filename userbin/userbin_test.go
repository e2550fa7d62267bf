package userbin_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"os161/test"
	"os161/userbin"
)

func TestPrograms(t *testing.T) {
	ts := test.NewTstate(t)
	for _, tc := range []struct {
		argv []string
		code int
	}{
		{[]string{userbin.TRUE}, 0},
		{[]string{userbin.FALSE}, 1},
		{[]string{userbin.EXITCODE, "17"}, 17},
		{[]string{userbin.EXITCODE}, userbin.EARGS},
		{[]string{userbin.FORKTEST}, userbin.OK},
		{[]string{userbin.FORKTEST, "0"}, userbin.OK},
		{[]string{userbin.WAITTEST}, userbin.OK},
		{[]string{userbin.ARGTEST, "x", "y", "z"}, 4},
		{[]string{userbin.ORPHAN}, userbin.OK},
		{[]string{userbin.EXECTEST, userbin.EXITCODE, "5"}, 5},
		{[]string{userbin.EXECTEST, "/bin/none"}, userbin.EEXEC},
		{[]string{userbin.EXECTEST, userbin.BADBINARY}, userbin.EEXEC},
		{[]string{userbin.FORKBOMB, "10"}, 10},
	} {
		st, err := ts.RunProgram(tc.argv[0], tc.argv)
		assert.Nil(t, err, "%v", tc.argv)
		assert.True(t, st.IfExited())
		assert.Equal(t, tc.code, st.ExitStatus(), "%v", tc.argv)
	}
	ts.Shutdown()
}

func TestBadBinary(t *testing.T) {
	ts := test.NewTstate(t)
	_, err := ts.RunProgram(userbin.BADBINARY, []string{userbin.BADBINARY})
	assert.NotNil(t, err)
	ts.Shutdown()
}
