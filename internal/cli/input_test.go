package cli

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetSimpleText(t *testing.T) {
	reader := bufio.NewReader(strings.NewReader("  hello world  \n"))
	var out bytes.Buffer

	got, err := GetSimpleText(reader, "Name", &out)
	require.NoError(t, err)
	require.Equal(t, "hello world", got)
	require.Contains(t, out.String(), "Name")
}

func TestGetSimpleText_EOFWithPartialLine(t *testing.T) {
	reader := bufio.NewReader(strings.NewReader("partial"))
	var out bytes.Buffer

	got, err := GetSimpleText(reader, "Name", &out)
	require.NoError(t, err)
	require.Equal(t, "partial", got)
}

func TestGetSimpleText_EmptyInputErrors(t *testing.T) {
	reader := bufio.NewReader(strings.NewReader(""))
	var out bytes.Buffer

	_, err := GetSimpleText(reader, "Name", &out)
	require.Error(t, err)
}

func TestGetPassword_UsesSeam(t *testing.T) {
	old := readPassword
	defer func() { readPassword = old }()
	readPassword = func(fd int) ([]byte, error) { return []byte("s3cret"), nil }

	var out bytes.Buffer
	got, err := GetPassword("Enter password", &out)
	require.NoError(t, err)
	require.Equal(t, "s3cret", got)
	require.Contains(t, out.String(), "Enter password")
}

func TestGetConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"Y\n", true},
		{"yes\n", true},
		{"n\n", false},
		{"whatever\n", false},
		{"\n", false},
	}

	for _, tc := range tests {
		reader := bufio.NewReader(strings.NewReader(tc.input))
		var out bytes.Buffer
		got, err := GetConfirm(reader, "Sure?", &out)
		require.NoError(t, err)
		require.Equal(t, tc.want, got, "input %q", tc.input)
	}
}
