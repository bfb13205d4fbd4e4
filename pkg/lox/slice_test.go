package lox_test

import (
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"cyberlombard/pkg/lox"
)

func TestMapErr(t *testing.T) {
	testCases := []struct {
		name    string
		input   []string
		want    []int
		wantErr bool
	}{
		{name: "all parsed", input: []string{"1", "2", "3"}, want: []int{1, 2, 3}},
		{name: "empty", input: []string{}, want: []int{}},
		{name: "stops on error", input: []string{"1", "x", "3"}, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rq := require.New(t)

			got, err := lox.MapErr(tc.input, strconv.Atoi)
			if tc.wantErr {
				var numErr *strconv.NumError
				rq.True(errors.As(err, &numErr))
				rq.Nil(got)
				return
			}

			rq.NoError(err)
			rq.Equal(tc.want, got)
		})
	}
}
