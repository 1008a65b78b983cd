package device

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParsePool(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Pool
		wantErr bool
	}{
		{name: "plain indices", in: "0,1,2,3", want: Pool{"0", "1", "2", "3"}},
		{name: "spaces and gaps", in: " 0, ,2 ", want: Pool{"0", "2"}},
		{name: "uuid style", in: "GPU-abc,MIG-def", want: Pool{"GPU-abc", "MIG-def"}},
		{name: "single", in: "5", want: Pool{"5"}},
		{name: "empty", in: "", wantErr: true},
		{name: "only separators", in: ", ,", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePool(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestForIndexWrapsAround(t *testing.T) {
	pool := Pool{"a", "b", "c"}
	want := []string{"a", "b", "c", "a", "b", "c", "a"}
	for i, id := range want {
		require.Equal(t, id, pool.ForIndex(i))
	}
}
