package p2p

import (
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadExact(t *testing.T) {
	var tests = []struct {
		name    string
		sent    []byte
		want    []byte
		wantErr error
	}{
		{"full frame", Unchoke(), Unchoke(), nil},
		{"partial frame keeps its bytes", []byte{0, 0, 0}, []byte{0, 0, 0}, io.ErrUnexpectedEOF},
		{"nothing before close", nil, []byte{}, io.EOF},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			local, remote := net.Pipe()
			defer local.Close()
			go func() {
				if len(tt.sent) > 0 {
					remote.Write(tt.sent)
				}
				remote.Close()
			}()

			got, err := NewTCPPeer(local).ReadExact(ControlFrameLen)
			if tt.wantErr == nil {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, tt.wantErr)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
