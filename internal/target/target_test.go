package target

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseName(t *testing.T) {
	tests := []struct {
		in      string
		want    Name
		wantErr bool
	}{
		{in: "server", want: Server},
		{in: "node", want: Server},
		{in: "Client", want: Client},
		{in: " web ", want: Client},
		{in: "worker", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseName(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUnknownTarget)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestParseEnv(t *testing.T) {
	env, err := ParseEnv("dev")
	require.NoError(t, err)
	require.Equal(t, Development, env)

	env, err = ParseEnv("production")
	require.NoError(t, err)
	require.Equal(t, Production, env)

	_, err = ParseEnv("staging")
	require.ErrorIs(t, err, ErrUnknownEnv)
}

func TestTargetPlatform(t *testing.T) {
	require.Equal(t, "node", New(Server, Production).Platform())
	require.Equal(t, "web", New(Client, Development).Platform())
	require.True(t, New(Client, Development).Dev())
	require.Equal(t, "client/development", New(Client, Development).String())
}
