package relay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReencode(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"whitespace is dropped", "{ \"a\" : [ 1 , 2 ] }\n", `{"a":[1,2]}`},
		{"key order is kept", `{"z":1,"a":2,"m":3}`, `{"z":1,"a":2,"m":3}`},
		{"last duplicate wins in first position", `{"a":1,"b":0,"a":2}`, `{"a":2,"b":0}`},
		{"numbers are normalized", `[1.0,1e2,0.50,-0.0000001,1e21]`, `[1,100,0.5,-1e-7,1e+21]`},
		{"string escapes are normalized", `"A\/\t"`, `"A/\t"`},
		{"html is not escaped", `{"m":"a < b & c"}`, `{"m":"a < b & c"}`},
		{"scalars", `[true,false,null,"x"]`, `[true,false,null,"x"]`},
		{"empty containers", `{"o":{},"a":[]}`, `{"o":{},"a":[]}`},
		{"nested duplicates", `{"o":{"k":1,"k":{"x":null}}}`, `{"o":{"k":{"x":null}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := reencode([]byte(tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(out))
		})
	}
}

func TestReencodeRejectsInvalidJSON(t *testing.T) {
	for _, in := range []string{``, `  `, `{`, `{"a":1,}`, `[1,]`, `{"a" 1}`, `{"a":1} {"b":2}`, `{"a":1} x`, `not json`} {
		_, err := reencode([]byte(in))
		assert.Error(t, err, in)
	}
}
