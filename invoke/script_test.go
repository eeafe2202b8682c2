package invoke

import (
	"bytes"
	"encoding/base64"
	"math/big"
	"testing"

	"github.com/nucleon-labs/neoportal/rpc"
	"github.com/zeebo/assert"
)

func emitted(t *testing.T, n int64) []byte {
	t.Helper()
	var buf bytes.Buffer
	assert.NoError(t, emitInt(&buf, big.NewInt(n)))
	return buf.Bytes()
}

func TestEmitIntCompactForms(t *testing.T) {
	assert.DeepEqual(t, []byte{opPushM1}, emitted(t, -1))
	assert.DeepEqual(t, []byte{opPush0}, emitted(t, 0))
	assert.DeepEqual(t, []byte{opPush0 + 16}, emitted(t, 16))
}

func TestEmitIntSizedForms(t *testing.T) {
	assert.DeepEqual(t, []byte{opPushInt8, 17}, emitted(t, 17))
	assert.DeepEqual(t, []byte{opPushInt8, 127}, emitted(t, 127))
	// 128 does not fit a signed byte.
	assert.DeepEqual(t, []byte{opPushInt16, 0x80, 0x00}, emitted(t, 128))
	assert.DeepEqual(t, []byte{opPushInt16, 0xFE, 0xFF}, emitted(t, -2))
	assert.DeepEqual(t, []byte{opPushInt32, 0x00, 0x00, 0x01, 0x00}, emitted(t, 65536))
}

func TestEmitDataLengthPrefixes(t *testing.T) {
	var buf bytes.Buffer
	emitData(&buf, []byte("abc"))
	assert.DeepEqual(t, []byte{opPushData1, 3, 'a', 'b', 'c'}, buf.Bytes())

	buf.Reset()
	long := make([]byte, 0x100)
	emitData(&buf, long)
	got := buf.Bytes()
	assert.Equal(t, byte(opPushData2), got[0])
	assert.DeepEqual(t, []byte{0x00, 0x01}, got[1:3])
	assert.Equal(t, 3+0x100, len(got))
}

func TestBuildScriptLayout(t *testing.T) {
	script, err := BuildScript([]rpc.Invocation{{
		ScriptHash: "0xd2a4cff31913016155e38e474a2c06d08be276cf",
		Operation:  "decimals",
	}})
	assert.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(script)
	assert.NoError(t, err)

	var expected bytes.Buffer
	expected.WriteByte(opPush0)                    // zero arguments
	expected.WriteByte(opPack)                     // packed into an array
	expected.WriteByte(opPush0 + callFlagsAll)     // call flags
	emitData(&expected, []byte("decimals"))        // operation
	hashLE := []byte{0xd2, 0xa4, 0xcf, 0xf3, 0x19, 0x13, 0x01, 0x61, 0x55, 0xe3, 0x8e, 0x47, 0x4a, 0x2c, 0x06, 0xd0, 0x8b, 0xe2, 0x76, 0xcf}
	emitData(&expected, hashLE)
	expected.WriteByte(opSyscall)
	expected.Write(syscallContractCall)

	assert.DeepEqual(t, expected.Bytes(), raw)
}

func TestBuildScriptArgumentsReversed(t *testing.T) {
	script, err := BuildScript([]rpc.Invocation{{
		ScriptHash: "0xd2a4cff31913016155e38e474a2c06d08be276cf",
		Operation:  "test",
		Args: []rpc.Arg{
			{Type: rpc.ArgInteger, Value: "1"},
			{Type: rpc.ArgInteger, Value: "2"},
		},
	}})
	assert.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(script)
	assert.NoError(t, err)

	// The second argument is pushed first.
	assert.Equal(t, byte(opPush0+2), raw[0])
	assert.Equal(t, byte(opPush0+1), raw[1])
	assert.Equal(t, byte(opPush0+2), raw[2]) // arg count
	assert.Equal(t, byte(opPack), raw[3])
}

func TestBuildScriptRejectsBadInput(t *testing.T) {
	_, err := BuildScript(nil)
	assert.Error(t, err)

	_, err = BuildScript([]rpc.Invocation{{ScriptHash: "not-a-hash", Operation: "x"}})
	assert.Error(t, err)

	_, err = BuildScript([]rpc.Invocation{{
		ScriptHash: "0xd2a4cff31913016155e38e474a2c06d08be276cf",
		Operation:  "x",
		Args:       []rpc.Arg{{Type: rpc.ArgInteger, Value: "twelve"}},
	}})
	assert.Error(t, err)
}
