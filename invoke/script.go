package invoke

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/nucleon-labs/neoportal/address"
	"github.com/nucleon-labs/neoportal/rpc"
	"github.com/nucleon-labs/neoportal/walleterr"
)

// NeoVM opcodes used by the script assembler.
const (
	opPushInt8   = 0x00
	opPushInt16  = 0x01
	opPushInt32  = 0x02
	opPushInt64  = 0x03
	opPushInt128 = 0x04
	opPushInt256 = 0x05
	opPushTrue   = 0x08
	opPushFalse  = 0x09
	opPushNull   = 0x0B
	opPushData1  = 0x0C
	opPushData2  = 0x0D
	opPushData4  = 0x0E
	opPushM1     = 0x0F
	opPush0      = 0x10
	opSyscall    = 0x41
	opPack       = 0xC0
)

// callFlagsAll grants the callee every permission, matching what wallets
// grant for user-approved invocations.
const callFlagsAll = 15

// syscallContractCall is the interop hash of System.Contract.Call.
var syscallContractCall = []byte{0x62, 0x7d, 0x5b, 0x52}

// BuildScript assembles the invocations into one base64 NeoVM script. For
// each invocation: arguments pushed in reverse, packed into an array, then
// call flags, operation and script hash, ending in System.Contract.Call.
func BuildScript(invocations []rpc.Invocation) (string, error) {
	if len(invocations) == 0 {
		return "", walleterr.New(walleterr.InvalidParams, "no invocations to assemble")
	}

	var buf bytes.Buffer
	for _, inv := range invocations {
		if err := emitInvocation(&buf, inv); err != nil {
			return "", err
		}
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func emitInvocation(buf *bytes.Buffer, inv rpc.Invocation) error {
	for i := len(inv.Args) - 1; i >= 0; i-- {
		if err := emitArg(buf, inv.Args[i]); err != nil {
			return fmt.Errorf("argument %d of %s: %w", i, inv.Operation, err)
		}
	}
	if err := emitInt(buf, big.NewInt(int64(len(inv.Args)))); err != nil {
		return err
	}
	buf.WriteByte(opPack)

	if err := emitInt(buf, big.NewInt(callFlagsAll)); err != nil {
		return err
	}
	emitData(buf, []byte(inv.Operation))

	raw, err := address.DecodeScriptHash(inv.ScriptHash)
	if err != nil {
		return walleterr.Wrap(walleterr.InvalidParams, "malformed script hash", err)
	}
	emitData(buf, raw)

	buf.WriteByte(opSyscall)
	buf.Write(syscallContractCall)
	return nil
}

func emitArg(buf *bytes.Buffer, arg rpc.Arg) error {
	switch arg.Type {
	case rpc.ArgAny:
		buf.WriteByte(opPushNull)
		return nil

	case rpc.ArgBoolean:
		b, ok := arg.Value.(bool)
		if !ok {
			return walleterr.New(walleterr.InvalidParams, "boolean argument requires a bool value")
		}
		if b {
			buf.WriteByte(opPushTrue)
		} else {
			buf.WriteByte(opPushFalse)
		}
		return nil

	case rpc.ArgInteger:
		n, err := argInteger(arg.Value)
		if err != nil {
			return err
		}
		return emitInt(buf, n)

	case rpc.ArgString:
		s, ok := arg.Value.(string)
		if !ok {
			return walleterr.New(walleterr.InvalidParams, "string argument requires a string value")
		}
		emitData(buf, []byte(s))
		return nil

	case rpc.ArgByteArray:
		s, ok := arg.Value.(string)
		if !ok {
			return walleterr.New(walleterr.InvalidParams, "byte array argument requires a base64 string value")
		}
		raw, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return walleterr.Wrap(walleterr.InvalidParams, "malformed base64 byte array", err)
		}
		emitData(buf, raw)
		return nil

	case rpc.ArgHash160:
		s, ok := arg.Value.(string)
		if !ok {
			return walleterr.New(walleterr.InvalidParams, "hash160 argument requires a string value")
		}
		raw, err := address.DecodeScriptHash(s)
		if err != nil {
			return walleterr.Wrap(walleterr.InvalidParams, "malformed hash160", err)
		}
		emitData(buf, raw)
		return nil
	}
	return walleterr.New(walleterr.InvalidParams, "unsupported argument type: "+arg.Type)
}

// argInteger accepts the value forms JSON decoding produces for integers.
func argInteger(v any) (*big.Int, error) {
	switch value := v.(type) {
	case string:
		n, ok := new(big.Int).SetString(value, 10)
		if !ok {
			return nil, walleterr.New(walleterr.InvalidParams, "malformed integer argument: "+value)
		}
		return n, nil
	case int:
		return big.NewInt(int64(value)), nil
	case int64:
		return big.NewInt(value), nil
	case float64:
		n, accuracy := big.NewFloat(value).Int(nil)
		if accuracy != big.Exact {
			return nil, walleterr.New(walleterr.InvalidParams, "integer argument is not a whole number")
		}
		return n, nil
	case *big.Int:
		return value, nil
	}
	return nil, walleterr.New(walleterr.InvalidParams, "unsupported integer argument value")
}

func emitData(buf *bytes.Buffer, data []byte) {
	switch {
	case len(data) < 0x100:
		buf.WriteByte(opPushData1)
		buf.WriteByte(byte(len(data)))
	case len(data) < 0x10000:
		buf.WriteByte(opPushData2)
		var size [2]byte
		binary.LittleEndian.PutUint16(size[:], uint16(len(data)))
		buf.Write(size[:])
	default:
		buf.WriteByte(opPushData4)
		var size [4]byte
		binary.LittleEndian.PutUint32(size[:], uint32(len(data)))
		buf.Write(size[:])
	}
	buf.Write(data)
}

var pushIntSizes = []struct {
	op   byte
	size int
}{
	{opPushInt8, 1},
	{opPushInt16, 2},
	{opPushInt32, 4},
	{opPushInt64, 8},
	{opPushInt128, 16},
	{opPushInt256, 32},
}

func emitInt(buf *bytes.Buffer, n *big.Int) error {
	if n.Cmp(big.NewInt(-1)) == 0 {
		buf.WriteByte(opPushM1)
		return nil
	}
	if n.Sign() >= 0 && n.Cmp(big.NewInt(16)) <= 0 {
		buf.WriteByte(opPush0 + byte(n.Int64()))
		return nil
	}
	for _, candidate := range pushIntSizes {
		if fitsSigned(n, candidate.size) {
			buf.WriteByte(candidate.op)
			buf.Write(signedLittleEndian(n, candidate.size))
			return nil
		}
	}
	return walleterr.New(walleterr.InvalidParams, "integer argument out of range")
}

func fitsSigned(n *big.Int, size int) bool {
	bound := new(big.Int).Lsh(big.NewInt(1), uint(size*8-1))
	upper := new(big.Int).Sub(bound, big.NewInt(1))
	lower := new(big.Int).Neg(bound)
	return n.Cmp(lower) >= 0 && n.Cmp(upper) <= 0
}

// signedLittleEndian encodes n as size bytes of little-endian two's
// complement.
func signedLittleEndian(n *big.Int, size int) []byte {
	v := new(big.Int).Set(n)
	if v.Sign() < 0 {
		modulus := new(big.Int).Lsh(big.NewInt(1), uint(size*8))
		v.Add(v, modulus)
	}
	be := v.Bytes()
	out := make([]byte, size)
	for i, b := range be {
		out[len(be)-1-i] = b
	}
	return out
}
