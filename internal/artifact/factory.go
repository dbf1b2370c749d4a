package artifact

import (
	"bytes"
	"math/big"
	"reflect"
	"strconv"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

var bigIntType = reflect.TypeOf(&big.Int{})

// Factory - everything required to create a contract instance
type Factory struct {
	Name         string
	SourceName   string
	ABI          abi.ABI
	Bytecode     []byte
	BytecodeHash common.Hash
}

// NewFactory -
func NewFactory(a Artifact) (*Factory, error) {
	if !a.IsLinked() {
		return nil, errors.Wrap(ErrUnlinked, a.ContractName)
	}
	if a.Bytecode == "" || a.Bytecode == "0x" {
		return nil, errors.Wrap(ErrNoBytecode, a.ContractName)
	}

	code, err := hexutil.Decode(a.Bytecode)
	if err != nil {
		return nil, errors.Wrapf(err, "decode bytecode of %s", a.ContractName)
	}

	parsed, err := abi.JSON(bytes.NewReader(a.ABI))
	if err != nil {
		return nil, errors.Wrapf(err, "parse abi of %s", a.ContractName)
	}

	return &Factory{
		Name:         a.ContractName,
		SourceName:   a.SourceName,
		ABI:          parsed,
		Bytecode:     code,
		BytecodeHash: crypto.Keccak256Hash(code),
	}, nil
}

// Inputs - constructor inputs, empty if the contract declares no constructor
func (f *Factory) Inputs() abi.Arguments {
	return f.ABI.Constructor.Inputs
}

// PackConstructor - ABI-encoded constructor arguments which are appended to the creation bytecode
func (f *Factory) PackConstructor(args ...any) ([]byte, error) {
	if len(args) != len(f.Inputs()) {
		return nil, errors.Wrapf(ErrArgumentCount, "%s: want %d, got %d", f.Name, len(f.Inputs()), len(args))
	}
	return f.ABI.Pack("", args...)
}

// DeployData - creation bytecode followed by encoded constructor arguments
func (f *Factory) DeployData(args ...any) ([]byte, error) {
	packed, err := f.PackConstructor(args...)
	if err != nil {
		return nil, err
	}
	data := make([]byte, 0, len(f.Bytecode)+len(packed))
	data = append(data, f.Bytecode...)
	return append(data, packed...), nil
}

// CoerceArgs - converts textual arguments into values of the constructor input types
func (f *Factory) CoerceArgs(values []string) ([]any, error) {
	inputs := f.Inputs()
	if len(values) != len(inputs) {
		return nil, errors.Wrapf(ErrArgumentCount, "%s: want %d, got %d", f.Name, len(inputs), len(values))
	}

	args := make([]any, len(values))
	for i := range values {
		value, err := Coerce(inputs[i].Type, values[i])
		if err != nil {
			return nil, errors.Wrapf(err, "%s argument #%d (%s)", f.Name, i, inputs[i].Name)
		}
		args[i] = value
	}
	return args, nil
}

// Coerce - converts a string into the Go value go-ethereum expects for the ABI type
func Coerce(typ abi.Type, value string) (any, error) {
	switch typ.T {
	case abi.AddressTy:
		if !common.IsHexAddress(value) {
			return nil, errors.Wrapf(ErrInvalidArgument, "address %q", value)
		}
		return common.HexToAddress(value), nil

	case abi.BoolTy:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidArgument, "bool %q", value)
		}
		return b, nil

	case abi.StringTy:
		return value, nil

	case abi.BytesTy:
		b, err := hexutil.Decode(value)
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidArgument, "bytes %q", value)
		}
		return b, nil

	case abi.FixedBytesTy:
		b, err := hexutil.Decode(value)
		if err != nil || len(b) > typ.Size {
			return nil, errors.Wrapf(ErrInvalidArgument, "%s %q", typ.String(), value)
		}
		arr := reflect.New(typ.GetType()).Elem()
		reflect.Copy(arr, reflect.ValueOf(b))
		return arr.Interface(), nil

	case abi.IntTy, abi.UintTy:
		return coerceInteger(typ, value)
	}

	return nil, errors.Wrap(ErrUnsupportedType, typ.String())
}

func coerceInteger(typ abi.Type, value string) (any, error) {
	n, ok := new(big.Int).SetString(value, 0)
	if !ok {
		return nil, errors.Wrapf(ErrInvalidArgument, "%s %q", typ.String(), value)
	}

	if typ.T == abi.UintTy {
		if n.Sign() < 0 || n.BitLen() > typ.Size {
			return nil, errors.Wrapf(ErrInvalidArgument, "%s out of range: %s", typ.String(), value)
		}
	} else {
		limit := new(big.Int).Lsh(big.NewInt(1), uint(typ.Size-1))
		lower := new(big.Int).Neg(limit)
		if n.Cmp(lower) < 0 || n.Cmp(limit) >= 0 {
			return nil, errors.Wrapf(ErrInvalidArgument, "%s out of range: %s", typ.String(), value)
		}
	}

	rt := typ.GetType()
	if rt == bigIntType {
		return n, nil
	}

	v := reflect.New(rt).Elem()
	if typ.T == abi.UintTy {
		v.SetUint(n.Uint64())
	} else {
		v.SetInt(n.Int64())
	}
	return v.Interface(), nil
}
