package erc20

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Caller performs read-only contract calls. *chain.Client satisfies it.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Metadata is the descriptive part of an ERC20 token.
type Metadata struct {
	Address  string
	Name     string
	Symbol   string
	Decimals uint8
}

// DisplayName prefers the token name and falls back to its symbol.
func (m Metadata) DisplayName() string {
	if m.Name != "" {
		return m.Name
	}
	return m.Symbol
}

// FetchMetadata reads name, symbol and decimals. Name and symbol fall back
// to the bytes32 encoding; it fails only when neither name nor symbol is
// readable.
func FetchMetadata(ctx context.Context, caller Caller, token common.Address, logger *zap.Logger) (Metadata, error) {
	meta := Metadata{Address: token.Hex()}
	if caller == nil {
		return meta, fmt.Errorf("contract caller is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	strABI, err := stringABIInstance()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 string abi: %w", err)
	}
	b32ABI, err := bytes32ABIInstance()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 bytes32 abi: %w", err)
	}

	call := func(method string, parsed abi.ABI) ([]interface{}, error) {
		data, err := parsed.Pack(method)
		if err != nil {
			return nil, fmt.Errorf("pack %s: %w", method, err)
		}
		resp, err := caller.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
		if err != nil {
			return nil, fmt.Errorf("call %s: %w", method, err)
		}
		values, err := parsed.Unpack(method, resp)
		if err != nil {
			return nil, fmt.Errorf("unpack %s: %w", method, err)
		}
		if len(values) == 0 {
			return nil, fmt.Errorf("unpack %s: empty result", method)
		}
		return values, nil
	}

	text := func(method string) (string, error) {
		values, err := call(method, strABI)
		if err == nil {
			if s, ok := values[0].(string); ok {
				return strings.TrimSpace(s), nil
			}
		}
		values, b32err := call(method, b32ABI)
		if b32err != nil {
			if err == nil {
				err = b32err
			}
			return "", err
		}
		s, ok := bytes32ToString(values[0])
		if !ok {
			return "", fmt.Errorf("%s: unsupported type %T", method, values[0])
		}
		return strings.TrimSpace(s), nil
	}

	var nameErr, symbolErr error
	meta.Name, nameErr = text("name")
	if nameErr != nil {
		logger.Debug("name call failed", zap.String("token", token.Hex()), zap.Error(nameErr))
	}
	meta.Symbol, symbolErr = text("symbol")
	if symbolErr != nil {
		logger.Debug("symbol call failed", zap.String("token", token.Hex()), zap.Error(symbolErr))
	}
	if meta.DisplayName() == "" {
		if nameErr == nil {
			nameErr = fmt.Errorf("token has an empty name and symbol")
		}
		return meta, fmt.Errorf("token %s: %w", token.Hex(), nameErr)
	}

	if values, err := call("decimals", strABI); err == nil {
		if d, ok := values[0].(uint8); ok {
			meta.Decimals = d
		}
	} else {
		logger.Debug("decimals call failed", zap.String("token", token.Hex()), zap.Error(err))
	}

	return meta, nil
}

func bytes32ToString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case [32]byte:
		return string(bytes.TrimRight(v[:], "\x00")), true
	case []byte:
		return string(bytes.TrimRight(v, "\x00")), true
	default:
		return "", false
	}
}

// ParseAddresses validates hex addresses and returns them checksummed.
func ParseAddresses(inputs []string) ([]common.Address, error) {
	addresses := make([]common.Address, 0, len(inputs))
	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if !common.IsHexAddress(input) {
			return nil, fmt.Errorf("invalid address: %s", input)
		}
		addresses = append(addresses, common.HexToAddress(input))
	}
	return addresses, nil
}
