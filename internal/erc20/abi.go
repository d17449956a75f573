package erc20

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

var (
	stringABI     abi.ABI
	stringABIOnce sync.Once
	stringABIErr  error

	bytes32ABI     abi.ABI
	bytes32ABIOnce sync.Once
	bytes32ABIErr  error
)

// stringABIInstance holds the standard getters: name and symbol as string,
// decimals as uint8.
func stringABIInstance() (abi.ABI, error) {
	stringABIOnce.Do(func() {
		stringABI, stringABIErr = gettersABI(map[string]string{
			"name":     "string",
			"symbol":   "string",
			"decimals": "uint8",
		})
	})
	return stringABI, stringABIErr
}

// bytes32ABIInstance covers early tokens (MKR, SAI) that return bytes32
// for name and symbol.
func bytes32ABIInstance() (abi.ABI, error) {
	bytes32ABIOnce.Do(func() {
		bytes32ABI, bytes32ABIErr = gettersABI(map[string]string{
			"name":   "bytes32",
			"symbol": "bytes32",
		})
	})
	return bytes32ABI, bytes32ABIErr
}

// gettersABI builds no-argument view methods, each returning one value of
// the mapped type.
func gettersABI(getters map[string]string) (abi.ABI, error) {
	parsed := abi.ABI{Methods: make(map[string]abi.Method, len(getters))}
	for name, typeName := range getters {
		typ, err := abi.NewType(typeName, "", nil)
		if err != nil {
			return abi.ABI{}, fmt.Errorf("abi type %s for %s: %w", typeName, name, err)
		}
		parsed.Methods[name] = abi.NewMethod(name, name, abi.Function, "view", false, false, nil, abi.Arguments{{Type: typ}})
	}
	return parsed, nil
}
