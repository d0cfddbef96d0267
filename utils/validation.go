package utils

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

var hexPattern = regexp.MustCompile("^[0-9a-fA-F]+$")

// ValidateAmount checks if an amount string is a valid decimal
func ValidateAmount(amount string) (*decimal.Decimal, error) {
	if amount == "" {
		return nil, fmt.Errorf("amount cannot be empty")
	}

	dec, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount format: %w", err)
	}

	if dec.IsNegative() {
		return nil, fmt.Errorf("amount cannot be negative")
	}

	return &dec, nil
}

// ValidateEVMAddress checks that address is a 0x-prefixed 20 byte hex string.
func ValidateEVMAddress(address string) error {
	if address == "" {
		return fmt.Errorf("address cannot be empty")
	}
	if !strings.HasPrefix(address, "0x") {
		return fmt.Errorf("EVM address must start with 0x")
	}
	if len(address) != 42 {
		return fmt.Errorf("EVM address must be 42 characters long")
	}
	if !isHexString(address[2:]) || !common.IsHexAddress(address) {
		return fmt.Errorf("EVM address must be valid hex")
	}
	return nil
}

// FormatAmountFromBigInt formats a big.Int amount to decimal string with specified decimals
func FormatAmountFromBigInt(amount *big.Int, decimals int) string {
	if amount == nil {
		return "0"
	}
	return decimal.NewFromBigInt(amount, -int32(decimals)).String()
}

// Helper function to check if a string is valid hexadecimal
func isHexString(s string) bool {
	return hexPattern.MatchString(s)
}
