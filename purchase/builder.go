// Package purchase assembles validated purchase requests for the checkout API
// from loosely structured buyer input.
package purchase

import (
	"strings"

	"github.com/vitwit/x402-checkout/types"
	"github.com/vitwit/x402-checkout/utils"
)

const addressSeparator = ", "

// ParseAddress parses a single-line address of the form
// "Name, Street, City, State ZIP[, Country]".
//
// The name segment is ignored. State and postal code are the first and second
// space separated tokens of the fourth segment and are not checked further.
// A missing country defaults to US; any other country is rejected.
func ParseAddress(line string) (*types.PostalAddress, error) {
	parts := strings.Split(line, addressSeparator)
	if len(parts) < 4 {
		return nil, &types.AddressFormatError{Address: line, Parts: len(parts)}
	}

	var state, postalCode string
	stateZip := strings.Split(parts[3], " ")
	state = stateZip[0]
	if len(stateZip) > 1 {
		postalCode = stateZip[1]
	}

	country := types.CountryUS
	if len(parts) > 4 {
		country = parts[4]
	}
	if country != types.CountryUS {
		return nil, &types.UnsupportedCountryError{Country: country}
	}

	return &types.PostalAddress{
		Line1:      parts[1],
		City:       parts[2],
		State:      state,
		PostalCode: postalCode,
		Country:    country,
	}, nil
}

// BuildPurchaseRequest combines the buyer's contact, shipping address and the product
// locator into a single-item purchase request paid in USDC on Base by payerAddress.
func BuildPurchaseRequest(
	contact types.ContactInfo,
	addressLine string,
	locator types.ProductLocator,
	payerAddress string,
) (*types.PurchaseRequest, error) {
	addr, err := ParseAddress(addressLine)
	if err != nil {
		return nil, err
	}

	req := &types.PurchaseRequest{
		Recipient: types.Recipient{
			Email: contact.Email,
			PhysicalAddress: types.PostalAddress{
				Name:       contact.Name,
				Line1:      addr.Line1,
				City:       addr.City,
				State:      addr.State,
				PostalCode: addr.PostalCode,
				// Only US passes ParseAddress; the emitted country is always the literal.
				Country: types.CountryUS,
			},
		},
		Payment: types.Payment{
			Method:       types.PaymentMethodBase,
			Currency:     types.CurrencyUSDC,
			PayerAddress: payerAddress,
			Chain:        types.ChainBase,
			TokenAddress: types.USDCBaseAddress,
		},
		LineItems: []types.LineItem{
			{ProductLocator: locator},
		},
	}

	if err := utils.ValidateStruct(req); err != nil {
		return nil, &types.InvalidRequestError{
			Fields: utils.FieldErrors(err),
			Err:    err,
		}
	}

	return req, nil
}
