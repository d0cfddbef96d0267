// Package locator turns marketplace product URLs into product locators
// understood by the checkout API.
package locator

import (
	"regexp"

	"github.com/vitwit/x402-checkout/types"
)

// Marketplace is the locator prefix for Amazon products.
const Marketplace = "amazon"

// Tried in order; the first match wins.
var referencePatterns = []*regexp.Regexp{
	regexp.MustCompile(`/dp/([A-Z0-9]{10})(?:/|\?|$)`),
	regexp.MustCompile(`/gp/product/([A-Z0-9]{10})(?:/|\?|$)`),
}

// ExtractProductReference returns the product reference found in a
// "/dp/<REF>" or "/gp/product/<REF>" URL path.
func ExtractProductReference(url string) (types.ProductReference, error) {
	for _, re := range referencePatterns {
		if m := re.FindStringSubmatch(url); m != nil {
			return types.ProductReference(m[1]), nil
		}
	}

	return "", &types.ExtractionError{
		URL:     url,
		Message: "no product reference found",
	}
}

// BuildLocator formats a product reference as a locator. The reference is not normalized.
func BuildLocator(ref types.ProductReference) types.ProductLocator {
	return types.ProductLocator(Marketplace + ":" + string(ref))
}

// Locate extracts the product reference from url and formats it as a locator.
func Locate(url string) (types.ProductLocator, error) {
	ref, err := ExtractProductReference(url)
	if err != nil {
		return "", err
	}
	return BuildLocator(ref), nil
}
