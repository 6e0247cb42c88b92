package environment

import (
	"context"

	"github.com/wippyai/sz-runtime/native"
)

// Product is the product information hub.
type Product struct {
	caller
}

// GetVersion returns the native library's version document.
func (p *Product) GetVersion(ctx context.Context) (string, error) {
	return p.text(ctx, func(api native.API) native.StringResult {
		return api.ProductVersion()
	})
}

// GetLicense returns the active license document.
func (p *Product) GetLicense(ctx context.Context) (string, error) {
	return p.text(ctx, func(api native.API) native.StringResult {
		return api.ProductLicense()
	})
}
