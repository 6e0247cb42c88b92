package environment

import (
	"context"
	"encoding/json"

	"github.com/wippyai/sz-runtime/errors"
	"github.com/wippyai/sz-runtime/native"
)

// Config is an editable configuration document behind an opaque native
// handle. Documents are created through the ConfigManager hub, mutated in
// memory, exported to JSON and persisted via RegisterConfig; nothing touches
// the repository until then.
//
// A Config is not safe for concurrent use. Close releases the native handle
// and is idempotent; every other method fails on a closed document.
type Config struct {
	caller
	id     uintptr
	closed bool
}

func newConfig(c caller, h uintptr) *Config {
	return &Config{caller: c, id: h}
}

func (c *Config) live() error {
	if c.closed {
		return errors.NotReady("config document")
	}
	return nil
}

// RegisterDataSource adds a data source code to the document, reporting true
// when it was newly added and false when the code was already present.
// Repeated registration is not an error and leaves a single entry.
func (c *Config) RegisterDataSource(ctx context.Context, code string) (bool, error) {
	if err := c.live(); err != nil {
		return false, err
	}
	input, err := dataSourceInputJSON(code)
	if err != nil {
		return false, err
	}

	// Look-then-register runs as one serialized unit so the added report
	// stays truthful when other callers share the native handle.
	added := false
	callErr := c.handle.Call(ctx, func(api native.API) error {
		registry := api.ConfigGetDataSourceRegistry(c.id)
		if err := c.handle.Check(c.sub, registry.ReturnCode); err != nil {
			return err
		}
		codes, err := dataSourceCodes(registry.Response)
		if err != nil {
			return err
		}
		for _, existing := range codes {
			if existing == code {
				return nil
			}
		}
		res := api.ConfigRegisterDataSource(c.id, input)
		if err := c.handle.Check(c.sub, res.ReturnCode); err != nil {
			return err
		}
		added = true
		return nil
	})
	return added, callErr
}

// UnregisterDataSource removes a data source code from the document.
// Removing a code that is not present is a no-op success.
func (c *Config) UnregisterDataSource(ctx context.Context, code string) error {
	if err := c.live(); err != nil {
		return err
	}
	input, err := dataSourceInputJSON(code)
	if err != nil {
		return err
	}
	return c.rc(ctx, func(api native.API) int64 {
		return api.ConfigUnregisterDataSource(c.id, input)
	})
}

// Export renders the document as its canonical JSON definition, suitable for
// ConfigManager.RegisterConfig. Data source order and codes survive a
// register/load round trip unchanged.
func (c *Config) Export(ctx context.Context) (string, error) {
	if err := c.live(); err != nil {
		return "", err
	}
	return c.text(ctx, func(api native.API) native.StringResult {
		return api.ConfigExport(c.id)
	})
}

// GetDataSourceRegistry returns the document's data source section as JSON.
func (c *Config) GetDataSourceRegistry(ctx context.Context) (string, error) {
	if err := c.live(); err != nil {
		return "", err
	}
	return c.text(ctx, func(api native.API) native.StringResult {
		return api.ConfigGetDataSourceRegistry(c.id)
	})
}

// Close releases the native config handle. Close is idempotent, and closing
// after the owning Environment was destroyed is a no-op success since the
// teardown already released every document handle.
func (c *Config) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if c.handle.IsDestroyed() {
		return nil
	}
	return c.rc(context.Background(), func(api native.API) int64 {
		return api.ConfigClose(c.id)
	})
}

func dataSourceInputJSON(code string) (string, error) {
	if code == "" {
		return "", errors.BadInput("data source code is empty")
	}
	out, err := json.Marshal(struct {
		Code string `json:"DSRC_CODE"`
	}{Code: code})
	if err != nil {
		return "", errors.BadInput("data source code is not encodable")
	}
	return string(out), nil
}

// dataSourceCodes pulls the DSRC_CODE values out of a registry response.
func dataSourceCodes(registryJSON string) ([]string, error) {
	var registry struct {
		DataSources []struct {
			Code string `json:"DSRC_CODE"`
		} `json:"DATA_SOURCES"`
	}
	if err := json.Unmarshal([]byte(registryJSON), &registry); err != nil {
		return nil, errors.Config("data source registry response is not valid JSON", err)
	}
	codes := make([]string, 0, len(registry.DataSources))
	for _, ds := range registry.DataSources {
		codes = append(codes, ds.Code)
	}
	return codes, nil
}
