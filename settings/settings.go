// Package settings handles the engine settings document.
//
// The settings document is the JSON blob handed to the native engine at
// initialization. It names the installation paths and the repository
// database connection:
//
//	{
//	  "PIPELINE": {
//	    "CONFIGPATH": "/etc/opt/senzing",
//	    "RESOURCEPATH": "/opt/senzing/er/resources",
//	    "SUPPORTPATH": "/opt/senzing/data"
//	  },
//	  "SQL": {"CONNECTION": "sqlite3://na:na@/tmp/sz.db"}
//	}
//
// The document may carry additional sections; only the ones above are
// validated here.
package settings

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/wippyai/sz-runtime/errors"
)

// EnvConfigurationJSON optionally carries a complete settings document,
// overriding any locally built one.
const EnvConfigurationJSON = "SENZING_ENGINE_CONFIGURATION_JSON"

// Standard installation paths used when building documents locally.
const (
	DefaultConfigPath   = "/etc/opt/senzing"
	DefaultResourcePath = "/opt/senzing/er/resources"
	DefaultSupportPath  = "/opt/senzing/data"
)

// Document is a parsed settings document
type Document struct {
	Pipeline Pipeline `json:"PIPELINE"`
	SQL      SQL      `json:"SQL"`
}

// Pipeline names the engine installation paths
type Pipeline struct {
	ConfigPath   string `json:"CONFIGPATH"`
	ResourcePath string `json:"RESOURCEPATH"`
	SupportPath  string `json:"SUPPORTPATH"`
}

// SQL names the repository database connection
type SQL struct {
	Connection string `json:"CONNECTION"`
}

// New returns a document with the standard installation paths and the given
// database connection
func New(connection string) *Document {
	return &Document{
		Pipeline: Pipeline{
			ConfigPath:   DefaultConfigPath,
			ResourcePath: DefaultResourcePath,
			SupportPath:  DefaultSupportPath,
		},
		SQL: SQL{Connection: connection},
	}
}

// Parse decodes a raw settings document. Malformed JSON is a config error;
// missing sections are caught later by Validate.
func Parse(raw string) (*Document, error) {
	var doc Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, errors.Config("settings document is not valid JSON", err)
	}
	return &doc, nil
}

// Validate checks that the sections the engine requires are present
func (d *Document) Validate() error {
	for _, f := range []struct{ key, val string }{
		{"PIPELINE.CONFIGPATH", d.Pipeline.ConfigPath},
		{"PIPELINE.RESOURCEPATH", d.Pipeline.ResourcePath},
		{"PIPELINE.SUPPORTPATH", d.Pipeline.SupportPath},
		{"SQL.CONNECTION", d.SQL.Connection},
	} {
		if f.val == "" {
			return errors.Config(fmt.Sprintf("settings document is missing %s", f.key), nil)
		}
	}
	return nil
}

// String renders the document as compact JSON
func (d *Document) String() string {
	b, err := json.Marshal(d)
	if err != nil {
		return ""
	}
	return string(b)
}

// FromEnv returns the settings document from the environment variable,
// reporting whether it was set. Absence is not an error.
func FromEnv() (string, bool) {
	return os.LookupEnv(EnvConfigurationJSON)
}
