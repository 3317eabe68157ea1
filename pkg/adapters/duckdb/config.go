package duckdb

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/leapstack-labs/sqlsandbox/pkg/core"
)

// Params holds DuckDB-specific configuration.
// Parsed from adapter.Config.Params using mapstructure.
type Params struct {
	// Extensions to install and load (e.g., "json", "parquet", "httpfs")
	Extensions []string `mapstructure:"extensions"`

	// Secrets for reading course datasets from cloud storage
	Secrets []SecretConfig `mapstructure:"secrets"`

	// Settings to apply at session level (e.g., memory_limit, threads)
	Settings map[string]string `mapstructure:"settings"`
}

// SecretConfig defines a DuckDB secret for cloud storage.
type SecretConfig struct {
	// Type: "s3", "gcs", "azure", "r2", "huggingface"
	Type string `mapstructure:"type"`

	// Provider: "config", "credential_chain", "service_account", etc.
	Provider string `mapstructure:"provider"`

	// Region for S3 buckets
	Region string `mapstructure:"region,omitempty"`

	// Scope limits the secret to specific paths (string or []string)
	Scope any `mapstructure:"scope,omitempty"`

	// KeyID for explicit credentials (prefer credential_chain)
	KeyID string `mapstructure:"key_id,omitempty"`

	// Secret for explicit credentials (prefer credential_chain)
	Secret string `mapstructure:"secret,omitempty"`

	// Endpoint for S3-compatible services (MinIO, etc.)
	Endpoint string `mapstructure:"endpoint,omitempty"`

	// URLStyle: "vhost" or "path" for S3
	URLStyle string `mapstructure:"url_style,omitempty"`

	// UseSSL: whether to use HTTPS (default true)
	UseSSL *bool `mapstructure:"use_ssl,omitempty"`
}

var settingName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ParseParams decodes raw bundle params into Params.
func ParseParams(raw map[string]any) (*Params, error) {
	params := &Params{}
	if len(raw) == 0 {
		return params, nil
	}
	if err := mapstructure.Decode(raw, params); err != nil {
		return nil, fmt.Errorf("invalid duckdb params: %w", err)
	}
	return params, nil
}

// Statements returns the setup statements for the sandbox connection:
// extensions first, then secrets, then settings in key order.
func (p *Params) Statements() ([]string, error) {
	var stmts []string

	for _, ext := range p.Extensions {
		if !settingName.MatchString(ext) {
			return nil, fmt.Errorf("invalid extension name %q", ext)
		}
		stmts = append(stmts, "INSTALL "+ext, "LOAD "+ext)
	}

	for i, s := range p.Secrets {
		stmt, err := s.statement()
		if err != nil {
			return nil, fmt.Errorf("secret %d: %w", i, err)
		}
		stmts = append(stmts, stmt)
	}

	keys := make([]string, 0, len(p.Settings))
	for k := range p.Settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !settingName.MatchString(k) {
			return nil, fmt.Errorf("invalid setting name %q", k)
		}
		stmts = append(stmts, fmt.Sprintf("SET %s = %s", k, core.QuoteString(p.Settings[k])))
	}

	return stmts, nil
}

func (s SecretConfig) statement() (string, error) {
	if !settingName.MatchString(s.Type) {
		return "", fmt.Errorf("invalid secret type %q", s.Type)
	}

	opts := []string{"TYPE " + s.Type}
	if s.Provider != "" {
		if !settingName.MatchString(s.Provider) {
			return "", fmt.Errorf("invalid secret provider %q", s.Provider)
		}
		opts = append(opts, "PROVIDER "+s.Provider)
	}
	for _, kv := range []struct{ key, val string }{
		{"REGION", s.Region},
		{"KEY_ID", s.KeyID},
		{"SECRET", s.Secret},
		{"ENDPOINT", s.Endpoint},
		{"URL_STYLE", s.URLStyle},
	} {
		if kv.val != "" {
			opts = append(opts, kv.key+" "+core.QuoteString(kv.val))
		}
	}
	if s.UseSSL != nil {
		opts = append(opts, fmt.Sprintf("USE_SSL %t", *s.UseSSL))
	}

	switch scope := s.Scope.(type) {
	case nil:
	case string:
		opts = append(opts, "SCOPE "+core.QuoteString(scope))
	case []any:
		for _, v := range scope {
			str, ok := v.(string)
			if !ok {
				return "", fmt.Errorf("scope entries must be strings, got %T", v)
			}
			opts = append(opts, "SCOPE "+core.QuoteString(str))
		}
	case []string:
		for _, str := range scope {
			opts = append(opts, "SCOPE "+core.QuoteString(str))
		}
	default:
		return "", fmt.Errorf("scope must be a string or list, got %T", s.Scope)
	}

	return "CREATE SECRET (" + strings.Join(opts, ", ") + ")", nil
}
