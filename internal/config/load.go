package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

// EnvPrefix prefixes every environment variable, e.g. STOREFRONT_DATABASE_HOST.
const EnvPrefix = "STOREFRONT"

// stdinPath as a *_file value reads the secret from standard input.
const stdinPath = "@-"

// setting is one configuration key. Keys with an empty usage have no flag.
type setting struct {
	key   string
	def   any
	usage string
}

var settings = []setting{
	{"database.dsn", "", "Complete MySQL DSN (user:pass@tcp(host:port)/db)"},
	{"database.dsn_file", "", "File holding the database DSN (@- for stdin)"},
	{"database.host", "localhost", "Database host"},
	{"database.port", 3306, "Database port"},
	{"database.user", "storefront", "Database user"},
	{"database.password", "", "Database password"},
	{"database.password_file", "", "File holding the database password (@- for stdin)"},
	{"database.password_prompt", false, "Prompt for the database password on the terminal"},
	{"database.database", "storefront", "Database name"},
	{"database.tls.mode", "", "Database TLS mode: off, skip-verify, verify-ca, verify-full"},
	{"database.tls.ca_file", "", "CA bundle used to verify the database server"},
	{"database.tls.cert_file", "", "Client certificate for database mTLS"},
	{"database.tls.key_file", "", "Client key for database mTLS"},
	{"database.tls.server_name", "", "Server name expected in the database certificate"},
	{"database.pool.max_open", 25, "Maximum open database connections"},
	{"database.pool.max_idle", 5, "Maximum idle database connections"},
	{"database.pool.max_lifetime", 5 * time.Minute, "Maximum lifetime of a pooled connection"},
	{"database.connection_timeout", 60 * time.Second, "How long startup waits for the database (0 fails at once)"},
	{"database.connection_retry_interval", 2 * time.Second, "First delay between startup connection attempts"},

	{"server.port", 8080, "HTTP listen port"},
	{"server.graphql_max_depth", 8, "Deepest selection a GraphQL document may have"},
	{"server.graphiql_enabled", false, "Serve GraphiQL on GET /graphql"},
	{"server.auth.jwt_secret", "", "HS256 secret for access tokens"},
	{"server.auth.jwt_secret_file", "", "File holding the HS256 secret (@- for stdin)"},
	{"server.auth.token_ttl", 15 * time.Minute, "Lifetime of issued access tokens"},
	{"server.auth.issuer", "storefront-graphql", "iss claim of access tokens"},
	{"server.auth.audience", "", "aud claim of access tokens"},
	{"server.auth.leeway", 30 * time.Second, "Clock skew tolerated when verifying tokens"},
	{"server.auth.require_staff", true, "Only staff viewers may run catalog mutations"},
	{"server.rate_limit_enabled", false, "Apply a global HTTP rate limit"},
	{"server.rate_limit_rps", 0.0, "Global requests per second"},
	{"server.rate_limit_burst", 0, "Global burst size"},
	{"server.cors_enabled", false, "Send CORS headers"},
	{"server.cors_allowed_origins", []string{}, "Allowed CORS origins"},
	{"server.cors_allowed_methods", []string{"GET", "POST", "OPTIONS"}, "Allowed CORS methods"},
	{"server.cors_allowed_headers", []string{"Content-Type", "Authorization"}, "Allowed CORS request headers"},
	{"server.cors_expose_headers", []string{}, "CORS response headers visible to browsers"},
	{"server.cors_allow_credentials", false, "Allow credentialed CORS requests"},
	{"server.cors_max_age", 86400, "Preflight cache lifetime in seconds"},
	{"server.read_timeout", 15 * time.Second, "HTTP read timeout"},
	{"server.write_timeout", 15 * time.Second, "HTTP write timeout"},
	{"server.idle_timeout", 60 * time.Second, "HTTP idle timeout"},
	{"server.shutdown_timeout", 30 * time.Second, "Grace period for in-flight requests on shutdown"},
	{"server.health_check_timeout", 2 * time.Second, "Database ping timeout for /health"},
	{"server.tls_mode", "off", "HTTPS mode: off, auto, file"},
	{"server.tls_cert_file", "", "Certificate for tls_mode=file"},
	{"server.tls_key_file", "", "Private key for tls_mode=file"},
	{"server.tls_auto_cert_dir", ".tls", "Where tls_mode=auto keeps its generated pair"},

	{"observability.service_name", "storefront-graphql", "service.name resource attribute"},
	{"observability.service_version", "", "service.version resource attribute"},
	{"observability.environment", "development", "deployment environment (dev, staging, prod)"},
	{"observability.metrics_enabled", true, "Expose Prometheus metrics on /metrics"},
	{"observability.tracing_enabled", false, "Export traces over OTLP"},
	{"observability.trace_sample_ratio", 1.0, "Fraction of root traces sampled"},
	{"observability.logging.level", "info", "Log level: debug, info, warn, error"},
	{"observability.logging.format", "json", "Log format: json, text"},
	{"observability.logging.exports_enabled", false, "Also export logs over OTLP"},
	{"observability.otlp.endpoint", "localhost:4317", "OTLP collector endpoint"},
	{"observability.otlp.protocol", "grpc", "OTLP protocol: grpc, http/protobuf"},
	{"observability.otlp.insecure", false, "Disable TLS to the collector"},
	{"observability.otlp.tls_cert_file", "", ""},
	{"observability.otlp.tls_client_cert_file", "", ""},
	{"observability.otlp.tls_client_key_file", "", ""},
	{"observability.otlp.timeout", 10 * time.Second, "OTLP export timeout"},
	{"observability.otlp.compression", "gzip", "OTLP compression: none, gzip"},
	{"observability.otlp.retry_enabled", true, ""},
	{"observability.otlp.retry_max_attempts", 3, ""},
}

// secretSource names a secret that may instead be read from a file.
type secretSource struct {
	key, fileKey string
}

var secretSources = []secretSource{
	{key: "database.dsn", fileKey: "database.dsn_file"},
	{key: "database.password", fileKey: "database.password_file"},
	{key: "server.auth.jwt_secret", fileKey: "server.auth.jwt_secret_file"},
}

var registerFlagsOnce sync.Once

// Load reads configuration. Later sources win:
// defaults, config file, STOREFRONT_* environment, flags set on the command
// line, then secrets read from files or the terminal.
func Load() (*Config, error) {
	registerFlagsOnce.Do(func() { registerFlags(pflag.CommandLine) })
	if !pflag.Parsed() {
		pflag.Parse()
	}

	v := viper.New()
	setDefaults(v)

	cfgPath, _ := pflag.CommandLine.GetString("config")
	if err := readConfigFile(v, cfgPath); err != nil {
		return nil, err
	}

	bindEnv(v)
	bindChangedFlagsToViper(v, pflag.CommandLine)
	if err := resolveSecrets(v, promptPassword); err != nil {
		return nil, err
	}
	return decode(v)
}

func readConfigFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file %q: %w", path, err)
		}
		return nil
	}

	v.SetConfigName("storefront-graphql")
	v.SetConfigType("yaml")
	for _, dir := range []string{"/etc/storefront-graphql/", "$HOME/.storefront-graphql", "."} {
		v.AddConfigPath(dir)
	}
	err := v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if err != nil && !errors.As(err, &notFound) {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	for _, s := range settings {
		v.SetDefault(s.key, s.def)
	}
}

// bindEnv maps canonical keys (dot + snake_case) onto STOREFRONT_* variables.
func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
}

// registerFlags declares one flag per setting, named by its canonical key.
// Flag defaults are zero values; only flags the user set are bound.
func registerFlags(fs *pflag.FlagSet) {
	for _, s := range settings {
		if s.usage == "" {
			continue
		}
		switch s.def.(type) {
		case string:
			fs.String(s.key, "", s.usage)
		case int:
			fs.Int(s.key, 0, s.usage)
		case bool:
			fs.Bool(s.key, false, s.usage)
		case float64:
			fs.Float64(s.key, 0, s.usage)
		case time.Duration:
			fs.Duration(s.key, 0, s.usage)
		case []string:
			fs.StringSlice(s.key, nil, s.usage+" (comma-separated or repeated)")
		}
	}
	fs.StringP("config", "c", "", "Config file path")
}

// bindChangedFlagsToViper copies flags the user actually set into v. Flags
// that are not settings (config, version, print-schema) are skipped.
func bindChangedFlagsToViper(v *viper.Viper, fs *pflag.FlagSet) {
	known := make(map[string]bool, len(settings))
	for _, s := range settings {
		known[s.key] = true
	}
	fs.Visit(func(f *pflag.Flag) {
		if !known[f.Name] {
			return
		}
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			v.Set(f.Name, sv.GetSlice())
			return
		}
		v.Set(f.Name, f.Value.String())
	})
}

// resolveSecrets fills secrets given as file paths, then falls back to the
// terminal prompt for the database password when nothing else supplied one.
func resolveSecrets(v *viper.Viper, prompt func() (string, error)) error {
	if err := validateSingleStdinFileSource(v); err != nil {
		return err
	}

	for _, src := range secretSources {
		path := strings.TrimSpace(v.GetString(src.fileKey))
		if v.GetString(src.key) != "" || path == "" {
			continue
		}
		secret, err := readSecretFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", src.fileKey, err)
		}
		if secret == "" {
			return fmt.Errorf("%s %q is empty", src.fileKey, path)
		}
		v.Set(src.key, secret)
	}

	if v.GetString("database.password") == "" && v.GetString("database.dsn") == "" && v.GetBool("database.password_prompt") {
		pwd, err := prompt()
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		v.Set("database.password", pwd)
	}
	return nil
}

// decode unmarshals strictly so unknown keys are reported.
func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		commaListHook(),
	))
	if err := v.UnmarshalExact(&cfg, hook); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func promptPassword() (string, error) {
	fmt.Fprint(os.Stderr, "Enter database password: ")
	pwd, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}

var stdin io.Reader = os.Stdin

func readSecretFile(path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == stdinPath {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// validateSingleStdinFileSource rejects configurations where more than one
// secret would be read from the same stdin stream.
func validateSingleStdinFileSource(v *viper.Viper) error {
	var fromStdin []string
	for _, src := range secretSources {
		if strings.TrimSpace(v.GetString(src.fileKey)) == stdinPath {
			fromStdin = append(fromStdin, src.fileKey)
		}
	}
	if len(fromStdin) > 1 {
		return fmt.Errorf("only one setting may read from stdin (@-), got %s", strings.Join(fromStdin, ", "))
	}
	return nil
}

// commaListHook splits "a, b" strings (env vars, YAML scalars) into []string.
func commaListHook() mapstructure.DecodeHookFunc {
	return func(from, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.String || to != reflect.TypeOf([]string{}) {
			return data, nil
		}
		var out []string
		for _, part := range strings.Split(data.(string), ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		if out == nil {
			out = []string{}
		}
		return out, nil
	}
}
