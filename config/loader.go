package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/kbukum/batchkit/logger"
)

// FileSystem abstracts the file probing the loader performs, so tests
// can resolve against a fake tree.
type FileSystem interface {
	Exists(path string) bool
	LoadEnv(path string) error
	Getwd() (string, error)
}

// RealFileSystem is the FileSystem backed by the OS.
type RealFileSystem struct{}

func (rfs *RealFileSystem) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (rfs *RealFileSystem) LoadEnv(path string) error {
	return godotenv.Load(path)
}

func (rfs *RealFileSystem) Getwd() (string, error) {
	return os.Getwd()
}

// Resolver locates config and env files for a named binary.
type Resolver struct {
	FileSystem FileSystem
}

// ResolvedFiles holds the paths the resolver settled on. Empty strings
// mean nothing was found.
type ResolvedFiles struct {
	ConfigFile string
	EnvFile    string
}

// ResolveFiles returns explicit paths from opts when given, otherwise
// searches the standard locations.
func (cr *Resolver) ResolveFiles(serviceName string, opts LoaderConfig) ResolvedFiles {
	resolved := ResolvedFiles{ConfigFile: opts.ConfigFile, EnvFile: opts.EnvFile}
	if resolved.ConfigFile == "" {
		resolved.ConfigFile = cr.locate(serviceName, "config.yml")
	}
	if resolved.EnvFile == "" {
		resolved.EnvFile = cr.locateEnv(serviceName)
	}
	return resolved
}

// serviceNames returns the name plus its last dash segment, so
// "trainer-worker" also matches a cmd/worker layout.
func serviceNames(serviceName string) []string {
	names := []string{serviceName}
	if idx := strings.LastIndex(serviceName, "-"); idx != -1 {
		names = append(names, serviceName[idx+1:])
	}
	return names
}

// locate probes cmd/<name>, config/ and the working directory, walking
// up to two levels so binaries started from a package dir still find
// their file.
func (cr *Resolver) locate(serviceName, fileName string) string {
	var candidates []string
	for _, name := range serviceNames(serviceName) {
		for _, up := range []string{".", "..", "../.."} {
			candidates = append(candidates, fmt.Sprintf("%s/cmd/%s/%s", up, name, fileName))
		}
	}
	candidates = append(candidates,
		"./config/"+fileName,
		"../config/"+fileName,
		"./"+fileName,
	)
	for _, path := range candidates {
		if cr.FileSystem.Exists(path) {
			return path
		}
	}
	return ""
}

// locateEnv prefers a service-suffixed .env over the plain one.
func (cr *Resolver) locateEnv(serviceName string) string {
	for _, envFile := range []string{".env." + serviceName, ".env"} {
		var candidates []string
		for _, name := range serviceNames(serviceName) {
			for _, up := range []string{".", "..", "../.."} {
				candidates = append(candidates,
					fmt.Sprintf("%s/cmd/%s/%s", up, name, envFile),
					fmt.Sprintf("%s/config/%s/%s", up, name, envFile),
				)
			}
		}
		for _, up := range []string{".", "..", "../.."} {
			candidates = append(candidates,
				fmt.Sprintf("%s/config/%s", up, envFile),
				fmt.Sprintf("%s/%s", up, envFile),
			)
		}
		for _, path := range candidates {
			if cr.FileSystem.Exists(path) {
				return path
			}
		}
	}
	return ""
}

// LoaderConfig holds the loader's dependencies and file overrides.
type LoaderConfig struct {
	FileSystem FileSystem
	ConfigFile string
	EnvFile    string
}

// LoaderOption is a functional option for LoadConfig.
type LoaderOption func(*LoaderConfig)

// WithFileSystem sets a custom filesystem for the loader.
func WithFileSystem(fs FileSystem) LoaderOption {
	return func(lc *LoaderConfig) { lc.FileSystem = fs }
}

// WithConfigFile sets an explicit config file path.
func WithConfigFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.ConfigFile = path }
}

// WithEnvFile sets an explicit .env file path.
func WithEnvFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.EnvFile = path }
}

// LoadConfig fills cfg for the named service: YAML file first, then
// .env, then the process environment on top. Missing files are not an
// error; a run can be configured entirely from the environment.
func LoadConfig(serviceName string, cfg interface{}, opts ...LoaderOption) error {
	var lc LoaderConfig
	for _, opt := range opts {
		opt(&lc)
	}
	if lc.FileSystem == nil {
		lc.FileSystem = &RealFileSystem{}
	}

	resolver := &Resolver{FileSystem: lc.FileSystem}
	files := resolver.ResolveFiles(serviceName, lc)

	v := viper.New()
	if files.ConfigFile != "" && lc.FileSystem.Exists(files.ConfigFile) {
		v.SetConfigFile(files.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			logger.Warn("config file unreadable, continuing without it",
				map[string]any{"path": files.ConfigFile, logger.FieldError: err.Error()})
		}
	}

	v.AutomaticEnv()
	bindEnviron(v)

	if files.EnvFile != "" && lc.FileSystem.Exists(files.EnvFile) {
		if err := lc.FileSystem.LoadEnv(files.EnvFile); err != nil {
			logger.Warn("env file unreadable, continuing without it",
				map[string]any{"path": files.EnvFile, logger.FieldError: err.Error()})
		} else {
			// Pick up variables the .env file just introduced.
			bindEnviron(v)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("unmarshal config for %s: %w", serviceName, err)
	}
	return nil
}

// bindEnviron sets every environment variable on the viper instance
// under each nested-key spelling it could stand for.
func bindEnviron(v *viper.Viper) {
	for _, env := range os.Environ() {
		key, value, ok := strings.Cut(env, "=")
		if !ok {
			continue
		}
		for _, variant := range envKeyVariants(key) {
			v.Set(variant, value)
		}
	}
}

// envKeyVariants spells an UPPER_CASE_WITH_UNDERSCORES name as every
// nested key it could address. RUN_BATCH_SIZE yields run_batch_size,
// run.batch.size, run.batch_size and run.batch.size's flat tail forms,
// so both {run: {batch_size: ...}} and {run: {batch: {size: ...}}}
// structures bind.
func envKeyVariants(envKey string) []string {
	lower := strings.ToLower(envKey)
	parts := strings.Split(lower, "_")
	if len(parts) <= 1 {
		return []string{lower}
	}

	seen := map[string]struct{}{}
	var variants []string
	add := func(s string) {
		if _, dup := seen[s]; !dup {
			seen[s] = struct{}{}
			variants = append(variants, s)
		}
	}

	add(lower)
	add(strings.ReplaceAll(lower, "_", "."))
	// Split point between dotted prefix and underscored tail.
	for i := 1; i < len(parts); i++ {
		add(strings.Join(parts[:i], ".") + "." + strings.Join(parts[i:], "_"))
	}
	return variants
}
