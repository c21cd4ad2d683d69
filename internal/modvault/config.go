package modvault

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// Config struct
type Config struct {
	Values map[string]string
}

// Load /etc/modvault.conf and apply defaults
func loadConfig(path string) (*Config, error) {
	cfg := &Config{Values: make(map[string]string)}

	// Attempt to read the file
	file, err := os.Open(path)
	if err == nil {
		defer file.Close()
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			parts := strings.SplitN(line, "=", 2)
			if len(parts) != 2 {
				continue
			}
			key := strings.TrimSpace(parts[0])
			val := strings.TrimSpace(parts[1])
			val = strings.Trim(val, `"'`)
			cfg.Values[key] = val
		}
		if err := scanner.Err(); err != nil {
			return cfg, err
		}
	}

	// Merge MODVAULT_* env overrides
	mergeEnvOverrides(cfg)

	return cfg, nil
}

// Merge MODVAULT_* env overrides
func mergeEnvOverrides(cfg *Config) {
	for _, env := range os.Environ() {
		if strings.HasPrefix(env, "MODVAULT_") {
			parts := strings.SplitN(env, "=", 2)
			if len(parts) == 2 {
				cfg.Values[parts[0]] = parts[1]
			}
		}
	}
}

func initConfig(cfg *Config) {
	destRoot = cfg.Values["MODVAULT_ROOT"]
	if destRoot == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		destRoot = filepath.Join(home, "UserSkins")
	}

	WantDebug = cfg.Values["MODVAULT_DEBUG"]
	Debug = WantDebug == "1"

	// Comma-separated allowlist override, e.g. ".dds,.blk,.tga,.txt"
	if exts := cfg.Values["MODVAULT_EXTENSIONS"]; exts != "" {
		allowedExtensions = make(map[string]bool)
		for _, e := range strings.Split(exts, ",") {
			e = strings.ToLower(strings.TrimSpace(e))
			if e == "" {
				continue
			}
			if !strings.HasPrefix(e, ".") {
				e = "." + e
			}
			allowedExtensions[e] = true
		}
	}
}
