// keyring-gen manages WebAuth keyring files: creating them, rotating
// them, listing their contents, and backing keys up via Shamir shares or
// a passphrase-sealed export.
package main

import (
	"bufio"
	"encoding/base64"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"gopkg.in/yaml.v3"

	"github.com/oarkflow/webauth"
	"github.com/oarkflow/webauth/keyring"
	"github.com/oarkflow/webauth/logx"
)

const version = "1.0.0"

type Config struct {
	RingPath        string
	ConfigPath      string
	Lifetime        time.Duration
	Create          bool
	Rotate          bool
	List            bool
	AddKey          bool
	RemoveIndex     int
	KeySize         int
	CopyToClipboard bool
	Shares          int
	Threshold       int
	BackupPath      string
	RestorePath     string
	ExportPath      string
	ImportPath      string
	Passphrase      string
	Verbose         bool
	ShowVersion     bool
}

// fileConfig is the optional YAML config file; flags override it.
type fileConfig struct {
	Ring     string `yaml:"ring"`
	Lifetime string `yaml:"lifetime"`
	KeySize  int    `yaml:"key_size"`
}

func main() {
	config := parseFlags()

	if config.ShowVersion {
		fmt.Printf("keyring-gen v%s\n", version)
		os.Exit(0)
	}

	level := slog.LevelWarn
	if config.Verbose {
		level = slog.LevelDebug
	}
	logx.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if err := applyConfigFile(config); err != nil {
		log.Fatalf("Configuration error: %v", err)
	}
	if config.RingPath == "" {
		log.Fatal("Configuration error: no keyring file given (use -file)")
	}

	if err := run(config); err != nil {
		log.Fatalf("keyring operation failed: %v", err)
	}
}

func parseFlags() *Config {
	config := &Config{}

	flag.StringVar(&config.RingPath, "file", getEnv("WEBAUTH_KEYRING", ""), "Path to the keyring file")
	flag.StringVar(&config.RingPath, "f", getEnv("WEBAUTH_KEYRING", ""), "Path to the keyring file (shorthand)")
	flag.StringVar(&config.ConfigPath, "config", "", "Optional YAML config file")
	flag.DurationVar(&config.Lifetime, "lifetime", 30*24*time.Hour, "Key lifetime before rotation adds a fresh key")
	flag.BoolVar(&config.Create, "create", false, "Create the keyring file if it does not exist")
	flag.BoolVar(&config.Rotate, "rotate", false, "Add a fresh key when the newest key is older than -lifetime")
	flag.BoolVar(&config.List, "list", false, "List keyring entries")
	flag.BoolVar(&config.AddKey, "add", false, "Append a fresh key valid immediately")
	flag.IntVar(&config.RemoveIndex, "remove", -1, "Remove the entry at this index")
	flag.IntVar(&config.KeySize, "size", 16, "Key size in bytes for new keys (16, 24, or 32)")
	flag.BoolVar(&config.CopyToClipboard, "copy", false, "Copy the active encryption key (base64) to the clipboard")
	flag.IntVar(&config.Shares, "shares", 0, "Split the active key into this many Shamir shares")
	flag.IntVar(&config.Threshold, "threshold", 0, "Shares needed to reconstruct the key")
	flag.StringVar(&config.BackupPath, "backup", "", "Write Shamir shares to this file")
	flag.StringVar(&config.RestorePath, "restore", "", "Read Shamir shares from this file and add the key")
	flag.StringVar(&config.ExportPath, "export", "", "Write a passphrase-sealed backup of the active key")
	flag.StringVar(&config.ImportPath, "import", "", "Read a passphrase-sealed backup and add the key")
	flag.StringVar(&config.Passphrase, "passphrase", getEnv("WEBAUTH_PASSPHRASE", ""), "Passphrase for sealed export/import")
	flag.BoolVar(&config.Verbose, "verbose", false, "Enable verbose output")
	flag.BoolVar(&config.Verbose, "v", false, "Enable verbose output (shorthand)")
	flag.BoolVar(&config.ShowVersion, "version", false, "Show version information")

	flag.Parse()
	return config
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func applyConfigFile(config *Config) error {
	if config.ConfigPath == "" {
		return nil
	}
	data, err := os.ReadFile(config.ConfigPath)
	if err != nil {
		return err
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parsing %s: %v", config.ConfigPath, err)
	}
	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if config.RingPath == "" {
		config.RingPath = fc.Ring
	}
	if fc.Lifetime != "" && !set["lifetime"] {
		lifetime, err := time.ParseDuration(fc.Lifetime)
		if err != nil {
			return fmt.Errorf("parsing lifetime in %s: %v", config.ConfigPath, err)
		}
		config.Lifetime = lifetime
	}
	if fc.KeySize != 0 && !set["size"] {
		config.KeySize = fc.KeySize
	}
	return nil
}

func run(config *Config) error {
	switch {
	case config.Create || config.Rotate:
		lifetime := config.Lifetime
		if !config.Rotate {
			lifetime = 0
		}
		ring, status, err := keyring.AutoUpdate(config.RingPath, config.Create, lifetime)
		if err != nil {
			return err
		}
		fmt.Printf("%s: %s (%d entries)\n", config.RingPath, status, ring.Len())
		return finish(config, ring)

	case config.AddKey:
		ring, err := keyring.Read(config.RingPath)
		if err != nil {
			return err
		}
		key, err := webauth.NewKey(webauth.KeyTypeAES, webauth.KeySize(config.KeySize), nil)
		if err != nil {
			return err
		}
		now := webauth.Now()
		ring.Add(now, now, key)
		if err := ring.Write(config.RingPath); err != nil {
			return err
		}
		fmt.Printf("%s: added %d-bit key (%d entries)\n", config.RingPath, config.KeySize*8, ring.Len())
		return finish(config, ring)

	case config.RemoveIndex >= 0:
		ring, err := keyring.Read(config.RingPath)
		if err != nil {
			return err
		}
		if err := ring.Remove(config.RemoveIndex); err != nil {
			return err
		}
		if err := ring.Write(config.RingPath); err != nil {
			return err
		}
		fmt.Printf("%s: removed entry %d (%d entries)\n", config.RingPath, config.RemoveIndex, ring.Len())
		return nil

	case config.RestorePath != "":
		return restoreShares(config)

	case config.ImportPath != "":
		return importSealed(config)

	default:
		ring, err := keyring.Read(config.RingPath)
		if err != nil {
			return err
		}
		if config.List || !anyExport(config) {
			listRing(ring)
		}
		return finish(config, ring)
	}
}

func anyExport(config *Config) bool {
	return config.CopyToClipboard || config.BackupPath != "" || config.ExportPath != ""
}

func listRing(ring *keyring.Keyring) {
	fmt.Printf("%5s  %-20s  %-20s  %s\n", "index", "created", "valid after", "key")
	for i, entry := range ring.Entries() {
		fmt.Printf("%5d  %-20s  %-20s  AES-%d\n",
			i, formatTime(entry.Creation), formatTime(entry.ValidAfter), entry.Key.Len()*8)
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("2006-01-02 15:04:05")
}

func finish(config *Config, ring *keyring.Keyring) error {
	if !anyExport(config) {
		return nil
	}
	entry, err := ring.BestEntry(keyring.Encrypt, time.Time{})
	if err != nil {
		return err
	}
	if config.CopyToClipboard {
		encoded := base64.StdEncoding.EncodeToString(entry.Key.Data())
		if err := clipboard.WriteAll(encoded); err != nil {
			return fmt.Errorf("copying key to clipboard: %v", err)
		}
		fmt.Println("active key copied to clipboard")
	}
	if config.BackupPath != "" {
		if config.Shares < 2 || config.Threshold < 2 || config.Threshold > config.Shares {
			return fmt.Errorf("need -shares >= -threshold >= 2 for a Shamir backup")
		}
		shares, err := keyring.SplitKey(entry.Key, config.Shares, config.Threshold)
		if err != nil {
			return err
		}
		var sb strings.Builder
		for _, share := range shares {
			sb.WriteString(base64.StdEncoding.EncodeToString(share))
			sb.WriteByte('\n')
		}
		if err := os.WriteFile(config.BackupPath, []byte(sb.String()), 0600); err != nil {
			return err
		}
		fmt.Printf("wrote %d shares (threshold %d) to %s\n", config.Shares, config.Threshold, config.BackupPath)
	}
	if config.ExportPath != "" {
		if config.Passphrase == "" {
			return fmt.Errorf("sealed export requires -passphrase")
		}
		sealed, err := keyring.ExportKey(entry.Key, []byte(config.Passphrase))
		if err != nil {
			return err
		}
		if err := os.WriteFile(config.ExportPath, sealed, 0600); err != nil {
			return err
		}
		fmt.Printf("wrote sealed key backup to %s\n", config.ExportPath)
	}
	return nil
}

func restoreShares(config *Config) error {
	f, err := os.Open(config.RestorePath)
	if err != nil {
		return err
	}
	defer f.Close()
	var shares [][]byte
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		share, err := base64.StdEncoding.DecodeString(line)
		if err != nil {
			return fmt.Errorf("parsing share: %v", err)
		}
		shares = append(shares, share)
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	key, err := keyring.CombineKey(webauth.KeyTypeAES, shares)
	if err != nil {
		return err
	}
	return addRestoredKey(config, key)
}

func importSealed(config *Config) error {
	if config.Passphrase == "" {
		return fmt.Errorf("sealed import requires -passphrase")
	}
	data, err := os.ReadFile(config.ImportPath)
	if err != nil {
		return err
	}
	key, err := keyring.ImportKey(data, []byte(config.Passphrase))
	if err != nil {
		return err
	}
	return addRestoredKey(config, key)
}

func addRestoredKey(config *Config, key *webauth.Key) error {
	ring, err := keyring.Read(config.RingPath)
	if err != nil {
		return err
	}
	now := webauth.Now()
	ring.Add(now, now, key)
	if err := ring.Write(config.RingPath); err != nil {
		return err
	}
	fmt.Printf("%s: restored key (%d entries)\n", config.RingPath, ring.Len())
	return nil
}
