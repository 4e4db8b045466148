package main

import (
	"bufio"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/mitinsharma/serverstriker/internal/api"
	"github.com/mitinsharma/serverstriker/internal/config"
)

func prompt(reader *bufio.Reader, label string) string {
	fmt.Printf("%s: ", label)
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}

// promptSecret reads without echo when stdin is a terminal.
func promptSecret(reader *bufio.Reader, label string) string {
	fmt.Printf("%s: ", label)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		secret, err := term.ReadPassword(fd)
		fmt.Println()
		if err == nil {
			return strings.TrimSpace(string(secret))
		}
	}
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}

// loadOrEmpty returns the existing config when present so repeated
// wizard runs keep earlier answers. A config file that exists but
// cannot be used is reported before starting fresh, so earlier answers
// are never discarded silently.
func loadOrEmpty(path string, out io.Writer) config.Config {
	cfg, err := config.Load(path)
	switch {
	case err == nil:
		return cfg
	case errors.Is(err, os.ErrNotExist):
		return config.Config{}
	default:
		fmt.Fprintf(out, "⚠️ Existing config at %s cannot be used and will be replaced: %v\n", path, err)
		return config.Config{}
	}
}

func initConfig(path string) error {
	reader := bufio.NewReader(os.Stdin)
	cfg := loadOrEmpty(path, os.Stdout)

	if v := prompt(reader, "Enter server name"); v != "" {
		cfg.ServerName = v
	}
	if v := prompt(reader, "Enter webhook URL (can be blank for now)"); v != "" {
		cfg.WebhookURL = v
	}
	if v := prompt(reader, "Enter service names to check (ex: nginx,mysql)"); v != "" {
		cfg.Services = v
	}
	if v := promptSecret(reader, "Set status API password (blank to leave the API open)"); v != "" {
		hash, err := api.HashPassword(v)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		cfg.APIPasswordHash = hash
		if cfg.JWTSecret == "" {
			secret, err := randomSecret()
			if err != nil {
				return fmt.Errorf("generate token secret: %w", err)
			}
			cfg.JWTSecret = secret
		}
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.Save(path); err != nil {
		return err
	}

	fmt.Println("\n✅ ServerStriker initialized.")
	fmt.Println("\nNext steps:")
	fmt.Println("  1) (optional) serverstriker -setwebhook")
	fmt.Println("  2) sudo systemctl start serverstriker")
	fmt.Println("  3) sudo systemctl status serverstriker")
	return nil
}

func updateWebhook(path string) error {
	reader := bufio.NewReader(os.Stdin)
	cfg := loadOrEmpty(path, os.Stdout)
	cfg.WebhookURL = prompt(reader, "Enter webhook URL")
	cfg.ApplyDefaults()
	if cfg.ServerName == "" {
		cfg.ServerName = "Unknown Server"
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.Save(path); err != nil {
		return err
	}
	fmt.Println("✅ Webhook saved successfully.")
	return nil
}

func appendService(path string) error {
	reader := bufio.NewReader(os.Stdin)
	cfg := loadOrEmpty(path, os.Stdout)
	cfg.AddService(prompt(reader, "Enter service name to add (ex: nginx)"))
	cfg.ApplyDefaults()
	if cfg.ServerName == "" {
		cfg.ServerName = "Unknown Server"
	}
	if err := cfg.Save(path); err != nil {
		return err
	}
	fmt.Printf("✅ Services updated: %s\n", cfg.Services)
	return nil
}

func printConfig(path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Println("No config found. Run: serverstriker -init")
		return nil
	}
	data, err := json.MarshalIndent(cfg.Redacted(), "", "    ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
