package config

import (
	"errors"
	"flag"
	"net"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr        string
	BaseURL     string
	DBUrl       string
	TokenSecret string
	TokenTTL    time.Duration
	Lang        string
	Debug       bool
	Seed        bool
}

// ParseFlags reads an optional .env file, then the process flags.
func ParseFlags() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, err
	}
	return ParseArgs(os.Args[1:])
}

// ParseArgs parses args; every flag falls back to a NEWSROOM_* environment variable.
func ParseArgs(args []string) (cfg Config, err error) {
	fs := flag.NewFlagSet("newsroom-forms", flag.ContinueOnError)

	var host string
	fs.StringVar(&host, "host", env("NEWSROOM_HOST", "0.0.0.0"), "listen host name")
	var port uint
	fs.UintVar(&port, "port", envUint("NEWSROOM_PORT", 80), "listen port number")
	fs.StringVar(&cfg.BaseURL, "base-url", env("NEWSROOM_BASE_URL", ""), "absolute URL used in exported links (default derived from host and port)")
	fs.StringVar(&cfg.DBUrl, "db-url", env("NEWSROOM_DB_URL", "newsroom.sqlite"), "path to SQLite3 DB file")
	fs.StringVar(&cfg.TokenSecret, "token-secret", env("NEWSROOM_TOKEN_SECRET", ""), "secret key for token encryption and decryption")
	var ttl uint
	fs.UintVar(&ttl, "token-ttl", envUint("NEWSROOM_TOKEN_TTL", 3600), "token TTL in seconds")
	fs.StringVar(&cfg.Lang, "lang", env("NEWSROOM_LANG", "en"), "language used when rendering responses")
	fs.BoolVar(&cfg.Debug, "debug", env("NEWSROOM_DEBUG", "") != "", "log at DEBUG level")
	fs.BoolVar(&cfg.Seed, "seed", false, "populate the database with example investigations and exit")
	if err = fs.Parse(args); err != nil {
		return
	}

	cfg.Addr = net.JoinHostPort(host, strconv.Itoa(int(port)))
	cfg.TokenTTL = time.Duration(ttl) * time.Second
	if cfg.BaseURL == "" {
		cfg.BaseURL = cfg.Url()
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")

	if cfg.TokenSecret == "" {
		err = errors.New("missing parameter -token-secret")
	}

	return
}

func (cfg Config) Url() (url string) {
	url = cfg.Addr
	url = regexp.MustCompile(`^0.0.0.0`).ReplaceAllString(url, "localhost")
	url = "http://" + url
	return
}

func env(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func envUint(key string, fallback uint) uint {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return fallback
	}
	return uint(n)
}
