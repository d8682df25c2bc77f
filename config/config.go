package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"io/fs"
	"net"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr           string
	DBUrl          string
	StorageDir     string
	PublicURL      string
	OperatorSecret string
	SessionSecret  string
	SessionTTL     time.Duration
	NotifyURL      string
	NotifyTimeout  time.Duration
	Debug          bool
}

// Load reads an optional .env file into the environment, then parses the
// command line.
func Load() (Config, error) {
	err := godotenv.Load()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, err
	}
	return Parse(os.Args[1:])
}

// Parse reads flags from args. Every flag defaults to its environment
// variable, e.g. -db-url to DB_URL.
func Parse(args []string) (cfg Config, err error) {
	flags := flag.NewFlagSet("quick-questionnaire", flag.ContinueOnError)

	var host string
	flags.StringVar(&host, "host", env("HOST", "0.0.0.0"), "listen host name")
	var port uint
	flags.UintVar(&port, "port", envUint("PORT", 80), "listen port number")
	flags.StringVar(&cfg.DBUrl, "db-url", env("DB_URL", "questionnaires.sqlite"), "path to SQLite3 DB file")
	flags.StringVar(&cfg.StorageDir, "storage-dir", env("STORAGE_DIR", "files"), "directory holding uploaded files")
	flags.StringVar(&cfg.PublicURL, "public-url", env("PUBLIC_URL", ""), "origin used in client links (default derived from -host and -port)")
	flags.StringVar(&cfg.OperatorSecret, "operator-secret", env("OPERATOR_SECRET", ""), "shared secret of the operator")
	flags.StringVar(&cfg.SessionSecret, "session-secret", env("SESSION_SECRET", ""), "key signing operator sessions (default random)")
	var ttl uint
	flags.UintVar(&ttl, "session-ttl", envUint("SESSION_TTL", 12*60*60), "operator session TTL in seconds")
	flags.StringVar(&cfg.NotifyURL, "notify-url", env("NOTIFY_URL", ""), "endpoint receiving submitted questionnaires")
	var timeout uint
	flags.UintVar(&timeout, "notify-timeout", envUint("NOTIFY_TIMEOUT", 10), "notification timeout in seconds")
	flags.BoolVar(&cfg.Debug, "debug", env("DEBUG", "") != "", "log at DEBUG level")

	if err = flags.Parse(args); err != nil {
		return
	}

	cfg.Addr = net.JoinHostPort(host, strconv.Itoa(int(port)))
	cfg.SessionTTL = time.Duration(ttl) * time.Second
	cfg.NotifyTimeout = time.Duration(timeout) * time.Second
	if cfg.PublicURL == "" {
		cfg.PublicURL = cfg.Url()
	}
	cfg.PublicURL = strings.TrimSuffix(cfg.PublicURL, "/")

	if cfg.OperatorSecret == "" {
		err = errors.New("missing parameter -operator-secret")
		return
	}
	if cfg.SessionSecret == "" {
		cfg.SessionSecret, err = randomSecret()
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
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envUint(key string, fallback uint) uint {
	n, err := strconv.ParseUint(os.Getenv(key), 10, 0)
	if err != nil {
		return fallback
	}
	return uint(n)
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
