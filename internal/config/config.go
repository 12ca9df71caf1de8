package config // package config loads application configuration from environment variables

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration values.  Each field
// corresponds to an environment variable.  Strings for identifiers
// and secrets, ints for durations and costs.
type Config struct {
	Env  string // application environment (e.g. "dev", "prod")
	Port string // HTTP port to listen on

	DBUser string // database username
	DBPass string // database password (optional)
	DBHost string // database host address
	DBPort string // database port number
	DBName string // database name

	JWTSecret    string // secret used to sign operator JWTs
	AccessTTLMin int    // access token time-to-live in minutes
	BcryptCost   int    // bcrypt cost for password hashing

	TwilioAccountSID string // Twilio account SID
	TwilioAuthToken  string // Twilio auth token
	TwilioFrom       string // WhatsApp-enabled sender number

	RazorpayKeyID     string // Razorpay public key
	RazorpayKeySecret string // Razorpay secret
	RazorpayWebhook   string // webhook signing secret (optional)

	RabbitURL string // AMQP broker URL (optional, has a local default)

	BaseURL    string   // public base URL for payment links
	Operators  []string // WhatsApp numbers to fan confirmations out to
	Timezone   string   // venue IANA timezone, e.g. "Asia/Kolkata"
	PriceShort int64    // per-player price for short slots, rupees
	PriceLong  int64    // per-player price for long (2h) slots, rupees
}

// Load reads configuration from environment variables.  Required
// variables are enforced by must(); missing values exit with a fatal
// log message.
func Load() Config {
	return Config{
		Env:  must("APP_ENV"),
		Port: must("APP_PORT"),

		DBUser: must("DB_USER"),
		DBPass: os.Getenv("DB_PASS"), // empty allowed
		DBHost: must("DB_HOST"),
		DBPort: must("DB_PORT"),
		DBName: must("DB_NAME"),

		JWTSecret:    must("JWT_SECRET"),
		AccessTTLMin: mustInt("ACCESS_TOKEN_TTL_MIN"),
		BcryptCost:   mustInt("BCRYPT_COST"),

		TwilioAccountSID: must("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:  must("TWILIO_AUTH_TOKEN"),
		TwilioFrom:       must("TWILIO_WHATSAPP_FROM"),

		RazorpayKeyID:     must("RAZORPAY_KEY_ID"),
		RazorpayKeySecret: must("RAZORPAY_KEY_SECRET"),
		RazorpayWebhook:   os.Getenv("RAZORPAY_WEBHOOK_SECRET"),

		RabbitURL: firstEnv("RABBITMQ_URL", "AMQP_URL"),

		BaseURL:    envStr("BASE_URL", "http://localhost:8080"),
		Operators:  splitList(os.Getenv("OPERATOR_WHATSAPP")),
		Timezone:   envStr("VENUE_TIMEZONE", "Asia/Kolkata"),
		PriceShort: envInt64("PRICE_SHORT_RUPEES", 200),
		PriceLong:  envInt64("PRICE_LONG_RUPEES", 350),
	}
}

// Location resolves the configured venue timezone, falling back to
// UTC when the name does not load.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		log.Printf("config: unknown timezone %q, using UTC: %v", c.Timezone, err)
		return time.UTC
	}
	return loc
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func envInt64(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, v)
	}
	return n
}

// splitList parses a comma-separated list, trimming blanks.
func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
