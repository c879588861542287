package config

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// AppConfig holds file and environment driven configuration values.
// Secrets have no defaults in code and must come from the config file or the environment.
type AppConfig struct {
	AppPort            string
	JWTSecret          string
	TokenTTLHours      int
	RateLimitPerMinute int
	AllowedOrigins     []string
	GinMode            string
	// Storage backend: json, memory, badger or mysql
	StoreBackend string
	DataDir      string
	UsersFile    string
	PostsFile    string
	SeedMockData bool
	// MySQL, only used by the mysql backend
	DatabaseURI string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	// SMTP for verification codes; an empty host logs codes instead of mailing them
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	SMTPFromName string
	SMTPTLS      bool
	// Redis for codes, token blacklist and feed cache; an empty host keeps everything in memory
	RedisHost     string
	RedisPort     int
	RedisDB       int
	RedisPassword string
	// Logging configuration
	LogLevel      string
	LogPath       string
	GinLogPath    string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool
	// Registration
	EmailSuffix         string
	CodeTTLSeconds      int
	CodeCooldownSeconds int
	PasswordScheme      string
	PBKDF2Iterations    int
	// Per-IP registration throttling; zero disables a check
	RegisterCooldownSec    int
	RegisterMaxPerIPPerDay int
	// Image captcha in front of send-code
	RegisterCaptchaEnabled bool
	CaptchaTTLSeconds      int
	// Forum
	HotPostThreshold float64
	DefaultPageSize  int
	ViewFlushSeconds int
	// Admins by student id
	AdminStudentIDs []string
}

var cfg AppConfig
var loaded bool

// DefaultPath is where Load looks for the config file.
var DefaultPath = filepath.Join("config", "config.json")

// Load loads the application configuration once during boot.
func Load() AppConfig {
	if loaded {
		return cfg
	}
	c, err := LoadFrom(DefaultPath)
	if err != nil {
		log.Fatalf("invalid config file %s: %v", DefaultPath, err)
	}
	if c.JWTSecret == "" {
		log.Fatal("JWT_SECRET must be set in environment variables")
	}
	cfg = c
	loaded = true
	return cfg
}

// LoadFrom builds a configuration with precedence file -> defaults -> environment.
// A missing file is not an error.
func LoadFrom(path string) (AppConfig, error) {
	var c AppConfig
	if err := loadJSONConfig(path, &c); err != nil {
		return AppConfig{}, err
	}
	applyDefaults(&c)
	applyEnvOverrides(&c)
	return c, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// loadJSONConfig reads the grouped JSON file into out if present.
func loadJSONConfig(path string, out *AppConfig) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	defer f.Close()

	var raw map[string]any
	if err := json.NewDecoder(f).Decode(&raw); err != nil {
		return err
	}

	getString := func(m map[string]any, key string) string {
		if v, ok := m[key]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
		return ""
	}
	getInt := func(m map[string]any, key string) int {
		if v, ok := m[key]; ok {
			switch t := v.(type) {
			case float64:
				return int(t)
			case int:
				return t
			}
		}
		return 0
	}
	getFloat := func(m map[string]any, key string) float64 {
		if v, ok := m[key].(float64); ok {
			return v
		}
		return 0
	}
	getBool := func(m map[string]any, key string) bool {
		if v, ok := m[key]; ok {
			if b, ok := v.(bool); ok {
				return b
			}
		}
		return false
	}
	getStringSlice := func(m map[string]any, key string) []string {
		if v, ok := m[key]; ok {
			if arr, ok := v.([]any); ok {
				res := make([]string, 0, len(arr))
				for _, it := range arr {
					if s, ok := it.(string); ok {
						res = append(res, s)
					}
				}
				return res
			}
		}
		return nil
	}

	if app, ok := raw["app"].(map[string]any); ok {
		out.AppPort = getString(app, "AppPort")
		out.JWTSecret = getString(app, "JWTSecret")
		out.TokenTTLHours = getInt(app, "TokenTTLHours")
		out.RateLimitPerMinute = getInt(app, "RateLimitPerMinute")
		out.GinMode = getString(app, "GinMode")
		if list := getStringSlice(app, "AllowedOrigins"); len(list) > 0 {
			out.AllowedOrigins = list
		}
	}

	if st, ok := raw["store"].(map[string]any); ok {
		out.StoreBackend = getString(st, "Backend")
		out.DataDir = getString(st, "DataDir")
		out.UsersFile = getString(st, "UsersFile")
		out.PostsFile = getString(st, "PostsFile")
		out.SeedMockData = getBool(st, "SeedMockData")
	}

	if dbs, ok := raw["database"].(map[string]any); ok {
		out.DatabaseURI = getString(dbs, "DatabaseURI")
		out.DBHost = getString(dbs, "DBHost")
		out.DBPort = getString(dbs, "DBPort")
		out.DBUser = getString(dbs, "DBUser")
		out.DBPassword = getString(dbs, "DBPassword")
		out.DBName = getString(dbs, "DBName")
	}

	if rds, ok := raw["redis"].(map[string]any); ok {
		out.RedisHost = getString(rds, "RedisHost")
		out.RedisPort = getInt(rds, "RedisPort")
		out.RedisDB = getInt(rds, "RedisDB")
		out.RedisPassword = getString(rds, "RedisPassword")
	}

	if sm, ok := raw["smtp"].(map[string]any); ok {
		out.SMTPHost = getString(sm, "SMTPHost")
		out.SMTPPort = getInt(sm, "SMTPPort")
		out.SMTPUsername = getString(sm, "SMTPUsername")
		out.SMTPPassword = getString(sm, "SMTPPassword")
		out.SMTPFrom = getString(sm, "SMTPFrom")
		out.SMTPFromName = getString(sm, "SMTPFromName")
		out.SMTPTLS = getBool(sm, "SMTPTLS")
	}

	if lg, ok := raw["log"].(map[string]any); ok {
		out.LogLevel = getString(lg, "Level")
		out.LogPath = getString(lg, "Path")
		out.GinLogPath = getString(lg, "GinPath")
		out.LogMaxSizeMB = getInt(lg, "MaxSizeMB")
		out.LogMaxBackups = getInt(lg, "MaxBackups")
		out.LogMaxAgeDays = getInt(lg, "MaxAgeDays")
		out.LogCompress = getBool(lg, "Compress")
	}

	if rg, ok := raw["register"].(map[string]any); ok {
		out.EmailSuffix = getString(rg, "EmailSuffix")
		out.CodeTTLSeconds = getInt(rg, "CodeTTLSeconds")
		out.CodeCooldownSeconds = getInt(rg, "CodeCooldownSeconds")
		out.PasswordScheme = getString(rg, "PasswordScheme")
		out.PBKDF2Iterations = getInt(rg, "PBKDF2Iterations")
		out.RegisterCooldownSec = getInt(rg, "AttemptCooldownSec")
		out.RegisterMaxPerIPPerDay = getInt(rg, "MaxPerIPPerDay")
		out.RegisterCaptchaEnabled = getBool(rg, "CaptchaEnabled")
		out.CaptchaTTLSeconds = getInt(rg, "CaptchaTTLSeconds")
	}

	if fm, ok := raw["forum"].(map[string]any); ok {
		out.HotPostThreshold = getFloat(fm, "HotPostThreshold")
		out.DefaultPageSize = getInt(fm, "DefaultPageSize")
		out.ViewFlushSeconds = getInt(fm, "ViewFlushSeconds")
	}

	if adm, ok := raw["admin"].(map[string]any); ok {
		if list := getStringSlice(adm, "StudentIDs"); len(list) > 0 {
			out.AdminStudentIDs = list
		}
	}

	return nil
}

// applyDefaults sets sane defaults for zero-value fields.
func applyDefaults(c *AppConfig) {
	if c.AppPort == "" {
		c.AppPort = "8080"
	}
	if c.TokenTTLHours == 0 {
		c.TokenTTLHours = 72
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = 60
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.GinMode == "" {
		c.GinMode = "release"
	}
	if c.StoreBackend == "" {
		c.StoreBackend = "json"
	}
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.UsersFile == "" {
		c.UsersFile = "users.json"
	}
	if c.PostsFile == "" {
		c.PostsFile = "posts.json"
	}
	if c.DBHost == "" {
		c.DBHost = "127.0.0.1"
	}
	if c.DBPort == "" {
		c.DBPort = "3306"
	}
	if c.DBUser == "" {
		c.DBUser = "root"
	}
	if c.DBName == "" {
		c.DBName = "campusbbs"
	}
	if c.SMTPPort == 0 {
		c.SMTPPort = 587
	}
	if c.RedisPort == 0 {
		c.RedisPort = 6379
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogMaxSizeMB == 0 {
		c.LogMaxSizeMB = 100
	}
	if c.LogMaxBackups == 0 {
		c.LogMaxBackups = 3
	}
	if c.LogMaxAgeDays == 0 {
		c.LogMaxAgeDays = 7
	}
	if c.EmailSuffix == "" {
		c.EmailSuffix = "@buaa.edu.cn"
	}
	if c.CodeTTLSeconds == 0 {
		c.CodeTTLSeconds = 300
	}
	if c.CodeCooldownSeconds == 0 {
		c.CodeCooldownSeconds = 60
	}
	if c.PasswordScheme == "" {
		c.PasswordScheme = "bcrypt"
	}
	if c.PBKDF2Iterations == 0 {
		c.PBKDF2Iterations = 10000
	}
	if c.CaptchaTTLSeconds == 0 {
		c.CaptchaTTLSeconds = 300
	}
	if c.HotPostThreshold == 0 {
		c.HotPostThreshold = 10
	}
	if c.DefaultPageSize == 0 {
		c.DefaultPageSize = 20
	}
	if c.ViewFlushSeconds == 0 {
		c.ViewFlushSeconds = 30
	}
}

// applyEnvOverrides maps known environment variables onto config values when present.
func applyEnvOverrides(c *AppConfig) {
	if v := getEnv("APP_PORT", ""); v != "" {
		c.AppPort = v
	}
	if v := getEnv("JWT_SECRET", ""); v != "" {
		c.JWTSecret = v
	}
	if v := getEnv("TOKEN_TTL_HOURS", ""); v != "" {
		c.TokenTTLHours = mustParseInt(v, c.TokenTTLHours)
	}
	if v := getEnv("RATE_LIMIT_PER_MINUTE", ""); v != "" {
		c.RateLimitPerMinute = mustParseInt(v, c.RateLimitPerMinute)
	}
	if v := getEnv("ALLOWED_ORIGINS", ""); v != "" {
		c.AllowedOrigins = splitList(v)
	}
	if v := getEnv("GIN_MODE", ""); v != "" {
		c.GinMode = v
	}
	if v := getEnv("STORE_BACKEND", ""); v != "" {
		c.StoreBackend = strings.ToLower(v)
	}
	if v := getEnv("DATA_DIR", ""); v != "" {
		c.DataDir = v
	}
	if v := getEnv("SEED_MOCK_DATA", ""); v != "" {
		c.SeedMockData = parseBool(v)
	}
	if v := getEnv("DATABASE_URI", ""); v != "" {
		c.DatabaseURI = v
	}
	if v := getEnv("DB_HOST", ""); v != "" {
		c.DBHost = v
	}
	if v := getEnv("DB_PORT", ""); v != "" {
		c.DBPort = v
	}
	if v := getEnv("DB_USER", ""); v != "" {
		c.DBUser = v
	}
	if v := getEnv("DB_PASSWORD", ""); v != "" {
		c.DBPassword = v
	}
	if v := getEnv("DB_NAME", ""); v != "" {
		c.DBName = v
	}
	if v := getEnv("SMTP_HOST", ""); v != "" {
		c.SMTPHost = v
	}
	if v := getEnv("SMTP_PORT", ""); v != "" {
		c.SMTPPort = mustParseInt(v, c.SMTPPort)
	}
	if v := getEnv("SMTP_USERNAME", ""); v != "" {
		c.SMTPUsername = v
	}
	if v := getEnv("SMTP_PASSWORD", ""); v != "" {
		c.SMTPPassword = v
	}
	if v := getEnv("SMTP_FROM", ""); v != "" {
		c.SMTPFrom = v
	}
	if v := getEnv("SMTP_FROM_NAME", ""); v != "" {
		c.SMTPFromName = v
	}
	if v := getEnv("SMTP_TLS", ""); v != "" {
		c.SMTPTLS = parseBool(v)
	}
	if v := getEnv("REDIS_HOST", ""); v != "" {
		c.RedisHost = v
	}
	if v := getEnv("REDIS_PORT", ""); v != "" {
		c.RedisPort = mustParseInt(v, c.RedisPort)
	}
	if v := getEnv("REDIS_DB", ""); v != "" {
		c.RedisDB = mustParseInt(v, c.RedisDB)
	}
	if v := getEnv("REDIS_PASSWORD", ""); v != "" {
		c.RedisPassword = v
	}
	if v := getEnv("LOG_LEVEL", ""); v != "" {
		c.LogLevel = v
	}
	if v := getEnv("LOG_PATH", ""); v != "" {
		c.LogPath = v
	}
	if v := getEnv("GIN_LOG_PATH", ""); v != "" {
		c.GinLogPath = v
	}
	if v := getEnv("EMAIL_SUFFIX", ""); v != "" {
		c.EmailSuffix = v
	}
	if v := getEnv("REGISTER_CAPTCHA_ENABLED", ""); v != "" {
		c.RegisterCaptchaEnabled = parseBool(v)
	}
	if v := getEnv("PASSWORD_SCHEME", ""); v != "" {
		c.PasswordScheme = strings.ToLower(v)
	}
	if v := getEnv("ADMIN_STUDENT_IDS", ""); v != "" {
		c.AdminStudentIDs = splitList(v)
	}
}

func mustParseInt(s string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fallback
	}
	return n
}

func parseBool(s string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	return err == nil && b
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// IsAdminStudentID reports whether id is configured as an administrator.
func (c AppConfig) IsAdminStudentID(id string) bool {
	for _, a := range c.AdminStudentIDs {
		if strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(id)) {
			return true
		}
	}
	return false
}
