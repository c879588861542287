package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFrom_MissingFileUsesDefaults(t *testing.T) {
	c, err := LoadFrom(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)

	assert.Equal(t, "8080", c.AppPort)
	assert.Equal(t, "json", c.StoreBackend)
	assert.Equal(t, "data", c.DataDir)
	assert.Equal(t, "users.json", c.UsersFile)
	assert.Equal(t, "@buaa.edu.cn", c.EmailSuffix)
	assert.Equal(t, 300, c.CodeTTLSeconds)
	assert.Equal(t, "bcrypt", c.PasswordScheme)
	assert.Equal(t, 10.0, c.HotPostThreshold, "matches the model's hot threshold")
	assert.Equal(t, 30, c.ViewFlushSeconds)
	assert.False(t, c.RegisterCaptchaEnabled)
	assert.Equal(t, 300, c.CaptchaTTLSeconds)
	assert.Equal(t, []string{"*"}, c.AllowedOrigins)
}

func TestLoadFrom_GroupedFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{
		"app": {"AppPort": "9000", "JWTSecret": "file-secret", "AllowedOrigins": ["http://a"]},
		"store": {"Backend": "badger", "DataDir": "/var/forum", "SeedMockData": true},
		"register": {"EmailSuffix": "@example.edu", "CodeTTLSeconds": 120, "PasswordScheme": "pbkdf2", "CaptchaEnabled": true},
		"forum": {"HotPostThreshold": 12.5},
		"admin": {"StudentIDs": ["A001", "a002"]}
	}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	t.Setenv("JWT_SECRET", "env-secret")
	t.Setenv("REDIS_PORT", "not-a-number")
	t.Setenv("ADMIN_STUDENT_IDS", "X1, X2 ,")
	t.Setenv("REGISTER_CAPTCHA_ENABLED", "")

	c, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "9000", c.AppPort)
	assert.Equal(t, "env-secret", c.JWTSecret)
	assert.Equal(t, []string{"http://a"}, c.AllowedOrigins)
	assert.Equal(t, "badger", c.StoreBackend)
	assert.Equal(t, "/var/forum", c.DataDir)
	assert.True(t, c.SeedMockData)
	assert.Equal(t, "@example.edu", c.EmailSuffix)
	assert.Equal(t, 120, c.CodeTTLSeconds)
	assert.Equal(t, "pbkdf2", c.PasswordScheme)
	assert.True(t, c.RegisterCaptchaEnabled)
	assert.Equal(t, 12.5, c.HotPostThreshold)
	assert.Equal(t, 6379, c.RedisPort)
	assert.Equal(t, []string{"X1", "X2"}, c.AdminStudentIDs)
	assert.True(t, c.IsAdminStudentID("x1"))
	assert.False(t, c.IsAdminStudentID("A001"))
}

func TestLoadFrom_CaptchaFlagFromEnv(t *testing.T) {
	t.Setenv("REGISTER_CAPTCHA_ENABLED", "true")
	c, err := LoadFrom(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.True(t, c.RegisterCaptchaEnabled)
}

func TestLoadFrom_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	_, err := LoadFrom(path)
	assert.Error(t, err)
}

func TestMySQLDSN(t *testing.T) {
	c := AppConfig{DBUser: "u", DBPassword: "p", DBHost: "h", DBPort: "1", DBName: "d"}
	assert.Equal(t, "u:p@tcp(h:1)/d?charset=utf8mb4&parseTime=True&loc=Local", c.MySQLDSN())
	c.DatabaseURI = "custom"
	assert.Equal(t, "custom", c.MySQLDSN())
}
