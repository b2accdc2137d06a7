package cli

import "os"

// AdminConfig holds settings for the admin subcommands
type AdminConfig struct {
	AdminURL string
	Token    string
	Output   string
}

// DefaultAdminConfig returns an AdminConfig seeded from the environment
func DefaultAdminConfig() *AdminConfig {
	return &AdminConfig{
		AdminURL: getEnvOrDefault("QUIZMATCH_ADMIN_URL", "http://localhost:8080"),
		Token:    os.Getenv("QUIZMATCH_ADMIN_TOKEN"),
		Output:   "text",
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
