package config

type Config interface {
	ListenAddr() string
	DatabasePath() string
	StandardsPath() string
	DefaultMaterial() string
	Model() string
	Temperature() float32
	RecommendationTemperature() float32
	MaxImages() int
	HistoryLimit() int
	HistoryPruneCron() string
	HistoryRetentionDays() int
	// APIKey prefers the GEMINI_API_KEY and API_KEY environment variables
	// over the stored value.
	APIKey() string

	SetDefaultMaterial(string)
	SetHistoryPruneCron(string)
	SetHistoryRetentionDays(int)

	// Load reads the configuration from the source.
	Load() error
	// Save saves the configuration to the source.
	Save() error
}
