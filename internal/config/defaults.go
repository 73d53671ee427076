package config

// DefaultConfig returns the configuration used when no file or overrides
// are present.
func DefaultConfig() *Config {
	return &Config{
		Port:          8000,
		Model:         "gpt-3.5-turbo",
		KnowledgeFile: "faqs.txt",
		DataDir:       "data",
		LogLevel:      "info",
		AllowedOrigins: []string{
			"http://localhost:3000",
			"https://staging.leylinepro.ai",
			"https://staging.leylinepro.ai/mktp",
		},
		Feishu: FeishuConfig{
			BaseURL: "https://open.feishu.cn/open-apis",
		},
	}
}
