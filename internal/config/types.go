package config

// Config is the top-level Zaya backend configuration, corresponding to .zaya.yml.
type Config struct {
	Port           int          `yaml:"port" koanf:"port"`
	Model          string       `yaml:"model" koanf:"model"`
	KnowledgeFile  string       `yaml:"knowledge_file" koanf:"knowledge_file"`
	DataDir        string       `yaml:"data_dir" koanf:"data_dir"`
	LogLevel       string       `yaml:"log_level" koanf:"log_level"`
	LogPretty      bool         `yaml:"log_pretty" koanf:"log_pretty"`
	AllowedOrigins []string     `yaml:"allowed_origins" koanf:"allowed_origins"`
	AllowAll       bool         `yaml:"allow_all" koanf:"allow_all"`
	Feishu         FeishuConfig `yaml:"feishu" koanf:"feishu"`
}

// FeishuConfig holds the non-secret Bitable settings. App credentials and
// table identifiers come from the environment (FEISHU_APP_ID,
// FEISHU_APP_SECRET, FEISHU_TABLE_APP_TOKEN, FEISHU_TABLE_ID).
type FeishuConfig struct {
	BaseURL string `yaml:"base_url" koanf:"base_url"`
}
