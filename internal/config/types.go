package config

// Config is the on-disk configuration (JSON or YAML).
//
// All durations are Go duration strings (e.g. "500ms", "10s", "5m").
type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`
	Workflow WorkflowConfig `json:"workflow"`
	Backend  BackendConfig  `json:"backend"`
	Storage  *StorageConfig `json:"storage,omitempty"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout"`
	// AllowedUserIDs restricts who may use the bot. Empty means everyone.
	AllowedUserIDs []int64 `json:"allowed_user_ids,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// WorkflowConfig controls the upload conversation.
//
// Defaults (when fields are omitted/zero):
//   - edit_timeout: "5m"
//   - allowed_extensions: [".js", ".py", ".sh", ".ts", ".json", ".txt"]
//   - max_file_bytes: 1048576
//   - handler_timeout: "60s"
//   - workers: number of CPUs (min 2)
type WorkflowConfig struct {
	EditTimeout       string   `json:"edit_timeout,omitempty"`
	AllowedExtensions []string `json:"allowed_extensions,omitempty"`
	MaxFileBytes      int64    `json:"max_file_bytes,omitempty"`
	HandlerTimeout    string   `json:"handler_timeout,omitempty"`
	Workers           int      `json:"workers,omitempty"`
}

// BackendConfig selects where scripts and jobs go.
//
// Driver values:
//   - "qinglong": HTTP task panel (open API with client credentials)
//   - "local": scripts on disk, jobs run by an in-process cron
//   - "dryrun" or empty: log only
type BackendConfig struct {
	Driver   string          `json:"driver"`
	Qinglong *QinglongConfig `json:"qinglong,omitempty"`
	Local    *LocalConfig    `json:"local,omitempty"`
}

type QinglongConfig struct {
	BaseURL      string `json:"base_url"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"` // never logged
	// ScriptPath is the panel directory scripts are uploaded into ("" = root).
	ScriptPath string `json:"script_path,omitempty"`
	Timeout    string `json:"timeout,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
	// ProxyURL routes panel traffic through an HTTP(S) proxy.
	ProxyURL string `json:"proxy_url,omitempty"`
}

type LocalConfig struct {
	Dir        string `json:"dir"`
	Timezone   string `json:"timezone,omitempty"`
	RunTimeout string `json:"run_timeout,omitempty"`
}

// StorageConfig controls the optional persistence layer (jobs + audit).
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./data/scriptbot.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string
}
