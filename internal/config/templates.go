package config

import (
	"fmt"
	"os"
)

// Template returns a commented config.toml with every supported key.
func Template() string {
	return serverTemplate
}

func WriteTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(serverTemplate), 0o600)
}

const serverTemplate = `# Game protocol listener.
port = 25565
# addr = "0.0.0.0:25565"
max_connections = 0

# -1 disables the compression sub-layer.
compression_threshold = -1
read_timeout = "30s"
write_timeout = "10s"
keep_open_after_pong = false
login_disconnect_reason = "This server only answers status requests."

# Operator HTTP surface (/health, /ready, /metrics). Empty disables it.
admin_listen_addr = "127.0.0.1:9225"
admin_cors_origins = ["http://localhost:3000"]
# Bearer token required on /metrics when non-empty.
admin_metrics_token = ""

[status]
version_name = "1.19"
protocol = 759
max_players = 100
online_players = 0
motd = "A Minecraft Server"
previews_chat = false

# [[status.sample]]
# name = "thinkofdeath"
# id = "4566e69f-c907-48ee-8d71-d7ba5aa00d20"
`
