package config

import "github.com/spf13/viper"

// SetDefaults installs default values for every core configuration key.
// Defaults apply when neither the INI file nor the environment sets a key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "finbridge.db")

	v.SetDefault("web.host", "127.0.0.1")
	v.SetDefault("web.port", 8843)

	v.SetDefault("processing.upload_folder", "uploads")
	v.SetDefault("processing.max_file_size", int64(10*1024*1024))
	v.SetDefault("processing.allowed_extensions", "pdf,png,jpg,jpeg,tiff,txt")

	v.SetDefault("plugins.directory", "plugins.d")
	v.SetDefault("plugins.config_file", "plugin_configs.json")

	v.SetDefault("logging.json", false)
}
