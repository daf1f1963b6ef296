// Package confloader assembles and watches the keymesh server
// configuration.
//
// The Loader layers sources with koanf: config.Default() is overridden by
// a YAML file, which is overridden by KEYMESH_-prefixed environment
// variables, which are overridden by explicit flag overrides; the result
// is verified before it is returned. The Watcher re-runs the loader when
// the config file changes (fsnotify on the containing directory, so
// replace-by-rename is seen too) and delivers the new configuration to a
// reload callback, which is how the server picks up runtime-changeable
// settings such as the log level without a restart.
package confloader
