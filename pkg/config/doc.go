// Package config provides configuration loading and validation for Saturn.
//
// Configuration is loaded from a YAML file with environment variable
// overrides (SATURN_* prefix). Quota tiers are a static table keyed by
// tier name; deployments select a tier rather than tuning individual
// quota parameters, because the parameters mirror the upstream
// advertising platform's published throttling model.
//
// # Loading
//
//	cfg, err := config.LoadConfigWithEnvOverrides("config.yaml")
//
// # Hot Reload
//
// FileWatcher watches the configuration file and triggers a reload
// callback after a debounce interval:
//
//	fw, _ := config.NewFileWatcher(&config.FileWatcherConfig{Path: path}, nil)
//	go fw.Watch(ctx, func() error { return config.ReloadConfig(path) })
package config
