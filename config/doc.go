// Package config layers configuration sources into a single key/value view.
//
// Sources are added to a Builder in order: environment variables, JSON
// files, .env files, command-line arguments and in-memory maps. When two
// sources define the same key, the source added later wins. Keys are
// case-insensitive and nested with "." in lookups; environment variables and
// command-line arguments use "__" (or ":") as the nesting separator.
//
// # Usage
//
//	cfg, err := config.NewBuilder().
//	    SetBasePath(wd).
//	    AddJSONFile("appsettings.json", true, true).
//	    AddEnvironmentVariables("").
//	    Build()
//	defer cfg.Close()
//
//	level := cfg.GetString("logging.level")
//
// Viper holds the merged view and decodes JSON files; fsnotify drives
// reload-on-change for files added with reloadOnChange.
package config
