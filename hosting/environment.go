package hosting

import "strings"

// Well-known environment names.
const (
	EnvironmentDevelopment = "development"
	EnvironmentStaging     = "staging"
	EnvironmentProduction  = "production"

	// DefaultEnvironment is used when no environment name is configured.
	DefaultEnvironment = EnvironmentProduction
)

// Host configuration keys. Environment variables use the APP_ prefix
// (APP_ENVIRONMENT) and command line arguments the bare key (--environment).
const (
	EnvPrefix           = "APP_"
	KeyEnvironment      = "environment"
	KeyContentRoot      = "contentroot"
	KeyApplicationName  = "applicationname"
	EnvironmentVariable = EnvPrefix + "ENVIRONMENT"
)

// Environment describes where the host runs.
type Environment struct {
	Name            string
	ApplicationName string
	ContentRoot     string
}

// Is reports whether the environment name matches name, ignoring case.
func (e Environment) Is(name string) bool {
	return strings.EqualFold(e.Name, name)
}

func (e Environment) IsDevelopment() bool { return e.Is(EnvironmentDevelopment) }

func (e Environment) IsStaging() bool { return e.Is(EnvironmentStaging) }

func (e Environment) IsProduction() bool { return e.Is(EnvironmentProduction) }
