package di

// PkgNames defines the keys under which a host registers its own services.
type PkgNames struct {
	Config      string
	Logger      string
	Environment string
	Components  string
}

// Pkg contains the keys every host registers.
var Pkg = PkgNames{
	Config:      "config",
	Logger:      "logger",
	Environment: "environment",
	Components:  "components",
}
