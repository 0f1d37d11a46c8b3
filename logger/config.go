package logger

import (
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/kbukum/consolehost/errors"
)

// Console themes.
const (
	ThemeLiterate = "literate"
	ThemePlain    = "plain"
)

// Config contains logging configuration.
type Config struct {
	ServiceName string `yaml:"service_name" mapstructure:"service_name"`
	Level       string `yaml:"level" mapstructure:"level" validate:"oneof=trace debug info warn error fatal"`
	Format      string `yaml:"format" mapstructure:"format" validate:"oneof=json console text pretty"`
	Output      string `yaml:"output" mapstructure:"output" validate:"oneof=stdout stderr file"`
	File        string `yaml:"file" mapstructure:"file" validate:"required_if=Output file"`
	Theme       string `yaml:"theme" mapstructure:"theme" validate:"omitempty,oneof=literate plain"`
	NoColor     bool   `yaml:"no_color" mapstructure:"no_color"`
	Timestamp   bool   `yaml:"timestamp" mapstructure:"timestamp"`
	Caller      bool   `yaml:"caller" mapstructure:"caller"`
	MaxSize     int    `yaml:"max_size" mapstructure:"max_size" validate:"gte=0"`       // megabytes
	MaxBackups  int    `yaml:"max_backups" mapstructure:"max_backups" validate:"gte=0"` // number of backups
	MaxAge      int    `yaml:"max_age" mapstructure:"max_age" validate:"gte=0"`         // days
	Compress    bool   `yaml:"compress" mapstructure:"compress"`
	LocalTime   bool   `yaml:"local_time" mapstructure:"local_time"`
}

// ApplyDefaults applies default values to logging configuration.
func (c *Config) ApplyDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "console"
	}
	if c.Output == "" {
		c.Output = "stdout"
	}
	if c.Theme == "" {
		c.Theme = ThemeLiterate
	}
	if c.MaxSize == 0 {
		c.MaxSize = 100
	}
	if c.MaxBackups == 0 {
		c.MaxBackups = 3
	}
	if c.MaxAge == 0 {
		c.MaxAge = 28
	}
	c.Timestamp = true
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate validates logging configuration.
func (c *Config) Validate() error {
	err := getValidator().Struct(c)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return errors.Wrap(errors.ErrCodeInvalidInput, "invalid logging configuration", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("logging.%s failed %q (got: %v)",
			strings.ToLower(fe.Field()), fe.Tag(), fe.Value()))
	}
	return errors.Validation(strings.Join(msgs, "; "))
}
