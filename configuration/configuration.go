package configuration

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"github.com/wlo1561411/HappyTime/companion"
	"github.com/wlo1561411/HappyTime/geofence"
	"github.com/wlo1561411/HappyTime/natsclient"
	"github.com/wlo1561411/HappyTime/nueip"
	"github.com/wlo1561411/HappyTime/reminder"
	"github.com/wlo1561411/HappyTime/repopostgre"
	"github.com/wlo1561411/HappyTime/secretstore"
	"github.com/wlo1561411/HappyTime/webhooks"
	"github.com/wlo1561411/HappyTime/zincaddapter"
	"gopkg.in/yaml.v2"
)

var ErrMissingPassphrase = errors.New("secret store passphrase is not set")

// placeholder matches ${VAR}, a bare $ is kept as written.
var placeholder = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

func expand(buf []byte) []byte {
	return placeholder.ReplaceAllFunc(buf, func(m []byte) []byte {
		return []byte(os.Getenv(string(placeholder.FindSubmatch(m)[1])))
	})
}

// Configuration is the main configuration of the application that corresponds to the *.yaml file
// that holds the configuration.
type Configuration struct {
	Portal        nueip.Config        `yaml:"portal"`
	Office        geofence.Box        `yaml:"office"`
	SecretStore   secretstore.Config  `yaml:"secret_store"`
	Reminder      reminder.Config     `yaml:"reminder"`
	Companion     companion.Config    `yaml:"companion"`
	Nats          natsclient.Config   `yaml:"nats"`
	Webhooks      webhooks.Config     `yaml:"webhooks"`
	Database      repopostgre.Config  `yaml:"database"`
	ZincLogger    zincaddapter.Config `yaml:"zinc_logger"`
	TelemetryPort int                 `yaml:"telemetry_port"`
}

// Read reads the configuration from the file and returns the Configuration with set fields according to the yaml setup.
// ${VAR} placeholders are expanded from the environment before the file is parsed.
func Read(path string) (Configuration, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return Configuration{}, err
	}

	main, err := Parse(buf)
	if err != nil {
		return Configuration{}, fmt.Errorf("in file %q: %w", path, err)
	}

	return main, nil
}

// Parse parses the yaml configuration and applies the defaults.
func Parse(buf []byte) (Configuration, error) {
	var main Configuration
	if err := yaml.UnmarshalStrict(expand(buf), &main); err != nil {
		return Configuration{}, err
	}
	return main.Defaults(), nil
}

// Defaults returns the configuration with empty fields of every section set to their default values.
func (c Configuration) Defaults() Configuration {
	c.Portal = c.Portal.Defaults()
	c.Office = c.Office.OrOffice()
	c.SecretStore = c.SecretStore.Defaults()
	c.Reminder = c.Reminder.Defaults()
	return c
}

// Validate checks the values that have no usable default.
func (c Configuration) Validate() error {
	if c.SecretStore.Passphrase == "" {
		return ErrMissingPassphrase
	}
	return nil
}
