package mollie

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	APIKey         string `envconfig:"MOLLIE_API_KEY" required:"true"`
	APIBaseURL     string `envconfig:"MOLLIE_API_BASE_URL" default:"https://api.mollie.com/v2"`
	TimeoutSeconds int    `envconfig:"MOLLIE_TIMEOUT" default:"10"` // outbound request timeout, seconds
}

func LoadConfig() (c *Config, err error) {
	c = &Config{}
	err = envconfig.Process("", c)
	if err != nil {
		return nil, err
	}
	return c, nil
}
