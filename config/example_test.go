package config_test

import (
	"fmt"
	"log"

	"github.com/frontage-io/frontage/config"
)

func ExampleLoad() {
	// Load with defaults only (no config file)
	cfg, err := config.Load(nil, nil)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Port: %d, Level: %s\n", cfg.Server.Port, cfg.Log.Level)
	// Output: Port: 5719, Level: info
}
