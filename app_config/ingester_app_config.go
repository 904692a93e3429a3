package app_config

import (
	"io/ioutil"
	"log"

	"gopkg.in/yaml.v2"
)

// This is the app config for ingester execution.
type IngesterAppConfig struct {
	// Minutes between ingest cycles.
	CYCLE_INTERVAL_MINUTE int `yaml:"CYCLE_INTERVAL_MINUTE"`
	// Number of concurrent acquisition workers. Kept small because the
	// session-scrape strategy is resource heavy.
	ACQUISITION_WORKER_COUNT int `yaml:"ACQUISITION_WORKER_COUNT"`
	// Maximum items fetched per source per cycle.
	MAX_ITEMS_PER_SOURCE int `yaml:"MAX_ITEMS_PER_SOURCE"`
	// Statsd agent address for metric reporting.
	STATSD_ADDR string `yaml:"STATSD_ADDR"`
}

func ParseIngesterAppConfig(path string) IngesterAppConfig {
	c := IngesterAppConfig{}
	yamlFile, err := ioutil.ReadFile(path)
	if err != nil {
		log.Fatal("yamlFile. get err: ", err.Error())
	}
	err = yaml.Unmarshal(yamlFile, &c)
	if err != nil {
		log.Fatal("Unmarshal: ", err)
	}
	if c.CYCLE_INTERVAL_MINUTE <= 0 {
		c.CYCLE_INTERVAL_MINUTE = 60
	}
	if c.ACQUISITION_WORKER_COUNT <= 0 {
		c.ACQUISITION_WORKER_COUNT = 4
	}
	if c.MAX_ITEMS_PER_SOURCE <= 0 {
		c.MAX_ITEMS_PER_SOURCE = 20
	}
	if c.STATSD_ADDR == "" {
		c.STATSD_ADDR = "127.0.0.1:8125"
	}
	return c
}
