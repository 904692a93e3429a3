/*
flag Package sets up cli flags shared across services

Usage:

	Flags listed in this package are shared across boundaries and service-agnostic
	For service dependent flags please define in their respective package
*/

package flag

import (
	"flag"
	"testing"
)

const (
	Ingester  = "ingester"
	APIServer = "api_server"
)

var (
	IsDevelopment bool
	ServiceName   string
)

func init() {
	flag.BoolVar(&IsDevelopment, "dev", true, "set to true if the current run is for development. default value is true")
	flag.StringVar(&ServiceName, "service", Ingester, "'ingester' or 'api_server'")
	// Parsing here would reject the -test.* flags that `go test` passes,
	// which the testing package has not registered yet at init time.
	if !testing.Testing() {
		flag.Parse()
	}
}
