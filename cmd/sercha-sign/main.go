package main

// @title           Sercha Sign API
// @version         1.0
// @description     Document signing workflow API. Upload documents, place fields, route them to signers in parallel or in sequence, and keep an ordered audit trail of every change.

// @contact.name   Sercha OSS
// @contact.url    https://github.com/custodia-labs/sercha-sign/issues

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:8080
// @BasePath  /api/v1
// @schemes   http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT Bearer token. Format: "Bearer {token}"

import (
	"fmt"
	"os"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
