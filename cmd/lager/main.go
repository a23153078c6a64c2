package main

import (
	"github.com/lagerhq/lager/pkg/cli"
	"github.com/lagerhq/lager/pkg/packages"
	"github.com/lagerhq/lager/pkg/packages/apigateway"
	"github.com/lagerhq/lager/pkg/packages/iam"
	"github.com/lagerhq/lager/pkg/packages/nodelambda"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "0.0.0-local"

func main() {
	lm := cli.LagerMain{
		Version: Version,
		Packages: []packages.Package{
			iam.Package{},
			apigateway.Package{},
			nodelambda.Package{},
		},
	}
	lm.Main()
}
