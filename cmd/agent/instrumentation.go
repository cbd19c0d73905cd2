package main

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

const scopeName = "github.com/yeschef/yeschef-agent/cmd/agent"

var logger = otelslog.NewLogger(scopeName)
