package main

import (
	"context"

	"github.com/chardila/mybgg/cmd/mybgg/commands"
	"github.com/chardila/mybgg/lib/serviceutil"
	"github.com/chardila/mybgg/lib/telemetry"
)

func main() {
	telemetry.InitSlog(false)
	_, err := telemetry.SetupFromEnv(context.Background(), "mybgg")
	if err != nil {
		serviceutil.Fatal("failed to initialize telemetry", err)
	}
	commands.ExecuteContext(serviceutil.SignalContext())
}
