package cli

import (
	"github.com/roach88/fieldcheck/internal/app"
	"github.com/roach88/fieldcheck/internal/connectivity"
)

func appSignal(s connectivity.Signal) []app.Option {
	return []app.Option{app.WithSignal(s)}
}
