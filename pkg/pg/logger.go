package pg

import (
	"context"
	"fmt"
	"strings"

	"github.com/pressly/goose/v3"
)

type logger interface {
	InfoContext(ctx context.Context, msg string, args ...any)
	ErrorContext(ctx context.Context, msg string, args ...any)
}

// gooseLogger routes goose output through the application logger
type gooseLogger struct {
	ctx context.Context
	log logger
}

var _ goose.Logger = (*gooseLogger)(nil)

func (g *gooseLogger) Fatalf(format string, v ...any) {
	g.log.ErrorContext(g.ctx, strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (g *gooseLogger) Printf(format string, v ...any) {
	g.log.InfoContext(g.ctx, strings.TrimSpace(fmt.Sprintf(format, v...)))
}
