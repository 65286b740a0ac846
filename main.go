package main

import (
	"context"
	"time"

	"github.com/shandysiswandi/finadvise/internal/app"
)

// shutdownTimeout bounds draining in-flight requests and lead consumers.
const shutdownTimeout = 15 * time.Second

// @title           FinAdvise API
// @version         1.0
// @description     FinAdvise phone sign-in with WhatsApp one-time codes, session exchange and lead capture.
// @contact.name    FinAdvise Engineering
// @license.name    MIT
// @license.url     https://mit-license.org/
// @server          http://localhost:8080
// @server          https://localhost:8080
// @securityDefinitions.apikey  BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT.
func main() {
	application := app.New()

	<-application.Start()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	application.Stop(ctx)
}
