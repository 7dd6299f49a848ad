// Mints a signed web-session cookie value for local testing:
//
//	SESSION_SECRET=... go run scripts/sign-session.go <userId> <userEmail>
//
// In production the host web app mints these; this helper only exists so
// the claim and device endpoints can be exercised without a running web app.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/deckline/pairing-server-go/internal/middleware"
)

func main() {
	if len(os.Args) != 3 {
		fmt.Fprintln(os.Stderr, "usage: go run scripts/sign-session.go <userId> <userEmail>")
		os.Exit(1)
	}

	secret := os.Getenv("SESSION_SECRET")
	if secret == "" {
		fmt.Fprintln(os.Stderr, "SESSION_SECRET must be set")
		os.Exit(1)
	}

	value, err := middleware.SignSessionValue(middleware.WebSession{
		UserID:    os.Args[1],
		UserEmail: os.Args[2],
		ExpiresAt: time.Now().Add(24 * time.Hour),
	}, secret)
	if err != nil {
		fmt.Fprintln(os.Stderr, "sign session:", err)
		os.Exit(1)
	}

	fmt.Printf("%s=%s\n", middleware.WebSessionCookie, value)
}
