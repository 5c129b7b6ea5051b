package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"envanter/internal/auth"
	"envanter/internal/config"
	"envanter/internal/models"
	"envanter/internal/store"
)

func main() {
	var (
		userID     = flag.String("user", "", "User ID (uuid)")
		email      = flag.String("email", "", "User email")
		role       = flag.String("role", models.RoleAdmin, "Role: admin or user")
		expiryMins = flag.Int("expiry", 1440, "Token expiry in minutes (default: 24 hours)")
		secret     = flag.String("secret", "", "JWT secret (overrides JWT_SECRET env var)")
		issuer     = flag.String("issuer", "", "JWT issuer (overrides JWT_ISS env var)")
		audience   = flag.String("audience", "", "JWT audience (overrides JWT_AUD env var)")
		register   = flag.Bool("register", false, "Record the session in the database (DB_DSN) so the API accepts the token")
	)
	flag.Parse()

	// Load config
	cfg := config.Load()

	// Override with command line flags if provided
	if *secret != "" {
		cfg.JWTSecret = *secret
	}
	if *issuer != "" {
		cfg.JWTIssuer = *issuer
	}
	if *audience != "" {
		cfg.JWTAudience = *audience
	}
	if *userID == "" {
		log.Fatal("-user is required")
	}
	if !models.IsValidRole(*role) {
		log.Fatalf("invalid role %q", *role)
	}

	expiry := time.Duration(*expiryMins) * time.Minute
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, expiry)
	if err := jwtManager.ValidateConfig(); err != nil {
		log.Fatalf("JWT configuration: %v", err)
	}

	sessionID := uuid.NewString()
	token, expiresAt, err := jwtManager.GenerateToken(*userID, *email, *role, sessionID)
	if err != nil {
		log.Fatalf("Failed to generate token: %v", err)
	}

	if *register {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		pg, err := store.OpenPostgres(ctx, cfg.DBDSN)
		if err != nil {
			log.Fatalf("Failed to connect: %v", err)
		}
		defer pg.Close()
		err = pg.CreateSession(ctx, store.SessionRecord{
			ID:        sessionID,
			UserID:    *userID,
			CreatedAt: time.Now(),
			ExpiresAt: expiresAt,
		})
		if err != nil {
			log.Fatalf("Failed to register session: %v", err)
		}
	}

	// Print token info
	fmt.Printf("JWT Token generated successfully!\n\n")
	fmt.Printf("User ID: %s\n", *userID)
	fmt.Printf("Email: %s\n", *email)
	fmt.Printf("Role: %s\n", *role)
	fmt.Printf("Session: %s (registered: %v)\n", sessionID, *register)
	fmt.Printf("Expires: %s\n", expiresAt.Format(time.RFC3339))
	fmt.Printf("Issuer: %s\n", cfg.JWTIssuer)
	fmt.Printf("Audience: %s\n", cfg.JWTAudience)
	fmt.Printf("\nToken:\n%s\n\n", token)

	// Print usage example
	fmt.Printf("Usage example:\n")
	fmt.Printf("curl -H \"Authorization: Bearer %s\" http://localhost:%s/items\n", token, cfg.Port)
}
