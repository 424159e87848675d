package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/cvlinkhq/cvlink/pkg/auth"
)

func main() {
	fmt.Println("adding demo user into database...")

	err := godotenv.Load()
	if err != nil {
		log.Println("warning: .env file not found, use system environment variables.")
	}

	DSN := os.Getenv("DB_DSN")
	DEMO_SUBJECT := os.Getenv("DEMO_SUBJECT")
	DEMO_EMAIL := os.Getenv("DEMO_EMAIL")
	JWT_SECRET := os.Getenv("JWT_SECRET")

	if DEMO_SUBJECT == "" {
		DEMO_SUBJECT = "demo-user"
	}
	if DEMO_EMAIL == "" {
		DEMO_EMAIL = "demo@cvlink.to"
	}

	pool, err := pgxpool.New(context.Background(), DSN)
	if err != nil {
		log.Fatalf("cannot connect DB: %v", err)
	}
	defer pool.Close()

	query := `
		INSERT INTO users (id, subject, email, is_admin)
		VALUES ($1, $2, $3, TRUE)
		ON CONFLICT (subject) DO UPDATE SET email = $3, is_admin = TRUE
	`
	_, err = pool.Exec(context.Background(), query, uuid.New(), DEMO_SUBJECT, DEMO_EMAIL)
	if err != nil {
		log.Fatalf("cannot add user: %v", err)
	}

	jwtSvc := auth.NewJWTService(JWT_SECRET, 24*time.Hour)
	token, err := jwtSvc.GenerateToken(DEMO_SUBJECT, auth.IdentityClaims{Email: DEMO_EMAIL})
	if err != nil {
		log.Fatalf("cannot mint token: %v", err)
	}

	fmt.Printf("added or updated demo user '%s' successfully!\n", DEMO_SUBJECT)
	fmt.Printf("bearer token (valid 24h):\n%s\n", token)
}
