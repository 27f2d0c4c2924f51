// Package main provides a CLI tool for generating access tokens for local
// voxid development. Tokens are signed with the dev key and will NOT work in
// production.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	jwttoken "voxid/internal/jwt_token"
	id "voxid/pkg/domain"
)

const (
	// Dev signing key - matches config.go when JWT_SIGNING_KEY is not set
	devSigningKey = "dev-secret-key-change-in-production"

	defaultIssuer   = "voxid"
	defaultTokenTTL = 15 * time.Minute
)

type tokenOutput struct {
	Token     string            `json:"token"`
	Type      string            `json:"type"`
	ExpiresIn string            `json:"expires_in"`
	Claims    map[string]any    `json:"claims,omitempty"`
	Usage     map[string]string `json:"usage"`
}

func main() {
	accessCmd := flag.NewFlagSet("access", flag.ExitOnError)
	accessUserID := accessCmd.String("user-id", "", "Identity ID (UUID). Generated if empty.")
	accessIssuer := accessCmd.String("issuer", defaultIssuer, "Token issuer, must match JWT_ISSUER")
	accessKey := accessCmd.String("key", devSigningKey, "Access token signing key")
	accessTTL := accessCmd.Duration("ttl", defaultTokenTTL, "Token time-to-live")
	accessJSON := accessCmd.Bool("json", false, "Output as JSON")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "access":
		_ = accessCmd.Parse(os.Args[2:])
		generateAccessToken(*accessUserID, *accessIssuer, *accessKey, *accessTTL, *accessJSON)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`tokengen - Generate test access tokens for the voxid API

WARNING: These tokens use the dev signing key by default and will NOT work in
         production. Only use for local development and testing.

Usage:
  tokengen <command> [flags]

Commands:
  access    Generate an access token (JWT) for GET /me, DELETE /me and POST /auth/logout

Examples:
  # Generate access token for a random identity
  tokengen access

  # Generate access token for a seeded identity
  tokengen access -user-id "550e8400-e29b-41d4-a716-446655440000"

  # Longer lived token as JSON
  tokengen access -ttl 1h -json

Refresh tokens are not generated here: the server only accepts refresh tokens
whose hash it stored at login.`)
}

func generateAccessToken(userID, issuer, key string, ttl time.Duration, jsonOutput bool) {
	identityID := parseOrGenerateID(userID)

	svc := jwttoken.NewJWTService(jwttoken.Config{
		SigningKey:     key,
		Issuer:         issuer,
		AccessTokenTTL: ttl,
	})

	token, err := svc.GenerateAccessToken(context.Background(), identityID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating token: %v\n", err)
		os.Exit(1)
	}

	keyType := "custom"
	if key == devSigningKey {
		keyType = "dev"
	}

	if jsonOutput {
		printJSON(tokenOutput{
			Token:     token,
			Type:      "access_token",
			ExpiresIn: ttl.String(),
			Claims: map[string]any{
				"sub": identityID.String(),
				"iss": issuer,
			},
			Usage: map[string]string{
				"header":      "Authorization: Bearer <token>",
				"signing_key": keyType,
			},
		})
		return
	}

	fmt.Println("Access Token (JWT)")
	fmt.Println("==================")
	fmt.Printf("Signing Key: %s\n", keyType)
	fmt.Printf("Issuer:      %s\n", issuer)
	fmt.Printf("Expires In:  %s\n", ttl)
	fmt.Printf("Identity ID: %s\n", identityID)
	fmt.Println()
	fmt.Println("Token:")
	fmt.Println(token)
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  curl -H \"Authorization: Bearer <token>\" http://localhost:8080/me")
}

func parseOrGenerateID(raw string) id.IdentityID {
	if raw == "" {
		return id.NewIdentityID()
	}
	identityID, err := id.ParseIdentityID(raw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid -user-id: %v\n", err)
		os.Exit(1)
	}
	return identityID
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
		os.Exit(1)
	}
}
