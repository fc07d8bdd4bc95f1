// Command tokengen mints bearer tokens for operators and local testing.
//
//	tokengen -role ADMIN
//	tokengen -role MERCHANT -merchant 6f1c...
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"marketplace-ledger/config"
	"marketplace-ledger/internal/core/domain"
	"marketplace-ledger/internal/service"

	"github.com/google/uuid"
)

func main() {
	role := flag.String("role", string(domain.ActorRoleAdmin), "actor role: ADMIN, MERCHANT or SYSTEM")
	merchant := flag.String("merchant", "", "merchant id (required for MERCHANT)")
	subject := flag.String("sub", "", "actor id (random if empty)")
	configPath := flag.String("config", "", "config file path")
	flag.Parse()

	if err := run(*configPath, *role, *merchant, *subject); err != nil {
		fmt.Fprintf(os.Stderr, "tokengen: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, role, merchant, subject string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret is not configured")
	}

	actor := domain.Actor{ID: uuid.New(), Role: domain.ActorRole(strings.ToUpper(role))}
	if subject != "" {
		if actor.ID, err = uuid.Parse(subject); err != nil {
			return fmt.Errorf("parsing -sub: %w", err)
		}
	}
	if merchant != "" {
		id, err := uuid.Parse(merchant)
		if err != nil {
			return fmt.Errorf("parsing -merchant: %w", err)
		}
		actor.MerchantID = &id
	}

	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	token, expiry, err := tokenSvc.Generate(actor)
	if err != nil {
		return err
	}
	// Round-trip so invalid role/merchant combinations fail here rather than at the API.
	if _, err := tokenSvc.Validate(token); err != nil {
		return fmt.Errorf("generated token does not validate: %w", err)
	}

	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires %s\n", expiry.Format("2006-01-02T15:04:05Z07:00"))
	return nil
}
