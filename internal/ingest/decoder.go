package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/grachmannico95/wallet-webhook/internal/domain"
)

// Payload is a decoded notification before field mapping.
type Payload map[string]interface{}

type DecoderConfig struct {
	Secret           string
	RequireSignature bool
	// VerifyClaims enables exp/nbf/iat checks. The signature is always checked.
	VerifyClaims bool
}

type Decoder struct {
	secret           []byte
	requireSignature bool
	verifyClaims     bool
}

func NewDecoder(cfg DecoderConfig) *Decoder {
	return &Decoder{
		secret:           []byte(cfg.Secret),
		requireSignature: cfg.RequireSignature,
		verifyClaims:     cfg.VerifyClaims,
	}
}

// Decode accepts {"message": "<HS256 token>"} or a plain JSON object.
func (d *Decoder) Decode(body []byte) (Payload, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty body", domain.ErrInvalidPayload)
	}

	var raw map[string]interface{}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: body must be a JSON object", domain.ErrInvalidPayload)
	}

	if msg, ok := raw["message"]; ok {
		token, isString := msg.(string)
		if !isString || token == "" {
			return nil, fmt.Errorf("%w: message must be a non-empty string", domain.ErrInvalidPayload)
		}
		return d.verify(token)
	}

	if d.requireSignature {
		return nil, fmt.Errorf("%w: signed message required", domain.ErrInvalidSignature)
	}

	return Payload(raw), nil
}

func (d *Decoder) verify(token string) (Payload, error) {
	if len(d.secret) == 0 {
		return nil, fmt.Errorf("%w: no shared secret configured", domain.ErrInvalidSignature)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithJSONNumber(),
	}
	if !d.verifyClaims {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return d.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenMalformed) {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidSignature, err)
	}

	return Payload(claims), nil
}
