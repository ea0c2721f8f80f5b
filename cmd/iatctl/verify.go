package main

import (
	"crypto"
	"crypto/x509"
	"encoding/hex"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"os"

	"github.com/DIMO-Network/initial-attestation/pkg/platform"
	"github.com/DIMO-Network/initial-attestation/pkg/verify"
	"github.com/spf13/pflag"
)

type verifyOutput struct {
	Algorithm     string `json:"algorithm"`
	KeyID         string `json:"kid"`
	ChallengeOnly bool   `json:"challengeOnly,omitempty"`
	Claims        any    `json:"claims"`
}

func runVerify(args []string, stdout io.Writer) error {
	var tokenPath, keyPath, challengeHex string
	var opts verify.Options
	flagSet := pflag.NewFlagSet("verify", pflag.ContinueOnError)
	flagSet.StringVarP(&tokenPath, "token", "t", "", "token file")
	flagSet.StringVarP(&keyPath, "key", "k", "", "PEM public or private key file")
	flagSet.StringVarP(&challengeHex, "challenge", "c", "", "expected challenge as hex")
	flagSet.BoolVar(&opts.ShortCircuit, "short-circuit", false, "accept short-circuit signatures")
	if ok, err := parse(flagSet, args); !ok {
		return err
	}
	if tokenPath == "" || keyPath == "" {
		return fmt.Errorf("--token and --key are required")
	}
	token, err := os.ReadFile(tokenPath)
	if err != nil {
		return fmt.Errorf("failed to read token: %w", err)
	}
	keyPEM, err := os.ReadFile(keyPath)
	if err != nil {
		return fmt.Errorf("failed to read key: %w", err)
	}
	pub, err := parsePublicKeyPEM(keyPEM)
	if err != nil {
		return err
	}
	if challengeHex != "" {
		if opts.Challenge, err = decodeHex(challengeHex); err != nil {
			return fmt.Errorf("invalid challenge: %w", err)
		}
	}
	return verifyToken(token, pub, opts, stdout)
}

func verifyToken(token []byte, pub crypto.PublicKey, opts verify.Options, w io.Writer) error {
	res, err := verify.Token(token, pub, opts)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(verifyOutput{
		Algorithm:     res.Algorithm.String(),
		KeyID:         hex.EncodeToString(res.KeyID),
		ChallengeOnly: res.ChallengeOnly,
		Claims:        res.Claims,
	})
}

// parsePublicKeyPEM accepts a public key, or a private key whose public half
// is used.
func parsePublicKeyPEM(data []byte) (crypto.PublicKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found")
	}
	if block.Type == "PUBLIC KEY" {
		pub, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse public key: %w", err)
		}
		return pub, nil
	}
	key, err := platform.ParsePrivateKeyPEM(data)
	if err != nil {
		return nil, err
	}
	return key.Public(), nil
}
