package main

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/DIMO-Network/initial-attestation/pkg/attest"
	"github.com/DIMO-Network/initial-attestation/pkg/client"
	"github.com/spf13/pflag"
)

func runToken(args []string, stdout io.Writer) error {
	var (
		baseURL       string
		vsockCID      uint32
		vsockPort     uint32
		challengeHex  string
		challengeSize int
		outPath       string
		timeout       time.Duration
		opts          attest.Options
	)
	flagSet := pflag.NewFlagSet("token", pflag.ContinueOnError)
	flagSet.StringVar(&baseURL, "url", "http://localhost:8080", "attestation service URL")
	flagSet.Uint32Var(&vsockCID, "vsock-cid", 0, "dial the service over vsock at this context ID")
	flagSet.Uint32Var(&vsockPort, "vsock-port", 0, "vsock port of the service")
	flagSet.StringVarP(&challengeHex, "challenge", "c", "", "challenge as hex (default: random)")
	flagSet.IntVar(&challengeSize, "challenge-size", 32, "size of a random challenge")
	flagSet.Uint8Var(&opts.KeySelect, "key", 0, "signing key slot")
	flagSet.BoolVar(&opts.OmitClaims, "omit-claims", false, "include only the challenge")
	flagSet.BoolVar(&opts.ShortCircuitSign, "short-circuit", false, "replace the signature with a digest")
	flagSet.StringVarP(&outPath, "out", "o", "", "token output file (default: stdout)")
	flagSet.DurationVar(&timeout, "timeout", 10*time.Second, "request timeout")
	if ok, err := parse(flagSet, args); !ok {
		return err
	}

	challenge, err := readChallenge(challengeHex, challengeSize)
	if err != nil {
		return err
	}
	httpClient := &http.Client{Timeout: timeout}
	if vsockCID != 0 {
		httpClient = client.NewVsockHTTPClient(vsockCID, vsockPort)
		httpClient.Timeout = timeout
	}
	cl := client.New(baseURL, httpClient)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	size, err := cl.TokenSize(ctx, len(challenge), opts)
	if err != nil {
		return err
	}
	token, err := cl.Token(ctx, challenge, opts, size)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "challenge %x\n", challenge)
	if outPath == "" {
		_, err = stdout.Write(token)
		return err
	}
	return os.WriteFile(outPath, token, 0o600)
}

func readChallenge(challengeHex string, size int) ([]byte, error) {
	if challengeHex != "" {
		challenge, err := decodeHex(challengeHex)
		if err != nil {
			return nil, fmt.Errorf("invalid challenge: %w", err)
		}
		return challenge, nil
	}
	if err := attest.ValidateChallengeSize(size); err != nil {
		return nil, err
	}
	challenge := make([]byte, size)
	if _, err := rand.Read(challenge); err != nil {
		return nil, fmt.Errorf("failed to generate challenge: %w", err)
	}
	return challenge, nil
}
